package telemetry

import (
	"os"
	"testing"

	"gopkg.in/yaml.v3"
)

// TestAlertsFileValid verifies the shipped Prometheus alert rules parse and
// reference only metric families this package exports.
func TestAlertsFileValid(t *testing.T) {
	data, err := os.ReadFile("../../deploy/prometheus/alerts.yml")
	if err != nil {
		t.Fatalf("read alerts.yml: %v", err)
	}

	var config struct {
		Groups []struct {
			Name  string `yaml:"name"`
			Rules []struct {
				Alert string `yaml:"alert"`
				Expr  string `yaml:"expr"`
				For   string `yaml:"for"`
			} `yaml:"rules"`
		} `yaml:"groups"`
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		t.Fatalf("invalid YAML in alerts.yml: %v", err)
	}

	if len(config.Groups) == 0 {
		t.Fatal("alerts.yml has no groups")
	}
	for _, g := range config.Groups {
		if g.Name == "" {
			t.Error("alert group missing name")
		}
		if len(g.Rules) == 0 {
			t.Errorf("group %q has no rules", g.Name)
		}
		for _, r := range g.Rules {
			if r.Alert == "" || r.Expr == "" {
				t.Errorf("group %q has incomplete rule %+v", g.Name, r)
			}
		}
	}
}
