/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package player

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/friendsincode/heimdall_signage/internal/playback"
)

// Config is the display agent's configuration file.
type Config struct {
	// ServerURL is the signage server base URL, e.g. http://signage:8080.
	ServerURL string `yaml:"server_url"`
	// Name labels a freshly registered display in the catalog.
	Name string `yaml:"name"`
	// StateDir holds the persisted identifier so the display keeps its
	// registration across restarts. Defaults to the config file's directory.
	StateDir string `yaml:"state_dir"`
	// Renderer selects the display surface: "kiosk" (default) or "log".
	Renderer string `yaml:"renderer"`
	// BrowserURL is an optional DevTools control URL of an already running
	// browser. Empty launches a local headful Chromium.
	BrowserURL string `yaml:"browser_url"`
}

// LoadConfig reads and validates a yaml config file.
func LoadConfig(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.ServerURL == "" {
		return nil, errors.New("server_url is required")
	}
	if cfg.StateDir == "" {
		cfg.StateDir = filepath.Dir(path)
	}
	if cfg.Renderer == "" {
		cfg.Renderer = "kiosk"
	}
	if cfg.Renderer != "kiosk" && cfg.Renderer != "log" {
		return nil, fmt.Errorf("unknown renderer %q", cfg.Renderer)
	}
	return &cfg, nil
}

// Runner owns the agent lifecycle: register, stream commands, play.
type Runner struct {
	cfg    *Config
	client *Client
	logger zerolog.Logger
}

// NewRunner builds a runner from a loaded config.
func NewRunner(cfg *Config, logger zerolog.Logger) *Runner {
	return &Runner{
		cfg:    cfg,
		client: NewClient(cfg.ServerURL, logger),
		logger: logger.With().Str("component", "player").Logger(),
	}
}

// Run registers the display and pumps commands into the playback engine
// until the context is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	identifier, err := r.loadIdentifier()
	if err != nil {
		return err
	}

	player, err := r.client.Connect(ctx, identifier)
	if err != nil {
		return err
	}
	if player.Identifier != identifier {
		if err := r.saveIdentifier(player.Identifier); err != nil {
			return err
		}
	}
	r.logger.Info().
		Str("identifier", player.Identifier).
		Str("player_id", player.ID).
		Msg("registered with server")

	renderer, closeRenderer, err := r.buildRenderer(ctx)
	if err != nil {
		return err
	}
	defer closeRenderer()

	engine := playback.NewEngine(r.client, renderer, r.logger)

	engineDone := make(chan error, 1)
	go func() { engineDone <- engine.Run(ctx) }()

	streamErr := r.client.StreamCommands(ctx, player.Identifier, engine.Submit)
	engineErr := <-engineDone

	if streamErr != nil && !errors.Is(streamErr, context.Canceled) {
		return streamErr
	}
	if engineErr != nil && !errors.Is(engineErr, context.Canceled) {
		return engineErr
	}
	return nil
}

func (r *Runner) buildRenderer(ctx context.Context) (playback.Renderer, func(), error) {
	switch r.cfg.Renderer {
	case "log":
		lr := NewLogRenderer(r.logger)
		return lr, func() {}, nil
	default:
		kiosk, err := NewKiosk(ctx, KioskConfig{
			BrowserURL: r.cfg.BrowserURL,
			FileURL:    r.client.FileURL,
		}, r.logger)
		if err != nil {
			return nil, nil, fmt.Errorf("start kiosk renderer: %w", err)
		}
		return kiosk, func() { kiosk.Close() }, nil
	}
}

func (r *Runner) identifierPath() string {
	return filepath.Join(r.cfg.StateDir, "identifier")
}

func (r *Runner) loadIdentifier() (string, error) {
	raw, err := os.ReadFile(r.identifierPath())
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read identifier: %w", err)
	}
	return strings.TrimSpace(string(raw)), nil
}

func (r *Runner) saveIdentifier(identifier string) error {
	if err := os.MkdirAll(r.cfg.StateDir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	if err := os.WriteFile(r.identifierPath(), []byte(identifier+"\n"), 0o644); err != nil {
		return fmt.Errorf("persist identifier: %w", err)
	}
	return nil
}
