/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/friendsincode/heimdall_signage/internal/logging"
	"github.com/friendsincode/heimdall_signage/internal/player"
	"github.com/friendsincode/heimdall_signage/internal/version"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "heimdallplayer",
	Short: "Heimdall Signage display agent",
	Long:  "Heimdall Player registers a display with the signage server, follows its command channel, and plays the assigned playlist in a browser kiosk.",
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the display agent",
	RunE:  runPlayer,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the build version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.String())
	},
}

func init() {
	runCmd.Flags().StringVarP(&configPath, "config", "c", "/etc/heimdall/player.yml", "path to the player config file")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func runPlayer(cmd *cobra.Command, args []string) error {
	cfg, err := player.LoadConfig(configPath)
	if err != nil {
		return err
	}

	logger := logging.Setup(os.Getenv("HEIMDALL_ENV"))
	logger.Info().Str("version", version.String()).Str("server", cfg.ServerURL).Msg("Heimdall Player starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner := player.NewRunner(cfg, logger)
	if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	logger.Info().Msg("Heimdall Player stopped")
	return nil
}
