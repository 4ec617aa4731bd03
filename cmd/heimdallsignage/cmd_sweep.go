/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/friendsincode/heimdall_signage/internal/catalog"
	"github.com/friendsincode/heimdall_signage/internal/db"
	"github.com/friendsincode/heimdall_signage/internal/media"
)

var sweepRemove bool

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Reconcile stored media blobs against the catalog",
	Long: `Scan the media store and the catalog for mismatches.

Reports blobs with no catalog row (orphans) and catalog rows whose blob is
missing. Orphaned blobs are only deleted with --remove.`,
	RunE: runSweep,
}

func init() {
	sweepCmd.Flags().BoolVar(&sweepRemove, "remove", false, "delete orphaned blobs instead of only reporting them")
}

func runSweep(cmd *cobra.Command, args []string) error {
	if _, err := loadConfig(); err != nil {
		return err
	}

	database, err := db.Connect(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close(database) }()

	cat := catalog.New(database, nil, logger)
	store, err := media.NewStore(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	svc := media.NewService(cat, store, logger)

	result, err := svc.SweepOrphans(cmd.Context(), sweepRemove)
	if err != nil {
		return err
	}

	fmt.Printf("scanned %d blobs\n", result.Scanned)
	fmt.Printf("orphaned blobs: %d\n", len(result.OrphanedBlobs))
	for _, key := range result.OrphanedBlobs {
		fmt.Printf("  %s\n", key)
	}
	fmt.Printf("rows with missing blobs: %d\n", len(result.MissingBlobs))
	for _, id := range result.MissingBlobs {
		fmt.Printf("  %s\n", id)
	}
	if sweepRemove {
		fmt.Printf("removed %d orphaned blobs\n", result.Removed)
	}
	return nil
}
