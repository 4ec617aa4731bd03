/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package media

import (
	"context"
	"fmt"
)

// SweepResult reports what an orphan sweep found.
type SweepResult struct {
	Scanned       int      `json:"scanned"`
	OrphanedBlobs []string `json:"orphaned_blobs,omitempty"`
	MissingBlobs  []string `json:"missing_blobs,omitempty"`
	Removed       int      `json:"removed"`
}

// SweepOrphans reconciles the blob store against the catalog: blobs with no
// metadata row are orphans (optionally removed), rows whose blob is gone are
// reported so an operator can re-upload before a display hits a 404.
func (s *Service) SweepOrphans(ctx context.Context, removeOrphans bool) (*SweepResult, error) {
	keys, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list blobs: %w", err)
	}
	files, err := s.catalog.ListFiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("list file rows: %w", err)
	}

	known := make(map[string]struct{}, len(files))
	for _, f := range files {
		known[f.Path] = struct{}{}
	}
	stored := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		stored[k] = struct{}{}
	}

	result := &SweepResult{Scanned: len(keys)}
	for _, key := range keys {
		if _, ok := known[key]; ok {
			continue
		}
		result.OrphanedBlobs = append(result.OrphanedBlobs, key)
		if !removeOrphans {
			continue
		}
		if err := s.store.Delete(ctx, key); err != nil {
			s.logger.Warn().Err(err).Str("key", key).Msg("orphan removal failed")
			continue
		}
		result.Removed++
	}
	for _, f := range files {
		if _, ok := stored[f.Path]; !ok {
			s.logger.Warn().Str("file_id", f.ID).Str("key", f.Path).Msg("file row has no blob")
			result.MissingBlobs = append(result.MissingBlobs, f.ID)
		}
	}

	s.logger.Info().
		Int("scanned", result.Scanned).
		Int("orphans", len(result.OrphanedBlobs)).
		Int("missing", len(result.MissingBlobs)).
		Int("removed", result.Removed).
		Msg("orphan sweep complete")
	return result, nil
}
