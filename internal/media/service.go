/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package media manages uploaded display content: the blob itself via an
// object store, the metadata row via the catalog.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/friendsincode/heimdall_signage/internal/catalog"
	"github.com/friendsincode/heimdall_signage/internal/config"
	"github.com/friendsincode/heimdall_signage/internal/models"
	"github.com/friendsincode/heimdall_signage/internal/storage"
	"github.com/friendsincode/heimdall_signage/internal/telemetry"
)

// ErrUnsupportedType rejects uploads outside the display-capable allowlist.
var ErrUnsupportedType = errors.New("unsupported media type")

// allowedTypes maps accepted MIME types to the blob key extension.
var allowedTypes = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/gif":       ".gif",
	"image/webp":      ".webp",
	"video/mp4":       ".mp4",
	"application/pdf": ".pdf",
}

// Service is the media upload/serve/delete surface.
type Service struct {
	catalog *catalog.Service
	store   storage.ObjectStore
	logger  zerolog.Logger
}

// NewStore selects the blob backend from config: S3 when a bucket is
// configured, local filesystem otherwise.
func NewStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (storage.ObjectStore, error) {
	if cfg.S3Bucket != "" {
		s3cfg := storage.S3Config{
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			Region:          cfg.S3Region,
			Bucket:          cfg.S3Bucket,
			Endpoint:        cfg.S3Endpoint,
			UsePathStyle:    cfg.S3UsePathStyle,
		}
		store, err := storage.NewS3(ctx, s3cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("initialize S3 storage: %w", err)
		}
		return store, nil
	}
	return storage.NewLocal(cfg.MediaRoot, logger), nil
}

// NewService creates a media service on top of the given store.
func NewService(cat *catalog.Service, store storage.ObjectStore, logger zerolog.Logger) *Service {
	return &Service{
		catalog: cat,
		store:   store,
		logger:  logger.With().Str("component", "media").Logger(),
	}
}

// Upload checks the MIME allowlist, stores the blob under a fresh uuid key
// preserving the extension, then records the metadata row. The blob is
// removed again if the metadata write fails.
func (s *Service) Upload(ctx context.Context, name, mimeType string, size int64, r io.Reader) (*models.MediaFile, error) {
	ext, ok := allowedTypes[mimeType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, mimeType)
	}

	key := uuid.NewString() + ext
	if err := s.store.Put(ctx, key, r, mimeType); err != nil {
		return nil, fmt.Errorf("store blob: %w", err)
	}

	f := &models.MediaFile{
		Name:     name,
		FileName: name,
		Path:     key,
		MimeType: mimeType,
		Size:     size,
	}
	if err := s.catalog.CreateFile(ctx, f); err != nil {
		if delErr := s.store.Delete(ctx, key); delErr != nil {
			s.logger.Warn().Err(delErr).Str("key", key).Msg("orphaned blob after failed metadata write")
		}
		return nil, err
	}

	telemetry.MediaUploads.WithLabelValues(string(f.Kind())).Inc()
	s.logger.Info().
		Str("file_id", f.ID).
		Str("key", key).
		Str("mime_type", mimeType).
		Int64("size", size).
		Msg("media uploaded")
	return f, nil
}

// Open streams a file's bytes with its content type. The playback surface
// loads media through this.
func (s *Service) Open(ctx context.Context, fileID string) (io.ReadCloser, *models.MediaFile, error) {
	f, err := s.catalog.GetFile(ctx, fileID)
	if err != nil {
		return nil, nil, err
	}
	rc, err := s.store.Open(ctx, f.Path)
	if errors.Is(err, storage.ErrNotExist) {
		return nil, nil, catalog.ErrNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	return rc, f, nil
}

// Delete removes the metadata row (detaching playlist items) and then the
// blob. A blob already gone is tolerated.
func (s *Service) Delete(ctx context.Context, fileID string) error {
	f, err := s.catalog.GetFile(ctx, fileID)
	if err != nil {
		return err
	}
	if err := s.catalog.DeleteFile(ctx, fileID); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, f.Path); err != nil {
		s.logger.Warn().Err(err).Str("key", f.Path).Msg("blob delete failed after row delete")
	}
	return nil
}

// CheckStorage verifies the blob backend is usable.
func (s *Service) CheckStorage(ctx context.Context) error {
	return s.store.Check(ctx)
}
