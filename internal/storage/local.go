/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package storage

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// Local stores blobs on the local filesystem under a root directory,
// sharded by key prefix so one directory never accumulates every file.
type Local struct {
	root   string
	logger zerolog.Logger
}

// NewLocal creates a filesystem-backed store rooted at dir.
func NewLocal(dir string, logger zerolog.Logger) *Local {
	return &Local{root: dir, logger: logger}
}

// path shards as root/ab/abcdef….ext.
func (l *Local) path(key string) string {
	shard := key
	if len(shard) > 2 {
		shard = shard[:2]
	}
	return filepath.Join(l.root, shard, key)
}

func (l *Local) Put(ctx context.Context, key string, r io.Reader, _ string) error {
	full := l.path(key)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("create directories: %w", err)
	}

	dest, err := os.Create(full)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	defer dest.Close()

	if _, err := io.Copy(dest, r); err != nil {
		os.Remove(full)
		return fmt.Errorf("write file: %w", err)
	}

	l.logger.Debug().Str("key", key).Str("path", full).Msg("blob stored")
	return nil
}

func (l *Local) Open(_ context.Context, key string) (io.ReadCloser, error) {
	f, err := os.Open(l.path(key))
	if os.IsNotExist(err) {
		return nil, ErrNotExist
	}
	if err != nil {
		return nil, fmt.Errorf("open blob: %w", err)
	}
	return f, nil
}

func (l *Local) Delete(_ context.Context, key string) error {
	if err := os.Remove(l.path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove blob: %w", err)
	}
	return nil
}

func (l *Local) List(ctx context.Context) ([]string, error) {
	var keys []string
	err := filepath.WalkDir(l.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == l.root {
				return filepath.SkipAll
			}
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if !d.IsDir() {
			keys = append(keys, d.Name())
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk media root: %w", err)
	}
	return keys, nil
}

func (l *Local) Check(_ context.Context) error {
	if err := os.MkdirAll(l.root, 0o755); err != nil {
		return fmt.Errorf("media root not writable: %w", err)
	}
	return nil
}
