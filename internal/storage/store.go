/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package storage abstracts blob storage for uploaded media: local
// filesystem for single-node deployments, S3-compatible object storage for
// everything else.
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrNotExist is returned when a blob key is absent from the store.
var ErrNotExist = errors.New("object does not exist")

// ObjectStore abstracts blob operations. Keys are opaque; callers derive
// them from media file records.
type ObjectStore interface {
	// Put writes the blob under key, overwriting any existing object.
	Put(ctx context.Context, key string, r io.Reader, contentType string) error
	// Open streams the blob. The caller closes the reader.
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete removes the blob. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// List returns every stored key. Used by the orphan sweep.
	List(ctx context.Context) ([]string, error)
	// Check verifies the backend is reachable and writable enough to serve.
	Check(ctx context.Context) error
}
