package storage

import (
	"context"
	"io"
	"sort"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestLocalRoundTrip(t *testing.T) {
	store := NewLocal(t.TempDir(), zerolog.Nop())
	ctx := context.Background()

	if err := store.Put(ctx, "abcdef.png", strings.NewReader("pixels"), "image/png"); err != nil {
		t.Fatalf("put: %v", err)
	}

	rc, err := store.Open(ctx, "abcdef.png")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "pixels" {
		t.Fatalf("read %q, want pixels", data)
	}
}

func TestLocalOpenMissing(t *testing.T) {
	store := NewLocal(t.TempDir(), zerolog.Nop())
	if _, err := store.Open(context.Background(), "nope.png"); err != ErrNotExist {
		t.Fatalf("err = %v, want ErrNotExist", err)
	}
}

func TestLocalDeleteIdempotent(t *testing.T) {
	store := NewLocal(t.TempDir(), zerolog.Nop())
	ctx := context.Background()

	if err := store.Put(ctx, "key.pdf", strings.NewReader("doc"), "application/pdf"); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := store.Delete(ctx, "key.pdf"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	// Deleting again must not error.
	if err := store.Delete(ctx, "key.pdf"); err != nil {
		t.Fatalf("second delete: %v", err)
	}
	if _, err := store.Open(ctx, "key.pdf"); err != ErrNotExist {
		t.Fatalf("open after delete: %v, want ErrNotExist", err)
	}
}

func TestLocalListShardedKeys(t *testing.T) {
	store := NewLocal(t.TempDir(), zerolog.Nop())
	ctx := context.Background()

	for _, key := range []string{"aa11.png", "bb22.mp4", "aa33.pdf"} {
		if err := store.Put(ctx, key, strings.NewReader("x"), ""); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}

	keys, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	sort.Strings(keys)
	want := []string{"aa11.png", "aa33.pdf", "bb22.mp4"}
	if len(keys) != len(want) {
		t.Fatalf("listed %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("listed %v, want %v", keys, want)
		}
	}
}

func TestLocalListEmptyRootMissing(t *testing.T) {
	store := NewLocal(t.TempDir()+"/never-created", zerolog.Nop())
	keys, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("list on missing root: %v", err)
	}
	if len(keys) != 0 {
		t.Fatalf("expected no keys, got %v", keys)
	}
}
