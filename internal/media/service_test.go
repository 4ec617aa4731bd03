package media

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/friendsincode/heimdall_signage/internal/catalog"
	"github.com/friendsincode/heimdall_signage/internal/models"
	"github.com/friendsincode/heimdall_signage/internal/storage"
)

func testMedia(t *testing.T) (*Service, *catalog.Service, storage.ObjectStore) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&models.MediaFile{},
		&models.Playlist{},
		&models.PlaylistItem{},
		&models.Player{},
		&models.PlayerGroup{},
		&models.PlayerGroupMember{},
	); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	cat := catalog.New(db, nil, zerolog.Nop())
	store := storage.NewLocal(t.TempDir(), zerolog.Nop())
	return NewService(cat, store, zerolog.Nop()), cat, store
}

func TestUploadRoundTrip(t *testing.T) {
	svc, _, _ := testMedia(t)
	ctx := context.Background()

	f, err := svc.Upload(ctx, "poster.png", "image/png", 6, strings.NewReader("pixels"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if f.ID == "" {
		t.Fatal("uploaded file has no id")
	}
	if !strings.HasSuffix(f.Path, ".png") {
		t.Fatalf("blob key %q does not keep the extension", f.Path)
	}
	if f.Kind() != models.KindImage {
		t.Fatalf("kind = %v, want image", f.Kind())
	}

	rc, meta, err := svc.Open(ctx, f.ID)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != "pixels" {
		t.Fatalf("read %q, want pixels", data)
	}
	if meta.MimeType != "image/png" {
		t.Fatalf("mime = %s, want image/png", meta.MimeType)
	}
}

func TestUploadRejectsDisallowedType(t *testing.T) {
	svc, _, _ := testMedia(t)

	_, err := svc.Upload(context.Background(), "script.sh", "application/x-sh", 2, strings.NewReader("#!"))
	if !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("err = %v, want ErrUnsupportedType", err)
	}
}

func TestOpenMissingFile(t *testing.T) {
	svc, _, _ := testMedia(t)
	if _, _, err := svc.Open(context.Background(), "missing"); err != catalog.ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestDeleteRemovesRowAndBlob(t *testing.T) {
	svc, cat, store := testMedia(t)
	ctx := context.Background()

	f, err := svc.Upload(ctx, "clip.mp4", "video/mp4", 5, strings.NewReader("video"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if err := svc.Delete(ctx, f.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := cat.GetFile(ctx, f.ID); err != catalog.ErrNotFound {
		t.Fatalf("row still present: %v", err)
	}
	if _, err := store.Open(ctx, f.Path); err != storage.ErrNotExist {
		t.Fatalf("blob still present: %v", err)
	}
}

func TestSweepOrphans(t *testing.T) {
	svc, _, store := testMedia(t)
	ctx := context.Background()

	kept, err := svc.Upload(ctx, "menu.pdf", "application/pdf", 3, strings.NewReader("doc"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	// A blob nothing references.
	if err := store.Put(ctx, "dangling.png", strings.NewReader("x"), "image/png"); err != nil {
		t.Fatalf("put orphan: %v", err)
	}

	result, err := svc.SweepOrphans(ctx, true)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if len(result.OrphanedBlobs) != 1 || result.OrphanedBlobs[0] != "dangling.png" {
		t.Fatalf("orphans = %v, want [dangling.png]", result.OrphanedBlobs)
	}
	if result.Removed != 1 {
		t.Fatalf("removed = %d, want 1", result.Removed)
	}
	if _, err := store.Open(ctx, "dangling.png"); err != storage.ErrNotExist {
		t.Fatal("orphan blob not removed")
	}
	// The referenced blob survives.
	rc, _, err := svc.Open(ctx, kept.ID)
	if err != nil {
		t.Fatalf("kept file gone: %v", err)
	}
	rc.Close()
}

func TestSweepReportsMissingBlobs(t *testing.T) {
	svc, cat, _ := testMedia(t)
	ctx := context.Background()

	f := &models.MediaFile{Name: "ghost.png", FileName: "ghost.png", Path: "ghost-key.png", MimeType: "image/png", Size: 1}
	if err := cat.CreateFile(ctx, f); err != nil {
		t.Fatalf("create row: %v", err)
	}

	result, err := svc.SweepOrphans(ctx, false)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if len(result.MissingBlobs) != 1 || result.MissingBlobs[0] != f.ID {
		t.Fatalf("missing = %v, want [%s]", result.MissingBlobs, f.ID)
	}
}
