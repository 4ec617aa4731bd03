package catalog

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/friendsincode/heimdall_signage/internal/models"
)

func testService(t *testing.T) *Service {
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
	return New(db, nil, zerolog.Nop())
}

func createTestFile(t *testing.T, svc *Service, name, mime string) *models.MediaFile {
	t.Helper()
	f := &models.MediaFile{Name: name, FileName: name, Path: name, MimeType: mime, Size: 1}
	if err := svc.CreateFile(context.Background(), f); err != nil {
		t.Fatalf("create file: %v", err)
	}
	return f
}

func TestGetPlaylistNotFound(t *testing.T) {
	svc := testService(t)
	if _, err := svc.GetPlaylist(context.Background(), "missing"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreatePlaylistNormalizesPositions(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()

	f1 := createTestFile(t, svc, "a.png", "image/png")
	f2 := createTestFile(t, svc, "b.mp4", "video/mp4")
	f3 := createTestFile(t, svc, "c.pdf", "application/pdf")

	pl, err := svc.CreatePlaylist(ctx, "lobby", "", []ItemInput{
		{FileID: f3.ID, Position: 10},
		{FileID: f1.ID, Position: 2},
		{FileID: f2.ID, Position: 7},
	})
	if err != nil {
		t.Fatalf("create playlist: %v", err)
	}

	if len(pl.Items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(pl.Items))
	}
	wantOrder := []string{f1.ID, f2.ID, f3.ID}
	for i, item := range pl.Items {
		if item.Position != i {
			t.Errorf("item %d position = %d, want %d", i, item.Position, i)
		}
		if item.FileID != wantOrder[i] {
			t.Errorf("item %d file = %s, want %s", i, item.FileID, wantOrder[i])
		}
		if item.File == nil {
			t.Errorf("item %d file not preloaded", i)
		}
	}
}

func TestUpdatePlaylistReplacesItems(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()

	f1 := createTestFile(t, svc, "a.png", "image/png")
	f2 := createTestFile(t, svc, "b.png", "image/png")

	pl, err := svc.CreatePlaylist(ctx, "lobby", "", []ItemInput{{FileID: f1.ID, Position: 0}})
	if err != nil {
		t.Fatalf("create playlist: %v", err)
	}

	items := []ItemInput{{FileID: f2.ID, Position: 0}, {FileID: f1.ID, Position: 1}}
	updated, err := svc.UpdatePlaylist(ctx, pl.ID, PlaylistUpdate{Items: &items})
	if err != nil {
		t.Fatalf("update playlist: %v", err)
	}
	if len(updated.Items) != 2 {
		t.Fatalf("expected 2 items after replace, got %d", len(updated.Items))
	}
	if updated.Items[0].FileID != f2.ID {
		t.Errorf("expected new head item %s, got %s", f2.ID, updated.Items[0].FileID)
	}
}

func TestDeleteFileReindexesPlaylistPositions(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()

	f1 := createTestFile(t, svc, "a.png", "image/png")
	f2 := createTestFile(t, svc, "b.png", "image/png")
	f3 := createTestFile(t, svc, "c.png", "image/png")

	pl, err := svc.CreatePlaylist(ctx, "lobby", "", []ItemInput{
		{FileID: f1.ID, Position: 0},
		{FileID: f2.ID, Position: 1},
		{FileID: f3.ID, Position: 2},
	})
	if err != nil {
		t.Fatalf("create playlist: %v", err)
	}

	if err := svc.DeleteFile(ctx, f2.ID); err != nil {
		t.Fatalf("delete file: %v", err)
	}

	got, err := svc.GetPlaylist(ctx, pl.ID)
	if err != nil {
		t.Fatalf("get playlist: %v", err)
	}
	if len(got.Items) != 2 {
		t.Fatalf("expected 2 items after delete, got %d", len(got.Items))
	}
	for i, item := range got.Items {
		if item.Position != i {
			t.Errorf("item %d position = %d, want %d (positions must stay dense)", i, item.Position, i)
		}
	}
}

func TestPlayerLookups(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()

	p, err := svc.CreatePlayer(ctx, "", "", "")
	if err != nil {
		t.Fatalf("create player: %v", err)
	}
	if p.Identifier == "" {
		t.Fatal("expected generated identifier")
	}
	if p.Name == "" {
		t.Fatal("expected default name")
	}

	byID, err := svc.GetPlayer(ctx, p.ID)
	if err != nil {
		t.Fatalf("get player: %v", err)
	}
	if byID.Identifier != p.Identifier {
		t.Errorf("identifier mismatch: %s vs %s", byID.Identifier, p.Identifier)
	}

	byIdent, err := svc.GetPlayerByIdentifier(ctx, p.Identifier)
	if err != nil {
		t.Fatalf("get player by identifier: %v", err)
	}
	if byIdent.ID != p.ID {
		t.Errorf("id mismatch: %s vs %s", byIdent.ID, p.ID)
	}

	if _, err := svc.GetPlayerByIdentifier(ctx, "bogus"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound for unknown identifier, got %v", err)
	}
}

func TestGroupMembers(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()

	p1, _ := svc.CreatePlayer(ctx, "", "lobby-left", "")
	p2, _ := svc.CreatePlayer(ctx, "", "lobby-right", "")

	g, err := svc.CreateGroup(ctx, "lobby", "", []string{p1.ID, p2.ID})
	if err != nil {
		t.Fatalf("create group: %v", err)
	}

	members, err := svc.GetGroupMembers(ctx, g.ID)
	if err != nil {
		t.Fatalf("get group members: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("expected 2 members, got %d", len(members))
	}

	if _, err := svc.GetGroupMembers(ctx, "missing"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound for missing group, got %v", err)
	}

	empty := []string{}
	if _, err := svc.UpdateGroup(ctx, g.ID, GroupUpdate{MemberIDs: &empty}); err != nil {
		t.Fatalf("update group: %v", err)
	}
	members, err = svc.GetGroupMembers(ctx, g.ID)
	if err != nil {
		t.Fatalf("get group members after clear: %v", err)
	}
	if len(members) != 0 {
		t.Fatalf("expected empty membership, got %d", len(members))
	}
}

func TestGetGroupMemberIDsKeepsDanglingMemberships(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()

	p1, err := svc.CreatePlayer(ctx, "", "", "")
	if err != nil {
		t.Fatalf("create player: %v", err)
	}
	p2, err := svc.CreatePlayer(ctx, "", "", "")
	if err != nil {
		t.Fatalf("create player: %v", err)
	}
	g, err := svc.CreateGroup(ctx, "lobby", "", []string{p1.ID, p2.ID})
	if err != nil {
		t.Fatalf("create group: %v", err)
	}

	if err := svc.db.Delete(&models.Player{}, "id = ?", p2.ID).Error; err != nil {
		t.Fatalf("delete player row: %v", err)
	}

	ids, err := svc.GetGroupMemberIDs(ctx, g.ID)
	if err != nil {
		t.Fatalf("get member ids: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected dangling membership to survive, got ids %v", ids)
	}

	members, err := svc.GetGroupMembers(ctx, g.ID)
	if err != nil {
		t.Fatalf("get members: %v", err)
	}
	if len(members) != 1 {
		t.Fatalf("joined members should skip the deleted player, got %d", len(members))
	}

	if _, err := svc.GetGroupMemberIDs(ctx, "missing"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
