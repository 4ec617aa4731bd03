/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package player

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/heimdall_signage/internal/command"
	"github.com/friendsincode/heimdall_signage/internal/models"
	"github.com/friendsincode/heimdall_signage/internal/playback"
)

func TestConnectDecodesPlayer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/connect" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var req struct {
			Identifier string `json:"identifier"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Identifier != "lobby-1" {
			t.Errorf("identifier = %q, want lobby-1", req.Identifier)
		}
		_ = json.NewEncoder(w).Encode(models.Player{ID: "p1", Identifier: "lobby-1"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, zerolog.Nop())
	player, err := c.Connect(context.Background(), "lobby-1")
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if player.ID != "p1" || player.Identifier != "lobby-1" {
		t.Fatalf("unexpected player %+v", player)
	}
}

func TestResolvePlaylistNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"not_found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, zerolog.Nop())
	_, err := c.ResolvePlaylist(context.Background(), "gone")
	if err != playback.ErrNotFound {
		t.Fatalf("err = %v, want playback.ErrNotFound", err)
	}
}

func TestResolvePlaylistDecodesItems(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/playlists/pl1" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(models.Playlist{
			ID:   "pl1",
			Name: "lobby loop",
			Items: []models.PlaylistItem{
				{ID: "i1", Position: 0, File: &models.MediaFile{ID: "f1", MimeType: "image/png"}},
			},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, zerolog.Nop())
	pl, err := c.ResolvePlaylist(context.Background(), "pl1")
	if err != nil {
		t.Fatalf("ResolvePlaylist: %v", err)
	}
	if len(pl.Items) != 1 || pl.Items[0].File == nil || pl.Items[0].File.Kind() != models.KindImage {
		t.Fatalf("unexpected playlist %+v", pl)
	}
}

func TestStreamCommandsDispatchesAndReplaysLastSeen(t *testing.T) {
	var mu sync.Mutex
	var lastEventIDs []string
	connects := 0

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		connects++
		n := connects
		lastEventIDs = append(lastEventIDs, r.Header.Get("Last-Event-ID"))
		mu.Unlock()

		w.Header().Set("Content-Type", "text/event-stream")
		cmd := command.Command{PlayerID: "p1", PlaylistID: "pl1", Seq: uint64(n), StartAt: time.Now()}
		payload, _ := json.Marshal(cmd)
		fmt.Fprintf(w, ": heartbeat\n\n")
		fmt.Fprintf(w, "id: %d\nevent: play\ndata: %s\n\n", cmd.Seq, payload)
		// Close the stream so the client reconnects.
	}))
	defer srv.Close()

	got := make(chan command.Command, 4)
	c := NewClient(srv.URL, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		_ = c.StreamCommands(ctx, "lobby-1", func(cmd command.Command) { got <- cmd })
	}()

	first := <-got
	if first.Seq != 1 || first.PlaylistID != "pl1" {
		t.Fatalf("first command = %+v", first)
	}

	// The second connection carries the seq of the first command.
	select {
	case second := <-got:
		if second.Seq != 2 {
			t.Fatalf("second command seq = %d, want 2", second.Seq)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reconnect")
	}
	cancel()

	mu.Lock()
	defer mu.Unlock()
	if len(lastEventIDs) < 2 {
		t.Fatalf("expected at least 2 connections, got %d", len(lastEventIDs))
	}
	if lastEventIDs[0] != "" {
		t.Fatalf("first connection Last-Event-ID = %q, want empty", lastEventIDs[0])
	}
	if lastEventIDs[1] != "1" {
		t.Fatalf("second connection Last-Event-ID = %q, want 1", lastEventIDs[1])
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "player.yml")
	if err := os.WriteFile(path, []byte("server_url: http://signage:8080\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.ServerURL != "http://signage:8080" {
		t.Fatalf("ServerURL = %q", cfg.ServerURL)
	}
	if cfg.StateDir != dir {
		t.Fatalf("StateDir = %q, want %q", cfg.StateDir, dir)
	}
	if cfg.Renderer != "kiosk" {
		t.Fatalf("Renderer = %q, want kiosk", cfg.Renderer)
	}
}

func TestLoadConfigRejectsMissingServerAndBadRenderer(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "empty.yml")
	if err := os.WriteFile(path, []byte("name: lobby\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected error for missing server_url")
	}

	path = filepath.Join(dir, "bad.yml")
	if err := os.WriteFile(path, []byte("server_url: http://x\nrenderer: hologram\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected error for unknown renderer")
	}
}

func TestLogRendererKeepsPlaylistMoving(t *testing.T) {
	lr := NewLogRenderer(zerolog.Nop())

	lr.ShowVideo(models.PlaylistItem{File: &models.MediaFile{ID: "f1", Name: "ad.mp4", MimeType: "video/mp4"}})
	select {
	case ev := <-lr.Events():
		if ev.Kind != playback.EventVideoLoaded || ev.Duration != simulatedVideoLength {
			t.Fatalf("unexpected event %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("no video loaded event")
	}

	lr.ShowPDF(models.PlaylistItem{File: &models.MediaFile{ID: "f2", MimeType: "application/pdf"}})
	select {
	case ev := <-lr.Events():
		if ev.Kind != playback.EventPDFLoaded || ev.Pages != 1 {
			t.Fatalf("unexpected event %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("no pdf loaded event")
	}
}
