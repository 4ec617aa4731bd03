/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	ws "nhooyr.io/websocket"

	"github.com/friendsincode/heimdall_signage/internal/catalog"
	"github.com/friendsincode/heimdall_signage/internal/models"
	"github.com/friendsincode/heimdall_signage/internal/telemetry"
)

const streamHeartbeat = 25 * time.Second

type connectRequest struct {
	Identifier string `json:"identifier"`
}

// handleConnect performs idempotent player registration.
func (a *API) handleConnect(w http.ResponseWriter, r *http.Request) {
	var req connectRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_json")
			return
		}
	}

	player, err := a.scheduler.Connect(r.Context(), req.Identifier)
	if err != nil {
		a.logger.Error().Err(err).Msg("connect failed")
		writeError(w, http.StatusInternalServerError, "connect_failed")
		return
	}
	writeJSON(w, http.StatusOK, player)
}

type playRequest struct {
	PlaylistID string `json:"playlist_id"`
}

func (a *API) handlePlayOnPlayer(w http.ResponseWriter, r *http.Request) {
	var req playRequest
	if err := decodeJSON(r, &req); err != nil || req.PlaylistID == "" {
		writeError(w, http.StatusBadRequest, "playlist_id_required")
		return
	}

	cmd, err := a.scheduler.PlayOnPlayer(r.Context(), req.PlaylistID, chi.URLParam(r, "playerID"))
	if err == catalog.ErrNotFound {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	if err != nil {
		a.logger.Error().Err(err).Msg("play on player failed")
		writeError(w, http.StatusInternalServerError, "play_failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"command": cmd})
}

func (a *API) handlePlayOnGroup(w http.ResponseWriter, r *http.Request) {
	var req playRequest
	if err := decodeJSON(r, &req); err != nil || req.PlaylistID == "" {
		writeError(w, http.StatusBadRequest, "playlist_id_required")
		return
	}

	result, err := a.scheduler.PlayOnGroup(r.Context(), req.PlaylistID, chi.URLParam(r, "groupID"))
	if err == catalog.ErrNotFound {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	if err != nil {
		a.logger.Error().Err(err).Msg("play on group failed")
		writeError(w, http.StatusInternalServerError, "play_failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// resolvePlayerRef accepts either a player identifier (how displays refer to
// themselves) or a raw player id.
func (a *API) resolvePlayerRef(r *http.Request, ref string) (*models.Player, error) {
	player, err := a.catalog.GetPlayerByIdentifier(r.Context(), ref)
	if err == catalog.ErrNotFound {
		return a.catalog.GetPlayer(r.Context(), ref)
	}
	return player, err
}

// handleCommandStream is the SSE command channel. The latest command is
// replayed on attach regardless of Last-Event-ID, then subsequent commands
// stream until the client disconnects. Event ids carry the command Seq so
// reconnecting clients can report what they last saw.
func (a *API) handleCommandStream(w http.ResponseWriter, r *http.Request) {
	player, err := a.resolvePlayerRef(r, chi.URLParam(r, "playerID"))
	if err == catalog.ErrNotFound {
		writeError(w, http.StatusNotFound, "player_not_found")
		return
	}
	if err != nil {
		a.logger.Error().Err(err).Msg("player lookup failed")
		writeError(w, http.StatusInternalServerError, "lookup_failed")
		return
	}

	var lastSeen uint64
	if raw := r.Header.Get("Last-Event-ID"); raw != "" {
		lastSeen, _ = strconv.ParseUint(raw, 10, 64)
	} else if raw := r.URL.Query().Get("last_event_id"); raw != "" {
		lastSeen, _ = strconv.ParseUint(raw, 10, 64)
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	var flusher http.Flusher
	if f, ok := w.(http.Flusher); ok {
		flusher = f
	} else {
		flusher = &rcFlusher{rc: http.NewResponseController(w)}
	}

	telemetry.CommandStreamsActive.Inc()
	defer telemetry.CommandStreamsActive.Dec()

	sub := a.hub.Subscribe(r.Context(), player.ID, lastSeen)
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	a.logger.Debug().
		Str("player_id", player.ID).
		Uint64("last_seen", lastSeen).
		Msg("command stream attached")

	heartbeat := time.NewTicker(streamHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case cmd, ok := <-sub:
			if !ok {
				return
			}
			payload, err := json.Marshal(cmd)
			if err != nil {
				a.logger.Error().Err(err).Msg("command marshal failed")
				continue
			}
			if _, err := fmt.Fprintf(w, "id: %d\nevent: play\ndata: %s\n\n", cmd.Seq, payload); err != nil {
				return
			}
			flusher.Flush()
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": heartbeat\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// handleEventSocket is the admin websocket: every command published to any
// player is mirrored to connected monitors as JSON text frames.
func (a *API) handleEventSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := ws.Accept(w, r, &ws.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		a.logger.Debug().Err(err).Msg("websocket accept failed")
		return
	}
	defer conn.Close(ws.StatusNormalClosure, "")

	telemetry.EventSocketClients.Inc()
	defer telemetry.EventSocketClients.Dec()

	ctx := conn.CloseRead(r.Context())
	monitor := a.hub.Monitor(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case cmd, ok := <-monitor:
			if !ok {
				return
			}
			payload, err := json.Marshal(cmd)
			if err != nil {
				continue
			}
			if err := conn.Write(ctx, ws.MessageText, payload); err != nil {
				return
			}
		}
	}
}

// rcFlusher adapts http.ResponseController to http.Flusher for wrapped
// response writers.
type rcFlusher struct {
	rc *http.ResponseController
}

func (f *rcFlusher) Flush() {
	_ = f.rc.Flush()
}
