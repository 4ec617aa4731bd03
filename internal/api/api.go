/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package api exposes the HTTP surface: player registration and command
// streams, play scheduling, catalog CRUD and media upload/serving.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/friendsincode/heimdall_signage/internal/catalog"
	"github.com/friendsincode/heimdall_signage/internal/command"
	"github.com/friendsincode/heimdall_signage/internal/logbuffer"
	"github.com/friendsincode/heimdall_signage/internal/media"
	"github.com/friendsincode/heimdall_signage/internal/scheduler"
)

// API exposes HTTP handlers.
type API struct {
	catalog   *catalog.Service
	scheduler *scheduler.Service
	media     *media.Service
	hub       *command.Hub
	logBuffer *logbuffer.Buffer
	maxUpload int64
	logger    zerolog.Logger
}

// New creates the API handler set.
func New(cat *catalog.Service, sched *scheduler.Service, mediaSvc *media.Service, hub *command.Hub, logBuf *logbuffer.Buffer, maxUpload int64, logger zerolog.Logger) *API {
	return &API{
		catalog:   cat,
		scheduler: sched,
		media:     mediaSvc,
		hub:       hub,
		logBuffer: logBuf,
		maxUpload: maxUpload,
		logger:    logger.With().Str("component", "api").Logger(),
	}
}

// Routes mounts API routes on the provided router.
func (a *API) Routes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/healthz", a.handleHealth)
		r.Post("/connect", a.handleConnect)

		r.Route("/players", func(r chi.Router) {
			r.Get("/", a.handlePlayersList)
			r.Post("/", a.handlePlayersCreate)
			r.Route("/{playerID}", func(r chi.Router) {
				r.Get("/", a.handlePlayersGet)
				r.Put("/", a.handlePlayersUpdate)
				r.Delete("/", a.handlePlayersDelete)
				r.Post("/play", a.handlePlayOnPlayer)
				// Streaming: the player references itself by identifier here.
				r.Get("/commands", a.handleCommandStream)
			})
		})

		r.Route("/groups", func(r chi.Router) {
			r.Get("/", a.handleGroupsList)
			r.Post("/", a.handleGroupsCreate)
			r.Route("/{groupID}", func(r chi.Router) {
				r.Get("/", a.handleGroupsGet)
				r.Put("/", a.handleGroupsUpdate)
				r.Delete("/", a.handleGroupsDelete)
				r.Post("/play", a.handlePlayOnGroup)
			})
		})

		r.Route("/playlists", func(r chi.Router) {
			r.Get("/", a.handlePlaylistsList)
			r.Post("/", a.handlePlaylistsCreate)
			r.Route("/{playlistID}", func(r chi.Router) {
				r.Get("/", a.handlePlaylistsGet)
				r.Put("/", a.handlePlaylistsUpdate)
				r.Delete("/", a.handlePlaylistsDelete)
			})
		})

		r.Route("/files", func(r chi.Router) {
			r.Get("/", a.handleFilesList)
			r.Post("/", a.handleFileUpload)
			r.Get("/{fileID}", a.handleFilesGet)
			r.Delete("/{fileID}", a.handleFilesDelete)
			r.Post("/sweep", a.handleFilesSweep)
		})

		// Raw bytes: displays load their media from here.
		r.Get("/file/{fileID}", a.handleFileBytes)

		r.Get("/events", a.handleEventSocket)
		r.Get("/logs", a.handleLogs)
		r.Get("/status", a.handleStatus)
	})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleStatus reports per-player channel state for the admin surface.
func (a *API) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"players": a.hub.Status(),
	})
}

func (a *API) handleLogs(w http.ResponseWriter, r *http.Request) {
	if a.logBuffer == nil {
		writeError(w, http.StatusServiceUnavailable, "log_buffer_unavailable")
		return
	}

	params := logbuffer.QueryParams{
		Level:      r.URL.Query().Get("level"),
		Component:  r.URL.Query().Get("component"),
		PlayerID:   r.URL.Query().Get("player_id"),
		Search:     r.URL.Query().Get("search"),
		Descending: true,
	}
	if since := r.URL.Query().Get("since"); since != "" {
		if t, err := time.Parse(time.RFC3339, since); err == nil {
			params.Since = t
		}
	}
	params.Limit = 500
	if limit := r.URL.Query().Get("limit"); limit != "" {
		if n, err := strconv.Atoi(limit); err == nil && n > 0 {
			params.Limit = n
		}
	}
	if r.URL.Query().Get("order") == "asc" {
		params.Descending = false
	}

	entries := a.logBuffer.Query(params)
	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"count":   len(entries),
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}

func decodeJSON(r *http.Request, dst any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(dst)
}
