/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/friendsincode/heimdall_signage/internal/catalog"
)

type playlistRequest struct {
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Items       []catalog.ItemInput `json:"items"`
}

type playlistUpdateRequest struct {
	Name        *string              `json:"name"`
	Description *string              `json:"description"`
	Items       *[]catalog.ItemInput `json:"items"`
}

func (a *API) handlePlaylistsList(w http.ResponseWriter, r *http.Request) {
	playlists, err := a.catalog.ListPlaylists(r.Context())
	if err != nil {
		a.logger.Error().Err(err).Msg("list playlists failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, playlists)
}

func (a *API) handlePlaylistsCreate(w http.ResponseWriter, r *http.Request) {
	var req playlistRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name_required")
		return
	}

	playlist, err := a.catalog.CreatePlaylist(r.Context(), req.Name, req.Description, req.Items)
	if err != nil {
		a.logger.Error().Err(err).Msg("create playlist failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusCreated, playlist)
}

func (a *API) handlePlaylistsGet(w http.ResponseWriter, r *http.Request) {
	playlist, err := a.catalog.GetPlaylist(r.Context(), chi.URLParam(r, "playlistID"))
	if err == catalog.ErrNotFound {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, playlist)
}

func (a *API) handlePlaylistsUpdate(w http.ResponseWriter, r *http.Request) {
	var req playlistUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	playlist, err := a.catalog.UpdatePlaylist(r.Context(), chi.URLParam(r, "playlistID"), catalog.PlaylistUpdate{
		Name:        req.Name,
		Description: req.Description,
		Items:       req.Items,
	})
	if err == catalog.ErrNotFound {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, playlist)
}

func (a *API) handlePlaylistsDelete(w http.ResponseWriter, r *http.Request) {
	err := a.catalog.DeletePlaylist(r.Context(), chi.URLParam(r, "playlistID"))
	if err == catalog.ErrNotFound {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

type playerRequest struct {
	Identifier  string `json:"identifier"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type playerUpdateRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

func (a *API) handlePlayersList(w http.ResponseWriter, r *http.Request) {
	players, err := a.catalog.ListPlayers(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, players)
}

func (a *API) handlePlayersCreate(w http.ResponseWriter, r *http.Request) {
	var req playerRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_json")
			return
		}
	}

	player, err := a.catalog.CreatePlayer(r.Context(), req.Identifier, req.Name, req.Description)
	if err != nil {
		a.logger.Error().Err(err).Msg("create player failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusCreated, player)
}

func (a *API) handlePlayersGet(w http.ResponseWriter, r *http.Request) {
	player, err := a.resolvePlayerRef(r, chi.URLParam(r, "playerID"))
	if err == catalog.ErrNotFound {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, player)
}

func (a *API) handlePlayersUpdate(w http.ResponseWriter, r *http.Request) {
	var req playerUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	player, err := a.catalog.UpdatePlayer(r.Context(), chi.URLParam(r, "playerID"), req.Name, req.Description)
	if err == catalog.ErrNotFound {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, player)
}

func (a *API) handlePlayersDelete(w http.ResponseWriter, r *http.Request) {
	err := a.catalog.DeletePlayer(r.Context(), chi.URLParam(r, "playerID"))
	if err == catalog.ErrNotFound {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

type groupRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	MemberIDs   []string `json:"member_ids"`
}

type groupUpdateRequest struct {
	Name        *string   `json:"name"`
	Description *string   `json:"description"`
	MemberIDs   *[]string `json:"member_ids"`
}

func (a *API) handleGroupsList(w http.ResponseWriter, r *http.Request) {
	groups, err := a.catalog.ListGroups(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, groups)
}

func (a *API) handleGroupsCreate(w http.ResponseWriter, r *http.Request) {
	var req groupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name_required")
		return
	}

	group, err := a.catalog.CreateGroup(r.Context(), req.Name, req.Description, req.MemberIDs)
	if err != nil {
		a.logger.Error().Err(err).Msg("create group failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusCreated, group)
}

func (a *API) handleGroupsGet(w http.ResponseWriter, r *http.Request) {
	group, err := a.catalog.GetGroup(r.Context(), chi.URLParam(r, "groupID"))
	if err == catalog.ErrNotFound {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	members, err := a.catalog.GetGroupMembers(r.Context(), group.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"group":   group,
		"members": members,
	})
}

func (a *API) handleGroupsUpdate(w http.ResponseWriter, r *http.Request) {
	var req groupUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	group, err := a.catalog.UpdateGroup(r.Context(), chi.URLParam(r, "groupID"), catalog.GroupUpdate{
		Name:        req.Name,
		Description: req.Description,
		MemberIDs:   req.MemberIDs,
	})
	if err == catalog.ErrNotFound {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, group)
}

func (a *API) handleGroupsDelete(w http.ResponseWriter, r *http.Request) {
	err := a.catalog.DeleteGroup(r.Context(), chi.URLParam(r, "groupID"))
	if err == catalog.ErrNotFound {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
