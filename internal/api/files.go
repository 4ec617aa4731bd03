/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/friendsincode/heimdall_signage/internal/catalog"
	"github.com/friendsincode/heimdall_signage/internal/media"
)

const defaultMaxUpload = 512 << 20 // 512 MB

// handleFileUpload accepts a multipart upload under the "file" field. The
// declared Content-Type of the part must be on the allowlist.
func (a *API) handleFileUpload(w http.ResponseWriter, r *http.Request) {
	limit := a.maxUpload
	if limit <= 0 {
		limit = defaultMaxUpload
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file_required")
		return
	}
	defer file.Close()

	name := r.FormValue("name")
	if name == "" {
		name = header.Filename
	}
	mimeType := header.Header.Get("Content-Type")

	f, err := a.media.Upload(r.Context(), name, mimeType, header.Size, file)
	if errors.Is(err, media.ErrUnsupportedType) {
		writeError(w, http.StatusUnsupportedMediaType, "unsupported_media_type")
		return
	}
	if err != nil {
		a.logger.Error().Err(err).Msg("upload failed")
		writeError(w, http.StatusInternalServerError, "upload_failed")
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

func (a *API) handleFilesList(w http.ResponseWriter, r *http.Request) {
	files, err := a.catalog.ListFiles(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, files)
}

func (a *API) handleFilesGet(w http.ResponseWriter, r *http.Request) {
	f, err := a.catalog.GetFile(r.Context(), chi.URLParam(r, "fileID"))
	if err == catalog.ErrNotFound {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (a *API) handleFilesDelete(w http.ResponseWriter, r *http.Request) {
	err := a.media.Delete(r.Context(), chi.URLParam(r, "fileID"))
	if err == catalog.ErrNotFound {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	if err != nil {
		a.logger.Error().Err(err).Msg("file delete failed")
		writeError(w, http.StatusInternalServerError, "delete_failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// handleFileBytes streams a blob to a display. Timeout middleware skips this
// route; large videos may take a while on slow links.
func (a *API) handleFileBytes(w http.ResponseWriter, r *http.Request) {
	rc, f, err := a.media.Open(r.Context(), chi.URLParam(r, "fileID"))
	if err == catalog.ErrNotFound {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	if err != nil {
		a.logger.Error().Err(err).Msg("open blob failed")
		writeError(w, http.StatusInternalServerError, "read_failed")
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", f.MimeType)
	if f.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(f.Size, 10))
	}
	w.Header().Set("Cache-Control", "public, max-age=86400")
	if _, err := io.Copy(w, rc); err != nil {
		a.logger.Debug().Err(err).Str("file_id", f.ID).Msg("blob stream interrupted")
	}
}

func (a *API) handleFilesSweep(w http.ResponseWriter, r *http.Request) {
	remove := r.URL.Query().Get("remove") == "1"
	result, err := a.media.SweepOrphans(r.Context(), remove)
	if err != nil {
		a.logger.Error().Err(err).Msg("orphan sweep failed")
		writeError(w, http.StatusInternalServerError, "sweep_failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}
