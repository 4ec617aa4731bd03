/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package playback implements the client-side playlist state machine. It
// consumes play commands, resolves the target playlist, and walks a cursor
// through the items according to per-media-kind completion rules.
package playback

import (
	"time"

	"github.com/friendsincode/heimdall_signage/internal/models"
)

// EventKind identifies a renderer signal.
type EventKind int

const (
	// EventVideoLoaded fires once video metadata is available.
	EventVideoLoaded EventKind = iota
	// EventVideoEnded fires on each natural end of the current video.
	EventVideoEnded
	// EventPDFLoaded fires once a document has rendered and its page count
	// is known.
	EventPDFLoaded
	// EventRenderError reports that the current item failed to display.
	EventRenderError
)

// Event is a signal from the renderer back to the engine. Only the fields
// relevant to the Kind are set.
type Event struct {
	Kind     EventKind
	Duration time.Duration // EventVideoLoaded
	Pages    int           // EventPDFLoaded
	Err      error         // EventRenderError
}

// Renderer is the display surface the engine drives. Implementations must
// not block in Show calls; long work happens behind the scenes and completes
// via Events. The engine serializes all calls from its run loop.
type Renderer interface {
	// ShowWaiting displays the neutral no-command-yet state.
	ShowWaiting()
	// ShowResolving displays an indicator while a playlist fetch is in
	// flight. Must replace any stale content.
	ShowResolving()
	// ShowEmpty displays the explicit zero-item-playlist state.
	ShowEmpty()
	// ShowInfo displays a static informational message. Used for
	// unrecognized media kinds and terminal conditions.
	ShowInfo(message string)

	// ShowImage displays the item's image.
	ShowImage(item models.PlaylistItem)
	// ShowVideo starts the item's video from position zero. The renderer
	// emits EventVideoLoaded when the duration is known and EventVideoEnded
	// on each natural end.
	ShowVideo(item models.PlaylistItem)
	// SeekVideo moves current video playback to the given offset.
	SeekVideo(offset time.Duration)
	// RestartVideo restarts the current video from position zero.
	RestartVideo()
	// ShowPDF displays page 1 of the item's document and emits
	// EventPDFLoaded with the page count.
	ShowPDF(item models.PlaylistItem)
	// SetPDFPage displays the given 1-based page of the current document.
	SetPDFPage(page int)

	// Events delivers renderer signals to the engine.
	Events() <-chan Event
}
