/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package player

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/heimdall_signage/internal/models"
	"github.com/friendsincode/heimdall_signage/internal/playback"
)

// simulatedVideoLength stands in for real video duration when no display
// surface is attached.
const simulatedVideoLength = 10 * time.Second

// LogRenderer is a headless display surface that logs what it would show.
// Videos "end" after a fixed simulated length and documents report a single
// page, so the playlist walk keeps moving. Useful for soak testing a fleet
// without attached screens.
type LogRenderer struct {
	logger zerolog.Logger
	events chan playback.Event

	mu    sync.Mutex
	timer *time.Timer
}

// NewLogRenderer builds a headless renderer.
func NewLogRenderer(logger zerolog.Logger) *LogRenderer {
	return &LogRenderer{
		logger: logger.With().Str("component", "renderer").Logger(),
		events: make(chan playback.Event, 8),
	}
}

func (l *LogRenderer) Events() <-chan playback.Event { return l.events }

func (l *LogRenderer) ShowWaiting() {
	l.cancelTimer()
	l.logger.Info().Msg("waiting for command")
}

func (l *LogRenderer) ShowResolving() {
	l.cancelTimer()
	l.logger.Info().Msg("resolving playlist")
}

func (l *LogRenderer) ShowEmpty() {
	l.cancelTimer()
	l.logger.Info().Msg("playlist is empty")
}

func (l *LogRenderer) ShowInfo(message string) {
	l.cancelTimer()
	l.logger.Info().Str("message", message).Msg("info card")
}

func (l *LogRenderer) ShowImage(item models.PlaylistItem) {
	l.cancelTimer()
	l.logger.Info().Str("file", fileName(item)).Msg("showing image")
}

func (l *LogRenderer) ShowVideo(item models.PlaylistItem) {
	l.logger.Info().Str("file", fileName(item)).Msg("playing video")
	l.emit(playback.Event{Kind: playback.EventVideoLoaded, Duration: simulatedVideoLength})
	l.armVideoEnd()
}

func (l *LogRenderer) SeekVideo(offset time.Duration) {
	l.logger.Info().Dur("offset", offset).Msg("seeking video")
}

func (l *LogRenderer) RestartVideo() {
	l.logger.Info().Msg("restarting video")
	l.armVideoEnd()
}

func (l *LogRenderer) ShowPDF(item models.PlaylistItem) {
	l.cancelTimer()
	l.logger.Info().Str("file", fileName(item)).Msg("showing document")
	l.emit(playback.Event{Kind: playback.EventPDFLoaded, Pages: 1})
}

func (l *LogRenderer) SetPDFPage(page int) {
	l.logger.Info().Int("page", page).Msg("showing document page")
}

func (l *LogRenderer) armVideoEnd() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.timer != nil {
		l.timer.Stop()
	}
	l.timer = time.AfterFunc(simulatedVideoLength, func() {
		l.emit(playback.Event{Kind: playback.EventVideoEnded})
	})
}

func (l *LogRenderer) cancelTimer() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
}

func (l *LogRenderer) emit(ev playback.Event) {
	select {
	case l.events <- ev:
	default:
		l.logger.Warn().Int("kind", int(ev.Kind)).Msg("event dropped, engine not draining")
	}
}

func fileName(item models.PlaylistItem) string {
	if item.File == nil {
		return ""
	}
	return item.File.Name
}
