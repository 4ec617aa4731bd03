/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package player

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog"
	"github.com/ysmood/gson"

	"github.com/friendsincode/heimdall_signage/internal/models"
	"github.com/friendsincode/heimdall_signage/internal/playback"
)

//go:embed shell.html
var shellHTML string

// eventPollInterval bounds how stale a page media signal can get.
const eventPollInterval = 250 * time.Millisecond

// KioskConfig configures the browser backed display surface.
type KioskConfig struct {
	// BrowserURL is the DevTools control URL of an existing browser. Empty
	// launches a local fullscreen Chromium.
	BrowserURL string
	// FileURL maps a stored file ID to the URL the page loads bytes from.
	FileURL func(fileID string) string
}

// Kiosk renders content in a Chromium page driven over the DevTools
// protocol. Media events raised by the page script are bridged back to the
// playback engine.
type Kiosk struct {
	cfg      KioskConfig
	browser  *rod.Browser
	launcher *launcher.Launcher
	page     *rod.Page
	logger   zerolog.Logger
	events   chan playback.Event

	// Show calls must return immediately; evals run on this queue so they
	// still reach the page in call order.
	queue     chan func()
	done      chan struct{}
	closeOnce sync.Once
}

// NewKiosk connects to (or launches) a browser and loads the display shell.
func NewKiosk(ctx context.Context, cfg KioskConfig, logger zerolog.Logger) (*Kiosk, error) {
	if cfg.FileURL == nil {
		return nil, errors.New("kiosk: FileURL is required")
	}

	k := &Kiosk{
		cfg:    cfg,
		logger: logger.With().Str("component", "kiosk").Logger(),
		events: make(chan playback.Event, 8),
		queue:  make(chan func(), 16),
		done:   make(chan struct{}),
	}

	controlURL := cfg.BrowserURL
	if controlURL == "" {
		k.launcher = launcher.New().
			Headless(false).
			Set("kiosk").
			Set("start-fullscreen").
			Set("autoplay-policy", "no-user-gesture-required")
		url, err := k.launcher.Launch()
		if err != nil {
			return nil, fmt.Errorf("launch browser: %w", err)
		}
		controlURL = url
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect browser: %w", err)
	}
	k.browser = browser

	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		k.Close()
		return nil, fmt.Errorf("open page: %w", err)
	}
	k.page = page

	if err := page.SetDocumentContent(shellHTML); err != nil {
		k.Close()
		return nil, fmt.Errorf("load shell: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		k.Close()
		return nil, fmt.Errorf("shell load: %w", err)
	}

	go k.runQueue()
	go k.pollEvents()
	return k, nil
}

// Close tears down the page and any launched browser.
func (k *Kiosk) Close() {
	k.closeOnce.Do(func() {
		close(k.done)
		if k.browser != nil {
			if err := k.browser.Close(); err != nil {
				k.logger.Warn().Err(err).Msg("browser close")
			}
		}
		if k.launcher != nil {
			k.launcher.Cleanup()
		}
	})
}

func (k *Kiosk) Events() <-chan playback.Event { return k.events }

func (k *Kiosk) ShowWaiting() {
	k.eval(`() => window.heimdall.showCard("Waiting for content")`)
}

func (k *Kiosk) ShowResolving() {
	k.eval(`() => window.heimdall.showCard("Loading playlist")`)
}

func (k *Kiosk) ShowEmpty() {
	k.eval(`() => window.heimdall.showCard("Playlist is empty")`)
}

func (k *Kiosk) ShowInfo(message string) {
	k.eval(`(msg) => window.heimdall.showCard(msg)`, message)
}

func (k *Kiosk) ShowImage(item models.PlaylistItem) {
	k.eval(`(url) => window.heimdall.showImage(url)`, k.itemURL(item))
}

func (k *Kiosk) ShowVideo(item models.PlaylistItem) {
	k.eval(`(url) => window.heimdall.showVideo(url)`, k.itemURL(item))
}

func (k *Kiosk) SeekVideo(offset time.Duration) {
	k.eval(`(s) => window.heimdall.seekVideo(s)`, offset.Seconds())
}

func (k *Kiosk) RestartVideo() {
	k.eval(`() => window.heimdall.restartVideo()`)
}

func (k *Kiosk) ShowPDF(item models.PlaylistItem) {
	k.eval(`(url) => window.heimdall.showPDF(url)`, k.itemURL(item))
}

func (k *Kiosk) SetPDFPage(page int) {
	k.eval(`(p) => window.heimdall.setPDFPage(p)`, page)
}

func (k *Kiosk) itemURL(item models.PlaylistItem) string {
	if item.File == nil {
		return ""
	}
	return k.cfg.FileURL(item.File.ID)
}

func (k *Kiosk) eval(js string, args ...interface{}) {
	select {
	case k.queue <- func() {
		if _, err := k.page.Eval(js, args...); err != nil {
			k.logger.Error().Err(err).Msg("page eval failed")
			k.emit(playback.Event{Kind: playback.EventRenderError, Err: err})
		}
	}:
	case <-k.done:
	}
}

func (k *Kiosk) runQueue() {
	for {
		select {
		case fn := <-k.queue:
			fn()
		case <-k.done:
			return
		}
	}
}

// pollEvents drains media signals queued by the shell script.
// SetDocumentContent does not replay new-document scripts, so an exposed
// DevTools binding would never be installed; the shell queues instead.
func (k *Kiosk) pollEvents() {
	ticker := time.NewTicker(eventPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-k.done:
			return
		case <-ticker.C:
		}

		res, err := k.page.Eval(`() => window.heimdall.drainEvents()`)
		if err != nil {
			k.logger.Debug().Err(err).Msg("event poll failed")
			continue
		}
		for _, v := range res.Value.Arr() {
			k.handlePageEvent(v)
		}
	}
}

func (k *Kiosk) handlePageEvent(v gson.JSON) {
	switch v.Get("kind").Str() {
	case "videoLoaded":
		k.emit(playback.Event{
			Kind:     playback.EventVideoLoaded,
			Duration: time.Duration(v.Get("duration").Num() * float64(time.Second)),
		})
	case "videoEnded":
		k.emit(playback.Event{Kind: playback.EventVideoEnded})
	case "pdfLoaded":
		k.emit(playback.Event{Kind: playback.EventPDFLoaded, Pages: v.Get("pages").Int()})
	case "renderError":
		k.emit(playback.Event{
			Kind: playback.EventRenderError,
			Err:  errors.New(v.Get("message").Str()),
		})
	default:
		k.logger.Warn().Str("kind", v.Get("kind").Str()).Msg("unknown page event")
	}
}

func (k *Kiosk) emit(ev playback.Event) {
	select {
	case k.events <- ev:
	default:
		k.logger.Warn().Int("kind", int(ev.Kind)).Msg("event dropped, engine not draining")
	}
}
