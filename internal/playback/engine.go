/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package playback

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/heimdall_signage/internal/command"
	"github.com/friendsincode/heimdall_signage/internal/models"
)

// ErrNotFound is reported by a Resolver when the playlist does not exist.
// It parks the engine in StateNotFound until another command arrives; any
// other resolver error is treated as transient and retried.
var ErrNotFound = errors.New("playlist not found")

// Resolver fetches playlist definitions, items and file metadata included.
type Resolver interface {
	ResolvePlaylist(ctx context.Context, id string) (*models.Playlist, error)
}

// State is the engine's coarse position in its lifecycle.
type State int

const (
	StateUninitialized State = iota
	StateAwaitingCommand
	StateResolvingPlaylist
	StatePlaying
	StateEmpty
	StateNotFound
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateAwaitingCommand:
		return "awaiting_command"
	case StateResolvingPlaylist:
		return "resolving_playlist"
	case StatePlaying:
		return "playing"
	case StateEmpty:
		return "empty"
	case StateNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

const (
	// DefaultImageDuration is the image hold when the item sets none.
	DefaultImageDuration = 5 * time.Second
	// DefaultPDFPageDuration is the per-page hold when the item sets none.
	DefaultPDFPageDuration = 5 * time.Second
	// MinHold floors every configured hold so a zero or absurdly small
	// duration cannot spin the cursor.
	MinHold = 500 * time.Millisecond

	resolveRetryMin = time.Second
	resolveRetryMax = 30 * time.Second
)

// timerKind records what the single pending timer means when it fires.
type timerKind int

const (
	timerNone timerKind = iota
	timerStartDelay
	timerImageHold
	timerPDFPage
	timerResolveRetry
	timerErrorHold
)

type resolveResult struct {
	gen      int
	playlist *models.Playlist
	err      error
}

// Status is a point-in-time snapshot of the engine, safe to read from any
// goroutine.
type Status struct {
	State         State
	Seq           uint64
	PlaylistID    string
	Cursor        int
	VideoLoops    int
	PDFPage       int
	PDFPagesShown int
}

// Engine walks a playlist cursor according to per-media-kind completion
// rules. All state is owned by the single Run goroutine; external inputs
// arrive over channels, and exactly one timer is pending at any moment.
type Engine struct {
	resolver Resolver
	renderer Renderer
	logger   zerolog.Logger

	commands chan command.Command
	resolved chan resolveResult

	// Owned by the run loop.
	state      State
	cmd        command.Command
	hasCmd     bool
	gen        int
	playlist   *models.Playlist
	cursor     int
	aligned    bool
	videoLoops int
	pdfPage    int
	pdfPages   int
	pdfShown   int
	retryDelay time.Duration

	timer     *time.Timer
	timerC    <-chan time.Time
	timerWhat timerKind

	mu     sync.Mutex
	status Status
}

// NewEngine creates a playback engine. Run must be called before the engine
// reacts to anything.
func NewEngine(resolver Resolver, renderer Renderer, logger zerolog.Logger) *Engine {
	return &Engine{
		resolver: resolver,
		renderer: renderer,
		logger:   logger.With().Str("component", "playback").Logger(),
		commands: make(chan command.Command, 4),
		resolved: make(chan resolveResult, 1),
	}
}

// Submit hands a received command to the engine without blocking the caller.
// Latest wins if the loop is briefly busy; superseded queued commands are
// dropped, matching the channel's single-current-command contract.
func (e *Engine) Submit(cmd command.Command) {
	for {
		select {
		case e.commands <- cmd:
			return
		default:
			select {
			case <-e.commands:
			default:
			}
		}
	}
}

// Status returns a snapshot of the engine state.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// Run drives the engine until the context is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	e.state = StateAwaitingCommand
	e.renderer.ShowWaiting()
	e.publishStatus()

	events := e.renderer.Events()
	for {
		select {
		case <-ctx.Done():
			e.stopTimer()
			return ctx.Err()
		case cmd := <-e.commands:
			e.handleCommand(ctx, cmd)
		case res := <-e.resolved:
			e.handleResolved(res)
		case ev := <-events:
			e.handleEvent(ev)
		case <-e.timerC:
			e.handleTimer(ctx)
		}
		e.publishStatus()
	}
}

// handleCommand transitions to ResolvingPlaylist for a genuinely new
// command. A replayed duplicate of the current command (same Seq, as the
// channel re-delivers on reconnect) is a no-op; a new Seq restarts even for
// the same playlist id.
func (e *Engine) handleCommand(ctx context.Context, cmd command.Command) {
	if e.hasCmd && cmd.Seq == e.cmd.Seq {
		e.logger.Debug().Uint64("seq", cmd.Seq).Msg("duplicate command ignored")
		return
	}

	e.logger.Info().
		Uint64("seq", cmd.Seq).
		Str("playlist_id", cmd.PlaylistID).
		Time("start_at", cmd.StartAt).
		Msg("command received")

	e.cmd = cmd
	e.hasCmd = true
	e.gen++
	e.stopTimer()
	e.playlist = nil
	e.cursor = 0
	e.resetItemCounters()
	e.retryDelay = resolveRetryMin
	e.state = StateResolvingPlaylist
	e.renderer.ShowResolving()
	e.startResolve(ctx)
}

func (e *Engine) startResolve(ctx context.Context) {
	gen := e.gen
	id := e.cmd.PlaylistID
	go func() {
		playlist, err := e.resolver.ResolvePlaylist(ctx, id)
		select {
		case e.resolved <- resolveResult{gen: gen, playlist: playlist, err: err}:
		case <-ctx.Done():
		}
	}()
}

func (e *Engine) handleResolved(res resolveResult) {
	if res.gen != e.gen {
		// Fetch outcome for a superseded command.
		return
	}
	if res.err != nil {
		if errors.Is(res.err, ErrNotFound) {
			e.logger.Warn().Str("playlist_id", e.cmd.PlaylistID).Msg("playlist not found")
			e.state = StateNotFound
			e.renderer.ShowInfo("playlist not found")
			return
		}
		e.logger.Warn().Err(res.err).
			Dur("retry_in", e.retryDelay).
			Msg("playlist fetch failed, retrying")
		e.setTimer(e.retryDelay, timerResolveRetry)
		e.retryDelay *= 2
		if e.retryDelay > resolveRetryMax {
			e.retryDelay = resolveRetryMax
		}
		return
	}

	e.playlist = res.playlist
	e.cursor = 0
	e.resetItemCounters()

	if len(res.playlist.Items) == 0 {
		e.state = StateEmpty
		e.renderer.ShowEmpty()
		return
	}

	e.state = StatePlaying
	e.aligned = true
	if delay := time.Until(e.cmd.StartAt); delay > 0 {
		// Hold the resolving indicator until the synchronized start.
		e.setTimer(delay, timerStartDelay)
		return
	}
	e.enterItem()
}

func (e *Engine) handleTimer(ctx context.Context) {
	what := e.timerWhat
	e.timerWhat = timerNone
	e.timer = nil
	e.timerC = nil

	switch what {
	case timerResolveRetry:
		if e.state == StateResolvingPlaylist {
			e.startResolve(ctx)
		}
	case timerStartDelay:
		if e.state == StatePlaying {
			e.enterItem()
		}
	case timerImageHold, timerErrorHold:
		if e.state == StatePlaying {
			e.advance()
		}
	case timerPDFPage:
		if e.state == StatePlaying {
			e.pdfTick()
		}
	}
}

// enterItem dispatches the current item to the renderer by the bound file's
// media kind and arms whatever drives its completion.
func (e *Engine) enterItem() {
	item := e.playlist.Items[e.cursor]
	if item.File == nil {
		e.logger.Warn().Str("file_id", item.FileID).Msg("item has no file, skipping")
		e.renderer.ShowInfo("media unavailable")
		e.setTimer(MinHold, timerErrorHold)
		e.aligned = false
		return
	}

	switch item.File.Kind() {
	case models.KindImage:
		e.renderer.ShowImage(item)
		e.setTimer(holdDuration(item.ImageDisplayDurationMS, DefaultImageDuration), timerImageHold)
		e.aligned = false
	case models.KindVideo:
		e.videoLoops = 0
		e.renderer.ShowVideo(item)
		// Alignment, if pending, happens on EventVideoLoaded once the
		// duration is known.
	case models.KindPDF:
		e.pdfPage = 0
		e.pdfPages = 0
		e.pdfShown = 0
		e.renderer.ShowPDF(item)
		e.aligned = false
	default:
		// Static informational display. No completion signal; only a new
		// command moves on.
		e.renderer.ShowInfo(item.File.Name)
		e.aligned = false
	}
}

func (e *Engine) handleEvent(ev Event) {
	if e.state != StatePlaying || e.playlist == nil {
		return
	}
	item := e.playlist.Items[e.cursor]
	if item.File == nil {
		return
	}
	kind := item.File.Kind()

	switch ev.Kind {
	case EventRenderError:
		// Liveness over correctness: a failed item counts as completed
		// immediately so the cursor never stalls.
		e.logger.Warn().Err(ev.Err).Int("cursor", e.cursor).Msg("render error, skipping item")
		e.stopTimer()
		e.advance()

	case EventVideoLoaded:
		if kind != models.KindVideo || !e.aligned {
			return
		}
		e.aligned = false
		elapsed := time.Since(e.cmd.StartAt)
		if elapsed > 0 && ev.Duration > 0 {
			if offset := elapsed % ev.Duration; offset > 0 {
				e.logger.Debug().Dur("offset", offset).Msg("seeking into video for late join")
				e.renderer.SeekVideo(offset)
			}
		}

	case EventVideoEnded:
		if kind != models.KindVideo {
			return
		}
		e.videoLoops++
		if e.videoLoops < loopTarget(item.VideoLoopCount) {
			e.renderer.RestartVideo()
			return
		}
		e.advance()

	case EventPDFLoaded:
		if kind != models.KindPDF {
			return
		}
		if ev.Pages <= 0 {
			e.logger.Warn().Int("cursor", e.cursor).Msg("document reported no pages, skipping item")
			e.advance()
			return
		}
		e.pdfPages = ev.Pages
		e.pdfPage = 1
		e.pdfShown = 1
		e.setTimer(holdDuration(item.PDFPageDurationMS, DefaultPDFPageDuration), timerPDFPage)
	}
}

// pdfTick advances one page, wrapping 1→N→1, until the total pages shown
// across the item reaches N × loop count, then moves the cursor on.
func (e *Engine) pdfTick() {
	item := e.playlist.Items[e.cursor]
	budget := e.pdfPages * loopTarget(item.PDFDocumentLoopCount)
	if e.pdfShown >= budget {
		e.advance()
		return
	}
	e.pdfPage = e.pdfPage%e.pdfPages + 1
	e.renderer.SetPDFPage(e.pdfPage)
	e.pdfShown++
	e.setTimer(holdDuration(item.PDFPageDurationMS, DefaultPDFPageDuration), timerPDFPage)
}

// advance moves the cursor to the next item, wrapping to 0 after the last.
func (e *Engine) advance() {
	e.aligned = false
	e.resetItemCounters()
	e.cursor = (e.cursor + 1) % len(e.playlist.Items)
	e.enterItem()
}

func (e *Engine) resetItemCounters() {
	e.videoLoops = 0
	e.pdfPage = 0
	e.pdfPages = 0
	e.pdfShown = 0
}

func (e *Engine) setTimer(d time.Duration, what timerKind) {
	e.stopTimer()
	e.timer = time.NewTimer(d)
	e.timerC = e.timer.C
	e.timerWhat = what
}

func (e *Engine) stopTimer() {
	if e.timer != nil {
		if !e.timer.Stop() {
			select {
			case <-e.timer.C:
			default:
			}
		}
		e.timer = nil
		e.timerC = nil
	}
	e.timerWhat = timerNone
}

func (e *Engine) publishStatus() {
	s := Status{
		State:         e.state,
		Cursor:        e.cursor,
		VideoLoops:    e.videoLoops,
		PDFPage:       e.pdfPage,
		PDFPagesShown: e.pdfShown,
	}
	if e.hasCmd {
		s.Seq = e.cmd.Seq
	}
	if e.playlist != nil {
		s.PlaylistID = e.playlist.ID
	}
	e.mu.Lock()
	e.status = s
	e.mu.Unlock()
}

func loopTarget(n *int) int {
	if n == nil || *n < 1 {
		return 1
	}
	return *n
}

func holdDuration(ms *int64, def time.Duration) time.Duration {
	d := def
	if ms != nil {
		d = time.Duration(*ms) * time.Millisecond
	}
	if d < MinHold {
		d = MinHold
	}
	return d
}
