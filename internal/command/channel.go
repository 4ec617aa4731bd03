/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package command implements the per-player play-command channel: a
// broadcast primitive that remembers the single most recent command per
// player and replays it to every newly attached subscriber before streaming
// subsequent publishes.
package command

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Command instructs one player to start a playlist at a synchronized time.
// Immutable once published; a new command supersedes it, nothing mutates it.
type Command struct {
	PlayerID   string    `json:"player_id"`
	PlaylistID string    `json:"playlist_id"`
	Seq        uint64    `json:"seq"`
	IssuedAt   time.Time `json:"issued_at"`
	StartAt    time.Time `json:"start_at"`
}

// subscriberBuffer is the per-subscriber channel capacity. Only the latest
// command matters to a display, so overflow drops the oldest buffered entry.
const subscriberBuffer = 16

type subscriber struct {
	ch chan Command
}

// playerState is the per-player critical section: the current command, the
// local sequence counter, and the attached subscribers all change together
// under one mutex so an attaching subscriber sees a racing publish exactly
// once (replay or live).
type playerState struct {
	mu      sync.Mutex
	seq     uint64
	current *Command
	subs    map[*subscriber]struct{}
}

// Hub routes play commands to players. State is partitioned per player id;
// there is no cross-player lock, so unrelated players never contend.
type Hub struct {
	mu      sync.RWMutex
	players map[string]*playerState

	monitorMu sync.Mutex
	monitors  map[*subscriber]struct{}

	// forward mirrors locally published commands to the relay, when one is
	// attached. Never invoked for injected (relayed-in) commands.
	forwardMu sync.RWMutex
	forward   func(Command)

	logger zerolog.Logger
}

// NewHub creates a command hub.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		players:  make(map[string]*playerState),
		monitors: make(map[*subscriber]struct{}),
		logger:   logger.With().Str("component", "command_hub").Logger(),
	}
}

// player returns the state for a player id, creating it lazily. Publishing
// for a player nobody has registered is not an error.
func (h *Hub) player(playerID string) *playerState {
	h.mu.RLock()
	st, ok := h.players[playerID]
	h.mu.RUnlock()
	if ok {
		return st
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if st, ok = h.players[playerID]; ok {
		return st
	}
	st = &playerState{subs: make(map[*subscriber]struct{})}
	h.players[playerID] = st
	return st
}

// Subscribe attaches a listener for a player's commands. If a current
// command exists it is delivered first, regardless of lastSeenSeq: the same
// command observed twice across a reconnect is a contract-tolerated
// duplicate, and consumers treat it as a no-op. The channel then carries
// every subsequent publish in order until ctx is cancelled, at which point
// it is closed and the subscription's resources are released. Detaching
// never disturbs other subscribers or the stored current command.
func (h *Hub) Subscribe(ctx context.Context, playerID string, lastSeenSeq uint64) <-chan Command {
	st := h.player(playerID)
	sub := &subscriber{ch: make(chan Command, subscriberBuffer)}

	st.mu.Lock()
	if st.current != nil {
		sub.ch <- *st.current
	}
	st.subs[sub] = struct{}{}
	count := len(st.subs)
	st.mu.Unlock()

	h.logger.Debug().
		Str("player_id", playerID).
		Uint64("last_seen_seq", lastSeenSeq).
		Int("subscribers", count).
		Msg("subscriber attached")

	go func() {
		<-ctx.Done()
		st.mu.Lock()
		delete(st.subs, sub)
		close(sub.ch)
		st.mu.Unlock()
		h.logger.Debug().Str("player_id", playerID).Msg("subscriber detached")
	}()

	return sub.ch
}

// Publish records cmd parameters as the player's current command and fans it
// out to every attached subscriber. It never fails: zero subscribers is
// fine, the command is stored for later replay.
func (h *Hub) Publish(playerID, playlistID string, startAt time.Time) Command {
	st := h.player(playerID)

	st.mu.Lock()
	st.seq++
	cmd := Command{
		PlayerID:   playerID,
		PlaylistID: playlistID,
		Seq:        st.seq,
		IssuedAt:   time.Now(),
		StartAt:    startAt,
	}
	st.current = &cmd
	for sub := range st.subs {
		deliver(sub.ch, cmd)
	}
	st.mu.Unlock()

	h.notifyMonitors(cmd)

	h.forwardMu.RLock()
	fwd := h.forward
	h.forwardMu.RUnlock()
	if fwd != nil {
		fwd(cmd)
	}

	h.logger.Info().
		Str("player_id", playerID).
		Str("playlist_id", playlistID).
		Uint64("seq", cmd.Seq).
		Time("start_at", startAt).
		Msg("command published")
	return cmd
}

// Inject stores and fans out a command that originated on another instance.
// It is not re-forwarded, so relayed commands cannot loop. The local
// sequence counter is raised to at least the injected sequence so later
// local publishes still supersede it.
func (h *Hub) Inject(cmd Command) {
	st := h.player(cmd.PlayerID)

	st.mu.Lock()
	if cmd.Seq > st.seq {
		st.seq = cmd.Seq
	}
	stored := cmd
	st.current = &stored
	for sub := range st.subs {
		deliver(sub.ch, cmd)
	}
	st.mu.Unlock()

	h.notifyMonitors(cmd)
}

// deliver sends without blocking the publisher. On a full buffer the oldest
// entry is dropped first: a display that fell behind only ever needs the
// latest command.
func deliver(ch chan Command, cmd Command) {
	select {
	case ch <- cmd:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- cmd:
	default:
	}
}

// Current returns the player's current command, if any.
func (h *Hub) Current(playerID string) (Command, bool) {
	h.mu.RLock()
	st, ok := h.players[playerID]
	h.mu.RUnlock()
	if !ok {
		return Command{}, false
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if st.current == nil {
		return Command{}, false
	}
	return *st.current, true
}

// SetForwarder registers the relay mirror for locally published commands.
func (h *Hub) SetForwarder(fn func(Command)) {
	h.forwardMu.Lock()
	h.forward = fn
	h.forwardMu.Unlock()
}

// Monitor attaches an all-players feed, used by the admin event stream.
// Best-effort: slow monitors lose oldest entries, never block publishers.
func (h *Hub) Monitor(ctx context.Context) <-chan Command {
	sub := &subscriber{ch: make(chan Command, 64)}

	h.monitorMu.Lock()
	h.monitors[sub] = struct{}{}
	h.monitorMu.Unlock()

	go func() {
		<-ctx.Done()
		h.monitorMu.Lock()
		delete(h.monitors, sub)
		close(sub.ch)
		h.monitorMu.Unlock()
	}()

	return sub.ch
}

func (h *Hub) notifyMonitors(cmd Command) {
	h.monitorMu.Lock()
	for sub := range h.monitors {
		deliver(sub.ch, cmd)
	}
	h.monitorMu.Unlock()
}

// PlayerStatus summarizes one player's channel state for the ops surface.
type PlayerStatus struct {
	PlayerID    string   `json:"player_id"`
	Subscribers int      `json:"subscribers"`
	Current     *Command `json:"current,omitempty"`
}

// Status reports every known player channel.
func (h *Hub) Status() []PlayerStatus {
	h.mu.RLock()
	ids := make([]string, 0, len(h.players))
	states := make([]*playerState, 0, len(h.players))
	for id, st := range h.players {
		ids = append(ids, id)
		states = append(states, st)
	}
	h.mu.RUnlock()

	out := make([]PlayerStatus, 0, len(ids))
	for i, st := range states {
		st.mu.Lock()
		status := PlayerStatus{PlayerID: ids[i], Subscribers: len(st.subs)}
		if st.current != nil {
			c := *st.current
			status.Current = &c
		}
		st.mu.Unlock()
		out = append(out, status)
	}
	return out
}
