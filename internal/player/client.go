/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package player is the display-side agent. It registers with the server,
// consumes the command stream, and drives the playback engine against a
// renderer.
package player

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/heimdall_signage/internal/command"
	"github.com/friendsincode/heimdall_signage/internal/models"
	"github.com/friendsincode/heimdall_signage/internal/playback"
)

const (
	reconnectMin = time.Second
	reconnectMax = 30 * time.Second
)

// Client talks to the signage server's HTTP API.
type Client struct {
	baseURL string
	http    *http.Client
	logger  zerolog.Logger

	// Seq of the last command handed to the engine, replayed to the server
	// on reconnect via Last-Event-ID.
	lastSeen atomic.Uint64
}

// NewClient builds a client for the given server base URL.
func NewClient(baseURL string, logger zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		logger:  logger.With().Str("component", "client").Logger(),
	}
}

// Connect registers this display with the server. An empty identifier asks
// the server to mint one; a known identifier recovers the existing record.
func (c *Client) Connect(ctx context.Context, identifier string) (*models.Player, error) {
	body := fmt.Sprintf(`{"identifier":%q}`, identifier)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/connect", strings.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("connect: server returned %s", resp.Status)
	}

	var player models.Player
	if err := json.NewDecoder(resp.Body).Decode(&player); err != nil {
		return nil, fmt.Errorf("connect: decode response: %w", err)
	}
	return &player, nil
}

// ResolvePlaylist fetches a playlist with its ordered items and file
// metadata. Satisfies the playback engine's resolver contract.
func (c *Client) ResolvePlaylist(ctx context.Context, id string) (*models.Playlist, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/playlists/"+id, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch playlist: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, playback.ErrNotFound
	default:
		return nil, fmt.Errorf("fetch playlist: server returned %s", resp.Status)
	}

	var playlist models.Playlist
	if err := json.NewDecoder(resp.Body).Decode(&playlist); err != nil {
		return nil, fmt.Errorf("fetch playlist: decode response: %w", err)
	}
	return &playlist, nil
}

// FileURL returns the media byte URL for a stored file, for renderers that
// load content over HTTP.
func (c *Client) FileURL(fileID string) string {
	return c.baseURL + "/api/v1/file/" + fileID
}

// StreamCommands consumes the player's command stream and hands each command
// to submit. It reconnects with backoff until the context is cancelled,
// replaying the last seen sequence number so the server can resend the
// current command.
func (c *Client) StreamCommands(ctx context.Context, identifier string, submit func(command.Command)) error {
	delay := reconnectMin
	for {
		err := c.streamOnce(ctx, identifier, submit)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Warn().Err(err).Dur("retry_in", delay).Msg("command stream disconnected")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > reconnectMax {
			delay = reconnectMax
		}
	}
}

func (c *Client) streamOnce(ctx context.Context, identifier string, submit func(command.Command)) error {
	url := c.baseURL + "/api/v1/players/" + identifier + "/commands"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	if seq := c.lastSeen.Load(); seq > 0 {
		req.Header.Set("Last-Event-ID", fmt.Sprintf("%d", seq))
	}

	// The stream is long lived; only the dial phase is bounded.
	stream := &http.Client{Transport: c.http.Transport}
	resp, err := stream.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("command stream: server returned %s", resp.Status)
	}

	c.logger.Info().Str("identifier", identifier).Msg("command stream connected")

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var event, data string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if event == "play" && data != "" {
				c.dispatch(data, submit)
			}
			event, data = "", ""
		case strings.HasPrefix(line, ":"):
			// Heartbeat comment, keeps intermediaries from idling out.
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return fmt.Errorf("command stream closed by server")
}

func (c *Client) dispatch(data string, submit func(command.Command)) {
	var cmd command.Command
	if err := json.Unmarshal([]byte(data), &cmd); err != nil {
		c.logger.Error().Err(err).Msg("bad command payload, skipping")
		return
	}
	c.lastSeen.Store(cmd.Seq)
	c.logger.Info().
		Uint64("seq", cmd.Seq).
		Str("playlist_id", cmd.PlaylistID).
		Time("start_at", cmd.StartAt).
		Msg("command received")
	submit(cmd)
}
