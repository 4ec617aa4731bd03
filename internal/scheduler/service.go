/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package scheduler turns operator play requests into published commands
// with a synchronized start time, and handles display registration.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/heimdall_signage/internal/catalog"
	"github.com/friendsincode/heimdall_signage/internal/command"
	"github.com/friendsincode/heimdall_signage/internal/models"
	"github.com/friendsincode/heimdall_signage/internal/telemetry"
)

// DefaultLeadTime is applied when the configured lead time is zero. It gives
// slow or freshly started displays a window to resolve the playlist and
// buffer media so everyone starts together at StartAt.
const DefaultLeadTime = 3 * time.Second

// Service issues play commands and registers players.
type Service struct {
	catalog  *catalog.Service
	hub      *command.Hub
	leadTime time.Duration
	logger   zerolog.Logger
}

// New creates a scheduler service.
func New(cat *catalog.Service, hub *command.Hub, leadTime time.Duration, logger zerolog.Logger) *Service {
	if leadTime <= 0 {
		leadTime = DefaultLeadTime
	}
	return &Service{
		catalog:  cat,
		hub:      hub,
		leadTime: leadTime,
		logger:   logger.With().Str("component", "scheduler").Logger(),
	}
}

// Connect performs idempotent player registration. A known identifier
// returns the stored player; an empty or unknown one registers a new player
// with a freshly generated identifier. This is how a display obtains its
// stable identity and how a restarting one recovers it.
func (s *Service) Connect(ctx context.Context, identifier string) (*models.Player, error) {
	if identifier != "" {
		player, err := s.catalog.GetPlayerByIdentifier(ctx, identifier)
		if err == nil {
			return player, nil
		}
		if err != catalog.ErrNotFound {
			return nil, fmt.Errorf("connect: %w", err)
		}
	}

	player, err := s.catalog.CreatePlayer(ctx, "", "", "")
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	s.logger.Info().
		Str("player_id", player.ID).
		Str("identifier", player.Identifier).
		Msg("registered new player")
	return player, nil
}

// PlayOnPlayer validates both ids against the catalog, then publishes a
// command scheduled leadTime in the future. Nothing is published when
// validation fails.
func (s *Service) PlayOnPlayer(ctx context.Context, playlistID, playerID string) (command.Command, error) {
	if _, err := s.catalog.GetPlaylist(ctx, playlistID); err != nil {
		return command.Command{}, err
	}
	player, err := s.catalog.GetPlayer(ctx, playerID)
	if err != nil {
		return command.Command{}, err
	}

	startAt := time.Now().Add(s.leadTime)
	cmd := s.hub.Publish(player.ID, playlistID, startAt)
	telemetry.CommandsPublished.WithLabelValues("player").Inc()

	s.logger.Info().
		Str("player_id", player.ID).
		Str("playlist_id", playlistID).
		Time("start_at", startAt).
		Msg("play scheduled")
	return cmd, nil
}

// MemberFailure records one group member whose command could not be issued.
type MemberFailure struct {
	PlayerID string `json:"player_id"`
	Error    string `json:"error"`
}

// GroupPlayResult reports the per-member outcome of a group play. The
// fan-out is deliberately non-transactional: partial success is expected.
type GroupPlayResult struct {
	GroupID   string          `json:"group_id"`
	Succeeded []string        `json:"succeeded"`
	Failed    []MemberFailure `json:"failed,omitempty"`
}

// PlayOnGroup fans the play out to every member independently. A member
// whose record vanished mid-call fails alone; the rest still receive their
// commands. Group or playlist absence fails the whole call up front.
func (s *Service) PlayOnGroup(ctx context.Context, playlistID, groupID string) (*GroupPlayResult, error) {
	if _, err := s.catalog.GetPlaylist(ctx, playlistID); err != nil {
		return nil, err
	}
	memberIDs, err := s.catalog.GetGroupMemberIDs(ctx, groupID)
	if err != nil {
		return nil, err
	}

	result := &GroupPlayResult{GroupID: groupID}
	for _, memberID := range memberIDs {
		if _, err := s.PlayOnPlayer(ctx, playlistID, memberID); err != nil {
			s.logger.Warn().
				Err(err).
				Str("group_id", groupID).
				Str("player_id", memberID).
				Msg("group member play failed")
			result.Failed = append(result.Failed, MemberFailure{PlayerID: memberID, Error: err.Error()})
			continue
		}
		result.Succeeded = append(result.Succeeded, memberID)
	}
	return result, nil
}

// LeadTime reports the configured scheduling lead.
func (s *Service) LeadTime() time.Duration {
	return s.leadTime
}
