/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package catalog is the lookup and administration service for media files,
// playlists, players, and player groups.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/heimdall_signage/internal/models"
)

// ErrNotFound is returned when a referenced entity does not exist.
var ErrNotFound = errors.New("not found")

// Service provides catalog lookups and mutations.
type Service struct {
	db     *gorm.DB
	cache  *Cache
	logger zerolog.Logger
}

// New creates a catalog service. cache may be nil to disable caching.
func New(db *gorm.DB, cache *Cache, logger zerolog.Logger) *Service {
	return &Service{
		db:     db,
		cache:  cache,
		logger: logger.With().Str("component", "catalog").Logger(),
	}
}

// ItemInput describes one playlist item on create/update. Positions are
// normalized to a dense 0..n-1 sequence in the order given.
type ItemInput struct {
	FileID                 string `json:"file_id"`
	Position               int    `json:"position"`
	ImageDisplayDurationMS *int64 `json:"image_display_duration_ms,omitempty"`
	PDFPageDurationMS      *int64 `json:"pdf_page_duration_ms,omitempty"`
	PDFDocumentLoopCount   *int   `json:"pdf_document_loop_count,omitempty"`
	VideoLoopCount         *int   `json:"video_loop_count,omitempty"`
}

// GetPlaylist returns a playlist with its items in position order and each
// item's file preloaded.
func (s *Service) GetPlaylist(ctx context.Context, id string) (*models.Playlist, error) {
	if s.cache != nil {
		if pl, ok := s.cache.GetPlaylist(ctx, id); ok {
			return pl, nil
		}
	}

	var pl models.Playlist
	err := s.db.WithContext(ctx).
		Preload("Items", func(tx *gorm.DB) *gorm.DB { return tx.Order("position ASC") }).
		Preload("Items.File").
		First(&pl, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get playlist: %w", err)
	}

	if s.cache != nil {
		s.cache.SetPlaylist(ctx, &pl)
	}
	return &pl, nil
}

// ListPlaylists returns all playlists ordered by name, without items.
func (s *Service) ListPlaylists(ctx context.Context) ([]models.Playlist, error) {
	var playlists []models.Playlist
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&playlists).Error; err != nil {
		return nil, fmt.Errorf("list playlists: %w", err)
	}
	return playlists, nil
}

// CreatePlaylist creates a playlist with the given item set.
func (s *Service) CreatePlaylist(ctx context.Context, name, description string, items []ItemInput) (*models.Playlist, error) {
	pl := models.Playlist{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&pl).Error; err != nil {
			return err
		}
		return replaceItems(tx, pl.ID, items)
	})
	if err != nil {
		return nil, fmt.Errorf("create playlist: %w", err)
	}
	return s.GetPlaylist(ctx, pl.ID)
}

// PlaylistUpdate carries optional fields for UpdatePlaylist. A nil Items
// leaves the item set untouched; a non-nil Items replaces it wholesale.
type PlaylistUpdate struct {
	Name        *string
	Description *string
	Items       *[]ItemInput
}

// UpdatePlaylist applies upd, replacing the item set when provided.
func (s *Service) UpdatePlaylist(ctx context.Context, id string, upd PlaylistUpdate) (*models.Playlist, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var pl models.Playlist
		if err := tx.First(&pl, "id = ?", id).Error; err != nil {
			return err
		}
		if upd.Name != nil {
			pl.Name = *upd.Name
		}
		if upd.Description != nil {
			pl.Description = *upd.Description
		}
		if err := tx.Save(&pl).Error; err != nil {
			return err
		}
		if upd.Items != nil {
			if err := tx.Where("playlist_id = ?", id).Delete(&models.PlaylistItem{}).Error; err != nil {
				return err
			}
			return replaceItems(tx, id, *upd.Items)
		}
		return nil
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update playlist: %w", err)
	}

	s.invalidatePlaylist(ctx, id)
	return s.GetPlaylist(ctx, id)
}

// DeletePlaylist removes a playlist and its items.
func (s *Service) DeletePlaylist(ctx context.Context, id string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("playlist_id = ?", id).Delete(&models.PlaylistItem{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Playlist{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("delete playlist: %w", err)
	}
	s.invalidatePlaylist(ctx, id)
	return nil
}

// replaceItems writes the item set with dense 0..n-1 positions, preserving
// the relative order the caller requested.
func replaceItems(tx *gorm.DB, playlistID string, items []ItemInput) error {
	sorted := make([]ItemInput, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Position < sorted[j].Position })

	for i, in := range sorted {
		item := models.PlaylistItem{
			ID:                     uuid.NewString(),
			PlaylistID:             playlistID,
			FileID:                 in.FileID,
			Position:               i,
			ImageDisplayDurationMS: in.ImageDisplayDurationMS,
			PDFPageDurationMS:      in.PDFPageDurationMS,
			PDFDocumentLoopCount:   in.PDFDocumentLoopCount,
			VideoLoopCount:         in.VideoLoopCount,
		}
		if err := tx.Create(&item).Error; err != nil {
			return err
		}
	}
	return nil
}

// GetPlayer returns a player by primary key.
func (s *Service) GetPlayer(ctx context.Context, id string) (*models.Player, error) {
	if s.cache != nil {
		if p, ok := s.cache.GetPlayer(ctx, id); ok {
			return p, nil
		}
	}

	var p models.Player
	err := s.db.WithContext(ctx).First(&p, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get player: %w", err)
	}
	if s.cache != nil {
		s.cache.SetPlayer(ctx, &p)
	}
	return &p, nil
}

// GetPlayerByIdentifier returns a player by its device identifier.
func (s *Service) GetPlayerByIdentifier(ctx context.Context, identifier string) (*models.Player, error) {
	var p models.Player
	err := s.db.WithContext(ctx).First(&p, "identifier = ?", identifier).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get player by identifier: %w", err)
	}
	return &p, nil
}

// ListPlayers returns all players ordered by name.
func (s *Service) ListPlayers(ctx context.Context) ([]models.Player, error) {
	var players []models.Player
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&players).Error; err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}
	return players, nil
}

// CreatePlayer registers a new player. An empty identifier gets a freshly
// generated one; an empty name gets a default derived from the identifier.
func (s *Service) CreatePlayer(ctx context.Context, identifier, name, description string) (*models.Player, error) {
	if identifier == "" {
		identifier = uuid.NewString()
	}
	if name == "" {
		name = "display-" + identifier[:8]
	}
	p := models.Player{
		ID:          uuid.NewString(),
		Identifier:  identifier,
		Name:        name,
		Description: description,
	}
	if err := s.db.WithContext(ctx).Create(&p).Error; err != nil {
		return nil, fmt.Errorf("create player: %w", err)
	}
	return &p, nil
}

// UpdatePlayer renames or redescribes a player.
func (s *Service) UpdatePlayer(ctx context.Context, id string, name, description *string) (*models.Player, error) {
	var p models.Player
	err := s.db.WithContext(ctx).First(&p, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update player: %w", err)
	}
	if name != nil {
		p.Name = *name
	}
	if description != nil {
		p.Description = *description
	}
	p.UpdatedAt = time.Now()
	if err := s.db.WithContext(ctx).Save(&p).Error; err != nil {
		return nil, fmt.Errorf("update player: %w", err)
	}
	s.invalidatePlayer(ctx, id)
	return &p, nil
}

// DeletePlayer removes a player and its group memberships.
func (s *Service) DeletePlayer(ctx context.Context, id string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("player_id = ?", id).Delete(&models.PlayerGroupMember{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Player{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("delete player: %w", err)
	}
	s.invalidatePlayer(ctx, id)
	return nil
}

// GetGroup returns a group by id.
func (s *Service) GetGroup(ctx context.Context, id string) (*models.PlayerGroup, error) {
	var g models.PlayerGroup
	err := s.db.WithContext(ctx).First(&g, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get group: %w", err)
	}
	return &g, nil
}

// GetGroupMembers returns the players belonging to a group. A missing group
// is ErrNotFound; an empty group returns an empty slice.
func (s *Service) GetGroupMembers(ctx context.Context, groupID string) ([]models.Player, error) {
	if _, err := s.GetGroup(ctx, groupID); err != nil {
		return nil, err
	}

	var players []models.Player
	err := s.db.WithContext(ctx).
		Joins("JOIN player_group_members ON player_group_members.player_id = players.id").
		Where("player_group_members.group_id = ?", groupID).
		Find(&players).Error
	if err != nil {
		return nil, fmt.Errorf("get group members: %w", err)
	}
	return players, nil
}

// GetGroupMemberIDs returns the raw membership player ids for a group,
// without joining the players table. A membership whose player record has
// gone is still reported, so callers can surface it instead of skipping it.
func (s *Service) GetGroupMemberIDs(ctx context.Context, groupID string) ([]string, error) {
	if _, err := s.GetGroup(ctx, groupID); err != nil {
		return nil, err
	}

	var ids []string
	err := s.db.WithContext(ctx).Model(&models.PlayerGroupMember{}).
		Where("group_id = ?", groupID).
		Order("player_id").
		Pluck("player_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("get group member ids: %w", err)
	}
	return ids, nil
}

// ListGroups returns all groups ordered by name.
func (s *Service) ListGroups(ctx context.Context) ([]models.PlayerGroup, error) {
	var groups []models.PlayerGroup
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&groups).Error; err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	return groups, nil
}

// CreateGroup creates a group with an initial member set.
func (s *Service) CreateGroup(ctx context.Context, name, description string, memberIDs []string) (*models.PlayerGroup, error) {
	g := models.PlayerGroup{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&g).Error; err != nil {
			return err
		}
		return insertMembers(tx, g.ID, memberIDs)
	})
	if err != nil {
		return nil, fmt.Errorf("create group: %w", err)
	}
	return &g, nil
}

// GroupUpdate carries optional fields for UpdateGroup. A non-nil MemberIDs
// replaces the membership wholesale.
type GroupUpdate struct {
	Name        *string
	Description *string
	MemberIDs   *[]string
}

// UpdateGroup applies upd.
func (s *Service) UpdateGroup(ctx context.Context, id string, upd GroupUpdate) (*models.PlayerGroup, error) {
	var g models.PlayerGroup
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&g, "id = ?", id).Error; err != nil {
			return err
		}
		if upd.Name != nil {
			g.Name = *upd.Name
		}
		if upd.Description != nil {
			g.Description = *upd.Description
		}
		if err := tx.Save(&g).Error; err != nil {
			return err
		}
		if upd.MemberIDs != nil {
			if err := tx.Where("group_id = ?", id).Delete(&models.PlayerGroupMember{}).Error; err != nil {
				return err
			}
			return insertMembers(tx, id, *upd.MemberIDs)
		}
		return nil
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update group: %w", err)
	}
	return &g, nil
}

// DeleteGroup removes a group and its membership rows.
func (s *Service) DeleteGroup(ctx context.Context, id string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("group_id = ?", id).Delete(&models.PlayerGroupMember{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.PlayerGroup{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("delete group: %w", err)
	}
	return nil
}

func insertMembers(tx *gorm.DB, groupID string, memberIDs []string) error {
	for _, pid := range memberIDs {
		m := models.PlayerGroupMember{GroupID: groupID, PlayerID: pid}
		if err := tx.Create(&m).Error; err != nil {
			return err
		}
	}
	return nil
}

// GetFile returns file metadata by id.
func (s *Service) GetFile(ctx context.Context, id string) (*models.MediaFile, error) {
	var f models.MediaFile
	err := s.db.WithContext(ctx).First(&f, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}
	return &f, nil
}

// ListFiles returns all file metadata ordered by name.
func (s *Service) ListFiles(ctx context.Context) ([]models.MediaFile, error) {
	var files []models.MediaFile
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&files).Error; err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	return files, nil
}

// CreateFile records file metadata after the blob has been stored.
func (s *Service) CreateFile(ctx context.Context, f *models.MediaFile) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if err := s.db.WithContext(ctx).Create(f).Error; err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	return nil
}

// DeleteFile removes file metadata. Playlist items referencing the file are
// removed too, with the remaining positions reindexed.
func (s *Service) DeleteFile(ctx context.Context, id string) error {
	var touched []string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var items []models.PlaylistItem
		if err := tx.Where("file_id = ?", id).Find(&items).Error; err != nil {
			return err
		}
		seen := make(map[string]bool)
		for _, item := range items {
			if !seen[item.PlaylistID] {
				seen[item.PlaylistID] = true
				touched = append(touched, item.PlaylistID)
			}
		}
		if err := tx.Where("file_id = ?", id).Delete(&models.PlaylistItem{}).Error; err != nil {
			return err
		}
		for _, plID := range touched {
			if err := reindexPositions(tx, plID); err != nil {
				return err
			}
		}
		res := tx.Delete(&models.MediaFile{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("delete file: %w", err)
	}
	for _, plID := range touched {
		s.invalidatePlaylist(ctx, plID)
	}
	return nil
}

// reindexPositions restores the dense 0..n-1 position invariant after a
// removal.
func reindexPositions(tx *gorm.DB, playlistID string) error {
	var items []models.PlaylistItem
	if err := tx.Where("playlist_id = ?", playlistID).Order("position ASC").Find(&items).Error; err != nil {
		return err
	}
	for i := range items {
		if items[i].Position != i {
			if err := tx.Model(&models.PlaylistItem{}).
				Where("id = ?", items[i].ID).
				Update("position", i).Error; err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Service) invalidatePlaylist(ctx context.Context, id string) {
	if s.cache != nil {
		s.cache.InvalidatePlaylist(ctx, id)
	}
}

func (s *Service) invalidatePlayer(ctx context.Context, id string) {
	if s.cache != nil {
		s.cache.InvalidatePlayer(ctx, id)
	}
}
