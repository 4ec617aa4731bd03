/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import (
	"strings"
	"time"
)

// MediaKind classifies a file for playback dispatch.
type MediaKind string

const (
	KindImage MediaKind = "image"
	KindVideo MediaKind = "video"
	KindPDF   MediaKind = "pdf"
	KindOther MediaKind = "other"
)

// MediaFile is an uploaded asset served to displays.
type MediaFile struct {
	ID        string `gorm:"type:uuid;primaryKey"`
	Name      string `gorm:"index"`
	FileName  string // original upload filename
	Path      string // blob key in the object store
	MimeType  string `gorm:"type:varchar(128)"`
	Size      int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Kind derives the playback kind from the stored MIME type. The order of
// checks is significant: image, video, pdf, then other.
func (f *MediaFile) Kind() MediaKind {
	switch {
	case strings.HasPrefix(f.MimeType, "image/"):
		return KindImage
	case strings.HasPrefix(f.MimeType, "video/"):
		return KindVideo
	case f.MimeType == "application/pdf":
		return KindPDF
	default:
		return KindOther
	}
}

// Playlist is an ordered sequence of timed media items.
type Playlist struct {
	ID          string `gorm:"type:uuid;primaryKey"`
	Name        string `gorm:"index"`
	Description string `gorm:"type:text"`
	Items       []PlaylistItem `gorm:"foreignKey:PlaylistID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// PlaylistItem binds a file into a playlist at a position, with optional
// per-kind timing overrides. Which timing fields apply is decided at render
// time by the bound file's kind, not by the item itself.
type PlaylistItem struct {
	ID         string `gorm:"type:uuid;primaryKey"`
	PlaylistID string `gorm:"type:uuid;index"`
	FileID     string `gorm:"type:uuid;index"`
	Position   int    `gorm:"index:idx_playlist_item_position"`

	ImageDisplayDurationMS *int64
	PDFPageDurationMS      *int64
	PDFDocumentLoopCount   *int
	VideoLoopCount         *int

	File      *MediaFile `gorm:"foreignKey:FileID"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Player is a registered display endpoint. Identifier is the stable token a
// device presents across restarts; ID is the server-side primary key.
type Player struct {
	ID          string `gorm:"type:uuid;primaryKey"`
	Identifier  string `gorm:"type:varchar(128);uniqueIndex"`
	Name        string `gorm:"index"`
	Description string `gorm:"type:text"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// PlayerGroup names a set of players addressed together.
type PlayerGroup struct {
	ID          string `gorm:"type:uuid;primaryKey"`
	Name        string `gorm:"index"`
	Description string `gorm:"type:text"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// PlayerGroupMember joins players into groups.
type PlayerGroupMember struct {
	GroupID   string `gorm:"type:uuid;primaryKey"`
	PlayerID  string `gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time
}
