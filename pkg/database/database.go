// markerd
// Copyright (c) 2026 The markerd Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of markerd.
//
// markerd is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// markerd is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with markerd.  If not, see <http://www.gnu.org/licenses/>.

package database

import (
	"context"
	"database/sql"
	"time"
)

/*
 * Shared record structs and non-concrete interfaces for the two databases.
 * Concrete implementations live in librarydb (the foreign Plex-style library)
 * and actionlog (our own side database).
 */

// MarkerType is the kind of a marker as stored in the library database.
type MarkerType string

const (
	MarkerIntro      MarkerType = "intro"
	MarkerCredits    MarkerType = "credits"
	MarkerCommercial MarkerType = "commercial"
)

// ValidMarkerType reports whether s names a marker type we manage.
func ValidMarkerType(s string) bool {
	switch MarkerType(s) {
	case MarkerIntro, MarkerCredits, MarkerCommercial:
		return true
	default:
		return false
	}
}

// ItemType mirrors the library database's metadata_type codes.
type ItemType int

const (
	ItemMovie   ItemType = 1
	ItemShow    ItemType = 2
	ItemSeason  ItemType = 3
	ItemEpisode ItemType = 4
	ItemArtist  ItemType = 8
	ItemAlbum   ItemType = 9
	ItemTrack   ItemType = 10
)

// Markerable reports whether items of this type may own markers.
func (t ItemType) Markerable() bool {
	return t == ItemMovie || t == ItemEpisode
}

func (t ItemType) String() string {
	switch t {
	case ItemMovie:
		return "movie"
	case ItemShow:
		return "show"
	case ItemSeason:
		return "season"
	case ItemEpisode:
		return "episode"
	case ItemArtist:
		return "artist"
	case ItemAlbum:
		return "album"
	case ItemTrack:
		return "track"
	default:
		return "unknown"
	}
}

// Marker is a half-open [Start, End) millisecond interval attached to an
// episode or movie. Index is the marker's 0-based ordinal within its parent
// when sorted by Start; a parent's indices are always contiguous 0..n-1.
type Marker struct {
	CreatedAt     time.Time  `json:"createdAt"`
	ModifiedAt    time.Time  `json:"modifiedAt"`
	Type          MarkerType `json:"type"`
	ID            int64      `json:"id"`
	ParentID      int64      `json:"parentId"`
	SeasonID      int64      `json:"seasonId,omitempty"`
	ShowID        int64      `json:"showId,omitempty"`
	SectionID     int64      `json:"sectionId"`
	Start         int64      `json:"start"`
	End           int64      `json:"end"`
	Index         int        `json:"index"`
	Final         bool       `json:"final"`
	CreatedByUser bool       `json:"createdByUser"`
}

// Overlaps reports whether two intervals intersect. Touching endpoints
// (a.End == b.Start) do not overlap.
func (m *Marker) Overlaps(o *Marker) bool {
	return m.Start < o.End && o.Start < m.End
}

// Item is a media item in the library database. SeasonID and ShowID are
// resolved ancestors, zero for movies. Duration is only meaningful for
// episodes and movies.
type Item struct {
	Title     string   `json:"title"`
	Type      ItemType `json:"type"`
	ID        int64    `json:"id"`
	ParentID  int64    `json:"parentId,omitempty"`
	SeasonID  int64    `json:"seasonId,omitempty"`
	ShowID    int64    `json:"showId,omitempty"`
	SectionID int64    `json:"sectionId"`
	Index     int      `json:"index"`
	Duration  int64    `json:"duration,omitempty"`
}

// Section is a library section (one per movie/TV library).
type Section struct {
	Name string `json:"name"`
	ID   int64  `json:"id"`
	Type int    `json:"type"` // 1 = movie, 2 = show
}

// MarkerCount is one row of a section overview scan: how many markers of one
// type a markerable leaf item has. Used only to rebuild the marker cache.
type MarkerCount struct {
	Type     MarkerType
	ParentID int64
	Count    int
}

// ActionOp is the kind of an action log entry.
type ActionOp int

const (
	OpAdd ActionOp = iota + 1
	OpEdit
	OpDelete
	OpRestore
	OpIgnore
)

func (op ActionOp) String() string {
	switch op {
	case OpAdd:
		return "add"
	case OpEdit:
		return "edit"
	case OpDelete:
		return "delete"
	case OpRestore:
		return "restore"
	case OpIgnore:
		return "ignore"
	default:
		return "unknown"
	}
}

// ActionEntry is one row of the append-only action log. RestoreKey is a
// stable identifier assigned at a marker's birth so later edits and deletes
// stay correlated even if the library database renumbers the marker's row id.
type ActionEntry struct {
	At         time.Time  `json:"at"`
	RestoreKey string     `json:"restoreKey"`
	Type       MarkerType `json:"type"`
	OldStart   *int64     `json:"oldStart,omitempty"`
	OldEnd     *int64     `json:"oldEnd,omitempty"`
	Op         ActionOp   `json:"op"`
	OpID       int64      `json:"opId"`
	MarkerID   int64      `json:"markerId"`
	ParentID   int64      `json:"parentId"`
	SeasonID   int64      `json:"seasonId,omitempty"`
	ShowID     int64      `json:"showId,omitempty"`
	SectionID  int64      `json:"sectionId"`
	Start      int64      `json:"start"`
	End        int64      `json:"end"`
	Final      bool       `json:"final"`
	Ignored    bool       `json:"ignored"`
}

/*
 * Interfaces for external deps
 */

type GenericDBI interface {
	Open() error
	UnsafeGetSQLDb() *sql.DB
	Close() error
	GetDBPath() string
}

// LibraryDBI is the typed surface of the foreign library database. All
// writes happen inside a single transaction per logical mutation via
// WithTransaction.
type LibraryDBI interface {
	GenericDBI
	Available() bool

	GetItem(id int64) (*Item, error)
	ListSections() ([]Section, error)
	ListChildren(parentID int64, childType ItemType) ([]Item, error)
	ListSectionItems(sectionID int64, itemType ItemType) ([]Item, error)
	ListSectionLeaves(sectionID int64) ([]Item, error)

	ListMarkers(parentID int64) ([]Marker, error)
	ListMarkersForParents(parentIDs []int64) (map[int64][]Marker, error)
	ListMarkersForSubtree(rootID int64) ([]Marker, error)
	ListMarkersForSection(sectionID int64) ([]Marker, error)
	GetMarker(id int64) (*Marker, error)
	FindMarker(parentID, start, end int64, markerType MarkerType) (*Marker, error)
	SectionOverview(sectionID int64) ([]MarkerCount, error)

	WithTransaction(ctx context.Context, fn func(tx LibraryTxI) error) error
}

// LibraryTxI is the write surface available inside one library transaction.
type LibraryTxI interface {
	InsertMarker(parentID, start, end int64, index int, markerType MarkerType, final, byUser bool) (int64, error)
	UpdateMarker(id, start, end int64, index int, markerType MarkerType, final, byUser bool) error
	UpdateMarkerIndex(id int64, index int) error
	DeleteMarker(id int64) error
}

// ActionLogDBI is the durable history of marker mutations.
type ActionLogDBI interface {
	GenericDBI
	MigrateUp() error

	Append(entry *ActionEntry) (int64, error)
	RestoreKeyFor(markerID int64) (string, error)
	AllEntries() ([]ActionEntry, error)
	EntriesForSection(sectionID int64) ([]ActionEntry, error)
	MarkIgnored(restoreKey string) error
}
