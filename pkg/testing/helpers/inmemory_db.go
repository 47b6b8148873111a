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

// Package helpers provides shared test fixtures: a file-backed library
// database with a known media hierarchy and an in-memory action log.
package helpers

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/markertools/markerd/pkg/database/actionlog"
	"github.com/markertools/markerd/pkg/database/librarydb"
	_ "github.com/mattn/go-sqlite3"
)

// librarySchema is the subset of the media server's schema that markerd
// touches.
const librarySchema = `
CREATE TABLE library_sections (
	id INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	section_type INTEGER NOT NULL
);
CREATE TABLE metadata_items (
	id INTEGER PRIMARY KEY,
	parent_id INTEGER,
	library_section_id INTEGER NOT NULL,
	metadata_type INTEGER NOT NULL,
	title TEXT NOT NULL DEFAULT '',
	"index" INTEGER,
	duration INTEGER,
	created_at INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE tags (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	tag TEXT NOT NULL DEFAULT '',
	tag_type INTEGER NOT NULL
);
CREATE TABLE taggings (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	metadata_item_id INTEGER NOT NULL,
	tag_id INTEGER NOT NULL,
	"index" INTEGER,
	text TEXT NOT NULL DEFAULT '',
	time_offset INTEGER,
	end_time_offset INTEGER,
	thumb_url TEXT,
	created_at INTEGER,
	extra_data TEXT
);
`

// Fixture ids, stable across all tests.
const (
	SectionTV     = int64(1)
	SectionMovies = int64(2)

	ShowID     = int64(10)
	Season1ID  = int64(100)
	Season2ID  = int64(101)
	Episode1ID = int64(1000)
	Episode2ID = int64(1001)
	Episode3ID = int64(1002)
	Episode4ID = int64(1003) // season 2
	MovieID    = int64(2000)
	ArtistID   = int64(3000) // never markerable

	EpisodeDuration = int64(1_800_000) // 30 min
	MovieDuration   = int64(7_200_000) // 2 h
)

const libraryFixture = `
INSERT INTO library_sections (id, name, section_type) VALUES
	(1, 'TV Shows', 2),
	(2, 'Movies', 1);
INSERT INTO metadata_items
	(id, parent_id, library_section_id, metadata_type, title, "index", duration) VALUES
	(10,   NULL, 1, 2, 'Breaking Sad',  1, NULL),
	(100,  10,   1, 3, 'Season 1',      1, NULL),
	(101,  10,   1, 3, 'Season 2',      2, NULL),
	(1000, 100,  1, 4, 'Pilot',         1, 1800000),
	(1001, 100,  1, 4, 'Cat''s in the Bag', 2, 1800000),
	(1002, 100,  1, 4, 'Gray Matter',   3, 1800000),
	(1003, 101,  1, 4, 'Seven Thirty-Seven', 1, 1800000),
	(2000, NULL, 2, 1, 'The Long Cut',  1, 7200000),
	(3000, NULL, 3, 8, 'Some Artist',   1, NULL);
`

// NewTestLibraryDB creates a file-backed library database with the fixture
// hierarchy and opens it through the production path, so Close/Open cycles
// (suspend and resume) work.
func NewTestLibraryDB(t *testing.T) (db *librarydb.LibraryDB, cleanup func()) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "library_test.db")
	raw, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		t.Fatalf("failed to create test library database: %v", err)
	}
	if _, err := raw.Exec(librarySchema); err != nil {
		t.Fatalf("failed to create library schema: %v", err)
	}
	if _, err := raw.Exec(libraryFixture); err != nil {
		t.Fatalf("failed to seed library fixture: %v", err)
	}
	if err := raw.Close(); err != nil {
		t.Fatalf("failed to close schema connection: %v", err)
	}

	db, err = librarydb.OpenLibraryDB(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("failed to open test library database: %v", err)
	}

	cleanup = func() {
		if err := db.Close(); err != nil {
			t.Errorf("failed to close library database: %v", err)
		}
	}
	return db, cleanup
}

// ExecLibrary runs raw SQL against the library fixture, e.g. to simulate
// the media server deleting markers behind markerd's back.
func ExecLibrary(t *testing.T, db *librarydb.LibraryDB, query string, args ...any) {
	t.Helper()
	if _, err := db.UnsafeGetSQLDb().Exec(query, args...); err != nil {
		t.Fatalf("failed to exec library sql: %v", err)
	}
}

// NewTestActionLog creates an in-memory action log with a fake clock.
func NewTestActionLog(t *testing.T, clock clockwork.Clock) (db *actionlog.ActionLog, cleanup func()) {
	t.Helper()

	sqlDB, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test action log: %v", err)
	}

	db = &actionlog.ActionLog{}
	if err := db.SetSQLForTesting(context.Background(), sqlDB, clock); err != nil {
		if closeErr := sqlDB.Close(); closeErr != nil {
			t.Errorf("failed to close action log after setup error: %v", closeErr)
		}
		t.Fatalf("failed to set up action log for testing: %v", err)
	}

	cleanup = func() {
		if err := db.Close(); err != nil {
			t.Errorf("failed to close action log: %v", err)
		}
	}
	return db, cleanup
}
