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

// Package librarydb is the typed adapter over the foreign Plex-style library
// database. The schema is owned by the library server and treated as given;
// markers live as rows of the taggings table under the tag_type 12 tag.
package librarydb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"

	"github.com/markertools/markerd/pkg/database"
	"github.com/markertools/markerd/pkg/helpers/syncutil"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
)

var (
	// ErrNullSQL is returned when the library handle is closed (suspended).
	ErrNullSQL = errors.New("library database is not connected")

	// ErrNotFound is returned by point lookups that match no row.
	ErrNotFound = errors.New("no such row in library database")
)

// The library server keeps its own long-lived WAL connection; we only add a
// busy timeout so our transactions queue behind its writes.
const sqliteConnParams = "?_busy_timeout=5000"

type LibraryDB struct {
	sql  *sql.DB
	ctx  context.Context
	path string

	// markerTagID caches the tags row all markers hang off. Zero until
	// resolved; guarded by tagMu because resolution may insert the row.
	markerTagID int64
	tagMu       syncutil.Mutex
}

// OpenLibraryDB opens the library database at path. The file must already
// exist; we never create or migrate a library database.
func OpenLibraryDB(ctx context.Context, path string) (*LibraryDB, error) {
	db := &LibraryDB{sql: nil, ctx: ctx, path: path}
	err := db.Open()
	return db, err
}

func (db *LibraryDB) Open() error {
	if _, err := os.Stat(db.path); err != nil {
		return fmt.Errorf("library database does not exist: %w", err)
	}
	sqlInstance, err := sql.Open("sqlite3", db.path+sqliteConnParams)
	if err != nil {
		return fmt.Errorf("failed to open library database: %w", err)
	}
	db.sql = sqlInstance
	return nil
}

func (db *LibraryDB) GetDBPath() string {
	return db.path
}

func (db *LibraryDB) UnsafeGetSQLDb() *sql.DB {
	return db.sql
}

// Available reports whether the handle is open. It goes false between
// Suspend and Resume.
func (db *LibraryDB) Available() bool {
	return db.sql != nil
}

// Close releases the handle. Safe to call while suspended.
func (db *LibraryDB) Close() error {
	if db.sql == nil {
		return nil
	}
	err := db.sql.Close()
	db.sql = nil
	if err != nil {
		return fmt.Errorf("failed to close library database: %w", err)
	}
	return nil
}

// SetSQLForTesting injects a sql.DB instance for tests running against an
// in-memory fixture.
func (db *LibraryDB) SetSQLForTesting(ctx context.Context, sqlDB *sql.DB) {
	db.sql = sqlDB
	db.ctx = ctx
}

// libraryTx implements database.LibraryTxI over one *sql.Tx.
type libraryTx struct {
	tx          *sql.Tx
	ctx         context.Context
	markerTagID int64
}

// WithTransaction runs fn inside a single transaction. Any error from fn
// rolls the whole mutation back.
func (db *LibraryDB) WithTransaction(ctx context.Context, fn func(tx database.LibraryTxI) error) error {
	if db.sql == nil {
		return ErrNullSQL
	}

	tagID, err := db.ensureMarkerTag(ctx)
	if err != nil {
		return err
	}

	tx, err := db.sql.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin library transaction: %w", err)
	}

	if err := fn(&libraryTx{tx: tx, ctx: ctx, markerTagID: tagID}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			log.Warn().Err(rbErr).Msg("failed to roll back library transaction")
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit library transaction: %w", err)
	}
	return nil
}

// ensureMarkerTag resolves the tags row markers are attached to, creating it
// if the library has never had a marker.
func (db *LibraryDB) ensureMarkerTag(ctx context.Context) (int64, error) {
	db.tagMu.Lock()
	defer db.tagMu.Unlock()

	if db.markerTagID != 0 {
		return db.markerTagID, nil
	}
	if db.sql == nil {
		return 0, ErrNullSQL
	}

	id, err := sqlMarkerTagID(ctx, db.sql)
	if errors.Is(err, sql.ErrNoRows) {
		id, err = sqlCreateMarkerTag(ctx, db.sql)
		if err == nil {
			log.Info().Int64("tag_id", id).Msg("created marker tag row in library database")
		}
	}
	if err != nil {
		return 0, fmt.Errorf("failed to resolve marker tag: %w", err)
	}

	db.markerTagID = id
	return id, nil
}

// markerTag is ensureMarkerTag with the db-nil guard for read paths.
func (db *LibraryDB) markerTag() (int64, error) {
	if db.sql == nil {
		return 0, ErrNullSQL
	}
	return db.ensureMarkerTag(db.ctx)
}
