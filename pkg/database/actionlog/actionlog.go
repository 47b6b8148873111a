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

// Package actionlog is the durable, append-only history of marker mutations
// in markerd's own side database. Entries are never deleted; ignoring a
// purge only flags its history chain.
package actionlog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jonboulle/clockwork"
	"github.com/markertools/markerd/pkg/database"
	"github.com/markertools/markerd/pkg/helpers/syncutil"
	_ "github.com/mattn/go-sqlite3"
)

// ErrNullSQL is returned when the action log database is not connected.
var ErrNullSQL = errors.New("action log database is not connected")

const (
	// DBFile is the side database filename inside the data directory.
	DBFile = "actions.db"

	sqliteConnParams = "?_journal_mode=WAL&_synchronous=FULL&_busy_timeout=5000"
)

type ActionLog struct {
	sql   *sql.DB
	ctx   context.Context
	clock clockwork.Clock
	dir   string

	// Append-only, single writer. Entries are ordered by commit time.
	writeMu syncutil.Mutex
}

// OpenActionLog opens (creating if needed) the action log database under dir.
func OpenActionLog(ctx context.Context, dir string, clock clockwork.Clock) (*ActionLog, error) {
	db := &ActionLog{sql: nil, ctx: ctx, clock: clock, dir: dir}
	err := db.Open()
	return db, err
}

func (db *ActionLog) Open() error {
	dbPath := db.GetDBPath()
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
		return fmt.Errorf("failed to create directory for action log: %w", err)
	}
	sqlInstance, err := sql.Open("sqlite3", dbPath+sqliteConnParams)
	if err != nil {
		return fmt.Errorf("failed to open action log database: %w", err)
	}
	db.sql = sqlInstance
	return nil
}

func (db *ActionLog) GetDBPath() string {
	return filepath.Join(db.dir, DBFile)
}

func (db *ActionLog) UnsafeGetSQLDb() *sql.DB {
	return db.sql
}

func (db *ActionLog) MigrateUp() error {
	if db.sql == nil {
		return ErrNullSQL
	}
	return sqlMigrateUp(db.sql)
}

func (db *ActionLog) Close() error {
	if db.sql == nil {
		return nil
	}
	err := db.sql.Close()
	db.sql = nil
	if err != nil {
		return fmt.Errorf("failed to close action log database: %w", err)
	}
	return nil
}

// SetSQLForTesting injects a sql.DB instance for tests. The schema is
// migrated on injection.
func (db *ActionLog) SetSQLForTesting(ctx context.Context, sqlDB *sql.DB, clock clockwork.Clock) error {
	db.sql = sqlDB
	db.ctx = ctx
	db.clock = clock
	return db.MigrateUp()
}

// Append writes one entry and returns its op id. A zero At is stamped with
// the current clock time.
func (db *ActionLog) Append(entry *database.ActionEntry) (int64, error) {
	if db.sql == nil {
		return 0, ErrNullSQL
	}
	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	if entry.At.IsZero() {
		entry.At = db.clock.Now()
	}
	return sqlAppend(db.ctx, db.sql, entry)
}

// RestoreKeyFor returns the restore key most recently associated with a
// marker id, or empty if the log has never seen the marker.
func (db *ActionLog) RestoreKeyFor(markerID int64) (string, error) {
	if db.sql == nil {
		return "", ErrNullSQL
	}
	return sqlRestoreKeyFor(db.ctx, db.sql, markerID)
}

// AllEntries returns the full log ordered by op id ascending.
func (db *ActionLog) AllEntries() ([]database.ActionEntry, error) {
	if db.sql == nil {
		return nil, ErrNullSQL
	}
	return sqlEntries(db.ctx, db.sql, 0)
}

// EntriesForSection returns the log restricted to one library section,
// ordered by op id ascending.
func (db *ActionLog) EntriesForSection(sectionID int64) ([]database.ActionEntry, error) {
	if db.sql == nil {
		return nil, ErrNullSQL
	}
	return sqlEntries(db.ctx, db.sql, sectionID)
}

// MarkIgnored flags every entry of a restore-key chain as ignored so future
// reconciles skip the purge. The entries themselves are kept.
func (db *ActionLog) MarkIgnored(restoreKey string) error {
	if db.sql == nil {
		return ErrNullSQL
	}
	db.writeMu.Lock()
	defer db.writeMu.Unlock()
	return sqlMarkIgnored(db.ctx, db.sql, restoreKey)
}
