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

package actionlog

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/markertools/markerd/pkg/database"
	"github.com/markertools/markerd/pkg/helpers/syncutil"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog/log"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// goose keeps global state for its base filesystem and dialect, so
// migration runs are serialized even though markerd migrates a single
// database.
var migrateMu syncutil.Mutex

type gooseLogger struct{}

func (*gooseLogger) Printf(format string, v ...any) {
	log.Info().Msgf(format, v...)
}

func (*gooseLogger) Fatalf(format string, v ...any) {
	log.Fatal().Msgf(format, v...)
}

func sqlMigrateUp(db *sql.DB) error {
	migrateMu.Lock()
	defer migrateMu.Unlock()

	goose.SetLogger(&gooseLogger{})
	goose.SetBaseFS(migrationFiles)
	if err := goose.SetDialect("sqlite"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("failed to run action log migrations: %w", err)
	}
	return nil
}

func sqlAppend(ctx context.Context, db *sql.DB, entry *database.ActionEntry) (int64, error) {
	stmt, err := db.PrepareContext(ctx, `
		INSERT INTO actions (
			op, marker_id, restore_key, parent_id, season_id, show_id, section_id,
			start, "end", old_start, old_end, marker_type, final, ignored, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare action insert statement: %w", err)
	}
	defer func() {
		if closeErr := stmt.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("failed to close sql statement")
		}
	}()

	var oldStart, oldEnd any
	if entry.OldStart != nil {
		oldStart = *entry.OldStart
	}
	if entry.OldEnd != nil {
		oldEnd = *entry.OldEnd
	}

	result, err := stmt.ExecContext(ctx,
		int(entry.Op),
		entry.MarkerID,
		entry.RestoreKey,
		entry.ParentID,
		entry.SeasonID,
		entry.ShowID,
		entry.SectionID,
		entry.Start,
		entry.End,
		oldStart,
		oldEnd,
		string(entry.Type),
		entry.Final,
		entry.Ignored,
		entry.At.Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to execute action insert: %w", err)
	}

	opID, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID: %w", err)
	}
	entry.OpID = opID
	return opID, nil
}

func sqlRestoreKeyFor(ctx context.Context, db *sql.DB, markerID int64) (string, error) {
	var key string
	err := db.QueryRowContext(ctx, `
		SELECT restore_key FROM actions
		WHERE marker_id = ?
		ORDER BY op_id DESC
		LIMIT 1;
	`, markerID).Scan(&key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query restore key for marker %d: %w", markerID, err)
	}
	return key, nil
}

// sqlEntries returns log entries ordered by op id; sectionID 0 means all.
func sqlEntries(ctx context.Context, db *sql.DB, sectionID int64) ([]database.ActionEntry, error) {
	query := `
		SELECT op_id, op, marker_id, restore_key, parent_id, season_id, show_id,
		       section_id, start, "end", old_start, old_end, marker_type, final,
		       ignored, created_at
		FROM actions`
	args := []any{}
	if sectionID != 0 {
		query += ` WHERE section_id = ?`
		args = append(args, sectionID)
	}
	query += ` ORDER BY op_id;`

	stmt, err := db.PrepareContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare action query statement: %w", err)
	}
	defer func() {
		if closeErr := stmt.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("failed to close sql statement")
		}
	}()

	rows, err := stmt.QueryContext(ctx, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query actions: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("failed to close rows")
		}
	}()

	var entries []database.ActionEntry
	for rows.Next() {
		var entry database.ActionEntry
		var op int
		var markerType string
		var oldStart, oldEnd sql.NullInt64
		var createdAtUnix int64

		err = rows.Scan(
			&entry.OpID,
			&op,
			&entry.MarkerID,
			&entry.RestoreKey,
			&entry.ParentID,
			&entry.SeasonID,
			&entry.ShowID,
			&entry.SectionID,
			&entry.Start,
			&entry.End,
			&oldStart,
			&oldEnd,
			&markerType,
			&entry.Final,
			&entry.Ignored,
			&createdAtUnix,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan action row: %w", err)
		}

		entry.Op = database.ActionOp(op)
		entry.Type = database.MarkerType(markerType)
		if oldStart.Valid {
			v := oldStart.Int64
			entry.OldStart = &v
		}
		if oldEnd.Valid {
			v := oldEnd.Int64
			entry.OldEnd = &v
		}
		entry.At = time.Unix(createdAtUnix, 0)

		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating action rows: %w", err)
	}
	return entries, nil
}

func sqlMarkIgnored(ctx context.Context, db *sql.DB, restoreKey string) error {
	stmt, err := db.PrepareContext(ctx, `UPDATE actions SET ignored = 1 WHERE restore_key = ?;`)
	if err != nil {
		return fmt.Errorf("failed to prepare ignore update statement: %w", err)
	}
	defer func() {
		if closeErr := stmt.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("failed to close sql statement")
		}
	}()

	if _, err := stmt.ExecContext(ctx, restoreKey); err != nil {
		return fmt.Errorf("failed to mark chain %s ignored: %w", restoreKey, err)
	}
	return nil
}
