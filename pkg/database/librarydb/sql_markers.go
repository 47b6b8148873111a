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

package librarydb

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/markertools/markerd/pkg/database"
	"github.com/rs/zerolog/log"
)

// Markers are taggings rows. The library server stores the marker type in
// the text column, start/end in time_offset/end_time_offset, and flags in a
// percent-encoded extra_data blob. We additionally repurpose thumb_url
// (which the server ignores on markers) to hold our last-modified timestamp.
const (
	markerTagType = 12
	markerTagName = "intro"

	extraFinal  = "pv%3Afinal=1"
	extraByUser = "pv%3Amarkerd=1"
)

func encodeExtraData(final, byUser bool) string {
	var parts []string
	if final {
		parts = append(parts, extraFinal)
	}
	if byUser {
		parts = append(parts, extraByUser)
	}
	return strings.Join(parts, "&")
}

func decodeExtraData(s string) (final, byUser bool) {
	for _, part := range strings.Split(s, "&") {
		switch part {
		case extraFinal:
			final = true
		case extraByUser:
			byUser = true
		}
	}
	return final, byUser
}

// markerSelect joins taggings with the item hierarchy so every marker comes
// back with its section, season and show resolved. The season join only
// applies to episodes; movies leave both ancestor columns zero.
const markerSelect = `
	SELECT t.id, t.metadata_item_id, COALESCE(t."index", 0), t.text,
	       t.time_offset, t.end_time_offset, COALESCE(t.created_at, 0),
	       COALESCE(t.thumb_url, ''), COALESCE(t.extra_data, ''),
	       i.library_section_id,
	       CASE WHEN i.metadata_type = 4 THEN COALESCE(i.parent_id, 0) ELSE 0 END,
	       COALESCE(season.parent_id, 0)
	FROM taggings t
	JOIN metadata_items i ON i.id = t.metadata_item_id
	LEFT JOIN metadata_items season
	       ON season.id = i.parent_id AND i.metadata_type = 4
	WHERE t.tag_id = ?`

// ListMarkers returns the markers of one parent sorted by start time.
func (db *LibraryDB) ListMarkers(parentID int64) ([]database.Marker, error) {
	tagID, err := db.markerTag()
	if err != nil {
		return nil, err
	}
	query := markerSelect + ` AND t.metadata_item_id = ? ORDER BY t.time_offset;`
	return sqlQueryMarkers(db.ctx, db.sql, query, tagID, parentID)
}

// ListMarkersForParents returns markers grouped by parent. Parents without
// markers get no map entry.
func (db *LibraryDB) ListMarkersForParents(parentIDs []int64) (map[int64][]database.Marker, error) {
	result := make(map[int64][]database.Marker, len(parentIDs))
	if len(parentIDs) == 0 {
		return result, nil
	}
	tagID, err := db.markerTag()
	if err != nil {
		return nil, err
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(parentIDs)), ",")
	query := markerSelect + ` AND t.metadata_item_id IN (` + placeholders +
		`) ORDER BY t.metadata_item_id, t.time_offset;`

	args := make([]any, 0, len(parentIDs)+1)
	args = append(args, tagID)
	for _, id := range parentIDs {
		args = append(args, id)
	}

	markers, err := sqlQueryMarkers(db.ctx, db.sql, query, args...)
	if err != nil {
		return nil, err
	}
	for _, m := range markers {
		result[m.ParentID] = append(result[m.ParentID], m)
	}
	return result, nil
}

// ListMarkersForSubtree returns every marker under a show, season, section
// or single markerable item, sorted by parent then start.
func (db *LibraryDB) ListMarkersForSubtree(rootID int64) ([]database.Marker, error) {
	item, err := db.GetItem(rootID)
	if err != nil {
		return nil, err
	}
	tagID, err := db.markerTag()
	if err != nil {
		return nil, err
	}

	var cond string
	switch item.Type {
	case database.ItemMovie, database.ItemEpisode:
		cond = `t.metadata_item_id = ?`
	case database.ItemSeason:
		cond = `i.parent_id = ?`
	case database.ItemShow:
		cond = `COALESCE(season.parent_id, 0) = ?`
	default:
		return nil, fmt.Errorf("item %d (%s) cannot root a marker subtree", rootID, item.Type)
	}

	query := markerSelect + ` AND ` + cond + ` ORDER BY t.metadata_item_id, t.time_offset;`
	return sqlQueryMarkers(db.ctx, db.sql, query, tagID, rootID)
}

// ListMarkersForSection returns every marker of a library section.
func (db *LibraryDB) ListMarkersForSection(sectionID int64) ([]database.Marker, error) {
	tagID, err := db.markerTag()
	if err != nil {
		return nil, err
	}
	query := markerSelect + ` AND i.library_section_id = ? ORDER BY t.metadata_item_id, t.time_offset;`
	return sqlQueryMarkers(db.ctx, db.sql, query, tagID, sectionID)
}

// GetMarker returns one marker by row id, or ErrNotFound.
func (db *LibraryDB) GetMarker(id int64) (*database.Marker, error) {
	tagID, err := db.markerTag()
	if err != nil {
		return nil, err
	}
	query := markerSelect + ` AND t.id = ?;`
	markers, err := sqlQueryMarkers(db.ctx, db.sql, query, tagID, id)
	if err != nil {
		return nil, err
	}
	if len(markers) == 0 {
		return nil, ErrNotFound
	}
	return &markers[0], nil
}

// FindMarker locates a marker by its fingerprint: parent, interval and type.
// Used by the purge reconciler when the library has renumbered row ids.
func (db *LibraryDB) FindMarker(
	parentID, start, end int64, markerType database.MarkerType,
) (*database.Marker, error) {
	tagID, err := db.markerTag()
	if err != nil {
		return nil, err
	}
	query := markerSelect + ` AND t.metadata_item_id = ? AND t.time_offset = ?
		AND t.end_time_offset = ? AND t.text = ?;`
	markers, err := sqlQueryMarkers(db.ctx, db.sql, query, tagID, parentID, start, end, string(markerType))
	if err != nil {
		return nil, err
	}
	if len(markers) == 0 {
		return nil, ErrNotFound
	}
	return &markers[0], nil
}

func sqlQueryMarkers(
	ctx context.Context, db *sql.DB, query string, args ...any,
) ([]database.Marker, error) {
	stmt, err := db.PrepareContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare marker query statement: %w", err)
	}
	defer func() {
		if closeErr := stmt.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("failed to close sql statement")
		}
	}()

	rows, err := stmt.QueryContext(ctx, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query markers: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("failed to close rows")
		}
	}()

	var markers []database.Marker
	for rows.Next() {
		var m database.Marker
		var markerType string
		var createdAtUnix int64
		var thumbURL, extraData string

		err = rows.Scan(
			&m.ID,
			&m.ParentID,
			&m.Index,
			&markerType,
			&m.Start,
			&m.End,
			&createdAtUnix,
			&thumbURL,
			&extraData,
			&m.SectionID,
			&m.SeasonID,
			&m.ShowID,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan marker row: %w", err)
		}

		m.Type = database.MarkerType(markerType)
		m.Final, m.CreatedByUser = decodeExtraData(extraData)
		m.CreatedAt = time.Unix(createdAtUnix, 0)
		m.ModifiedAt = m.CreatedAt
		if modUnix, parseErr := strconv.ParseInt(thumbURL, 10, 64); parseErr == nil {
			m.ModifiedAt = time.Unix(modUnix, 0)
		}

		markers = append(markers, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating marker rows: %w", err)
	}
	return markers, nil
}

func sqlMarkerTagID(ctx context.Context, db *sql.DB) (int64, error) {
	var id int64
	err := db.QueryRowContext(ctx,
		`SELECT id FROM tags WHERE tag_type = ? ORDER BY id LIMIT 1;`, markerTagType,
	).Scan(&id)
	if err != nil {
		return 0, err //nolint:wrapcheck // caller distinguishes sql.ErrNoRows
	}
	return id, nil
}

func sqlCreateMarkerTag(ctx context.Context, db *sql.DB) (int64, error) {
	result, err := db.ExecContext(ctx,
		`INSERT INTO tags (tag, tag_type) VALUES (?, ?);`, markerTagName, markerTagType,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert marker tag: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get marker tag id: %w", err)
	}
	return id, nil
}

/*
 * Write surface, available only inside WithTransaction
 */

func (tx *libraryTx) InsertMarker(
	parentID, start, end int64, index int, markerType database.MarkerType, final, byUser bool,
) (int64, error) {
	now := time.Now().Unix()
	result, err := tx.tx.ExecContext(tx.ctx, `
		INSERT INTO taggings (
			metadata_item_id, tag_id, "index", text,
			time_offset, end_time_offset, thumb_url, created_at, extra_data
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?);
	`,
		parentID,
		tx.markerTagID,
		index,
		string(markerType),
		start,
		end,
		strconv.FormatInt(now, 10),
		now,
		encodeExtraData(final, byUser),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert marker: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get inserted marker id: %w", err)
	}
	return id, nil
}

func (tx *libraryTx) UpdateMarker(
	id, start, end int64, index int, markerType database.MarkerType, final, byUser bool,
) error {
	result, err := tx.tx.ExecContext(tx.ctx, `
		UPDATE taggings
		SET text = ?, time_offset = ?, end_time_offset = ?, "index" = ?,
		    thumb_url = ?, extra_data = ?
		WHERE id = ? AND tag_id = ?;
	`,
		string(markerType),
		start,
		end,
		index,
		strconv.FormatInt(time.Now().Unix(), 10),
		encodeExtraData(final, byUser),
		id,
		tx.markerTagID,
	)
	if err != nil {
		return fmt.Errorf("failed to update marker %d: %w", id, err)
	}
	return requireOneRow(result, id)
}

func (tx *libraryTx) UpdateMarkerIndex(id int64, index int) error {
	result, err := tx.tx.ExecContext(tx.ctx,
		`UPDATE taggings SET "index" = ? WHERE id = ? AND tag_id = ?;`,
		index, id, tx.markerTagID,
	)
	if err != nil {
		return fmt.Errorf("failed to update index of marker %d: %w", id, err)
	}
	return requireOneRow(result, id)
}

func (tx *libraryTx) DeleteMarker(id int64) error {
	result, err := tx.tx.ExecContext(tx.ctx,
		`DELETE FROM taggings WHERE id = ? AND tag_id = ?;`,
		id, tx.markerTagID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete marker %d: %w", id, err)
	}
	return requireOneRow(result, id)
}

func requireOneRow(result sql.Result, id int64) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("marker %d: %w", id, ErrNotFound)
	}
	return nil
}
