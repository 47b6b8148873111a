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
	"errors"
	"fmt"

	"github.com/markertools/markerd/pkg/database"
	"github.com/rs/zerolog/log"
)

// GetItem returns an item with its ancestor chain resolved. Episodes get
// SeasonID and ShowID filled in; movies leave them zero.
func (db *LibraryDB) GetItem(id int64) (*database.Item, error) {
	if db.sql == nil {
		return nil, ErrNullSQL
	}

	item, err := sqlGetItem(db.ctx, db.sql, id)
	if err != nil {
		return nil, err
	}

	if item.Type == database.ItemEpisode && item.ParentID != 0 {
		season, err := sqlGetItem(db.ctx, db.sql, item.ParentID)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve season of episode %d: %w", id, err)
		}
		item.SeasonID = season.ID
		item.ShowID = season.ParentID
	}

	return item, nil
}

// ListSections returns all movie and show sections. Music and photo sections
// cannot own markers and are not listed.
func (db *LibraryDB) ListSections() ([]database.Section, error) {
	if db.sql == nil {
		return nil, ErrNullSQL
	}
	return sqlListSections(db.ctx, db.sql)
}

// ListChildren returns the direct children of parentID with the given type,
// ordered by their library index.
func (db *LibraryDB) ListChildren(parentID int64, childType database.ItemType) ([]database.Item, error) {
	if db.sql == nil {
		return nil, ErrNullSQL
	}
	return sqlListChildren(db.ctx, db.sql, parentID, childType)
}

// ListSectionItems returns every item of one type in a section, ordered by
// title. Used for the top level of a section: movies or shows.
func (db *LibraryDB) ListSectionItems(sectionID int64, itemType database.ItemType) ([]database.Item, error) {
	if db.sql == nil {
		return nil, ErrNullSQL
	}
	return sqlListSectionItems(db.ctx, db.sql, sectionID, itemType)
}

// ListSectionLeaves returns every markerable leaf (episode or movie) of a
// section.
func (db *LibraryDB) ListSectionLeaves(sectionID int64) ([]database.Item, error) {
	if db.sql == nil {
		return nil, ErrNullSQL
	}
	return sqlListSectionLeaves(db.ctx, db.sql, sectionID)
}

// SectionOverview enumerates every markerable leaf of a section with its
// per-type marker counts. Leaves without markers produce one row with an
// empty type and a zero count so the cache can account for them.
func (db *LibraryDB) SectionOverview(sectionID int64) ([]database.MarkerCount, error) {
	tagID, err := db.markerTag()
	if err != nil {
		return nil, err
	}
	return sqlSectionOverview(db.ctx, db.sql, sectionID, tagID)
}

/*
 * Internal SQL functions
 */

func sqlGetItem(ctx context.Context, db *sql.DB, id int64) (*database.Item, error) {
	stmt, err := db.PrepareContext(ctx, `
		SELECT id, COALESCE(parent_id, 0), library_section_id, metadata_type,
		       title, COALESCE("index", 0), COALESCE(duration, 0)
		FROM metadata_items
		WHERE id = ?;
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare item query statement: %w", err)
	}
	defer func() {
		if closeErr := stmt.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("failed to close sql statement")
		}
	}()

	var item database.Item
	var itemType int
	err = stmt.QueryRowContext(ctx, id).Scan(
		&item.ID,
		&item.ParentID,
		&item.SectionID,
		&itemType,
		&item.Title,
		&item.Index,
		&item.Duration,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query item %d: %w", id, err)
	}

	item.Type = database.ItemType(itemType)
	return &item, nil
}

func sqlListSections(ctx context.Context, db *sql.DB) ([]database.Section, error) {
	stmt, err := db.PrepareContext(ctx, `
		SELECT id, name, section_type
		FROM library_sections
		WHERE section_type IN (1, 2)
		ORDER BY id;
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare sections query statement: %w", err)
	}
	defer func() {
		if closeErr := stmt.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("failed to close sql statement")
		}
	}()

	rows, err := stmt.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query sections: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("failed to close rows")
		}
	}()

	var sections []database.Section
	for rows.Next() {
		var s database.Section
		if err := rows.Scan(&s.ID, &s.Name, &s.Type); err != nil {
			return nil, fmt.Errorf("failed to scan section row: %w", err)
		}
		sections = append(sections, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating section rows: %w", err)
	}
	return sections, nil
}

func sqlListChildren(
	ctx context.Context, db *sql.DB, parentID int64, childType database.ItemType,
) ([]database.Item, error) {
	stmt, err := db.PrepareContext(ctx, `
		SELECT id, COALESCE(parent_id, 0), library_section_id, metadata_type,
		       title, COALESCE("index", 0), COALESCE(duration, 0)
		FROM metadata_items
		WHERE parent_id = ? AND metadata_type = ?
		ORDER BY "index", id;
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare children query statement: %w", err)
	}
	defer func() {
		if closeErr := stmt.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("failed to close sql statement")
		}
	}()

	rows, err := stmt.QueryContext(ctx, parentID, int(childType))
	if err != nil {
		return nil, fmt.Errorf("failed to query children of %d: %w", parentID, err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("failed to close rows")
		}
	}()

	return scanItems(rows)
}

func sqlListSectionItems(
	ctx context.Context, db *sql.DB, sectionID int64, itemType database.ItemType,
) ([]database.Item, error) {
	stmt, err := db.PrepareContext(ctx, `
		SELECT id, COALESCE(parent_id, 0), library_section_id, metadata_type,
		       title, COALESCE("index", 0), COALESCE(duration, 0)
		FROM metadata_items
		WHERE library_section_id = ? AND metadata_type = ?
		ORDER BY title, id;
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare section items query statement: %w", err)
	}
	defer func() {
		if closeErr := stmt.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("failed to close sql statement")
		}
	}()

	rows, err := stmt.QueryContext(ctx, sectionID, int(itemType))
	if err != nil {
		return nil, fmt.Errorf("failed to query section %d items: %w", sectionID, err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("failed to close rows")
		}
	}()

	return scanItems(rows)
}

func sqlListSectionLeaves(ctx context.Context, db *sql.DB, sectionID int64) ([]database.Item, error) {
	stmt, err := db.PrepareContext(ctx, `
		SELECT id, COALESCE(parent_id, 0), library_section_id, metadata_type,
		       title, COALESCE("index", 0), COALESCE(duration, 0)
		FROM metadata_items
		WHERE library_section_id = ? AND metadata_type IN (1, 4)
		ORDER BY id;
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare section leaves query statement: %w", err)
	}
	defer func() {
		if closeErr := stmt.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("failed to close sql statement")
		}
	}()

	rows, err := stmt.QueryContext(ctx, sectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query section %d leaves: %w", sectionID, err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("failed to close rows")
		}
	}()

	return scanItems(rows)
}

func scanItems(rows *sql.Rows) ([]database.Item, error) {
	var items []database.Item
	for rows.Next() {
		var item database.Item
		var itemType int
		err := rows.Scan(
			&item.ID,
			&item.ParentID,
			&item.SectionID,
			&itemType,
			&item.Title,
			&item.Index,
			&item.Duration,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item row: %w", err)
		}
		item.Type = database.ItemType(itemType)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating item rows: %w", err)
	}
	return items, nil
}

func sqlSectionOverview(
	ctx context.Context, db *sql.DB, sectionID, tagID int64,
) ([]database.MarkerCount, error) {
	stmt, err := db.PrepareContext(ctx, `
		SELECT i.id, COALESCE(t.text, ''), COUNT(t.id)
		FROM metadata_items i
		LEFT JOIN taggings t ON t.metadata_item_id = i.id AND t.tag_id = ?
		WHERE i.library_section_id = ? AND i.metadata_type IN (1, 4)
		GROUP BY i.id, t.text
		ORDER BY i.id;
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare section overview statement: %w", err)
	}
	defer func() {
		if closeErr := stmt.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("failed to close sql statement")
		}
	}()

	rows, err := stmt.QueryContext(ctx, tagID, sectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query section %d overview: %w", sectionID, err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("failed to close rows")
		}
	}()

	var counts []database.MarkerCount
	for rows.Next() {
		var c database.MarkerCount
		var markerType string
		var count int
		if err := rows.Scan(&c.ParentID, &markerType, &count); err != nil {
			return nil, fmt.Errorf("failed to scan overview row: %w", err)
		}
		c.Type = database.MarkerType(markerType)
		if markerType == "" {
			count = 0
		}
		c.Count = count
		counts = append(counts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating overview rows: %w", err)
	}
	return counts, nil
}
