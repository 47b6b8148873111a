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

package markers

import (
	"context"
	"errors"

	"github.com/markertools/markerd/pkg/database"
	"github.com/markertools/markerd/pkg/database/librarydb"
	"github.com/markertools/markerd/pkg/markers/cache"
)

// Sections lists the library's movie and show sections.
func (e *Engine) Sections(_ context.Context) ([]database.Section, error) {
	release, err := e.begin()
	if err != nil {
		return nil, err
	}
	defer release()

	sections, err := e.lib.ListSections()
	if err != nil {
		return nil, classifyLibErr(err, "failed to list sections")
	}
	return sections, nil
}

func (e *Engine) findSection(sectionID int64) (*database.Section, error) {
	sections, err := e.lib.ListSections()
	if err != nil {
		return nil, classifyLibErr(err, "failed to list sections")
	}
	for i := range sections {
		if sections[i].ID == sectionID {
			return &sections[i], nil
		}
	}
	return nil, errNotFoundf("section %d does not exist", sectionID)
}

// SectionItems lists a section's top-level items: movies for a movie
// section, shows for a show section.
func (e *Engine) SectionItems(_ context.Context, sectionID int64) ([]database.Item, error) {
	release, err := e.begin()
	if err != nil {
		return nil, err
	}
	defer release()

	section, err := e.findSection(sectionID)
	if err != nil {
		return nil, err
	}

	itemType := database.ItemMovie
	if section.Type == 2 {
		itemType = database.ItemShow
	}
	items, err := e.lib.ListSectionItems(sectionID, itemType)
	if err != nil {
		return nil, classifyLibErr(err, "failed to list section items")
	}
	return items, nil
}

// Seasons lists a show's seasons in library order.
func (e *Engine) Seasons(_ context.Context, showID int64) ([]database.Item, error) {
	return e.children(showID, database.ItemShow, database.ItemSeason)
}

// Episodes lists a season's episodes in library order.
func (e *Engine) Episodes(_ context.Context, seasonID int64) ([]database.Item, error) {
	return e.children(seasonID, database.ItemSeason, database.ItemEpisode)
}

func (e *Engine) children(
	parentID int64, parentType, childType database.ItemType,
) ([]database.Item, error) {
	release, err := e.begin()
	if err != nil {
		return nil, err
	}
	defer release()

	item, err := e.lib.GetItem(parentID)
	if errors.Is(err, librarydb.ErrNotFound) {
		return nil, errNotFoundf("item %d does not exist", parentID)
	}
	if err != nil {
		return nil, classifyLibErr(err, "failed to load item")
	}
	if item.Type != parentType {
		return nil, errBadRequestf(
			"item %d is a %s, expected a %s", parentID, item.Type, parentType,
		)
	}

	children, err := e.lib.ListChildren(parentID, childType)
	if err != nil {
		return nil, classifyLibErr(err, "failed to list children")
	}
	return children, nil
}

// Query returns the markers of each requested key. Episode and movie keys
// resolve in one batch; show and season keys roll up their whole subtree.
// Every requested key gets a map entry, markerless ones an empty slice.
func (e *Engine) Query(_ context.Context, keys []int64) (map[int64][]database.Marker, error) {
	release, err := e.begin()
	if err != nil {
		return nil, err
	}
	defer release()

	leaves := make([]int64, 0, len(keys))
	containers := make([]int64, 0)
	for _, key := range keys {
		item, err := e.lib.GetItem(key)
		if errors.Is(err, librarydb.ErrNotFound) {
			return nil, errNotFoundf("item %d does not exist", key)
		}
		if err != nil {
			return nil, classifyLibErr(err, "failed to load item")
		}
		switch {
		case item.Type.Markerable():
			leaves = append(leaves, key)
		case item.Type == database.ItemShow || item.Type == database.ItemSeason:
			containers = append(containers, key)
		default:
			return nil, errBadRequestf("item %d is a %s and has no markers", key, item.Type)
		}
	}

	out := make(map[int64][]database.Marker, len(keys))
	if len(leaves) > 0 {
		byParent, err := e.lib.ListMarkersForParents(leaves)
		if err != nil {
			return nil, classifyLibErr(err, "failed to query markers")
		}
		for _, key := range leaves {
			markers := byParent[key]
			if markers == nil {
				markers = []database.Marker{}
			}
			out[key] = markers
		}
	}
	for _, key := range containers {
		markers, err := e.lib.ListMarkersForSubtree(key)
		if err != nil {
			return nil, classifyLibErr(err, "failed to query subtree markers")
		}
		if markers == nil {
			markers = []database.Marker{}
		}
		out[key] = markers
	}
	return out, nil
}

// SectionStats aggregates a section's marker breakdown. With extended stats
// enabled it answers from the cache; otherwise it runs one live overview
// scan. The bool reports which path served the answer.
func (e *Engine) SectionStats(_ context.Context, sectionID int64) (*cache.Breakdown, bool, error) {
	release, err := e.begin()
	if err != nil {
		return nil, false, err
	}
	defer release()

	if _, err := e.findSection(sectionID); err != nil {
		return nil, false, err
	}

	if e.cache != nil && e.cfg.ExtendedMarkerStats() {
		if breakdown, ok := e.cache.SectionBreakdown(sectionID); ok {
			return breakdown, true, nil
		}
	}

	counts, err := e.lib.SectionOverview(sectionID)
	if err != nil {
		return nil, false, classifyLibErr(err, "failed to scan section markers")
	}
	return cache.BreakdownFromCounts(counts), false, nil
}
