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
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/markertools/markerd/pkg/api/models"
	"github.com/markertools/markerd/pkg/database"
	"github.com/markertools/markerd/pkg/database/librarydb"
	"github.com/rs/zerolog/log"
)

// validateInterval enforces 0 <= start < end <= duration.
func validateInterval(start, end, duration int64) *Error {
	if start < 0 {
		return errBadRequestf("start %d must not be negative", start)
	}
	if start >= end {
		return errBadRequestf("start %d must be before end %d", start, end)
	}
	if end > duration {
		return errBadRequestf("end %d exceeds item duration %d", end, duration)
	}
	return nil
}

// loadMarkerableItem resolves the parent of a mutation and enforces that it
// can own markers.
func (e *Engine) loadMarkerableItem(parentID int64) (*database.Item, error) {
	item, err := e.lib.GetItem(parentID)
	if errors.Is(err, librarydb.ErrNotFound) {
		return nil, errBadTargetf("item %d does not exist", parentID)
	}
	if err != nil {
		return nil, classifyLibErr(err, "failed to load item")
	}
	if !item.Type.Markerable() {
		return nil, errBadTargetf("item %d is a %s and cannot own markers", parentID, item.Type)
	}
	return item, nil
}

// Add creates one marker on an episode or movie, re-indexing any siblings
// the insertion displaces.
func (e *Engine) Add(
	ctx context.Context, parentID, start, end int64, markerType database.MarkerType, final bool,
) (*database.Marker, error) {
	release, err := e.begin()
	if err != nil {
		return nil, err
	}
	defer release()

	if !database.ValidMarkerType(string(markerType)) {
		return nil, errBadRequestf("invalid marker type %q", markerType)
	}
	// Add is strict about the final flag; only Edit silently clears it.
	if final && markerType != database.MarkerCredits {
		return nil, errBadRequestf("final flag requires a credits marker, got %q", markerType)
	}

	item, err := e.loadMarkerableItem(parentID)
	if err != nil {
		return nil, err
	}
	if vErr := validateInterval(start, end, item.Duration); vErr != nil {
		return nil, vErr
	}

	marker, err := e.insertMarker(ctx, item, start, end, markerType, final)
	if err != nil {
		return nil, err
	}

	e.cacheDelta(marker, +1)
	e.appendAction(database.OpAdd, marker, nil, nil, uuid.NewString())
	e.notify(models.NotificationMarkersChanged, models.MarkersChangedNotification{
		Op: "add", ParentID: parentID, SectionID: item.SectionID, MarkerID: marker.ID,
	})
	return marker, nil
}

// insertMarker is the shared write path of Add and Restore: lock the
// parent, reject overlaps, insert at the start-ordered rank and push the
// displaced siblings down. The caller has already validated the interval.
func (e *Engine) insertMarker(
	ctx context.Context, item *database.Item, start, end int64,
	markerType database.MarkerType, final bool,
) (*database.Marker, error) {
	unlock := e.lockParent(item.ID)
	defer unlock()

	siblings, err := e.lib.ListMarkers(item.ID)
	if err != nil {
		return nil, classifyLibErr(err, "failed to load existing markers")
	}

	proposed := database.Marker{Start: start, End: end}
	for i := range siblings {
		if siblings[i].Overlaps(&proposed) {
			return nil, errOverlapf(
				"interval [%d, %d) overlaps marker %d [%d, %d)",
				start, end, siblings[i].ID, siblings[i].Start, siblings[i].End,
			)
		}
	}

	// Siblings arrive sorted by start with contiguous indices; the new
	// marker's rank is the count of siblings starting before it.
	newIndex := 0
	for i := range siblings {
		if siblings[i].Start < start {
			newIndex++
		}
	}

	var newID int64
	err = e.lib.WithTransaction(ctx, func(tx database.LibraryTxI) error {
		id, txErr := tx.InsertMarker(item.ID, start, end, newIndex, markerType, final, true)
		if txErr != nil {
			return txErr
		}
		newID = id
		for i := newIndex; i < len(siblings); i++ {
			if txErr := tx.UpdateMarkerIndex(siblings[i].ID, i+1); txErr != nil {
				return txErr
			}
		}
		return nil
	})
	if err != nil {
		return nil, classifyLibErr(err, "failed to commit marker insert")
	}

	now := time.Now()
	return &database.Marker{
		ID:            newID,
		ParentID:      item.ID,
		SeasonID:      item.SeasonID,
		ShowID:        item.ShowID,
		SectionID:     item.SectionID,
		Start:         start,
		End:           end,
		Index:         newIndex,
		Type:          markerType,
		Final:         final,
		CreatedByUser: true,
		CreatedAt:     now,
		ModifiedAt:    now,
	}, nil
}

// Edit replaces a marker's interval, type and final flag, re-indexing
// siblings when the new start time changes the ordering.
func (e *Engine) Edit(
	ctx context.Context, id, start, end int64, markerType database.MarkerType, final bool,
) (*database.Marker, error) {
	release, err := e.begin()
	if err != nil {
		return nil, err
	}
	defer release()

	if !database.ValidMarkerType(string(markerType)) {
		return nil, errBadRequestf("invalid marker type %q", markerType)
	}
	// Unlike Add, Edit tolerates a stray final flag: warn and clear, the
	// rest of the edit still applies.
	if final && markerType != database.MarkerCredits {
		log.Warn().Int64("marker_id", id).
			Msgf("final flag is only valid on credits markers, clearing (type %q)", markerType)
		final = false
	}

	existing, err := e.lib.GetMarker(id)
	if errors.Is(err, librarydb.ErrNotFound) {
		return nil, errNotFoundf("marker %d does not exist", id)
	}
	if err != nil {
		return nil, classifyLibErr(err, "failed to load marker")
	}

	item, err := e.loadMarkerableItem(existing.ParentID)
	if err != nil {
		return nil, err
	}
	if vErr := validateInterval(start, end, item.Duration); vErr != nil {
		return nil, vErr
	}

	unlock := e.lockParent(existing.ParentID)
	defer unlock()

	siblings, err := e.lib.ListMarkers(existing.ParentID)
	if err != nil {
		return nil, classifyLibErr(err, "failed to load existing markers")
	}

	// Replace the target in-memory and re-derive the ordering.
	updated := make([]database.Marker, 0, len(siblings))
	var target *database.Marker
	for i := range siblings {
		m := siblings[i]
		if m.ID == id {
			m.Start = start
			m.End = end
			m.Type = markerType
			m.Final = final
		}
		updated = append(updated, m)
	}
	sortByStart(updated)
	targetIndex := -1
	for i := range updated {
		if updated[i].ID == id {
			target = &updated[i]
			targetIndex = i
		}
	}
	if target == nil {
		return nil, errNotFoundf("marker %d does not exist", id)
	}

	for i := 1; i < len(updated); i++ {
		if updated[i-1].Overlaps(&updated[i]) {
			a, b := &updated[i-1], &updated[i]
			return nil, errOverlapf(
				"marker %d [%d, %d) would overlap marker %d [%d, %d)",
				a.ID, a.Start, a.End, b.ID, b.Start, b.End,
			)
		}
	}

	err = e.lib.WithTransaction(ctx, func(tx database.LibraryTxI) error {
		for i := range updated {
			m := &updated[i]
			if m.ID == id {
				if txErr := tx.UpdateMarker(
					id, start, end, i, markerType, final, m.CreatedByUser,
				); txErr != nil {
					return txErr
				}
				continue
			}
			if m.Index != i {
				if txErr := tx.UpdateMarkerIndex(m.ID, i); txErr != nil {
					return txErr
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, classifyLibErr(err, "failed to commit marker edit")
	}

	result := *target
	result.Index = targetIndex
	result.ModifiedAt = time.Now()

	if existing.Type != markerType {
		e.cacheDelta(existing, -1)
		e.cacheDelta(&result, +1)
	}
	oldStart, oldEnd := existing.Start, existing.End
	e.appendAction(database.OpEdit, &result, &oldStart, &oldEnd, e.restoreKeyFor(id))
	e.notify(models.NotificationMarkersChanged, models.MarkersChangedNotification{
		Op: "edit", ParentID: result.ParentID, SectionID: result.SectionID, MarkerID: id,
	})
	return &result, nil
}

// Delete removes a marker and closes the index gap it leaves behind. The
// prior state of the marker is returned.
func (e *Engine) Delete(ctx context.Context, id int64) (*database.Marker, error) {
	release, err := e.begin()
	if err != nil {
		return nil, err
	}
	defer release()

	existing, err := e.lib.GetMarker(id)
	if errors.Is(err, librarydb.ErrNotFound) {
		return nil, errNotFoundf("marker %d does not exist", id)
	}
	if err != nil {
		return nil, classifyLibErr(err, "failed to load marker")
	}

	unlock := e.lockParent(existing.ParentID)
	defer unlock()

	siblings, err := e.lib.ListMarkers(existing.ParentID)
	if err != nil {
		return nil, classifyLibErr(err, "failed to load existing markers")
	}

	err = e.lib.WithTransaction(ctx, func(tx database.LibraryTxI) error {
		if txErr := tx.DeleteMarker(id); txErr != nil {
			return txErr
		}
		for i := range siblings {
			if siblings[i].ID != id && siblings[i].Index > existing.Index {
				if txErr := tx.UpdateMarkerIndex(siblings[i].ID, siblings[i].Index-1); txErr != nil {
					return txErr
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, classifyLibErr(err, "failed to commit marker delete")
	}

	e.cacheDelta(existing, -1)
	e.appendAction(database.OpDelete, existing, nil, nil, e.restoreKeyFor(id))
	e.notify(models.NotificationMarkersChanged, models.MarkersChangedNotification{
		Op: "delete", ParentID: existing.ParentID, SectionID: existing.SectionID, MarkerID: id,
	})
	return existing, nil
}

// cacheDelta moves the parent's bucket by one marker of the given type.
func (e *Engine) cacheDelta(m *database.Marker, sign int) {
	if e.cache == nil {
		return
	}
	switch m.Type {
	case database.MarkerIntro:
		e.cache.Delta(m.SectionID, m.ParentID, sign, 0, 0)
	case database.MarkerCredits:
		e.cache.Delta(m.SectionID, m.ParentID, 0, sign, 0)
	case database.MarkerCommercial:
		e.cache.Delta(m.SectionID, m.ParentID, 0, 0, sign)
	}
}

// restoreKeyFor looks up the restore key a marker was born under. Markers
// the log has never seen (library-native ones) get a fresh key.
func (e *Engine) restoreKeyFor(markerID int64) string {
	if e.alog == nil || !e.cfg.BackupActions() {
		return ""
	}
	key, err := e.alog.RestoreKeyFor(markerID)
	if err != nil {
		log.Error().Err(err).Int64("marker_id", markerID).Msg("failed to look up restore key")
	}
	if key == "" {
		key = uuid.NewString()
	}
	return key
}

// appendAction records one committed mutation in the action log. Log
// failures are reported but never fail the already-committed mutation.
func (e *Engine) appendAction(
	op database.ActionOp, m *database.Marker, oldStart, oldEnd *int64, restoreKey string,
) {
	if e.alog == nil || !e.cfg.BackupActions() {
		return
	}
	entry := &database.ActionEntry{
		Op:         op,
		MarkerID:   m.ID,
		RestoreKey: restoreKey,
		ParentID:   m.ParentID,
		SeasonID:   m.SeasonID,
		ShowID:     m.ShowID,
		SectionID:  m.SectionID,
		Start:      m.Start,
		End:        m.End,
		OldStart:   oldStart,
		OldEnd:     oldEnd,
		Type:       m.Type,
		Final:      m.Final,
	}
	if _, err := e.alog.Append(entry); err != nil {
		log.Error().Err(err).
			Int64("marker_id", m.ID).
			Str("op", op.String()).
			Msg("failed to append action log entry")
	}
}

func sortByStart(markers []database.Marker) {
	sort.Slice(markers, func(i, j int) bool { return markers[i].Start < markers[j].Start })
}
