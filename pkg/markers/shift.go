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

	"github.com/markertools/markerd/pkg/api/models"
	"github.com/markertools/markerd/pkg/database"
	"github.com/markertools/markerd/pkg/database/librarydb"
)

// ShiftResult reports a bulk shift or its dry run. Markers holds the
// enumerated (pre-shift) markers on refusal and the shifted markers on
// success.
type ShiftResult struct {
	Markers       []database.Marker `json:"allMarkers"`
	LinkedParents []int64           `json:"linkedParents,omitempty"`
	Applied       bool              `json:"applied"`
	Conflict      bool              `json:"conflict"`
	Overflow      bool              `json:"overflow"`
}

type shiftClass int

const (
	shiftClean shiftClass = iota
	shiftCutoff
	shiftError
)

// classifyShift applies the deltas to one marker against its parent's
// duration. Cutoff markers get clamped endpoints; Error markers are
// untouched by the shift.
func classifyShift(m *database.Marker, dStart, dEnd, duration int64) (shiftClass, int64, int64) {
	start := m.Start + dStart
	end := m.End + dEnd

	// end <= start is always Error, even with both endpoints in range.
	if end <= 0 || start >= duration || end <= start {
		return shiftError, m.Start, m.End
	}
	if start < 0 || end > duration {
		return shiftCutoff, max(0, start), min(duration, end)
	}
	return shiftClean, start, end
}

// shiftRoot resolves a subtree root for shift and purge-check operations.
func (e *Engine) shiftRoot(rootID int64) (*database.Item, error) {
	item, err := e.lib.GetItem(rootID)
	if errors.Is(err, librarydb.ErrNotFound) {
		return nil, errNotFoundf("item %d does not exist", rootID)
	}
	if err != nil {
		return nil, classifyLibErr(err, "failed to load subtree root")
	}
	switch item.Type {
	case database.ItemMovie, database.ItemShow, database.ItemSeason, database.ItemEpisode:
		return item, nil
	default:
		return nil, errBadRequestf("item %d is a %s and cannot root a bulk operation", rootID, item.Type)
	}
}

// CheckShift enumerates the subtree's markers and flags linked parents
// without classifying against a delta. It never mutates.
func (e *Engine) CheckShift(_ context.Context, rootID int64) (*ShiftResult, error) {
	release, err := e.begin()
	if err != nil {
		return nil, err
	}
	defer release()

	if _, err := e.shiftRoot(rootID); err != nil {
		return nil, err
	}
	all, err := e.lib.ListMarkersForSubtree(rootID)
	if err != nil {
		return nil, classifyLibErr(err, "failed to enumerate subtree markers")
	}

	return &ShiftResult{
		Applied:       false,
		Markers:       all,
		LinkedParents: linkedParents(groupByParent(all)),
	}, nil
}

// Shift applies signed start/end deltas to every non-ignored marker under
// rootID. Without force it refuses on linked parents (Conflict) and on any
// marker that would land outside a usable interval (Overflow). Error
// markers are never written, even under force.
func (e *Engine) Shift(
	ctx context.Context, rootID, dStart, dEnd int64, force bool, ignoreIDs []int64,
) (*ShiftResult, error) {
	if dStart == 0 && dEnd == 0 {
		return nil, errBadRequestf("shift of (0, 0) is a no-op")
	}

	release, err := e.begin()
	if err != nil {
		return nil, err
	}
	defer release()

	if _, err := e.shiftRoot(rootID); err != nil {
		return nil, err
	}

	all, unlockParents, err := e.lockSubtreeParents(rootID)
	if err != nil {
		return nil, err
	}
	defer unlockParents()

	ignored := make(map[int64]bool, len(ignoreIDs))
	for _, id := range ignoreIDs {
		ignored[id] = true
	}
	retained := make([]database.Marker, 0, len(all))
	for i := range all {
		if !ignored[all[i].ID] {
			retained = append(retained, all[i])
		}
	}

	byParent := groupByParent(retained)
	linked := linkedParents(byParent)

	durations := make(map[int64]int64, len(byParent))
	for parentID := range byParent {
		item, err := e.lib.GetItem(parentID)
		if err != nil {
			return nil, classifyLibErr(err, "failed to load marker parent")
		}
		durations[parentID] = item.Duration
	}

	anyError := false
	for i := range retained {
		class, _, _ := classifyShift(&retained[i], dStart, dEnd, durations[retained[i].ParentID])
		if class == shiftError {
			anyError = true
		}
	}

	if len(linked) > 0 && !force {
		return &ShiftResult{
			Applied:       false,
			Conflict:      true,
			Overflow:      anyError,
			Markers:       retained,
			LinkedParents: linked,
		}, nil
	}
	if anyError && !force {
		return &ShiftResult{Applied: false, Overflow: true, Markers: retained}, nil
	}

	// Build the post-state per parent: shifted non-Error markers plus
	// untouched Error markers, re-sorted and re-indexed together. A pure
	// uniform shift preserves order, but clamping can reorder endpoints.
	type write struct {
		marker   database.Marker // post-state
		oldStart int64
		oldEnd   int64
		mutated  bool // interval changed, not just index
	}
	var writes []write
	for parentID, group := range byParent {
		post := make([]write, 0, len(group))
		for i := range group {
			m := group[i]
			w := write{marker: m, oldStart: m.Start, oldEnd: m.End}
			class, newStart, newEnd := classifyShift(&m, dStart, dEnd, durations[parentID])
			if class != shiftError {
				w.marker.Start = newStart
				w.marker.End = newEnd
				w.mutated = true
			}
			post = append(post, w)
		}
		sort.Slice(post, func(i, j int) bool { return post[i].marker.Start < post[j].marker.Start })
		for i := 1; i < len(post); i++ {
			if post[i-1].marker.Overlaps(&post[i].marker) {
				return nil, errOverlapf(
					"shift would overlap markers %d and %d on item %d",
					post[i-1].marker.ID, post[i].marker.ID, parentID,
				)
			}
		}
		for i := range post {
			post[i].marker.Index = i
		}
		writes = append(writes, post...)
	}

	err = e.lib.WithTransaction(ctx, func(tx database.LibraryTxI) error {
		for i := range writes {
			w := &writes[i]
			m := &w.marker
			if w.mutated {
				if txErr := tx.UpdateMarker(
					m.ID, m.Start, m.End, m.Index, m.Type, m.Final, m.CreatedByUser,
				); txErr != nil {
					return txErr
				}
				continue
			}
			if txErr := tx.UpdateMarkerIndex(m.ID, m.Index); txErr != nil {
				return txErr
			}
		}
		return nil
	})
	if err != nil {
		return nil, classifyLibErr(err, "failed to commit shift")
	}

	shifted := make([]database.Marker, 0, len(writes))
	for i := range writes {
		w := &writes[i]
		if w.mutated {
			oldStart, oldEnd := w.oldStart, w.oldEnd
			e.appendAction(database.OpEdit, &w.marker, &oldStart, &oldEnd, e.restoreKeyFor(w.marker.ID))
			shifted = append(shifted, w.marker)
		}
	}
	sort.Slice(shifted, func(i, j int) bool {
		if shifted[i].ParentID != shifted[j].ParentID {
			return shifted[i].ParentID < shifted[j].ParentID
		}
		return shifted[i].Start < shifted[j].Start
	})

	e.notify(models.NotificationMarkersChanged, models.MarkersChangedNotification{
		Op: "shift", ParentID: rootID, SectionID: sectionOf(shifted),
	})
	return &ShiftResult{Applied: true, Markers: shifted}, nil
}

// lockSubtreeParents enumerates the subtree's markers and takes the keyed
// lock of every parent that owns one. The first listing races with CRUD on
// parents not yet locked, so the markers are re-read under the locks and
// the acquisition retried until the parent set is stable. The root never
// gets a separate lock: a markerable root is in the parent set already, and
// a container root is covered by its descendants' locks.
func (e *Engine) lockSubtreeParents(rootID int64) ([]database.Marker, func(), error) {
	for {
		listed, err := e.lib.ListMarkersForSubtree(rootID)
		if err != nil {
			return nil, nil, classifyLibErr(err, "failed to enumerate subtree markers")
		}
		parents := parentIDsOf(listed)
		unlock := e.lockParents(parents)

		relisted, err := e.lib.ListMarkersForSubtree(rootID)
		if err != nil {
			unlock()
			return nil, nil, classifyLibErr(err, "failed to enumerate subtree markers")
		}
		if equalIDs(parents, parentIDsOf(relisted)) {
			return relisted, unlock, nil
		}
		unlock()
	}
}

func parentIDsOf(markers []database.Marker) []int64 {
	seen := make(map[int64]bool, len(markers))
	ids := make([]int64, 0, len(markers))
	for i := range markers {
		if !seen[markers[i].ParentID] {
			seen[markers[i].ParentID] = true
			ids = append(ids, markers[i].ParentID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func equalIDs(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func groupByParent(markers []database.Marker) map[int64][]database.Marker {
	groups := make(map[int64][]database.Marker)
	for i := range markers {
		groups[markers[i].ParentID] = append(groups[markers[i].ParentID], markers[i])
	}
	return groups
}

// linkedParents returns the parents holding more than one retained marker,
// sorted for stable output.
func linkedParents(groups map[int64][]database.Marker) []int64 {
	var linked []int64
	for parentID, group := range groups {
		if len(group) > 1 {
			linked = append(linked, parentID)
		}
	}
	sort.Slice(linked, func(i, j int) bool { return linked[i] < linked[j] })
	return linked
}

func sectionOf(markers []database.Marker) int64 {
	if len(markers) == 0 {
		return 0
	}
	return markers[0].SectionID
}
