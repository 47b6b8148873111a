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

	"github.com/markertools/markerd/pkg/api/models"
	"github.com/markertools/markerd/pkg/database"
	"github.com/markertools/markerd/pkg/database/librarydb"
	"github.com/markertools/markerd/pkg/helpers/syncutil"
	"github.com/rs/zerolog/log"
)

// PurgedMarker is the last-known state of a marker the action log tracked
// but the library no longer contains. MarkerID is the library row id at the
// last sighting; it is only a hint, the restore key is the identity.
type PurgedMarker struct {
	At         time.Time           `json:"at"`
	RestoreKey string              `json:"restoreKey"`
	Type       database.MarkerType `json:"type"`
	MarkerID   int64               `json:"markerId"`
	ParentID   int64               `json:"parentId"`
	SeasonID   int64               `json:"seasonId,omitempty"`
	ShowID     int64               `json:"showId,omitempty"`
	SectionID  int64               `json:"sectionId"`
	Start      int64               `json:"start"`
	End        int64               `json:"end"`
	Final      bool                `json:"final"`
}

// purgedIndex is the in-memory set of purge candidates, rebuilt by
// Reconcile and trimmed as candidates are restored or ignored.
type purgedIndex struct {
	byKey map[string]PurgedMarker
	mu    syncutil.RWMutex
}

func newPurgedIndex() purgedIndex {
	return purgedIndex{byKey: make(map[string]PurgedMarker)}
}

func (p *purgedIndex) replace(candidates map[string]PurgedMarker) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.byKey = candidates
}

func (p *purgedIndex) remove(restoreKey string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.byKey, restoreKey)
}

// find resolves a candidate by the library id it was last seen under.
func (p *purgedIndex) find(markerID, sectionID int64) (PurgedMarker, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, pm := range p.byKey {
		if pm.MarkerID == markerID && pm.SectionID == sectionID {
			return pm, true
		}
	}
	return PurgedMarker{}, false
}

func (p *purgedIndex) section(sectionID int64) []PurgedMarker {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []PurgedMarker
	for _, pm := range p.byKey {
		if pm.SectionID == sectionID {
			out = append(out, pm)
		}
	}
	sortPurged(out)
	return out
}

func (p *purgedIndex) sectionCount(sectionID int64) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	n := 0
	for _, pm := range p.byKey {
		if pm.SectionID == sectionID {
			n++
		}
	}
	return n
}

func sortPurged(out []PurgedMarker) {
	sort.Slice(out, func(i, j int) bool {
		if out[i].ParentID != out[j].ParentID {
			return out[i].ParentID < out[j].ParentID
		}
		return out[i].Start < out[j].Start
	})
}

// purgeEnabled gates every purge operation on the action log feature.
func (e *Engine) purgeEnabled() error {
	if e.alog == nil || !e.cfg.BackupActions() {
		return errFeatureDisabled("backup_actions")
	}
	return nil
}

// chainState folds one restore-key chain of action log entries.
type chainState struct {
	last    database.ActionEntry
	live    bool
	ignored bool
}

// Reconcile replays the action log against the current library contents and
// rebuilds the purge candidate index. A marker we created or touched that
// has since vanished from the library (without us deleting it) is a purge:
// typically the media server regenerated its own markers over ours.
func (e *Engine) Reconcile() error {
	if err := e.purgeEnabled(); err != nil {
		// Nothing to reconcile with the log disabled.
		return nil //nolint:nilerr // feature off is not a reconcile failure
	}
	release, err := e.begin()
	if err != nil {
		return err
	}
	defer release()

	entries, err := e.alog.AllEntries()
	if err != nil {
		return errInternal("failed to read action log", err)
	}

	chains := make(map[string]*chainState)
	for i := range entries {
		entry := entries[i]
		if entry.RestoreKey == "" {
			continue
		}
		chain, ok := chains[entry.RestoreKey]
		if !ok {
			chain = &chainState{}
			chains[entry.RestoreKey] = chain
		}
		switch entry.Op {
		case database.OpAdd, database.OpEdit, database.OpRestore:
			chain.last = entry
			chain.live = true
		case database.OpDelete:
			chain.live = false
		case database.OpIgnore:
			chain.ignored = true
		}
		if entry.Ignored {
			chain.ignored = true
		}
	}

	candidates := make(map[string]PurgedMarker)
	perSection := make(map[int64]int)
	for key, chain := range chains {
		if !chain.live || chain.ignored {
			continue
		}
		present, err := e.markerStillPresent(&chain.last)
		if err != nil {
			return err
		}
		if present {
			continue
		}
		last := chain.last
		candidates[key] = PurgedMarker{
			At:         last.At,
			RestoreKey: key,
			Type:       last.Type,
			MarkerID:   last.MarkerID,
			ParentID:   last.ParentID,
			SeasonID:   last.SeasonID,
			ShowID:     last.ShowID,
			SectionID:  last.SectionID,
			Start:      last.Start,
			End:        last.End,
			Final:      last.Final,
		}
		perSection[last.SectionID]++
	}

	e.purged.replace(candidates)
	if len(candidates) > 0 {
		log.Info().Int("markers", len(candidates)).Msg("purged markers detected")
	}
	for sectionID, count := range perSection {
		e.notify(models.NotificationPurgesFound, models.PurgesFoundNotification{
			SectionID: sectionID, Count: count,
		})
	}
	return nil
}

// markerStillPresent checks the library first by row id, then by
// fingerprint in case the server re-created the marker under a new id.
func (e *Engine) markerStillPresent(entry *database.ActionEntry) (bool, error) {
	_, err := e.lib.GetMarker(entry.MarkerID)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, librarydb.ErrNotFound) {
		return false, classifyLibErr(err, "failed to look up marker")
	}

	_, err = e.lib.FindMarker(entry.ParentID, entry.Start, entry.End, entry.Type)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, librarydb.ErrNotFound) {
		return false, nil
	}
	return false, classifyLibErr(err, "failed to fingerprint marker")
}

// PurgesForSection lists the current purge candidates of one section.
func (e *Engine) PurgesForSection(_ context.Context, sectionID int64) ([]PurgedMarker, error) {
	if err := e.purgeEnabled(); err != nil {
		return nil, err
	}
	release, err := e.begin()
	if err != nil {
		return nil, err
	}
	defer release()

	out := e.purged.section(sectionID)
	if out == nil {
		out = []PurgedMarker{}
	}
	return out, nil
}

// PurgeCheck lists the purge candidates under one subtree root.
func (e *Engine) PurgeCheck(_ context.Context, rootID int64) ([]PurgedMarker, error) {
	if err := e.purgeEnabled(); err != nil {
		return nil, err
	}
	release, err := e.begin()
	if err != nil {
		return nil, err
	}
	defer release()

	root, err := e.shiftRoot(rootID)
	if err != nil {
		return nil, err
	}

	all := e.purged.section(root.SectionID)
	out := make([]PurgedMarker, 0, len(all))
	for _, pm := range all {
		match := false
		switch root.Type {
		case database.ItemMovie, database.ItemEpisode:
			match = pm.ParentID == rootID
		case database.ItemSeason:
			match = pm.SeasonID == rootID
		case database.ItemShow:
			match = pm.ShowID == rootID
		}
		if match {
			out = append(out, pm)
		}
	}
	return out, nil
}

// Restore re-creates a purged marker on its original parent and records the
// re-creation under the marker's original restore key, so the whole history
// stays one chain.
func (e *Engine) Restore(ctx context.Context, oldMarkerID, sectionID int64) (*database.Marker, error) {
	if err := e.purgeEnabled(); err != nil {
		return nil, err
	}
	release, err := e.begin()
	if err != nil {
		return nil, err
	}
	defer release()

	pm, ok := e.purged.find(oldMarkerID, sectionID)
	if !ok {
		return nil, errNotFoundf("no purged marker %d in section %d", oldMarkerID, sectionID)
	}

	item, err := e.loadMarkerableItem(pm.ParentID)
	if err != nil {
		return nil, err
	}
	if vErr := validateInterval(pm.Start, pm.End, item.Duration); vErr != nil {
		return nil, vErr
	}

	marker, err := e.insertMarker(ctx, item, pm.Start, pm.End, pm.Type, pm.Final)
	if err != nil {
		return nil, err
	}

	e.purged.remove(pm.RestoreKey)
	e.cacheDelta(marker, +1)
	e.appendAction(database.OpRestore, marker, nil, nil, pm.RestoreKey)
	e.notify(models.NotificationMarkersChanged, models.MarkersChangedNotification{
		Op: "restore", ParentID: marker.ParentID, SectionID: marker.SectionID, MarkerID: marker.ID,
	})
	e.notify(models.NotificationPurgesFound, models.PurgesFoundNotification{
		SectionID: sectionID, Count: e.purged.sectionCount(sectionID),
	})
	return marker, nil
}

// Ignore drops a purge candidate permanently. The whole restore-key chain
// is flagged so later reconciles skip it.
func (e *Engine) Ignore(_ context.Context, oldMarkerID, sectionID int64) error {
	if err := e.purgeEnabled(); err != nil {
		return err
	}
	release, err := e.begin()
	if err != nil {
		return err
	}
	defer release()

	pm, ok := e.purged.find(oldMarkerID, sectionID)
	if !ok {
		return errNotFoundf("no purged marker %d in section %d", oldMarkerID, sectionID)
	}

	ghost := &database.Marker{
		ID:        pm.MarkerID,
		ParentID:  pm.ParentID,
		SeasonID:  pm.SeasonID,
		ShowID:    pm.ShowID,
		SectionID: pm.SectionID,
		Start:     pm.Start,
		End:       pm.End,
		Type:      pm.Type,
		Final:     pm.Final,
	}
	e.appendAction(database.OpIgnore, ghost, nil, nil, pm.RestoreKey)
	if err := e.alog.MarkIgnored(pm.RestoreKey); err != nil {
		return errInternal("failed to flag restore chain as ignored", err)
	}

	e.purged.remove(pm.RestoreKey)
	e.notify(models.NotificationPurgesFound, models.PurgesFoundNotification{
		SectionID: sectionID, Count: e.purged.sectionCount(sectionID),
	})
	return nil
}
