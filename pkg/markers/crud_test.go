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
	"testing"

	"github.com/markertools/markerd/pkg/database"
	"github.com/markertools/markerd/pkg/testing/helpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddMarker(t *testing.T) {
	t.Parallel()
	te := newTestEngine(t)

	marker := te.addMarker(t, helpers.Episode1ID, 5_000, 35_000, database.MarkerIntro)
	assert.NotZero(t, marker.ID)
	assert.Equal(t, helpers.Episode1ID, marker.ParentID)
	assert.Equal(t, helpers.Season1ID, marker.SeasonID)
	assert.Equal(t, helpers.ShowID, marker.ShowID)
	assert.Equal(t, helpers.SectionTV, marker.SectionID)
	assert.Equal(t, 0, marker.Index)
	assert.True(t, marker.CreatedByUser)

	stored, err := te.lib.GetMarker(marker.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5_000), stored.Start)
	assert.Equal(t, int64(35_000), stored.End)
	assert.Equal(t, database.MarkerIntro, stored.Type)
	assert.True(t, stored.CreatedByUser)

	entries, err := te.alog.AllEntries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, database.OpAdd, entries[0].Op)
	assert.Equal(t, marker.ID, entries[0].MarkerID)
	assert.NotEmpty(t, entries[0].RestoreKey)
}

func TestAddFinalCreditsMarker(t *testing.T) {
	t.Parallel()
	te := newTestEngine(t)

	end := helpers.EpisodeDuration
	marker, err := te.engine.Add(
		context.Background(), helpers.Episode1ID, end-60_000, end, database.MarkerCredits, true,
	)
	require.NoError(t, err)
	assert.True(t, marker.Final)

	stored, err := te.lib.GetMarker(marker.ID)
	require.NoError(t, err)
	assert.True(t, stored.Final)
}

func TestAddDisplacesSiblings(t *testing.T) {
	t.Parallel()
	te := newTestEngine(t)

	later := te.addMarker(t, helpers.Episode1ID, 100_000, 200_000, database.MarkerCredits)
	require.Equal(t, 0, later.Index)

	earlier := te.addMarker(t, helpers.Episode1ID, 0, 30_000, database.MarkerIntro)
	assert.Equal(t, 0, earlier.Index)

	all, err := te.lib.ListMarkers(helpers.Episode1ID)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, earlier.ID, all[0].ID)
	assert.Equal(t, 0, all[0].Index)
	assert.Equal(t, later.ID, all[1].ID)
	assert.Equal(t, 1, all[1].Index)
}

func TestAddRejectsOverlap(t *testing.T) {
	t.Parallel()
	te := newTestEngine(t)
	ctx := context.Background()

	te.addMarker(t, helpers.Episode1ID, 10_000, 40_000, database.MarkerIntro)

	_, err := te.engine.Add(ctx, helpers.Episode1ID, 30_000, 60_000, database.MarkerCredits, false)
	require.Error(t, err)
	assert.Equal(t, KindOverlap, KindOf(err))

	// Touching endpoints are not an overlap.
	_, err = te.engine.Add(ctx, helpers.Episode1ID, 40_000, 60_000, database.MarkerCredits, false)
	require.NoError(t, err)
}

func TestAddRejectsFinalOnNonCredits(t *testing.T) {
	t.Parallel()
	te := newTestEngine(t)

	_, err := te.engine.Add(
		context.Background(), helpers.Episode1ID, 0, 30_000, database.MarkerIntro, true,
	)
	require.Error(t, err)
	assert.Equal(t, KindBadRequest, KindOf(err))
}

func TestAddRejectsInvalidType(t *testing.T) {
	t.Parallel()
	te := newTestEngine(t)

	_, err := te.engine.Add(
		context.Background(), helpers.Episode1ID, 0, 30_000, database.MarkerType("chapter"), false,
	)
	require.Error(t, err)
	assert.Equal(t, KindBadRequest, KindOf(err))
}

func TestAddRejectsBadTarget(t *testing.T) {
	t.Parallel()
	te := newTestEngine(t)
	ctx := context.Background()

	for _, parentID := range []int64{helpers.ShowID, helpers.Season1ID, helpers.ArtistID, 99999} {
		_, err := te.engine.Add(ctx, parentID, 0, 30_000, database.MarkerIntro, false)
		require.Error(t, err)
		assert.Equal(t, KindBadTarget, KindOf(err), "parent %d", parentID)
	}
}

func TestAddValidatesInterval(t *testing.T) {
	t.Parallel()
	te := newTestEngine(t)
	ctx := context.Background()

	cases := []struct {
		name       string
		start, end int64
	}{
		{"negative start", -1, 30_000},
		{"start equals end", 30_000, 30_000},
		{"start after end", 40_000, 30_000},
		{"end past duration", 0, helpers.EpisodeDuration + 1},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := te.engine.Add(
				ctx, helpers.Episode1ID, tc.start, tc.end, database.MarkerIntro, false,
			)
			require.Error(t, err)
			assert.Equal(t, KindBadRequest, KindOf(err))
		})
	}
}

func TestEditMarker(t *testing.T) {
	t.Parallel()
	te := newTestEngine(t)
	ctx := context.Background()

	marker := te.addMarker(t, helpers.Episode1ID, 0, 30_000, database.MarkerIntro)

	edited, err := te.engine.Edit(ctx, marker.ID, 5_000, 45_000, database.MarkerCredits, false)
	require.NoError(t, err)
	assert.Equal(t, int64(5_000), edited.Start)
	assert.Equal(t, int64(45_000), edited.End)
	assert.Equal(t, database.MarkerCredits, edited.Type)

	stored, err := te.lib.GetMarker(marker.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5_000), stored.Start)
	assert.Equal(t, database.MarkerCredits, stored.Type)

	entries, err := te.alog.AllEntries()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, database.OpEdit, entries[1].Op)
	require.NotNil(t, entries[1].OldStart)
	assert.Equal(t, int64(0), *entries[1].OldStart)
	require.NotNil(t, entries[1].OldEnd)
	assert.Equal(t, int64(30_000), *entries[1].OldEnd)
	// Edits stay on the chain the marker was born under.
	assert.Equal(t, entries[0].RestoreKey, entries[1].RestoreKey)
}

func TestEditReordersSiblings(t *testing.T) {
	t.Parallel()
	te := newTestEngine(t)
	ctx := context.Background()

	first := te.addMarker(t, helpers.Episode1ID, 0, 30_000, database.MarkerIntro)
	second := te.addMarker(t, helpers.Episode1ID, 60_000, 90_000, database.MarkerCommercial)

	// Move the first marker past the second.
	edited, err := te.engine.Edit(ctx, first.ID, 100_000, 130_000, database.MarkerIntro, false)
	require.NoError(t, err)
	assert.Equal(t, 1, edited.Index)

	all, err := te.lib.ListMarkers(helpers.Episode1ID)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, second.ID, all[0].ID)
	assert.Equal(t, 0, all[0].Index)
	assert.Equal(t, first.ID, all[1].ID)
	assert.Equal(t, 1, all[1].Index)
}

func TestEditClearsStrayFinalFlag(t *testing.T) {
	t.Parallel()
	te := newTestEngine(t)

	marker := te.addMarker(t, helpers.Episode1ID, 0, 30_000, database.MarkerIntro)

	edited, err := te.engine.Edit(
		context.Background(), marker.ID, 0, 30_000, database.MarkerIntro, true,
	)
	require.NoError(t, err)
	assert.False(t, edited.Final)

	stored, err := te.lib.GetMarker(marker.ID)
	require.NoError(t, err)
	assert.False(t, stored.Final)
}

func TestEditRejectsOverlap(t *testing.T) {
	t.Parallel()
	te := newTestEngine(t)

	te.addMarker(t, helpers.Episode1ID, 0, 30_000, database.MarkerIntro)
	second := te.addMarker(t, helpers.Episode1ID, 60_000, 90_000, database.MarkerCredits)

	_, err := te.engine.Edit(
		context.Background(), second.ID, 20_000, 50_000, database.MarkerCredits, false,
	)
	require.Error(t, err)
	assert.Equal(t, KindOverlap, KindOf(err))
}

func TestEditNotFound(t *testing.T) {
	t.Parallel()
	te := newTestEngine(t)

	_, err := te.engine.Edit(context.Background(), 99999, 0, 30_000, database.MarkerIntro, false)
	require.Error(t, err)
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestDeleteMarker(t *testing.T) {
	t.Parallel()
	te := newTestEngine(t)

	first := te.addMarker(t, helpers.Episode1ID, 0, 30_000, database.MarkerIntro)
	middle := te.addMarker(t, helpers.Episode1ID, 60_000, 90_000, database.MarkerCommercial)
	last := te.addMarker(t, helpers.Episode1ID, 120_000, 150_000, database.MarkerCredits)

	deleted, err := te.engine.Delete(context.Background(), middle.ID)
	require.NoError(t, err)
	assert.Equal(t, middle.ID, deleted.ID)
	assert.Equal(t, int64(60_000), deleted.Start)

	all, err := te.lib.ListMarkers(helpers.Episode1ID)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, first.ID, all[0].ID)
	assert.Equal(t, 0, all[0].Index)
	assert.Equal(t, last.ID, all[1].ID)
	assert.Equal(t, 1, all[1].Index)

	entries, err := te.alog.AllEntries()
	require.NoError(t, err)
	require.Len(t, entries, 4)
	assert.Equal(t, database.OpDelete, entries[3].Op)
	assert.Equal(t, middle.ID, entries[3].MarkerID)
}

func TestDeleteNotFound(t *testing.T) {
	t.Parallel()
	te := newTestEngine(t)

	_, err := te.engine.Delete(context.Background(), 99999)
	require.Error(t, err)
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestCrudUpdatesCache(t *testing.T) {
	t.Parallel()
	te := newTestEngine(t)
	ctx := context.Background()

	marker := te.addMarker(t, helpers.Episode1ID, 0, 30_000, database.MarkerIntro)
	breakdown, ok := te.engine.cache.SectionBreakdown(helpers.SectionTV)
	require.True(t, ok)
	assert.Equal(t, 1, breakdown.TotalIntros())
	assert.Equal(t, 0, breakdown.TotalCredits())

	// Type change moves the count between buckets.
	_, err := te.engine.Edit(ctx, marker.ID, 0, 30_000, database.MarkerCredits, false)
	require.NoError(t, err)
	breakdown, ok = te.engine.cache.SectionBreakdown(helpers.SectionTV)
	require.True(t, ok)
	assert.Equal(t, 0, breakdown.TotalIntros())
	assert.Equal(t, 1, breakdown.TotalCredits())

	_, err = te.engine.Delete(ctx, marker.ID)
	require.NoError(t, err)
	breakdown, ok = te.engine.cache.SectionBreakdown(helpers.SectionTV)
	require.True(t, ok)
	assert.Equal(t, 0, breakdown.TotalMarkers())
}

func TestNoActionLogEntriesWhenBackupDisabled(t *testing.T) {
	t.Parallel()
	te := newTestEngine(t)
	te.cfg.SetBackupActions(false)

	te.addMarker(t, helpers.Episode1ID, 0, 30_000, database.MarkerIntro)

	entries, err := te.alog.AllEntries()
	require.NoError(t, err)
	assert.Empty(t, entries)
}
