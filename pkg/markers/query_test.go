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

func TestSections(t *testing.T) {
	t.Parallel()
	te := newTestEngine(t)

	sections, err := te.engine.Sections(context.Background())
	require.NoError(t, err)
	require.Len(t, sections, 2)
	assert.Equal(t, "TV Shows", sections[0].Name)
	assert.Equal(t, 2, sections[0].Type)
	assert.Equal(t, "Movies", sections[1].Name)
	assert.Equal(t, 1, sections[1].Type)
}

func TestSectionItems(t *testing.T) {
	t.Parallel()
	te := newTestEngine(t)
	ctx := context.Background()

	shows, err := te.engine.SectionItems(ctx, helpers.SectionTV)
	require.NoError(t, err)
	require.Len(t, shows, 1)
	assert.Equal(t, helpers.ShowID, shows[0].ID)
	assert.Equal(t, database.ItemShow, shows[0].Type)

	movies, err := te.engine.SectionItems(ctx, helpers.SectionMovies)
	require.NoError(t, err)
	require.Len(t, movies, 1)
	assert.Equal(t, helpers.MovieID, movies[0].ID)
	assert.Equal(t, database.ItemMovie, movies[0].Type)

	_, err = te.engine.SectionItems(ctx, 99999)
	require.Error(t, err)
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestSeasonsAndEpisodes(t *testing.T) {
	t.Parallel()
	te := newTestEngine(t)
	ctx := context.Background()

	seasons, err := te.engine.Seasons(ctx, helpers.ShowID)
	require.NoError(t, err)
	require.Len(t, seasons, 2)
	assert.Equal(t, helpers.Season1ID, seasons[0].ID)
	assert.Equal(t, helpers.Season2ID, seasons[1].ID)

	episodes, err := te.engine.Episodes(ctx, helpers.Season1ID)
	require.NoError(t, err)
	require.Len(t, episodes, 3)
	assert.Equal(t, helpers.Episode1ID, episodes[0].ID)
	assert.Equal(t, helpers.EpisodeDuration, episodes[0].Duration)

	// Type mismatch on the parent.
	_, err = te.engine.Seasons(ctx, helpers.Episode1ID)
	require.Error(t, err)
	assert.Equal(t, KindBadRequest, KindOf(err))

	_, err = te.engine.Episodes(ctx, 99999)
	require.Error(t, err)
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestQueryLeavesAndContainers(t *testing.T) {
	t.Parallel()
	te := newTestEngine(t)
	ctx := context.Background()

	te.addMarker(t, helpers.Episode1ID, 0, 30_000, database.MarkerIntro)
	te.addMarker(t, helpers.Episode1ID, 60_000, 90_000, database.MarkerCredits)
	te.addMarker(t, helpers.Episode4ID, 0, 30_000, database.MarkerIntro)
	te.addMarker(t, helpers.MovieID, 0, 60_000, database.MarkerIntro)

	out, err := te.engine.Query(ctx, []int64{
		helpers.Episode1ID, helpers.Episode2ID, helpers.MovieID,
	})
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Len(t, out[helpers.Episode1ID], 2)
	assert.Len(t, out[helpers.MovieID], 1)
	// Markerless keys still get an entry, with an empty slice.
	require.NotNil(t, out[helpers.Episode2ID])
	assert.Empty(t, out[helpers.Episode2ID])

	// Container keys roll up their whole subtree.
	out, err = te.engine.Query(ctx, []int64{helpers.ShowID})
	require.NoError(t, err)
	assert.Len(t, out[helpers.ShowID], 3)

	out, err = te.engine.Query(ctx, []int64{helpers.Season1ID, helpers.Season2ID})
	require.NoError(t, err)
	assert.Len(t, out[helpers.Season1ID], 2)
	assert.Len(t, out[helpers.Season2ID], 1)
}

func TestQueryRejectsBadKeys(t *testing.T) {
	t.Parallel()
	te := newTestEngine(t)
	ctx := context.Background()

	_, err := te.engine.Query(ctx, []int64{helpers.ArtistID})
	require.Error(t, err)
	assert.Equal(t, KindBadRequest, KindOf(err))

	_, err = te.engine.Query(ctx, []int64{99999})
	require.Error(t, err)
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestSectionStatsFromCache(t *testing.T) {
	t.Parallel()
	te := newTestEngine(t)
	ctx := context.Background()

	te.addMarker(t, helpers.Episode1ID, 0, 30_000, database.MarkerIntro)
	te.addMarker(t, helpers.Episode1ID, 60_000, 90_000, database.MarkerCredits)
	te.addMarker(t, helpers.Episode2ID, 0, 30_000, database.MarkerIntro)

	breakdown, fromCache, err := te.engine.SectionStats(ctx, helpers.SectionTV)
	require.NoError(t, err)
	assert.True(t, fromCache)
	assert.Equal(t, 2, breakdown.TotalIntros())
	assert.Equal(t, 1, breakdown.TotalCredits())
	assert.Equal(t, 4, breakdown.ItemCount())
	assert.Equal(t, 2, breakdown.ItemsWithMarkers())
}

func TestSectionStatsLiveFallback(t *testing.T) {
	t.Parallel()
	te := newTestEngine(t)
	ctx := context.Background()

	te.addMarker(t, helpers.Episode1ID, 0, 30_000, database.MarkerIntro)
	te.addMarker(t, helpers.Episode1ID, 60_000, 90_000, database.MarkerCredits)

	te.cfg.SetExtendedMarkerStats(false)

	breakdown, fromCache, err := te.engine.SectionStats(ctx, helpers.SectionTV)
	require.NoError(t, err)
	assert.False(t, fromCache)
	assert.Equal(t, 1, breakdown.TotalIntros())
	assert.Equal(t, 1, breakdown.TotalCredits())
	assert.Equal(t, 4, breakdown.ItemCount())
}

func TestSectionStatsUnknownSection(t *testing.T) {
	t.Parallel()
	te := newTestEngine(t)

	_, _, err := te.engine.SectionStats(context.Background(), 99999)
	require.Error(t, err)
	assert.Equal(t, KindNotFound, KindOf(err))
}
