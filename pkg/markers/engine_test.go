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

	"github.com/jonboulle/clockwork"
	"github.com/markertools/markerd/pkg/config"
	"github.com/markertools/markerd/pkg/database"
	"github.com/markertools/markerd/pkg/database/actionlog"
	"github.com/markertools/markerd/pkg/database/librarydb"
	"github.com/markertools/markerd/pkg/markers/cache"
	"github.com/markertools/markerd/pkg/testing/helpers"
	"github.com/stretchr/testify/require"
)

type testEngine struct {
	engine *Engine
	lib    *librarydb.LibraryDB
	alog   *actionlog.ActionLog
	cfg    *config.Instance
	clock  *clockwork.FakeClock
}

func newTestEngine(t *testing.T) *testEngine {
	t.Helper()

	cfg, err := config.NewConfig(t.TempDir(), config.BaseDefaults)
	require.NoError(t, err)

	lib, libCleanup := helpers.NewTestLibraryDB(t)
	t.Cleanup(libCleanup)

	clock := clockwork.NewFakeClock()
	alog, alogCleanup := helpers.NewTestActionLog(t, clock)
	t.Cleanup(alogCleanup)

	engine := NewEngine(cfg, lib, alog, cache.New(), nil)
	require.NoError(t, engine.BuildCache())

	return &testEngine{
		engine: engine,
		lib:    lib,
		alog:   alog,
		cfg:    cfg,
		clock:  clock,
	}
}

// addMarker creates a marker through the engine and fails the test on error.
func (te *testEngine) addMarker(
	t *testing.T, parentID, start, end int64, markerType database.MarkerType,
) *database.Marker {
	t.Helper()
	marker, err := te.engine.Add(context.Background(), parentID, start, end, markerType, false)
	require.NoError(t, err)
	return marker
}

func TestSuspendResume(t *testing.T) {
	t.Parallel()
	te := newTestEngine(t)
	ctx := context.Background()

	require.False(t, te.engine.Suspended())
	require.NoError(t, te.engine.Suspend())
	require.True(t, te.engine.Suspended())

	_, err := te.engine.Add(ctx, helpers.Episode1ID, 0, 30_000, database.MarkerIntro, false)
	require.Error(t, err)
	require.Equal(t, KindUnavailable, KindOf(err))

	_, err = te.engine.Sections(ctx)
	require.Error(t, err)
	require.Equal(t, KindUnavailable, KindOf(err))

	require.NoError(t, te.engine.Resume())
	require.False(t, te.engine.Suspended())

	marker, err := te.engine.Add(ctx, helpers.Episode1ID, 0, 30_000, database.MarkerIntro, false)
	require.NoError(t, err)
	require.NotZero(t, marker.ID)
}

func TestSuspendIsIdempotent(t *testing.T) {
	t.Parallel()
	te := newTestEngine(t)

	require.NoError(t, te.engine.Suspend())
	require.NoError(t, te.engine.Suspend())
	require.True(t, te.engine.Suspended())

	require.NoError(t, te.engine.Resume())
	require.NoError(t, te.engine.Resume())
	require.False(t, te.engine.Suspended())
}

func TestSuspendClearsCache(t *testing.T) {
	t.Parallel()
	te := newTestEngine(t)

	te.addMarker(t, helpers.Episode1ID, 0, 30_000, database.MarkerIntro)
	require.True(t, te.engine.cache.HasSection(helpers.SectionTV))

	require.NoError(t, te.engine.Suspend())
	require.False(t, te.engine.cache.HasSection(helpers.SectionTV))

	// Resume rebuilds from the library, so the marker is counted again.
	require.NoError(t, te.engine.Resume())
	breakdown, ok := te.engine.cache.SectionBreakdown(helpers.SectionTV)
	require.True(t, ok)
	require.Equal(t, 1, breakdown.TotalIntros())
}
