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

package actionlog_test

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/markertools/markerd/pkg/database"
	"github.com/markertools/markerd/pkg/database/actionlog"
	"github.com/markertools/markerd/pkg/testing/helpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entryFor(markerID, sectionID int64, op database.ActionOp, key string) *database.ActionEntry {
	return &database.ActionEntry{
		Op:         op,
		MarkerID:   markerID,
		RestoreKey: key,
		ParentID:   1000,
		SeasonID:   100,
		ShowID:     10,
		SectionID:  sectionID,
		Start:      5_000,
		End:        35_000,
		Type:       database.MarkerIntro,
	}
}

func TestAppendStampsClockTime(t *testing.T) {
	t.Parallel()
	base := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(base)
	alog, cleanup := helpers.NewTestActionLog(t, clock)
	defer cleanup()

	opID, err := alog.Append(entryFor(1, 1, database.OpAdd, "key-a"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), opID)

	clock.Advance(90 * time.Second)
	opID, err = alog.Append(entryFor(2, 1, database.OpAdd, "key-b"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), opID)

	entries, err := alog.AllEntries()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, base.Unix(), entries[0].At.Unix())
	assert.Equal(t, base.Add(90*time.Second).Unix(), entries[1].At.Unix())
}

func TestAppendKeepsExplicitTimestamp(t *testing.T) {
	t.Parallel()
	clock := clockwork.NewFakeClock()
	alog, cleanup := helpers.NewTestActionLog(t, clock)
	defer cleanup()

	at := time.Date(2025, 12, 31, 23, 59, 59, 0, time.UTC)
	entry := entryFor(1, 1, database.OpAdd, "key-a")
	entry.At = at
	_, err := alog.Append(entry)
	require.NoError(t, err)

	entries, err := alog.AllEntries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, at.Unix(), entries[0].At.Unix())
}

func TestEntriesRoundTrip(t *testing.T) {
	t.Parallel()
	alog, cleanup := helpers.NewTestActionLog(t, clockwork.NewFakeClock())
	defer cleanup()

	oldStart, oldEnd := int64(1_000), int64(31_000)
	entry := entryFor(7, 3, database.OpEdit, "key-edit")
	entry.OldStart = &oldStart
	entry.OldEnd = &oldEnd
	entry.Final = true
	entry.Type = database.MarkerCredits
	_, err := alog.Append(entry)
	require.NoError(t, err)

	entries, err := alog.AllEntries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	got := entries[0]
	assert.Equal(t, database.OpEdit, got.Op)
	assert.Equal(t, int64(7), got.MarkerID)
	assert.Equal(t, "key-edit", got.RestoreKey)
	assert.Equal(t, int64(1000), got.ParentID)
	assert.Equal(t, int64(100), got.SeasonID)
	assert.Equal(t, int64(10), got.ShowID)
	assert.Equal(t, int64(3), got.SectionID)
	assert.Equal(t, int64(5_000), got.Start)
	assert.Equal(t, int64(35_000), got.End)
	require.NotNil(t, got.OldStart)
	assert.Equal(t, oldStart, *got.OldStart)
	require.NotNil(t, got.OldEnd)
	assert.Equal(t, oldEnd, *got.OldEnd)
	assert.Equal(t, database.MarkerCredits, got.Type)
	assert.True(t, got.Final)
	assert.False(t, got.Ignored)
}

func TestEntriesForSection(t *testing.T) {
	t.Parallel()
	alog, cleanup := helpers.NewTestActionLog(t, clockwork.NewFakeClock())
	defer cleanup()

	_, err := alog.Append(entryFor(1, 1, database.OpAdd, "key-a"))
	require.NoError(t, err)
	_, err = alog.Append(entryFor(2, 2, database.OpAdd, "key-b"))
	require.NoError(t, err)
	_, err = alog.Append(entryFor(1, 1, database.OpDelete, "key-a"))
	require.NoError(t, err)

	entries, err := alog.EntriesForSection(1)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, database.OpAdd, entries[0].Op)
	assert.Equal(t, database.OpDelete, entries[1].Op)

	entries, err = alog.EntriesForSection(2)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(2), entries[0].MarkerID)

	entries, err = alog.EntriesForSection(99)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRestoreKeyFor(t *testing.T) {
	t.Parallel()
	alog, cleanup := helpers.NewTestActionLog(t, clockwork.NewFakeClock())
	defer cleanup()

	_, err := alog.Append(entryFor(1, 1, database.OpAdd, "key-old"))
	require.NoError(t, err)
	_, err = alog.Append(entryFor(1, 1, database.OpEdit, "key-new"))
	require.NoError(t, err)

	key, err := alog.RestoreKeyFor(1)
	require.NoError(t, err)
	assert.Equal(t, "key-new", key)

	key, err = alog.RestoreKeyFor(99)
	require.NoError(t, err)
	assert.Empty(t, key)
}

func TestMarkIgnoredFlagsWholeChain(t *testing.T) {
	t.Parallel()
	alog, cleanup := helpers.NewTestActionLog(t, clockwork.NewFakeClock())
	defer cleanup()

	_, err := alog.Append(entryFor(1, 1, database.OpAdd, "key-a"))
	require.NoError(t, err)
	_, err = alog.Append(entryFor(1, 1, database.OpEdit, "key-a"))
	require.NoError(t, err)
	_, err = alog.Append(entryFor(2, 1, database.OpAdd, "key-b"))
	require.NoError(t, err)

	require.NoError(t, alog.MarkIgnored("key-a"))

	entries, err := alog.AllEntries()
	require.NoError(t, err)
	require.Len(t, entries, 3)
	for _, entry := range entries {
		assert.Equal(t, entry.RestoreKey == "key-a", entry.Ignored)
	}
}

func TestClosedLogReturnsErrNullSQL(t *testing.T) {
	t.Parallel()
	alog, _ := helpers.NewTestActionLog(t, clockwork.NewFakeClock())
	require.NoError(t, alog.Close())

	_, err := alog.Append(entryFor(1, 1, database.OpAdd, "key-a"))
	assert.ErrorIs(t, err, actionlog.ErrNullSQL)

	_, err = alog.AllEntries()
	assert.ErrorIs(t, err, actionlog.ErrNullSQL)

	_, err = alog.RestoreKeyFor(1)
	assert.ErrorIs(t, err, actionlog.ErrNullSQL)

	assert.ErrorIs(t, alog.MarkIgnored("key-a"), actionlog.ErrNullSQL)
}
