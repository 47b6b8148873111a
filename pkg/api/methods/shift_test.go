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

package methods

import (
	"testing"

	"github.com/markertools/markerd/pkg/api/models"
	"github.com/markertools/markerd/pkg/api/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIgnoredIDs(t *testing.T) {
	t.Parallel()

	ids, err := parseIgnoredIDs("")
	require.NoError(t, err)
	assert.Nil(t, ids)

	ids, err = parseIgnoredIDs("42")
	require.NoError(t, err)
	assert.Equal(t, []int64{42}, ids)

	ids, err = parseIgnoredIDs("1, 2,3")
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, ids)

	_, err = parseIgnoredIDs("1,x,3")
	assert.ErrorIs(t, err, validation.ErrInvalidParams)

	_, err = parseIgnoredIDs("1,,3")
	assert.ErrorIs(t, err, validation.ErrInvalidParams)
}

func TestShiftDeltas(t *testing.T) {
	t.Parallel()

	val := func(v int64) *int64 { return &v }

	dStart, dEnd := shiftDeltas(&models.ShiftParams{Shift: val(5000)})
	assert.Equal(t, int64(5000), dStart)
	assert.Equal(t, int64(5000), dEnd)

	dStart, dEnd = shiftDeltas(&models.ShiftParams{StartShift: val(-1000), EndShift: val(2000)})
	assert.Equal(t, int64(-1000), dStart)
	assert.Equal(t, int64(2000), dEnd)

	dStart, dEnd = shiftDeltas(&models.ShiftParams{EndShift: val(2000)})
	assert.Equal(t, int64(0), dStart)
	assert.Equal(t, int64(2000), dEnd)

	// The single-delta form wins over split deltas.
	dStart, dEnd = shiftDeltas(&models.ShiftParams{
		Shift: val(5000), StartShift: val(-1000), EndShift: val(2000),
	})
	assert.Equal(t, int64(5000), dStart)
	assert.Equal(t, int64(5000), dEnd)

	dStart, dEnd = shiftDeltas(&models.ShiftParams{})
	assert.Zero(t, dStart)
	assert.Zero(t, dEnd)
}
