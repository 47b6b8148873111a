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
	"context"
	"strconv"
	"strings"

	"github.com/markertools/markerd/pkg/api/models"
	"github.com/markertools/markerd/pkg/api/models/requests"
	"github.com/markertools/markerd/pkg/api/validation"
	"github.com/rs/zerolog/log"
)

// parseIgnoredIDs parses the comma-separated marker id list of a shift
// request.
func parseIgnoredIDs(csv string) ([]int64, error) {
	if csv == "" {
		return nil, nil
	}
	parts := strings.Split(csv, ",")
	ids := make([]int64, 0, len(parts))
	for _, part := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return nil, validation.ErrInvalidParams
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// shiftDeltas resolves the single-delta and split-delta forms. The single
// form wins when both are present.
func shiftDeltas(params *models.ShiftParams) (dStart, dEnd int64) {
	if params.Shift != nil {
		return *params.Shift, *params.Shift
	}
	if params.StartShift != nil {
		dStart = *params.StartShift
	}
	if params.EndShift != nil {
		dEnd = *params.EndShift
	}
	return dStart, dEnd
}

func HandleShift(env requests.RequestEnv) (any, error) {
	log.Info().Msg("received shift request")

	var params models.ShiftParams
	if err := validation.ValidateAndUnmarshal(env.Params, &params); err != nil {
		return nil, err
	}

	ignoreIDs, err := parseIgnoredIDs(params.Ignored)
	if err != nil {
		return nil, err
	}
	dStart, dEnd := shiftDeltas(&params)

	return env.Engine.Shift(
		context.Background(), params.ID, dStart, dEnd, params.Force == 1, ignoreIDs,
	)
}

func HandleCheckShift(env requests.RequestEnv) (any, error) {
	log.Debug().Msg("received check shift request")

	var params models.CheckShiftParams
	if err := validation.ValidateAndUnmarshal(env.Params, &params); err != nil {
		return nil, err
	}

	return env.Engine.CheckShift(context.Background(), params.ID)
}
