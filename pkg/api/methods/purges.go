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

	"github.com/markertools/markerd/pkg/api/models"
	"github.com/markertools/markerd/pkg/api/models/requests"
	"github.com/markertools/markerd/pkg/api/validation"
	"github.com/markertools/markerd/pkg/markers"
	"github.com/rs/zerolog/log"
)

// PurgesResponse lives here rather than in models because PurgedMarker
// belongs to the engine, which models must not import.
type PurgesResponse struct {
	Purges []markers.PurgedMarker `json:"purges"`
}

func HandlePurgeCheck(env requests.RequestEnv) (any, error) {
	log.Debug().Msg("received purge check request")

	var params models.IDParams
	if err := validation.ValidateAndUnmarshal(env.Params, &params); err != nil {
		return nil, err
	}

	purges, err := env.Engine.PurgeCheck(context.Background(), params.ID)
	if err != nil {
		return nil, err
	}
	return PurgesResponse{Purges: purges}, nil
}

func HandleAllPurges(env requests.RequestEnv) (any, error) {
	log.Debug().Msg("received all purges request")

	var params models.AllPurgesParams
	if err := validation.ValidateAndUnmarshal(env.Params, &params); err != nil {
		return nil, err
	}

	purges, err := env.Engine.PurgesForSection(context.Background(), params.SectionID)
	if err != nil {
		return nil, err
	}
	return PurgesResponse{Purges: purges}, nil
}

func HandleRestore(env requests.RequestEnv) (any, error) {
	log.Info().Msg("received restore request")

	var params models.PurgedMarkerParams
	if err := validation.ValidateAndUnmarshal(env.Params, &params); err != nil {
		return nil, err
	}

	return env.Engine.Restore(context.Background(), params.MarkerID, params.SectionID)
}

func HandleIgnorePurge(env requests.RequestEnv) (any, error) {
	log.Info().Msg("received ignore purge request")

	var params models.PurgedMarkerParams
	if err := validation.ValidateAndUnmarshal(env.Params, &params); err != nil {
		return nil, err
	}

	if err := env.Engine.Ignore(context.Background(), params.MarkerID, params.SectionID); err != nil {
		return nil, err
	}
	return models.OKResponse{OK: true}, nil
}
