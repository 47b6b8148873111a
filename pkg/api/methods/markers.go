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

// Package methods holds one handler per JSON-RPC method. Handlers parse and
// validate params, call the engine and shape the response; error
// classification stays in the engine.
package methods

import (
	"context"

	"github.com/markertools/markerd/pkg/api/models"
	"github.com/markertools/markerd/pkg/api/models/requests"
	"github.com/markertools/markerd/pkg/api/validation"
	"github.com/markertools/markerd/pkg/database"
	"github.com/rs/zerolog/log"
)

func HandleQuery(env requests.RequestEnv) (any, error) {
	log.Debug().Msg("received query request")

	var params models.QueryParams
	if err := validation.ValidateAndUnmarshal(env.Params, &params); err != nil {
		return nil, err
	}

	markers, err := env.Engine.Query(context.Background(), params.Keys)
	if err != nil {
		return nil, err
	}
	return models.QueryResponse{Markers: markers}, nil
}

func HandleAdd(env requests.RequestEnv) (any, error) {
	log.Info().Msg("received marker add request")

	var params models.AddParams
	if err := validation.ValidateAndUnmarshal(env.Params, &params); err != nil {
		return nil, err
	}

	return env.Engine.Add(
		context.Background(),
		params.MetadataID,
		params.Start,
		params.End,
		database.MarkerType(params.Type),
		params.Final == 1,
	)
}

func HandleEdit(env requests.RequestEnv) (any, error) {
	log.Info().Msg("received marker edit request")

	var params models.EditParams
	if err := validation.ValidateAndUnmarshal(env.Params, &params); err != nil {
		return nil, err
	}
	// userCreated crosses the wire for client compatibility but provenance
	// is never editable; the stored flag wins.
	if params.UserCreated == 1 {
		log.Debug().Int64("marker_id", params.ID).Msg("ignoring userCreated param on edit")
	}

	return env.Engine.Edit(
		context.Background(),
		params.ID,
		params.Start,
		params.End,
		database.MarkerType(params.Type),
		params.Final == 1,
	)
}

func HandleDelete(env requests.RequestEnv) (any, error) {
	log.Info().Msg("received marker delete request")

	var params models.DeleteParams
	if err := validation.ValidateAndUnmarshal(env.Params, &params); err != nil {
		return nil, err
	}

	return env.Engine.Delete(context.Background(), params.ID)
}
