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
	"github.com/markertools/markerd/pkg/api/models"
	"github.com/markertools/markerd/pkg/api/models/requests"
	"github.com/markertools/markerd/pkg/config"
	"github.com/rs/zerolog/log"
)

func HandleVersion(env requests.RequestEnv) (any, error) {
	log.Debug().Msg("received version request")

	state := "running"
	if env.Engine.Suspended() {
		state = "suspended"
	}
	return models.VersionResponse{Version: config.AppVersion, State: state}, nil
}

func HandleSuspend(env requests.RequestEnv) (any, error) {
	log.Info().Msg("received suspend request")

	if err := env.Engine.Suspend(); err != nil {
		return nil, err
	}
	return models.OKResponse{OK: true}, nil
}

func HandleResume(env requests.RequestEnv) (any, error) {
	log.Info().Msg("received resume request")

	if err := env.Engine.Resume(); err != nil {
		return nil, err
	}
	return models.OKResponse{OK: true}, nil
}
