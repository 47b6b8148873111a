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
	"errors"

	"github.com/markertools/markerd/pkg/api/models"
	"github.com/markertools/markerd/pkg/api/models/requests"
	"github.com/markertools/markerd/pkg/api/validation"
	"github.com/markertools/markerd/pkg/helpers"
	"github.com/rs/zerolog/log"
)

func HandleSettings(env requests.RequestEnv) (any, error) {
	log.Debug().Msg("received settings request")

	vals := env.Config.Snapshot()
	return models.SettingsResponse{
		Host:                vals.Host,
		Port:                vals.Port,
		DatabasePath:        vals.DatabasePath,
		MetadataPath:        vals.MetadataPath,
		LogLevel:            vals.LogLevel,
		PreviewThumbnails:   vals.PreviewThumbnails,
		AutoOpen:            vals.AutoOpen,
		BackupActions:       vals.BackupActions,
		ExtendedMarkerStats: vals.ExtendedMarkerStats,
	}, nil
}

func HandleSettingsUpdate(env requests.RequestEnv) (any, error) {
	log.Info().Msg("received settings update request")

	var params models.UpdateSettingsParams
	if err := validation.ValidateAndUnmarshal(env.Params, &params); err != nil {
		return nil, err
	}

	if params.LogLevel != nil {
		log.Info().Str("logLevel", *params.LogLevel).Msg("update")
		env.Config.SetLogLevel(*params.LogLevel)
		helpers.SetLogLevel(*params.LogLevel)
	}

	if params.PreviewThumbnails != nil {
		log.Info().Bool("previewThumbnails", *params.PreviewThumbnails).Msg("update")
		env.Config.SetPreviewThumbnails(*params.PreviewThumbnails)
	}

	if params.AutoOpen != nil {
		log.Info().Bool("autoOpen", *params.AutoOpen).Msg("update")
		env.Config.SetAutoOpen(*params.AutoOpen)
	}

	if params.BackupActions != nil {
		log.Info().Bool("backupActions", *params.BackupActions).Msg("update")
		env.Config.SetBackupActions(*params.BackupActions)
		if *params.BackupActions {
			// Catch up on anything that happened while the log was off.
			go func() {
				if err := env.Engine.Reconcile(); err != nil {
					log.Error().Err(err).Msg("purge reconcile failed after enabling action log")
				}
			}()
		}
	}

	if params.ExtendedMarkerStats != nil {
		log.Info().Bool("extendedMarkerStats", *params.ExtendedMarkerStats).Msg("update")
		env.Config.SetExtendedMarkerStats(*params.ExtendedMarkerStats)
		if *params.ExtendedMarkerStats {
			go func() {
				if err := env.Engine.BuildCache(); err != nil {
					log.Error().Err(err).Msg("cache build failed after enabling extended stats")
				}
			}()
		}
	}

	if err := env.Config.Save(); err != nil {
		log.Error().Err(err).Msg("error saving settings")
		return nil, errors.New("error saving settings")
	}

	return models.OKResponse{OK: true}, nil
}
