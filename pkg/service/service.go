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

// Package service wires the daemon together: databases, engine, cache,
// reconciler and API server, in that order.
package service

import (
	"context"
	"fmt"
	"os"

	"github.com/jonboulle/clockwork"
	"github.com/markertools/markerd/pkg/api"
	"github.com/markertools/markerd/pkg/api/models"
	"github.com/markertools/markerd/pkg/config"
	"github.com/markertools/markerd/pkg/database/actionlog"
	"github.com/markertools/markerd/pkg/database/librarydb"
	"github.com/markertools/markerd/pkg/helpers"
	"github.com/markertools/markerd/pkg/markers"
	"github.com/markertools/markerd/pkg/markers/cache"
	"github.com/rs/zerolog/log"
)

// notificationBuffer bounds the broadcast queue; the engine drops rather
// than blocks when it fills.
const notificationBuffer = 64

func setupEnvironment(cfg *config.Instance) error {
	if cfg.MetadataPath() == "" {
		cfg.SetMetadataPath(helpers.DataDir())
	}
	if err := os.MkdirAll(cfg.MetadataPath(), 0o750); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	return nil
}

// Start brings the daemon up and returns a stop function. done is closed
// when the API server exits.
func Start(cfg *config.Instance) (stop func() error, done <-chan struct{}, err error) {
	log.Info().Msgf("version: %s", config.AppVersion)

	ctx, cancel := context.WithCancel(context.Background())

	if err := setupEnvironment(cfg); err != nil {
		cancel()
		return nil, nil, err
	}

	log.Debug().Msg("opening action log database")
	alog, err := actionlog.OpenActionLog(ctx, cfg.MetadataPath(), clockwork.NewRealClock())
	if err != nil {
		cancel()
		return nil, nil, fmt.Errorf("failed to open action log: %w", err)
	}
	log.Debug().Msg("running action log migrations")
	if err := alog.MigrateUp(); err != nil {
		cancel()
		return nil, nil, fmt.Errorf("error migrating action log: %w", err)
	}

	log.Debug().Str("path", cfg.DatabasePath()).Msg("opening library database")
	lib, err := librarydb.OpenLibraryDB(ctx, cfg.DatabasePath())
	if err != nil {
		cancel()
		return nil, nil, fmt.Errorf("failed to open library database: %w", err)
	}

	notifications := make(chan models.Notification, notificationBuffer)
	engine := markers.NewEngine(cfg, lib, alog, cache.New(), notifications)

	if err := engine.BuildCache(); err != nil {
		log.Error().Err(err).Msg("initial cache build failed, stats fall back to live scans")
	}
	if err := engine.Reconcile(); err != nil {
		log.Error().Err(err).Msg("startup purge reconcile failed")
	}

	doneCh := make(chan struct{})
	go func() {
		defer close(doneCh)
		if err := api.Start(ctx, cfg, engine, notifications); err != nil {
			log.Error().Err(err).Msg("api server exited")
		}
	}()

	if cfg.AutoOpen() {
		url := fmt.Sprintf("http://%s:%d", cfg.Host(), cfg.Port())
		if err := helpers.OpenBrowser(url); err != nil {
			log.Warn().Err(err).Str("url", url).Msg("failed to open browser")
		}
	}

	stop = func() error {
		log.Info().Msg("shutting down")
		cancel()
		<-doneCh
		if err := lib.Close(); err != nil {
			log.Error().Err(err).Msg("error closing library database")
		}
		if err := alog.Close(); err != nil {
			log.Error().Err(err).Msg("error closing action log database")
		}
		return nil
	}
	return stop, doneCh, nil
}
