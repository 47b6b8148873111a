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

package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/markertools/markerd/pkg/config"
	"github.com/markertools/markerd/pkg/helpers"
	"github.com/markertools/markerd/pkg/service"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := run(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func run() error {
	dbPath := flag.String(
		"db",
		"",
		"path to the media server library database (overrides config)",
	)
	host := flag.String(
		"host",
		"",
		"address to listen on (overrides config)",
	)
	port := flag.Int(
		"port",
		0,
		"port to listen on (overrides config)",
	)
	showVersion := flag.Bool(
		"version",
		false,
		"print version and exit",
	)
	verbose := flag.Bool(
		"verbose",
		false,
		"also log to stderr",
	)
	flag.Parse()

	if *showVersion {
		fmt.Println(config.AppName, config.AppVersion)
		return nil
	}

	var logWriters []io.Writer
	if *verbose {
		logWriters = []io.Writer{zerolog.ConsoleWriter{Out: os.Stderr}}
	}
	if err := helpers.InitLogging(helpers.DataDir(), logWriters); err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}

	cfg, err := config.NewConfig(helpers.ConfigDir(), config.BaseDefaults)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if *dbPath != "" {
		cfg.SetDatabasePath(*dbPath)
	}
	cfg.SetHostPort(*host, *port)
	helpers.SetLogLevel(cfg.LogLevel())

	if cfg.DatabasePath() == "" {
		return fmt.Errorf(
			"no library database configured; set database_path in %s or pass -db",
			cfg.ConfigPath(),
		)
	}

	stop, done, err := service.Start(cfg)
	if err != nil {
		log.Error().Err(err).Msg("error starting service")
		return fmt.Errorf("error starting service: %w", err)
	}
	defer func() {
		if err := stop(); err != nil {
			log.Error().Err(err).Msg("error stopping service")
		}
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigs:
		log.Info().Msg("signal received, exiting")
	case <-done:
		log.Info().Msg("api server stopped, exiting")
	}
	return nil
}
