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

package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/markertools/markerd/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigCreatesDefaultFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	cfg, err := config.NewConfig(dir, config.BaseDefaults)
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, config.CfgFile))
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Host())
	assert.Equal(t, 3232, cfg.Port())
	assert.Equal(t, "info", cfg.LogLevel())
	assert.True(t, cfg.BackupActions())
	assert.True(t, cfg.ExtendedMarkerStats())
	assert.False(t, cfg.AutoOpen())
	assert.Empty(t, cfg.DatabasePath())
}

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	cfg, err := config.NewConfig(dir, config.BaseDefaults)
	require.NoError(t, err)

	cfg.SetDatabasePath("/srv/plex/library.db")
	cfg.SetHostPort("0.0.0.0", 8080)
	cfg.SetLogLevel("debug")
	cfg.SetBackupActions(false)
	cfg.SetAutoOpen(true)
	require.NoError(t, cfg.Save())

	reloaded, err := config.NewConfig(dir, config.BaseDefaults)
	require.NoError(t, err)
	assert.Equal(t, "/srv/plex/library.db", reloaded.DatabasePath())
	assert.Equal(t, "0.0.0.0", reloaded.Host())
	assert.Equal(t, 8080, reloaded.Port())
	assert.Equal(t, "debug", reloaded.LogLevel())
	assert.False(t, reloaded.BackupActions())
	assert.True(t, reloaded.AutoOpen())
}

func TestSetHostPortIgnoresZeroValues(t *testing.T) {
	t.Parallel()

	cfg, err := config.NewConfig(t.TempDir(), config.BaseDefaults)
	require.NoError(t, err)

	cfg.SetHostPort("", 0)
	assert.Equal(t, "localhost", cfg.Host())
	assert.Equal(t, 3232, cfg.Port())

	cfg.SetHostPort("", 9000)
	assert.Equal(t, "localhost", cfg.Host())
	assert.Equal(t, 9000, cfg.Port())
}

func TestLoadOverlaysDefaults(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	// A sparse file: everything absent keeps its default.
	data := "config_schema = 1\nhost = \"0.0.0.0\"\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.CfgFile), []byte(data), 0o600))

	cfg, err := config.NewConfig(dir, config.BaseDefaults)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0", cfg.Host())
	assert.Equal(t, 3232, cfg.Port())
	assert.Equal(t, "info", cfg.LogLevel())
	assert.True(t, cfg.BackupActions())
}

func TestSchemaMismatchRejected(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	data := "config_schema = 99\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.CfgFile), []byte(data), 0o600))

	_, err := config.NewConfig(dir, config.BaseDefaults)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema version mismatch")
}

func TestEnvOverridesConfigPath(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "custom.toml")
	t.Setenv(config.CfgEnv, cfgPath)

	cfg, err := config.NewConfig(t.TempDir(), config.BaseDefaults)
	require.NoError(t, err)
	assert.Equal(t, cfgPath, cfg.ConfigPath())

	_, err = os.Stat(cfgPath)
	require.NoError(t, err)
}

func TestSnapshot(t *testing.T) {
	t.Parallel()

	cfg, err := config.NewConfig(t.TempDir(), config.BaseDefaults)
	require.NoError(t, err)
	cfg.SetDatabasePath("/srv/plex/library.db")

	vals := cfg.Snapshot()
	assert.Equal(t, "/srv/plex/library.db", vals.DatabasePath)
	assert.Equal(t, config.SchemaVersion, vals.ConfigSchema)

	// Mutating the snapshot does not touch the live config.
	vals.DatabasePath = "/elsewhere.db"
	assert.Equal(t, "/srv/plex/library.db", cfg.DatabasePath())
}
