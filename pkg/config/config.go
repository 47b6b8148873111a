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

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/markertools/markerd/pkg/helpers/syncutil"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog/log"
)

const (
	SchemaVersion = 1
	CfgEnv        = "MARKERD_CFG"
)

// Values is everything persisted in the TOML config file.
type Values struct {
	Host         string `toml:"host"`
	DatabasePath string `toml:"database_path"`
	MetadataPath string `toml:"metadata_path"`
	LogLevel     string `toml:"log_level"`
	Port         int    `toml:"port"`
	ConfigSchema int    `toml:"config_schema"`

	// External collaborators read these; the core only forwards them.
	PreviewThumbnails bool `toml:"preview_thumbnails"`
	AutoOpen          bool `toml:"auto_open"`

	// BackupActions enables the action log and the purge reconciler.
	BackupActions bool `toml:"backup_actions"`
	// ExtendedMarkerStats enables the in-memory breakdown cache.
	ExtendedMarkerStats bool `toml:"extended_marker_stats"`
}

var BaseDefaults = Values{
	ConfigSchema:        SchemaVersion,
	Host:                "localhost",
	Port:                3232,
	LogLevel:            "info",
	BackupActions:       true,
	ExtendedMarkerStats: true,
}

// Instance is the runtime view of the config file, safe for concurrent use.
type Instance struct {
	cfgPath  string
	vals     Values
	defaults Values
	mu       syncutil.RWMutex
}

// NewConfig loads (creating with defaults on first boot) the config file
// under configDir. MARKERD_CFG overrides the file location.
//
//nolint:gocritic // config struct copied for immutability
func NewConfig(configDir string, defaults Values) (*Instance, error) {
	cfgPath := os.Getenv(CfgEnv)
	if cfgPath == "" {
		cfgPath = filepath.Join(configDir, CfgFile)
	}

	cfg := Instance{
		mu:       syncutil.RWMutex{},
		cfgPath:  cfgPath,
		vals:     defaults,
		defaults: defaults,
	}

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		log.Info().Msg("saving new default config to disk")

		if err := os.MkdirAll(filepath.Dir(cfgPath), 0o750); err != nil {
			return nil, fmt.Errorf("failed to create config directory: %w", err)
		}
		if err := cfg.Save(); err != nil {
			return nil, err
		}
	}

	if err := cfg.Load(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Instance) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cfgPath == "" {
		return errors.New("config path not set")
	}

	data, err := os.ReadFile(c.cfgPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	// Start with defaults, then unmarshal file values on top so fields not
	// present in the file retain their default values.
	newVals := c.defaults
	if err := toml.Unmarshal(data, &newVals); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if newVals.ConfigSchema != SchemaVersion {
		log.Error().Msgf(
			"schema version mismatch: got %d, expecting %d",
			newVals.ConfigSchema, SchemaVersion,
		)
		return errors.New("schema version mismatch")
	}

	c.vals = newVals
	return nil
}

func (c *Instance) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cfgPath == "" {
		return errors.New("config path not set")
	}

	data, err := toml.Marshal(&c.vals)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(c.cfgPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func (c *Instance) ConfigPath() string {
	return c.cfgPath
}

func (c *Instance) Host() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Host
}

func (c *Instance) Port() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Port
}

// DatabasePath is the foreign library database file.
func (c *Instance) DatabasePath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.DatabasePath
}

// MetadataPath is the data directory for everything markerd owns: the action
// log database and log files.
func (c *Instance) MetadataPath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.MetadataPath
}

func (c *Instance) LogLevel() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.LogLevel
}

func (c *Instance) PreviewThumbnails() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.PreviewThumbnails
}

func (c *Instance) AutoOpen() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.AutoOpen
}

func (c *Instance) BackupActions() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.BackupActions
}

func (c *Instance) ExtendedMarkerStats() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.ExtendedMarkerStats
}

func (c *Instance) SetDatabasePath(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.DatabasePath = path
}

func (c *Instance) SetMetadataPath(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.MetadataPath = path
}

func (c *Instance) SetHostPort(host string, port int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if host != "" {
		c.vals.Host = host
	}
	if port != 0 {
		c.vals.Port = port
	}
}

func (c *Instance) SetLogLevel(level string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.LogLevel = level
}

func (c *Instance) SetBackupActions(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.BackupActions = enabled
}

func (c *Instance) SetExtendedMarkerStats(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.ExtendedMarkerStats = enabled
}

func (c *Instance) SetPreviewThumbnails(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.PreviewThumbnails = enabled
}

func (c *Instance) SetAutoOpen(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.AutoOpen = enabled
}

// Snapshot returns a copy of all values for the settings API.
//
//nolint:gocritic // value copy keeps callers off the live struct
func (c *Instance) Snapshot() Values {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals
}
