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

// Package markers is the marker mutation engine: single-marker CRUD, bulk
// shifts, the purge reconciler and the read-side queries. All mutations go
// through one library transaction, then update the breakdown cache and
// append to the action log.
package markers

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/markertools/markerd/pkg/api/models"
	"github.com/markertools/markerd/pkg/config"
	"github.com/markertools/markerd/pkg/database"
	"github.com/markertools/markerd/pkg/database/librarydb"
	"github.com/markertools/markerd/pkg/helpers/syncutil"
	"github.com/markertools/markerd/pkg/markers/cache"
	"github.com/rs/zerolog/log"
)

type Engine struct {
	lib   database.LibraryDBI
	alog  database.ActionLogDBI
	cache *cache.Cache
	cfg   *config.Instance

	notifications chan<- models.Notification

	// suspendMu serializes suspend/resume against in-flight operations:
	// every operation holds the read side for its duration, so taking the
	// write side waits for all in-flight transactions to finish.
	suspendMu syncutil.RWMutex
	suspended bool

	// Keyed per-parent locks serialize CRUD within one parent. Shift takes
	// every affected parent's lock in id order before classifying.
	lockMu      syncutil.Mutex
	parentLocks map[int64]*refLock

	purged purgedIndex
}

type refLock struct {
	mu   syncutil.Mutex
	refs int
}

// NewEngine wires the engine. alog may be nil when backup_actions is
// disabled; c may be nil when extended_marker_stats is disabled;
// notifications may be nil when no broadcast sink exists (tests).
func NewEngine(
	cfg *config.Instance,
	lib database.LibraryDBI,
	alog database.ActionLogDBI,
	c *cache.Cache,
	notifications chan<- models.Notification,
) *Engine {
	return &Engine{
		lib:           lib,
		alog:          alog,
		cache:         c,
		cfg:           cfg,
		notifications: notifications,
		parentLocks:   make(map[int64]*refLock),
		purged:        newPurgedIndex(),
	}
}

// begin guards one operation against suspension. The returned release func
// must be called when the operation finishes.
func (e *Engine) begin() (func(), error) {
	e.suspendMu.RLock()
	if e.suspended || !e.lib.Available() {
		e.suspendMu.RUnlock()
		return nil, errUnavailable()
	}
	return e.suspendMu.RUnlock, nil
}

// Suspended reports the administrative state.
func (e *Engine) Suspended() bool {
	e.suspendMu.RLock()
	defer e.suspendMu.RUnlock()
	return e.suspended
}

// Suspend waits for in-flight operations, closes the library handle and
// evicts the cache. Mutating operations fail Unavailable until Resume.
func (e *Engine) Suspend() error {
	e.suspendMu.Lock()
	defer e.suspendMu.Unlock()

	if e.suspended {
		return nil
	}
	if err := e.lib.Close(); err != nil {
		return errInternal("failed to close library database", err)
	}
	e.suspended = true
	if e.cache != nil {
		e.cache.Clear()
	}
	log.Info().Msg("service suspended, library database closed")
	e.notify(models.NotificationStateChanged, models.StateChangedNotification{State: "suspended"})
	return nil
}

// Resume reopens the library handle, rebuilds the cache and re-runs the
// purge reconcile.
func (e *Engine) Resume() error {
	e.suspendMu.Lock()
	if !e.suspended {
		e.suspendMu.Unlock()
		return nil
	}
	if err := e.lib.Open(); err != nil {
		e.suspendMu.Unlock()
		return errInternal("failed to reopen library database", err)
	}
	e.suspended = false
	e.suspendMu.Unlock()

	if err := e.BuildCache(); err != nil {
		log.Error().Err(err).Msg("cache rebuild failed after resume")
	}
	if err := e.Reconcile(); err != nil {
		log.Error().Err(err).Msg("purge reconcile failed after resume")
	}

	log.Info().Msg("service resumed")
	e.notify(models.NotificationStateChanged, models.StateChangedNotification{State: "running"})
	return nil
}

// BuildCache populates the breakdown cache with one overview scan per
// section. A failed section is evicted so stats fall back to live scans.
func (e *Engine) BuildCache() error {
	if e.cache == nil || !e.cfg.ExtendedMarkerStats() {
		return nil
	}
	release, err := e.begin()
	if err != nil {
		return err
	}
	defer release()

	sections, err := e.lib.ListSections()
	if err != nil {
		return errInternal("failed to list sections for cache build", err)
	}
	for _, section := range sections {
		counts, err := e.lib.SectionOverview(section.ID)
		if err != nil {
			e.cache.DropSection(section.ID)
			return errInternal(fmt.Sprintf("failed to scan section %d", section.ID), err)
		}
		e.cache.RebuildSection(section.ID, counts)
	}
	log.Info().Int("sections", len(sections)).Msg("marker cache built")
	return nil
}

// lockParent serializes mutations within one parent. The returned func
// releases the lock.
func (e *Engine) lockParent(id int64) func() {
	e.acquire(id)
	return func() { e.release(id) }
}

// lockParents takes multiple keyed locks in id order to avoid deadlocks
// between concurrent bulk operations.
func (e *Engine) lockParents(ids []int64) func() {
	sorted := make([]int64, len(ids))
	copy(sorted, ids)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	for _, id := range sorted {
		e.acquire(id)
	}
	return func() {
		for i := len(sorted) - 1; i >= 0; i-- {
			e.release(sorted[i])
		}
	}
}

func (e *Engine) acquire(id int64) {
	e.lockMu.Lock()
	l, ok := e.parentLocks[id]
	if !ok {
		l = &refLock{}
		e.parentLocks[id] = l
	}
	l.refs++
	e.lockMu.Unlock()
	l.mu.Lock()
}

func (e *Engine) release(id int64) {
	e.lockMu.Lock()
	l := e.parentLocks[id]
	l.refs--
	if l.refs == 0 {
		delete(e.parentLocks, id)
	}
	e.lockMu.Unlock()
	l.mu.Unlock()
}

// notify broadcasts best-effort; a saturated sink never stalls a mutation.
func (e *Engine) notify(method string, params any) {
	if e.notifications == nil {
		return
	}
	data, err := json.Marshal(params)
	if err != nil {
		log.Error().Err(err).Str("method", method).Msg("failed to marshal notification")
		return
	}
	select {
	case e.notifications <- models.Notification{Method: method, Params: data}:
	default:
		log.Warn().Str("method", method).Msg("notification sink full, dropping")
	}
}

// classifyLibErr maps adapter sentinels onto the error taxonomy.
func classifyLibErr(err error, msg string) *Error {
	switch {
	case errors.Is(err, librarydb.ErrNullSQL):
		return errUnavailable()
	case errors.Is(err, librarydb.ErrNotFound):
		return errNotFoundf("%s", msg)
	default:
		return errInternal(msg, err)
	}
}
