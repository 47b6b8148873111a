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

// Package cache keeps the in-memory breakdown index: per section, a mapping
// from markerable item to its packed marker counts. It answers aggregate
// questions ("how many items have N intros and M credits") without touching
// the library database.
package cache

import (
	"github.com/markertools/markerd/pkg/database"
	"github.com/markertools/markerd/pkg/helpers/syncutil"
)

// PackedBucket encodes an item's marker counts in one machine word:
// commercials<<32 | credits<<16 | intros. Commercials count toward per-item
// totals but are excluded from the intro/credits breakdown key.
type PackedBucket uint64

const bucketFieldMask = 0xFFFF

func PackBucket(intros, credits, commercials int) PackedBucket {
	return PackedBucket(uint64(commercials)<<32 | uint64(credits)<<16 | uint64(intros))
}

func (b PackedBucket) Intros() int {
	return int(b & bucketFieldMask)
}

func (b PackedBucket) Credits() int {
	return int((b >> 16) & bucketFieldMask)
}

func (b PackedBucket) Commercials() int {
	return int((b >> 32) & bucketFieldMask)
}

func (b PackedBucket) Total() int {
	return b.Intros() + b.Credits() + b.Commercials()
}

// breakdownKey is the (intros, credits) combination used for grouping.
func (b PackedBucket) breakdownKey() PackedBucket {
	return b & (bucketFieldMask<<16 | bucketFieldMask)
}

// Cache is the breakdown index. Readers are aggregate queries; writers are
// post-commit deltas and section rebuilds.
type Cache struct {
	sections map[int64]map[int64]PackedBucket
	mu       syncutil.RWMutex
}

func New() *Cache {
	return &Cache{sections: make(map[int64]map[int64]PackedBucket)}
}

// RebuildSection replaces a section's buckets from a SectionOverview scan.
// Leaves without markers arrive as zero-count rows and still get a bucket,
// so items with no markers are represented as (0, 0).
func (c *Cache) RebuildSection(sectionID int64, counts []database.MarkerCount) {
	parents := foldCounts(counts)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.sections[sectionID] = parents
}

// DropSection evicts one section, e.g. after a failed rebuild.
func (c *Cache) DropSection(sectionID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sections, sectionID)
}

// Clear evicts everything. Used on suspend when the library handle closes.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sections = make(map[int64]map[int64]PackedBucket)
}

// HasSection reports whether a section has been built.
func (c *Cache) HasSection(sectionID int64) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.sections[sectionID]
	return ok
}

// Bucket returns one item's packed counts.
func (c *Cache) Bucket(sectionID, parentID int64) (PackedBucket, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	parents, ok := c.sections[sectionID]
	if !ok {
		return 0, false
	}
	bucket, ok := parents[parentID]
	return bucket, ok
}

// Delta moves one item's bucket by the given per-type count changes. Exactly
// one Delta call is made per committed Add/Edit/Delete/Restore that touches
// marker counts; shifts never call it.
func (c *Cache) Delta(sectionID, parentID int64, dIntros, dCredits, dCommercials int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	parents, ok := c.sections[sectionID]
	if !ok {
		// Section was never built (extended stats disabled or rebuild failed).
		return
	}
	bucket := parents[parentID]
	parents[parentID] = PackBucket(
		bucket.Intros()+dIntros,
		bucket.Credits()+dCredits,
		bucket.Commercials()+dCommercials,
	)
}

// SectionBreakdown aggregates a whole section. The second return is false if
// the section was never built.
func (c *Cache) SectionBreakdown(sectionID int64) (*Breakdown, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	parents, ok := c.sections[sectionID]
	if !ok {
		return nil, false
	}
	b := newBreakdown()
	for _, bucket := range parents {
		b.add(bucket)
	}
	return b, true
}

// foldCounts turns overview rows into per-parent buckets. Zero-count
// placeholder rows keep unmarked items represented as (0, 0).
func foldCounts(counts []database.MarkerCount) map[int64]PackedBucket {
	parents := make(map[int64]PackedBucket)
	for _, row := range counts {
		bucket := parents[row.ParentID]
		switch row.Type {
		case database.MarkerIntro:
			bucket += PackedBucket(row.Count)
		case database.MarkerCredits:
			bucket += PackedBucket(row.Count) << 16
		case database.MarkerCommercial:
			bucket += PackedBucket(row.Count) << 32
		default:
		}
		parents[row.ParentID] = bucket
	}
	return parents
}

// BreakdownFromCounts aggregates a one-shot overview scan without going
// through a cache instance. Used for stats when extended stats are disabled.
func BreakdownFromCounts(counts []database.MarkerCount) *Breakdown {
	b := newBreakdown()
	for _, bucket := range foldCounts(counts) {
		b.add(bucket)
	}
	return b
}

// BreakdownForParents rolls up a subset of a section's items, e.g. the
// episodes of one show or season.
func (c *Cache) BreakdownForParents(sectionID int64, parentIDs []int64) (*Breakdown, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	parents, ok := c.sections[sectionID]
	if !ok {
		return nil, false
	}
	b := newBreakdown()
	for _, id := range parentIDs {
		if bucket, found := parents[id]; found {
			b.add(bucket)
		}
	}
	return b, true
}
