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

package cache

// Breakdown is an aggregate view over a set of item buckets. All derivations
// are O(distinct buckets), not O(markers).
type Breakdown struct {
	buckets map[PackedBucket]int // (intros, credits) combination → item count

	items            int
	totalIntros      int
	totalCredits     int
	totalCommercials int
}

func newBreakdown() *Breakdown {
	return &Breakdown{buckets: make(map[PackedBucket]int)}
}

func (b *Breakdown) add(bucket PackedBucket) {
	b.buckets[bucket.breakdownKey()]++
	b.items++
	b.totalIntros += bucket.Intros()
	b.totalCredits += bucket.Credits()
	b.totalCommercials += bucket.Commercials()
}

// Buckets returns the number of distinct (intros, credits) combinations.
func (b *Breakdown) Buckets() int {
	return len(b.buckets)
}

// BucketCounts returns item counts keyed by (intros, credits) combination.
func (b *Breakdown) BucketCounts() map[PackedBucket]int {
	out := make(map[PackedBucket]int, len(b.buckets))
	for k, v := range b.buckets {
		out[k] = v
	}
	return out
}

// CollapsedBuckets maps total marker count (intros + credits) to item count.
func (b *Breakdown) CollapsedBuckets() map[int]int {
	out := make(map[int]int)
	for k, v := range b.buckets {
		out[k.Intros()+k.Credits()] += v
	}
	return out
}

// IntroBuckets maps intro count to item count.
func (b *Breakdown) IntroBuckets() map[int]int {
	out := make(map[int]int)
	for k, v := range b.buckets {
		out[k.Intros()] += v
	}
	return out
}

// CreditsBuckets maps credits count to item count.
func (b *Breakdown) CreditsBuckets() map[int]int {
	out := make(map[int]int)
	for k, v := range b.buckets {
		out[k.Credits()] += v
	}
	return out
}

func (b *Breakdown) TotalIntros() int {
	return b.totalIntros
}

func (b *Breakdown) TotalCredits() int {
	return b.totalCredits
}

func (b *Breakdown) TotalCommercials() int {
	return b.totalCommercials
}

// TotalMarkers includes commercials; they count toward per-item totals even
// though they are excluded from the breakdown key.
func (b *Breakdown) TotalMarkers() int {
	return b.totalIntros + b.totalCredits + b.totalCommercials
}

// ItemCount is the number of items in scope, marked or not.
func (b *Breakdown) ItemCount() int {
	return b.items
}

func (b *Breakdown) ItemsWithMarkers() int {
	n := 0
	for k, v := range b.buckets {
		if k != 0 {
			n += v
		}
	}
	return n
}

func (b *Breakdown) ItemsWithIntros() int {
	n := 0
	for k, v := range b.buckets {
		if k.Intros() > 0 {
			n += v
		}
	}
	return n
}

func (b *Breakdown) ItemsWithCredits() int {
	n := 0
	for k, v := range b.buckets {
		if k.Credits() > 0 {
			n += v
		}
	}
	return n
}
