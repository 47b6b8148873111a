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

package models

// Typed parameter objects, one per operation. Flags crossing the wire as
// 0/1 integers mirror the original client protocol.

type QueryParams struct {
	Keys []int64 `json:"keys" validate:"required,min=1"`
}

type AddParams struct {
	Type       string `json:"type" validate:"required,oneof=intro credits commercial"`
	MetadataID int64  `json:"metadataId" validate:"required"`
	Start      int64  `json:"start"`
	End        int64  `json:"end"`
	Final      int    `json:"final" validate:"oneof=0 1"`
}

type EditParams struct {
	Type        string `json:"type" validate:"required,oneof=intro credits commercial"`
	ID          int64  `json:"id" validate:"required"`
	Start       int64  `json:"start"`
	End         int64  `json:"end"`
	Final       int    `json:"final" validate:"oneof=0 1"`
	UserCreated int    `json:"userCreated" validate:"oneof=0 1"`
}

type DeleteParams struct {
	ID int64 `json:"id" validate:"required"`
}

// ShiftParams accepts either a single shift applied to both endpoints or
// separate start/end deltas. Ignored is a comma-separated marker id list.
type ShiftParams struct {
	Shift      *int64 `json:"shift,omitempty"`
	StartShift *int64 `json:"startShift,omitempty"`
	EndShift   *int64 `json:"endShift,omitempty"`
	Ignored    string `json:"ignored,omitempty"`
	ID         int64  `json:"id" validate:"required"`
	Force      int    `json:"force" validate:"oneof=0 1"`
}

type CheckShiftParams struct {
	ID int64 `json:"id" validate:"required"`
}

// IDParams covers every operation taking a single item or section id.
type IDParams struct {
	ID int64 `json:"id" validate:"required"`
}

type AllPurgesParams struct {
	SectionID int64 `json:"sectionId" validate:"required"`
}

type PurgedMarkerParams struct {
	MarkerID  int64 `json:"markerId" validate:"required"`
	SectionID int64 `json:"sectionId" validate:"required"`
}

type UpdateSettingsParams struct {
	LogLevel            *string `json:"logLevel,omitempty" validate:"omitempty,oneof=trace debug info warn error"`
	PreviewThumbnails   *bool   `json:"previewThumbnails,omitempty"`
	AutoOpen            *bool   `json:"autoOpen,omitempty"`
	BackupActions       *bool   `json:"backupActions,omitempty"`
	ExtendedMarkerStats *bool   `json:"extendedMarkerStats,omitempty"`
}
