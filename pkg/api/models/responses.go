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

import "github.com/markertools/markerd/pkg/database"

type SectionResponse struct {
	Name string `json:"name"`
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

type SectionsResponse struct {
	Sections []SectionResponse `json:"sections"`
}

type ItemsResponse struct {
	Items []database.Item `json:"items"`
}

type QueryResponse struct {
	Markers map[int64][]database.Marker `json:"markers"`
}

// StatsBucket is one (intros, credits) combination and how many items in
// scope have it.
type StatsBucket struct {
	Intros  int `json:"intros"`
	Credits int `json:"credits"`
	Items   int `json:"items"`
}

type StatsResponse struct {
	Buckets          []StatsBucket `json:"buckets"`
	ItemCount        int           `json:"itemCount"`
	ItemsWithMarkers int           `json:"itemsWithMarkers"`
	ItemsWithIntros  int           `json:"itemsWithIntros"`
	ItemsWithCredits int           `json:"itemsWithCredits"`
	TotalIntros      int           `json:"totalIntros"`
	TotalCredits     int           `json:"totalCredits"`
	TotalCommercials int           `json:"totalCommercials"`
	TotalMarkers     int           `json:"totalMarkers"`
	FromCache        bool          `json:"fromCache"`
}

type OKResponse struct {
	OK bool `json:"ok"`
}

type VersionResponse struct {
	Version string `json:"version"`
	State   string `json:"state"`
}

type SettingsResponse struct {
	Host                string `json:"host"`
	DatabasePath        string `json:"databasePath"`
	MetadataPath        string `json:"metadataPath"`
	LogLevel            string `json:"logLevel"`
	Port                int    `json:"port"`
	PreviewThumbnails   bool   `json:"previewThumbnails"`
	AutoOpen            bool   `json:"autoOpen"`
	BackupActions       bool   `json:"backupActions"`
	ExtendedMarkerStats bool   `json:"extendedMarkerStats"`
}

// MarkersChangedNotification is broadcast after any committed mutation.
type MarkersChangedNotification struct {
	Op        string `json:"op"`
	ParentID  int64  `json:"parentId"`
	SectionID int64  `json:"sectionId"`
	MarkerID  int64  `json:"markerId,omitempty"`
}

// PurgesFoundNotification is broadcast when a reconcile discovers purges.
type PurgesFoundNotification struct {
	SectionID int64 `json:"sectionId"`
	Count     int   `json:"count"`
}

// StateChangedNotification is broadcast on suspend/resume.
type StateChangedNotification struct {
	State string `json:"state"`
}
