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

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Wire names of the operation surface. Consumers depend on these exact
// strings.
const (
	MethodQuery       = "query"
	MethodAdd         = "add"
	MethodEdit        = "edit"
	MethodDelete      = "delete"
	MethodShift       = "shift"
	MethodCheckShift  = "check_shift"
	MethodGetSections = "get_sections"
	MethodGetSection  = "get_section"
	MethodGetSeasons  = "get_seasons"
	MethodGetEpisodes = "get_episodes"
	MethodGetStats    = "get_stats"
	MethodPurgeCheck  = "purge_check"
	MethodAllPurges   = "all_purges"
	MethodRestore     = "restore"
	MethodIgnorePurge = "ignore_purge"
	MethodSuspend     = "suspend"
	MethodResume      = "resume"

	MethodVersion        = "version"
	MethodSettings       = "settings"
	MethodSettingsUpdate = "settings.update"
)

// Notification methods broadcast to websocket clients.
const (
	NotificationMarkersChanged = "markers.changed"
	NotificationPurgesFound    = "purges.found"
	NotificationStateChanged   = "state.changed"
)

type Notification struct {
	Method string
	Params json.RawMessage
}

type RequestObject struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *uuid.UUID      `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type ErrorObject struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type ResponseObject struct {
	JSONRPC string       `json:"jsonrpc"`
	ID      uuid.UUID    `json:"id"`
	Result  any          `json:"result"`
	Error   *ErrorObject `json:"error,omitempty"`
}

// ResponseErrorObject exists for sending errors, so result can be omitted
// while nil results still serialize on the main ResponseObject.
type ResponseErrorObject struct {
	JSONRPC string       `json:"jsonrpc"`
	ID      uuid.UUID    `json:"id"`
	Error   *ErrorObject `json:"error"`
}

type NotificationObject struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}
