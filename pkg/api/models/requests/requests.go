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

package requests

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/markertools/markerd/pkg/config"
	"github.com/markertools/markerd/pkg/markers"
)

// RequestEnv is everything one method handler may touch.
type RequestEnv struct {
	Config  *config.Instance
	Engine  *markers.Engine
	Params  json.RawMessage
	ID      uuid.UUID
	IsLocal bool
}
