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

package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/markertools/markerd/pkg/api/models"
	"github.com/markertools/markerd/pkg/api/models/requests"
	"github.com/markertools/markerd/pkg/api/validation"
	"github.com/markertools/markerd/pkg/config"
	"github.com/markertools/markerd/pkg/markers"
	"github.com/markertools/markerd/pkg/markers/cache"
	"github.com/markertools/markerd/pkg/testing/helpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*config.Instance, *markers.Engine) {
	t.Helper()

	cfg, err := config.NewConfig(t.TempDir(), config.BaseDefaults)
	require.NoError(t, err)

	lib, libCleanup := helpers.NewTestLibraryDB(t)
	t.Cleanup(libCleanup)
	alog, alogCleanup := helpers.NewTestActionLog(t, clockwork.NewFakeClock())
	t.Cleanup(alogCleanup)

	engine := markers.NewEngine(cfg, lib, alog, cache.New(), nil)
	require.NoError(t, engine.BuildCache())
	return cfg, engine
}

// postRequest round-trips one JSON-RPC request through the HTTP POST handler.
func postRequest(t *testing.T, handler http.HandlerFunc, body string) *models.ResponseErrorObject {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/api", bytes.NewBufferString(body))
	req.RemoteAddr = "127.0.0.1:54321"
	rec := httptest.NewRecorder()
	handler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp models.ResponseErrorObject
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return &resp
}

func rpcBody(method string, params string) string {
	if params == "" {
		return fmt.Sprintf(`{"jsonrpc":"2.0","id":%q,"method":%q}`, uuid.NewString(), method)
	}
	return fmt.Sprintf(
		`{"jsonrpc":"2.0","id":%q,"method":%q,"params":%s}`, uuid.NewString(), method, params,
	)
}

func TestErrorObjectFor(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
		code int
	}{
		{"unknown method", fmt.Errorf("%w: nope", errUnknownMethod), -32601},
		{"missing params", validation.ErrMissingParams, -32602},
		{"invalid params", validation.ErrInvalidParams, -32602},
		{"bad request", &markers.Error{Kind: markers.KindBadRequest, Msg: "x"}, -32602},
		{"bad target", &markers.Error{Kind: markers.KindBadTarget, Msg: "x"}, -32001},
		{"overlap", &markers.Error{Kind: markers.KindOverlap, Msg: "x"}, -32002},
		{"conflict", &markers.Error{Kind: markers.KindConflict, Msg: "x"}, -32003},
		{"not found", &markers.Error{Kind: markers.KindNotFound, Msg: "x"}, -32004},
		{"overflow", &markers.Error{Kind: markers.KindOverflow, Msg: "x"}, -32005},
		{"feature disabled", &markers.Error{Kind: markers.KindFeatureDisabled, Msg: "x"}, -32006},
		{"unavailable", &markers.Error{Kind: markers.KindUnavailable, Msg: "x"}, -32007},
		{"internal", &markers.Error{Kind: markers.KindInternal, Msg: "x"}, -32603},
		{"unclassified", errors.New("boom"), -32603},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			obj := errorObjectFor(tc.err)
			assert.Equal(t, tc.code, obj.Code)
			assert.NotEmpty(t, obj.Message)
		})
	}
}

func TestErrorObjectForKeepsEngineMessage(t *testing.T) {
	t.Parallel()

	obj := errorObjectFor(&markers.Error{Kind: markers.KindOverlap, Msg: "intervals collide"})
	assert.Equal(t, "intervals collide", obj.Message)

	// Internal failures never leak their cause to clients.
	obj = errorObjectFor(&markers.Error{
		Kind: markers.KindInternal, Msg: "db exploded", Err: errors.New("disk io"),
	})
	assert.Equal(t, JSONRPCErrorInternalError.Message, obj.Message)
}

func TestHandleRequestUnknownMethod(t *testing.T) {
	t.Parallel()
	cfg, engine := newTestServer(t)

	id := uuid.New()
	_, err := handleRequest(
		requests.RequestEnv{Config: cfg, Engine: engine},
		&models.RequestObject{JSONRPC: "2.0", ID: &id, Method: "no_such_method"},
	)
	require.Error(t, err)
	assert.ErrorIs(t, err, errUnknownMethod)
}

func TestHandleRequestMethodsAreCaseInsensitive(t *testing.T) {
	t.Parallel()
	cfg, engine := newTestServer(t)

	id := uuid.New()
	resp, err := handleRequest(
		requests.RequestEnv{Config: cfg, Engine: engine},
		&models.RequestObject{JSONRPC: "2.0", ID: &id, Method: "VERSION"},
	)
	require.NoError(t, err)
	version, ok := resp.(models.VersionResponse)
	require.True(t, ok)
	assert.Equal(t, config.AppVersion, version.Version)
	assert.Equal(t, "running", version.State)
}

func TestHandleRequestRequiresID(t *testing.T) {
	t.Parallel()
	cfg, engine := newTestServer(t)

	_, err := handleRequest(
		requests.RequestEnv{Config: cfg, Engine: engine},
		&models.RequestObject{JSONRPC: "2.0", Method: models.MethodVersion},
	)
	require.Error(t, err)
}

func TestHandlePostMalformedBody(t *testing.T) {
	t.Parallel()
	cfg, engine := newTestServer(t)
	handler := handlePost(cfg, engine)

	resp := postRequest(t, handler, `{"jsonrpc":`)
	require.NotNil(t, resp.Error)
	assert.Equal(t, JSONRPCErrorParseError.Code, resp.Error.Code)
}

func TestHandlePostRejectsWrongVersion(t *testing.T) {
	t.Parallel()
	cfg, engine := newTestServer(t)
	handler := handlePost(cfg, engine)

	body := fmt.Sprintf(`{"jsonrpc":"1.0","id":%q,"method":"version"}`, uuid.NewString())
	resp := postRequest(t, handler, body)
	require.NotNil(t, resp.Error)
	assert.Equal(t, JSONRPCErrorInvalidRequest.Code, resp.Error.Code)
}

func TestHandlePostVersion(t *testing.T) {
	t.Parallel()
	cfg, engine := newTestServer(t)
	handler := handlePost(cfg, engine)

	req := httptest.NewRequest(
		http.MethodPost, "/api", bytes.NewBufferString(rpcBody("version", "")),
	)
	req.RemoteAddr = "127.0.0.1:54321"
	rec := httptest.NewRecorder()
	handler(rec, req)

	var resp struct {
		Result models.VersionResponse `json:"result"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, config.AppVersion, resp.Result.Version)
	assert.Equal(t, "running", resp.Result.State)
}

func TestHandlePostAddAndOverlap(t *testing.T) {
	t.Parallel()
	cfg, engine := newTestServer(t)
	handler := handlePost(cfg, engine)

	params := fmt.Sprintf(
		`{"type":"intro","metadataId":%d,"start":0,"end":30000}`, helpers.Episode1ID,
	)
	req := httptest.NewRequest(
		http.MethodPost, "/api", bytes.NewBufferString(rpcBody("add", params)),
	)
	req.RemoteAddr = "127.0.0.1:54321"
	rec := httptest.NewRecorder()
	handler(rec, req)

	var resp struct {
		Result struct {
			ID    int64 `json:"id"`
			Start int64 `json:"start"`
			End   int64 `json:"end"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotZero(t, resp.Result.ID)
	assert.Equal(t, int64(30000), resp.Result.End)

	// The same interval again is an overlap, reported with the app code.
	overlap := postRequest(t, handler, rpcBody("add", params))
	require.NotNil(t, overlap.Error)
	assert.Equal(t, codeOverlap, overlap.Error.Code)
}

func TestHandlePostValidationFailure(t *testing.T) {
	t.Parallel()
	cfg, engine := newTestServer(t)
	handler := handlePost(cfg, engine)

	// Marker type outside the allowed set fails before reaching the engine.
	params := fmt.Sprintf(`{"type":"chapter","metadataId":%d}`, helpers.Episode1ID)
	resp := postRequest(t, handler, rpcBody("add", params))
	require.NotNil(t, resp.Error)
	assert.Equal(t, JSONRPCErrorInvalidParams.Code, resp.Error.Code)

	// Missing params entirely.
	resp = postRequest(t, handler, rpcBody("add", ""))
	require.NotNil(t, resp.Error)
	assert.Equal(t, JSONRPCErrorInvalidParams.Code, resp.Error.Code)
}

func TestHandlePostSuspendResumeCycle(t *testing.T) {
	t.Parallel()
	cfg, engine := newTestServer(t)
	handler := handlePost(cfg, engine)

	resp := postRequest(t, handler, rpcBody("suspend", ""))
	require.Nil(t, resp.Error)
	assert.True(t, engine.Suspended())

	params := fmt.Sprintf(
		`{"type":"intro","metadataId":%d,"start":0,"end":30000}`, helpers.Episode1ID,
	)
	refused := postRequest(t, handler, rpcBody("add", params))
	require.NotNil(t, refused.Error)
	assert.Equal(t, codeUnavailable, refused.Error.Code)

	resp = postRequest(t, handler, rpcBody("resume", ""))
	require.Nil(t, resp.Error)
	assert.False(t, engine.Suspended())
}
