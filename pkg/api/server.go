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

// Package api serves the JSON-RPC 2.0 surface over a websocket at /api/ws
// and plain HTTP POST at /api. Both paths share one dispatch map.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/markertools/markerd/pkg/api/methods"
	"github.com/markertools/markerd/pkg/api/models"
	"github.com/markertools/markerd/pkg/api/models/requests"
	"github.com/markertools/markerd/pkg/api/validation"
	"github.com/markertools/markerd/pkg/config"
	"github.com/markertools/markerd/pkg/markers"
	"github.com/olahol/melody"
	"github.com/rs/zerolog/log"
)

const requestTimeout = 30 * time.Second

// Standard JSON-RPC 2.0 protocol errors.
var (
	JSONRPCErrorParseError = models.ErrorObject{
		Code:    -32700,
		Message: "Parse error",
	}
	JSONRPCErrorInvalidRequest = models.ErrorObject{
		Code:    -32600,
		Message: "Invalid Request",
	}
	JSONRPCErrorMethodNotFound = models.ErrorObject{
		Code:    -32601,
		Message: "Method not found",
	}
	JSONRPCErrorInvalidParams = models.ErrorObject{
		Code:    -32602,
		Message: "Invalid params",
	}
	JSONRPCErrorInternalError = models.ErrorObject{
		Code:    -32603,
		Message: "Internal error",
	}
)

// Application error codes, one per engine error kind. Stable: clients switch
// on them.
const (
	codeBadTarget       = -32001
	codeOverlap         = -32002
	codeConflict        = -32003
	codeNotFound        = -32004
	codeOverflow        = -32005
	codeFeatureDisabled = -32006
	codeUnavailable     = -32007
)

var errUnknownMethod = errors.New("unknown method")

var methodMap = map[string]func(requests.RequestEnv) (any, error){
	// markers
	models.MethodQuery:      methods.HandleQuery,
	models.MethodAdd:        methods.HandleAdd,
	models.MethodEdit:       methods.HandleEdit,
	models.MethodDelete:     methods.HandleDelete,
	models.MethodShift:      methods.HandleShift,
	models.MethodCheckShift: methods.HandleCheckShift,
	// library
	models.MethodGetSections: methods.HandleGetSections,
	models.MethodGetSection:  methods.HandleGetSection,
	models.MethodGetSeasons:  methods.HandleGetSeasons,
	models.MethodGetEpisodes: methods.HandleGetEpisodes,
	models.MethodGetStats:    methods.HandleGetStats,
	// purges
	models.MethodPurgeCheck:  methods.HandlePurgeCheck,
	models.MethodAllPurges:   methods.HandleAllPurges,
	models.MethodRestore:     methods.HandleRestore,
	models.MethodIgnorePurge: methods.HandleIgnorePurge,
	// admin
	models.MethodSuspend:        methods.HandleSuspend,
	models.MethodResume:         methods.HandleResume,
	models.MethodVersion:        methods.HandleVersion,
	models.MethodSettings:       methods.HandleSettings,
	models.MethodSettingsUpdate: methods.HandleSettingsUpdate,
}

// errorObjectFor translates handler errors into wire error objects.
func errorObjectFor(err error) models.ErrorObject {
	if errors.Is(err, errUnknownMethod) {
		return JSONRPCErrorMethodNotFound
	}
	if errors.Is(err, validation.ErrMissingParams) || errors.Is(err, validation.ErrInvalidParams) {
		return JSONRPCErrorInvalidParams
	}
	var vErr *validation.Error
	if errors.As(err, &vErr) {
		return models.ErrorObject{Code: JSONRPCErrorInvalidParams.Code, Message: vErr.Error()}
	}

	var engineErr *markers.Error
	if !errors.As(err, &engineErr) {
		return JSONRPCErrorInternalError
	}
	obj := models.ErrorObject{Message: engineErr.Message()}
	switch engineErr.Kind {
	case markers.KindBadRequest:
		obj.Code = JSONRPCErrorInvalidParams.Code
	case markers.KindBadTarget:
		obj.Code = codeBadTarget
	case markers.KindNotFound:
		obj.Code = codeNotFound
	case markers.KindOverlap:
		obj.Code = codeOverlap
	case markers.KindConflict:
		obj.Code = codeConflict
	case markers.KindOverflow:
		obj.Code = codeOverflow
	case markers.KindFeatureDisabled:
		obj.Code = codeFeatureDisabled
	case markers.KindUnavailable:
		obj.Code = codeUnavailable
	default:
		obj = JSONRPCErrorInternalError
	}
	return obj
}

func maybeUUID(req *models.RequestObject) uuid.UUID {
	if req.ID == nil {
		return uuid.Nil
	}
	return *req.ID
}

func handleRequest(env requests.RequestEnv, req *models.RequestObject) (any, error) {
	log.Debug().Str("method", req.Method).Msg("received request")

	fn, ok := methodMap[strings.ToLower(req.Method)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errUnknownMethod, req.Method)
	}
	if req.ID == nil {
		return nil, fmt.Errorf("missing id for request: %s", req.Method)
	}

	env.ID = *req.ID
	env.Params = req.Params

	return fn(env)
}

func sendResponse(session *melody.Session, id uuid.UUID, result any) error {
	resp := models.ResponseObject{
		JSONRPC: "2.0",
		ID:      id,
		Result:  result,
	}
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("error marshalling response: %w", err)
	}
	if err := session.Write(data); err != nil {
		return fmt.Errorf("error writing response: %w", err)
	}
	return nil
}

func sendError(session *melody.Session, id uuid.UUID, errObj models.ErrorObject) error {
	resp := models.ResponseErrorObject{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &errObj,
	}
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("error marshalling error response: %w", err)
	}
	if err := session.Write(data); err != nil {
		return fmt.Errorf("error writing error response: %w", err)
	}
	return nil
}

func broadcastNotifications(
	ctx context.Context,
	session *melody.Melody,
	notifications <-chan models.Notification,
) {
	for {
		select {
		case <-ctx.Done():
			log.Debug().Msg("stopping notification broadcaster")
			return
		case notif := <-notifications:
			obj := models.RequestObject{
				JSONRPC: "2.0",
				Method:  notif.Method,
				Params:  notif.Params,
			}
			data, err := json.Marshal(obj)
			if err != nil {
				log.Error().Err(err).Msg("marshalling notification")
				continue
			}
			if err := session.Broadcast(data); err != nil {
				log.Error().Err(err).Msg("broadcasting notification")
			}
		}
	}
}

func handleWSMessage(
	cfg *config.Instance,
	engine *markers.Engine,
) func(session *melody.Session, msg []byte) {
	return func(session *melody.Session, msg []byte) {
		// ping command for heartbeat operation
		if bytes.Equal(msg, []byte("ping")) {
			if err := session.Write([]byte("pong")); err != nil {
				log.Error().Err(err).Msg("sending pong")
			}
			return
		}

		if !json.Valid(msg) {
			if err := sendError(session, uuid.Nil, JSONRPCErrorParseError); err != nil {
				log.Error().Err(err).Msg("error sending error response")
			}
			return
		}

		var req models.RequestObject
		err := json.Unmarshal(msg, &req)
		if err != nil || req.Method == "" {
			if err := sendError(session, maybeUUID(&req), JSONRPCErrorInvalidRequest); err != nil {
				log.Error().Err(err).Msg("error sending error response")
			}
			return
		}
		if req.JSONRPC != "2.0" {
			log.Error().Str("jsonrpc", req.JSONRPC).Msg("unsupported payload version")
			if err := sendError(session, maybeUUID(&req), JSONRPCErrorInvalidRequest); err != nil {
				log.Error().Err(err).Msg("error sending error response")
			}
			return
		}
		if req.ID == nil {
			// Client notifications are accepted and dropped.
			log.Info().Str("method", req.Method).Msg("received notification, ignoring")
			return
		}

		rawIP := strings.SplitN(session.Request.RemoteAddr, ":", 2)
		clientIP := net.ParseIP(rawIP[0])

		resp, err := handleRequest(requests.RequestEnv{
			Config:  cfg,
			Engine:  engine,
			IsLocal: clientIP != nil && clientIP.IsLoopback(),
		}, &req)
		if err != nil {
			log.Debug().Err(err).Str("method", req.Method).Msg("request failed")
			if err := sendError(session, *req.ID, errorObjectFor(err)); err != nil {
				log.Error().Err(err).Msg("error sending error response")
			}
			return
		}

		if err := sendResponse(session, *req.ID, resp); err != nil {
			log.Error().Err(err).Msg("error sending response")
		}
	}
}

// handlePost serves single JSON-RPC requests over plain HTTP for clients
// that don't hold a websocket open.
func handlePost(cfg *config.Instance, engine *markers.Engine) http.HandlerFunc {
	writeJSON := func(w http.ResponseWriter, v any) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(v); err != nil {
			log.Error().Err(err).Msg("error writing response")
		}
	}
	writeError := func(w http.ResponseWriter, id uuid.UUID, errObj models.ErrorObject) {
		writeJSON(w, models.ResponseErrorObject{JSONRPC: "2.0", ID: id, Error: &errObj})
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var req models.RequestObject
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, uuid.Nil, JSONRPCErrorParseError)
			return
		}
		if req.JSONRPC != "2.0" || req.Method == "" || req.ID == nil {
			writeError(w, maybeUUID(&req), JSONRPCErrorInvalidRequest)
			return
		}

		rawIP := strings.SplitN(r.RemoteAddr, ":", 2)
		clientIP := net.ParseIP(rawIP[0])

		resp, err := handleRequest(requests.RequestEnv{
			Config:  cfg,
			Engine:  engine,
			IsLocal: clientIP != nil && clientIP.IsLoopback(),
		}, &req)
		if err != nil {
			log.Debug().Err(err).Str("method", req.Method).Msg("request failed")
			writeError(w, *req.ID, errorObjectFor(err))
			return
		}

		writeJSON(w, models.ResponseObject{JSONRPC: "2.0", ID: *req.ID, Result: resp})
	}
}

// Start runs the HTTP server until ctx is cancelled. The returned error is
// the listener's, nil on clean shutdown.
func Start(
	ctx context.Context,
	cfg *config.Instance,
	engine *markers.Engine,
	notifications <-chan models.Notification,
) error {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.NoCache)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"https://*", "http://*"},
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{},
	}))

	session := melody.New()
	session.Upgrader.CheckOrigin = func(_ *http.Request) bool { return true }
	go broadcastNotifications(ctx, session, notifications)

	session.HandleMessage(handleWSMessage(cfg, engine))

	r.Get("/api/ws", func(w http.ResponseWriter, r *http.Request) {
		if err := session.HandleRequest(w, r); err != nil {
			log.Error().Err(err).Msg("handling websocket request")
		}
	})
	r.Post("/api", handlePost(cfg, engine))

	addr := net.JoinHostPort(cfg.Host(), fmt.Sprintf("%d", cfg.Port()))
	server := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("error shutting down http server")
		}
		if err := session.Close(); err != nil {
			log.Error().Err(err).Msg("error closing websocket sessions")
		}
	}()

	log.Info().Str("addr", addr).Msg("api server listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("error starting http server: %w", err)
	}
	return nil
}
