/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package api provides the HTTP API server for the fleet tracking core.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/carverauto/fleettrace/pkg/core"
	"github.com/carverauto/fleettrace/pkg/core/auth"
	fthttp "github.com/carverauto/fleettrace/pkg/http"
	"github.com/carverauto/fleettrace/pkg/logger"
	"github.com/carverauto/fleettrace/pkg/models"
)

// APIServer routes agent and operator traffic to the core service.
type APIServer struct {
	router      *mux.Router
	corsConfig  models.CORSConfig
	core        CoreService
	authService AuthService
	stream      *AlertStream
	logger      logger.Logger
}

// NewAPIServer creates the API server. The core and auth options are
// required for a functional server; tests may install fakes.
func NewAPIServer(config models.CORSConfig, options ...func(server *APIServer)) *APIServer {
	s := &APIServer{
		router:     mux.NewRouter(),
		corsConfig: config,
		logger:     logger.NewTestLogger(),
	}

	for _, o := range options {
		o(s)
	}

	s.setupRoutes()

	return s
}

// WithCoreService attaches the domain service.
func WithCoreService(c CoreService) func(*APIServer) {
	return func(server *APIServer) {
		server.core = c
	}
}

// WithAuthService attaches the authentication service.
func WithAuthService(a AuthService) func(*APIServer) {
	return func(server *APIServer) {
		server.authService = a
	}
}

// WithAlertStream attaches the websocket alert broadcaster.
func WithAlertStream(stream *AlertStream) func(*APIServer) {
	return func(server *APIServer) {
		server.stream = stream
	}
}

// WithLogger sets the server logger.
func WithLogger(log logger.Logger) func(*APIServer) {
	return func(server *APIServer) {
		server.logger = log
	}
}

// Router exposes the configured router for the lifecycle runner.
func (s *APIServer) Router() http.Handler {
	return fthttp.CommonMiddleware(s.router, s.corsConfig)
}

func (s *APIServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Router().ServeHTTP(w, r)
}

func (s *APIServer) setupRoutes() {
	s.router.HandleFunc("/auth/login", s.handleLocalLogin).Methods("POST")
	s.router.HandleFunc("/auth/refresh", s.handleRefreshToken).Methods("POST")

	// Registration is the only agent route reachable without a token; it is
	// what issues the token.
	s.router.HandleFunc("/api/agent/register", s.handleAgentRegister).Methods("POST")

	agent := s.router.PathPrefix("/api/agent").Subrouter()
	agent.Use(s.authService.AgentMiddleware)
	agent.HandleFunc("/ping", s.handleAgentPing).Methods("POST")
	agent.HandleFunc("/command-result", s.handleCommandResult).Methods("POST")
	agent.HandleFunc("/screenshot", s.handleScreenshot).Methods("POST")
	agent.HandleFunc("/consent", s.handleAgentConsent).Methods("POST")
	agent.HandleFunc("/status", s.handleAgentStatus).Methods("GET")

	protected := s.router.PathPrefix("/api").Subrouter()
	protected.Use(s.authService.UserMiddleware)

	protected.HandleFunc("/devices", s.listDevices).Methods("GET")
	protected.HandleFunc("/devices", s.createDevice).Methods("POST")
	protected.HandleFunc("/devices/{id}", s.getDevice).Methods("GET")
	protected.HandleFunc("/devices/{id}", s.updateDevice).Methods("PUT")
	protected.HandleFunc("/devices/{id}", s.deleteDevice).Methods("DELETE")
	protected.HandleFunc("/devices/{id}/location", s.deviceLocation).Methods("GET")
	protected.HandleFunc("/devices/{id}/locations", s.listLocationHistory).Methods("GET")
	protected.HandleFunc("/devices/{id}/commands", s.listCommands).Methods("GET")
	protected.HandleFunc("/devices/{id}/lock", s.lockDevice).Methods("POST")
	protected.HandleFunc("/devices/{id}/unlock", s.unlockDevice).Methods("POST")
	protected.HandleFunc("/devices/{id}/wipe", s.wipeDevice).Methods("POST")

	protected.HandleFunc("/locations/current", s.listCurrentLocations).Methods("GET")

	protected.HandleFunc("/commands", s.createCommand).Methods("POST")
	protected.HandleFunc("/commands/{id}", s.getCommand).Methods("GET")
	protected.HandleFunc("/commands/{id}/cancel", s.cancelCommand).Methods("POST")

	protected.HandleFunc("/geofences", s.listGeofences).Methods("GET")
	protected.HandleFunc("/geofences", s.createGeofence).Methods("POST")
	protected.HandleFunc("/geofences/{id}", s.getGeofence).Methods("GET")
	protected.HandleFunc("/geofences/{id}", s.updateGeofence).Methods("PUT")
	protected.HandleFunc("/geofences/{id}", s.deleteGeofence).Methods("DELETE")
	protected.HandleFunc("/geofences/{id}/check", s.checkGeofencePoint).Methods("POST")

	// Stream registers before the {id} route so "stream" never parses as an
	// alert ID.
	if s.stream != nil {
		protected.HandleFunc("/alerts/stream", s.stream.Handle).Methods("GET")
	}

	protected.HandleFunc("/alerts", s.listAlerts).Methods("GET")
	protected.HandleFunc("/alerts/{id}", s.getAlert).Methods("GET")
	protected.HandleFunc("/alerts/{id}/acknowledge", s.acknowledgeAlert).Methods("POST")
	protected.HandleFunc("/alerts/{id}/resolve", s.resolveAlert).Methods("POST")
}

// writeError writes a JSON error body. 5xx responses stay opaque; internal
// detail goes to the log only.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(models.ErrorResponse{Message: message, Status: status})
}

// writeServiceError maps domain sentinels to HTTP statuses.
func (s *APIServer) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrNotFound):
		writeError(w, "Not found", http.StatusNotFound)
	case errors.Is(err, core.ErrAlreadyRegistered):
		writeError(w, "Device already registered", http.StatusBadRequest)
	case errors.Is(err, core.ErrInvalidTransition):
		writeError(w, "Invalid command state transition", http.StatusConflict)
	case errors.Is(err, core.ErrForbidden):
		writeError(w, "Forbidden", http.StatusForbidden)
	case errors.Is(err, core.ErrValidation):
		writeError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, auth.ErrUnauthorized), errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, "Unauthorized", http.StatusUnauthorized)
	default:
		s.logger.Error().Err(err).Msg("Internal server error")
		writeError(w, "Internal server error", http.StatusInternalServerError)
	}
}

func (s *APIServer) encodeJSONResponse(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// decodeOptionalJSON tolerates an absent or empty body.
func (s *APIServer) decodeOptionalJSON(r *http.Request, dst interface{}) error {
	if r.Body == nil {
		return nil
	}

	err := json.NewDecoder(r.Body).Decode(dst)
	if errors.Is(err, io.EOF) {
		return nil
	}

	return err
}

// decodeJSONRequest rejects malformed bodies before any handler logic runs.
func (s *APIServer) decodeJSONRequest(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return false
	}

	return true
}
