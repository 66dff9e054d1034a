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

package api

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/carverauto/fleettrace/pkg/core/auth"
	"github.com/carverauto/fleettrace/pkg/models"
)

// agentDevice resolves the authenticated device from the request context.
func agentDevice(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	deviceID, ok := auth.DeviceIDFromContext(r.Context())
	if !ok {
		writeError(w, "Unauthorized", http.StatusUnauthorized)
		return uuid.Nil, false
	}

	return deviceID, true
}

func (s *APIServer) handleAgentRegister(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if !s.decodeJSONRequest(w, r, &req) {
		return
	}

	resp, err := s.core.RegisterAgent(r.Context(), &req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	s.encodeJSONResponse(w, resp)
}

func (s *APIServer) handleAgentPing(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := agentDevice(w, r)
	if !ok {
		return
	}

	var req models.PingRequest
	if !s.decodeJSONRequest(w, r, &req) {
		return
	}

	resp, err := s.core.ProcessPing(r.Context(), deviceID, &req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	s.encodeJSONResponse(w, resp)
}

func (s *APIServer) handleCommandResult(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := agentDevice(w, r)
	if !ok {
		return
	}

	var req models.CommandResultRequest
	if !s.decodeJSONRequest(w, r, &req) {
		return
	}

	cmd, err := s.core.ReportCommandResult(r.Context(), deviceID, &req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	s.encodeJSONResponse(w, cmd)
}

func (s *APIServer) handleScreenshot(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := agentDevice(w, r)
	if !ok {
		return
	}

	var req models.ScreenshotRequest
	if !s.decodeJSONRequest(w, r, &req) {
		return
	}

	cmd, err := s.core.AttachScreenshot(r.Context(), deviceID, &req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	s.encodeJSONResponse(w, cmd)
}

func (s *APIServer) handleAgentConsent(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := agentDevice(w, r)
	if !ok {
		return
	}

	resp, err := s.core.RecordConsent(r.Context(), deviceID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	s.encodeJSONResponse(w, resp)
}

func (s *APIServer) handleAgentStatus(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := agentDevice(w, r)
	if !ok {
		return
	}

	status, err := s.core.AgentStatus(r.Context(), deviceID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	s.encodeJSONResponse(w, status)
}
