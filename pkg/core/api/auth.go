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
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (s *APIServer) handleLocalLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !s.decodeJSONRequest(w, r, &req) {
		return
	}

	if req.Username == "" || req.Password == "" {
		writeError(w, "Username and password are required", http.StatusBadRequest)
		return
	}

	token, err := s.authService.LoginLocal(r.Context(), req.Username, req.Password)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	s.encodeJSONResponse(w, token)
}

func (s *APIServer) handleRefreshToken(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !s.decodeJSONRequest(w, r, &req) {
		return
	}

	token, err := s.authService.RefreshToken(r.Context(), req.RefreshToken)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	s.encodeJSONResponse(w, token)
}
