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

package auth

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/carverauto/fleettrace/pkg/models"
)

type contextKey string

const (
	userContextKey   contextKey = "auth.user"
	deviceContextKey contextKey = "auth.device"
)

// UserFromContext returns the authenticated operator, if any.
func UserFromContext(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(userContextKey).(*models.User)
	return user, ok
}

// DeviceIDFromContext returns the authenticated agent's device ID, if any.
func DeviceIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(deviceContextKey).(uuid.UUID)
	return id, ok
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)

	_ = json.NewEncoder(w).Encode(models.ErrorResponse{
		Message: "unauthorized",
		Status:  http.StatusUnauthorized,
	})
}

// UserMiddleware requires a valid interactive user token and stores the user
// on the request context.
func (s *Service) UserMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := BearerToken(r.Header.Get("Authorization"))
		if err != nil {
			writeUnauthorized(w)
			return
		}

		user, err := s.VerifyUserToken(token)
		if err != nil {
			writeUnauthorized(w)
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// AgentMiddleware requires a valid agent token and stores the device ID on
// the request context. User tokens are rejected here: wrong signing key.
func (s *Service) AgentMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := BearerToken(r.Header.Get("Authorization"))
		if err != nil {
			writeUnauthorized(w)
			return
		}

		deviceID, err := s.VerifyAgentToken(token)
		if err != nil {
			writeUnauthorized(w)
			return
		}

		ctx := context.WithValue(r.Context(), deviceContextKey, deviceID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
