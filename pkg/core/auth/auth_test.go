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
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/carverauto/fleettrace/pkg/logger"
	"github.com/carverauto/fleettrace/pkg/models"
)

func testService(t *testing.T) *Service {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	require.NoError(t, err)

	return NewService(&models.AuthConfig{
		JWTSecret:       "user-signing-key",
		JWTExpiration:   30 * time.Minute,
		AgentSecret:     "agent-signing-key",
		AgentExpiration: 365 * 24 * time.Hour,
		LocalUsers:      map[string]string{"admin": string(hash)},
		AdminUsers:      []string{"admin"},
	}, logger.NewTestLogger())
}

func TestLoginLocal(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()

	t.Run("valid credentials", func(t *testing.T) {
		token, err := svc.LoginLocal(ctx, "admin", "hunter2")
		require.NoError(t, err)
		assert.NotEmpty(t, token.AccessToken)
		assert.NotEmpty(t, token.RefreshToken)
		assert.True(t, token.ExpiresAt.After(time.Now()))

		user, err := svc.VerifyUserToken(token.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, "admin", user.ID)
		assert.Contains(t, user.Roles, "admin")
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := svc.LoginLocal(ctx, "admin", "wrong")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := svc.LoginLocal(ctx, "nobody", "hunter2")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})
}

func TestRefreshToken(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()

	token, err := svc.LoginLocal(ctx, "admin", "hunter2")
	require.NoError(t, err)

	refreshed, err := svc.RefreshToken(ctx, token.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, refreshed.AccessToken)

	_, err = svc.RefreshToken(ctx, "not-a-token")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestAgentTokenRoundTrip(t *testing.T) {
	svc := testService(t)
	deviceID := uuid.New()

	token, err := svc.IssueAgentToken(deviceID)
	require.NoError(t, err)

	got, err := svc.VerifyAgentToken(token)
	require.NoError(t, err)
	assert.Equal(t, deviceID, got)
}

func TestTokenClassesAreNotInterchangeable(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()

	userToken, err := svc.LoginLocal(ctx, "admin", "hunter2")
	require.NoError(t, err)

	agentToken, err := svc.IssueAgentToken(uuid.New())
	require.NoError(t, err)

	// A user token is signed with the user key; the agent verifier must
	// reject it, and vice versa.
	_, err = svc.VerifyAgentToken(userToken.AccessToken)
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = svc.VerifyUserToken(agentToken)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestFingerprint(t *testing.T) {
	assert.Equal(t, Fingerprint("abc"), Fingerprint("abc"))
	assert.NotEqual(t, Fingerprint("abc"), Fingerprint("abd"))
	assert.Len(t, Fingerprint("abc"), 64)
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		want    string
		wantErr bool
	}{
		{name: "valid", header: "Bearer tok123", want: "tok123"},
		{name: "missing prefix", header: "tok123", wantErr: true},
		{name: "empty", header: "", wantErr: true},
		{name: "prefix only", header: "Bearer ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BearerToken(tt.header)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnauthorized)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAgentMiddleware(t *testing.T) {
	svc := testService(t)
	deviceID := uuid.New()

	token, err := svc.IssueAgentToken(deviceID)
	require.NoError(t, err)

	var gotDevice uuid.UUID

	handler := svc.AgentMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := DeviceIDFromContext(r.Context())
		require.True(t, ok)
		gotDevice = id
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("valid token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/agent/ping", http.NoBody)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, deviceID, gotDevice)
	})

	t.Run("missing token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/agent/ping", http.NoBody)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestUserMiddleware(t *testing.T) {
	svc := testService(t)

	token, err := svc.LoginLocal(context.Background(), "admin", "hunter2")
	require.NoError(t, err)

	handler := svc.UserMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFromContext(r.Context())
		require.True(t, ok)
		assert.Equal(t, "admin", user.ID)
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/devices", http.NoBody)
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
