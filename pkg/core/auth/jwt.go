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
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"

	"github.com/carverauto/fleettrace/pkg/models"
)

const agentTokenType = "agent"

type userClaims struct {
	Email string   `json:"email,omitempty"`
	Name  string   `json:"name,omitempty"`
	Roles []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

type agentClaims struct {
	DeviceID  string `json:"device_id"`
	TokenType string `json:"type"`
	jwt.RegisteredClaims
}

func (s *Service) generateUserToken(user *models.User) (*models.Token, error) {
	now := time.Now()
	expiresAt := now.Add(s.config.JWTExpiration)

	accessToken, err := s.signUserToken(user, now, expiresAt)
	if err != nil {
		return nil, err
	}

	// Refresh tokens live four times as long as access tokens.
	refreshToken, err := s.signUserToken(user, now, now.Add(4*s.config.JWTExpiration))
	if err != nil {
		return nil, err
	}

	return &models.Token{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *Service) signUserToken(user *models.User, now, expiresAt time.Time) (string, error) {
	claims := userClaims{
		Email: user.Email,
		Name:  user.Name,
		Roles: user.Roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString([]byte(s.config.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign user token: %w", err)
	}

	return signed, nil
}

// VerifyUserToken validates an interactive-session JWT and returns the user
// it was issued to.
func (s *Service) VerifyUserToken(tokenString string) (*models.User, error) {
	claims := &userClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}

		return []byte(s.config.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return nil, ErrUnauthorized
	}

	return &models.User{
		ID:       claims.Subject,
		Email:    claims.Email,
		Name:     claims.Name,
		Provider: "local",
		Roles:    claims.Roles,
	}, nil
}

// IssueAgentToken mints the long-lived per-device credential handed out at
// registration. The token is signed with the agent key, never the user key.
func (s *Service) IssueAgentToken(deviceID uuid.UUID) (string, error) {
	now := time.Now()
	claims := agentClaims{
		DeviceID:  deviceID.String(),
		TokenType: agentTokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   deviceID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.AgentExpiration)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString([]byte(s.config.AgentSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign agent token: %w", err)
	}

	return signed, nil
}

// VerifyAgentToken validates an agent credential and returns the device it
// identifies. A user token presented here fails: wrong key, wrong type claim.
func (s *Service) VerifyAgentToken(tokenString string) (uuid.UUID, error) {
	claims := &agentClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}

		return []byte(s.config.AgentSecret), nil
	})
	if err != nil || !token.Valid {
		return uuid.Nil, ErrUnauthorized
	}

	if claims.TokenType != agentTokenType {
		return uuid.Nil, ErrUnauthorized
	}

	deviceID, err := uuid.Parse(claims.DeviceID)
	if err != nil {
		return uuid.Nil, ErrUnauthorized
	}

	return deviceID, nil
}

// Fingerprint returns the hex SHA-256 of a token. Only the fingerprint is
// stored server-side; the raw credential is returned to the agent once.
func Fingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// BearerToken extracts the credential from an Authorization header value.
func BearerToken(header string) (string, error) {
	const prefix = "Bearer "

	if !strings.HasPrefix(header, prefix) {
		return "", ErrUnauthorized
	}

	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	if token == "" {
		return "", ErrUnauthorized
	}

	return token, nil
}
