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

// Package auth issues and verifies the two token classes used by the fleet
// API: short-lived interactive user tokens and long-lived per-device agent
// tokens. The two classes use independent signing keys so a leaked agent
// credential can never mint an operator session.
package auth

import (
	"context"
	"errors"
	"slices"

	"golang.org/x/crypto/bcrypt"

	"github.com/carverauto/fleettrace/pkg/logger"
	"github.com/carverauto/fleettrace/pkg/models"
)

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Service implements local username/password login and JWT handling.
type Service struct {
	config *models.AuthConfig
	log    logger.Logger
}

// NewService builds the auth service from static configuration.
func NewService(config *models.AuthConfig, log logger.Logger) *Service {
	return &Service{
		config: config,
		log:    log,
	}
}

// LoginLocal verifies a username/password pair against the configured local
// users and returns a fresh token pair.
func (s *Service) LoginLocal(ctx context.Context, username, password string) (*models.Token, error) {
	hash, ok := s.config.LocalUsers[username]
	if !ok {
		// Burn a bcrypt comparison anyway so unknown and known usernames
		// take the same time.
		_ = bcrypt.CompareHashAndPassword([]byte("$2a$10$0000000000000000000000"), []byte(password))

		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		s.log.Warn().Str("username", username).Msg("Failed login attempt")

		return nil, ErrInvalidCredentials
	}

	user := &models.User{
		ID:       username,
		Name:     username,
		Provider: "local",
	}

	if slices.Contains(s.config.AdminUsers, username) {
		user.Roles = []string{"admin"}
	}

	return s.generateUserToken(user)
}

// RefreshToken exchanges a valid refresh token for a new token pair.
func (s *Service) RefreshToken(ctx context.Context, refreshToken string) (*models.Token, error) {
	user, err := s.VerifyUserToken(refreshToken)
	if err != nil {
		return nil, err
	}

	return s.generateUserToken(user)
}
