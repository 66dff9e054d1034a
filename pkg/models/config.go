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

package models

import (
	"fmt"
	"time"

	"github.com/carverauto/fleettrace/pkg/logger"
)

// DatabaseConfig configures the Postgres pool.
type DatabaseConfig struct {
	Host               string            `json:"host"`
	Port               int               `json:"port"`
	Database           string            `json:"database"`
	Username           string            `json:"username"`
	Password           string            `json:"password"`
	SSLMode            string            `json:"ssl_mode,omitempty"`
	ApplicationName    string            `json:"application_name,omitempty"`
	MaxConnections     int32             `json:"max_connections,omitempty"`
	MinConnections     int32             `json:"min_connections,omitempty"`
	MaxConnLifetime    time.Duration     `json:"max_conn_lifetime,omitempty"`
	HealthCheckPeriod  time.Duration     `json:"health_check_period,omitempty"`
	StatementTimeout   time.Duration     `json:"statement_timeout,omitempty"`
	ExtraRuntimeParams map[string]string `json:"extra_runtime_params,omitempty"`
}

// NATSConfig configures NATS connectivity for event publishing.
type NATSConfig struct {
	URL        string `json:"url"`
	StreamName string `json:"stream_name,omitempty"`
}

// Validate ensures the NATS configuration is valid.
func (c *NATSConfig) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("nats url is required")
	}

	if c.StreamName == "" {
		c.StreamName = "events"
	}

	return nil
}

// CORSConfig configures cross-origin access for the operator API.
type CORSConfig struct {
	AllowedOrigins   []string `json:"allowed_origins"`
	AllowCredentials bool     `json:"allow_credentials"`
}

// CoreServiceConfig is the immutable configuration for the core server,
// constructed once at process start and passed explicitly into constructors.
type CoreServiceConfig struct {
	ListenAddr string `json:"listen_addr"`

	Database DatabaseConfig `json:"database"`
	Auth     *AuthConfig    `json:"auth"`
	NATS     *NATSConfig    `json:"nats,omitempty"`
	CORS     CORSConfig     `json:"cors,omitempty"`
	Logging  *logger.Config `json:"logging,omitempty"`

	// PingCommandBatch caps how many pending commands a single ping drains.
	PingCommandBatch int `json:"ping_command_batch,omitempty"`

	// OfflineAfter is how long a device may go unseen before the sweep marks
	// it offline. OfflineSweepInterval is the sweep cadence.
	OfflineAfter         time.Duration `json:"offline_after,omitempty"`
	OfflineSweepInterval time.Duration `json:"offline_sweep_interval,omitempty"`
}

const (
	defaultPingCommandBatch     = 5
	defaultOfflineAfter         = 15 * time.Minute
	defaultOfflineSweepInterval = time.Minute
)

// Validate fills defaults and rejects incomplete configuration.
func (c *CoreServiceConfig) Validate() error {
	if c.ListenAddr == "" {
		c.ListenAddr = ":8090"
	}

	if c.Database.Host == "" || c.Database.Database == "" {
		return fmt.Errorf("database host and name are required")
	}

	if c.Auth == nil || c.Auth.JWTSecret == "" || c.Auth.AgentSecret == "" {
		return fmt.Errorf("auth jwt_secret and agent_secret are required")
	}

	if c.Auth.JWTExpiration == 0 {
		c.Auth.JWTExpiration = 30 * time.Minute
	}

	if c.Auth.AgentExpiration == 0 {
		c.Auth.AgentExpiration = 365 * 24 * time.Hour
	}

	if c.PingCommandBatch <= 0 {
		c.PingCommandBatch = defaultPingCommandBatch
	}

	if c.OfflineAfter <= 0 {
		c.OfflineAfter = defaultOfflineAfter
	}

	if c.OfflineSweepInterval <= 0 {
		c.OfflineSweepInterval = defaultOfflineSweepInterval
	}

	if c.NATS != nil {
		if err := c.NATS.Validate(); err != nil {
			return err
		}
	}

	return nil
}
