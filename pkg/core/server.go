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

// Package core implements the fleet tracking control plane: agent
// registration, the ping protocol, the remote command queue, geofence
// evaluation, and alerting.
package core

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/carverauto/fleettrace/pkg/db"
	"github.com/carverauto/fleettrace/pkg/logger"
	"github.com/carverauto/fleettrace/pkg/models"
)

// EventPublisher fans state changes out to the event bus. Publishing happens
// after commit and is best-effort; a bus outage never fails a ping.
type EventPublisher interface {
	PublishAlert(ctx context.Context, alert *models.Alert) error
	PublishDeviceStatus(ctx context.Context, data *models.DeviceStatusEventData) error
}

// AlertSink receives newly created alerts in-process, e.g. for the websocket
// stream to connected operator consoles.
type AlertSink interface {
	Notify(alert *models.Alert)
}

// TokenIssuer mints agent credentials at registration time.
type TokenIssuer interface {
	IssueAgentToken(deviceID uuid.UUID) (string, error)
}

// Server owns the fleet tracking domain logic. All persistence goes through
// the injected db.Service; transport lives in pkg/core/api.
type Server struct {
	config *models.CoreServiceConfig
	store  db.Service
	tokens TokenIssuer
	logger logger.Logger

	mu        sync.RWMutex
	publisher EventPublisher
	sinks     []AlertSink

	ShutdownChan chan struct{}
	wg           sync.WaitGroup
}

// NewServer wires the domain server. The configuration must already be
// validated.
func NewServer(config *models.CoreServiceConfig, store db.Service, tokens TokenIssuer, log logger.Logger) *Server {
	return &Server{
		config:       config,
		store:        store,
		tokens:       tokens,
		logger:       log,
		ShutdownChan: make(chan struct{}),
	}
}

// SetEventPublisher attaches the event bus publisher. Optional; without one
// the server simply skips bus publication.
func (s *Server) SetEventPublisher(pub EventPublisher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.publisher = pub
}

// AddAlertSink registers an in-process consumer of new alerts.
func (s *Server) AddAlertSink(sink AlertSink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sinks = append(s.sinks, sink)
}

// Start launches the background offline sweep. It returns immediately.
func (s *Server) Start(ctx context.Context) {
	s.wg.Add(1)

	go s.runOfflineSweep(ctx)
}

// Stop signals background work to finish and waits for it.
func (s *Server) Stop(ctx context.Context) error {
	close(s.ShutdownChan)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Store exposes the storage service for read-only API handlers.
func (s *Server) Store() db.Service {
	return s.store
}

func (s *Server) pingBatch() int {
	if s.config.PingCommandBatch > 0 {
		return s.config.PingCommandBatch
	}

	return 5
}

// publishAlerts pushes committed alerts to the bus and in-process sinks.
// Called only after the owning transaction committed.
func (s *Server) publishAlerts(ctx context.Context, alerts []*models.Alert) {
	s.mu.RLock()
	pub := s.publisher
	sinks := s.sinks
	s.mu.RUnlock()

	for _, alert := range alerts {
		if pub != nil {
			if err := pub.PublishAlert(ctx, alert); err != nil {
				s.logger.Warn().Err(err).
					Str("alert_id", alert.ID.String()).
					Msg("Failed to publish alert event")
			}
		}

		for _, sink := range sinks {
			sink.Notify(alert)
		}
	}
}

// publishStatusChange emits a device status transition event after commit.
func (s *Server) publishStatusChange(ctx context.Context, device *models.Device, previous models.DeviceStatus) {
	if device.Status == previous {
		return
	}

	s.mu.RLock()
	pub := s.publisher
	s.mu.RUnlock()

	if pub == nil {
		return
	}

	data := &models.DeviceStatusEventData{
		DeviceID:       device.ID,
		SerialNumber:   device.SerialNumber,
		PreviousStatus: previous,
		CurrentStatus:  device.Status,
		LastSeen:       device.LastSeen,
		Timestamp:      time.Now().UTC(),
	}

	if err := pub.PublishDeviceStatus(ctx, data); err != nil {
		s.logger.Warn().Err(err).
			Str("device_id", device.ID.String()).
			Msg("Failed to publish device status event")
	}
}

// rollback is the deferred cleanup for every transaction helper; harmless
// after a successful commit.
func (s *Server) rollback(ctx context.Context, tx db.Tx) {
	if err := tx.Rollback(ctx); err != nil {
		s.logger.Error().Err(err).Msg("Transaction rollback failed")
	}
}
