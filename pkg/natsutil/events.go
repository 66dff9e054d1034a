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

// Package natsutil publishes fleet events to NATS JetStream as CloudEvents.
package natsutil

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/carverauto/fleettrace/pkg/logger"
	"github.com/carverauto/fleettrace/pkg/models"
)

const (
	eventSource = "fleettrace/core"

	alertCreatedType  = "com.carverauto.fleettrace.alert.created"
	deviceStatusType  = "com.carverauto.fleettrace.device.status"
	alertSubject      = "events.alert.created"
	statusSubject     = "events.device.status"
	defaultStreamName = "events"
)

// EventPublisher publishes CloudEvents to a JetStream stream. It implements
// core.EventPublisher.
type EventPublisher struct {
	js     jetstream.JetStream
	stream string
	log    logger.Logger
}

// NewEventPublisher wraps an existing JetStream context.
func NewEventPublisher(js jetstream.JetStream, streamName string, log logger.Logger) *EventPublisher {
	if streamName == "" {
		streamName = defaultStreamName
	}

	return &EventPublisher{
		js:     js,
		stream: streamName,
		log:    log,
	}
}

// PublishAlert publishes an alert creation event.
func (p *EventPublisher) PublishAlert(ctx context.Context, alert *models.Alert) error {
	data := models.AlertEventData{
		AlertID:    alert.ID,
		DeviceID:   alert.DeviceID,
		AlertType:  alert.AlertType,
		Severity:   alert.Severity,
		Title:      alert.Title,
		GeofenceID: alert.GeofenceID,
		Latitude:   alert.Latitude,
		Longitude:  alert.Longitude,
		Timestamp:  alert.CreatedAt,
	}

	return p.publish(ctx, alertCreatedType, alertSubject, data.Timestamp, data)
}

// PublishDeviceStatus publishes a device status transition event.
func (p *EventPublisher) PublishDeviceStatus(ctx context.Context, data *models.DeviceStatusEventData) error {
	return p.publish(ctx, deviceStatusType, statusSubject, data.Timestamp, data)
}

func (p *EventPublisher) publish(ctx context.Context, eventType, subject string, ts time.Time, data interface{}) error {
	event := models.CloudEvent{
		SpecVersion:     "1.0",
		ID:              uuid.New().String(),
		Source:          eventSource,
		Type:            eventType,
		DataContentType: "application/json",
		Subject:         subject,
		Time:            &ts,
		Data:            data,
	}

	eventBytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", eventType, err)
	}

	ack, err := p.js.Publish(ctx, subject, eventBytes)
	if err != nil {
		return fmt.Errorf("failed to publish %s event: %w", eventType, err)
	}

	p.log.Debug().
		Str("event_id", event.ID).
		Str("subject", subject).
		Uint64("seq", ack.Sequence).
		Msg("Published event")

	return nil
}

// Connect dials NATS, ensures the configured stream covers the fleet event
// subjects, and returns a ready publisher. The caller owns the connection.
func Connect(ctx context.Context, config *models.NATSConfig, log logger.Logger) (*EventPublisher, *nats.Conn, error) {
	nc, err := nats.Connect(config.URL,
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			log.Warn().Err(err).Msg("NATS error")
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	if err := ensureStream(ctx, js, config.StreamName); err != nil {
		nc.Close()
		return nil, nil, err
	}

	return NewEventPublisher(js, config.StreamName, log), nc, nil
}

// ensureStream creates or widens the stream so it captures both fleet event
// subjects.
func ensureStream(ctx context.Context, js jetstream.JetStream, streamName string) error {
	if streamName == "" {
		streamName = defaultStreamName
	}

	subjects := []string{alertSubject, statusSubject}

	stream, err := js.Stream(ctx, streamName)
	if err != nil {
		if !isStreamMissingErr(err) {
			return fmt.Errorf("failed to look up stream %s: %w", streamName, err)
		}

		_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
			Name:     streamName,
			Subjects: subjects,
		})
		if err != nil {
			return fmt.Errorf("failed to create stream %s: %w", streamName, err)
		}

		return nil
	}

	info, err := stream.Info(ctx)
	if err != nil {
		return fmt.Errorf("failed to read stream %s info: %w", streamName, err)
	}

	merged := info.Config.Subjects
	for _, subject := range subjects {
		merged = ensureSubjectList(merged, subject)
	}

	if len(merged) != len(info.Config.Subjects) {
		cfg := info.Config
		cfg.Subjects = merged

		if _, err := js.UpdateStream(ctx, cfg); err != nil {
			return fmt.Errorf("failed to update stream %s subjects: %w", streamName, err)
		}
	}

	return nil
}

// ensureSubjectList appends subject unless an existing entry already matches
// it, wildcards included.
func ensureSubjectList(subjects []string, subject string) []string {
	for _, existing := range subjects {
		if matchesSubject(existing, subject) {
			return subjects
		}
	}

	return append(subjects, subject)
}

// matchesSubject reports whether a NATS subject pattern covers subject.
// "*" matches one token, ">" matches the remainder.
func matchesSubject(pattern, subject string) bool {
	patternTokens := strings.Split(pattern, ".")
	subjectTokens := strings.Split(subject, ".")

	for i, token := range patternTokens {
		if token == ">" {
			return true
		}

		if i >= len(subjectTokens) {
			return false
		}

		if token != "*" && token != subjectTokens[i] {
			return false
		}
	}

	return len(patternTokens) == len(subjectTokens)
}

func isStreamMissingErr(err error) bool {
	return errors.Is(err, jetstream.ErrStreamNotFound) ||
		errors.Is(err, jetstream.ErrNoStreamResponse) ||
		errors.Is(err, nats.ErrStreamNotFound) ||
		errors.Is(err, nats.ErrNoStreamResponse) ||
		errors.Is(err, nats.ErrNoResponders)
}
