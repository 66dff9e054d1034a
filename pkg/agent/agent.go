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

// Package agent implements the reference fleet agent: enroll once, then
// report on an interval and simulate whatever commands the server queued.
package agent

import (
	"context"
	"encoding/base64"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v3/host"

	"github.com/carverauto/fleettrace/pkg/logger"
	"github.com/carverauto/fleettrace/pkg/models"
	"github.com/carverauto/fleettrace/pkg/version"
)

// Config controls a single agent instance.
type Config struct {
	ServerURL    string
	SerialNumber string
	StatePath    string
	PingInterval time.Duration
}

// Agent is the long-running reporting loop.
type Agent struct {
	config *Config
	client *Client
	log    logger.Logger

	deviceID string
}

// New validates the config and prepares an agent. Registration happens on
// Run, not here.
func New(config *Config, log logger.Logger) (*Agent, error) {
	if config.ServerURL == "" {
		return nil, fmt.Errorf("server URL is required")
	}

	if config.PingInterval <= 0 {
		config.PingInterval = 60 * time.Second
	}

	if config.SerialNumber == "" {
		hostname, err := os.Hostname()
		if err != nil {
			return nil, fmt.Errorf("no serial given and hostname lookup failed: %w", err)
		}

		config.SerialNumber = hostname
	}

	return &Agent{
		config: config,
		client: NewClient(config.ServerURL, ""),
		log:    log,
	}, nil
}

// Run enrolls the device if needed, then pings until the context is canceled.
func (a *Agent) Run(ctx context.Context) error {
	if err := a.ensureRegistered(ctx); err != nil {
		return err
	}

	a.log.Info().
		Str("device_id", a.deviceID).
		Dur("interval", a.config.PingInterval).
		Msg("Agent started")

	ticker := time.NewTicker(a.config.PingInterval)
	defer ticker.Stop()

	// First report immediately rather than waiting a full interval.
	a.pingOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			a.log.Info().Msg("Agent stopping")
			return nil
		case <-ticker.C:
			a.pingOnce(ctx)
		}
	}
}

func (a *Agent) ensureRegistered(ctx context.Context) error {
	state, err := LoadState(a.config.StatePath)
	if err != nil {
		return err
	}

	if state != nil {
		a.client.SetToken(state.AgentToken)
		a.deviceID = state.DeviceID.String()

		return nil
	}

	req := a.buildRegisterRequest()

	resp, err := a.client.Register(ctx, req)
	if err != nil {
		return fmt.Errorf("registration failed: %w", err)
	}

	a.client.SetToken(resp.AgentToken)
	a.deviceID = resp.DeviceID.String()

	if err := SaveState(a.config.StatePath, &State{
		DeviceID:   resp.DeviceID,
		AgentToken: resp.AgentToken,
	}); err != nil {
		return err
	}

	// Headless enrollment implies consent; interactive builds would prompt
	// the user first.
	if _, err := a.client.Consent(ctx); err != nil {
		a.log.Warn().Err(err).Msg("Failed to record consent")
	}

	a.log.Info().Str("device_id", a.deviceID).Msg("Device registered")

	return nil
}

func (a *Agent) buildRegisterRequest() *models.RegisterRequest {
	req := &models.RegisterRequest{
		SerialNumber: a.config.SerialNumber,
		AgentVersion: version.GetVersion(),
		MACAddress:   primaryMAC(),
	}

	if info, err := host.Info(); err == nil {
		req.DeviceName = info.Hostname
		req.OSName = info.Platform
		req.OSVersion = info.PlatformVersion
	}

	return req
}

func (a *Agent) pingOnce(ctx context.Context) {
	req := &models.PingRequest{
		AgentVersion: version.GetVersion(),
		IPAddress:    outboundIP(),
	}

	resp, err := a.client.Ping(ctx, req)
	if err != nil {
		a.log.Warn().Err(err).Msg("Ping failed")
		return
	}

	for i := range resp.Commands {
		a.handleCommand(ctx, &resp.Commands[i])
	}
}

// handleCommand simulates execution and reports the outcome. Lock/wipe flag
// entries come down with the nil UUID and have no backing queue row, so no
// result is reported for them.
func (a *Agent) handleCommand(ctx context.Context, cmd *models.PingCommand) {
	a.log.Info().
		Str("command_id", cmd.ID.String()).
		Str("type", string(cmd.Type)).
		Msg("Received command")

	result := models.CommandResultRequest{
		CommandID: cmd.ID,
		Status:    "executed",
	}

	switch cmd.Type {
	case models.CommandTypeLock:
		result.Result = "screen locked"
	case models.CommandTypeUnlock:
		result.Result = "screen unlocked"
	case models.CommandTypeMessage:
		a.log.Info().Str("message", cmd.Message).Msg("Displaying message")
		result.Result = "message displayed"
	case models.CommandTypeScreenshot:
		result.Result = "screenshot captured"
		result.ScreenshotData = placeholderScreenshot()
	case models.CommandTypeWipe:
		result.Result = "wipe acknowledged"
	case models.CommandTypeRestart, models.CommandTypeShutdown:
		result.Result = "power action acknowledged"
	case models.CommandTypeExecute:
		result.Status = "failed"
		result.ErrorMessage = "arbitrary execution disabled in reference agent"
	default:
		result.Status = "failed"
		result.ErrorMessage = fmt.Sprintf("unknown command type %q", cmd.Type)
	}

	if cmd.ID == uuid.Nil {
		return
	}

	if err := a.client.ReportResult(ctx, &result); err != nil {
		a.log.Warn().
			Err(err).
			Str("command_id", cmd.ID.String()).
			Msg("Failed to report command result")
	}
}

// placeholderScreenshot returns a 1x1 PNG; the reference agent does not grab
// real frames.
func placeholderScreenshot() string {
	png := []byte{
		0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a,
		0x00, 0x00, 0x00, 0x0d, 0x49, 0x48, 0x44, 0x52,
		0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
		0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4,
		0x89, 0x00, 0x00, 0x00, 0x0a, 0x49, 0x44, 0x41,
		0x54, 0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00,
		0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00,
		0x00, 0x00, 0x00, 0x49, 0x45, 0x4e, 0x44, 0xae,
		0x42, 0x60, 0x82,
	}

	return base64.StdEncoding.EncodeToString(png)
}

// primaryMAC returns the hardware address of the first non-loopback interface
// that has one.
func primaryMAC() string {
	ifaces, err := net.Interfaces()
	if err != nil {
		return ""
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 || len(iface.HardwareAddr) == 0 {
			continue
		}

		return iface.HardwareAddr.String()
	}

	return ""
}

// outboundIP reports the local address the OS would route external traffic
// from. No packets are sent.
func outboundIP() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return ""
	}
	defer func() { _ = conn.Close() }()

	if addr, ok := conn.LocalAddr().(*net.UDPAddr); ok {
		return addr.IP.String()
	}

	return ""
}
