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

package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/carverauto/fleettrace/pkg/models"
)

const clientTimeout = 30 * time.Second

// Client speaks the agent side of the fleet HTTP protocol.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient builds a client for the core service. The token may be empty
// until registration completes.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: clientTimeout},
	}
}

// SetToken installs the agent credential issued at registration.
func (c *Client) SetToken(token string) {
	c.token = token
}

// Register enrolls the device and returns the issued credential.
func (c *Client) Register(ctx context.Context, req *models.RegisterRequest) (*models.RegisterResponse, error) {
	var resp models.RegisterResponse
	if err := c.post(ctx, "/api/agent/register", req, &resp); err != nil {
		return nil, err
	}

	return &resp, nil
}

// Ping reports status and drains queued commands.
func (c *Client) Ping(ctx context.Context, req *models.PingRequest) (*models.PingResponse, error) {
	var resp models.PingResponse
	if err := c.post(ctx, "/api/agent/ping", req, &resp); err != nil {
		return nil, err
	}

	return &resp, nil
}

// ReportResult reports the outcome of a delivered command.
func (c *Client) ReportResult(ctx context.Context, req *models.CommandResultRequest) error {
	var cmd models.RemoteCommand

	return c.post(ctx, "/api/agent/command-result", req, &cmd)
}

// UploadScreenshot uploads a captured screenshot.
func (c *Client) UploadScreenshot(ctx context.Context, req *models.ScreenshotRequest) error {
	var cmd models.RemoteCommand

	return c.post(ctx, "/api/agent/screenshot", req, &cmd)
}

// Consent records end-user tracking consent for this device.
func (c *Client) Consent(ctx context.Context) (*models.ConsentResponse, error) {
	var resp models.ConsentResponse
	if err := c.post(ctx, "/api/agent/consent", nil, &resp); err != nil {
		return nil, err
	}

	return &resp, nil
}

// Status fetches the server's view of this device.
func (c *Client) Status(ctx context.Context) (*models.AgentStatusResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/agent/status", http.NoBody)
	if err != nil {
		return nil, err
	}

	var resp models.AgentStatusResponse
	if err := c.do(httpReq, &resp); err != nil {
		return nil, err
	}

	return &resp, nil
}

func (c *Client) post(ctx context.Context, path string, body, dst interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}

	httpReq.Header.Set("Content-Type", "application/json")

	return c.do(httpReq, dst)
}

func (c *Client) do(req *http.Request, dst interface{}) error {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr models.ErrorResponse
		if decodeErr := json.NewDecoder(resp.Body).Decode(&apiErr); decodeErr == nil && apiErr.Message != "" {
			return fmt.Errorf("server returned %d: %s", resp.StatusCode, apiErr.Message)
		}

		return fmt.Errorf("server returned %d", resp.StatusCode)
	}

	if dst == nil {
		return nil
	}

	return json.NewDecoder(resp.Body).Decode(dst)
}
