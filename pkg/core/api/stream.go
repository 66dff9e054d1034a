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
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/carverauto/fleettrace/pkg/logger"
	"github.com/carverauto/fleettrace/pkg/models"
)

const (
	streamWriteWait  = 10 * time.Second
	streamPongWait   = 60 * time.Second
	streamPingPeriod = 54 * time.Second
	streamSendBuffer = 16
)

// AlertStream pushes newly created alerts to connected operator consoles
// over websocket. It implements core.AlertSink.
type AlertStream struct {
	upgrader websocket.Upgrader
	log      logger.Logger

	mu      sync.Mutex
	clients map[chan *models.Alert]struct{}
}

// NewAlertStream builds the broadcaster. Origin checking is delegated to the
// CORS layer in front of the router.
func NewAlertStream(log logger.Logger) *AlertStream {
	return &AlertStream{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		log:     log,
		clients: make(map[chan *models.Alert]struct{}),
	}
}

// Notify fans a committed alert out to every connected client. A slow client
// drops messages rather than blocking the caller.
func (s *AlertStream) Notify(alert *models.Alert) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for ch := range s.clients {
		select {
		case ch <- alert:
		default:
			s.log.Warn().Msg("Alert stream client too slow, dropping alert")
		}
	}
}

// ClientCount reports how many consoles are connected.
func (s *AlertStream) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.clients)
}

func (s *AlertStream) register() chan *models.Alert {
	ch := make(chan *models.Alert, streamSendBuffer)

	s.mu.Lock()
	s.clients[ch] = struct{}{}
	s.mu.Unlock()

	return ch
}

func (s *AlertStream) unregister(ch chan *models.Alert) {
	s.mu.Lock()
	delete(s.clients, ch)
	s.mu.Unlock()
}

// Handle upgrades the connection and streams alerts until the client goes
// away.
func (s *AlertStream) Handle(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}

	ch := s.register()
	defer func() {
		s.unregister(ch)
		_ = conn.Close()
	}()

	done := make(chan struct{})

	// Reader: drains control frames and detects disconnect.
	go func() {
		defer close(done)

		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(streamPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(streamPongWait))
		})

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(streamPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case alert := <-ch:
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))

			if err := conn.WriteJSON(alert); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))

			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
