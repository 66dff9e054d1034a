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

// The fleettrace agent registers a device with the core service and reports
// status on a fixed interval. Received commands are simulated rather than
// enforced; the agent exists to exercise the wire protocol end to end.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/carverauto/fleettrace/pkg/agent"
	"github.com/carverauto/fleettrace/pkg/lifecycle"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	var cfg agent.Config

	flag.StringVar(&cfg.ServerURL, "server", "http://localhost:8090", "Core service base URL")
	flag.StringVar(&cfg.SerialNumber, "serial", "", "Device serial number (defaults to hostname)")
	flag.StringVar(&cfg.StatePath, "state", defaultStatePath(), "Path to the agent state file")
	flag.DurationVar(&cfg.PingInterval, "interval", 60*time.Second, "Ping interval")
	flag.Parse()

	agentLogger, err := lifecycle.CreateComponentLogger("agent", nil)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := agent.New(&cfg, agentLogger)
	if err != nil {
		return err
	}

	return a.Run(ctx)
}

func defaultStatePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".fleettrace-agent.json"
	}

	return home + "/.fleettrace-agent.json"
}
