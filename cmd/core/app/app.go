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

// Package app boots the fleet tracking core service.
package app

import (
	"context"

	"github.com/carverauto/fleettrace/pkg/config"
	"github.com/carverauto/fleettrace/pkg/core"
	"github.com/carverauto/fleettrace/pkg/core/api"
	"github.com/carverauto/fleettrace/pkg/core/auth"
	"github.com/carverauto/fleettrace/pkg/db"
	"github.com/carverauto/fleettrace/pkg/lifecycle"
	"github.com/carverauto/fleettrace/pkg/models"
	"github.com/carverauto/fleettrace/pkg/natsutil"
)

// Options contains runtime configuration derived from CLI flags.
type Options struct {
	ConfigPath string
}

// Run boots the core service using the provided options.
func Run(ctx context.Context, opts Options) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var cfg models.CoreServiceConfig
	if err := config.LoadAndValidate(ctx, opts.ConfigPath, &cfg); err != nil {
		return err
	}

	mainLogger, err := lifecycle.CreateComponentLogger("core", cfg.Logging)
	if err != nil {
		return err
	}

	database, err := db.NewFromConfig(ctx, &cfg.Database, mainLogger)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := database.Migrate(ctx); err != nil {
		return err
	}

	authService := auth.NewService(cfg.Auth, mainLogger)
	server := core.NewServer(&cfg, database, authService, mainLogger)

	if cfg.NATS != nil {
		publisher, nc, pubErr := natsutil.Connect(ctx, cfg.NATS, mainLogger)
		if pubErr != nil {
			return pubErr
		}
		defer nc.Close()

		server.SetEventPublisher(publisher)
	}

	stream := api.NewAlertStream(mainLogger)
	server.AddAlertSink(stream)

	apiServer := api.NewAPIServer(cfg.CORS,
		api.WithCoreService(server),
		api.WithAuthService(authService),
		api.WithAlertStream(stream),
		api.WithLogger(mainLogger),
	)

	return lifecycle.RunServer(ctx, &lifecycle.ServerOptions{
		ListenAddr: cfg.ListenAddr,
		Handler:    apiServer.Router(),
		Service:    server,
		Logger:     mainLogger,
	})
}
