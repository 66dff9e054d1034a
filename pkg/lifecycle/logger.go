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

package lifecycle

import (
	"github.com/rs/zerolog"

	"github.com/carverauto/fleettrace/pkg/logger"
)

// componentLogger wraps a zerolog.Logger carrying a component field so it
// satisfies logger.Logger.
type componentLogger struct {
	logger zerolog.Logger
}

func (l *componentLogger) Trace() *zerolog.Event { return l.logger.Trace() }
func (l *componentLogger) Debug() *zerolog.Event { return l.logger.Debug() }
func (l *componentLogger) Info() *zerolog.Event  { return l.logger.Info() }
func (l *componentLogger) Warn() *zerolog.Event  { return l.logger.Warn() }
func (l *componentLogger) Error() *zerolog.Event { return l.logger.Error() }
func (l *componentLogger) Fatal() *zerolog.Event { return l.logger.Fatal() }
func (l *componentLogger) Panic() *zerolog.Event { return l.logger.Panic() }

func (l *componentLogger) With() zerolog.Context { return l.logger.With() }

func (l *componentLogger) WithComponent(component string) zerolog.Logger {
	return l.logger.With().Str("component", component).Logger()
}

func (l *componentLogger) SetLevel(level zerolog.Level) {
	l.logger = l.logger.Level(level)
}

// CreateLogger creates a logger instance that can be injected into services.
func CreateLogger(config *logger.Config) (logger.Logger, error) {
	return logger.New(config)
}

// CreateComponentLogger creates a logger tagged for a specific component.
func CreateComponentLogger(component string, config *logger.Config) (logger.Logger, error) {
	base, err := logger.New(config)
	if err != nil {
		return nil, err
	}

	return &componentLogger{logger: base.WithComponent(component)}, nil
}
