/*
 * Copyright 2025 The steamwatch Authors.
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

// Package config loads and validates service configuration from JSON files,
// with optional environment variable overrides.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/wzken/steamwatch/pkg/logger"
)

var (
	errInvalidConfigSource = errors.New("invalid CONFIG_SOURCE value")
)

const (
	configSourceFile = "file"
	configSourceEnv  = "env"

	defaultEnvPrefix = "STEAMWATCH_"
)

// Config holds the configuration loading dependencies.
type Config struct {
	defaultLoader ConfigLoader
	logger        logger.Logger
}

// NewConfig initializes a new Config instance with a default file loader and logger.
// If logger is nil, creates a basic logger for config loading.
func NewConfig(log logger.Logger) *Config {
	if log == nil {
		// Create a basic logger for config loading
		log = createBasicLogger()
	}

	return &Config{
		defaultLoader: &FileConfigLoader{logger: log},
		logger:        log,
	}
}

// basicLogger implements a simple logger for config loading without circular imports
type basicLogger struct {
	logger zerolog.Logger
}

// createBasicLogger creates a simple logger for config loading
func createBasicLogger() logger.Logger {
	// Create a minimal logger for config loading
	zlog := zerolog.New(os.Stderr).
		Level(zerolog.WarnLevel).
		With().
		Timestamp().
		Logger()

	return &basicLogger{logger: zlog}
}

func (b *basicLogger) Trace() *zerolog.Event {
	return b.logger.Trace()
}

func (b *basicLogger) Debug() *zerolog.Event {
	return b.logger.Debug()
}

func (b *basicLogger) Info() *zerolog.Event {
	return b.logger.Info()
}

func (b *basicLogger) Warn() *zerolog.Event {
	return b.logger.Warn()
}

func (b *basicLogger) Error() *zerolog.Event {
	return b.logger.Error()
}

func (b *basicLogger) Fatal() *zerolog.Event {
	return b.logger.Fatal()
}

func (b *basicLogger) Panic() *zerolog.Event {
	return b.logger.Panic()
}

func (b *basicLogger) With() zerolog.Context {
	return b.logger.With()
}

func (b *basicLogger) WithComponent(component string) zerolog.Logger {
	return b.logger.With().Str("component", component).Logger()
}

func (b *basicLogger) WithFields(fields map[string]interface{}) zerolog.Logger {
	ctx := b.logger.With()
	for key, value := range fields {
		ctx = ctx.Interface(key, value)
	}

	return ctx.Logger()
}

func (b *basicLogger) SetLevel(level zerolog.Level) {
	b.logger = b.logger.Level(level)
}

func (b *basicLogger) SetDebug(debug bool) {
	if debug {
		b.SetLevel(zerolog.DebugLevel)
	} else {
		b.SetLevel(zerolog.InfoLevel)
	}
}

// ValidateConfig validates a configuration if it implements Validator.
func ValidateConfig(cfg interface{}) error {
	v, ok := cfg.(Validator)
	if !ok {
		return nil
	}

	return v.Validate()
}

// LoadAndValidate loads a configuration from the selected source, applies
// environment overrides, and validates it.
func (c *Config) LoadAndValidate(ctx context.Context, path string, cfg interface{}) error {
	if err := c.loadFromSource(ctx, path, cfg); err != nil {
		return err
	}

	if err := ValidateConfig(cfg); err != nil {
		return err
	}

	return nil
}

// loadFromSource loads config using the loader selected by CONFIG_SOURCE.
// File-sourced configs still get individual environment overrides applied
// on top, so a deployment can pin single fields without editing the file.
func (c *Config) loadFromSource(ctx context.Context, path string, cfg interface{}) error {
	source := strings.ToLower(os.Getenv("CONFIG_SOURCE"))

	prefix := os.Getenv("CONFIG_ENV_PREFIX")
	if prefix == "" {
		prefix = defaultEnvPrefix
	}

	switch source {
	case configSourceEnv:
		return NewEnvConfigLoader(c.logger, prefix).Load(ctx, path, cfg)
	case configSourceFile, "":
		if err := c.defaultLoader.Load(ctx, path, cfg); err != nil {
			return err
		}

		return NewEnvConfigLoader(c.logger, prefix).Load(ctx, path, cfg)
	default:
		return fmt.Errorf("%w: %s (expected '%s' or '%s')",
			errInvalidConfigSource, source, configSourceFile, configSourceEnv)
	}
}
