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

// Package lifecycle runs the service components and owns logger setup.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wzken/steamwatch/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

// Service is a long-running component. Start blocks until the context is
// canceled or the service fails; Stop releases its resources.
type Service interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Run starts every service and blocks until the context is canceled or one
// of them fails, then stops them in reverse order. Context cancellation is
// a clean exit, not an error.
func Run(ctx context.Context, log logger.Logger, services ...Service) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, len(services))

	for _, svc := range services {
		svc := svc

		go func() {
			if err := svc.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- err
			}
		}()
	}

	var runErr error

	select {
	case <-ctx.Done():
		log.Info().Msg("Shutdown signal received")
	case err := <-errCh:
		log.Error().Err(err).Msg("Service failed, shutting down")

		runErr = err
	}

	cancel()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stopCancel()

	for i := len(services) - 1; i >= 0; i-- {
		if err := services[i].Stop(stopCtx); err != nil {
			log.Error().Err(err).Msg("Service shutdown failed")

			if runErr == nil {
				runErr = fmt.Errorf("stop service: %w", err)
			}
		}
	}

	return runErr
}
