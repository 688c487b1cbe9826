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

// Package notify renders detected presence transitions into messages or
// images and routes them to the destination each rule names. Rendering
// strategies degrade to plain text rather than dropping a notification.
package notify

import (
	"context"
	"fmt"
	"sync"

	"github.com/wzken/steamwatch/pkg/logger"
	"github.com/wzken/steamwatch/pkg/models"
)

// maxPendingRetries caps the redelivery queue. Beyond it the oldest
// notification is dropped; a stale presence ping is worthless anyway.
const maxPendingRetries = 32

// Dispatcher composes, renders, and delivers transition notifications.
// Safe for concurrent use.
type Dispatcher struct {
	renderer   Renderer
	fallback   Renderer
	deliverer  Deliverer
	summarizer Summarizer
	logger     logger.Logger

	mu      sync.Mutex
	pending []*Notification
}

// NewDispatcher creates a dispatcher using the given rendering strategy. A
// nil renderer means plain text; a nil summarizer disables quote lines.
func NewDispatcher(renderer Renderer, deliverer Deliverer, summarizer Summarizer, log logger.Logger) (*Dispatcher, error) {
	if deliverer == nil {
		return nil, errDelivererRequired
	}

	fallback := NewPlainRenderer()

	if renderer == nil {
		renderer = fallback
	}

	return &Dispatcher{
		renderer:   renderer,
		fallback:   fallback,
		deliverer:  deliverer,
		summarizer: summarizer,
		logger:     log,
	}, nil
}

// Dispatch renders and delivers one transition. Deliveries left over from
// earlier failed ticks are retried first, once each; the current
// notification joins the retry queue if its own delivery fails. Dispatch
// never retries synchronously.
func (d *Dispatcher) Dispatch(ctx context.Context, transition models.Transition, rule models.Rule) error {
	n := &Notification{
		Transition:  transition,
		Rule:        rule,
		Destination: rule.Destination,
		Message:     baseMessage(transition, rule),
	}

	if d.summarizer != nil {
		quote, err := d.summarizer.Summarize(ctx, transition, rule)

		switch {
		case err != nil:
			d.logger.Warn().Err(err).Msg("Summary generation failed, sending base message")
		case quote != "":
			n.Message = n.Message + "\n> " + quote
		}
	}

	d.flushPending(ctx)

	if err := d.send(ctx, n); err != nil {
		d.enqueueRetry(n)
		return err
	}

	return nil
}

// send renders with the configured strategy, degrading to plain text on a
// render failure, then delivers the asset.
func (d *Dispatcher) send(ctx context.Context, n *Notification) error {
	asset, err := d.renderer.Render(ctx, n)
	if err != nil {
		d.logger.Warn().Err(err).
			Str("destination", n.Destination).
			Msg("Render strategy failed, falling back to plain text")

		asset, err = d.fallback.Render(ctx, n)
		if err != nil {
			return fmt.Errorf("render fallback: %w", err)
		}
	}

	switch asset.Kind {
	case AssetImage:
		err = d.deliverer.SendImage(ctx, n.Destination, asset.ImagePath)
	default:
		err = d.deliverer.SendText(ctx, n.Destination, asset.Text)
	}

	if err != nil {
		return fmt.Errorf("deliver to %s: %w", n.Destination, err)
	}

	return nil
}

func (d *Dispatcher) enqueueRetry(n *Notification) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.pending = append(d.pending, n)

	if len(d.pending) > maxPendingRetries {
		dropped := d.pending[0]
		d.pending = d.pending[1:]

		d.logger.Warn().
			Str("destination", dropped.Destination).
			Str("kind", string(dropped.Transition.Kind)).
			Msg("Retry queue full, dropping oldest notification")
	}
}

// flushPending retries queued deliveries once each. A notification that
// fails its retry is dropped.
func (d *Dispatcher) flushPending(ctx context.Context) {
	d.mu.Lock()
	pending := d.pending
	d.pending = nil
	d.mu.Unlock()

	for _, n := range pending {
		if err := d.send(ctx, n); err != nil {
			d.logger.Error().Err(err).
				Str("destination", n.Destination).
				Msg("Retry delivery failed, dropping notification")
		}
	}
}
