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

package alerts

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// MessageSink delivers a plain-text message to one destination. The host
// gateway bridge satisfies this.
type MessageSink interface {
	Deliver(ctx context.Context, destination, message string) error
}

// AdminNotifier mirrors alerts to the configured admin destinations as
// plain messages, with the same per-title cooldown discipline as the
// webhook path.
type AdminNotifier struct {
	sink         MessageSink
	destinations []string
	cooldown     time.Duration

	mu       sync.Mutex
	lastSent map[string]time.Time
	nowFn    func() time.Time
}

// NewAdminNotifier builds a notifier that fans messages out to every
// destination. A non-positive cooldown disables suppression.
func NewAdminNotifier(sink MessageSink, destinations []string, cooldown time.Duration) *AdminNotifier {
	return &AdminNotifier{
		sink:         sink,
		destinations: destinations,
		cooldown:     cooldown,
		lastSent:     make(map[string]time.Time),
		nowFn:        time.Now,
	}
}

// Notify sends the message to every admin destination. A repeat of the same
// title inside the cooldown window returns ErrWebhookCooldown without
// delivering anything.
func (n *AdminNotifier) Notify(ctx context.Context, title, message string) error {
	if len(n.destinations) == 0 {
		return nil
	}

	if err := n.checkCooldown(title); err != nil {
		return err
	}

	var errs []error

	for _, dest := range n.destinations {
		if err := n.sink.Deliver(ctx, dest, message); err != nil {
			errs = append(errs, fmt.Errorf("deliver to %s: %w", dest, err))
		}
	}

	return errors.Join(errs...)
}

func (n *AdminNotifier) checkCooldown(title string) error {
	if n.cooldown <= 0 {
		return nil
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if last, ok := n.lastSent[title]; ok {
		if n.nowFn().Sub(last) < n.cooldown {
			return fmt.Errorf("%w: %s", ErrWebhookCooldown, title)
		}
	}

	n.lastSent[title] = n.nowFn()

	return nil
}
