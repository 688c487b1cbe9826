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

package scheduler

import (
	"context"
	"time"

	"github.com/wzken/steamwatch/pkg/alerts"
	"github.com/wzken/steamwatch/pkg/models"
)

// Clock abstracts time-related operations.
type Clock interface {
	Now() time.Time
	Ticker(d time.Duration) Ticker
}

// Ticker abstracts the ticker behavior.
type Ticker interface {
	Chan() <-chan time.Time
	Stop()
}

// PresenceFetcher fetches presence snapshots from Steam Community pages.
type PresenceFetcher interface {
	FetchPlayerStatus(ctx context.Context, steamID string) (*models.PresenceState, error)
	FetchFriendPresences(ctx context.Context) (map[string]models.PresenceState, error)
}

// RuleSource provides the monitoring rules and accepts bookkeeping updates.
type RuleSource interface {
	List(ctx context.Context, destination string) ([]*models.Rule, error)
	Update(ctx context.Context, rule *models.Rule) error
}

// Dispatcher delivers notifications for detected presence transitions.
type Dispatcher interface {
	Dispatch(ctx context.Context, transition models.Transition, rule models.Rule) error
}

// Escalator raises operator alerts for systemic failures.
type Escalator interface {
	Escalate(ctx context.Context, level alerts.AlertLevel, title, message string, details map[string]any)
}
