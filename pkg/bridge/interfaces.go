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

package bridge

import (
	"context"

	"github.com/wzken/steamwatch/pkg/models"
)

// TargetResolver resolves user-supplied profile references to identities.
// The identity resolver satisfies this.
type TargetResolver interface {
	Resolve(ctx context.Context, raw string) (*models.Identity, error)
}

// RuleStore is the subset of the rule store the command router needs.
type RuleStore interface {
	Add(ctx context.Context, rule *models.Rule) (string, error)
	Remove(ctx context.Context, prefix string) (*models.Rule, error)
	List(ctx context.Context, destination string) ([]*models.Rule, error)
}

// CookieUpdater swaps the Steam session cookies on the live client.
type CookieUpdater interface {
	UpdateCookies(loginSecure, sessionID string)
}

// Refresher exposes the scheduler operations commands can trigger.
type Refresher interface {
	ForceRefresh()
	RuleStates() map[string]models.PresenceState
}
