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

package identity

import (
	"context"

	"github.com/wzken/steamwatch/pkg/models"
)

// ProfileResolver is the slice of the steam client the resolver needs.
type ProfileResolver interface {
	NormalizeTarget(raw string) (string, error)
	ResolveTarget(ctx context.Context, normalized string) (*models.Identity, error)
}

// IdentityStore persists resolved identities across restarts.
type IdentityStore interface {
	Upsert(ctx context.Context, rawInput string, ident models.Identity) error
	LoadAll(ctx context.Context) (map[string]models.Identity, error)
}
