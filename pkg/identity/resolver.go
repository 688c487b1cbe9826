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

// Package identity resolves user-supplied Steam targets (vanity URLs,
// profile URLs, bare 64-bit IDs) to canonical identities and keeps them
// fresh in the background.
package identity

import (
	"context"
	"sync"
	"time"

	"github.com/wzken/steamwatch/pkg/logger"
	"github.com/wzken/steamwatch/pkg/models"
	"github.com/wzken/steamwatch/pkg/steam"
)

const (
	defaultReResolveInterval = 24 * time.Hour

	// sweepCourtesyDelay spaces out upstream profile fetches during a
	// re-resolve sweep so bulk refreshes do not hammer the community
	// frontend.
	sweepCourtesyDelay = 2 * time.Second
)

// Resolver maps raw monitoring targets to canonical Steam identities. Cached
// results are served even when stale; a background sweep re-resolves old
// entries so renames and avatar changes eventually propagate.
type Resolver struct {
	client ProfileResolver
	store  IdentityStore
	cache  *identityCache
	logger logger.Logger

	reResolveInterval time.Duration
	courtesyDelay     time.Duration

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewResolver builds a resolver around the given profile source. A nil store
// disables persistence. A non-positive reResolveInterval falls back to the
// default of one day.
func NewResolver(client ProfileResolver, store IdentityStore, reResolveInterval time.Duration, log logger.Logger) *Resolver {
	if reResolveInterval <= 0 {
		reResolveInterval = defaultReResolveInterval
	}

	return &Resolver{
		client:            client,
		store:             store,
		cache:             newIdentityCache(),
		logger:            log,
		reResolveInterval: reResolveInterval,
		courtesyDelay:     sweepCourtesyDelay,
		done:              make(chan struct{}),
	}
}

// Start loads persisted identities into the cache and launches the
// re-resolve sweep.
func (r *Resolver) Start(ctx context.Context) error {
	if r.store != nil {
		identities, err := r.store.LoadAll(ctx)
		if err != nil {
			return err
		}

		for input, ident := range identities {
			r.cache.store(input, ident)
		}

		r.logger.Info().Int("identities", len(identities)).Msg("Loaded persisted identities")
	}

	r.wg.Add(1)

	go r.sweepLoop()

	return nil
}

// Stop terminates the background sweep and waits for it to exit.
func (r *Resolver) Stop(_ context.Context) error {
	r.closeOnce.Do(func() {
		close(r.done)
	})

	r.wg.Wait()

	return nil
}

// Resolve returns the canonical identity for a raw target. Identical inputs
// yield the identical canonical ID until a background sweep re-resolves the
// entry; staleness never forces a foreground fetch.
func (r *Resolver) Resolve(ctx context.Context, raw string) (*models.Identity, error) {
	normalized, err := r.client.NormalizeTarget(raw)
	if err != nil {
		return nil, err
	}

	if ident, ok := r.cache.lookup(normalized); ok {
		return &ident, nil
	}

	// A bare ID64 may already be known through another input form, such
	// as its /profiles/ URL. Serve it and remember the alias.
	if steam.IsSteamID64(normalized) {
		if ident, ok := r.cache.lookupSteamID(normalized); ok {
			r.remember(ctx, normalized, ident)
			return &ident, nil
		}
	}

	return r.refresh(ctx, normalized)
}

// refresh always goes upstream and overwrites the cached entry on success.
func (r *Resolver) refresh(ctx context.Context, normalized string) (*models.Identity, error) {
	ident, err := r.client.ResolveTarget(ctx, normalized)
	if err != nil {
		return nil, err
	}

	r.remember(ctx, normalized, *ident)

	return ident, nil
}

func (r *Resolver) remember(ctx context.Context, input string, ident models.Identity) {
	r.cache.store(input, ident)

	if r.store == nil {
		return
	}

	if err := r.store.Upsert(ctx, input, ident); err != nil {
		r.logger.Error().Err(err).Str("target", input).Msg("Failed to persist identity")
	}
}

func (r *Resolver) sweepLoop() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.reResolveInterval / 2)
	defer ticker.Stop()

	for {
		select {
		case <-r.done:
			return
		case <-ticker.C:
			r.sweep(context.Background())
		}
	}
}

// sweep re-resolves every entry older than the re-resolve interval. Failures
// keep the stale entry in place.
func (r *Resolver) sweep(ctx context.Context) {
	stale := r.cache.staleInputs(r.reResolveInterval)
	if len(stale) == 0 {
		return
	}

	r.logger.Info().Int("identities", len(stale)).Msg("Re-resolving stale identities")

	for i, input := range stale {
		if i > 0 && r.courtesyDelay > 0 {
			select {
			case <-r.done:
				return
			case <-time.After(r.courtesyDelay):
			}
		}

		if _, err := r.refresh(ctx, input); err != nil {
			r.logger.Warn().Err(err).Str("target", input).Msg("Re-resolution failed, keeping cached identity")
		}
	}
}
