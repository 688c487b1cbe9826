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
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/wzken/steamwatch/pkg/models"
)

// identityCache is the read-mostly lookup table behind the resolver. Entries
// never expire on read; staleness only matters to the re-resolve sweep.
type identityCache struct {
	mu        sync.RWMutex
	byInput   map[string]models.Identity
	bySteamID map[string]models.Identity
	nowFn     func() time.Time
}

func newIdentityCache() *identityCache {
	return &identityCache{
		byInput:   make(map[string]models.Identity),
		bySteamID: make(map[string]models.Identity),
		nowFn:     time.Now,
	}
}

func (c *identityCache) setNowFn(now func() time.Time) {
	if now == nil {
		return
	}

	c.mu.Lock()
	c.nowFn = now
	c.mu.Unlock()
}

func (c *identityCache) lookup(input string) (models.Identity, bool) {
	input = strings.TrimSpace(input)

	c.mu.RLock()
	defer c.mu.RUnlock()

	ident, ok := c.byInput[input]

	return ident, ok
}

func (c *identityCache) lookupSteamID(steamID string) (models.Identity, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ident, ok := c.bySteamID[steamID]

	return ident, ok
}

func (c *identityCache) store(input string, ident models.Identity) {
	input = strings.TrimSpace(input)
	if input == "" || ident.SteamID == "" {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.byInput[input] = ident
	c.bySteamID[ident.SteamID] = ident
}

// staleInputs returns the inputs whose identity was resolved longer than
// maxAge ago, oldest first.
func (c *identityCache) staleInputs(maxAge time.Duration) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	cutoff := c.nowFn().Add(-maxAge)

	stale := make([]string, 0)

	for input, ident := range c.byInput {
		if ident.ResolvedAt.Before(cutoff) {
			stale = append(stale, input)
		}
	}

	sort.Slice(stale, func(i, j int) bool {
		return c.byInput[stale[i]].ResolvedAt.Before(c.byInput[stale[j]].ResolvedAt)
	})

	return stale
}
