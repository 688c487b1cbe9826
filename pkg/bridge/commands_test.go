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
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wzken/steamwatch/pkg/logger"
	"github.com/wzken/steamwatch/pkg/models"
	"github.com/wzken/steamwatch/pkg/rulestore"
	"github.com/wzken/steamwatch/pkg/steam"
)

type fakeResolver struct {
	mu     sync.Mutex
	idents map[string]*models.Identity
	err    error
	calls  []string
}

func (f *fakeResolver) Resolve(_ context.Context, raw string) (*models.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, raw)

	if f.err != nil {
		return nil, f.err
	}

	ident, ok := f.idents[raw]
	if !ok {
		return nil, steam.ErrProfileNotFound
	}

	copied := *ident

	return &copied, nil
}

type fakeRules struct {
	mu         sync.Mutex
	added      []*models.Rule
	addErr     error
	rules      []*models.Rule
	listErr    error
	removed    *models.Rule
	removeErr  error
	listedDest []string
	prefixes   []string
}

func (f *fakeRules) Add(_ context.Context, rule *models.Rule) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.addErr != nil {
		return "", f.addErr
	}

	if rule.ID == "" {
		rule.ID = fmt.Sprintf("a1b2c3d4e5f6%04d", len(f.added))
	}

	copied := *rule
	f.added = append(f.added, &copied)

	return rule.ID, nil
}

func (f *fakeRules) Remove(_ context.Context, prefix string) (*models.Rule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.prefixes = append(f.prefixes, prefix)

	if f.removeErr != nil {
		return nil, f.removeErr
	}

	return f.removed, nil
}

func (f *fakeRules) List(_ context.Context, destination string) ([]*models.Rule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.listedDest = append(f.listedDest, destination)

	if f.listErr != nil {
		return nil, f.listErr
	}

	return f.rules, nil
}

func (f *fakeRules) lastAdded(t *testing.T) *models.Rule {
	t.Helper()

	f.mu.Lock()
	defer f.mu.Unlock()

	require.NotEmpty(t, f.added)

	return f.added[len(f.added)-1]
}

type fakeCookies struct {
	mu          sync.Mutex
	loginSecure string
	sessionID   string
	calls       int
}

func (f *fakeCookies) UpdateCookies(loginSecure, sessionID string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.loginSecure = loginSecure
	f.sessionID = sessionID
	f.calls++
}

type fakeRefresher struct {
	mu     sync.Mutex
	forced int
	states map[string]models.PresenceState
}

func (f *fakeRefresher) ForceRefresh() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.forced++
}

func (f *fakeRefresher) RuleStates() map[string]models.PresenceState {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make(map[string]models.PresenceState, len(f.states))
	for id, state := range f.states {
		out[id] = state
	}

	return out
}

type routerHarness struct {
	router    *CommandRouter
	resolver  *fakeResolver
	rules     *fakeRules
	cookies   *fakeCookies
	refresher *fakeRefresher
	config    *models.ServiceConfig
}

func newRouterHarness(t *testing.T, configPath string) *routerHarness {
	t.Helper()

	h := &routerHarness{
		resolver:  &fakeResolver{idents: make(map[string]*models.Identity)},
		rules:     &fakeRules{},
		cookies:   &fakeCookies{},
		refresher: &fakeRefresher{states: make(map[string]models.PresenceState)},
		config:    &models.ServiceConfig{GatewayURL: "ws://gateway.local"},
	}

	router, err := NewCommandRouter(RouterDeps{
		Resolver:   h.resolver,
		Rules:      h.rules,
		Cookies:    h.cookies,
		Refresher:  h.refresher,
		Config:     h.config,
		ConfigPath: configPath,
	}, logger.NewTestLogger())
	require.NoError(t, err)

	router.nowFn = func() time.Time {
		return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	}

	h.router = router

	return h
}

func TestNewCommandRouter_RequiresDeps(t *testing.T) {
	valid := func() RouterDeps {
		return RouterDeps{
			Resolver:  &fakeResolver{},
			Rules:     &fakeRules{},
			Cookies:   &fakeCookies{},
			Refresher: &fakeRefresher{},
			Config:    &models.ServiceConfig{},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*RouterDeps)
		wantErr error
	}{
		{name: "valid", mutate: func(*RouterDeps) {}},
		{name: "missing resolver", mutate: func(d *RouterDeps) { d.Resolver = nil }, wantErr: errResolverRequired},
		{name: "missing rules", mutate: func(d *RouterDeps) { d.Rules = nil }, wantErr: errRuleStoreRequired},
		{name: "missing cookies", mutate: func(d *RouterDeps) { d.Cookies = nil }, wantErr: errCookieUpdaterRequired},
		{name: "missing refresher", mutate: func(d *RouterDeps) { d.Refresher = nil }, wantErr: errRefresherRequired},
		{name: "missing config", mutate: func(d *RouterDeps) { d.Config = nil }, wantErr: errConfigRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := valid()
			tt.mutate(&deps)

			router, err := NewCommandRouter(deps, logger.NewTestLogger())

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, router)

				return
			}

			require.NoError(t, err)
			assert.NotNil(t, router)
		})
	}
}

func TestRouter_Add(t *testing.T) {
	h := newRouterHarness(t, "")
	h.resolver.idents["gaben"] = &models.Identity{
		SteamID:     "76561197960287930",
		DisplayName: "Gabe",
		AvatarURL:   "https://avatars.example/gabe.jpg",
	}

	reply := h.router.Execute(context.Background(), commandPayload{
		Name:        "add",
		Args:        []string{"gaben"},
		Destination: "chat:42",
	})

	assert.Contains(t, reply, "✅")
	assert.Contains(t, reply, "Gabe")
	assert.Contains(t, reply, "any game")
	assert.Contains(t, reply, "chat:42")

	rule := h.rules.lastAdded(t)
	assert.Equal(t, "gaben", rule.RawTarget)
	assert.Equal(t, "76561197960287930", rule.SteamID)
	assert.Equal(t, "Gabe", rule.DisplayName)
	assert.Equal(t, "https://avatars.example/gabe.jpg", rule.AvatarURL)
	assert.Empty(t, rule.GameFilter)
	assert.Equal(t, "chat:42", rule.Destination)
	assert.Equal(t, "2025-06-01", rule.LastResetDay)
	assert.Contains(t, reply, rule.ShortID())
}

func TestRouter_Add_GameAndDestinationArgs(t *testing.T) {
	h := newRouterHarness(t, "")
	h.resolver.idents["gaben"] = &models.Identity{SteamID: "7656", DisplayName: "Gabe"}

	reply := h.router.Execute(context.Background(), commandPayload{
		Name:        "add",
		Args:        []string{"gaben", "Dota 2", "chat:99"},
		Destination: "chat:42",
	})

	assert.Contains(t, reply, "✅")
	assert.Contains(t, reply, "Dota 2")
	assert.Contains(t, reply, "chat:99")

	rule := h.rules.lastAdded(t)
	assert.Equal(t, "Dota 2", rule.GameFilter)
	assert.Equal(t, "chat:99", rule.Destination)
}

func TestRouter_Add_ResolveFailures(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "invalid target", err: steam.ErrInvalidTarget, want: "does not look like"},
		{name: "not found", err: steam.ErrProfileNotFound, want: "Could not resolve"},
		{name: "upstream", err: steam.ErrUpstream, want: "please retry later"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newRouterHarness(t, "")
			h.resolver.err = tt.err

			reply := h.router.Execute(context.Background(), commandPayload{
				Name:        "add",
				Args:        []string{"whoever"},
				Destination: "chat:42",
			})

			assert.Contains(t, reply, "❌")
			assert.Contains(t, reply, tt.want)
			assert.Empty(t, h.rules.added)
		})
	}
}

func TestRouter_Add_Duplicate(t *testing.T) {
	h := newRouterHarness(t, "")
	h.resolver.idents["gaben"] = &models.Identity{SteamID: "7656", DisplayName: "Gabe"}
	h.rules.addErr = fmt.Errorf("wrap: %w", rulestore.ErrDuplicateRule)

	reply := h.router.Execute(context.Background(), commandPayload{
		Name:        "add",
		Args:        []string{"gaben"},
		Destination: "chat:42",
	})

	assert.Contains(t, reply, "⚠️")
	assert.Contains(t, reply, "already monitored")
}

func TestRouter_Add_Usage(t *testing.T) {
	h := newRouterHarness(t, "")

	reply := h.router.Execute(context.Background(), commandPayload{Name: "add", Destination: "chat:42"})

	assert.Contains(t, reply, "Usage: add")
	assert.Empty(t, h.resolver.calls)
}

func TestRouter_Add_NeedsDestination(t *testing.T) {
	h := newRouterHarness(t, "")

	reply := h.router.Execute(context.Background(), commandPayload{Name: "add", Args: []string{"gaben"}})

	assert.Contains(t, reply, "❌")
	assert.Contains(t, reply, "destination")
	assert.Empty(t, h.resolver.calls)
}

func TestRouter_List(t *testing.T) {
	h := newRouterHarness(t, "")
	h.rules.rules = []*models.Rule{
		{ID: "aaaa1111bbbb", SteamID: "1", DisplayName: "Gabe", Destination: "chat:42"},
		{ID: "cccc2222dddd", SteamID: "2", DisplayName: "Alyx", GameFilter: "dota", Destination: "chat:42"},
		{ID: "eeee3333ffff", SteamID: "3", DisplayName: "Barney", Destination: "chat:42"},
	}
	h.refresher.states["aaaa1111bbbb"] = models.PresenceState{Status: models.StatusInGame, GameName: "Dota 2"}
	h.refresher.states["cccc2222dddd"] = models.PresenceState{Status: models.StatusOnline}

	reply := h.router.Execute(context.Background(), commandPayload{Name: "list", Destination: "chat:42"})

	assert.Equal(t, []string{"chat:42"}, h.rules.listedDest)
	assert.Contains(t, reply, "📚 Monitoring rules:")
	assert.Contains(t, reply, "🎮 Playing 《Dota 2》")
	assert.Contains(t, reply, "🟢 Online")
	assert.Contains(t, reply, "⚫️ Not observed yet")
	assert.Contains(t, reply, "aaaa1111")
	assert.NotContains(t, reply, "Destination:")
}

func TestRouter_List_AllDestinations(t *testing.T) {
	h := newRouterHarness(t, "")
	h.rules.rules = []*models.Rule{
		{ID: "aaaa1111bbbb", SteamID: "1", DisplayName: "Gabe", Destination: "chat:42"},
	}

	reply := h.router.Execute(context.Background(), commandPayload{
		Name:        "list",
		Args:        []string{"all"},
		Destination: "chat:42",
	})

	assert.Equal(t, []string{""}, h.rules.listedDest)
	assert.Contains(t, reply, "Destination: chat:42")
}

func TestRouter_List_Empty(t *testing.T) {
	h := newRouterHarness(t, "")

	reply := h.router.Execute(context.Background(), commandPayload{Name: "list", Destination: "chat:42"})

	assert.Equal(t, "No monitoring rules yet.", reply)
}

func TestRouter_Remove(t *testing.T) {
	h := newRouterHarness(t, "")
	h.rules.removed = &models.Rule{ID: "cafebabe0042", SteamID: "7656", DisplayName: "Gabe"}

	reply := h.router.Execute(context.Background(), commandPayload{
		Name:        "remove",
		Args:        []string{"cafe"},
		Destination: "chat:42",
	})

	assert.Equal(t, []string{"cafe"}, h.rules.prefixes)
	assert.Contains(t, reply, "✅")
	assert.Contains(t, reply, "Gabe")
	assert.Contains(t, reply, "cafebabe")
}

func TestRouter_Remove_Failures(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "not found", err: fmt.Errorf("%w: cafe", rulestore.ErrRuleNotFound), want: "No rule matches"},
		{name: "ambiguous", err: fmt.Errorf("%w: c", rulestore.ErrAmbiguousPrefix), want: "more than one rule"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newRouterHarness(t, "")
			h.rules.removeErr = tt.err

			reply := h.router.Execute(context.Background(), commandPayload{
				Name:        "remove",
				Args:        []string{"c"},
				Destination: "chat:42",
			})

			assert.Contains(t, reply, tt.want)
		})
	}
}

func TestRouter_Remove_Usage(t *testing.T) {
	h := newRouterHarness(t, "")

	reply := h.router.Execute(context.Background(), commandPayload{Name: "remove", Destination: "chat:42"})

	assert.Contains(t, reply, "Usage: remove")
}

func TestRouter_UpdateCookies(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "steamwatch.json")
	h := newRouterHarness(t, configPath)

	reply := h.router.Execute(context.Background(), commandPayload{
		Name:        "update_cookies",
		Args:        []string{"new-secure", "new-session"},
		Destination: "chat:42",
	})

	assert.Contains(t, reply, "✅")
	assert.Equal(t, 1, h.cookies.calls)
	assert.Equal(t, "new-secure", h.cookies.loginSecure)
	assert.Equal(t, "new-session", h.cookies.sessionID)
	assert.Equal(t, "new-secure", h.config.SteamLoginSecure)
	assert.Equal(t, "new-session", h.config.SessionID)

	saved, err := os.ReadFile(configPath)
	require.NoError(t, err)
	assert.Contains(t, string(saved), "new-secure")
}

func TestRouter_UpdateCookies_Usage(t *testing.T) {
	h := newRouterHarness(t, "")

	reply := h.router.Execute(context.Background(), commandPayload{
		Name:        "update_cookies",
		Args:        []string{"only-one"},
		Destination: "chat:42",
	})

	assert.Contains(t, reply, "Usage: update_cookies")
	assert.Zero(t, h.cookies.calls)
}

func TestRouter_UpdateCookies_SaveFailure(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "missing", "steamwatch.json")
	h := newRouterHarness(t, configPath)

	reply := h.router.Execute(context.Background(), commandPayload{
		Name:        "update_cookies",
		Args:        []string{"new-secure", "new-session"},
		Destination: "chat:42",
	})

	assert.Contains(t, reply, "⚠️")
	assert.Contains(t, reply, "persisting them failed")
	assert.Equal(t, 1, h.cookies.calls)
}

func TestRouter_UpdateCookies_NoConfigPath(t *testing.T) {
	h := newRouterHarness(t, "")

	reply := h.router.Execute(context.Background(), commandPayload{
		Name:        "update_cookies",
		Args:        []string{"new-secure", "new-session"},
		Destination: "chat:42",
	})

	assert.Contains(t, reply, "⚠️")
	assert.Contains(t, reply, "no config path")
	assert.Equal(t, 1, h.cookies.calls)
}

func TestRouter_ForceRefresh(t *testing.T) {
	h := newRouterHarness(t, "")

	reply := h.router.Execute(context.Background(), commandPayload{Name: "force_refresh", Destination: "chat:42"})

	assert.Contains(t, reply, "✅")
	assert.Equal(t, 1, h.refresher.forced)
}

func TestRouter_UnknownCommand(t *testing.T) {
	h := newRouterHarness(t, "")

	reply := h.router.Execute(context.Background(), commandPayload{Name: "bogus", Destination: "chat:42"})

	assert.Contains(t, reply, "❓")
	assert.Contains(t, reply, "Commands:")
}

func TestRouter_Help(t *testing.T) {
	h := newRouterHarness(t, "")

	reply := h.router.Execute(context.Background(), commandPayload{Name: "help", Destination: "chat:42"})

	assert.Equal(t, helpText, reply)
}
