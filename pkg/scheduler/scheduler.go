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

// Package scheduler drives the monitoring loop: it decides when each rule's
// next refresh is due, runs the fetches, detects presence transitions, and
// hands notifications to the dispatcher. Rules whose target is a member of
// the watched friend list share one fetch per cycle; everything else is
// polled individually at an interval adapted to the last observed status.
package scheduler

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wzken/steamwatch/pkg/alerts"
	"github.com/wzken/steamwatch/pkg/logger"
	"github.com/wzken/steamwatch/pkg/models"
	"github.com/wzken/steamwatch/pkg/steam"
)

const (
	stopTimeout = 10 * time.Second

	// authBackoffFactor stretches the friend-list interval after Steam
	// rejects the session cookies. Polling harder cannot fix expired
	// credentials.
	authBackoffFactor = 5
)

// Dependencies carries the scheduler's collaborators.
type Dependencies struct {
	Fetcher    PresenceFetcher
	Rules      RuleSource
	Dispatcher Dispatcher
	Alerter    Escalator // optional
	Clock      Clock     // nil uses the real clock
}

// Scheduler owns the due-queue and all runtime presence state. Presence is
// never persisted: after a restart every rule re-baselines from unknown.
type Scheduler struct {
	config     Config
	fetcher    PresenceFetcher
	rules      RuleSource
	dispatcher Dispatcher
	alerter    Escalator
	clock      Clock
	logger     logger.Logger

	mu        sync.Mutex
	queue     dueQueue
	units     map[string]*unit
	states    map[string]models.PresenceState
	friendIDs map[string]struct{}

	ticker    Ticker
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
	startWg   sync.WaitGroup
}

// ruleObservation pairs one rule with the snapshot a fetch produced for its
// target.
type ruleObservation struct {
	rule  models.Rule
	state models.PresenceState
}

// New creates a new scheduler instance.
func New(config *Config, deps Dependencies, log logger.Logger) (*Scheduler, error) {
	if deps.Fetcher == nil {
		return nil, errFetcherRequired
	}

	if deps.Rules == nil {
		return nil, errRuleSourceRequired
	}

	if deps.Dispatcher == nil {
		return nil, errDispatcherRequired
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	clock := deps.Clock
	if clock == nil {
		clock = realClock{}
	}

	return &Scheduler{
		config:     *config,
		fetcher:    deps.Fetcher,
		rules:      deps.Rules,
		dispatcher: deps.Dispatcher,
		alerter:    deps.Alerter,
		clock:      clock,
		logger:     log,
		units:      make(map[string]*unit),
		states:     make(map[string]models.PresenceState),
		friendIDs:  make(map[string]struct{}),
		done:       make(chan struct{}),
	}, nil
}

// Start implements the lifecycle.Service interface.
func (s *Scheduler) Start(ctx context.Context) error {
	interval := time.Duration(s.config.TickInterval)
	s.ticker = s.clock.Ticker(interval)

	defer func() {
		if s.ticker != nil {
			s.ticker.Stop()
		}
	}()

	s.logger.Info().
		Dur("tick_interval", interval).
		Bool("watch_friends", s.config.WatchFriends).
		Msg("Starting monitoring scheduler")

	s.startWg.Add(1)
	defer s.startWg.Done()

	s.wg.Add(1)
	defer s.wg.Done()

	if err := s.processTick(ctx); err != nil {
		s.logger.Error().Err(err).Msg("Error during initial tick")
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.done:
			return nil
		case <-s.ticker.Chan():
			s.wg.Add(1)

			go func() {
				defer s.wg.Done()

				if err := s.processTick(ctx); err != nil {
					s.logger.Error().Err(err).Msg("Error during tick")
				}
			}()
		}
	}
}

// Stop implements the lifecycle.Service interface.
func (s *Scheduler) Stop(ctx context.Context) error {
	_, cancel := context.WithTimeout(ctx, stopTimeout)
	defer cancel()

	s.closeOnce.Do(func() {
		close(s.done)
	})

	s.startWg.Wait()
	s.wg.Wait()

	return nil
}

// ForceRefresh makes every idle unit due immediately; the next tick services
// them. In-flight fetches are never interrupted and reschedule normally when
// they complete.
func (s *Scheduler) ForceRefresh() {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.queue {
		u.nextDueAt = now
	}

	heap.Init(&s.queue)

	s.logger.Info().Int("units", s.queue.Len()).Msg("Force refresh requested")
}

// RuleStates returns the last observed presence snapshot per rule ID. Rules
// whose target has not been observed yet are absent.
func (s *Scheduler) RuleStates() map[string]models.PresenceState {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]models.PresenceState, len(s.states))
	for id, st := range s.states {
		out[id] = st
	}

	return out
}

// processTick runs one scheduling pass: reconcile the unit set against the
// rule store, pop everything due, and fetch with bounded concurrency. The
// call returns when all fetches launched by this pass have been applied.
func (s *Scheduler) processTick(ctx context.Context) error {
	rules, err := s.rules.List(ctx, "")
	if err != nil {
		return fmt.Errorf("list rules: %w", err)
	}

	now := s.clock.Now()
	s.syncUnits(rules, now)

	due := s.collectDue(now)
	if len(due) == 0 {
		return nil
	}

	rulesByID := make(map[string]*models.Rule, len(rules))
	for _, r := range rules {
		rulesByID[r.ID] = r
	}

	var g errgroup.Group

	g.SetLimit(s.config.MaxConcurrentFetches)

	for _, u := range due {
		u := u

		if u.kind == unitKindFriendList {
			g.Go(func() error {
				s.refreshFriends(ctx, u, rules)
				return nil
			})

			continue
		}

		rule, ok := rulesByID[u.key]
		if !ok {
			s.dropUnit(u)
			continue
		}

		r := *rule

		g.Go(func() error {
			s.refreshIndividual(ctx, u, r)
			return nil
		})
	}

	_ = g.Wait()

	return nil
}

// syncUnits reconciles the unit set with the current rules at a tick
// boundary. Whether a rule rides the shared friend-list unit is decided here
// from the most recent membership snapshot, never mid-fetch. Units with an
// in-flight fetch are left alone until they complete.
func (s *Scheduler) syncUnits(rules []*models.Rule, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keep := make(map[string]struct{}, len(rules)+1)

	for _, r := range rules {
		if s.config.WatchFriends && s.isFriendLocked(r.SteamID) {
			continue
		}

		keep[r.ID] = struct{}{}

		if _, ok := s.units[r.ID]; ok {
			continue
		}

		u := &unit{kind: unitKindIndividual, key: r.ID, steamID: r.SteamID, nextDueAt: now}
		s.units[r.ID] = u
		heap.Push(&s.queue, u)

		s.logger.Debug().Str("rule_id", r.ID).Str("steam_id", r.SteamID).Msg("Polling rule individually")
	}

	// The shared unit runs while any rule exists: membership can only be
	// learned from the friends page itself.
	if s.config.WatchFriends && len(rules) > 0 {
		keep[friendListUnitKey] = struct{}{}

		if _, ok := s.units[friendListUnitKey]; !ok {
			u := &unit{kind: unitKindFriendList, key: friendListUnitKey, nextDueAt: now}
			s.units[friendListUnitKey] = u
			heap.Push(&s.queue, u)
		}
	}

	for key, u := range s.units {
		if _, ok := keep[key]; ok || u.fetching {
			continue
		}

		heap.Remove(&s.queue, u.index)
		delete(s.units, key)
	}

	ids := make(map[string]struct{}, len(rules))
	for _, r := range rules {
		ids[r.ID] = struct{}{}
	}

	for id := range s.states {
		if _, ok := ids[id]; !ok {
			delete(s.states, id)
		}
	}
}

// collectDue pops every unit whose due time has arrived and marks it
// in-flight. A popped unit stays out of the queue until its fetch result is
// applied, so no unit ever has two overlapping fetches.
func (s *Scheduler) collectDue(now time.Time) []*unit {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []*unit

	for s.queue.Len() > 0 {
		top := s.queue[0]
		if top.nextDueAt.After(now) {
			break
		}

		heap.Pop(&s.queue)
		top.fetching = true
		due = append(due, top)
	}

	return due
}

func (s *Scheduler) refreshIndividual(ctx context.Context, u *unit, rule models.Rule) {
	state, err := s.fetcher.FetchPlayerStatus(ctx, rule.SteamID)
	if err != nil {
		s.handleFetchFailure(ctx, u, err)
		return
	}

	s.applyObservations(ctx, u, []ruleObservation{{rule: rule, state: *state}})
}

func (s *Scheduler) refreshFriends(ctx context.Context, u *unit, rules []*models.Rule) {
	snaps, err := s.fetcher.FetchFriendPresences(ctx)

	switch {
	case errors.Is(err, steam.ErrNotModified):
		s.logger.Debug().Msg("Friends page unchanged since last fetch")
		s.applyObservations(ctx, u, nil)

		return
	case err != nil:
		s.handleFetchFailure(ctx, u, err)
		return
	}

	obs := make([]ruleObservation, 0, len(rules))

	s.mu.Lock()

	s.friendIDs = make(map[string]struct{}, len(snaps))
	for id := range snaps {
		s.friendIDs[id] = struct{}{}
	}

	for _, r := range rules {
		// A rule with a live individual unit stays that unit's
		// responsibility until the next sync moves it over.
		if _, tracked := s.units[r.ID]; tracked {
			continue
		}

		if snap, ok := snaps[r.SteamID]; ok {
			obs = append(obs, ruleObservation{rule: *r, state: snap})
		}
	}

	s.mu.Unlock()

	s.applyObservations(ctx, u, obs)
}

// applyObservations is the single write path for successful fetches: it
// diffs each covered rule against its previous snapshot, requeues the unit,
// and then persists bookkeeping and dispatches notifications outside the
// lock. Each qualifying transition dispatches exactly once per rule.
func (s *Scheduler) applyObservations(ctx context.Context, u *unit, observations []ruleObservation) {
	now := s.clock.Now()
	outcomes := make([]ruleOutcome, 0, len(observations))

	s.mu.Lock()

	for _, ob := range observations {
		prev, ok := s.states[ob.rule.ID]
		if !ok {
			prev = models.PresenceState{Status: models.StatusUnknown}
		}

		s.states[ob.rule.ID] = ob.state

		out := evaluateRule(ob.rule, prev, ob.state, now)
		if out.changed || out.notify {
			outcomes = append(outcomes, out)
		}
	}

	u.failures = 0
	u.fetching = false
	u.nextDueAt = now.Add(s.unitInterval(u, observations))
	heap.Push(&s.queue, u)

	s.mu.Unlock()

	for i := range outcomes {
		o := &outcomes[i]

		if o.changed {
			if err := s.rules.Update(ctx, &o.rule); err != nil {
				s.logger.Error().Err(err).Str("rule_id", o.rule.ID).Msg("Failed to persist rule bookkeeping")
			}
		}

		if !o.notify {
			continue
		}

		s.logger.Info().
			Str("rule_id", o.rule.ID).
			Str("steam_id", o.rule.SteamID).
			Str("kind", string(o.transition.Kind)).
			Str("game", o.transition.To.GameName).
			Msg("Presence transition detected")

		if err := s.dispatcher.Dispatch(ctx, o.transition, o.rule); err != nil {
			s.logger.Warn().Err(err).Str("rule_id", o.rule.ID).Msg("Failed to dispatch notification")
		}
	}
}

// handleFetchFailure keeps the last known state, requeues the unit at the
// previous status's interval (a failure never tightens polling), and
// escalates when failures persist. Auth expiry escalates immediately and
// backs the unit off hard; retrying faster cannot help it.
func (s *Scheduler) handleFetchFailure(ctx context.Context, u *unit, err error) {
	now := s.clock.Now()

	if errors.Is(err, steam.ErrAuthExpired) {
		s.logger.Error().Err(err).Str("unit", u.key).Msg("Steam session rejected")

		s.escalate(ctx, alerts.Error, "Steam Session Expired",
			"Steam rejected the configured session cookies. Refresh them with the update_cookies command.",
			map[string]any{"unit": u.key})

		s.mu.Lock()
		u.fetching = false
		u.nextDueAt = now.Add(time.Duration(s.config.FriendListInterval) * authBackoffFactor)
		heap.Push(&s.queue, u)
		s.mu.Unlock()

		return
	}

	s.mu.Lock()

	u.failures++
	failures := u.failures

	escalateNow := failures >= s.config.FailureThreshold
	if escalateNow {
		u.failures = 0
	}

	interval := time.Duration(s.config.FriendListInterval)
	if u.kind == unitKindIndividual {
		status := models.StatusUnknown
		if st, ok := s.states[u.key]; ok {
			status = st.Status
		}

		interval = s.config.intervalFor(status)
	}

	u.fetching = false
	u.nextDueAt = now.Add(interval)
	heap.Push(&s.queue, u)

	s.mu.Unlock()

	s.logger.Warn().Err(err).
		Str("unit", u.key).
		Int("consecutive_failures", failures).
		Msg("Fetch failed, keeping last known state")

	if escalateNow {
		s.escalate(ctx, alerts.Warning, "Repeated Fetch Failures",
			fmt.Sprintf("%d consecutive fetch failures for unit %s. Last error: %v", failures, u.key, err),
			map[string]any{"unit": u.key, "failures": failures})
	}
}

func (s *Scheduler) dropUnit(u *unit) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u.fetching = false
	delete(s.units, u.key)
}

func (s *Scheduler) unitInterval(u *unit, observations []ruleObservation) time.Duration {
	if u.kind == unitKindFriendList {
		return time.Duration(s.config.FriendListInterval)
	}

	status := models.StatusUnknown
	if len(observations) > 0 {
		status = observations[len(observations)-1].state.Status
	}

	return s.config.intervalFor(status)
}

func (s *Scheduler) isFriendLocked(steamID string) bool {
	_, ok := s.friendIDs[steamID]
	return ok
}

func (s *Scheduler) escalate(ctx context.Context, level alerts.AlertLevel, title, message string, details map[string]any) {
	if s.alerter == nil {
		return
	}

	s.alerter.Escalate(ctx, level, title, message, details)
}
