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

// Package models defines the shared domain types for steamwatch.
package models

import (
	"strings"
	"time"
)

// PresenceStatus is the coarse presence category parsed from Steam
// Community pages. StatusUnknown means no observation has been made yet;
// it is never parsed from upstream.
type PresenceStatus string

const (
	StatusUnknown PresenceStatus = "unknown"
	StatusOffline PresenceStatus = "offline"
	StatusOnline  PresenceStatus = "online"
	StatusInGame  PresenceStatus = "in-game"
)

// Identity is a resolved Steam account. SteamID is the canonical 64-bit
// community ID in decimal form; exactly one Identity exists per account
// regardless of how many inputs resolve to it.
type Identity struct {
	SteamID     string    `json:"steam_id"`
	DisplayName string    `json:"display_name"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	ResolvedAt  time.Time `json:"resolved_at"`
}

// PresenceState is one observed snapshot of an identity. Snapshots are
// runtime-only: they are replaced whole on each successful fetch and are
// never persisted.
type PresenceState struct {
	Status      PresenceStatus `json:"status"`
	GameName    string         `json:"game_name,omitempty"`
	DisplayName string         `json:"display_name,omitempty"`
	AvatarURL   string         `json:"avatar_url,omitempty"`
	ObservedAt  time.Time      `json:"observed_at"`
}

// InGame reports whether the snapshot observed an active game session.
func (p PresenceState) InGame() bool {
	return p.Status == StatusInGame
}

// GameEventType distinguishes session boundaries in a rule's history.
type GameEventType string

const (
	GameEventStart GameEventType = "start"
	GameEventStop  GameEventType = "stop"
)

// GameEvent is one entry in a rule's recent session history. Duration is
// set on stop events only.
type GameEvent struct {
	Type     GameEventType `json:"type"`
	Game     string        `json:"game"`
	Duration time.Duration `json:"duration,omitempty"`
	At       time.Time     `json:"at"`
}

// maxHistoryEvents caps a rule's retained session history.
const maxHistoryEvents = 10

// Rule is one monitoring subscription: watch one identity, optionally
// narrowed to one game, and deliver events to one destination. Whether the
// target is covered by the shared friend-list fetch or polled individually
// is derived from live friend-list membership at evaluation time and is
// deliberately not stored here.
type Rule struct {
	ID          string    `json:"id"`
	RawTarget   string    `json:"raw_target"`
	SteamID     string    `json:"steam_id"`
	DisplayName string    `json:"display_name"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	GameFilter  string    `json:"game_filter,omitempty"`
	Destination string    `json:"destination"`
	CreatedAt   time.Time `json:"created_at"`

	// Session bookkeeping, persisted after ticks that change it.
	History       []GameEvent   `json:"history,omitempty"`
	PlaytimeToday time.Duration `json:"playtime_today,omitempty"`
	LastResetDay  string        `json:"last_reset_day,omitempty"`
	GameStartedAt time.Time     `json:"game_started_at,omitempty"`
}

// ShortID returns the user-facing prefix of the rule ID.
func (r *Rule) ShortID() string {
	if len(r.ID) <= 8 {
		return r.ID
	}

	return r.ID[:8]
}

// MatchesGame reports whether the rule's filter matches the given game
// name. An empty filter matches everything; otherwise the match is a
// case-insensitive substring test.
func (r *Rule) MatchesGame(game string) bool {
	if r.GameFilter == "" {
		return true
	}

	if game == "" {
		return false
	}

	return strings.Contains(strings.ToLower(game), strings.ToLower(r.GameFilter))
}

// AppendEvent records a session event, keeping the newest maxHistoryEvents
// entries in chronological order.
func (r *Rule) AppendEvent(ev GameEvent) {
	r.History = append(r.History, ev)
	if len(r.History) > maxHistoryEvents {
		r.History = r.History[len(r.History)-maxHistoryEvents:]
	}
}

// ResetPlaytimeIfNewDay zeroes the daily playtime counter when the calendar
// day has rolled over since the last accumulation.
func (r *Rule) ResetPlaytimeIfNewDay(now time.Time) {
	day := now.Format("2006-01-02")
	if r.LastResetDay != day {
		r.PlaytimeToday = 0
		r.LastResetDay = day
	}
}

// TransitionKind classifies a notification-worthy presence change.
type TransitionKind string

const (
	TransitionOnline     TransitionKind = "online"
	TransitionOffline    TransitionKind = "offline"
	TransitionGameStart  TransitionKind = "game_start"
	TransitionGameStop   TransitionKind = "game_stop"
	TransitionGameSwitch TransitionKind = "game_switch"
)

// Transition is one detected presence change for a single identity. The
// scheduler emits at most one per (identity, rule) pair per tick.
type Transition struct {
	SteamID         string         `json:"steam_id"`
	Kind            TransitionKind `json:"kind"`
	From            PresenceState  `json:"from"`
	To              PresenceState  `json:"to"`
	SessionDuration time.Duration  `json:"session_duration,omitempty"`
	At              time.Time      `json:"at"`
}
