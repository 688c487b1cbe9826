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
	"time"

	"github.com/wzken/steamwatch/pkg/models"
)

// transitionNone marks an observation that is not notification-worthy.
const transitionNone models.TransitionKind = ""

// classifyTransition maps an old/new snapshot pair to the transition kind it
// represents. The very first observation of a target is a baseline and never
// produces a transition.
func classifyTransition(prev, cur models.PresenceState) models.TransitionKind {
	if prev.Status == models.StatusUnknown || prev.Status == "" {
		return transitionNone
	}

	switch {
	case prev.InGame() && cur.InGame():
		if prev.GameName != cur.GameName {
			return models.TransitionGameSwitch
		}

		return transitionNone
	case !prev.InGame() && cur.InGame():
		return models.TransitionGameStart
	case prev.InGame() && !cur.InGame():
		return models.TransitionGameStop
	case prev.Status == cur.Status:
		return transitionNone
	case cur.Status == models.StatusOnline:
		return models.TransitionOnline
	case cur.Status == models.StatusOffline:
		return models.TransitionOffline
	default:
		return transitionNone
	}
}

// ruleOutcome is the result of evaluating one observation against one rule:
// the rule copy with bookkeeping applied, whether it needs persisting, and
// the transition to dispatch when notify is set.
type ruleOutcome struct {
	rule       models.Rule
	transition models.Transition
	changed    bool
	notify     bool
}

// evaluateRule diffs a rule's previous snapshot against the new one and
// applies session bookkeeping. It is pure: the caller owns locking and the
// rule value is a copy.
func evaluateRule(rule models.Rule, prev, cur models.PresenceState, now time.Time) ruleOutcome {
	out := ruleOutcome{rule: rule}

	if cur.DisplayName != "" && cur.DisplayName != out.rule.DisplayName {
		out.rule.DisplayName = cur.DisplayName
		out.changed = true
	}

	if cur.AvatarURL != "" && cur.AvatarURL != out.rule.AvatarURL {
		out.rule.AvatarURL = cur.AvatarURL
		out.changed = true
	}

	resetDay := out.rule.LastResetDay
	out.rule.ResetPlaytimeIfNewDay(now)

	if out.rule.LastResetDay != resetDay {
		out.changed = true
	}

	kind := classifyTransition(prev, cur)

	if kind == transitionNone {
		// A baseline observation of an active session starts the session
		// clock so the eventual stop reports the observed play time.
		if isBaseline(prev) && cur.InGame() && out.rule.MatchesGame(cur.GameName) {
			out.rule.GameStartedAt = now
			out.changed = true
		}

		return out
	}

	if !out.rule.MatchesGame(prev.GameName) && !out.rule.MatchesGame(cur.GameName) {
		return out
	}

	var sessionDur time.Duration

	switch kind {
	case models.TransitionGameStart:
		out.rule.GameStartedAt = now
		out.rule.AppendEvent(models.GameEvent{Type: models.GameEventStart, Game: cur.GameName, At: now})
		out.changed = true
	case models.TransitionGameStop:
		sessionDur = endSession(&out.rule, prev.GameName, now)
		out.changed = true
	case models.TransitionGameSwitch:
		if out.rule.MatchesGame(prev.GameName) {
			sessionDur = endSession(&out.rule, prev.GameName, now)
		}

		out.rule.GameStartedAt = time.Time{}

		if out.rule.MatchesGame(cur.GameName) {
			out.rule.GameStartedAt = now
			out.rule.AppendEvent(models.GameEvent{Type: models.GameEventStart, Game: cur.GameName, At: now})
		}

		out.changed = true
	case models.TransitionOnline, models.TransitionOffline:
	}

	out.notify = true
	out.transition = models.Transition{
		SteamID:         rule.SteamID,
		Kind:            kind,
		From:            prev,
		To:              cur,
		SessionDuration: sessionDur,
		At:              now,
	}

	return out
}

// endSession accumulates the finished session into the rule's daily playtime
// and history, returning its duration. A session whose start was never
// observed has zero duration.
func endSession(rule *models.Rule, game string, now time.Time) time.Duration {
	var dur time.Duration
	if !rule.GameStartedAt.IsZero() {
		dur = now.Sub(rule.GameStartedAt)
	}

	rule.PlaytimeToday += dur
	rule.AppendEvent(models.GameEvent{Type: models.GameEventStop, Game: game, Duration: dur, At: now})
	rule.GameStartedAt = time.Time{}

	return dur
}

func isBaseline(prev models.PresenceState) bool {
	return prev.Status == models.StatusUnknown || prev.Status == ""
}
