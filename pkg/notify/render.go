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

package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/wzken/steamwatch/pkg/models"
)

// plainRenderer emits the composed message as-is. It is both the plain
// strategy and the fallback every other strategy degrades to.
type plainRenderer struct{}

// NewPlainRenderer returns the plain-text rendering strategy.
func NewPlainRenderer() Renderer {
	return plainRenderer{}
}

func (plainRenderer) Render(_ context.Context, notification *Notification) (*Asset, error) {
	return &Asset{Kind: AssetText, Text: notification.Message}, nil
}

// baseMessage builds the canonical text for a transition.
func baseMessage(transition models.Transition, rule models.Rule) string {
	name := playerName(rule)

	switch transition.Kind {
	case models.TransitionGameStart:
		return fmt.Sprintf("🟢 %s started playing 《%s》.", name, transition.To.GameName)
	case models.TransitionGameStop:
		msg := fmt.Sprintf("🔴 %s stopped playing 《%s》.", name, transition.From.GameName)
		if transition.SessionDuration > 0 {
			msg += fmt.Sprintf(" Played for: %s.", formatDuration(transition.SessionDuration))
		}

		return msg
	case models.TransitionGameSwitch:
		msg := fmt.Sprintf("🔄 %s switched from 《%s》 to 《%s》.", name, transition.From.GameName, transition.To.GameName)
		if transition.SessionDuration > 0 {
			msg += fmt.Sprintf(" Played for: %s.", formatDuration(transition.SessionDuration))
		}

		return msg
	case models.TransitionOnline:
		return fmt.Sprintf("🟢 %s is now online.", name)
	case models.TransitionOffline:
		return fmt.Sprintf("⚫️ %s went offline.", name)
	default:
		return fmt.Sprintf("%s changed presence.", name)
	}
}

func playerName(rule models.Rule) string {
	if rule.DisplayName != "" {
		return rule.DisplayName
	}

	return rule.SteamID
}

// avatarURL picks the freshest avatar for image strategies: the new
// snapshot's if present, otherwise the one remembered on the rule.
func avatarURL(notification *Notification) string {
	if notification.Transition.To.AvatarURL != "" {
		return notification.Transition.To.AvatarURL
	}

	return notification.Rule.AvatarURL
}

// formatDuration humanizes a duration the way users read play time:
// "45s", "12m", "1h02m".
func formatDuration(d time.Duration) string {
	if d < 0 {
		return "unknown"
	}

	seconds := int(d.Seconds())

	switch {
	case seconds < 60:
		return fmt.Sprintf("%ds", seconds)
	case seconds < 3600:
		return fmt.Sprintf("%dm", seconds/60)
	default:
		return fmt.Sprintf("%dh%02dm", seconds/3600, (seconds%3600)/60)
	}
}
