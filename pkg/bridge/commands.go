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
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wzken/steamwatch/pkg/logger"
	"github.com/wzken/steamwatch/pkg/models"
	"github.com/wzken/steamwatch/pkg/rulestore"
	"github.com/wzken/steamwatch/pkg/steam"
)

const helpText = `Commands:
  add <profile> [game] [destination] - monitor a player, optionally a single game
  list [all] - show rules for this chat, or every chat
  remove <id-prefix> - delete a rule by ID prefix
  update_cookies <steamLoginSecure> <sessionID> - refresh the Steam session cookies
  force_refresh - poll every monitored target now`

// RouterDeps collects the collaborators commands act on.
type RouterDeps struct {
	Resolver  TargetResolver
	Rules     RuleStore
	Cookies   CookieUpdater
	Refresher Refresher

	// Config and ConfigPath let update_cookies persist refreshed cookies
	// across restarts.
	Config     *models.ServiceConfig
	ConfigPath string
}

// CommandRouter turns inbound gateway commands into store and scheduler
// operations and renders the reply text.
type CommandRouter struct {
	resolver   TargetResolver
	rules      RuleStore
	cookies    CookieUpdater
	refresher  Refresher
	config     *models.ServiceConfig
	configPath string
	logger     logger.Logger
	nowFn      func() time.Time
}

// NewCommandRouter validates the dependencies and builds a router.
func NewCommandRouter(deps RouterDeps, log logger.Logger) (*CommandRouter, error) {
	if deps.Resolver == nil {
		return nil, errResolverRequired
	}

	if deps.Rules == nil {
		return nil, errRuleStoreRequired
	}

	if deps.Cookies == nil {
		return nil, errCookieUpdaterRequired
	}

	if deps.Refresher == nil {
		return nil, errRefresherRequired
	}

	if deps.Config == nil {
		return nil, errConfigRequired
	}

	return &CommandRouter{
		resolver:   deps.Resolver,
		rules:      deps.Rules,
		cookies:    deps.Cookies,
		refresher:  deps.Refresher,
		config:     deps.Config,
		configPath: deps.ConfigPath,
		logger:     log,
		nowFn:      time.Now,
	}, nil
}

// Execute runs one command and returns the reply text for the originating
// destination. Failures are reported in the reply, never as an error.
func (r *CommandRouter) Execute(ctx context.Context, cmd commandPayload) string {
	switch strings.ToLower(strings.TrimSpace(cmd.Name)) {
	case "add":
		return r.add(ctx, cmd)
	case "list":
		return r.list(ctx, cmd)
	case "remove":
		return r.remove(ctx, cmd)
	case "update_cookies":
		return r.updateCookies(cmd)
	case "force_refresh":
		return r.forceRefresh()
	case "help", "":
		return helpText
	default:
		return fmt.Sprintf("❓ Unknown command %q.\n%s", cmd.Name, helpText)
	}
}

func (r *CommandRouter) add(ctx context.Context, cmd commandPayload) string {
	if len(cmd.Args) == 0 {
		return "❌ Usage: add <profile> [game] [destination]"
	}

	target := cmd.Args[0]

	var gameFilter string
	if len(cmd.Args) >= 2 {
		gameFilter = cmd.Args[1]
	}

	destination := cmd.Destination
	if len(cmd.Args) >= 3 && cmd.Args[2] != "" {
		destination = cmd.Args[2]
	}

	if destination == "" {
		return "❌ This command needs a destination to deliver notifications to."
	}

	ident, err := r.resolver.Resolve(ctx, target)
	if err != nil {
		return r.resolveFailure(target, err)
	}

	now := r.nowFn()
	rule := &models.Rule{
		RawTarget:    target,
		SteamID:      ident.SteamID,
		DisplayName:  ident.DisplayName,
		AvatarURL:    ident.AvatarURL,
		GameFilter:   gameFilter,
		Destination:  destination,
		LastResetDay: now.Format("2006-01-02"),
	}

	if _, err := r.rules.Add(ctx, rule); err != nil {
		if errors.Is(err, rulestore.ErrDuplicateRule) {
			return fmt.Sprintf("⚠️ %s is already monitored in this destination.", playerLabel(rule))
		}

		r.logger.Error().Err(err).Str("steam_id", ident.SteamID).Msg("Failed to store rule")

		return "❌ Failed to save the rule, please retry."
	}

	r.logger.Info().
		Str("rule_id", rule.ID).
		Str("steam_id", rule.SteamID).
		Str("destination", rule.Destination).
		Msg("Monitoring rule added")

	return fmt.Sprintf("✅ Monitoring rule added.\nID: %s\nPlayer: %s (%s)\nGame: %s\nDestination: %s",
		rule.ShortID(), playerLabel(rule), rule.SteamID, gameLabel(rule.GameFilter), rule.Destination)
}

func (r *CommandRouter) list(ctx context.Context, cmd commandPayload) string {
	destination := cmd.Destination
	if len(cmd.Args) >= 1 && strings.EqualFold(cmd.Args[0], "all") {
		destination = ""
	}

	rules, err := r.rules.List(ctx, destination)
	if err != nil {
		r.logger.Error().Err(err).Msg("Failed to list rules")
		return "❌ Failed to load the rules, please retry."
	}

	if len(rules) == 0 {
		return "No monitoring rules yet."
	}

	states := r.refresher.RuleStates()

	var b strings.Builder

	b.WriteString("📚 Monitoring rules:")

	for _, rule := range rules {
		b.WriteString(fmt.Sprintf("\n\n%s  %s (%s)\nGame: %s\nStatus: %s",
			rule.ShortID(), playerLabel(rule), rule.SteamID,
			gameLabel(rule.GameFilter), statusLabel(states[rule.ID])))

		if destination == "" {
			b.WriteString("\nDestination: " + rule.Destination)
		}
	}

	return b.String()
}

func (r *CommandRouter) remove(ctx context.Context, cmd commandPayload) string {
	if len(cmd.Args) == 0 {
		return "❌ Usage: remove <id-prefix>"
	}

	prefix := cmd.Args[0]

	rule, err := r.rules.Remove(ctx, prefix)
	if err != nil {
		switch {
		case errors.Is(err, rulestore.ErrRuleNotFound):
			return fmt.Sprintf("❌ No rule matches prefix %q.", prefix)
		case errors.Is(err, rulestore.ErrAmbiguousPrefix):
			return fmt.Sprintf("⚠️ Prefix %q matches more than one rule, add more characters.", prefix)
		default:
			r.logger.Error().Err(err).Str("prefix", prefix).Msg("Failed to remove rule")
			return "❌ Failed to remove the rule, please retry."
		}
	}

	r.logger.Info().Str("rule_id", rule.ID).Str("steam_id", rule.SteamID).Msg("Monitoring rule removed")

	return fmt.Sprintf("✅ Removed monitoring for %s (%s).", playerLabel(rule), rule.ShortID())
}

func (r *CommandRouter) updateCookies(cmd commandPayload) string {
	if len(cmd.Args) < 2 {
		return "❌ Usage: update_cookies <steamLoginSecure> <sessionID>"
	}

	loginSecure, sessionID := cmd.Args[0], cmd.Args[1]

	r.cookies.UpdateCookies(loginSecure, sessionID)

	r.config.SteamLoginSecure = loginSecure
	r.config.SessionID = sessionID

	if r.configPath == "" {
		return "⚠️ Cookies updated for this session, but no config path is set so they will be lost on restart."
	}

	if err := r.config.Save(r.configPath); err != nil {
		r.logger.Error().Err(err).Str("path", r.configPath).Msg("Failed to persist refreshed cookies")
		return "⚠️ Cookies updated for this session, but persisting them failed. They will be lost on restart."
	}

	r.logger.Info().Msg("Steam session cookies updated")

	return "✅ Cookies updated and saved."
}

func (r *CommandRouter) forceRefresh() string {
	r.refresher.ForceRefresh()

	return "✅ Refresh scheduled. Every monitored target will be polled within seconds."
}

// resolveFailure maps resolver errors to user-facing replies.
func (r *CommandRouter) resolveFailure(target string, err error) string {
	switch {
	case errors.Is(err, steam.ErrInvalidTarget):
		return fmt.Sprintf("❌ %q does not look like a profile URL, vanity name, or SteamID64.", target)
	case errors.Is(err, steam.ErrProfileNotFound):
		return fmt.Sprintf("❌ Could not resolve Steam profile %q.", target)
	default:
		r.logger.Warn().Err(err).Str("target", target).Msg("Target resolution failed")
		return fmt.Sprintf("❌ Failed to resolve %q, please retry later.", target)
	}
}

func playerLabel(rule *models.Rule) string {
	if rule.DisplayName != "" {
		return rule.DisplayName
	}

	return rule.SteamID
}

func gameLabel(filter string) string {
	if filter == "" {
		return "any game"
	}

	return filter
}

// statusLabel renders the live presence of a rule for the list command.
func statusLabel(state models.PresenceState) string {
	switch state.Status {
	case models.StatusInGame:
		return fmt.Sprintf("🎮 Playing 《%s》", state.GameName)
	case models.StatusOnline:
		return "🟢 Online"
	case models.StatusOffline:
		return "⚫️ Offline"
	default:
		return "⚫️ Not observed yet"
	}
}
