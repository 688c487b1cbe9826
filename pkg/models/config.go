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

package models

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/wzken/steamwatch/pkg/alerts"
	"github.com/wzken/steamwatch/pkg/logger"
)

// Notification rendering strategies.
const (
	NotifyPlain = "plain"
	NotifyCard  = "card"
	NotifyMeme  = "meme"
)

const (
	defaultNodeID  = "steamwatch"
	defaultDataDir = "/var/lib/steamwatch"

	defaultTickInterval         = 2 * time.Second
	defaultFriendListInterval   = 120 * time.Second
	defaultInGameInterval       = 60 * time.Second
	defaultOnlineInterval       = 300 * time.Second
	defaultOfflineInterval      = 900 * time.Second
	defaultIDReResolveInterval  = 24 * time.Hour
	defaultMaxConcurrentFetches = 8
	defaultFailureThreshold     = 5

	defaultMemeAPIBaseURL = "http://127.0.0.1:2233"
)

var (
	errGatewayURLRequired   = fmt.Errorf("gateway_url is required")
	errCookiePairIncomplete = fmt.Errorf("steam_login_secure and session_id must be set together")
	errUnknownStrategy      = fmt.Errorf("unknown notification_strategy")
)

// LLMConfig configures the optional model-written comment appended to
// notifications. An empty base URL talks to the public OpenAI endpoint.
type LLMConfig struct {
	Enabled bool   `json:"enabled"`
	BaseURL string `json:"base_url,omitempty"`
	APIKey  string `json:"api_key,omitempty"`
	Model   string `json:"model,omitempty"`
}

// ServiceConfig represents the configuration for the steamwatch service.
type ServiceConfig struct {
	NodeID string `json:"node_id,omitempty"`

	// Steam Community access.
	ListenTargetURL  string `json:"listen_target_url,omitempty"`
	ProxyURL         string `json:"proxy_url,omitempty"`
	SteamLoginSecure string `json:"steam_login_secure,omitempty"`
	SessionID        string `json:"session_id,omitempty"`

	// Scheduling cadence. Intervals left at zero take the defaults applied
	// by Validate.
	TickInterval         Duration `json:"tick_interval,omitempty"`
	FriendListInterval   Duration `json:"friend_list_check_interval,omitempty"`
	InGameInterval       Duration `json:"in_game_interval,omitempty"`
	OnlineInterval       Duration `json:"online_interval,omitempty"`
	OfflineInterval      Duration `json:"offline_interval,omitempty"`
	IDReResolveInterval  Duration `json:"id_re_resolve_interval,omitempty"`
	MaxConcurrentFetches int      `json:"max_concurrent_fetches,omitempty"`
	FailureThreshold     int      `json:"failure_threshold,omitempty"`

	// Notification rendering.
	NotificationStrategy string     `json:"notification_strategy,omitempty"`
	MemeAPIBaseURL       string     `json:"meme_api_base_url,omitempty"`
	LLM                  *LLMConfig `json:"llm,omitempty"`

	// Delivery and operator alerting.
	GatewayURL        string                 `json:"gateway_url"`
	AdminDestinations []string               `json:"admin_destinations,omitempty"`
	Webhooks          []alerts.WebhookConfig `json:"webhooks,omitempty"`

	DataDir string         `json:"data_dir,omitempty"`
	Logging *logger.Config `json:"logging,omitempty"`
}

// Validate applies defaults and rejects invalid combinations. It satisfies
// the config loader's Validator interface.
func (c *ServiceConfig) Validate() error {
	if c.GatewayURL == "" {
		return errGatewayURLRequired
	}

	if (c.SteamLoginSecure == "") != (c.SessionID == "") {
		return errCookiePairIncomplete
	}

	if c.NodeID == "" {
		c.NodeID = defaultNodeID
	}

	if c.DataDir == "" {
		c.DataDir = defaultDataDir
	}

	if c.TickInterval <= 0 {
		c.TickInterval = Duration(defaultTickInterval)
	}

	if c.FriendListInterval <= 0 {
		c.FriendListInterval = Duration(defaultFriendListInterval)
	}

	if c.InGameInterval <= 0 {
		c.InGameInterval = Duration(defaultInGameInterval)
	}

	if c.OnlineInterval <= 0 {
		c.OnlineInterval = Duration(defaultOnlineInterval)
	}

	if c.OfflineInterval <= 0 {
		c.OfflineInterval = Duration(defaultOfflineInterval)
	}

	if c.IDReResolveInterval <= 0 {
		c.IDReResolveInterval = Duration(defaultIDReResolveInterval)
	}

	if c.MaxConcurrentFetches <= 0 {
		c.MaxConcurrentFetches = defaultMaxConcurrentFetches
	}

	if c.FailureThreshold <= 0 {
		c.FailureThreshold = defaultFailureThreshold
	}

	switch c.NotificationStrategy {
	case "":
		c.NotificationStrategy = NotifyPlain
	case NotifyPlain, NotifyCard, NotifyMeme:
	default:
		return fmt.Errorf("%w: %q", errUnknownStrategy, c.NotificationStrategy)
	}

	if c.MemeAPIBaseURL == "" {
		c.MemeAPIBaseURL = defaultMemeAPIBaseURL
	}

	return nil
}

// IdentityDBPath is the sqlite file backing the identity cache.
func (c *ServiceConfig) IdentityDBPath() string {
	return filepath.Join(c.DataDir, "identities.db")
}

// RuleDBPath is the sqlite file backing the rule store.
func (c *ServiceConfig) RuleDBPath() string {
	return filepath.Join(c.DataDir, "rules.db")
}

// MemeDir is the directory generated meme images are written to.
func (c *ServiceConfig) MemeDir() string {
	return filepath.Join(c.DataDir, "memes")
}

// Save writes the configuration back to path. The gateway's update_cookies
// command uses this to persist refreshed session cookies across restarts.
// The file is written 0600 because it carries those cookies.
func (c *ServiceConfig) Save(path string) error {
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}
