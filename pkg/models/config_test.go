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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServiceConfig_ValidateAppliesDefaults(t *testing.T) {
	t.Parallel()

	cfg := &ServiceConfig{GatewayURL: "ws://127.0.0.1:6185/plugin"}
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "steamwatch", cfg.NodeID)
	assert.Equal(t, Duration(2*time.Second), cfg.TickInterval)
	assert.Equal(t, Duration(120*time.Second), cfg.FriendListInterval)
	assert.Equal(t, Duration(60*time.Second), cfg.InGameInterval)
	assert.Equal(t, Duration(300*time.Second), cfg.OnlineInterval)
	assert.Equal(t, Duration(900*time.Second), cfg.OfflineInterval)
	assert.Equal(t, Duration(24*time.Hour), cfg.IDReResolveInterval)
	assert.Equal(t, 8, cfg.MaxConcurrentFetches)
	assert.Equal(t, 5, cfg.FailureThreshold)
	assert.Equal(t, NotifyPlain, cfg.NotificationStrategy)
	assert.Equal(t, "http://127.0.0.1:2233", cfg.MemeAPIBaseURL)
	assert.Equal(t, filepath.Join("/var/lib/steamwatch", "rules.db"), cfg.RuleDBPath())
}

func TestServiceConfig_ValidateKeepsExplicitValues(t *testing.T) {
	t.Parallel()

	cfg := &ServiceConfig{
		GatewayURL:           "ws://gateway:6185/plugin",
		NodeID:               "steamwatch-eu",
		DataDir:              "/data/steamwatch",
		InGameInterval:       Duration(30 * time.Second),
		NotificationStrategy: NotifyMeme,
	}
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "steamwatch-eu", cfg.NodeID)
	assert.Equal(t, Duration(30*time.Second), cfg.InGameInterval)
	assert.Equal(t, NotifyMeme, cfg.NotificationStrategy)
	assert.Equal(t, filepath.Join("/data/steamwatch", "identities.db"), cfg.IdentityDBPath())
	assert.Equal(t, filepath.Join("/data/steamwatch", "memes"), cfg.MemeDir())
}

func TestServiceConfig_ValidateErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  ServiceConfig
	}{
		{
			name: "missing gateway url",
			cfg:  ServiceConfig{},
		},
		{
			name: "login cookie without session id",
			cfg: ServiceConfig{
				GatewayURL:       "ws://127.0.0.1:6185/plugin",
				SteamLoginSecure: "7656...%7C%7Ctoken",
			},
		},
		{
			name: "unknown strategy",
			cfg: ServiceConfig{
				GatewayURL:           "ws://127.0.0.1:6185/plugin",
				NotificationStrategy: "carrier-pigeon",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := tt.cfg
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestServiceConfig_SaveRoundTripsCookies(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "steamwatch.json")

	cfg := &ServiceConfig{
		GatewayURL:       "ws://127.0.0.1:6185/plugin",
		SteamLoginSecure: "old-login",
		SessionID:        "old-session",
		TickInterval:     Duration(2 * time.Second),
	}
	require.NoError(t, cfg.Validate())

	cfg.SteamLoginSecure = "new-login"
	cfg.SessionID = "new-session"
	require.NoError(t, cfg.Save(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var reloaded ServiceConfig
	require.NoError(t, json.Unmarshal(raw, &reloaded))

	assert.Equal(t, "new-login", reloaded.SteamLoginSecure)
	assert.Equal(t, "new-session", reloaded.SessionID)
	assert.Equal(t, Duration(2*time.Second), reloaded.TickInterval)
}
