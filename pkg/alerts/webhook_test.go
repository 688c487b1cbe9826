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

package alerts

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupAlerter(cooldown time.Duration, setupFunc func(*WebhookAlerter)) *WebhookAlerter {
	alerter := NewWebhookAlerter(WebhookConfig{
		Enabled:  true,
		Cooldown: cooldown,
	})

	if setupFunc != nil {
		setupFunc(alerter)
	}

	return alerter
}

func TestWebhookAlerter_FirstAlertNoCooldown(t *testing.T) {
	alerter := setupAlerter(time.Minute, nil)
	err := alerter.CheckCooldown("steamwatch", "Steam Auth Expired")
	assert.NoError(t, err, "First alert should not be in cooldown")
}

func TestWebhookAlerter_RepeatAlertInCooldown(t *testing.T) {
	alerter := setupAlerter(time.Minute, func(w *WebhookAlerter) {
		key := AlertKey{NodeID: "steamwatch", Title: "Steam Auth Expired"}
		w.LastAlertTimes[key] = time.Now()
	})
	err := alerter.CheckCooldown("steamwatch", "Steam Auth Expired")
	assert.ErrorIs(t, err, ErrWebhookCooldown, "Repeat alert within cooldown should return error")
}

func TestWebhookAlerter_DifferentTitleNotAffected(t *testing.T) {
	alerter := setupAlerter(time.Minute, func(w *WebhookAlerter) {
		key := AlertKey{NodeID: "steamwatch", Title: "Steam Auth Expired"}
		w.LastAlertTimes[key] = time.Now()
	})
	err := alerter.CheckCooldown("steamwatch", "Repeated Fetch Failures")
	assert.NoError(t, err, "Different alert type should not be affected by other alert's cooldown")
}

func TestWebhookAlerter_AfterCooldownPeriod(t *testing.T) {
	alerter := setupAlerter(time.Microsecond, func(w *WebhookAlerter) {
		key := AlertKey{NodeID: "steamwatch", Title: "Steam Auth Expired"}
		w.LastAlertTimes[key] = time.Now().Add(-time.Second)
	})
	err := alerter.CheckCooldown("steamwatch", "Steam Auth Expired")
	assert.NoError(t, err, "Alert after cooldown period should not return error")
}

func TestWebhookAlerter_CooldownDisabled(t *testing.T) {
	alerter := setupAlerter(0, func(w *WebhookAlerter) {
		key := AlertKey{NodeID: "steamwatch", Title: "Steam Auth Expired"}
		w.LastAlertTimes[key] = time.Now()
	})
	err := alerter.CheckCooldown("steamwatch", "Steam Auth Expired")
	assert.NoError(t, err, "Zero cooldown disables suppression")
}

func TestWebhookAlerter_MarkResolvedClearsCooldown(t *testing.T) {
	alerter := setupAlerter(time.Hour, func(w *WebhookAlerter) {
		key := AlertKey{NodeID: "steamwatch", Title: "Steam Auth Expired"}
		w.LastAlertTimes[key] = time.Now()
	})

	alerter.MarkResolved("steamwatch", "Steam Auth Expired")

	err := alerter.CheckCooldown("steamwatch", "Steam Auth Expired")
	assert.NoError(t, err)
}

func TestWebhookAlerter_PostsJSONWithHeaders(t *testing.T) {
	t.Parallel()

	var (
		gotBody   []byte
		gotHeader string
	)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotHeader = r.Header.Get("X-Auth-Token")
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	alerter := NewWebhookAlerter(WebhookConfig{
		Enabled: true,
		URL:     server.URL,
		Headers: []Header{{Key: "X-Auth-Token", Value: "hunter2"}},
	})

	err := alerter.Alert(context.Background(), &WebhookAlert{
		Level:   Error,
		Title:   "Steam Auth Expired",
		Message: "cookies rejected",
		NodeID:  "steamwatch",
		Details: map[string]any{"status": 403},
	})
	require.NoError(t, err)

	assert.Equal(t, "hunter2", gotHeader)

	var posted WebhookAlert
	require.NoError(t, json.Unmarshal(gotBody, &posted))
	assert.Equal(t, Error, posted.Level)
	assert.Equal(t, "Steam Auth Expired", posted.Title)
	assert.Equal(t, "steamwatch", posted.NodeID)
	assert.NotEmpty(t, posted.Timestamp, "timestamp is filled in when absent")
}

func TestWebhookAlerter_TemplatePayload(t *testing.T) {
	t.Parallel()

	var gotBody []byte

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(server.Close)

	alerter := NewWebhookAlerter(WebhookConfig{
		Enabled:  true,
		URL:      server.URL,
		Template: `{"text": "{{.Title}}: {{.Message}}"}`,
	})

	err := alerter.Alert(context.Background(), &WebhookAlert{
		Level:   Warning,
		Title:   "Repeated Fetch Failures",
		Message: "5 consecutive failures",
		NodeID:  "steamwatch",
	})
	require.NoError(t, err)

	assert.JSONEq(t, `{"text": "Repeated Fetch Failures: 5 consecutive failures"}`, string(gotBody))
}

func TestWebhookAlerter_Disabled(t *testing.T) {
	t.Parallel()

	alerter := NewWebhookAlerter(WebhookConfig{Enabled: false, URL: "http://127.0.0.1:1"})

	err := alerter.Alert(context.Background(), &WebhookAlert{Title: "anything"})
	require.ErrorIs(t, err, ErrWebhookDisabled)
}

func TestWebhookAlerter_NonSuccessStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(server.Close)

	alerter := NewWebhookAlerter(WebhookConfig{Enabled: true, URL: server.URL})

	err := alerter.Alert(context.Background(), &WebhookAlert{Title: "anything", NodeID: "steamwatch"})
	require.Error(t, err)
}

func TestWebhookConfig_UnmarshalCooldown(t *testing.T) {
	t.Parallel()

	var cfg WebhookConfig
	require.NoError(t, json.Unmarshal([]byte(`{"enabled": true, "url": "http://hooks.example.com", "cooldown": "5m"}`), &cfg))
	assert.Equal(t, 5*time.Minute, cfg.Cooldown)

	var numeric WebhookConfig
	require.NoError(t, json.Unmarshal([]byte(`{"cooldown": 1000000000}`), &numeric))
	assert.Equal(t, time.Second, numeric.Cooldown)

	var bad WebhookConfig
	require.Error(t, json.Unmarshal([]byte(`{"cooldown": "soon"}`), &bad))
}
