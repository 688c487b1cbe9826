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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"text/template"
	"time"
)

const webhookTimeout = 10 * time.Second

// Header is a custom HTTP header attached to webhook posts.
type Header struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// WebhookConfig configures one alert webhook.
type WebhookConfig struct {
	Enabled  bool          `json:"enabled"`
	URL      string        `json:"url"`
	Cooldown time.Duration `json:"cooldown"`
	Template string        `json:"template,omitempty"`
	Headers  []Header      `json:"headers,omitempty"`
}

// UnmarshalJSON accepts the cooldown either as a duration string ("5m") or
// as nanoseconds.
func (w *WebhookConfig) UnmarshalJSON(data []byte) error {
	type alias WebhookConfig

	aux := &struct {
		Cooldown any `json:"cooldown"`
		*alias
	}{alias: (*alias)(w)}

	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}

	switch value := aux.Cooldown.(type) {
	case nil:
	case float64:
		w.Cooldown = time.Duration(value)
	case string:
		cooldown, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid cooldown: %w", err)
		}

		w.Cooldown = cooldown
	default:
		return fmt.Errorf("%w: cooldown", errInvalidConfigValue)
	}

	return nil
}

// AlertKey identifies an alert stream for cooldown tracking.
type AlertKey struct {
	NodeID string
	Title  string
}

// WebhookAlerter posts alerts to a single webhook URL, suppressing repeats
// of the same alert within the cooldown window.
type WebhookAlerter struct {
	config WebhookConfig
	client *http.Client

	mu             sync.Mutex
	LastAlertTimes map[AlertKey]time.Time
	nowFn          func() time.Time

	tmpl    *template.Template
	tmplErr error
}

var _ AlertService = (*WebhookAlerter)(nil)

// NewWebhookAlerter creates a new webhook alerter from config.
func NewWebhookAlerter(config WebhookConfig) *WebhookAlerter {
	w := &WebhookAlerter{
		config:         config,
		client:         &http.Client{Timeout: webhookTimeout},
		LastAlertTimes: make(map[AlertKey]time.Time),
		nowFn:          time.Now,
	}

	if config.Template != "" {
		w.tmpl, w.tmplErr = template.New("webhook").Parse(config.Template)
	}

	return w
}

var (
	errWebhookStatus      = fmt.Errorf("webhook returned non-success status")
	errInvalidConfigValue = fmt.Errorf("invalid webhook config value")
)

// Alert posts the alert unless an identical one fired within the cooldown
// window.
func (w *WebhookAlerter) Alert(ctx context.Context, alert *WebhookAlert) error {
	if !w.config.Enabled {
		return ErrWebhookDisabled
	}

	if err := w.CheckCooldown(alert.NodeID, alert.Title); err != nil {
		return err
	}

	if alert.Timestamp == "" {
		alert.Timestamp = w.nowFn().UTC().Format(time.RFC3339)
	}

	payload, err := w.buildPayload(alert)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.config.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	for _, h := range w.config.Headers {
		req.Header.Set(h.Key, h.Value)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook alert: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("%w: %d", errWebhookStatus, resp.StatusCode)
	}

	return nil
}

// CheckCooldown reports whether the alert stream is inside its cooldown
// window and records the attempt when it is not.
func (w *WebhookAlerter) CheckCooldown(nodeID, title string) error {
	if w.config.Cooldown <= 0 {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	key := AlertKey{NodeID: nodeID, Title: title}

	if last, ok := w.LastAlertTimes[key]; ok {
		if w.nowFn().Sub(last) < w.config.Cooldown {
			return fmt.Errorf("%w: %s", ErrWebhookCooldown, title)
		}
	}

	w.LastAlertTimes[key] = w.nowFn()

	return nil
}

// MarkResolved clears the cooldown for an alert stream so the next
// occurrence fires immediately.
func (w *WebhookAlerter) MarkResolved(nodeID, title string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	delete(w.LastAlertTimes, AlertKey{NodeID: nodeID, Title: title})
}

func (w *WebhookAlerter) buildPayload(alert *WebhookAlert) ([]byte, error) {
	if w.tmplErr != nil {
		return nil, fmt.Errorf("parse webhook template: %w", w.tmplErr)
	}

	if w.tmpl == nil {
		payload, err := json.Marshal(alert)
		if err != nil {
			return nil, fmt.Errorf("marshal webhook alert: %w", err)
		}

		return payload, nil
	}

	var buf bytes.Buffer
	if err := w.tmpl.Execute(&buf, alert); err != nil {
		return nil, fmt.Errorf("render webhook template: %w", err)
	}

	return buf.Bytes(), nil
}
