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

// Package alerts delivers operator-facing alerts: webhook posts for
// infrastructure hooks and plain messages to configured admin destinations.
package alerts

import (
	"context"
	"errors"
)

// AlertLevel indicates the severity of an alert.
type AlertLevel string

const (
	Info    AlertLevel = "info"
	Warning AlertLevel = "warning"
	Error   AlertLevel = "error"
)

// WebhookAlert is the payload posted to alert webhooks.
type WebhookAlert struct {
	Level     AlertLevel     `json:"level"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Timestamp string         `json:"timestamp"`
	NodeID    string         `json:"node_id"`
	Details   map[string]any `json:"details,omitempty"`
}

// AlertService is the interface for alert notification services.
type AlertService interface {
	Alert(ctx context.Context, alert *WebhookAlert) error
}

var (
	// ErrWebhookCooldown means the same alert fired too recently and was
	// suppressed. Callers treat it as non-fatal.
	ErrWebhookCooldown = errors.New("alert is within cooldown period")

	// ErrWebhookDisabled means the alerter is configured but switched off.
	ErrWebhookDisabled = errors.New("webhook alerter is disabled")
)
