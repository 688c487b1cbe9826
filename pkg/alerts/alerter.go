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
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/wzken/steamwatch/pkg/logger"
)

var errFailedToSendAlerts = errors.New("failed to send alerts")

// Alerter is the operator side-channel: systemic failures go to every
// configured webhook and are mirrored to the admin destinations. Cooldown
// suppressions are expected and logged at debug level only.
type Alerter struct {
	nodeID   string
	webhooks []AlertService
	admin    *AdminNotifier
	logger   logger.Logger
	nowFn    func() time.Time
}

// NewAlerter builds the alert fan-out. admin may be nil when no admin
// destinations are configured.
func NewAlerter(nodeID string, webhooks []AlertService, admin *AdminNotifier, log logger.Logger) *Alerter {
	return &Alerter{
		nodeID:   nodeID,
		webhooks: webhooks,
		admin:    admin,
		logger:   log,
		nowFn:    time.Now,
	}
}

// Escalate sends a leveled alert everywhere. It never fails the caller:
// delivery problems are logged, cooldown suppressions ignored.
func (a *Alerter) Escalate(ctx context.Context, level AlertLevel, title, message string, details map[string]any) {
	a.logger.Info().
		Str("title", title).
		Str("alert_message", message).
		Msg("Sending alert")

	alert := &WebhookAlert{
		Level:     level,
		Title:     title,
		Message:   message,
		Timestamp: a.nowFn().UTC().Format(time.RFC3339),
		NodeID:    a.nodeID,
		Details:   details,
	}

	if err := a.sendAlert(ctx, alert); err != nil {
		a.logger.Warn().Err(err).Str("title", title).Msg("Failed to deliver alert to webhooks")
	}

	if a.admin == nil {
		return
	}

	if err := a.admin.Notify(ctx, title, message); err != nil {
		if errors.Is(err, ErrWebhookCooldown) {
			a.logger.Debug().Str("title", title).Msg("Admin alert suppressed by cooldown")
			return
		}

		a.logger.Warn().Err(err).Str("title", title).Msg("Failed to deliver alert to admin destinations")
	}
}

// NotifyStartup announces service start to the alert webhooks.
func (a *Alerter) NotifyStartup(ctx context.Context) {
	if len(a.webhooks) == 0 {
		return
	}

	a.Escalate(ctx, Info, "Steamwatch Started",
		fmt.Sprintf("steamwatch service initialized at %s", a.nowFn().Format(time.RFC3339)),
		map[string]any{"hostname": getHostname()})
}

// NotifyShutdown announces a clean shutdown to the alert webhooks.
func (a *Alerter) NotifyShutdown(ctx context.Context) {
	if len(a.webhooks) == 0 {
		return
	}

	a.Escalate(ctx, Warning, "Steamwatch Stopping",
		fmt.Sprintf("steamwatch service shutting down at %s", a.nowFn().Format(time.RFC3339)),
		map[string]any{"hostname": getHostname()})
}

func (a *Alerter) sendAlert(ctx context.Context, alert *WebhookAlert) error {
	var errs []error

	for _, webhook := range a.webhooks {
		if err := webhook.Alert(ctx, alert); err != nil {
			if errors.Is(err, ErrWebhookCooldown) || errors.Is(err, ErrWebhookDisabled) {
				continue
			}

			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %v", errFailedToSendAlerts, errs)
	}

	return nil
}

func getHostname() string {
	hostname, err := os.Hostname()
	if err != nil {
		return "unknown"
	}

	return hostname
}
