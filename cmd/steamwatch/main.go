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

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/wzken/steamwatch/pkg/alerts"
	"github.com/wzken/steamwatch/pkg/bridge"
	"github.com/wzken/steamwatch/pkg/config"
	"github.com/wzken/steamwatch/pkg/identity"
	"github.com/wzken/steamwatch/pkg/lifecycle"
	"github.com/wzken/steamwatch/pkg/logger"
	"github.com/wzken/steamwatch/pkg/models"
	"github.com/wzken/steamwatch/pkg/notify"
	"github.com/wzken/steamwatch/pkg/rulestore"
	"github.com/wzken/steamwatch/pkg/scheduler"
	"github.com/wzken/steamwatch/pkg/steam"
)

const adminAlertCooldown = 30 * time.Minute

var errFailedToLoadConfig = fmt.Errorf("failed to load config")

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

// schedulerHandle breaks the construction cycle between the command router
// and the scheduler: the router needs the scheduler, the scheduler needs
// the dispatcher, and the dispatcher delivers through the gateway that owns
// the router. The pointer is set once wiring completes, before anything
// starts.
type schedulerHandle struct {
	p atomic.Pointer[scheduler.Scheduler]
}

func (h *schedulerHandle) ForceRefresh() {
	if s := h.p.Load(); s != nil {
		s.ForceRefresh()
	}
}

func (h *schedulerHandle) RuleStates() map[string]models.PresenceState {
	if s := h.p.Load(); s != nil {
		return s.RuleStates()
	}

	return nil
}

func run() error {
	configPath := flag.String("config", "/etc/steamwatch/steamwatch.json", "Path to steamwatch config file")
	flag.Parse()

	// Session cookies and API keys can come from a .env file.
	_ = godotenv.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		cancel()
	}()

	cfgLoader := config.NewConfig(nil)

	var cfg models.ServiceConfig

	if err := cfgLoader.LoadAndValidate(ctx, *configPath, &cfg); err != nil {
		return fmt.Errorf("%w: %w", errFailedToLoadConfig, err)
	}

	logConfig := cfg.Logging
	if logConfig == nil {
		logConfig = &logger.Config{
			Level:  "info",
			Output: "stdout",
		}
	}

	mainLogger, err := lifecycle.CreateComponentLogger("steamwatch", logConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if err = os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	steamClient, err := steam.NewClient(&steam.Config{
		OwnerProfileURL: cfg.ListenTargetURL,
		ProxyURL:        cfg.ProxyURL,
		LoginSecure:     cfg.SteamLoginSecure,
		SessionID:       cfg.SessionID,
	}, mainLogger)
	if err != nil {
		return fmt.Errorf("build steam client: %w", err)
	}

	identityStore, err := identity.NewStore(cfg.IdentityDBPath())
	if err != nil {
		return fmt.Errorf("open identity store: %w", err)
	}

	defer func() { _ = identityStore.Close() }()

	resolver := identity.NewResolver(steamClient, identityStore, time.Duration(cfg.IDReResolveInterval), mainLogger)

	ruleStore, err := rulestore.NewStore(cfg.RuleDBPath())
	if err != nil {
		return fmt.Errorf("open rule store: %w", err)
	}

	defer func() { _ = ruleStore.Close() }()

	handle := &schedulerHandle{}

	router, err := bridge.NewCommandRouter(bridge.RouterDeps{
		Resolver:   resolver,
		Rules:      ruleStore,
		Cookies:    steamClient,
		Refresher:  handle,
		Config:     &cfg,
		ConfigPath: *configPath,
	}, mainLogger)
	if err != nil {
		return fmt.Errorf("build command router: %w", err)
	}

	gateway, err := bridge.New(cfg.GatewayURL, router, mainLogger)
	if err != nil {
		return fmt.Errorf("build gateway: %w", err)
	}

	var admin *alerts.AdminNotifier
	if len(cfg.AdminDestinations) > 0 {
		admin = alerts.NewAdminNotifier(gateway, cfg.AdminDestinations, adminAlertCooldown)
	}

	webhooks := make([]alerts.AlertService, 0, len(cfg.Webhooks))

	for _, webhook := range cfg.Webhooks {
		if webhook.Enabled {
			webhooks = append(webhooks, alerts.NewWebhookAlerter(webhook))
		}
	}

	alerter := alerts.NewAlerter(cfg.NodeID, webhooks, admin, mainLogger)

	renderer, err := buildRenderer(&cfg, gateway, mainLogger)
	if err != nil {
		return err
	}

	var summarizer notify.Summarizer
	if cfg.LLM != nil && cfg.LLM.Enabled {
		summarizer = notify.NewLLMSummarizer(cfg.LLM)
	}

	dispatcher, err := notify.NewDispatcher(renderer, gateway, summarizer, mainLogger)
	if err != nil {
		return fmt.Errorf("build dispatcher: %w", err)
	}

	sched, err := scheduler.New(&scheduler.Config{
		NodeID:               cfg.NodeID,
		WatchFriends:         cfg.ListenTargetURL != "",
		TickInterval:         cfg.TickInterval,
		FriendListInterval:   cfg.FriendListInterval,
		InGameInterval:       cfg.InGameInterval,
		OnlineInterval:       cfg.OnlineInterval,
		OfflineInterval:      cfg.OfflineInterval,
		MaxConcurrentFetches: cfg.MaxConcurrentFetches,
		FailureThreshold:     cfg.FailureThreshold,
	}, scheduler.Dependencies{
		Fetcher:    steamClient,
		Rules:      ruleStore,
		Dispatcher: dispatcher,
		Alerter:    alerter,
	}, mainLogger)
	if err != nil {
		return fmt.Errorf("build scheduler: %w", err)
	}

	handle.p.Store(sched)

	alerter.NotifyStartup(ctx)
	defer alerter.NotifyShutdown(context.Background())

	mainLogger.Info().
		Str("config", *configPath).
		Str("gateway_url", cfg.GatewayURL).
		Str("strategy", cfg.NotificationStrategy).
		Bool("watch_friends", cfg.ListenTargetURL != "").
		Msg("steamwatch starting")

	return lifecycle.Run(ctx, mainLogger, gateway, resolver, sched)
}

// buildRenderer picks the notification strategy from the config.
func buildRenderer(cfg *models.ServiceConfig, gateway *bridge.Gateway, log logger.Logger) (notify.Renderer, error) {
	switch cfg.NotificationStrategy {
	case models.NotifyCard:
		renderer, err := notify.NewCardRenderer(gateway)
		if err != nil {
			return nil, fmt.Errorf("build card renderer: %w", err)
		}

		return renderer, nil
	case models.NotifyMeme:
		return notify.NewMemeRenderer(cfg.MemeAPIBaseURL, cfg.MemeDir(), nil, log), nil
	default:
		return notify.NewPlainRenderer(), nil
	}
}
