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

// Package steam fetches presence from public Steam Community pages.
// It never guesses: a page that cannot be fetched or parsed surfaces an
// error instead of an observation.
package steam

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/wzken/steamwatch/pkg/logger"
	"github.com/wzken/steamwatch/pkg/models"
)

// Client talks to the Steam Community frontend with session cookies and
// an optional proxy. All methods are safe for concurrent use.
type Client struct {
	httpClient HTTPClient
	baseURL    string
	ownerURL   string
	logger     logger.Logger

	// mu guards the session cookies, which the update_cookies command
	// swaps at runtime.
	mu          sync.RWMutex
	loginSecure string
	sessionID   string

	// condMu guards validator state for conditional fetches.
	condMu     sync.Mutex
	validators map[string]pageValidators

	nowFn func() time.Time
}

// NewClient builds a Client from config. A nil HTTPClient in the config
// gets a default transport honoring the configured proxy.
func NewClient(cfg *Config, log logger.Logger) (*Client, error) {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := time.Duration(cfg.Timeout)
		if timeout <= 0 {
			timeout = defaultTimeout
		}

		transport := http.DefaultTransport.(*http.Transport).Clone()

		if cfg.ProxyURL != "" {
			proxyURL, err := url.Parse(cfg.ProxyURL)
			if err != nil {
				return nil, fmt.Errorf("invalid proxy URL %q: %w", cfg.ProxyURL, err)
			}

			transport.Proxy = http.ProxyURL(proxyURL)
		}

		httpClient = &http.Client{
			Timeout:   timeout,
			Transport: transport,
		}
	}

	return &Client{
		httpClient:  httpClient,
		baseURL:     baseURL,
		ownerURL:    strings.TrimRight(cfg.OwnerProfileURL, "/"),
		logger:      log,
		loginSecure: cfg.LoginSecure,
		sessionID:   cfg.SessionID,
		validators:  make(map[string]pageValidators),
		nowFn:       time.Now,
	}, nil
}

// UpdateCookies swaps the community session cookies without rebuilding the
// transport. Cached page validators are dropped because the authenticated
// view of a page differs from the anonymous one.
func (c *Client) UpdateCookies(loginSecure, sessionID string) {
	c.mu.Lock()
	c.loginSecure = loginSecure
	c.sessionID = sessionID
	c.mu.Unlock()

	c.condMu.Lock()
	c.validators = make(map[string]pageValidators)
	c.condMu.Unlock()

	c.logger.Info().Msg("Steam session cookies updated")
}

// NormalizeTarget canonicalizes user input into either a bare 64-bit ID or
// a community profile URL. The result is stable for identical accounts and
// is what the identity cache keys on.
func (c *Client) NormalizeTarget(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrInvalidTarget
	}

	if u, err := url.Parse(raw); err == nil && u.Host != "" {
		if !strings.HasSuffix(u.Host, "steamcommunity.com") {
			return "", fmt.Errorf("%w: %s", ErrInvalidTarget, raw)
		}

		if !strings.HasPrefix(u.Path, "/id/") && !strings.HasPrefix(u.Path, "/profiles/") {
			return "", fmt.Errorf("%w: %s", ErrInvalidTarget, raw)
		}

		return c.baseURL + strings.TrimRight(u.Path, "/"), nil
	}

	if IsSteamID64(raw) {
		return raw, nil
	}

	if strings.ContainsAny(raw, "/?#") {
		return "", fmt.Errorf("%w: %s", ErrInvalidTarget, raw)
	}

	// Bare word: treat as a vanity name.
	return c.baseURL + "/id/" + raw, nil
}

// IsSteamID64 reports whether s looks like a 64-bit community ID: exactly
// 17 digits with the 7656 prefix.
func IsSteamID64(s string) bool {
	if len(s) != 17 || !strings.HasPrefix(s, "7656") {
		return false
	}

	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}

	return true
}

// profileURLFor converts a normalized target into a fetchable profile URL.
func (c *Client) profileURLFor(normalized string) string {
	if IsSteamID64(normalized) {
		return c.baseURL + "/profiles/" + normalized + "/"
	}

	return normalized
}

// ResolveTarget fetches the profile behind a normalized target and extracts
// its canonical identity. It always goes upstream; callers wanting caching
// use the identity resolver.
func (c *Client) ResolveTarget(ctx context.Context, normalized string) (*models.Identity, error) {
	pageURL := c.profileURLFor(normalized)

	body, err := c.fetchPage(ctx, pageURL, false)
	if err != nil {
		return nil, err
	}

	page, err := parseProfilePage(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}

	if page.steamID == "" {
		return nil, fmt.Errorf("%w: no steamID64 in %s", ErrProfileNotFound, pageURL)
	}

	c.logger.Info().
		Str("target", normalized).
		Str("steam_id", page.steamID).
		Str("name", page.name).
		Msg("Resolved steam profile")

	return &models.Identity{
		SteamID:     page.steamID,
		DisplayName: page.name,
		AvatarURL:   page.avatarURL,
		ResolvedAt:  c.nowFn(),
	}, nil
}

// FetchPlayerStatus fetches one profile page and derives the player's
// presence snapshot.
func (c *Client) FetchPlayerStatus(ctx context.Context, steamID string) (*models.PresenceState, error) {
	pageURL := c.baseURL + "/profiles/" + steamID + "/"

	body, err := c.fetchPage(ctx, pageURL, false)
	if err != nil {
		return nil, err
	}

	page, err := parseProfilePage(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}

	if page.steamID == "" {
		return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, steamID)
	}

	if page.private {
		return nil, fmt.Errorf("%w: %s", ErrPrivateProfile, steamID)
	}

	return &models.PresenceState{
		Status:      page.status,
		GameName:    page.game,
		DisplayName: page.name,
		AvatarURL:   page.avatarURL,
		ObservedAt:  c.nowFn(),
	}, nil
}

// FetchFriendPresences fetches the owner's public friends page and returns
// one snapshot per listed friend, keyed by SteamID. The fetch is
// conditional: ErrNotModified means the previous snapshot is still current
// and no parsing happened.
func (c *Client) FetchFriendPresences(ctx context.Context) (map[string]models.PresenceState, error) {
	if c.ownerURL == "" {
		return nil, errOwnerURLNotSet
	}

	pageURL := c.ownerURL + "/friends/"

	body, err := c.fetchPage(ctx, pageURL, true)
	if err != nil {
		return nil, err
	}

	presences, err := parseFriendsPage(body, c.nowFn())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}

	c.logger.Debug().
		Int("friends", len(presences)).
		Msg("Parsed friend list snapshot")

	return presences, nil
}

// fetchPage performs one GET with cookies, browser headers, and optional
// conditional request validators.
func (c *Client) fetchPage(ctx context.Context, pageURL string, conditional bool) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUpstream, err)
	}

	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("Accept-Language", acceptLanguageHeader)

	c.mu.RLock()
	if c.loginSecure != "" && c.sessionID != "" {
		req.AddCookie(&http.Cookie{Name: "steamLoginSecure", Value: c.loginSecure})
		req.AddCookie(&http.Cookie{Name: "sessionid", Value: c.sessionID})
	}
	c.mu.RUnlock()

	if conditional {
		c.condMu.Lock()
		if v, ok := c.validators[pageURL]; ok {
			if v.etag != "" {
				req.Header.Set("If-None-Match", v.etag)
			}

			if v.lastModified != "" {
				req.Header.Set("If-Modified-Since", v.lastModified)
			}
		}
		c.condMu.Unlock()
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNotModified:
		return "", ErrNotModified
	case http.StatusForbidden:
		return "", fmt.Errorf("%w: %s", ErrAuthExpired, pageURL)
	case http.StatusNotFound:
		return "", fmt.Errorf("%w: %s", ErrProfileNotFound, pageURL)
	case http.StatusOK:
	default:
		return "", fmt.Errorf("%w: %w: %d", ErrUpstream, errUnexpectedStatusCode, resp.StatusCode)
	}

	if conditional {
		c.condMu.Lock()
		c.validators[pageURL] = pageValidators{
			etag:         resp.Header.Get("ETag"),
			lastModified: resp.Header.Get("Last-Modified"),
		}
		c.condMu.Unlock()
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUpstream, err)
	}

	return string(body), nil
}
