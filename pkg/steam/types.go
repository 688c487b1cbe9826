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

package steam

import (
	"time"

	"github.com/wzken/steamwatch/pkg/models"
)

const (
	// DefaultBaseURL is the public Steam Community frontend.
	DefaultBaseURL = "https://steamcommunity.com"

	defaultTimeout = 15 * time.Second

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	acceptHeader = "text/html,application/xhtml+xml,application/xml;q=0.9," +
		"image/avif,image/webp,image/apng,*/*;q=0.8,application/signed-exchange;v=b3;q=0.7"
	acceptLanguageHeader = "zh-CN,zh;q=0.9,en;q=0.8"
)

// Config holds the Steam Community client settings.
type Config struct {
	// BaseURL overrides the community frontend; empty means DefaultBaseURL.
	BaseURL string `json:"base_url,omitempty"`
	// OwnerProfileURL is the profile whose public friend list is watched.
	OwnerProfileURL string `json:"owner_profile_url"`
	// ProxyURL routes all requests through an HTTP proxy when set.
	ProxyURL string `json:"proxy_url,omitempty"`
	// LoginSecure and SessionID are the community session cookies.
	LoginSecure string `json:"steam_login_secure,omitempty"`
	SessionID   string `json:"session_id,omitempty"`
	// Timeout bounds each request; zero means the 15s default.
	Timeout models.Duration `json:"timeout,omitempty"`

	// HTTPClient overrides the transport, used by tests.
	HTTPClient HTTPClient `json:"-"`
}

// pageValidators holds the conditional request state for one URL.
type pageValidators struct {
	etag         string
	lastModified string
}
