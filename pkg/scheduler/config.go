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

package scheduler

import (
	"time"

	"github.com/wzken/steamwatch/pkg/models"
)

const (
	defaultTickInterval         = 2 * time.Second
	defaultFriendListInterval   = 120 * time.Second
	defaultInGameInterval       = 60 * time.Second
	defaultOnlineInterval       = 300 * time.Second
	defaultOfflineInterval      = 900 * time.Second
	defaultMaxConcurrentFetches = 8
	defaultFailureThreshold     = 5
)

// Config represents scheduler configuration.
type Config struct {
	NodeID string `json:"node_id"`

	// WatchFriends enables the shared friend-list fetch. Rules whose target
	// is a current friend ride that single fetch instead of getting an
	// individual unit.
	WatchFriends bool `json:"watch_friends"`

	TickInterval       models.Duration `json:"tick_interval"`
	FriendListInterval models.Duration `json:"friend_list_check_interval"`

	// Adaptive per-status intervals for individual units.
	InGameInterval  models.Duration `json:"in_game_interval"`
	OnlineInterval  models.Duration `json:"online_interval"`
	OfflineInterval models.Duration `json:"offline_interval"`

	MaxConcurrentFetches int `json:"max_concurrent_fetches"`
	FailureThreshold     int `json:"failure_threshold"`
}

// Validate implements config.Validator interface.
func (c *Config) Validate() error {
	if time.Duration(c.TickInterval) <= 0 {
		c.TickInterval = models.Duration(defaultTickInterval)
	}

	if time.Duration(c.FriendListInterval) <= 0 {
		c.FriendListInterval = models.Duration(defaultFriendListInterval)
	}

	if time.Duration(c.InGameInterval) <= 0 {
		c.InGameInterval = models.Duration(defaultInGameInterval)
	}

	if time.Duration(c.OnlineInterval) <= 0 {
		c.OnlineInterval = models.Duration(defaultOnlineInterval)
	}

	if time.Duration(c.OfflineInterval) <= 0 {
		c.OfflineInterval = models.Duration(defaultOfflineInterval)
	}

	if c.MaxConcurrentFetches <= 0 {
		c.MaxConcurrentFetches = defaultMaxConcurrentFetches
	}

	if c.FailureThreshold <= 0 {
		c.FailureThreshold = defaultFailureThreshold
	}

	return nil
}

// intervalFor returns the adaptive refresh interval for an individual unit
// whose target was last observed with the given status. A target that has
// never been observed gets the moderate online interval.
func (c *Config) intervalFor(status models.PresenceStatus) time.Duration {
	switch status {
	case models.StatusInGame:
		return time.Duration(c.InGameInterval)
	case models.StatusOffline:
		return time.Duration(c.OfflineInterval)
	default:
		return time.Duration(c.OnlineInterval)
	}
}
