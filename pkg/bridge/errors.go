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

package bridge

import "errors"

var (
	errURLRequired    = errors.New("gateway URL is required")
	errRouterRequired = errors.New("command router is required")
	errLoggerRequired = errors.New("logger is required")

	errResolverRequired      = errors.New("target resolver is required")
	errRuleStoreRequired     = errors.New("rule store is required")
	errCookieUpdaterRequired = errors.New("cookie updater is required")
	errRefresherRequired     = errors.New("refresher is required")
	errConfigRequired        = errors.New("service config is required")

	errNotConnected  = errors.New("gateway is not connected")
	errGatewayClosed = errors.New("gateway is closed")
	errReplyTimeout  = errors.New("timed out waiting for gateway reply")

	// errRemote wraps the message of an error envelope from the host.
	errRemote = errors.New("gateway rejected request")

	errEmptyRenderResult = errors.New("render_card reply carried no image path")
)
