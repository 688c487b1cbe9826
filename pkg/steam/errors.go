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

import "errors"

var (
	// ErrProfileNotFound means the target does not name an existing profile.
	ErrProfileNotFound = errors.New("steam profile not found")
	// ErrPrivateProfile means the profile exists but its presence is hidden.
	ErrPrivateProfile = errors.New("steam profile is private")
	// ErrAuthExpired means the community rejected our session cookies (403).
	// The operator has to supply fresh cookies before friend pages work again.
	ErrAuthExpired = errors.New("steam session cookies rejected")
	// ErrNotModified reports a 304 on a conditional fetch; the cached view
	// of the page is still current.
	ErrNotModified = errors.New("steam page not modified")
	// ErrUpstream covers network failures, 5xx responses and unparseable
	// pages. Callers must not interpret it as an observation.
	ErrUpstream = errors.New("steam upstream request failed")
	// ErrInvalidTarget means the input is not a profile URL, vanity name,
	// or 64-bit Steam ID.
	ErrInvalidTarget = errors.New("unrecognized steam profile target")

	errUnexpectedStatusCode = errors.New("unexpected status code")
	errOwnerURLNotSet       = errors.New("owner profile URL not configured")
)
