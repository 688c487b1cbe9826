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

package rulestore

import "errors"

var (
	// ErrDuplicateRule means a rule with the same identity, destination,
	// and game filter already exists.
	ErrDuplicateRule = errors.New("an identical monitoring rule already exists")

	// ErrRuleNotFound means no rule ID matched the given prefix.
	ErrRuleNotFound = errors.New("no monitoring rule matches")

	// ErrAmbiguousPrefix means more than one rule ID matched the given
	// prefix and the caller must disambiguate.
	ErrAmbiguousPrefix = errors.New("rule ID prefix is ambiguous")
)
