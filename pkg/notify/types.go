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

package notify

import "github.com/wzken/steamwatch/pkg/models"

// AssetKind distinguishes deliverable asset types.
type AssetKind string

const (
	AssetText  AssetKind = "text"
	AssetImage AssetKind = "image"
)

// Asset is one rendered, deliverable notification payload.
type Asset struct {
	Kind      AssetKind
	Text      string
	ImagePath string
}

// Notification is a fully composed transition message awaiting rendering
// and delivery. Message already carries the summarizer's quote line when
// one was generated.
type Notification struct {
	Transition  models.Transition
	Rule        models.Rule
	Destination string
	Message     string
}
