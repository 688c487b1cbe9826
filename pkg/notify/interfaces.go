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

import (
	"context"
	"net/http"

	"github.com/wzken/steamwatch/pkg/models"
)

// Renderer turns a composed notification into a deliverable asset.
type Renderer interface {
	Render(ctx context.Context, notification *Notification) (*Asset, error)
}

// Deliverer sends rendered assets to a destination. The host gateway
// implements it.
type Deliverer interface {
	SendText(ctx context.Context, destination, text string) error
	SendImage(ctx context.Context, destination, imagePath string) error
}

// CardRenderer rasterizes an HTML snippet into an image on disk. The host
// gateway provides the implementation.
type CardRenderer interface {
	RenderCard(ctx context.Context, html string) (string, error)
}

// Summarizer produces a short quote line to append to a notification.
type Summarizer interface {
	Summarize(ctx context.Context, transition models.Transition, rule models.Rule) (string, error)
}

// HTTPClient abstracts the HTTP client for testing.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}
