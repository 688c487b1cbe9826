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
	"fmt"
	"html"
	"strings"
)

const cardTemplate = `<div style="display: flex; align-items: center; font-family: sans-serif; padding: 10px; border-radius: 5px; background-color: #f0f2f5;">
    <img src="%s" style="width: 50px; height: 50px; border-radius: 50%%; margin-right: 15px;">
    <p style="font-size: 16px; margin: 0;">%s</p>
</div>`

// cardRenderer wraps the message in an avatar card and hands the HTML to
// the host's rasterizer. Without an avatar there is nothing to card, so it
// errors and the dispatcher degrades to plain text.
type cardRenderer struct {
	cards CardRenderer
}

// NewCardRenderer returns the card rendering strategy backed by the host's
// HTML rasterizer.
func NewCardRenderer(cards CardRenderer) (Renderer, error) {
	if cards == nil {
		return nil, errCardRendererRequired
	}

	return &cardRenderer{cards: cards}, nil
}

func (r *cardRenderer) Render(ctx context.Context, notification *Notification) (*Asset, error) {
	avatar := avatarURL(notification)
	if avatar == "" {
		return nil, errNoAvatar
	}

	message := html.EscapeString(notification.Message)
	message = strings.ReplaceAll(message, "\n", "<br>")

	snippet := fmt.Sprintf(cardTemplate, html.EscapeString(avatar), message)

	imagePath, err := r.cards.RenderCard(ctx, snippet)
	if err != nil {
		return nil, fmt.Errorf("render card: %w", err)
	}

	return &Asset{Kind: AssetImage, ImagePath: imagePath}, nil
}
