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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wzken/steamwatch/pkg/models"
)

func TestFormatDuration(t *testing.T) {
	t.Parallel()

	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0s"},
		{45 * time.Second, "45s"},
		{12 * time.Minute, "12m"},
		{59*time.Minute + 59*time.Second, "59m"},
		{time.Hour + 2*time.Minute, "1h02m"},
		{3 * time.Hour, "3h00m"},
		{-time.Second, "unknown"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, formatDuration(tt.d))
	}
}

func TestBaseMessage(t *testing.T) {
	t.Parallel()

	rule := models.Rule{DisplayName: "gabe", SteamID: "76561198000000001"}

	tests := []struct {
		name       string
		transition models.Transition
		want       string
	}{
		{
			name: "game start",
			transition: models.Transition{
				Kind: models.TransitionGameStart,
				To:   models.PresenceState{Status: models.StatusInGame, GameName: "Dota 2"},
			},
			want: "🟢 gabe started playing 《Dota 2》.",
		},
		{
			name: "game stop with session time",
			transition: models.Transition{
				Kind:            models.TransitionGameStop,
				From:            models.PresenceState{Status: models.StatusInGame, GameName: "Dota 2"},
				SessionDuration: time.Hour + 2*time.Minute,
			},
			want: "🔴 gabe stopped playing 《Dota 2》. Played for: 1h02m.",
		},
		{
			name: "game stop without observed start",
			transition: models.Transition{
				Kind: models.TransitionGameStop,
				From: models.PresenceState{Status: models.StatusInGame, GameName: "Dota 2"},
			},
			want: "🔴 gabe stopped playing 《Dota 2》.",
		},
		{
			name: "game switch",
			transition: models.Transition{
				Kind:            models.TransitionGameSwitch,
				From:            models.PresenceState{Status: models.StatusInGame, GameName: "Dota 2"},
				To:              models.PresenceState{Status: models.StatusInGame, GameName: "Counter-Strike 2"},
				SessionDuration: 30 * time.Minute,
			},
			want: "🔄 gabe switched from 《Dota 2》 to 《Counter-Strike 2》. Played for: 30m.",
		},
		{
			name:       "online",
			transition: models.Transition{Kind: models.TransitionOnline},
			want:       "🟢 gabe is now online.",
		},
		{
			name:       "offline",
			transition: models.Transition{Kind: models.TransitionOffline},
			want:       "⚫️ gabe went offline.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, baseMessage(tt.transition, rule))
		})
	}
}

func TestBaseMessage_FallsBackToSteamID(t *testing.T) {
	t.Parallel()

	rule := models.Rule{SteamID: "76561198000000001"}
	got := baseMessage(models.Transition{Kind: models.TransitionOnline}, rule)

	assert.Equal(t, "🟢 76561198000000001 is now online.", got)
}

func TestPlainRenderer(t *testing.T) {
	t.Parallel()

	asset, err := NewPlainRenderer().Render(context.Background(), &Notification{Message: "hello"})

	require.NoError(t, err)
	assert.Equal(t, AssetText, asset.Kind)
	assert.Equal(t, "hello", asset.Text)
}

type fakeCards struct {
	html string
	path string
	err  error
}

func (f *fakeCards) RenderCard(_ context.Context, html string) (string, error) {
	f.html = html

	if f.err != nil {
		return "", f.err
	}

	return f.path, nil
}

func TestCardRenderer(t *testing.T) {
	t.Parallel()

	cards := &fakeCards{path: "/tmp/card.png"}

	renderer, err := NewCardRenderer(cards)
	require.NoError(t, err)

	n := &Notification{
		Rule:    models.Rule{DisplayName: "gabe", AvatarURL: "https://avatars.example/gabe.jpg"},
		Message: "🟢 gabe & co\n> nice",
	}

	asset, err := renderer.Render(context.Background(), n)

	require.NoError(t, err)
	assert.Equal(t, AssetImage, asset.Kind)
	assert.Equal(t, "/tmp/card.png", asset.ImagePath)
	assert.Contains(t, cards.html, "https://avatars.example/gabe.jpg")
	assert.Contains(t, cards.html, "&amp; co")
	assert.Contains(t, cards.html, "<br>")
	assert.NotContains(t, cards.html, "\n> nice")
}

func TestCardRenderer_NoAvatar(t *testing.T) {
	t.Parallel()

	renderer, err := NewCardRenderer(&fakeCards{path: "/tmp/card.png"})
	require.NoError(t, err)

	_, err = renderer.Render(context.Background(), &Notification{Message: "hi"})
	assert.ErrorIs(t, err, errNoAvatar)
}

func TestCardRenderer_CollaboratorFailure(t *testing.T) {
	t.Parallel()

	renderer, err := NewCardRenderer(&fakeCards{err: assert.AnError})
	require.NoError(t, err)

	n := &Notification{
		Rule:    models.Rule{AvatarURL: "https://avatars.example/gabe.jpg"},
		Message: "hi",
	}

	_, err = renderer.Render(context.Background(), n)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestNewCardRenderer_RequiresCollaborator(t *testing.T) {
	t.Parallel()

	_, err := NewCardRenderer(nil)
	assert.ErrorIs(t, err, errCardRendererRequired)
}
