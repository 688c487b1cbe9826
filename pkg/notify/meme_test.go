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
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wzken/steamwatch/pkg/logger"
	"github.com/wzken/steamwatch/pkg/models"
)

func memeNotification() *Notification {
	return &Notification{
		Transition: models.Transition{
			Kind: models.TransitionGameStart,
			To: models.PresenceState{
				Status:    models.StatusInGame,
				GameName:  "Dota 2",
				AvatarURL: "https://avatars.example/gabe.jpg",
			},
		},
		Rule:    models.Rule{DisplayName: "gabe", Destination: "chat:42"},
		Message: "🟢 gabe started playing 《Dota 2》.",
	}
}

func TestMemeRenderer_GeneratesImage(t *testing.T) {
	t.Parallel()

	var uploadBody, generateBody []byte

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/image/upload":
			uploadBody, _ = io.ReadAll(r.Body)
			fmt.Fprint(w, `{"image_id": "avatar-1"}`)
		case "/memes/steam_message":
			generateBody, _ = io.ReadAll(r.Body)
			fmt.Fprint(w, `{"image_id": "meme-1"}`)
		case "/image/meme-1":
			_, _ = w.Write([]byte("GIF89a..."))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	dataDir := t.TempDir()
	renderer := NewMemeRenderer(server.URL, dataDir, server.Client(), logger.NewTestLogger())

	asset, err := renderer.Render(context.Background(), memeNotification())

	require.NoError(t, err)
	assert.Equal(t, AssetImage, asset.Kind)
	assert.Equal(t, dataDir, filepath.Dir(asset.ImagePath))
	assert.True(t, strings.HasPrefix(filepath.Base(asset.ImagePath), "meme_"))
	assert.True(t, strings.HasSuffix(asset.ImagePath, ".gif"))

	data, err := os.ReadFile(asset.ImagePath)
	require.NoError(t, err)
	assert.Equal(t, "GIF89a...", string(data))

	assert.JSONEq(t, `{"type":"url","url":"https://avatars.example/gabe.jpg"}`, string(uploadBody))
	assert.JSONEq(t, `{"images":[{"name":"avatar","id":"avatar-1"}],"texts":["gabe is playing Dota 2"]}`, string(generateBody))
}

func TestMemeRenderer_NoAvatar(t *testing.T) {
	t.Parallel()

	renderer := NewMemeRenderer(DefaultMemeBaseURL, t.TempDir(), nil, logger.NewTestLogger())

	n := memeNotification()
	n.Transition.To.AvatarURL = ""
	n.Rule.AvatarURL = ""

	_, err := renderer.Render(context.Background(), n)
	assert.ErrorIs(t, err, errNoAvatar)
}

func TestMemeRenderer_MissingImageID(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{}`)
	}))
	defer server.Close()

	renderer := NewMemeRenderer(server.URL, t.TempDir(), server.Client(), logger.NewTestLogger())

	_, err := renderer.Render(context.Background(), memeNotification())
	assert.ErrorIs(t, err, errMemeResponse)
}

func TestMemeRenderer_UpstreamStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	renderer := NewMemeRenderer(server.URL, t.TempDir(), server.Client(), logger.NewTestLogger())

	_, err := renderer.Render(context.Background(), memeNotification())
	assert.ErrorIs(t, err, errMemeStatus)
}
