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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wzken/steamwatch/pkg/logger"
	"github.com/wzken/steamwatch/pkg/models"
)

const (
	// DefaultMemeBaseURL is the meme generator sidecar's default address.
	DefaultMemeBaseURL = "http://127.0.0.1:2233"

	memeTimeout  = 20 * time.Second
	memeTemplate = "steam_message"
)

type memeUploadRequest struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

type memeImageRef struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

type memeGenerateRequest struct {
	Images []memeImageRef `json:"images"`
	Texts  []string       `json:"texts"`
}

type memeImageResponse struct {
	ImageID string `json:"image_id"`
}

// memeRenderer generates an image through the meme API: upload the avatar
// by URL, generate the steam_message meme from it, download the result
// into the data dir.
type memeRenderer struct {
	httpClient HTTPClient
	baseURL    string
	dataDir    string
	logger     logger.Logger
	newID      func() string
}

// NewMemeRenderer returns the meme rendering strategy. A nil httpClient
// gets a default with the meme API timeout.
func NewMemeRenderer(baseURL, dataDir string, httpClient HTTPClient, log logger.Logger) Renderer {
	if baseURL == "" {
		baseURL = DefaultMemeBaseURL
	}

	if httpClient == nil {
		httpClient = &http.Client{Timeout: memeTimeout}
	}

	return &memeRenderer{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		dataDir:    dataDir,
		logger:     log,
		newID:      uuid.NewString,
	}
}

func (r *memeRenderer) Render(ctx context.Context, notification *Notification) (*Asset, error) {
	avatar := avatarURL(notification)
	if avatar == "" {
		return nil, errNoAvatar
	}

	avatarID, err := r.uploadAvatar(ctx, avatar)
	if err != nil {
		return nil, fmt.Errorf("upload avatar: %w", err)
	}

	memeID, err := r.generateMeme(ctx, avatarID, memeText(notification))
	if err != nil {
		return nil, fmt.Errorf("generate meme: %w", err)
	}

	imagePath, err := r.downloadImage(ctx, memeID)
	if err != nil {
		return nil, fmt.Errorf("download meme: %w", err)
	}

	r.logger.Debug().Str("path", imagePath).Msg("Meme notification generated")

	return &Asset{Kind: AssetImage, ImagePath: imagePath}, nil
}

// memeText is the short caption burned into the meme. It is independent of
// the notification message, which may carry a quote line too long for the
// template.
func memeText(notification *Notification) string {
	name := playerName(notification.Rule)

	switch notification.Transition.Kind {
	case models.TransitionGameStart, models.TransitionGameSwitch:
		return fmt.Sprintf("%s is playing %s", name, notification.Transition.To.GameName)
	case models.TransitionGameStop:
		return fmt.Sprintf("%s stopped playing %s", name, notification.Transition.From.GameName)
	case models.TransitionOnline:
		return fmt.Sprintf("%s is online", name)
	case models.TransitionOffline:
		return fmt.Sprintf("%s went offline", name)
	default:
		return fmt.Sprintf("%s changed presence", name)
	}
}

func (r *memeRenderer) uploadAvatar(ctx context.Context, avatar string) (string, error) {
	resp, err := r.postJSON(ctx, r.baseURL+"/image/upload", memeUploadRequest{Type: "url", URL: avatar})
	if err != nil {
		return "", err
	}

	return resp.ImageID, nil
}

func (r *memeRenderer) generateMeme(ctx context.Context, avatarID, text string) (string, error) {
	payload := memeGenerateRequest{
		Images: []memeImageRef{{Name: "avatar", ID: avatarID}},
		Texts:  []string{text},
	}

	resp, err := r.postJSON(ctx, r.baseURL+"/memes/"+memeTemplate, payload)
	if err != nil {
		return "", err
	}

	return resp.ImageID, nil
}

func (r *memeRenderer) downloadImage(ctx context.Context, imageID string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/image/"+imageID, http.NoBody)
	if err != nil {
		return "", err
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: %d", errMemeStatus, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(r.dataDir, 0o755); err != nil {
		return "", err
	}

	imagePath := filepath.Join(r.dataDir, fmt.Sprintf("meme_%s.gif", r.newID()))

	if err := os.WriteFile(imagePath, data, 0o644); err != nil {
		return "", err
	}

	return imagePath, nil
}

func (r *memeRenderer) postJSON(ctx context.Context, url string, payload any) (*memeImageResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %d", errMemeStatus, resp.StatusCode)
	}

	var decoded memeImageResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, err
	}

	if decoded.ImageID == "" {
		return nil, errMemeResponse
	}

	return &decoded, nil
}
