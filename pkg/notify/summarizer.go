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
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/wzken/steamwatch/pkg/models"
)

const (
	summaryTimeout   = 30 * time.Second
	summaryMaxTokens = 120

	summarySystemPrompt = `You are a witty assistant commenting on a friend's gaming activity. ` +
		`Write one short remark suitable for a chat message. Tease, cheer, or nudge as the moment suggests. ` +
		`Reply with the remark only, no more than 40 characters.`
)

// LLMSummarizer asks an OpenAI-compatible endpoint for a one-line remark
// about the latest transition. Failures surface as errors; callers send
// the base message unchanged.
type LLMSummarizer struct {
	client *openai.Client
	model  string
	nowFn  func() time.Time
}

// NewLLMSummarizer builds a summarizer from config. BaseURL may point at
// any OpenAI-compatible provider.
func NewLLMSummarizer(cfg *models.LLMConfig) *LLMSummarizer {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}

	return &LLMSummarizer{
		client: openai.NewClientWithConfig(clientConfig),
		model:  model,
		nowFn:  time.Now,
	}
}

// Summarize returns the remark with surrounding whitespace trimmed.
func (s *LLMSummarizer) Summarize(ctx context.Context, transition models.Transition, rule models.Rule) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, summaryTimeout)
	defer cancel()

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: summarySystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: s.buildPrompt(transition, rule)},
		},
		Temperature: 0.8,
		MaxTokens:   summaryMaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", errNoChoices
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (s *LLMSummarizer) buildPrompt(transition models.Transition, rule models.Rule) string {
	now := s.nowFn()

	var history strings.Builder

	// Newest first, the order a reader scans chat history in.
	for i := len(rule.History) - 1; i >= 0; i-- {
		ev := rule.History[i]
		ago := formatDuration(now.Sub(ev.At))

		if ev.Type == models.GameEventStop {
			fmt.Fprintf(&history, "- %s ago: stopped 《%s》 (played %s)\n", ago, ev.Game, formatDuration(ev.Duration))
		} else {
			fmt.Fprintf(&history, "- %s ago: started 《%s》\n", ago, ev.Game)
		}
	}

	return fmt.Sprintf(`Friend: %s
Latest event: %s
Current time: %s

Recent activity (newest first):
%s
Total playtime today: %s`,
		playerName(rule),
		latestEventLine(transition),
		now.Format("2006-01-02 15:04:05"),
		strings.TrimRight(history.String(), "\n"),
		formatDuration(rule.PlaytimeToday))
}

func latestEventLine(transition models.Transition) string {
	switch transition.Kind {
	case models.TransitionGameStart:
		return fmt.Sprintf("just started 《%s》", transition.To.GameName)
	case models.TransitionGameStop:
		return fmt.Sprintf("just stopped 《%s》 after %s", transition.From.GameName, formatDuration(transition.SessionDuration))
	case models.TransitionGameSwitch:
		return fmt.Sprintf("just switched from 《%s》 to 《%s》", transition.From.GameName, transition.To.GameName)
	case models.TransitionOnline:
		return "just came online"
	case models.TransitionOffline:
		return "just went offline"
	default:
		return "changed presence"
	}
}
