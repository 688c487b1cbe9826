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

import "encoding/json"

// Envelope is the frame exchanged with the host gateway in both
// directions. Replies carry the ID of the request they answer.
type Envelope struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Envelope types. The service sends send and render_card requests and
// answers the host's command envelopes; ack and error flow both ways.
const (
	typeCommand    = "command"
	typeSend       = "send"
	typeRenderCard = "render_card"
	typeAck        = "ack"
	typeError      = "error"
)

// commandPayload is a user command relayed by the host. Destination names
// the conversation the command came from and is where replies go.
type commandPayload struct {
	Name        string   `json:"name"`
	Args        []string `json:"args,omitempty"`
	Destination string   `json:"destination"`
}

// commandResult is the ack payload answering a command envelope.
type commandResult struct {
	Text string `json:"text"`
}

// sendPayload asks the host to deliver a message to one destination.
// Exactly one of Text and ImagePath is set.
type sendPayload struct {
	Destination string `json:"destination"`
	Text        string `json:"text,omitempty"`
	ImagePath   string `json:"image_path,omitempty"`
}

// renderCardPayload asks the host to rasterize an HTML snippet.
type renderCardPayload struct {
	HTML string `json:"html"`
}

// renderCardResult is the ack payload for a render_card request.
type renderCardResult struct {
	ImagePath string `json:"image_path"`
}

// errorPayload carries the reason on an error envelope.
type errorPayload struct {
	Message string `json:"message"`
}
