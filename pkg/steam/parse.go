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

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/wzken/steamwatch/pkg/models"
)

// profilePage holds everything a single community profile page yields.
type profilePage struct {
	steamID   string
	name      string
	avatarURL string
	game      string
	status    models.PresenceStatus
	private   bool
}

// parseProfilePage extracts identity and presence from a profile page.
// Missing fields stay zero; the caller decides which ones are fatal.
func parseProfilePage(body string) (*profilePage, error) {
	root, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse profile page: %w", err)
	}

	page := &profilePage{status: models.StatusOffline}

	if meta := findNode(root, func(n *html.Node) bool {
		return n.Data == "meta" && attrVal(n, "property") == "steamID64"
	}); meta != nil {
		page.steamID = attrVal(meta, "content")
	}

	if span := findClass(root, "span", "actual_steamname"); span != nil {
		page.name = nodeText(span)
	} else if div := findClass(root, "div", "friends_header_name"); div != nil {
		page.name = nodeText(div)
	}

	if div := findClass(root, "div", "playerAvatarAutoSizeInner"); div != nil {
		page.avatarURL = avatarSrc(div)
	}

	if page.avatarURL == "" {
		if div := findClass(root, "div", "friends_header_avatar"); div != nil {
			page.avatarURL = avatarSrc(div)
		}
	}

	if div := findClass(root, "div", "profile_in_game_name"); div != nil {
		page.game = nodeText(div)
	}

	page.private = findClass(root, "div", "profile_private_info") != nil

	switch persona := findClass(root, "div", "profile_in_game"); {
	case page.game != "":
		page.status = models.StatusInGame
	case persona != nil && hasClass(persona, "in-game"):
		page.status = models.StatusInGame
	case persona != nil && hasClass(persona, "online"):
		page.status = models.StatusOnline
	}

	return page, nil
}

// parseFriendsPage extracts one presence snapshot per friend block on the
// owner's friends page. Blocks without a data-steamid attribute are skipped.
func parseFriendsPage(body string, observedAt time.Time) (map[string]models.PresenceState, error) {
	root, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse friends page: %w", err)
	}

	presences := make(map[string]models.PresenceState)

	walkNodes(root, func(n *html.Node) {
		if n.Type != html.ElementNode || !hasClass(n, "friend_block_v2") {
			return
		}

		steamID := attrVal(n, "data-steamid")
		if steamID == "" {
			return
		}

		state := models.PresenceState{
			Status:     models.StatusOffline,
			ObservedAt: observedAt,
		}

		switch {
		case hasClass(n, "in-game"):
			state.Status = models.StatusInGame
		case hasClass(n, "online"):
			state.Status = models.StatusOnline
		}

		if span := findClass(n, "span", "friend_game_link"); span != nil {
			state.GameName = nodeText(span)
			if state.GameName != "" {
				state.Status = models.StatusInGame
			}
		}

		if div := findClass(n, "div", "friend_block_content"); div != nil {
			state.DisplayName = firstTextChild(div)
		}

		if div := findClass(n, "div", "player_avatar"); div != nil {
			state.AvatarURL = avatarSrc(div)
		}

		presences[steamID] = state
	})

	return presences, nil
}

// avatarSrc finds the first img under n and upgrades the thumbnail URL to
// the full-size variant.
func avatarSrc(n *html.Node) string {
	img := findNode(n, func(c *html.Node) bool { return c.Data == "img" })
	if img == nil {
		return ""
	}

	return strings.Replace(attrVal(img, "src"), "_medium.jpg", "_full.jpg", 1)
}

func attrVal(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}

	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attrVal(n, "class")) {
		if c == class {
			return true
		}
	}

	return false
}

// walkNodes visits every node under root in document order.
func walkNodes(root *html.Node, visit func(*html.Node)) {
	visit(root)

	for c := root.FirstChild; c != nil; c = c.NextSibling {
		walkNodes(c, visit)
	}
}

// findNode returns the first element node under root matching pred, or nil.
func findNode(root *html.Node, pred func(*html.Node) bool) *html.Node {
	if root.Type == html.ElementNode && pred(root) {
		return root
	}

	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if found := findNode(c, pred); found != nil {
			return found
		}
	}

	return nil
}

// findClass returns the first <tag> element under root carrying class.
func findClass(root *html.Node, tag, class string) *html.Node {
	return findNode(root, func(n *html.Node) bool {
		return n.Data == tag && hasClass(n, class)
	})
}

// nodeText returns the trimmed concatenation of all text under n.
func nodeText(n *html.Node) string {
	var sb strings.Builder

	walkNodes(n, func(c *html.Node) {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
	})

	return strings.TrimSpace(sb.String())
}

// firstTextChild returns the trimmed first direct text child of n. Friend
// blocks put the display name there, ahead of nested status markup.
func firstTextChild(n *html.Node) string {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			if text := strings.TrimSpace(c.Data); text != "" {
				return text
			}
		}
	}

	return ""
}
