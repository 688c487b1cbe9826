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

// Package bridge maintains the websocket connection to the host gateway.
// Notifications and admin alerts go out as send envelopes, card rendering
// is delegated to the host, and user commands arrive inbound and are
// answered by the command router.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gorilla/websocket"

	"github.com/wzken/steamwatch/pkg/logger"
)

const (
	writeWait    = 5 * time.Second
	pongWait     = 30 * time.Second
	pingInterval = 10 * time.Second
	replyWait    = 15 * time.Second

	dialInitialBackoff = 1 * time.Second
	dialMaxBackoff     = 30 * time.Second

	maxMessageSize = 1 << 20
)

// Gateway is the websocket client side of the host bridge. It reconnects
// with exponential backoff until stopped and correlates replies to
// outstanding requests by envelope ID.
type Gateway struct {
	url    string
	router *CommandRouter
	logger logger.Logger

	dialer *websocket.Dialer

	mu   sync.Mutex
	conn *websocket.Conn

	// wmu serializes all writes to the connection, including control
	// frames from the ping loop.
	wmu sync.Mutex

	pendingMu sync.Mutex
	pending   map[string]chan *Envelope

	seq       atomic.Uint64
	done      chan struct{}
	closeOnce sync.Once
	cancelRun context.CancelFunc
	wg        sync.WaitGroup
	startWg   sync.WaitGroup
}

// New creates a gateway client for the given websocket URL. The router
// answers inbound command envelopes.
func New(url string, router *CommandRouter, log logger.Logger) (*Gateway, error) {
	if url == "" {
		return nil, errURLRequired
	}

	if router == nil {
		return nil, errRouterRequired
	}

	if log == nil {
		return nil, errLoggerRequired
	}

	return &Gateway{
		url:     url,
		router:  router,
		logger:  log,
		dialer:  &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		pending: make(map[string]chan *Envelope),
		done:    make(chan struct{}),
	}, nil
}

// Start connects to the gateway and services the connection until the
// context is canceled or Stop is called. Lost connections are redialed
// with exponential backoff. It implements the lifecycle.Service interface.
func (g *Gateway) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)

	g.mu.Lock()
	g.cancelRun = cancel
	g.mu.Unlock()

	defer cancel()

	g.logger.Info().Str("url", g.url).Msg("Starting gateway bridge")

	g.startWg.Add(1)
	defer g.startWg.Done()

	for {
		select {
		case <-g.done:
			return nil
		default:
		}

		conn, err := g.dial(ctx)
		if err != nil {
			select {
			case <-g.done:
				return nil
			default:
			}

			return err
		}

		g.setConn(conn)
		g.logger.Info().Str("url", g.url).Msg("Gateway connected")

		pingStop := make(chan struct{})

		g.wg.Add(1)

		go g.pingLoop(conn, pingStop)

		readErr := g.readLoop(ctx, conn)

		close(pingStop)
		g.setConn(nil)
		_ = conn.Close()
		g.failPending()

		// Stop closes done and cancels ctx together, so done wins.
		select {
		case <-g.done:
			return nil
		default:
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		g.logger.Warn().Err(readErr).Msg("Gateway connection lost, reconnecting")
	}
}

// Stop closes the connection and waits for the loops to drain.
func (g *Gateway) Stop(_ context.Context) error {
	g.closeOnce.Do(func() {
		close(g.done)

		g.mu.Lock()
		cancel := g.cancelRun
		g.mu.Unlock()

		if cancel != nil {
			cancel()
		}

		g.closeConn()
	})

	g.startWg.Wait()
	g.wg.Wait()

	return nil
}

// dial connects with exponential backoff. It only returns an error once
// the context is canceled.
func (g *Gateway) dial(ctx context.Context) (*websocket.Conn, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = dialInitialBackoff
	bo.MaxInterval = dialMaxBackoff

	operation := func() (*websocket.Conn, error) {
		conn, resp, err := g.dialer.DialContext(ctx, g.url, nil)
		if err != nil {
			if resp != nil {
				_ = resp.Body.Close()
			}

			g.logger.Warn().Err(err).Str("url", g.url).Msg("Gateway dial failed")

			return nil, err
		}

		return conn, nil
	}

	// A zero elapsed-time cap retries until the context is canceled.
	conn, err := backoff.Retry(ctx, operation, backoff.WithBackOff(bo), backoff.WithMaxElapsedTime(0))
	if err != nil {
		return nil, fmt.Errorf("dial gateway: %w", err)
	}

	return conn, nil
}

// readLoop pumps inbound envelopes until the connection breaks.
func (g *Gateway) readLoop(ctx context.Context, conn *websocket.Conn) error {
	conn.SetReadLimit(maxMessageSize)

	if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return fmt.Errorf("set read deadline: %w", err)
	}

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read gateway message: %w", err)
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			g.logger.Warn().Err(err).Msg("Discarding malformed gateway envelope")
			continue
		}

		g.handleEnvelope(ctx, &env)
	}
}

// pingLoop keeps the connection alive until it breaks or the gateway
// stops.
func (g *Gateway) pingLoop(conn *websocket.Conn, stop <-chan struct{}) {
	defer g.wg.Done()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-g.done:
			return
		case <-ticker.C:
			g.wmu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			g.wmu.Unlock()

			if err != nil {
				g.logger.Debug().Err(err).Msg("Gateway ping failed")
				return
			}
		}
	}
}

func (g *Gateway) handleEnvelope(ctx context.Context, env *Envelope) {
	switch env.Type {
	case typeCommand:
		g.wg.Add(1)

		go g.handleCommand(ctx, env)
	case typeAck, typeError:
		g.settle(env)
	default:
		g.logger.Debug().Str("type", env.Type).Msg("Ignoring unknown gateway envelope type")
	}
}

// handleCommand runs one inbound command through the router and acks it
// with the reply text.
func (g *Gateway) handleCommand(ctx context.Context, env *Envelope) {
	defer g.wg.Done()

	var cmd commandPayload
	if err := json.Unmarshal(env.Payload, &cmd); err != nil {
		g.logger.Warn().Err(err).Str("id", env.ID).Msg("Discarding malformed command payload")
		g.reply(env.ID, typeError, errorPayload{Message: "malformed command payload"})

		return
	}

	g.logger.Info().
		Str("command", cmd.Name).
		Str("destination", cmd.Destination).
		Msg("Handling gateway command")

	text := g.router.Execute(ctx, cmd)

	g.reply(env.ID, typeAck, commandResult{Text: text})
}

// reply sends an ack or error envelope correlated to an inbound request.
func (g *Gateway) reply(id, envType string, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		g.logger.Error().Err(err).Msg("Failed to marshal command reply")
		return
	}

	env := &Envelope{Type: envType, ID: id, Payload: body}
	if err := g.write(env); err != nil {
		g.logger.Warn().Err(err).Str("id", id).Msg("Failed to send command reply")
	}
}

// settle hands a reply envelope to the request waiting on its ID.
func (g *Gateway) settle(env *Envelope) {
	g.pendingMu.Lock()
	ch, ok := g.pending[env.ID]

	if ok {
		delete(g.pending, env.ID)
	}
	g.pendingMu.Unlock()

	if !ok {
		g.logger.Debug().Str("id", env.ID).Msg("No request waiting for gateway reply")
		return
	}

	ch <- env
}

// failPending unblocks every in-flight request after a disconnect.
func (g *Gateway) failPending() {
	g.pendingMu.Lock()
	pending := g.pending
	g.pending = make(map[string]chan *Envelope)
	g.pendingMu.Unlock()

	for _, ch := range pending {
		close(ch)
	}
}

// request sends an envelope and waits for the correlated reply. An error
// envelope from the host surfaces as errRemote.
func (g *Gateway) request(ctx context.Context, envType string, payload any) (*Envelope, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", envType, err)
	}

	id := strconv.FormatUint(g.seq.Add(1), 10)
	env := &Envelope{Type: envType, ID: id, Payload: body}

	ch := make(chan *Envelope, 1)

	g.pendingMu.Lock()
	g.pending[id] = ch
	g.pendingMu.Unlock()

	if err := g.write(env); err != nil {
		g.pendingMu.Lock()
		delete(g.pending, id)
		g.pendingMu.Unlock()

		return nil, err
	}

	select {
	case reply, ok := <-ch:
		if !ok {
			return nil, errNotConnected
		}

		if reply.Type == typeError {
			var ep errorPayload
			_ = json.Unmarshal(reply.Payload, &ep)

			return nil, fmt.Errorf("%w: %s", errRemote, ep.Message)
		}

		return reply, nil
	case <-time.After(replyWait):
		g.pendingMu.Lock()
		delete(g.pending, id)
		g.pendingMu.Unlock()

		return nil, fmt.Errorf("%s %s: %w", envType, id, errReplyTimeout)
	case <-ctx.Done():
		g.pendingMu.Lock()
		delete(g.pending, id)
		g.pendingMu.Unlock()

		return nil, ctx.Err()
	case <-g.done:
		return nil, errGatewayClosed
	}
}

// write marshals and sends one envelope under the write lock.
func (g *Gateway) write(env *Envelope) error {
	g.mu.Lock()
	conn := g.conn
	g.mu.Unlock()

	if conn == nil {
		return errNotConnected
	}

	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	g.wmu.Lock()
	defer g.wmu.Unlock()

	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}

	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write envelope: %w", err)
	}

	return nil
}

func (g *Gateway) setConn(conn *websocket.Conn) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.conn = conn
}

// Connected reports whether a gateway connection is currently live.
func (g *Gateway) Connected() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.conn != nil
}

// closeConn attempts a clean websocket close before dropping the socket.
func (g *Gateway) closeConn() {
	g.mu.Lock()
	conn := g.conn
	g.conn = nil
	g.mu.Unlock()

	if conn == nil {
		return
	}

	g.wmu.Lock()
	_ = conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(500*time.Millisecond),
	)
	g.wmu.Unlock()

	_ = conn.Close()
}

// SendText delivers a plain-text message to a destination. It satisfies
// the notification deliverer interface.
func (g *Gateway) SendText(ctx context.Context, destination, text string) error {
	_, err := g.request(ctx, typeSend, sendPayload{Destination: destination, Text: text})
	if err != nil {
		return fmt.Errorf("send text to %s: %w", destination, err)
	}

	return nil
}

// SendImage delivers an image by local path to a destination.
func (g *Gateway) SendImage(ctx context.Context, destination, imagePath string) error {
	_, err := g.request(ctx, typeSend, sendPayload{Destination: destination, ImagePath: imagePath})
	if err != nil {
		return fmt.Errorf("send image to %s: %w", destination, err)
	}

	return nil
}

// Deliver satisfies the admin alert sink interface.
func (g *Gateway) Deliver(ctx context.Context, destination, message string) error {
	return g.SendText(ctx, destination, message)
}

// RenderCard asks the host to rasterize an HTML snippet and returns the
// image path it reports.
func (g *Gateway) RenderCard(ctx context.Context, html string) (string, error) {
	reply, err := g.request(ctx, typeRenderCard, renderCardPayload{HTML: html})
	if err != nil {
		return "", fmt.Errorf("render card: %w", err)
	}

	var result renderCardResult
	if err := json.Unmarshal(reply.Payload, &result); err != nil {
		return "", fmt.Errorf("decode render_card reply: %w", err)
	}

	if result.ImagePath == "" {
		return "", errEmptyRenderResult
	}

	return result.ImagePath, nil
}
