// Package roomws implements ports.Transport over a websocket room relay.
// Frames travel as JSON envelopes; topic data, RPC invocations and RPC
// results share one connection.
package roomws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"brdge/internal/domain"
	"brdge/internal/ports"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second

	outboundBuffer = 128
	inboundBuffer  = 64
)

// Envelope kinds.
const (
	KindData      = "data"
	KindRPC       = "rpc"
	KindRPCResult = "rpc_result"
)

// Envelope is the wire frame shared by client and relay.
type Envelope struct {
	Kind     string          `json:"kind"`
	Topic    string          `json:"topic,omitempty"`
	Method   string          `json:"method,omitempty"`
	ID       string          `json:"id,omitempty"`
	Sender   string          `json:"sender,omitempty"`
	Target   string          `json:"target,omitempty"`
	Reliable bool            `json:"reliable,omitempty"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

// RPCError is the result payload for invocations that never reached a
// handler.
type RPCError struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// Config describes one room connection.
type Config struct {
	URL         string
	Room        string
	Identity    string
	AccessToken string
}

// Client is a live room connection implementing ports.Transport.
type Client struct {
	conn *websocket.Conn

	outbound chan Envelope
	messages chan domain.InboundMessage
	done     chan struct{}
	readDone chan struct{}

	wg        sync.WaitGroup
	closeOnce sync.Once

	stateMu sync.Mutex
	state   domain.ConnState

	handlersMu sync.RWMutex
	handlers   map[string]ports.RPCHandler

	errMu sync.Mutex
	err   error
}

// Dial connects to the room relay and starts the read/write loops. The
// context governs the dial only; once established, the connection lives
// until Close or a transport failure.
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.AccessToken) == "" {
		return nil, errors.New("room access token is not configured")
	}

	wsURL, err := buildRoomURL(cfg)
	if err != nil {
		return nil, err
	}

	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+cfg.AccessToken)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to room relay: %w", err)
	}

	client := &Client{
		conn:     conn,
		outbound: make(chan Envelope, outboundBuffer),
		messages: make(chan domain.InboundMessage, inboundBuffer),
		done:     make(chan struct{}),
		readDone: make(chan struct{}),
		state:    domain.ConnStateConnected,
		handlers: make(map[string]ports.RPCHandler),
	}

	client.wg.Add(2)
	go client.readLoop()
	go client.writeLoop()
	go func() {
		client.wg.Wait()
		client.setState(domain.ConnStateDisconnected)
		close(client.messages)
		close(client.done)
		_ = conn.Close()
	}()

	return client, nil
}

// State reports the current connection state.
func (c *Client) State() domain.ConnState {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.state
}

// Publish sends a data frame on the given topic. Reliable frames block until
// queued; unreliable frames are dropped when the outbound buffer is full,
// matching the loss-tolerant contract of the position broadcast.
func (c *Client) Publish(_ context.Context, topic string, payload []byte, reliable bool) error {
	if c.State() != domain.ConnStateConnected {
		return fmt.Errorf("transport is %s", c.State())
	}

	frame := Envelope{
		Kind:     KindData,
		Topic:    topic,
		Reliable: reliable,
		Payload:  append(json.RawMessage(nil), payload...),
	}

	if reliable {
		select {
		case c.outbound <- frame:
			return nil
		case <-c.done:
			return errors.New("transport closed")
		}
	}

	select {
	case c.outbound <- frame:
		return nil
	case <-c.done:
		return errors.New("transport closed")
	default:
		// Buffer full: an unreliable frame is allowed to be lost.
		return nil
	}
}

// RegisterRPC installs the handler for a method. Registering the same method
// again replaces the previous handler rather than stacking.
func (c *Client) RegisterRPC(method string, handler ports.RPCHandler) error {
	if c.State() != domain.ConnStateConnected {
		return fmt.Errorf("transport is %s", c.State())
	}
	c.handlersMu.Lock()
	c.handlers[method] = handler
	c.handlersMu.Unlock()
	return nil
}

// UnregisterRPC removes the handler for a method.
func (c *Client) UnregisterRPC(method string) {
	c.handlersMu.Lock()
	delete(c.handlers, method)
	c.handlersMu.Unlock()
}

// Messages delivers inbound topic data. The channel closes when the
// connection ends.
func (c *Client) Messages() <-chan domain.InboundMessage {
	return c.messages
}

// Close shuts the connection down. Safe to call repeatedly.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.setState(domain.ConnStateDisconnected)
		_ = c.conn.Close()
	})
	<-c.done
	return c.lastErr()
}

func (c *Client) setState(state domain.ConnState) {
	c.stateMu.Lock()
	c.state = state
	c.stateMu.Unlock()
}

func (c *Client) lastErr() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

func (c *Client) setErr(err error) {
	if err == nil {
		return
	}
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	) {
		return
	}

	c.errMu.Lock()
	defer c.errMu.Unlock()
	if c.err == nil {
		c.err = err
	}
}

func (c *Client) readLoop() {
	defer c.wg.Done()
	// The write loop watches readDone so a connection the relay drops tears
	// down immediately instead of waiting out a ping interval.
	defer close(c.readDone)

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			c.setErr(fmt.Errorf("failed to read room frame: %w", err))
			return
		}

		var frame Envelope
		if err := json.Unmarshal(raw, &frame); err != nil {
			slog.Warn("room frame dropped", "reason", domain.ErrorCodeMalformedMessage, "error", err)
			continue
		}

		switch frame.Kind {
		case KindData:
			c.emit(domain.InboundMessage{
				Topic:      frame.Topic,
				Payload:    frame.Payload,
				SenderName: frame.Sender,
				ReceivedAt: time.Now().UnixMilli(),
			})
		case KindRPC:
			// Handlers may await playback, so invocation must not stall the
			// read loop; the receiver serializes command handling itself.
			go c.dispatchRPC(frame)
		case KindRPCResult:
			// Results for calls this client never issues; nothing to route.
		default:
			slog.Warn("room frame dropped", "reason", domain.ErrorCodeMalformedMessage, "kind", frame.Kind)
		}
	}
}

func (c *Client) dispatchRPC(frame Envelope) {
	c.handlersMu.RLock()
	handler := c.handlers[frame.Method]
	c.handlersMu.RUnlock()

	var result json.RawMessage
	if handler == nil {
		result = mustMarshal(RPCError{Success: false, Error: "unknown method: " + frame.Method})
	} else {
		response, err := handler(context.Background(), frame.Payload)
		if err != nil {
			result = mustMarshal(RPCError{Success: false, Error: err.Error()})
		} else {
			result = response
		}
	}

	reply := Envelope{
		Kind:     KindRPCResult,
		Method:   frame.Method,
		ID:       frame.ID,
		Target:   frame.Sender,
		Reliable: true,
		Payload:  result,
	}
	select {
	case c.outbound <- reply:
	case <-c.done:
	}
}

func (c *Client) writeLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.readDone:
			return
		case frame, ok := <-c.outbound:
			if !ok {
				return
			}
			raw, err := json.Marshal(frame)
			if err != nil {
				slog.Warn("room frame encode failed", "error", err)
				continue
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				c.setErr(fmt.Errorf("failed to send room frame: %w", err))
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.setErr(fmt.Errorf("failed to ping room relay: %w", err))
				return
			}
		}
	}
}

func (c *Client) emit(message domain.InboundMessage) {
	select {
	case c.messages <- message:
	default:
		slog.Warn("inbound room message dropped", "topic", message.Topic, "detail", "buffer full")
	}
}

func buildRoomURL(cfg Config) (string, error) {
	base := strings.TrimSpace(cfg.URL)
	if strings.HasPrefix(base, "https://") {
		base = "wss://" + strings.TrimPrefix(base, "https://")
	} else if strings.HasPrefix(base, "http://") {
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	base = strings.TrimRight(base, "/")

	roomURL, err := url.Parse(base + "/ws")
	if err != nil {
		return "", fmt.Errorf("invalid room relay URL: %w", err)
	}

	query := roomURL.Query()
	query.Set("room", cfg.Room)
	query.Set("identity", cfg.Identity)
	roomURL.RawQuery = query.Encode()
	return roomURL.String(), nil
}

func mustMarshal(v any) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage(`{"success":false,"error":"failed to encode rpc result"}`)
	}
	return raw
}
