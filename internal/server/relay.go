package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"brdge/internal/providers/roomws"
)

const (
	relayWriteWait  = 10 * time.Second
	relayPingPeriod = 30 * time.Second
	relaySendBuffer = 128
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Relay fans room frames out between participants: data frames go to every
// other participant, addressed rpc/rpc_result frames go to their target.
// One connection per identity; reconnecting replaces the previous socket.
type Relay struct {
	secret string

	mu    sync.Mutex
	rooms map[string]map[string]*participant
}

func NewRelay(secret string) *Relay {
	return &Relay{
		secret: secret,
		rooms:  make(map[string]map[string]*participant),
	}
}

type participant struct {
	identity string
	room     string
	conn     *websocket.Conn
	send     chan []byte
	once     sync.Once
	closed   chan struct{}
}

// HandleWS upgrades a room connection. The access token must match the
// requested room and identity.
func (r *Relay) HandleWS(w http.ResponseWriter, req *http.Request) {
	room := req.URL.Query().Get("room")
	identity := req.URL.Query().Get("identity")
	if room == "" || identity == "" {
		http.Error(w, "room and identity are required", http.StatusBadRequest)
		return
	}

	claims, err := ValidateRoomToken(r.secret, bearerToken(req))
	if err != nil {
		http.Error(w, "invalid access token", http.StatusUnauthorized)
		return
	}
	if claims.Room != room || claims.Identity != identity {
		http.Error(w, "token does not match room or identity", http.StatusForbidden)
		return
	}

	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}

	p := &participant{
		identity: identity,
		room:     room,
		conn:     conn,
		send:     make(chan []byte, relaySendBuffer),
		closed:   make(chan struct{}),
	}
	r.attach(p)
	go p.writeLoop()
	r.readLoop(p)
}

func (r *Relay) attach(p *participant) {
	var previous *participant

	r.mu.Lock()
	room := r.rooms[p.room]
	if room == nil {
		room = make(map[string]*participant)
		r.rooms[p.room] = room
	}
	if existing := room[p.identity]; existing != nil {
		previous = existing
	}
	room[p.identity] = p
	r.mu.Unlock()

	if previous != nil {
		previous.close(websocket.CloseGoingAway, "session replaced")
	}
	slog.Info("participant joined", "room", p.room, "identity", p.identity)
}

func (r *Relay) detach(p *participant) {
	r.mu.Lock()
	if room := r.rooms[p.room]; room != nil && room[p.identity] == p {
		delete(room, p.identity)
		if len(room) == 0 {
			delete(r.rooms, p.room)
		}
	}
	r.mu.Unlock()

	p.close(websocket.CloseNormalClosure, "leaving")
	slog.Info("participant left", "room", p.room, "identity", p.identity)
}

func (r *Relay) readLoop(p *participant) {
	defer r.detach(p)

	for {
		_, raw, err := p.conn.ReadMessage()
		if err != nil {
			return
		}

		var frame roomws.Envelope
		if err := json.Unmarshal(raw, &frame); err != nil {
			slog.Warn("relay frame dropped", "room", p.room, "error", err)
			continue
		}
		frame.Sender = p.identity

		routed, err := json.Marshal(frame)
		if err != nil {
			continue
		}

		if frame.Target != "" {
			r.deliver(p.room, frame.Target, routed, frame.Reliable)
			continue
		}
		r.broadcast(p.room, p.identity, routed, frame.Reliable)
	}
}

func (r *Relay) deliver(room, identity string, payload []byte, reliable bool) {
	r.mu.Lock()
	target := r.rooms[room][identity]
	r.mu.Unlock()
	if target == nil {
		return
	}
	if err := target.enqueue(payload, reliable); err != nil {
		slog.Warn("relay delivery failed", "room", room, "identity", identity, "error", err)
	}
}

func (r *Relay) broadcast(room, sender string, payload []byte, reliable bool) {
	r.mu.Lock()
	members := make([]*participant, 0, len(r.rooms[room]))
	for identity, member := range r.rooms[room] {
		if identity == sender {
			continue
		}
		members = append(members, member)
	}
	r.mu.Unlock()

	for _, member := range members {
		if err := member.enqueue(payload, reliable); err != nil {
			slog.Warn("relay broadcast failed", "room", room, "identity", member.identity, "error", err)
		}
	}
}

// enqueue queues a frame for delivery. A full buffer drops unreliable frames
// silently; a reliable frame closes the slow connection to keep backpressure
// bounded.
func (p *participant) enqueue(payload []byte, reliable bool) error {
	select {
	case <-p.closed:
		return errors.New("connection closed")
	case p.send <- payload:
		return nil
	default:
		if !reliable {
			return nil
		}
		p.close(websocket.CloseGoingAway, "send buffer full")
		return errors.New("connection buffer exceeded")
	}
}

func (p *participant) close(code int, reason string) {
	p.once.Do(func() {
		close(p.closed)
		_ = p.conn.SetWriteDeadline(time.Now().Add(relayWriteWait))
		_ = p.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(relayWriteWait))
		_ = p.conn.Close()
	})
}

func (p *participant) writeLoop() {
	ticker := time.NewTicker(relayPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-p.closed:
			return
		case payload := <-p.send:
			_ = p.conn.SetWriteDeadline(time.Now().Add(relayWriteWait))
			if err := p.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = p.conn.SetWriteDeadline(time.Now().Add(relayWriteWait))
			if err := p.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func bearerToken(req *http.Request) string {
	header := req.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return req.URL.Query().Get("token")
}
