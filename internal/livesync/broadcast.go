// Package livesync keeps the remote agent in step with local playback: an
// outbound throttled position broadcast and an inbound remote-control
// receiver. Both talk to the same transport but never to each other.
package livesync

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"brdge/internal/domain"
	"brdge/internal/ports"
)

// TopicVideoTimestamp carries outbound playback position frames.
const TopicVideoTimestamp = "video-timestamp"

// DefaultBroadcastDelta is the minimum playhead movement, in seconds, between
// two periodic position sends. It bounds the outbound rate to roughly 1.4 Hz
// during continuous playback; no timer is involved, throttling is purely
// delta-based on the element's own event cadence.
const DefaultBroadcastDelta = 0.7

type timestampPayload struct {
	Type string  `json:"type"`
	Time float64 `json:"time"`
}

// Broadcaster pushes the local playback position to the remote peer. It
// implements playback.Observer: play, seek and time-update signals all funnel
// into one send routine, in element order, one gate evaluation per signal.
type Broadcaster struct {
	threshold float64

	mu        sync.Mutex
	transport ports.Transport
	lastSent  *float64
}

func NewBroadcaster(threshold float64) *Broadcaster {
	if threshold <= 0 {
		threshold = DefaultBroadcastDelta
	}
	return &Broadcaster{threshold: threshold}
}

// Attach binds a connected transport. The send gate stays closed until the
// transport reports a connected state.
func (b *Broadcaster) Attach(transport ports.Transport) {
	b.mu.Lock()
	b.transport = transport
	b.mu.Unlock()
}

// Detach stops broadcasting. Safe to call repeatedly.
func (b *Broadcaster) Detach() {
	b.mu.Lock()
	b.transport = nil
	b.lastSent = nil
	b.mu.Unlock()
}

func (b *Broadcaster) PlaybackStarted(currentTime float64) {
	b.send(currentTime, false)
}

// PlaybackSeeked bypasses the delta gate: a discontinuity must reach the
// remote peer immediately, however small.
func (b *Broadcaster) PlaybackSeeked(currentTime float64) {
	b.send(currentTime, true)
}

func (b *Broadcaster) PlaybackTicked(currentTime float64) {
	b.send(currentTime, false)
}

// LastSent exposes the throttle watermark, or nil before the first send.
func (b *Broadcaster) LastSent() *float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.lastSent == nil {
		return nil
	}
	v := *b.lastSent
	return &v
}

func (b *Broadcaster) send(currentTime float64, force bool) {
	b.mu.Lock()
	transport := b.transport
	if transport == nil {
		b.mu.Unlock()
		return
	}
	if state := transport.State(); state != domain.ConnStateConnected {
		b.mu.Unlock()
		slog.Debug("timestamp broadcast skipped", "reason", domain.ErrorCodeTransportUnavailable, "state", state)
		return
	}
	if !force && b.lastSent != nil && abs(currentTime-*b.lastSent) < b.threshold {
		b.mu.Unlock()
		return
	}
	b.mu.Unlock()

	payload, err := json.Marshal(timestampPayload{Type: "timestamp", Time: currentTime})
	if err != nil {
		slog.Warn("timestamp broadcast encode failed", "error", err)
		return
	}
	if err := transport.Publish(context.Background(), TopicVideoTimestamp, payload, false); err != nil {
		// Loss-tolerant channel: report and leave the watermark alone so the
		// next eligible tick retries.
		slog.Warn("timestamp broadcast send failed", "error", err)
		return
	}

	b.mu.Lock()
	sent := currentTime
	b.lastSent = &sent
	b.mu.Unlock()
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
