// Package brdge is the embedding-facing root of the viewer core. One Viewer
// owns playback, live sync, transcript and engagement editing for a single
// presentation session; the embedder supplies the media element and an event
// sink and drives everything through this facade.
package brdge

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"brdge/internal/bootstrap"
	"brdge/internal/config"
	"brdge/internal/domain"
	"brdge/internal/engagement"
	"brdge/internal/livesync"
	"brdge/internal/markers"
	"brdge/internal/playback"
	"brdge/internal/ports"
	"brdge/internal/providers/roomws"
	"brdge/internal/transcript"
)

// TopicAgentControl carries viewer-to-agent control frames, currently only
// the interrupt sent alongside every chat message.
const TopicAgentControl = "agent-control"

type interruptFrame struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}

type roomDialer func(ctx context.Context, cfg roomws.Config) (ports.Transport, error)

// Viewer is the assembled viewer core for one session.
type Viewer struct {
	cfg     config.Config
	events  ports.EventSink
	session bootstrap.Session

	playback    *playback.Controller
	broadcaster *livesync.Broadcaster
	remote      *livesync.RemoteControl
	transcript  *transcript.Aggregator
	engagements *engagement.Store
	tokens      ports.TokenMinter

	dial roomDialer

	mu        sync.Mutex
	transport ports.Transport
	pumpDone  chan struct{}
}

// NewViewer builds the viewer graph for a session. The video starts loading
// immediately when the session names a source.
func NewViewer(media ports.MediaElement, events ports.EventSink, session bootstrap.Session) (*Viewer, error) {
	services, err := bootstrap.Build(media, events, session)
	if err != nil {
		return nil, err
	}

	return &Viewer{
		cfg:         services.Config,
		events:      events,
		session:     session,
		playback:    services.Playback,
		broadcaster: services.Broadcaster,
		remote:      services.Remote,
		transcript:  services.Transcript,
		engagements: services.Engagements,
		tokens:      services.Tokens,
		dial: func(ctx context.Context, cfg roomws.Config) (ports.Transport, error) {
			return roomws.Dial(ctx, cfg)
		},
	}, nil
}

// Connect mints a room token, dials the relay and attaches the live-sync
// components. Calling Connect while connected is a no-op.
func (v *Viewer) Connect(ctx context.Context) error {
	v.mu.Lock()
	if v.transport != nil {
		v.mu.Unlock()
		return nil
	}
	v.mu.Unlock()

	identity, accessToken, err := v.tokens.Mint(ctx, v.session.SessionID, v.session.UserID, v.session.PersonalizationID)
	if err != nil {
		v.events.ViewerError(domain.ErrorCodeConnectFailed, err.Error())
		return fmt.Errorf("failed to mint room token: %w", err)
	}

	transport, err := v.dial(ctx, roomws.Config{
		URL:         v.cfg.Room.URL,
		Room:        v.session.SessionID,
		Identity:    identity,
		AccessToken: accessToken,
	})
	if err != nil {
		v.events.ViewerError(domain.ErrorCodeConnectFailed, err.Error())
		return fmt.Errorf("failed to join room: %w", err)
	}

	v.mu.Lock()
	if v.transport != nil {
		// Lost the race against a concurrent Connect.
		v.mu.Unlock()
		_ = transport.Close()
		return nil
	}
	v.transport = transport
	v.pumpDone = make(chan struct{})
	v.broadcaster.Attach(transport)
	if err := v.remote.Attach(transport); err != nil {
		v.events.ViewerWarning(domain.ErrorCodeTransportUnavailable, err.Error())
	}
	go v.pump(transport, v.pumpDone)
	v.mu.Unlock()

	// Configuration load is non-fatal: the viewer runs on local state until
	// the store becomes reachable again.
	if err := v.engagements.LoadRemote(ctx); err != nil {
		v.events.ViewerWarning(domain.ErrorCodeConfigFetchFailed, err.Error())
	}
	return nil
}

// Disconnect detaches the live-sync components and closes the room
// connection. Safe to call repeatedly.
func (v *Viewer) Disconnect() {
	v.mu.Lock()
	transport := v.transport
	pumpDone := v.pumpDone
	v.transport = nil
	v.pumpDone = nil
	v.mu.Unlock()

	if transport == nil {
		return
	}
	v.broadcaster.Detach()
	v.remote.Detach()
	_ = transport.Close()
	if pumpDone != nil {
		<-pumpDone
	}
}

// Shutdown releases the viewer: the room connection closes and any pending
// engagement write is abandoned.
func (v *Viewer) Shutdown() {
	v.Disconnect()
	v.engagements.Close()
}

// SendChat appends the user's message optimistically and signals the agent to
// stop talking. The transcript update never waits on the network.
func (v *Viewer) SendChat(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	v.transcript.AddLocal(text)
	v.events.TranscriptUpdated(v.transcript.Entries())

	v.mu.Lock()
	transport := v.transport
	v.mu.Unlock()
	if transport == nil {
		v.events.ViewerWarning(domain.ErrorCodeTransportUnavailable, "chat kept locally; not connected to the room")
		return nil
	}

	payload, err := json.Marshal(interruptFrame{Type: "interrupt", Timestamp: time.Now().UnixMilli()})
	if err != nil {
		return err
	}
	if err := transport.Publish(ctx, TopicAgentControl, payload, true); err != nil {
		v.events.ViewerWarning(domain.ErrorCodeTransportUnavailable, err.Error())
		return err
	}
	return nil
}

// Playback exposes the playback controller for UI interaction and media
// element callbacks.
func (v *Viewer) Playback() *playback.Controller {
	return v.playback
}

// Engagements exposes the engagement store for timeline editing.
func (v *Viewer) Engagements() *engagement.Store {
	return v.engagements
}

// Transcript returns the current display-ready transcript.
func (v *Viewer) Transcript() []domain.TranscriptEntry {
	return v.transcript.Entries()
}

// MarkerPositions lays the current engagement markers out over the timeline.
func (v *Viewer) MarkerPositions() []markers.Position {
	return markers.Layout(v.engagements.List(), v.playback.Snapshot().Duration)
}

func (v *Viewer) pump(transport ports.Transport, done chan struct{}) {
	defer close(done)
	for message := range transport.Messages() {
		if v.transcript.HandleInbound(message) {
			v.events.TranscriptUpdated(v.transcript.Entries())
		}
	}
}
