package ports

import (
	"context"

	"brdge/internal/domain"
)

// MediaElement is the single mutation path to the underlying video element.
// Play completion is asynchronous: the call returns once playback has truly
// started or the attempt has been rejected.
type MediaElement interface {
	Load(url string)
	Play(ctx context.Context) error
	Pause() error
	Seek(seconds float64) error
}

// RPCHandler answers a named remote-procedure invocation. The returned bytes
// are delivered to the caller verbatim; a handler must always produce a
// response rather than an error for payload-level failures.
type RPCHandler func(ctx context.Context, payload []byte) ([]byte, error)

// Transport is the real-time room session: connection state, a data channel
// addressed by topic, and a remote-procedure registry keyed by method name.
type Transport interface {
	State() domain.ConnState
	Publish(ctx context.Context, topic string, payload []byte, reliable bool) error
	RegisterRPC(method string, handler RPCHandler) error
	UnregisterRPC(method string)
	Messages() <-chan domain.InboundMessage
	Close() error
}

// ConfigStore reads and replaces the per-session agent configuration.
type ConfigStore interface {
	Fetch(ctx context.Context, sessionID string) (domain.AgentConfig, error)
	Save(ctx context.Context, sessionID string, cfg domain.AgentConfig) error
}

// TokenMinter exchanges session/user identifiers for a room access token.
type TokenMinter interface {
	Mint(ctx context.Context, sessionID, userID, personalizationID string) (identity string, accessToken string, err error)
}

// EventSink emits viewer state and errors to the UI.
type EventSink interface {
	PlaybackStateChanged(status domain.PlaybackStatus, reason domain.PlaybackReason)
	TranscriptUpdated(entries []domain.TranscriptEntry)
	EngagementsUpdated(opportunities []domain.EngagementOpportunity)
	ViewerWarning(code domain.ErrorCode, detail string)
	ViewerError(code domain.ErrorCode, detail string)
}
