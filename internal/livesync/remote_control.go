package livesync

import (
	"context"
	"encoding/json"
	"sync"

	"brdge/internal/domain"
	"brdge/internal/ports"
)

// MethodControlVideoPlayer is the RPC method the remote agent invokes to
// drive the local video.
const MethodControlVideoPlayer = "controlVideoPlayer"

const (
	actionPlay  = "play"
	actionPause = "pause"
)

// VideoController is the slice of the playback controller the receiver
// drives. Remote commands share the controller's state machine with local
// interaction; nothing here touches the element directly.
type VideoController interface {
	Loaded() bool
	Play(ctx context.Context, reason domain.PlaybackReason) error
	Pause(reason domain.PlaybackReason) error
}

type controlRequest struct {
	Action string `json:"action"`
}

type controlResponse struct {
	Success bool   `json:"success"`
	Action  string `json:"action,omitempty"`
	Error   string `json:"error,omitempty"`
}

// RemoteControl answers "controlVideoPlayer" invocations from the agent side.
// Every invocation gets a response, including payload failures; invocations
// are serialized so a pending play attempt cannot interleave with the next
// command.
type RemoteControl struct {
	controller VideoController

	attachMu  sync.Mutex
	transport ports.Transport

	handleMu sync.Mutex
}

func NewRemoteControl(controller VideoController) *RemoteControl {
	return &RemoteControl{controller: controller}
}

// Attach registers the RPC handler on the transport. Registering again on a
// new transport replaces the previous registration rather than stacking.
func (r *RemoteControl) Attach(transport ports.Transport) error {
	r.attachMu.Lock()
	defer r.attachMu.Unlock()

	if r.transport != nil {
		r.transport.UnregisterRPC(MethodControlVideoPlayer)
	}
	if err := transport.RegisterRPC(MethodControlVideoPlayer, r.Handle); err != nil {
		return err
	}
	r.transport = transport
	return nil
}

// Detach unregisters the handler. Safe to call repeatedly.
func (r *RemoteControl) Detach() {
	r.attachMu.Lock()
	defer r.attachMu.Unlock()

	if r.transport == nil {
		return
	}
	r.transport.UnregisterRPC(MethodControlVideoPlayer)
	r.transport = nil
}

// Handle applies one remote command and reports the outcome to the caller.
// The returned error is always nil: payload and playback failures travel in
// the response body so the RPC is never left unanswered.
func (r *RemoteControl) Handle(ctx context.Context, payload []byte) ([]byte, error) {
	r.handleMu.Lock()
	defer r.handleMu.Unlock()

	var request controlRequest
	if err := json.Unmarshal(payload, &request); err != nil {
		return respond(controlResponse{Success: false, Error: "malformed control payload: " + err.Error()})
	}

	if !r.controller.Loaded() {
		return respond(controlResponse{Success: false, Error: "no video loaded"})
	}

	switch request.Action {
	case actionPause:
		if err := r.controller.Pause(domain.PlaybackReasonRemotePause); err != nil {
			return respond(controlResponse{Success: false, Error: err.Error()})
		}
		return respond(controlResponse{Success: true, Action: actionPause})
	case actionPlay:
		// Resume is awaited: the caller hears back only once playback has
		// truly started or the attempt failed.
		if err := r.controller.Play(ctx, domain.PlaybackReasonRemotePlay); err != nil {
			return respond(controlResponse{Success: false, Error: err.Error()})
		}
		return respond(controlResponse{Success: true, Action: actionPlay})
	default:
		return respond(controlResponse{Success: false, Error: "unsupported action: " + request.Action})
	}
}

func respond(response controlResponse) ([]byte, error) {
	payload, err := json.Marshal(response)
	if err != nil {
		return []byte(`{"success":false,"error":"failed to encode response"}`), nil
	}
	return payload, nil
}
