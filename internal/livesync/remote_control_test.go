package livesync

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"brdge/internal/domain"
)

func decodeControlResponse(t *testing.T, payload []byte) controlResponse {
	t.Helper()
	var response controlResponse
	if err := json.Unmarshal(payload, &response); err != nil {
		t.Fatalf("response did not decode: %v", err)
	}
	return response
}

func TestRemoteControlPause(t *testing.T) {
	t.Parallel()

	controller := &fakeVideoController{loaded: true, playing: true}
	receiver := NewRemoteControl(controller)

	payload, err := receiver.Handle(context.Background(), []byte(`{"action":"pause"}`))
	if err != nil {
		t.Fatalf("handler must not error: %v", err)
	}
	response := decodeControlResponse(t, payload)
	if !response.Success || response.Action != "pause" {
		t.Fatalf("unexpected response %+v", response)
	}
	if controller.isPlaying() {
		t.Fatalf("video must be paused after the command")
	}
}

func TestRemoteControlPlayAwaitsCompletion(t *testing.T) {
	t.Parallel()

	controller := &fakeVideoController{loaded: true, playDelay: 10 * time.Millisecond}
	receiver := NewRemoteControl(controller)

	payload, err := receiver.Handle(context.Background(), []byte(`{"action":"play"}`))
	if err != nil {
		t.Fatalf("handler must not error: %v", err)
	}
	response := decodeControlResponse(t, payload)
	if !response.Success || response.Action != "play" {
		t.Fatalf("unexpected response %+v", response)
	}
	if !controller.isPlaying() {
		t.Fatalf("response must arrive only after playback actually started")
	}
}

func TestRemoteControlNoVideoLoaded(t *testing.T) {
	t.Parallel()

	receiver := NewRemoteControl(&fakeVideoController{loaded: false})

	payload, _ := receiver.Handle(context.Background(), []byte(`{"action":"pause"}`))
	response := decodeControlResponse(t, payload)
	if response.Success {
		t.Fatalf("expected failure without a loaded video, got %+v", response)
	}
	if response.Error == "" {
		t.Fatalf("failure response must carry a description")
	}
}

func TestRemoteControlPlayFailure(t *testing.T) {
	t.Parallel()

	controller := &fakeVideoController{loaded: true, playErr: errors.New("autoplay blocked")}
	receiver := NewRemoteControl(controller)

	payload, _ := receiver.Handle(context.Background(), []byte(`{"action":"play"}`))
	response := decodeControlResponse(t, payload)
	if response.Success {
		t.Fatalf("expected failure response, got %+v", response)
	}
	if response.Error != "autoplay blocked" {
		t.Fatalf("unexpected error %q", response.Error)
	}
}

func TestRemoteControlMalformedAndUnknownPayloads(t *testing.T) {
	t.Parallel()

	receiver := NewRemoteControl(&fakeVideoController{loaded: true})

	for _, payload := range [][]byte{[]byte(`{`), []byte(`{"action":"rewind"}`), []byte(`{"action":""}`)} {
		response, err := receiver.Handle(context.Background(), payload)
		if err != nil {
			t.Fatalf("handler must answer instead of erroring for %q: %v", payload, err)
		}
		decoded := decodeControlResponse(t, response)
		if decoded.Success {
			t.Fatalf("expected failure for %q, got %+v", payload, decoded)
		}
	}
}

func TestRemoteControlSerializesInvocations(t *testing.T) {
	t.Parallel()

	controller := &fakeVideoController{loaded: true, playDelay: 20 * time.Millisecond}
	receiver := NewRemoteControl(controller)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = receiver.Handle(context.Background(), []byte(`{"action":"play"}`))
		}()
	}
	wg.Wait()

	if got := controller.maxConcurrentPlays(); got != 1 {
		t.Fatalf("invocations must be serialized, saw %d concurrent plays", got)
	}
}

func TestRemoteControlAttachReplacesRegistration(t *testing.T) {
	t.Parallel()

	receiver := NewRemoteControl(&fakeVideoController{loaded: true})

	first := newFakeTransport(domain.ConnStateConnected)
	second := newFakeTransport(domain.ConnStateConnected)

	if err := receiver.Attach(first); err != nil {
		t.Fatalf("attach failed: %v", err)
	}
	if first.handler(MethodControlVideoPlayer) == nil {
		t.Fatalf("expected handler registered on first transport")
	}

	if err := receiver.Attach(second); err != nil {
		t.Fatalf("re-attach failed: %v", err)
	}
	if first.handler(MethodControlVideoPlayer) != nil {
		t.Fatalf("previous registration must be replaced, not stacked")
	}
	if second.handler(MethodControlVideoPlayer) == nil {
		t.Fatalf("expected handler registered on second transport")
	}

	receiver.Detach()
	receiver.Detach()
	if second.handler(MethodControlVideoPlayer) != nil {
		t.Fatalf("detach must unregister the handler")
	}
}

type fakeVideoController struct {
	mu        sync.Mutex
	loaded    bool
	playing   bool
	playErr   error
	playDelay time.Duration

	inFlight      int
	maxConcurrent int
}

func (f *fakeVideoController) Loaded() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loaded
}

func (f *fakeVideoController) Play(_ context.Context, _ domain.PlaybackReason) error {
	f.mu.Lock()
	f.inFlight++
	if f.inFlight > f.maxConcurrent {
		f.maxConcurrent = f.inFlight
	}
	delay := f.playDelay
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.inFlight--
	if f.playErr != nil {
		return f.playErr
	}
	f.playing = true
	return nil
}

func (f *fakeVideoController) Pause(_ domain.PlaybackReason) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.playing = false
	return nil
}

func (f *fakeVideoController) isPlaying() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.playing
}

func (f *fakeVideoController) maxConcurrentPlays() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxConcurrent
}
