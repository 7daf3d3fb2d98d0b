package playback

import (
	"context"
	"errors"
	"sync"
	"testing"

	"brdge/internal/domain"
)

func newTestController(media *fakeMedia, sink *fakeEventSink, observer *fakeObserver) *Controller {
	var obs Observer
	if observer != nil {
		obs = observer
	}
	return NewController(media, sink, obs)
}

func readyController(t *testing.T, media *fakeMedia, sink *fakeEventSink, observer *fakeObserver) *Controller {
	t.Helper()
	controller := newTestController(media, sink, observer)
	controller.LoadSource("https://cdn.example.com/lecture.mp4")
	controller.HandleReady(300)
	return controller
}

func TestControllerLoadReadyPlayPause(t *testing.T) {
	t.Parallel()

	media := &fakeMedia{}
	sink := &fakeEventSink{}
	controller := readyController(t, media, sink, nil)

	status := controller.Snapshot()
	if status.State != domain.PlaybackStateReady || !status.IsReady {
		t.Fatalf("expected ready state, got %+v", status)
	}
	if status.Duration != 300 {
		t.Fatalf("expected duration 300, got %v", status.Duration)
	}

	if err := controller.Play(context.Background(), domain.PlaybackReasonUserPlay); err != nil {
		t.Fatalf("play failed: %v", err)
	}
	if got := controller.Snapshot(); !got.IsPlaying {
		t.Fatalf("expected playing, got %+v", got)
	}

	if err := controller.Pause(domain.PlaybackReasonUserPause); err != nil {
		t.Fatalf("pause failed: %v", err)
	}
	if got := controller.Snapshot(); got.State != domain.PlaybackStatePaused {
		t.Fatalf("expected paused, got %+v", got)
	}
	if media.pauseCalls != 1 {
		t.Fatalf("expected one element pause, got %d", media.pauseCalls)
	}
}

func TestControllerPlayWithoutSource(t *testing.T) {
	t.Parallel()

	controller := newTestController(&fakeMedia{}, &fakeEventSink{}, nil)
	if err := controller.Play(context.Background(), domain.PlaybackReasonUserPlay); !errors.Is(err, ErrNoSource) {
		t.Fatalf("expected ErrNoSource, got %v", err)
	}
}

func TestControllerPlayRejectionBecomesError(t *testing.T) {
	t.Parallel()

	media := &fakeMedia{playErr: errors.New("autoplay blocked")}
	sink := &fakeEventSink{}
	controller := readyController(t, media, sink, nil)
	controller.HandleTimeUpdate(12)

	err := controller.Play(context.Background(), domain.PlaybackReasonUserPlay)
	if err == nil {
		t.Fatalf("expected play rejection to propagate")
	}

	status := controller.Snapshot()
	if status.State != domain.PlaybackStateError {
		t.Fatalf("expected error state, got %s", status.State)
	}
	if status.LastError != domain.ErrorCodePlaybackFailed {
		t.Fatalf("expected playback_failed, got %s", status.LastError)
	}
	if status.CurrentTime != 12 {
		t.Fatalf("rejected play must not alter the playhead, got %v", status.CurrentTime)
	}

	reported := sink.snapshotErrors()
	if len(reported) != 1 || reported[0].code != domain.ErrorCodePlaybackFailed {
		t.Fatalf("expected surfaced playback error, got %+v", reported)
	}
}

func TestControllerRetryAfterError(t *testing.T) {
	t.Parallel()

	media := &fakeMedia{playErr: errors.New("decode error")}
	controller := readyController(t, media, &fakeEventSink{}, nil)
	_ = controller.Play(context.Background(), domain.PlaybackReasonUserPlay)

	if err := controller.Retry(); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	status := controller.Snapshot()
	if status.State != domain.PlaybackStateLoading {
		t.Fatalf("expected loading after retry, got %s", status.State)
	}
	if status.LastError != "" {
		t.Fatalf("retry must clear the last error, got %s", status.LastError)
	}
	if media.loadCalls != 2 {
		t.Fatalf("expected element reload on retry, got %d loads", media.loadCalls)
	}
}

func TestControllerSeekClampsAndNotifies(t *testing.T) {
	t.Parallel()

	media := &fakeMedia{}
	observer := &fakeObserver{}
	controller := readyController(t, media, &fakeEventSink{}, observer)

	if err := controller.Seek(9999); err != nil {
		t.Fatalf("seek failed: %v", err)
	}
	if got := controller.Snapshot().CurrentTime; got != 300 {
		t.Fatalf("expected clamp to duration, got %v", got)
	}

	if err := controller.Seek(-4); err != nil {
		t.Fatalf("seek failed: %v", err)
	}
	if got := controller.Snapshot().CurrentTime; got != 0 {
		t.Fatalf("expected clamp to zero, got %v", got)
	}

	seeks := observer.snapshotSeeked()
	if len(seeks) != 2 || seeks[0] != 300 || seeks[1] != 0 {
		t.Fatalf("expected seek notifications [300 0], got %v", seeks)
	}
}

func TestControllerClickTogglesOnlyWhenReady(t *testing.T) {
	t.Parallel()

	media := &fakeMedia{}
	controller := newTestController(media, &fakeEventSink{}, nil)

	// Unloaded and loading: clicks are ignored.
	controller.HandleClick(context.Background())
	controller.LoadSource("https://cdn.example.com/lecture.mp4")
	controller.HandleClick(context.Background())
	if media.playCalls != 0 {
		t.Fatalf("click before readiness must be a no-op")
	}

	controller.HandleReady(300)
	controller.HandleClick(context.Background())
	if got := controller.Snapshot(); !got.IsPlaying {
		t.Fatalf("click on ready video must start playback, got %+v", got)
	}
	controller.HandleClick(context.Background())
	if got := controller.Snapshot(); got.State != domain.PlaybackStatePaused {
		t.Fatalf("click on playing video must pause, got %+v", got)
	}
}

func TestControllerSourceChangeResetsReadiness(t *testing.T) {
	t.Parallel()

	controller := readyController(t, &fakeMedia{}, &fakeEventSink{}, nil)
	controller.HandleTimeUpdate(42)

	controller.LoadSource("https://cdn.example.com/other.mp4")
	status := controller.Snapshot()
	if status.State != domain.PlaybackStateLoading || status.IsReady {
		t.Fatalf("expected not-ready loading state, got %+v", status)
	}
	if status.CurrentTime != 0 || status.Duration != 0 {
		t.Fatalf("expected reset clock, got %+v", status)
	}
}

func TestControllerTimeUpdatesDriveObserver(t *testing.T) {
	t.Parallel()

	observer := &fakeObserver{}
	controller := readyController(t, &fakeMedia{}, &fakeEventSink{}, observer)

	controller.HandleTimeUpdate(1.5)
	controller.HandleTimeUpdate(2.5)
	if ticks := observer.snapshotTicked(); len(ticks) != 2 || ticks[1] != 2.5 {
		t.Fatalf("expected two ticks ending at 2.5, got %v", ticks)
	}
	if got := controller.Snapshot().CurrentTime; got != 2.5 {
		t.Fatalf("expected canonical clock at 2.5, got %v", got)
	}
}

func TestControllerEndedPausesAtDuration(t *testing.T) {
	t.Parallel()

	controller := readyController(t, &fakeMedia{}, &fakeEventSink{}, nil)
	if err := controller.Play(context.Background(), domain.PlaybackReasonUserPlay); err != nil {
		t.Fatalf("play failed: %v", err)
	}

	controller.HandleEnded()
	status := controller.Snapshot()
	if status.State != domain.PlaybackStatePaused || status.CurrentTime != 300 {
		t.Fatalf("expected paused at end, got %+v", status)
	}
}

type fakeMedia struct {
	mu         sync.Mutex
	playErr    error
	loadCalls  int
	playCalls  int
	pauseCalls int
	seekCalls  []float64
}

func (f *fakeMedia) Load(_ string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loadCalls++
}

func (f *fakeMedia) Play(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.playCalls++
	return f.playErr
}

func (f *fakeMedia) Pause() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pauseCalls++
	return nil
}

func (f *fakeMedia) Seek(seconds float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seekCalls = append(f.seekCalls, seconds)
	return nil
}

type fakeObserver struct {
	mu      sync.Mutex
	started []float64
	seeked  []float64
	ticked  []float64
}

func (f *fakeObserver) PlaybackStarted(t float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, t)
}

func (f *fakeObserver) PlaybackSeeked(t float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seeked = append(f.seeked, t)
}

func (f *fakeObserver) PlaybackTicked(t float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ticked = append(f.ticked, t)
}

func (f *fakeObserver) snapshotSeeked() []float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]float64(nil), f.seeked...)
}

func (f *fakeObserver) snapshotTicked() []float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]float64(nil), f.ticked...)
}

type fakeEventSink struct {
	mu       sync.Mutex
	states   []stateChange
	errors   []sinkError
	warnings []sinkError
}

type stateChange struct {
	status domain.PlaybackStatus
	reason domain.PlaybackReason
}

type sinkError struct {
	code   domain.ErrorCode
	detail string
}

func (f *fakeEventSink) PlaybackStateChanged(status domain.PlaybackStatus, reason domain.PlaybackReason) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states = append(f.states, stateChange{status: status, reason: reason})
}

func (f *fakeEventSink) TranscriptUpdated(_ []domain.TranscriptEntry) {}

func (f *fakeEventSink) EngagementsUpdated(_ []domain.EngagementOpportunity) {}

func (f *fakeEventSink) ViewerWarning(code domain.ErrorCode, detail string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.warnings = append(f.warnings, sinkError{code: code, detail: detail})
}

func (f *fakeEventSink) ViewerError(code domain.ErrorCode, detail string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = append(f.errors, sinkError{code: code, detail: detail})
}

func (f *fakeEventSink) snapshotErrors() []sinkError {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sinkError(nil), f.errors...)
}
