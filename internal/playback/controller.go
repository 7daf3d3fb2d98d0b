// Package playback owns the single video element's play/pause/seek state.
// Remote control commands and local user interaction both route through the
// Controller, so there is exactly one authoritative state machine.
package playback

import (
	"context"
	"errors"
	"math"
	"sync"

	"brdge/internal/domain"
	"brdge/internal/ports"
)

var (
	ErrNoSource = errors.New("no video source loaded")
	ErrNotReady = errors.New("video is not ready for playback")
)

// Observer receives the playback signals the broadcast channel feeds on.
// Callbacks run synchronously on the event that produced them and must not
// call back into the Controller.
type Observer interface {
	PlaybackStarted(currentTime float64)
	PlaybackSeeked(currentTime float64)
	PlaybackTicked(currentTime float64)
}

// Controller drives a ports.MediaElement through the
// unloaded → loading → ready ⇄ playing ⇄ paused lifecycle.
type Controller struct {
	media    ports.MediaElement
	events   ports.EventSink
	observer Observer

	mu          sync.Mutex
	state       domain.PlaybackState
	sourceURL   string
	currentTime float64
	duration    float64
	lastError   domain.ErrorCode
}

func NewController(media ports.MediaElement, events ports.EventSink, observer Observer) *Controller {
	return &Controller{
		media:    media,
		events:   events,
		observer: observer,
		state:    domain.PlaybackStateUnloaded,
	}
}

// LoadSource assigns a media source and tells the element to reload.
// Assigning a new URL over an existing one resets readiness and position.
func (c *Controller) LoadSource(url string) {
	c.mu.Lock()
	reason := domain.PlaybackReasonSourceAssigned
	if c.sourceURL != "" && c.sourceURL != url {
		reason = domain.PlaybackReasonSourceChanged
	}
	c.sourceURL = url
	c.state = domain.PlaybackStateLoading
	c.currentTime = 0
	c.duration = 0
	c.lastError = ""
	c.mu.Unlock()

	c.media.Load(url)
	c.notify(reason)
}

// Retry reloads the current source after a playback error.
func (c *Controller) Retry() error {
	c.mu.Lock()
	if c.sourceURL == "" {
		c.mu.Unlock()
		return ErrNoSource
	}
	url := c.sourceURL
	c.state = domain.PlaybackStateLoading
	c.lastError = ""
	c.mu.Unlock()

	c.media.Load(url)
	c.notify(domain.PlaybackReasonRetry)
	return nil
}

// Play attempts to start playback and waits for the attempt to resolve. The
// caller must not assume the video is playing before Play returns. A rejected
// attempt (autoplay policy, network stall, decode error) moves the controller
// to the error state with the playhead untouched and is reported for retry.
func (c *Controller) Play(ctx context.Context, reason domain.PlaybackReason) error {
	c.mu.Lock()
	switch c.state {
	case domain.PlaybackStateUnloaded:
		c.mu.Unlock()
		return ErrNoSource
	case domain.PlaybackStateReady, domain.PlaybackStatePaused:
	default:
		state := c.state
		c.mu.Unlock()
		if state == domain.PlaybackStatePlaying {
			return nil
		}
		return ErrNotReady
	}
	url := c.sourceURL
	c.mu.Unlock()

	err := c.media.Play(ctx)

	c.mu.Lock()
	if c.sourceURL != url {
		// Source swapped while the attempt was in flight; its outcome no
		// longer describes the current element.
		c.mu.Unlock()
		return err
	}
	if err != nil {
		c.state = domain.PlaybackStateError
		c.lastError = domain.ErrorCodePlaybackFailed
		detail := err.Error()
		c.mu.Unlock()
		c.events.ViewerError(domain.ErrorCodePlaybackFailed, detail)
		c.notify(domain.PlaybackReasonPlayFailed)
		return err
	}
	c.state = domain.PlaybackStatePlaying
	currentTime := c.currentTime
	c.mu.Unlock()

	c.notify(reason)
	if c.observer != nil {
		c.observer.PlaybackStarted(currentTime)
	}
	return nil
}

// Pause stops playback. Pausing an already paused or ready video is a no-op;
// pausing with no loaded video is an error.
func (c *Controller) Pause(reason domain.PlaybackReason) error {
	c.mu.Lock()
	if c.state == domain.PlaybackStateUnloaded {
		c.mu.Unlock()
		return ErrNoSource
	}
	if c.state != domain.PlaybackStatePlaying {
		c.mu.Unlock()
		return nil
	}
	c.state = domain.PlaybackStatePaused
	c.mu.Unlock()

	if err := c.media.Pause(); err != nil {
		c.events.ViewerWarning(domain.ErrorCodePlaybackFailed, err.Error())
	}
	c.notify(reason)
	return nil
}

// Seek moves the playhead, clamping to [0, duration]. Seeking is allowed in
// any loaded state and always emits a seeked notification so the broadcast
// channel can sync the discontinuity immediately.
func (c *Controller) Seek(toSeconds float64) error {
	c.mu.Lock()
	if c.state == domain.PlaybackStateUnloaded {
		c.mu.Unlock()
		return ErrNoSource
	}
	clamped := clamp(toSeconds, 0, c.duration)
	c.currentTime = clamped
	c.mu.Unlock()

	if err := c.media.Seek(clamped); err != nil {
		c.events.ViewerWarning(domain.ErrorCodePlaybackFailed, err.Error())
	}
	c.notify(domain.PlaybackReasonSeeked)
	if c.observer != nil {
		c.observer.PlaybackSeeked(clamped)
	}
	return nil
}

// HandleClick toggles playback for a click on the video surface. Clicks are
// ignored while loading or errored.
func (c *Controller) HandleClick(ctx context.Context) {
	c.mu.Lock()
	state := c.state
	c.mu.Unlock()

	switch state {
	case domain.PlaybackStatePlaying:
		_ = c.Pause(domain.PlaybackReasonUserPause)
	case domain.PlaybackStateReady, domain.PlaybackStatePaused:
		_ = c.Play(ctx, domain.PlaybackReasonUserPlay)
	}
}

// HandleReady records the element reporting playable readiness.
func (c *Controller) HandleReady(duration float64) {
	c.mu.Lock()
	if c.state != domain.PlaybackStateLoading {
		c.mu.Unlock()
		return
	}
	c.state = domain.PlaybackStateReady
	if duration > 0 && !math.IsInf(duration, 0) && !math.IsNaN(duration) {
		c.duration = duration
	}
	c.mu.Unlock()

	c.notify(domain.PlaybackReasonMediaReady)
}

// HandleTimeUpdate refreshes the canonical clock from the element's
// time-update stream. Each update triggers at most one broadcast evaluation.
func (c *Controller) HandleTimeUpdate(currentTime float64) {
	c.mu.Lock()
	if c.state == domain.PlaybackStateUnloaded || c.state == domain.PlaybackStateLoading {
		c.mu.Unlock()
		return
	}
	c.currentTime = clamp(currentTime, 0, c.duration)
	clamped := c.currentTime
	c.mu.Unlock()

	if c.observer != nil {
		c.observer.PlaybackTicked(clamped)
	}
}

// HandleEnded marks the end of the media stream.
func (c *Controller) HandleEnded() {
	c.mu.Lock()
	if c.state != domain.PlaybackStatePlaying {
		c.mu.Unlock()
		return
	}
	c.state = domain.PlaybackStatePaused
	if c.duration > 0 {
		c.currentTime = c.duration
	}
	c.mu.Unlock()

	c.notify(domain.PlaybackReasonEnded)
}

// HandleElementError records a media failure reported by the element itself.
func (c *Controller) HandleElementError(detail string) {
	c.mu.Lock()
	if c.state == domain.PlaybackStateUnloaded {
		c.mu.Unlock()
		return
	}
	c.state = domain.PlaybackStateError
	c.lastError = domain.ErrorCodePlaybackFailed
	c.mu.Unlock()

	c.events.ViewerError(domain.ErrorCodePlaybackFailed, detail)
	c.notify(domain.PlaybackReasonMediaError)
}

// Snapshot returns the canonical playback clock and state.
func (c *Controller) Snapshot() domain.PlaybackStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusLocked()
}

// Loaded reports whether a media source is currently assigned.
func (c *Controller) Loaded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state != domain.PlaybackStateUnloaded
}

func (c *Controller) statusLocked() domain.PlaybackStatus {
	return domain.PlaybackStatus{
		State:       c.state,
		SourceURL:   c.sourceURL,
		CurrentTime: c.currentTime,
		Duration:    c.duration,
		IsPlaying:   c.state == domain.PlaybackStatePlaying,
		IsReady:     c.state == domain.PlaybackStateReady || c.state == domain.PlaybackStatePlaying || c.state == domain.PlaybackStatePaused,
		LastError:   c.lastError,
	}
}

func (c *Controller) notify(reason domain.PlaybackReason) {
	c.mu.Lock()
	status := c.statusLocked()
	c.mu.Unlock()
	c.events.PlaybackStateChanged(status, reason)
}

func clamp(value, low, high float64) float64 {
	if value < low {
		return low
	}
	if high > 0 && value > high {
		return high
	}
	return value
}
