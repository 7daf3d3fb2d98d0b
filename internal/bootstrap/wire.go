package bootstrap

import (
	"errors"

	"brdge/internal/agentconfig"
	"brdge/internal/config"
	"brdge/internal/engagement"
	"brdge/internal/livesync"
	"brdge/internal/playback"
	"brdge/internal/ports"
	"brdge/internal/token"
	"brdge/internal/transcript"
)

// Session identifies one viewer sitting in one presentation session.
type Session struct {
	SessionID         string
	UserID            string
	PersonalizationID string
	VideoURL          string
}

// Services is the assembled runtime graph.
type Services struct {
	Config      config.Config
	Playback    *playback.Controller
	Broadcaster *livesync.Broadcaster
	Remote      *livesync.RemoteControl
	Transcript  *transcript.Aggregator
	Engagements *engagement.Store
	Tokens      ports.TokenMinter
}

// Build wires all viewer dependencies for the current runtime.
func Build(media ports.MediaElement, events ports.EventSink, session Session) (Services, error) {
	if session.SessionID == "" {
		return Services{}, errors.New("session id is required")
	}

	cfg, err := config.Load()
	if err != nil {
		return Services{}, err
	}

	broadcaster := livesync.NewBroadcaster(cfg.Viewer.BroadcastDelta)
	controller := playback.NewController(media, events, broadcaster)
	if session.VideoURL != "" {
		controller.LoadSource(session.VideoURL)
	}

	return Services{
		Config:      cfg,
		Playback:    controller,
		Broadcaster: broadcaster,
		Remote:      livesync.NewRemoteControl(controller),
		Transcript:  transcript.NewAggregator(cfg.Viewer.SelfName, cfg.Viewer.AgentName),
		Engagements: engagement.NewStore(
			session.SessionID,
			agentconfig.NewClient(cfg.API.BaseURL),
			events,
			cfg.Viewer.PersistInterval,
		),
		Tokens: token.NewClient(cfg.API.BaseURL),
	}, nil
}
