package domain

// PlaybackState models the viewer's video element lifecycle.
type PlaybackState string

const (
	PlaybackStateUnloaded PlaybackState = "unloaded"
	PlaybackStateLoading  PlaybackState = "loading"
	PlaybackStateReady    PlaybackState = "ready"
	PlaybackStatePlaying  PlaybackState = "playing"
	PlaybackStatePaused   PlaybackState = "paused"
	PlaybackStateError    PlaybackState = "error"
)

// PlaybackReason provides a structured reason for playback transitions.
type PlaybackReason string

const (
	PlaybackReasonSourceAssigned PlaybackReason = "source_assigned"
	PlaybackReasonSourceChanged  PlaybackReason = "source_changed"
	PlaybackReasonMediaReady     PlaybackReason = "media_ready"
	PlaybackReasonUserPlay       PlaybackReason = "user_play"
	PlaybackReasonUserPause      PlaybackReason = "user_pause"
	PlaybackReasonRemotePlay     PlaybackReason = "remote_play"
	PlaybackReasonRemotePause    PlaybackReason = "remote_pause"
	PlaybackReasonSeeked         PlaybackReason = "seeked"
	PlaybackReasonEnded          PlaybackReason = "ended"
	PlaybackReasonPlayFailed     PlaybackReason = "play_failed"
	PlaybackReasonMediaError     PlaybackReason = "media_error"
	PlaybackReasonRetry          PlaybackReason = "retry"
)

// ErrorCode identifies non-fatal viewer errors.
type ErrorCode string

const (
	ErrorCodePlaybackFailed       ErrorCode = "playback_failed"
	ErrorCodeTransportUnavailable ErrorCode = "transport_unavailable"
	ErrorCodeMalformedMessage     ErrorCode = "malformed_message"
	ErrorCodePersistenceFailed    ErrorCode = "persistence_failed"
	ErrorCodeConnectFailed        ErrorCode = "connect_failed"
	ErrorCodeConfigFetchFailed    ErrorCode = "config_fetch_failed"
)

// ConnState mirrors the real-time room connection lifecycle.
type ConnState string

const (
	ConnStateConnecting   ConnState = "connecting"
	ConnStateConnected    ConnState = "connected"
	ConnStateReconnecting ConnState = "reconnecting"
	ConnStateDisconnected ConnState = "disconnected"
)

// PlaybackStatus is the canonical clock snapshot every other component reads.
type PlaybackStatus struct {
	State       PlaybackState `json:"state"`
	SourceURL   string        `json:"sourceUrl"`
	CurrentTime float64       `json:"currentTime"`
	Duration    float64       `json:"duration"`
	IsPlaying   bool          `json:"isPlaying"`
	IsReady     bool          `json:"isReady"`
	LastError   ErrorCode     `json:"lastError,omitempty"`
}

// EngagementType distinguishes quiz prompts from discussion prompts.
type EngagementType string

const (
	EngagementTypeQuiz       EngagementType = "quiz"
	EngagementTypeDiscussion EngagementType = "discussion"
)

// QuestionType identifies how a quiz item is answered.
type QuestionType string

const (
	QuestionTypeMultipleChoice QuestionType = "multiple_choice"
	QuestionTypeShortAnswer    QuestionType = "short_answer"
	QuestionTypeDiscussion     QuestionType = "discussion"
)

// QuizItem is a single question inside an engagement opportunity.
type QuizItem struct {
	Question             string       `json:"question"`
	QuestionType         QuestionType `json:"question_type"`
	Options              []string     `json:"options,omitempty"`
	CorrectOption        string       `json:"correct_option,omitempty"`
	ExpectedAnswer       string       `json:"expected_answer,omitempty"`
	AlternativePhrasings []string     `json:"alternative_phrasings,omitempty"`
}

// EngagementOpportunity is a timestamp-anchored interactive moment on the timeline.
type EngagementOpportunity struct {
	ID                string         `json:"id"`
	Timestamp         string         `json:"timestamp"`
	EngagementType    EngagementType `json:"engagement_type"`
	Rationale         string         `json:"rationale,omitempty"`
	ConceptsAddressed []string       `json:"concepts_addressed,omitempty"`
	QuizItems         []QuizItem     `json:"quiz_items,omitempty"`
	SectionID         string         `json:"section_id,omitempty"`
}

// AgentConfig is the full session configuration held by the config store.
// PUT semantics are full-replace, so the struct always travels whole.
type AgentConfig struct {
	EngagementOpportunities []EngagementOpportunity `json:"engagement_opportunities"`
	TeachingPersona         map[string]any          `json:"teaching_persona,omitempty"`
}

// TranscriptEntry is one display block of the chat/transcript panel.
type TranscriptEntry struct {
	SpeakerName string `json:"speakerName"`
	Text        string `json:"text"`
	IsSelf      bool   `json:"isSelf"`
	Timestamp   int64  `json:"timestamp"`
	// OriginalTimestamp survives turn merging so list keys stay stable.
	OriginalTimestamp int64 `json:"originalTimestamp,omitempty"`
	IsError           bool  `json:"isError,omitempty"`
	ShowName          bool  `json:"showName"`
}

// InboundMessage is one data-channel frame delivered by the transport.
type InboundMessage struct {
	Topic      string `json:"topic"`
	Payload    []byte `json:"payload"`
	SenderName string `json:"senderName,omitempty"`
	ReceivedAt int64  `json:"receivedAt"`
}
