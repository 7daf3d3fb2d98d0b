// Package transcript turns the raw inbound chat/transcription stream into a
// display-ready list, merging consecutive turns by the same remote speaker.
package transcript

import (
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"brdge/internal/domain"
)

const (
	// TopicTranscription carries the viewer's own speech-to-text lines.
	TopicTranscription = "transcription"
	// TopicChat carries agent-authored chat messages.
	TopicChat = "chat"
)

type transcriptionPayload struct {
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

type chatPayload struct {
	Message string `json:"message"`
	Text    string `json:"text"`
	Name    string `json:"name"`
}

// Aggregator owns the transcript. The raw stream is folded into kept entries
// on arrival and never retained separately.
type Aggregator struct {
	selfName  string
	agentName string
	now       func() int64

	mu      sync.Mutex
	entries []domain.TranscriptEntry
}

func NewAggregator(selfName, agentName string) *Aggregator {
	if selfName == "" {
		selfName = "You"
	}
	if agentName == "" {
		agentName = "Agent"
	}
	return &Aggregator{
		selfName:  selfName,
		agentName: agentName,
		now:       func() int64 { return time.Now().UnixMilli() },
	}
}

// HandleInbound folds one data-channel frame into the transcript. Malformed
// payloads are logged and dropped; they never reach the display list and
// never raise past the aggregator. The return value reports whether the frame
// changed the transcript.
func (a *Aggregator) HandleInbound(message domain.InboundMessage) bool {
	if len(message.Payload) == 0 {
		slog.Warn("transcript frame dropped", "reason", domain.ErrorCodeMalformedMessage, "topic", message.Topic, "detail", "empty payload")
		return false
	}

	switch message.Topic {
	case TopicTranscription:
		var payload transcriptionPayload
		if err := json.Unmarshal(message.Payload, &payload); err != nil || strings.TrimSpace(payload.Text) == "" {
			slog.Warn("transcript frame dropped", "reason", domain.ErrorCodeMalformedMessage, "topic", message.Topic)
			return false
		}
		timestamp := payload.Timestamp
		if timestamp == 0 {
			timestamp = a.now()
		}
		a.append(a.selfName, payload.Text, true, timestamp, false)
		return true

	case TopicChat:
		var payload chatPayload
		if err := json.Unmarshal(message.Payload, &payload); err != nil {
			slog.Warn("transcript frame dropped", "reason", domain.ErrorCodeMalformedMessage, "topic", message.Topic)
			return false
		}
		text := payload.Message
		if text == "" {
			text = payload.Text
		}
		if strings.TrimSpace(text) == "" {
			slog.Warn("transcript frame dropped", "reason", domain.ErrorCodeMalformedMessage, "topic", message.Topic, "detail", "no message text")
			return false
		}
		speaker := payload.Name
		if speaker == "" {
			speaker = a.agentName
		}
		a.append(speaker, text, false, a.now(), false)
		return true

	default:
		return false
	}
}

// AddLocal appends the user's own outbound message optimistically, before
// transport confirmation.
func (a *Aggregator) AddLocal(text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	a.append(a.selfName, text, true, a.now(), false)
}

// AddErrorLine appends an agent-side error notice to the transcript.
func (a *Aggregator) AddErrorLine(text string) {
	a.append(a.agentName, text, false, a.now(), true)
}

// Entries returns the display list. ShowName is recomputed over the kept
// entries: a block whose predecessor has the same speaker hides its name.
func (a *Aggregator) Entries() []domain.TranscriptEntry {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]domain.TranscriptEntry, len(a.entries))
	copy(out, a.entries)
	for i := range out {
		out[i].ShowName = i == 0 || out[i].SpeakerName != out[i-1].SpeakerName
	}
	return out
}

// append folds a new raw entry into the kept list. A remote entry merges into
// the immediately preceding kept entry when that entry is remote and by the
// same speaker; self entries always start a new block.
func (a *Aggregator) append(speaker, text string, isSelf bool, timestamp int64, isError bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !isSelf && !isError && len(a.entries) > 0 {
		last := &a.entries[len(a.entries)-1]
		if !last.IsSelf && !last.IsError && last.SpeakerName == speaker {
			last.Text += "\n" + text
			last.Timestamp = timestamp
			return
		}
	}

	a.entries = append(a.entries, domain.TranscriptEntry{
		SpeakerName:       speaker,
		Text:              text,
		IsSelf:            isSelf,
		Timestamp:         timestamp,
		OriginalTimestamp: timestamp,
		IsError:           isError,
	})
}
