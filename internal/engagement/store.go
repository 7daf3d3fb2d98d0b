// Package engagement is the client-side cache of engagement opportunities.
// Mutations apply locally first, then a debounced full-config write follows;
// the store is last-writer-wins against the remote config.
package engagement

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/google/uuid"

	"brdge/internal/domain"
	"brdge/internal/ports"
	"brdge/internal/timecode"
)

// DefaultPersistInterval is how long edits must settle before a write goes
// out to the config store.
const DefaultPersistInterval = time.Second

var ErrNotFound = errors.New("engagement opportunity not found")

// Store holds the session's engagement opportunities and teaching persona.
type Store struct {
	sessionID string
	remote    ports.ConfigStore
	events    ports.EventSink
	debounced func(func())

	mu            sync.Mutex
	opportunities []domain.EngagementOpportunity
	persona       map[string]any
	closed        bool
}

func NewStore(sessionID string, remote ports.ConfigStore, events ports.EventSink, persistInterval time.Duration) *Store {
	if persistInterval <= 0 {
		persistInterval = DefaultPersistInterval
	}
	return &Store{
		sessionID: sessionID,
		remote:    remote,
		events:    events,
		debounced: debounce.New(persistInterval),
	}
}

// LoadRemote replaces local state with the config store's current document.
func (s *Store) LoadRemote(ctx context.Context) error {
	cfg, err := s.remote.Fetch(ctx, s.sessionID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.opportunities = append([]domain.EngagementOpportunity(nil), cfg.EngagementOpportunities...)
	s.persona = cfg.TeachingPersona
	s.mu.Unlock()

	s.events.EngagementsUpdated(s.List())
	return nil
}

// List returns a copy of the current opportunity set.
func (s *Store) List() []domain.EngagementOpportunity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.EngagementOpportunity(nil), s.opportunities...)
}

// Get looks up one opportunity by id.
func (s *Store) Get(id string) (domain.EngagementOpportunity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, opportunity := range s.opportunities {
		if opportunity.ID == id {
			return opportunity, true
		}
	}
	return domain.EngagementOpportunity{}, false
}

// Add creates a new opportunity, generating an id when absent. The local set
// updates immediately; persistence follows after the debounce window.
func (s *Store) Add(opportunity domain.EngagementOpportunity) (domain.EngagementOpportunity, error) {
	if err := validate(opportunity); err != nil {
		return domain.EngagementOpportunity{}, err
	}
	if opportunity.ID == "" {
		opportunity.ID = uuid.NewString()
	}

	s.mu.Lock()
	for _, existing := range s.opportunities {
		if existing.ID == opportunity.ID {
			s.mu.Unlock()
			return domain.EngagementOpportunity{}, fmt.Errorf("duplicate opportunity id %q", opportunity.ID)
		}
	}
	s.opportunities = append(s.opportunities, opportunity)
	s.mu.Unlock()

	s.afterMutation()
	return opportunity, nil
}

// Update replaces an existing opportunity in place.
func (s *Store) Update(opportunity domain.EngagementOpportunity) error {
	if err := validate(opportunity); err != nil {
		return err
	}

	s.mu.Lock()
	replaced := false
	for i, existing := range s.opportunities {
		if existing.ID == opportunity.ID {
			s.opportunities[i] = opportunity
			replaced = true
			break
		}
	}
	s.mu.Unlock()

	if !replaced {
		return ErrNotFound
	}
	s.afterMutation()
	return nil
}

// Remove deletes an opportunity by id.
func (s *Store) Remove(id string) error {
	s.mu.Lock()
	removed := false
	kept := s.opportunities[:0]
	for _, existing := range s.opportunities {
		if existing.ID == id {
			removed = true
			continue
		}
		kept = append(kept, existing)
	}
	s.opportunities = kept
	s.mu.Unlock()

	if !removed {
		return ErrNotFound
	}
	s.afterMutation()
	return nil
}

// Close abandons any pending debounced write. A write that fires after Close
// resolves as a no-op rather than an error against a torn-down view.
func (s *Store) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

func (s *Store) afterMutation() {
	s.events.EngagementsUpdated(s.List())
	s.debounced(s.persist)
}

// persist writes the full config document. Failures surface as a transient
// warning; the optimistic local edit stands either way.
func (s *Store) persist() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	cfg := domain.AgentConfig{
		EngagementOpportunities: append([]domain.EngagementOpportunity(nil), s.opportunities...),
		TeachingPersona:         s.persona,
	}
	s.mu.Unlock()

	if err := s.remote.Save(context.Background(), s.sessionID, cfg); err != nil {
		s.events.ViewerWarning(domain.ErrorCodePersistenceFailed, err.Error())
	}
}

func validate(opportunity domain.EngagementOpportunity) error {
	if !timecode.Valid(opportunity.Timestamp) {
		return fmt.Errorf("unparseable timestamp %q", opportunity.Timestamp)
	}
	switch opportunity.EngagementType {
	case domain.EngagementTypeQuiz, domain.EngagementTypeDiscussion:
	default:
		return fmt.Errorf("unknown engagement type %q", opportunity.EngagementType)
	}
	for _, item := range opportunity.QuizItems {
		if item.QuestionType != domain.QuestionTypeMultipleChoice {
			continue
		}
		if !contains(item.Options, item.CorrectOption) {
			return fmt.Errorf("correct option %q is not among the options of %q", item.CorrectOption, item.Question)
		}
	}
	return nil
}

func contains(values []string, target string) bool {
	for _, value := range values {
		if value == target {
			return true
		}
	}
	return false
}
