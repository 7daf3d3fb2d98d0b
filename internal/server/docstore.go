package server

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"brdge/internal/domain"
)

// DocumentStore persists agent-config documents in a single JSON file.
// Writes replace a session's whole document, matching the PUT semantics of
// the config endpoint.
type DocumentStore struct {
	mu       sync.Mutex
	filePath string
	docs     map[string]domain.AgentConfig
}

// NewDocumentStore loads (or initializes) the store under dataDir.
func NewDocumentStore(dataDir string) (*DocumentStore, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	store := &DocumentStore{
		filePath: filepath.Join(dataDir, "agent_configs.json"),
		docs:     make(map[string]domain.AgentConfig),
	}
	if err := store.load(); err != nil {
		return nil, err
	}
	return store, nil
}

// Get returns a session's document, or an empty document when none exists.
func (s *DocumentStore) Get(sessionID string) domain.AgentConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, ok := s.docs[sessionID]
	if !ok {
		return domain.AgentConfig{EngagementOpportunities: []domain.EngagementOpportunity{}}
	}
	return cfg
}

// Put replaces a session's document and persists the store.
func (s *DocumentStore) Put(sessionID string, cfg domain.AgentConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[sessionID] = cfg
	return s.save()
}

func (s *DocumentStore) load() error {
	raw, err := os.ReadFile(s.filePath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read config store: %w", err)
	}
	if err := json.Unmarshal(raw, &s.docs); err != nil {
		return fmt.Errorf("failed to parse config store: %w", err)
	}
	return nil
}

// save writes atomically: temp file, sync, rename. Must be called with the
// lock held.
func (s *DocumentStore) save() error {
	raw, err := json.MarshalIndent(s.docs, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config store: %w", err)
	}

	tempPath := s.filePath + ".tmp"
	file, err := os.OpenFile(tempPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open temp file: %w", err)
	}
	if _, err := file.Write(raw); err != nil {
		file.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tempPath, s.filePath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
