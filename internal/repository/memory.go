package repository

import (
	"context"
	"sync"
	"time"

	"github.com/daisinet/securetools/internal/domain"
)

// MemorySetupStore keeps installations and setup records in process memory.
// Intended for local development and tests; nothing survives a restart.
type MemorySetupStore struct {
	mu       sync.RWMutex
	installs map[string]domain.Installation
	setups   map[string]map[string]string
}

var _ SetupStore = (*MemorySetupStore)(nil)

// NewMemorySetupStore constructs an empty in-memory store.
func NewMemorySetupStore() *MemorySetupStore {
	return &MemorySetupStore{
		installs: make(map[string]domain.Installation),
		setups:   make(map[string]map[string]string),
	}
}

func (s *MemorySetupStore) RegisterInstall(_ context.Context, installID, toolID, groupID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.installs[installID] = domain.Installation{
		InstallID:   installID,
		ToolID:      toolID,
		GroupID:     groupID,
		InstalledAt: time.Now().UTC(),
	}
	return nil
}

func (s *MemorySetupStore) RemoveInstall(_ context.Context, installID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.setups, installID)
	if _, ok := s.installs[installID]; !ok {
		return false, nil
	}
	delete(s.installs, installID)
	return true, nil
}

func (s *MemorySetupStore) IsInstalled(_ context.Context, installID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.installs[installID]
	return ok, nil
}

func (s *MemorySetupStore) SaveSetup(_ context.Context, installID string, values map[string]string) error {
	copied := make(map[string]string, len(values))
	for k, v := range values {
		copied[k] = v
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setups[installID] = copied
	return nil
}

func (s *MemorySetupStore) GetSetup(_ context.Context, installID string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored, ok := s.setups[installID]
	if !ok {
		return nil, nil
	}
	copied := make(map[string]string, len(stored))
	for k, v := range stored {
		copied[k] = v
	}
	return copied, nil
}

func (s *MemorySetupStore) GetToolID(_ context.Context, installID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.installs[installID].ToolID, nil
}

func (s *MemorySetupStore) GetGroupID(_ context.Context, installID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.installs[installID].GroupID, nil
}
