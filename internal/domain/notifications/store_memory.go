package notifications

import (
	"context"
	"sync"
)

type MemoryStore struct {
	mu       sync.Mutex
	settings Settings
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{settings: DefaultSettings()}
}

func (s *MemoryStore) GetSettings(ctx context.Context) (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.settings
	out.Contacts = append([]Contact{}, s.settings.Contacts...)
	return out, nil
}

func (s *MemoryStore) SaveSettings(ctx context.Context, settings Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	settings.Contacts = append([]Contact{}, settings.Contacts...)
	s.settings = settings
	return nil
}
