package audit

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

type MemoryStore struct {
	mu     sync.Mutex
	events []Event
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Insert(ctx context.Context, evt Event) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	evt.ID = uuid.NewString()
	s.events = append(s.events, evt)
	return evt.ID, nil
}

func (s *MemoryStore) Count(ctx context.Context, filter Filter) (int, error) {
	return len(s.matching(filter)), nil
}

func (s *MemoryStore) List(ctx context.Context, filter Filter, includeDetails bool, limit, offset int) ([]Event, error) {
	matched := s.matching(filter)
	if offset >= len(matched) {
		return []Event{}, nil
	}
	matched = matched[offset:]
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	if !includeDetails {
		for i := range matched {
			matched[i].Before = nil
			matched[i].After = nil
		}
	}
	return matched, nil
}

func (s *MemoryStore) matching(filter Filter) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, 0, len(s.events))
	for i := len(s.events) - 1; i >= 0; i-- {
		evt := s.events[i]
		if filter.Action != "" && evt.Action != filter.Action {
			continue
		}
		if filter.EntityType != "" && evt.EntityType != filter.EntityType {
			continue
		}
		if filter.EntityID != "" && evt.EntityID != filter.EntityID {
			continue
		}
		if filter.Origin != "" && evt.Origin != filter.Origin {
			continue
		}
		out = append(out, evt)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}
