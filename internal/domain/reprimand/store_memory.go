package reprimand

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"ppewatch/internal/platform/realtime"
)

type MemoryStore struct {
	mu        sync.Mutex
	records   map[string]Reprimand
	listeners map[int]func([]Reprimand)
	nextID    int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records:   map[string]Reprimand{},
		listeners: map[int]func([]Reprimand){},
	}
}

func (s *MemoryStore) Create(ctx context.Context, r Reprimand) (string, error) {
	s.mu.Lock()
	r = r.Clone()
	r.ID = uuid.NewString()
	s.records[r.ID] = r
	s.mu.Unlock()
	s.notify()
	return r.ID, nil
}

func (s *MemoryStore) Update(ctx context.Context, id string, patch Patch) error {
	s.mu.Lock()
	current, ok := s.records[id]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	s.records[id] = patch.Apply(current)
	s.mu.Unlock()
	s.notify()
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (Reprimand, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return Reprimand{}, ErrNotFound
	}
	return r.Clone(), nil
}

func (s *MemoryStore) List(ctx context.Context) ([]Reprimand, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot(), nil
}

func (s *MemoryStore) Subscribe(ctx context.Context, fn func([]Reprimand)) (realtime.Subscription, error) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	current := s.snapshot()
	s.mu.Unlock()

	fn(current)
	return realtime.SubscriptionFunc(func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}), nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// snapshot must be called with mu held. Newest first.
func (s *MemoryStore) snapshot() []Reprimand {
	out := make([]Reprimand, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r.Clone())
	}
	SortNewestFirst(out)
	return out
}

func (s *MemoryStore) notify() {
	s.mu.Lock()
	list := s.snapshot()
	fns := make([]func([]Reprimand), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(list)
	}
}

// SortNewestFirst orders by issue time descending, then id.
func SortNewestFirst(list []Reprimand) {
	sort.SliceStable(list, func(i, j int) bool {
		if !list[i].IssuedAt.Equal(list[j].IssuedAt) {
			return list[i].IssuedAt.After(list[j].IssuedAt)
		}
		return list[i].ID > list[j].ID
	})
}
