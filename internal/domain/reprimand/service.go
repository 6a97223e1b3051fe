package reprimand

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"ppewatch/internal/platform/realtime"
)

const entityType = "reprimand"

// Auditor records lifecycle changes. The audit service satisfies it.
type Auditor interface {
	Record(ctx context.Context, action, entityType, entityID string, before, after any) error
}

type Metrics interface {
	IncReprimand(action string)
	IncPersistenceError(action string)
}

type Option func(*Service)

func WithAuditor(a Auditor) Option {
	return func(s *Service) { s.audit = a }
}

func WithMetrics(m Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// Service is the only write path for reprimands. It keeps an optimistic
// cache that is rolled back when a store write fails and replaced wholesale
// by Sync.
type Service struct {
	store   StoreAPI
	audit   Auditor
	metrics Metrics
	now     func() time.Time

	writeMu sync.Mutex

	cacheMu sync.RWMutex
	cache   map[string]Reprimand
}

func NewService(store StoreAPI, opts ...Option) *Service {
	s := &Service{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
		cache: map[string]Reprimand{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Issue(ctx context.Context, input IssueInput) (Reprimand, error) {
	r, err := NewReprimand(input, s.now())
	if err != nil {
		return Reprimand{}, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	id, err := s.store.Create(ctx, r)
	if err != nil {
		s.incPersistenceError(ActionIssue)
		return Reprimand{}, &PersistenceError{Op: string(ActionIssue), Err: err}
	}
	r.ID = id
	s.setCached(id, r, true)
	s.record(ctx, ActionIssue, id, nil, r)
	return r, nil
}

func (s *Service) Acknowledge(ctx context.Context, id string) (Reprimand, error) {
	return s.transition(ctx, id, Acknowledge())
}

func (s *Service) AssignRetraining(ctx context.Context, id string, t RetrainingType) (Reprimand, error) {
	return s.transition(ctx, id, AssignRetraining(t))
}

func (s *Service) CompleteRetraining(ctx context.Context, id string) (Reprimand, error) {
	return s.transition(ctx, id, CompleteRetraining())
}

func (s *Service) Resolve(ctx context.Context, id string) (Reprimand, error) {
	return s.transition(ctx, id, Resolve())
}

func (s *Service) transition(ctx context.Context, id string, action Action) (Reprimand, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	current, err := s.Get(ctx, id)
	if err != nil {
		return Reprimand{}, err
	}
	next, err := Apply(current, action, s.now())
	if err != nil {
		return Reprimand{}, err
	}

	prev, had := s.cached(id)
	s.setCached(id, next, true)
	if err := s.store.Update(ctx, id, PatchFrom(next)); err != nil {
		s.setCached(id, prev, had)
		if errors.Is(err, ErrNotFound) {
			return Reprimand{}, ErrNotFound
		}
		s.incPersistenceError(action.Kind)
		return Reprimand{}, &PersistenceError{Op: string(action.Kind), ID: id, Err: err}
	}
	s.record(ctx, action.Kind, id, current, next)
	return next, nil
}

// Get reads through to the store so transitions validate against the
// persisted state.
func (s *Service) Get(ctx context.Context, id string) (Reprimand, error) {
	if strings.TrimSpace(id) == "" {
		return Reprimand{}, ErrNotFound
	}
	r, err := s.store.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return Reprimand{}, ErrNotFound
	}
	if err != nil {
		return Reprimand{}, fmt.Errorf("load reprimand %s: %w", id, err)
	}
	return r, nil
}

type ListFilter struct {
	Status     Status
	EmployeeID string
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]Reprimand, error) {
	list, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list reprimands: %w", err)
	}
	if filter.Status == "" && filter.EmployeeID == "" {
		return list, nil
	}
	out := make([]Reprimand, 0, len(list))
	for _, r := range list {
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		if filter.EmployeeID != "" && r.EmployeeID != filter.EmployeeID {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *Service) Stats(ctx context.Context) (Stats, error) {
	list, err := s.store.List(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("list reprimands: %w", err)
	}
	return ComputeStats(list), nil
}

// Sync replaces the cache with a full collection pushed by the store.
func (s *Service) Sync(list []Reprimand) {
	next := make(map[string]Reprimand, len(list))
	for _, r := range list {
		next[r.ID] = r.Clone()
	}
	s.cacheMu.Lock()
	s.cache = next
	s.cacheMu.Unlock()
}

// Cached returns the cache newest first.
func (s *Service) Cached() []Reprimand {
	s.cacheMu.RLock()
	out := make([]Reprimand, 0, len(s.cache))
	for _, r := range s.cache {
		out = append(out, r.Clone())
	}
	s.cacheMu.RUnlock()
	SortNewestFirst(out)
	return out
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Subscribe keeps the cache in step with the store and forwards every
// pushed collection to fn.
func (s *Service) Subscribe(ctx context.Context, fn func([]Reprimand)) (realtime.Subscription, error) {
	return s.store.Subscribe(ctx, func(list []Reprimand) {
		s.Sync(list)
		if fn != nil {
			fn(list)
		}
	})
}

func (s *Service) cached(id string) (Reprimand, bool) {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	r, ok := s.cache[id]
	return r, ok
}

func (s *Service) setCached(id string, r Reprimand, present bool) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if !present {
		delete(s.cache, id)
		return
	}
	s.cache[id] = r.Clone()
}

func (s *Service) record(ctx context.Context, action ActionKind, id string, before, after any) {
	if s.metrics != nil {
		s.metrics.IncReprimand(string(action))
	}
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, "reprimand."+string(action), entityType, id, before, after); err != nil {
		slog.Warn("reprimand audit failed", "action", action, "reprimandId", id, "err", err)
	}
}

func (s *Service) incPersistenceError(action ActionKind) {
	if s.metrics != nil {
		s.metrics.IncPersistenceError(string(action))
	}
}
