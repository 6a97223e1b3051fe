package realtime

import (
	"context"
	"maps"
	"sync"
)

// MemorySource is an in-process Source. Deliveries run synchronously on the
// publishing goroutine.
type MemorySource struct {
	mu        sync.Mutex
	data      map[string]map[string]any
	listeners map[string]map[int]Handler
	nextID    int
}

func NewMemorySource() *MemorySource {
	return &MemorySource{
		data:      map[string]map[string]any{},
		listeners: map[string]map[int]Handler{},
	}
}

func (m *MemorySource) Subscribe(ctx context.Context, path string, fn Handler) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, &ConnectivityError{Op: "subscribe", Path: path, Err: err}
	}
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	if m.listeners[path] == nil {
		m.listeners[path] = map[int]Handler{}
	}
	m.listeners[path][id] = fn
	current := cloneSnapshot(m.data[path])
	m.mu.Unlock()

	fn(Delivery{Snapshot: current})

	return SubscriptionFunc(func() {
		m.mu.Lock()
		delete(m.listeners[path], id)
		m.mu.Unlock()
	}), nil
}

// Publish replaces the snapshot at path and notifies every subscriber.
func (m *MemorySource) Publish(ctx context.Context, path string, snapshot map[string]any) error {
	m.mu.Lock()
	m.data[path] = cloneSnapshot(snapshot)
	handlers := m.handlers(path)
	m.mu.Unlock()

	for _, fn := range handlers {
		fn(Delivery{Snapshot: cloneSnapshot(snapshot)})
	}
	return nil
}

// Fail pushes a connectivity failure to every subscriber of path.
func (m *MemorySource) Fail(path string, err error) {
	m.mu.Lock()
	handlers := m.handlers(path)
	m.mu.Unlock()

	for _, fn := range handlers {
		fn(Delivery{Err: &ConnectivityError{Op: "deliver", Path: path, Err: err}})
	}
}

// Subscribers reports how many handlers are attached to path.
func (m *MemorySource) Subscribers(path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.listeners[path])
}

func (m *MemorySource) handlers(path string) []Handler {
	out := make([]Handler, 0, len(m.listeners[path]))
	for _, fn := range m.listeners[path] {
		out = append(out, fn)
	}
	return out
}

func cloneSnapshot(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	return maps.Clone(in)
}
