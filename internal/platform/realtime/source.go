package realtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var ErrConnectivity = errors.New("realtime source unreachable")

// ConnectivityError reports a failed subscribe or load against the source.
type ConnectivityError struct {
	Op   string
	Path string
	Err  error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("realtime %s %q: %v", e.Op, e.Path, e.Err)
}

func (e *ConnectivityError) Unwrap() error { return e.Err }

func (e *ConnectivityError) Is(target error) bool { return target == ErrConnectivity }

// Delivery carries either the full current snapshot at a path or an error.
// A nil Snapshot with a nil Err means the path holds no data yet.
type Delivery struct {
	Snapshot map[string]any
	Err      error
}

type Handler func(Delivery)

// Subscription stops deliveries. Unsubscribe is safe to call more than once
// but must not be called from inside the Handler.
type Subscription interface {
	Unsubscribe()
}

// Source is a push-based key/value store. Every change at a path is
// delivered as a complete replacement snapshot.
type Source interface {
	Subscribe(ctx context.Context, path string, fn Handler) (Subscription, error)
}

type subscription struct {
	once sync.Once
	stop func()
}

func (s *subscription) Unsubscribe() {
	s.once.Do(s.stop)
}

// SubscriptionFunc adapts a plain func to Subscription with once semantics.
func SubscriptionFunc(stop func()) Subscription {
	return &subscription{stop: stop}
}

// Publisher replaces the snapshot stored at a path and notifies subscribers.
type Publisher interface {
	Publish(ctx context.Context, path string, snapshot map[string]any) error
}

// HealthChecker is implemented by sources backed by a remote service.
type HealthChecker interface {
	Health(ctx context.Context) error
}
