package reprimand

import (
	"context"

	"ppewatch/internal/platform/realtime"
)

// StoreAPI persists reprimands. Records are never deleted.
type StoreAPI interface {
	Create(ctx context.Context, r Reprimand) (string, error)
	Update(ctx context.Context, id string, patch Patch) error
	Get(ctx context.Context, id string) (Reprimand, error)
	List(ctx context.Context) ([]Reprimand, error)
	// Subscribe pushes the full collection now and after every change.
	Subscribe(ctx context.Context, fn func([]Reprimand)) (realtime.Subscription, error)
	Ping(ctx context.Context) error
}
