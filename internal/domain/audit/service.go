package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"ppewatch/internal/requestctx"
)

// Publisher mirrors recorded events to an external stream.
type Publisher interface {
	Publish(ctx context.Context, key string, payload []byte) error
}

type Service struct {
	store     StoreAPI
	publisher Publisher
	now       func() time.Time
}

func New(store StoreAPI, publisher Publisher) *Service {
	return &Service{store: store, publisher: publisher, now: func() time.Time { return time.Now().UTC() }}
}

// Record stores one change. A failed mirror publish is logged, never returned.
func (s *Service) Record(ctx context.Context, action, entityType, entityID string, before, after any) error {
	evt := Event{
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		RequestID:  requestctx.GetRequestID(ctx),
		Origin:     string(requestctx.GetOrigin(ctx)),
		CreatedAt:  s.now(),
	}
	if before != nil {
		payload, err := json.Marshal(before)
		if err != nil {
			return err
		}
		evt.Before = payload
	}
	if after != nil {
		payload, err := json.Marshal(after)
		if err != nil {
			return err
		}
		evt.After = payload
	}

	id, err := s.store.Insert(ctx, evt)
	if err != nil {
		return err
	}
	evt.ID = id

	if s.publisher != nil {
		payload, err := json.Marshal(evt)
		if err != nil {
			slog.Warn("audit event marshal failed", "err", err)
			return nil
		}
		if err := s.publisher.Publish(ctx, entityID, payload); err != nil {
			slog.Warn("audit event publish failed", "action", action, "entityId", entityID, "err", err)
		}
	}
	return nil
}

func (s *Service) Count(ctx context.Context, filter Filter) (int, error) {
	return s.store.Count(ctx, filter)
}

func (s *Service) List(ctx context.Context, filter Filter, includeDetails bool, limit, offset int) ([]Event, error) {
	return s.store.List(ctx, filter, includeDetails, limit, offset)
}
