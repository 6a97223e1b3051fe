package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient parses url and verifies the connection.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, &ConnectivityError{Op: "ping", Path: opts.Addr, Err: err}
	}
	return client, nil
}

// DefaultHealthInterval is how often a subscription pings Redis.
const DefaultHealthInterval = 5 * time.Second

// RedisSource stores each snapshot as JSON at <prefix>:<path> and announces
// changes on the <prefix>:<path>:changed channel.
type RedisSource struct {
	client         *redis.Client
	prefix         string
	healthInterval time.Duration
}

type RedisOption func(*RedisSource)

// WithHealthInterval sets the ping interval used to detect outages on a
// live subscription.
func WithHealthInterval(d time.Duration) RedisOption {
	return func(s *RedisSource) {
		if d > 0 {
			s.healthInterval = d
		}
	}
}

func NewRedisSource(client *redis.Client, prefix string, opts ...RedisOption) *RedisSource {
	s := &RedisSource{client: client, prefix: prefix, healthInterval: DefaultHealthInterval}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisSource) key(path string) string {
	if s.prefix == "" {
		return path
	}
	return s.prefix + ":" + path
}

func (s *RedisSource) channel(path string) string {
	return s.key(path) + ":changed"
}

// Health checks if the Redis connection is healthy.
func (s *RedisSource) Health(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Publish writes the full snapshot and notifies subscribers.
func (s *RedisSource) Publish(ctx context.Context, path string, snapshot map[string]any) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := s.client.Set(ctx, s.key(path), payload, 0).Err(); err != nil {
		return &ConnectivityError{Op: "publish", Path: path, Err: err}
	}
	if err := s.client.Publish(ctx, s.channel(path), "changed").Err(); err != nil {
		return &ConnectivityError{Op: "notify", Path: path, Err: err}
	}
	return nil
}

// Subscribe delivers the current snapshot, then reloads it on every change
// notification until Unsubscribe is called or ctx ends. A failed health
// ping delivers one connectivity error; the snapshot is reloaded once Redis
// answers again or the channel is resubscribed after a reconnect.
func (s *RedisSource) Subscribe(ctx context.Context, path string, fn Handler) (Subscription, error) {
	pubsub := s.client.Subscribe(ctx, s.channel(path))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, &ConnectivityError{Op: "subscribe", Path: path, Err: err}
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.watch(runCtx, pubsub, path, fn)
	}()

	return SubscriptionFunc(func() {
		cancel()
		if err := pubsub.Close(); err != nil {
			slog.Warn("realtime unsubscribe failed", "path", path, "err", err)
		}
		<-done
	}), nil
}

func (s *RedisSource) watch(ctx context.Context, pubsub *redis.PubSub, path string, fn Handler) {
	healthy := s.load(ctx, path, fn)
	messages := pubsub.ChannelWithSubscriptions(redis.WithChannelHealthCheckInterval(s.healthInterval))
	ticker := time.NewTicker(s.healthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			switch m := msg.(type) {
			case *redis.Subscription:
				if m.Kind != "subscribe" {
					continue
				}
				slog.Info("realtime channel resubscribed", "path", path)
				healthy = s.load(ctx, path, fn)
			case *redis.Message:
				healthy = s.load(ctx, path, fn)
			}
		case <-ticker.C:
			err := s.ping(ctx)
			if ctx.Err() != nil {
				return
			}
			switch {
			case err != nil && healthy:
				healthy = false
				slog.Warn("realtime source unreachable", "path", path, "err", err)
				fn(Delivery{Err: &ConnectivityError{Op: "ping", Path: path, Err: err}})
			case err == nil && !healthy:
				slog.Info("realtime source reachable again", "path", path)
				healthy = s.load(ctx, path, fn)
			}
		}
	}
}

func (s *RedisSource) ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.healthInterval)
	defer cancel()
	return s.Health(ctx)
}

// load delivers the stored snapshot and reports whether Redis was reachable.
func (s *RedisSource) load(ctx context.Context, path string, fn Handler) bool {
	raw, err := s.client.Get(ctx, s.key(path)).Bytes()
	if errors.Is(err, redis.Nil) {
		fn(Delivery{})
		return true
	}
	if err != nil {
		if ctx.Err() != nil {
			return true
		}
		fn(Delivery{Err: &ConnectivityError{Op: "load", Path: path, Err: err}})
		return false
	}
	var snapshot map[string]any
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		fn(Delivery{Err: fmt.Errorf("decode snapshot at %q: %w", path, err)})
		return true
	}
	fn(Delivery{Snapshot: snapshot})
	return true
}
