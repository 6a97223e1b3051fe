// Package events mirrors domain events onto a Kafka topic.
package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

var errPublisherClosed = errors.New("publisher closed")

type Config struct {
	Enabled bool
	Topic   string
	Brokers []string
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher writes keyed JSON payloads. A disabled publisher accepts and
// drops every message.
type Publisher struct {
	cfg     Config
	log     *slog.Logger
	writer  messageWriter
	enabled bool
	closed  bool
}

func NewPublisher(cfg Config, log *slog.Logger) (*Publisher, error) {
	if log == nil {
		log = slog.Default()
	}
	if !cfg.Enabled {
		log.Info("event publisher disabled")
		return &Publisher{cfg: cfg, log: log}, nil
	}
	if strings.TrimSpace(cfg.Topic) == "" {
		return nil, fmt.Errorf("event topic must not be empty")
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("at least one broker is required")
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		RequiredAcks:           kafka.RequireOne,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		BatchTimeout:           50 * time.Millisecond,
	}
	log.Info("event publisher enabled", "topic", cfg.Topic, "brokers", strings.Join(cfg.Brokers, ","))
	return &Publisher{cfg: cfg, log: log, writer: writer, enabled: true}, nil
}

func newPublisherWithWriter(cfg Config, log *slog.Logger, writer messageWriter) *Publisher {
	return &Publisher{cfg: cfg, log: log, writer: writer, enabled: true}
}

func (p *Publisher) Enabled() bool {
	return p != nil && p.enabled
}

// Publish blocks until the broker acknowledges or ctx ends.
func (p *Publisher) Publish(ctx context.Context, key string, payload []byte) error {
	if !p.Enabled() {
		return nil
	}
	if p.closed {
		return errPublisherClosed
	}
	msg := kafka.Message{Key: []byte(key), Value: payload, Time: time.Now().UTC()}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish to %s: %w", p.cfg.Topic, err)
	}
	return nil
}

func (p *Publisher) Close() error {
	if !p.Enabled() || p.closed {
		return nil
	}
	p.closed = true
	return p.writer.Close()
}
