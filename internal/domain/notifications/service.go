package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

type Mailer interface {
	Send(ctx context.Context, from, to, subject, body string) error
}

// DigestSource supplies the current compliance view.
type DigestSource func(ctx context.Context) (DigestData, error)

type Metrics interface {
	IncDigest(success bool)
}

type Service struct {
	store       StoreAPI
	Mailer      Mailer
	DefaultFrom string
	Source      DigestSource
	Metrics     Metrics
	now         func() time.Time

	mu       sync.Mutex
	lastSent time.Time
}

func New(store StoreAPI, mailer Mailer, source DigestSource) *Service {
	return &Service{
		store:       store,
		Mailer:      mailer,
		DefaultFrom: "no-reply@example.com",
		Source:      source,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) GetSettings(ctx context.Context) (Settings, error) {
	return s.store.GetSettings(ctx)
}

func (s *Service) UpdateSettings(ctx context.Context, in Settings) (Settings, error) {
	settings, err := NormalizeSettings(in)
	if err != nil {
		return Settings{}, err
	}
	settings.UpdatedAt = s.now()
	if err := s.store.SaveSettings(ctx, settings); err != nil {
		return Settings{}, err
	}
	return settings, nil
}

func (s *Service) LastSent() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSent
}

// DigestDue reports whether the scheduled digest should run now.
func (s *Service) DigestDue(ctx context.Context) bool {
	settings, err := s.store.GetSettings(ctx)
	if err != nil {
		slog.Warn("digest settings lookup failed", "err", err)
		return false
	}
	return settings.Due(s.now(), s.LastSent())
}

// RealtimeDue reports whether a realtime digest may go out, honoring the
// one-per-minute throttle.
func (s *Service) RealtimeDue(ctx context.Context) bool {
	settings, err := s.store.GetSettings(ctx)
	if err != nil {
		slog.Warn("digest settings lookup failed", "err", err)
		return false
	}
	if !settings.Enabled || settings.Frequency != FrequencyRealtime || len(settings.Contacts) == 0 {
		return false
	}
	last := s.LastSent()
	return last.IsZero() || !s.now().Before(last.Add(realtimeThrottle))
}

// SendDigest mails the current summary to every contact. Individual
// delivery failures are counted, not returned.
func (s *Service) SendDigest(ctx context.Context) (DigestResult, error) {
	settings, err := s.store.GetSettings(ctx)
	if err != nil {
		return DigestResult{}, err
	}
	if !settings.Enabled {
		return DigestResult{}, ErrDisabled
	}
	if len(settings.Contacts) == 0 {
		return DigestResult{}, ErrNoContacts
	}
	if s.Source == nil {
		return DigestResult{}, fmt.Errorf("digest source not configured")
	}
	data, err := s.Source(ctx)
	if err != nil {
		return DigestResult{}, fmt.Errorf("load digest data: %w", err)
	}

	now := s.now()
	subject, body := BuildDigest(data, now)
	result := DigestResult{Subject: subject, SentAt: now}
	for _, c := range settings.Contacts {
		if s.Mailer == nil {
			break
		}
		if err := s.Mailer.Send(ctx, s.DefaultFrom, c.Email, subject, "Hello "+c.Name+",\n\n"+body); err != nil {
			slog.Warn("digest email send failed", "email", c.Email, "err", err)
			result.Failed++
			s.incDigest(false)
			continue
		}
		result.Recipients++
		s.incDigest(true)
	}

	s.mu.Lock()
	s.lastSent = now
	s.mu.Unlock()
	return result, nil
}

func (s *Service) incDigest(ok bool) {
	if s.Metrics != nil {
		s.Metrics.IncDigest(ok)
	}
}
