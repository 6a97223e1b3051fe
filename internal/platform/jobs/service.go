package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"ppewatch/internal/domain/notifications"
)

const (
	JobDigest = "notification_digest"

	// DigestCheckInterval is how often the scheduler asks whether a digest is due.
	DigestCheckInterval = time.Minute
)

type Service struct {
	Runs          RunStore
	Notifications *notifications.Service
	CheckInterval time.Duration

	queue chan job
	// pending is set while a digest job is queued or running.
	pending atomic.Bool
}

type job struct {
	Type string
	Run  func(context.Context) (any, error)
}

func New(runs RunStore, notify *notifications.Service) *Service {
	return &Service{
		Runs:          runs,
		Notifications: notify,
		CheckInterval: DigestCheckInterval,
		queue:         make(chan job, 32),
	}
}

func (s *Service) Start(ctx context.Context) {
	go s.worker(ctx)
	if s.Notifications != nil && s.CheckInterval > 0 {
		go s.scheduleDigests(ctx, s.CheckInterval)
	}
}

func (s *Service) Enqueue(jobType string, run func(context.Context) (any, error)) bool {
	select {
	case s.queue <- job{Type: jobType, Run: run}:
		return true
	default:
		slog.Warn("job queue full", "jobType", jobType)
		return false
	}
}

func (s *Service) RunNow(ctx context.Context, jobType string, run func(context.Context) (any, error)) (any, error) {
	return s.runJob(ctx, job{Type: jobType, Run: run})
}

// SendDigestNow runs the digest synchronously and records the run.
func (s *Service) SendDigestNow(ctx context.Context) (notifications.DigestResult, error) {
	out, err := s.RunNow(ctx, JobDigest, s.sendDigest)
	res, _ := out.(notifications.DigestResult)
	return res, err
}

// NotifyChange queues a realtime digest when realtime delivery is
// configured and the throttle window has passed.
func (s *Service) NotifyChange(ctx context.Context) {
	if s.Notifications == nil || !s.Notifications.RealtimeDue(ctx) {
		return
	}
	s.enqueueDigest(s.Notifications.RealtimeDue)
}

// enqueueDigest keeps at most one digest queued. due is re-checked by the
// worker so a digest sent meanwhile is not repeated.
func (s *Service) enqueueDigest(due func(context.Context) bool) {
	if !s.pending.CompareAndSwap(false, true) {
		return
	}
	ok := s.Enqueue(JobDigest, func(ctx context.Context) (any, error) {
		defer s.pending.Store(false)
		if !due(ctx) {
			return map[string]string{"skipped": "not due"}, nil
		}
		res, err := s.sendDigest(ctx)
		if errors.Is(err, notifications.ErrDisabled) || errors.Is(err, notifications.ErrNoContacts) {
			slog.Info("digest skipped", "reason", err)
		}
		return res, err
	})
	if !ok {
		s.pending.Store(false)
	}
}

func (s *Service) ListRuns(ctx context.Context, jobType string, limit int) ([]Run, error) {
	if s.Runs == nil {
		return []Run{}, nil
	}
	return s.Runs.List(ctx, jobType, limit)
}

func (s *Service) sendDigest(ctx context.Context) (any, error) {
	res, err := s.Notifications.SendDigest(ctx)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *Service) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-s.queue:
			if _, err := s.runJob(ctx, j); err != nil {
				slog.Warn("job run failed", "jobType", j.Type, "err", err)
			}
		}
	}
}

func (s *Service) runJob(ctx context.Context, j job) (any, error) {
	runID := ""
	if s.Runs != nil {
		id, err := s.Runs.Start(ctx, j.Type)
		if err != nil {
			slog.Warn("job run insert failed", "jobType", j.Type, "err", err)
		}
		runID = id
	}

	details, err := j.Run(ctx)
	status := StatusCompleted
	if err != nil {
		status = StatusFailed
		details = map[string]any{"error": err.Error()}
	}
	detailsJSON, marshalErr := json.Marshal(details)
	if marshalErr != nil {
		slog.Warn("job details marshal failed", "err", marshalErr)
		detailsJSON = []byte("{}")
	}
	if runID != "" {
		if updErr := s.Runs.Finish(ctx, runID, status, detailsJSON); updErr != nil {
			slog.Warn("job run update failed", "jobType", j.Type, "err", updErr)
		}
	}
	if err != nil {
		return nil, err
	}
	return details, nil
}

func (s *Service) scheduleDigests(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.Notifications.DigestDue(ctx) {
				s.enqueueDigest(s.Notifications.DigestDue)
			}
		}
	}
}
