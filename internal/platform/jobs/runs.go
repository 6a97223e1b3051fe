package jobs

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

type Run struct {
	ID          string          `json:"id"`
	JobType     string          `json:"jobType"`
	Status      string          `json:"status"`
	Details     json.RawMessage `json:"details,omitempty"`
	StartedAt   time.Time       `json:"startedAt"`
	CompletedAt *time.Time      `json:"completedAt,omitempty"`
}

// RunStore records job executions.
type RunStore interface {
	Start(ctx context.Context, jobType string) (string, error)
	Finish(ctx context.Context, id, status string, details []byte) error
	List(ctx context.Context, jobType string, limit int) ([]Run, error)
}

type PGRunStore struct {
	DB *pgxpool.Pool
}

func NewPGRunStore(db *pgxpool.Pool) *PGRunStore {
	return &PGRunStore{DB: db}
}

func (s *PGRunStore) Start(ctx context.Context, jobType string) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
    INSERT INTO job_runs (job_type, status)
    VALUES ($1,$2)
    RETURNING id::text
  `, jobType, StatusRunning).Scan(&id)
	return id, err
}

func (s *PGRunStore) Finish(ctx context.Context, id, status string, details []byte) error {
	_, err := s.DB.Exec(ctx, `
    UPDATE job_runs
    SET status = $1, details_json = $2, completed_at = now()
    WHERE id::text = $3
  `, status, details, id)
	return err
}

func (s *PGRunStore) List(ctx context.Context, jobType string, limit int) ([]Run, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id::text, job_type, status, COALESCE(details_json, '{}'::jsonb), started_at, completed_at
    FROM job_runs
    WHERE job_type = $1
    ORDER BY started_at DESC
    LIMIT $2
  `, jobType, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Run
	for rows.Next() {
		var r Run
		var details []byte
		if err := rows.Scan(&r.ID, &r.JobType, &r.Status, &details, &r.StartedAt, &r.CompletedAt); err != nil {
			return nil, err
		}
		r.Details = details
		out = append(out, r)
	}
	return out, rows.Err()
}

type MemoryRunStore struct {
	mu   sync.Mutex
	seq  int
	runs []Run
}

func NewMemoryRunStore() *MemoryRunStore {
	return &MemoryRunStore{}
}

func (s *MemoryRunStore) Start(ctx context.Context, jobType string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	id := strconv.Itoa(s.seq)
	s.runs = append(s.runs, Run{ID: id, JobType: jobType, Status: StatusRunning, StartedAt: time.Now().UTC()})
	return id, nil
}

func (s *MemoryRunStore) Finish(ctx context.Context, id, status string, details []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.runs {
		if s.runs[i].ID == id {
			now := time.Now().UTC()
			s.runs[i].Status = status
			s.runs[i].Details = append(json.RawMessage(nil), details...)
			s.runs[i].CompletedAt = &now
			return nil
		}
	}
	return nil
}

func (s *MemoryRunStore) List(ctx context.Context, jobType string, limit int) ([]Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []Run{}
	for i := len(s.runs) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		if s.runs[i].JobType == jobType {
			out = append(out, s.runs[i])
		}
	}
	return out, nil
}
