package reprimand

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ppewatch/internal/domain/compliance"
	"ppewatch/internal/platform/querier"
	"ppewatch/internal/platform/realtime"
)

const changeChannel = "reprimands_changed"

// Store persists reprimands in Postgres and fans out changes with
// LISTEN/NOTIFY.
type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

const selectColumns = `
    SELECT id::text, employee_id, issued_at, violations, severity, status, notes,
           retraining_type, retraining_assigned_at, retraining_completed, updated_at
    FROM reprimands`

func (s *Store) Create(ctx context.Context, r Reprimand) (string, error) {
	var id string
	err := s.inTx(ctx, func(q querier.Querier) error {
		var retrainingType *string
		var assignedAt any
		var completed *bool
		if r.Retraining != nil {
			t := string(r.Retraining.Type)
			retrainingType = &t
			assignedAt = r.Retraining.AssignedAt
			completed = &r.Retraining.Completed
		}
		if err := q.QueryRow(ctx, `
      INSERT INTO reprimands (employee_id, issued_at, violations, severity, status, notes,
                              retraining_type, retraining_assigned_at, retraining_completed, updated_at)
      VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
      RETURNING id::text
    `, r.EmployeeID, r.IssuedAt, equipmentStrings(r.Violations), string(r.Severity), string(r.Status), r.Notes,
			retrainingType, assignedAt, completed, r.UpdatedAt).Scan(&id); err != nil {
			return err
		}
		_, err := q.Exec(ctx, "SELECT pg_notify($1, $2)", changeChannel, id)
		return err
	})
	return id, err
}

func (s *Store) Update(ctx context.Context, id string, patch Patch) error {
	return s.inTx(ctx, func(q querier.Querier) error {
		var retrainingType *string
		var assignedAt any
		var completed *bool
		if patch.Retraining != nil {
			t := string(patch.Retraining.Type)
			retrainingType = &t
			assignedAt = patch.Retraining.AssignedAt
			completed = &patch.Retraining.Completed
		}
		tag, err := q.Exec(ctx, `
      UPDATE reprimands
      SET status = $2, retraining_type = $3, retraining_assigned_at = $4,
          retraining_completed = $5, updated_at = $6
      WHERE id::text = $1
    `, id, string(patch.Status), retrainingType, assignedAt, completed, patch.UpdatedAt)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		_, err = q.Exec(ctx, "SELECT pg_notify($1, $2)", changeChannel, id)
		return err
	})
}

func (s *Store) Get(ctx context.Context, id string) (Reprimand, error) {
	rows, err := s.DB.Query(ctx, selectColumns+" WHERE id::text = $1", id)
	if err != nil {
		return Reprimand{}, err
	}
	list, err := scanReprimands(rows)
	if err != nil {
		return Reprimand{}, err
	}
	if len(list) == 0 {
		return Reprimand{}, ErrNotFound
	}
	return list[0], nil
}

func (s *Store) List(ctx context.Context) ([]Reprimand, error) {
	rows, err := s.DB.Query(ctx, selectColumns+" ORDER BY issued_at DESC, id DESC")
	if err != nil {
		return nil, err
	}
	return scanReprimands(rows)
}

func (s *Store) Ping(ctx context.Context) error {
	return s.DB.Ping(ctx)
}

// Subscribe holds a dedicated pooled connection in LISTEN mode and reloads
// the whole collection on every notification.
func (s *Store) Subscribe(ctx context.Context, fn func([]Reprimand)) (realtime.Subscription, error) {
	conn, err := s.DB.Acquire(ctx)
	if err != nil {
		return nil, &realtime.ConnectivityError{Op: "listen", Path: changeChannel, Err: err}
	}
	if _, err := conn.Exec(ctx, "LISTEN "+changeChannel); err != nil {
		conn.Release()
		return nil, &realtime.ConnectivityError{Op: "listen", Path: changeChannel, Err: err}
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.push(runCtx, fn)
		for {
			if _, err := conn.Conn().WaitForNotification(runCtx); err != nil {
				if runCtx.Err() == nil {
					slog.Warn("reprimand listen failed", "err", err)
				}
				return
			}
			s.push(runCtx, fn)
		}
	}()

	return realtime.SubscriptionFunc(func() {
		cancel()
		<-done
		if _, err := conn.Exec(context.Background(), "UNLISTEN "+changeChannel); err != nil {
			slog.Warn("reprimand unlisten failed", "err", err)
		}
		conn.Release()
	}), nil
}

func (s *Store) push(ctx context.Context, fn func([]Reprimand)) {
	list, err := s.List(ctx)
	if err != nil {
		if ctx.Err() == nil {
			slog.Warn("reprimand reload failed", "err", err)
		}
		return
	}
	fn(list)
}

func (s *Store) inTx(ctx context.Context, run func(q querier.Querier) error) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	if err := run(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

func scanReprimands(rows pgx.Rows) ([]Reprimand, error) {
	defer rows.Close()
	var out []Reprimand
	for rows.Next() {
		var r Reprimand
		var violations []string
		var severity, status string
		var retrainingType *string
		var assignedAt *time.Time
		var completed *bool
		if err := rows.Scan(&r.ID, &r.EmployeeID, &r.IssuedAt, &violations, &severity, &status, &r.Notes,
			&retrainingType, &assignedAt, &completed, &r.UpdatedAt); err != nil {
			return nil, err
		}
		r.Severity = Severity(severity)
		r.Status = Status(status)
		for _, v := range violations {
			if item, ok := compliance.ParseEquipment(v); ok {
				r.Violations = append(r.Violations, item)
			}
		}
		if retrainingType != nil {
			r.Retraining = &Retraining{Type: RetrainingType(*retrainingType)}
			if assignedAt != nil {
				r.Retraining.AssignedAt = *assignedAt
			}
			if completed != nil {
				r.Retraining.Completed = *completed
			}
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func equipmentStrings(items []compliance.Equipment) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = string(item)
	}
	return out
}
