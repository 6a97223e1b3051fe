// Package monitor owns one live session over the event feed and the
// reprimand collection. Every delivery replaces the working set and the
// derived view is recomputed from scratch.
package monitor

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"ppewatch/internal/domain/compliance"
	"ppewatch/internal/domain/ledger"
	"ppewatch/internal/domain/reprimand"
	"ppewatch/internal/platform/realtime"
	"ppewatch/internal/requestctx"
)

var ErrClosed = errors.New("monitor closed")

type Reprimands interface {
	Issue(ctx context.Context, input reprimand.IssueInput) (reprimand.Reprimand, error)
	Subscribe(ctx context.Context, fn func([]reprimand.Reprimand)) (realtime.Subscription, error)
}

type Metrics interface {
	ObserveSnapshot(err error, schemas map[string]int, malformed int)
}

type Option func(*Monitor)

func WithMetrics(m Metrics) Option {
	return func(mon *Monitor) { mon.metrics = m }
}

// WithViolationHook registers fn to run after a snapshot that raised the
// violation count.
func WithViolationHook(fn func(context.Context)) Option {
	return func(mon *Monitor) { mon.onViolations = fn }
}

func WithClock(now func() time.Time) Option {
	return func(mon *Monitor) {
		if now != nil {
			mon.now = now
		}
	}
}

type Monitor struct {
	cfg          Config
	source       realtime.Source
	reprimands   Reprimands
	metrics      Metrics
	onViolations func(context.Context)
	now          func() time.Time

	mu         sync.RWMutex
	events     []compliance.Event
	summary    compliance.Summary
	list       []reprimand.Reprimand
	ledger     ledger.Ledger
	status     Status
	violations int
	inflight   map[string]bool

	ctx    context.Context
	cancel context.CancelFunc
	subs   []realtime.Subscription
	wg     sync.WaitGroup
	closed bool
}

func New(source realtime.Source, reprimands Reprimands, cfg Config, opts ...Option) *Monitor {
	if cfg.Threshold <= 0 {
		cfg.Threshold = ledger.DefaultThreshold
	}
	m := &Monitor{
		cfg:        cfg,
		source:     source,
		reprimands: reprimands,
		now:        func() time.Time { return time.Now().UTC() },
		events:     []compliance.Event{},
		summary:    compliance.Summarize(nil),
		ledger:     ledger.Ledger{},
		inflight:   map[string]bool{},
		status: Status{
			State:   StateConnecting,
			Schemas: map[compliance.Schema]int{},
		},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start opens the reprimand and event subscriptions. A failed event
// subscription leaves the monitor running in the disconnected state.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	m.ctx, m.cancel = context.WithCancel(context.WithoutCancel(ctx))
	m.mu.Unlock()

	if m.reprimands != nil {
		sub, err := m.reprimands.Subscribe(m.ctx, m.onReprimands)
		if err != nil {
			m.cancel()
			return err
		}
		m.track(sub)
	}

	sub, err := m.source.Subscribe(m.ctx, m.cfg.Path, m.onDelivery)
	if err != nil {
		slog.Warn("event subscription failed", "path", m.cfg.Path, "err", err)
		m.onDelivery(realtime.Delivery{Err: err})
		m.mu.Lock()
		if !m.closed {
			m.wg.Add(1)
			go m.resubscribe()
		}
		m.mu.Unlock()
		return nil
	}
	m.track(sub)
	return nil
}

// resubscribe retries the event subscription with exponential backoff until
// it succeeds or the monitor closes.
func (m *Monitor) resubscribe() {
	defer m.wg.Done()
	delay := m.cfg.RetryInterval
	if delay <= 0 {
		delay = DefaultRetryInterval
	}
	for attempt := 1; ; attempt++ {
		timer := time.NewTimer(delay)
		select {
		case <-m.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		sub, err := m.source.Subscribe(m.ctx, m.cfg.Path, m.onDelivery)
		if err == nil {
			slog.Info("event subscription restored", "path", m.cfg.Path, "attempts", attempt)
			m.track(sub)
			return
		}
		if m.ctx.Err() != nil {
			return
		}
		slog.Warn("event subscription retry failed", "path", m.cfg.Path, "attempt", attempt, "err", err)
		m.onDelivery(realtime.Delivery{Err: err})
		delay = min(2*delay, maxRetryInterval)
	}
}

func (m *Monitor) track(sub realtime.Subscription) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		sub.Unsubscribe()
		return
	}
	m.subs = append(m.subs, sub)
}

// Close releases every subscription and waits for pending escalations.
func (m *Monitor) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	subs := m.subs
	m.subs = nil
	cancel := m.cancel
	m.mu.Unlock()

	for _, sub := range subs {
		sub.Unsubscribe()
	}
	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
}

func (m *Monitor) onDelivery(d realtime.Delivery) {
	if d.Err != nil {
		m.observe(d.Err, nil, 0)
		m.mu.Lock()
		m.status.State = StateDisconnected
		m.status.Connected = false
		m.status.LastError = d.Err.Error()
		m.mu.Unlock()
		slog.Warn("event feed unavailable", "path", m.cfg.Path, "err", d.Err)
		return
	}

	res := compliance.Normalize(d.Snapshot, m.cfg.Retention)
	summary := compliance.Summarize(res.Events)
	schemas := make(map[string]int, len(res.Schemas))
	for k, v := range res.Schemas {
		schemas[string(k)] = v
	}
	m.observe(nil, schemas, res.Malformed)
	for _, issue := range res.Issues {
		slog.Debug("malformed entry", "key", issue.Key, "reason", issue.Reason)
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	at := m.now()
	prevViolations := m.violations
	first := m.status.Deliveries == 0
	m.events = res.Events
	m.summary = summary
	m.violations = summary.Violations
	m.ledger = ledger.Build(m.events, m.list)
	m.status = Status{
		State:      StateConnected,
		Connected:  true,
		LastUpdate: &at,
		Deliveries: m.status.Deliveries + 1,
		Malformed:  res.Malformed,
		Skipped:    res.Skipped,
		Schemas:    maps.Clone(res.Schemas),
	}
	candidates := m.escalationCandidates()
	ctx := m.ctx
	m.mu.Unlock()

	m.escalate(candidates)
	if m.onViolations != nil && !first && summary.Violations > prevViolations && ctx != nil {
		m.onViolations(ctx)
	}
}

func (m *Monitor) onReprimands(list []reprimand.Reprimand) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.list = slices.Clone(list)
	m.ledger = ledger.Build(m.events, m.list)
	candidates := m.escalationCandidates()
	m.mu.Unlock()

	m.escalate(candidates)
}

// escalationCandidates must be called with mu held. A non-empty result
// must be handed to escalate.
func (m *Monitor) escalationCandidates() []ledger.Record {
	if !m.cfg.AutoEscalate || m.reprimands == nil {
		return nil
	}
	var out []ledger.Record
	for _, rec := range ledger.HighRisk(m.ledger, m.cfg.Threshold) {
		if rec.OpenReprimands > 0 || m.inflight[rec.EmployeeID] || rec.EmployeeID == compliance.UnknownEmployee {
			continue
		}
		uncovered, ok := m.uncoveredViolations(rec.EmployeeID)
		if !ok || uncovered.TotalViolations < m.cfg.Threshold {
			continue
		}
		m.inflight[rec.EmployeeID] = true
		out = append(out, uncovered)
	}
	if len(out) > 0 {
		m.wg.Add(1)
	}
	return out
}

// uncoveredViolations summarizes the employee's violations that no
// reprimand has answered yet. A reprimand in any status covers every
// violation observed at or before its issue time; events without a valid
// timestamp cannot be ordered and count as covered once one exists.
// mu must be held.
func (m *Monitor) uncoveredViolations(employeeID string) (ledger.Record, bool) {
	var lastIssued time.Time
	reprimanded := false
	for _, r := range m.list {
		if r.EmployeeID != employeeID {
			continue
		}
		reprimanded = true
		if r.IssuedAt.After(lastIssued) {
			lastIssued = r.IssuedAt
		}
	}
	var events []compliance.Event
	for _, e := range m.events {
		if e.EmployeeID != employeeID {
			continue
		}
		if reprimanded && (!e.ValidTimestamp || !e.At.After(lastIssued)) {
			continue
		}
		events = append(events, e)
	}
	rec, ok := ledger.Build(events, nil)[employeeID]
	return rec, ok
}

func (m *Monitor) escalate(candidates []ledger.Record) {
	if len(candidates) == 0 {
		return
	}
	go func() {
		defer m.wg.Done()
		for _, rec := range candidates {
			m.issueFor(rec)
		}
	}()
}

func (m *Monitor) issueFor(rec ledger.Record) {
	defer func() {
		m.mu.Lock()
		delete(m.inflight, rec.EmployeeID)
		m.mu.Unlock()
	}()
	if m.ctx.Err() != nil {
		return
	}
	labels := make([]string, len(rec.ViolationTypes))
	for i, v := range rec.ViolationTypes {
		labels[i] = string(v)
	}
	ctx := requestctx.WithOrigin(m.ctx, requestctx.OriginAutoEscalation)
	r, err := m.reprimands.Issue(ctx, reprimand.IssueInput{EmployeeID: rec.EmployeeID, Violations: labels})
	if err != nil {
		slog.Warn("automatic escalation failed", "employeeId", rec.EmployeeID, "err", err)
		return
	}
	slog.Info("reprimand issued automatically", "employeeId", rec.EmployeeID, "reprimandId", r.ID, "violations", rec.TotalViolations)
}

func (m *Monitor) observe(err error, schemas map[string]int, malformed int) {
	if m.metrics != nil {
		m.metrics.ObserveSnapshot(err, schemas, malformed)
	}
}

// View returns a copy of the current working set.
func (m *Monitor) View() View {
	m.mu.RLock()
	defer m.mu.RUnlock()
	status := m.status
	status.Schemas = maps.Clone(m.status.Schemas)
	return View{
		Events:     slices.Clone(m.events),
		Summary:    m.summary,
		Ledger:     maps.Clone(m.ledger),
		Reprimands: slices.Clone(m.list),
		Status:     status,
		Threshold:  m.cfg.Threshold,
	}
}

func (m *Monitor) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	status := m.status
	status.Schemas = maps.Clone(m.status.Schemas)
	return status
}
