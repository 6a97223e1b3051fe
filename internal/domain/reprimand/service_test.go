package reprimand

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type flakyStore struct {
	*MemoryStore
	failUpdate bool
	failCreate bool
}

func (f *flakyStore) Create(ctx context.Context, r Reprimand) (string, error) {
	if f.failCreate {
		return "", errors.New("store offline")
	}
	return f.MemoryStore.Create(ctx, r)
}

func (f *flakyStore) Update(ctx context.Context, id string, patch Patch) error {
	if f.failUpdate {
		return errors.New("store offline")
	}
	return f.MemoryStore.Update(ctx, id, patch)
}

type auditCall struct {
	action string
	id     string
}

type recordingAuditor struct {
	mu    sync.Mutex
	calls []auditCall
}

func (a *recordingAuditor) Record(ctx context.Context, action, entityType, entityID string, before, after any) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, auditCall{action: action, id: entityID})
	return nil
}

func newTestService(store StoreAPI) (*Service, *recordingAuditor) {
	auditor := &recordingAuditor{}
	clock := func() time.Time { return fixedNow }
	return NewService(store, WithAuditor(auditor), WithClock(clock)), auditor
}

func mustIssue(t *testing.T, svc *Service, employeeID string, violations ...string) Reprimand {
	t.Helper()
	r, err := svc.Issue(context.Background(), IssueInput{EmployeeID: employeeID, Violations: violations})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	return r
}

func TestServiceScenarioB(t *testing.T) {
	ctx := context.Background()
	svc, auditor := newTestService(NewMemoryStore())

	r := mustIssue(t, svc, "E1", "Vest")
	if r.ID == "" || r.Status != StatusPending || r.Severity != SeverityLow {
		t.Fatalf("unexpected issued reprimand: %+v", r)
	}

	r, err := svc.AssignRetraining(ctx, r.ID, RetrainingPPETraining)
	if err != nil {
		t.Fatalf("assign retraining: %v", err)
	}
	if r.Status != StatusRetraining || r.Retraining == nil || r.Retraining.Completed {
		t.Fatalf("unexpected retraining state: %+v", r)
	}

	r, err = svc.CompleteRetraining(ctx, r.ID)
	if err != nil {
		t.Fatalf("complete retraining: %v", err)
	}
	if r.Status != StatusResolved || !r.Retraining.Completed {
		t.Fatalf("expected resolved with completed retraining: %+v", r)
	}

	stored, err := svc.Get(ctx, r.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Status != StatusResolved || stored.Retraining == nil || !stored.Retraining.Completed {
		t.Fatalf("store out of sync: %+v", stored)
	}

	if len(auditor.calls) != 3 {
		t.Fatalf("expected 3 audit records, got %d", len(auditor.calls))
	}
	if auditor.calls[0].action != "reprimand.issue" || auditor.calls[2].action != "reprimand.complete_retraining" {
		t.Fatalf("unexpected audit actions: %+v", auditor.calls)
	}
}

func TestServiceScenarioC(t *testing.T) {
	ctx := context.Background()
	svc, auditor := newTestService(NewMemoryStore())
	r := mustIssue(t, svc, "E1", "Vest")
	if _, err := svc.AssignRetraining(ctx, r.ID, RetrainingSafetyBriefing); err != nil {
		t.Fatalf("assign retraining: %v", err)
	}

	if _, err := svc.Resolve(ctx, r.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}

	stored, err := svc.Get(ctx, r.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Status != StatusRetraining || stored.Retraining == nil {
		t.Fatalf("rejected transition must not change state: %+v", stored)
	}
	if len(auditor.calls) != 2 {
		t.Fatalf("rejected transition must not be audited, got %d records", len(auditor.calls))
	}
}

func TestServiceIssueInvalidInputNeverWrites(t *testing.T) {
	store := NewMemoryStore()
	svc, _ := newTestService(store)
	if _, err := svc.Issue(context.Background(), IssueInput{EmployeeID: "E1"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	list, _ := store.List(context.Background())
	if len(list) != 0 {
		t.Fatalf("expected nothing stored, got %d", len(list))
	}
}

func TestServiceNotFound(t *testing.T) {
	svc, _ := newTestService(NewMemoryStore())
	if _, err := svc.Acknowledge(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := svc.Get(context.Background(), ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for empty id, got %v", err)
	}
}

func TestServiceRollsBackOnPersistenceError(t *testing.T) {
	ctx := context.Background()
	store := &flakyStore{MemoryStore: NewMemoryStore()}
	svc, _ := newTestService(store)
	r := mustIssue(t, svc, "E1", "Vest")

	store.failUpdate = true
	_, err := svc.Acknowledge(ctx, r.ID)
	if !errors.Is(err, ErrPersistenceWrite) {
		t.Fatalf("expected ErrPersistenceWrite, got %v", err)
	}
	var persistErr *PersistenceError
	if !errors.As(err, &persistErr) || persistErr.ID != r.ID {
		t.Fatalf("expected PersistenceError for %s, got %v", r.ID, err)
	}

	cached := svc.Cached()
	if len(cached) != 1 || cached[0].Status != StatusPending {
		t.Fatalf("cache must roll back to pending: %+v", cached)
	}

	store.failUpdate = false
	acked, err := svc.Acknowledge(ctx, r.ID)
	if err != nil {
		t.Fatalf("acknowledge after recovery: %v", err)
	}
	if acked.Status != StatusAcknowledged {
		t.Fatalf("expected acknowledged, got %s", acked.Status)
	}
}

func TestServiceIssuePersistenceError(t *testing.T) {
	store := &flakyStore{MemoryStore: NewMemoryStore(), failCreate: true}
	svc, auditor := newTestService(store)
	_, err := svc.Issue(context.Background(), IssueInput{EmployeeID: "E1", Violations: []string{"Vest"}})
	if !errors.Is(err, ErrPersistenceWrite) {
		t.Fatalf("expected ErrPersistenceWrite, got %v", err)
	}
	if len(svc.Cached()) != 0 || len(auditor.calls) != 0 {
		t.Fatal("failed issue must not be cached or audited")
	}
}

func TestServiceSubscribeSyncsCache(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	svc, _ := newTestService(store)

	var pushes [][]Reprimand
	sub, err := svc.Subscribe(ctx, func(list []Reprimand) { pushes = append(pushes, list) })
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Unsubscribe()

	mustIssue(t, NewService(store), "E2", "Gloves")

	if len(pushes) != 2 || len(pushes[1]) != 1 {
		t.Fatalf("expected initial and change pushes, got %d", len(pushes))
	}
	if len(svc.Cached()) != 1 {
		t.Fatalf("cache not synced: %d entries", len(svc.Cached()))
	}
}

func TestServiceListAndStats(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(NewMemoryStore())
	a := mustIssue(t, svc, "E1", "Vest")
	mustIssue(t, svc, "E2", "Hardhat", "Vest", "Gloves")
	if _, err := svc.Resolve(ctx, a.ID); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	pending, err := svc.List(ctx, ListFilter{Status: StatusPending})
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 1 || pending[0].EmployeeID != "E2" {
		t.Fatalf("unexpected pending list: %+v", pending)
	}

	byEmployee, err := svc.List(ctx, ListFilter{EmployeeID: "E1"})
	if err != nil {
		t.Fatalf("list by employee: %v", err)
	}
	if len(byEmployee) != 1 {
		t.Fatalf("expected 1 reprimand for E1, got %d", len(byEmployee))
	}

	stats, err := svc.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	want := Stats{Total: 2, Pending: 1, Resolved: 1, HighSeverity: 1, Employees: 2}
	if stats != want {
		t.Fatalf("expected %+v, got %+v", want, stats)
	}
}

func TestWriteNotice(t *testing.T) {
	r := issued(t, "Vest", "Gloves")
	r, err := Apply(r, AssignRetraining(RetrainingPPETraining), fixedNow)
	if err != nil {
		t.Fatalf("assign retraining: %v", err)
	}

	var buf bytes.Buffer
	if err := WriteNotice(&buf, r); err != nil {
		t.Fatalf("write notice: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF")) {
		t.Fatal("expected a PDF document")
	}
}
