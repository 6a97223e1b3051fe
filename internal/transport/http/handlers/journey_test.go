package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ppewatch/internal/app/server"
	"ppewatch/internal/platform/config"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code string `json:"code"`
	} `json:"error"`
}

func testConfig() config.Config {
	return config.Config{
		Environment:        "test",
		StoreDriver:        config.DriverMemory,
		RealtimeDriver:     config.DriverMemory,
		EventsPath:         "ppe",
		EventRetention:     20,
		HighRiskThreshold:  3,
		EmailFrom:          "alerts@test.local",
		MaxBodyBytes:       1048576,
		RateLimitPerMinute: 1000,
		IdempotencyTTL:     time.Minute,
		MetricsEnabled:     true,
	}
}

func startApp(t *testing.T, cfg config.Config) (*server.App, *httptest.Server) {
	t.Helper()
	app, err := server.New(context.Background(), cfg)
	require.NoError(t, err)
	ts := httptest.NewServer(app.Router)
	t.Cleanup(func() {
		ts.Close()
		app.Close()
	})
	return app, ts
}

func call(t *testing.T, ts *httptest.Server, method, path string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, ts.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, raw
}

func decode[T any](t *testing.T, raw []byte) T {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	require.True(t, env.Success, string(raw))
	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out), string(env.Data))
	return out
}

func errorCode(t *testing.T, raw []byte) string {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	require.NotNil(t, env.Error, string(raw))
	return env.Error.Code
}

func snapshot() map[string]any {
	return map[string]any{
		"2024-03-01 07:15:00": map[string]any{"ID Number": "E-100", "hardhat": 1, "vest": 1, "gloves": 1, "direction": "entry"},
		"2024-03-01 08:30:00": map[string]any{"ID Number": "E-200", "hardhat": 0, "vest": 1, "gloves": 1, "direction": "entry"},
		"2024-03-01 13:05:00": map[string]any{"ID Number": "E-200", "Hardhat": "0", "Vest": "0", "Gloves": "1", "Direction": "Exit"},
		"2024-03-02 19:45:00": map[string]any{"ID Number": "E-200", "hardhat": 1, "vest": 1, "gloves": 0, "direction": "exit"},
		"lastUpdated":         "2024-03-02T19:45:00Z",
	}
}

func TestComplianceJourney(t *testing.T) {
	app, ts := startApp(t, testConfig())
	require.NoError(t, app.Feed.Publish(context.Background(), "ppe", snapshot()))

	resp, raw := call(t, ts, http.MethodGet, "/api/v1/compliance/summary", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	summary := decode[struct {
		Total          int     `json:"total"`
		Violations     int     `json:"violations"`
		ComplianceRate float64 `json:"complianceRate"`
		Connectivity   struct {
			State string `json:"state"`
		} `json:"connectivity"`
	}](t, raw)
	assert.Equal(t, 4, summary.Total)
	assert.Equal(t, 3, summary.Violations)
	assert.Equal(t, 25.0, summary.ComplianceRate)
	assert.Equal(t, "connected", summary.Connectivity.State)

	resp, raw = call(t, ts, http.MethodGet, "/api/v1/compliance/events?direction=exit", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "2", resp.Header.Get("X-Total-Count"))
	events := decode[[]struct {
		EmployeeID string `json:"employeeId"`
		Timestamp  string `json:"timestamp"`
	}](t, raw)
	require.Len(t, events, 2)
	assert.Equal(t, "2024-03-02 19:45:00", events[0].Timestamp)

	resp, raw = call(t, ts, http.MethodGet, "/api/v1/compliance/events?direction=sideways", nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "validation_error", errorCode(t, raw))

	resp, raw = call(t, ts, http.MethodGet, "/api/v1/compliance/export", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/csv", resp.Header.Get("Content-Type"))
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "Timestamp,ID Number,Hardhat,Vest,Gloves,Entry/Exit", strings.TrimSpace(lines[0]))

	resp, raw = call(t, ts, http.MethodGet, "/api/v1/compliance/daily?days=1", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	daily := decode[[]struct {
		Date string `json:"date"`
	}](t, raw)
	require.Len(t, daily, 1)
	assert.Equal(t, "2024-03-02", daily[0].Date)

	resp, raw = call(t, ts, http.MethodGet, "/api/v1/employees/high-risk", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	risky := decode[[]struct {
		EmployeeID      string   `json:"employeeId"`
		TotalViolations int      `json:"totalViolations"`
		ViolationTypes  []string `json:"violationTypes"`
	}](t, raw)
	require.Len(t, risky, 1)
	assert.Equal(t, "E-200", risky[0].EmployeeID)
	assert.Equal(t, []string{"Hardhat", "Vest", "Gloves"}, risky[0].ViolationTypes)

	resp, raw = call(t, ts, http.MethodPost, "/api/v1/compliance/contract/validate", snapshot(), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	report := decode[struct {
		Valid   bool     `json:"valid"`
		Skipped []string `json:"skipped"`
	}](t, raw)
	assert.True(t, report.Valid)
	assert.Equal(t, []string{"lastUpdated"}, report.Skipped)

	resp, raw = call(t, ts, http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), "ppewatch_snapshots_total")
}

func TestReprimandJourney(t *testing.T) {
	_, ts := startApp(t, testConfig())

	issue := map[string]any{"employeeId": "E-200", "violations": []string{"hardhat", "Vest", "Hardhat"}}
	headers := map[string]string{"Idempotency-Key": "issue-e200"}
	resp, raw := call(t, ts, http.MethodPost, "/api/v1/reprimands", issue, headers)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))
	created := decode[struct {
		ID         string   `json:"id"`
		Severity   string   `json:"severity"`
		Status     string   `json:"status"`
		Violations []string `json:"violations"`
		Notes      string   `json:"notes"`
	}](t, raw)
	assert.Equal(t, "medium", created.Severity)
	assert.Equal(t, "pending", created.Status)
	assert.Equal(t, []string{"Hardhat", "Vest"}, created.Violations)
	assert.Equal(t, "PPE violations detected: Hardhat, Vest", created.Notes)

	resp, replay := call(t, ts, http.MethodPost, "/api/v1/reprimands", issue, headers)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "true", resp.Header.Get("Idempotent-Replayed"))
	assert.JSONEq(t, string(raw), string(replay))

	resp, raw = call(t, ts, http.MethodPost, "/api/v1/reprimands", map[string]any{"employeeId": "E-1", "violations": []string{}}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_input", errorCode(t, raw))

	base := "/api/v1/reprimands/" + created.ID
	resp, _ = call(t, ts, http.MethodPost, base+"/acknowledge", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, raw = call(t, ts, http.MethodPost, base+"/retraining", map[string]string{"type": "juggling"}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_input", errorCode(t, raw))

	resp, raw = call(t, ts, http.MethodPost, base+"/retraining", map[string]string{"type": "ppe_training"}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	retraining := decode[struct {
		Status     string `json:"status"`
		Retraining struct {
			Type string `json:"type"`
		} `json:"retraining"`
	}](t, raw)
	assert.Equal(t, "retraining", retraining.Status)
	assert.Equal(t, "ppe_training", retraining.Retraining.Type)

	resp, raw = call(t, ts, http.MethodPost, base+"/retraining/complete", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "resolved", decode[struct {
		Status string `json:"status"`
	}](t, raw).Status)

	resp, raw = call(t, ts, http.MethodPost, base+"/resolve", nil, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "invalid_transition", errorCode(t, raw))

	resp, raw = call(t, ts, http.MethodGet, "/api/v1/reprimands/missing-id", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not_found", errorCode(t, raw))

	resp, raw = call(t, ts, http.MethodGet, base+"/notice", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(raw, []byte("%PDF")))

	resp, raw = call(t, ts, http.MethodGet, "/api/v1/reprimands/stats", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	stats := decode[struct {
		Total    int `json:"total"`
		Resolved int `json:"resolved"`
	}](t, raw)
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 1, stats.Resolved)

	resp, raw = call(t, ts, http.MethodGet, "/api/v1/audit/events?entityId="+created.ID, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "4", resp.Header.Get("X-Total-Count"))
	audits := decode[[]struct {
		Action string `json:"action"`
		Origin string `json:"origin"`
	}](t, raw)
	require.Len(t, audits, 4)
	assert.Equal(t, "reprimand.complete_retraining", audits[0].Action)
	assert.Equal(t, "api", audits[0].Origin)
}

func TestDigestJourney(t *testing.T) {
	app, ts := startApp(t, testConfig())
	require.NoError(t, app.Feed.Publish(context.Background(), "ppe", snapshot()))

	resp, raw := call(t, ts, http.MethodPost, "/api/v1/notifications/digest", nil, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "digest_disabled", errorCode(t, raw))

	resp, raw = call(t, ts, http.MethodPut, "/api/v1/notifications/settings", map[string]any{
		"enabled":   true,
		"frequency": "custom",
		"contacts":  []map[string]string{{"name": "Lead", "email": "not-an-email"}},
	}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_settings", errorCode(t, raw))

	resp, raw = call(t, ts, http.MethodPut, "/api/v1/notifications/settings", map[string]any{
		"enabled":     true,
		"frequency":   "custom",
		"customValue": 30,
		"customUnit":  "minutes",
		"contacts":    []map[string]string{{"name": "Lead", "email": "lead@site.example"}},
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))

	resp, raw = call(t, ts, http.MethodPost, "/api/v1/notifications/digest", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	result := decode[struct {
		Subject    string `json:"subject"`
		Recipients int    `json:"recipients"`
	}](t, raw)
	assert.Equal(t, 1, result.Recipients)
	assert.Contains(t, result.Subject, "25.0%")

	resp, raw = call(t, ts, http.MethodGet, "/api/v1/notifications/digest/runs", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	runs := decode[[]struct {
		Status string `json:"status"`
	}](t, raw)
	require.Len(t, runs, 2)
	assert.Equal(t, "completed", runs[0].Status)
	assert.Equal(t, "failed", runs[1].Status)
}

func TestAutoEscalationJourney(t *testing.T) {
	cfg := testConfig()
	cfg.AutoEscalate = true
	app, ts := startApp(t, cfg)
	require.NoError(t, app.Feed.Publish(context.Background(), "ppe", snapshot()))

	require.Eventually(t, func() bool {
		resp, raw := call(t, ts, http.MethodGet, "/api/v1/reprimands?employeeId=E-200", nil, nil)
		if resp.StatusCode != http.StatusOK {
			return false
		}
		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			return false
		}
		var list []json.RawMessage
		return json.Unmarshal(env.Data, &list) == nil && len(list) == 1
	}, 2*time.Second, 20*time.Millisecond)

	resp, raw := call(t, ts, http.MethodGet, "/api/v1/employees/ledger", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	ledger := decode[[]struct {
		EmployeeID        string `json:"employeeId"`
		PendingReprimands int    `json:"pendingReprimands"`
	}](t, raw)
	require.Len(t, ledger, 1)
	assert.Equal(t, 1, ledger[0].PendingReprimands)

	resp, raw = call(t, ts, http.MethodGet, "/api/v1/audit/events?origin=auto-escalation", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "1", resp.Header.Get("X-Total-Count"))

	resp, raw = call(t, ts, http.MethodGet, "/api/v1/audit/events?origin=cron", nil, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "validation_error", errorCode(t, raw))
}

func TestPostgresJourney(t *testing.T) {
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	cfg := testConfig()
	cfg.StoreDriver = config.DriverPostgres
	cfg.DatabaseURL = dbURL
	cfg.RunMigrations = true
	cfg.MigrationsDir = "../../../../migrations"
	_, ts := startApp(t, cfg)

	resp, raw := call(t, ts, http.MethodGet, "/readyz", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))

	resp, raw = call(t, ts, http.MethodPost, "/api/v1/reprimands", map[string]any{"employeeId": "PG-1", "violations": []string{"Gloves"}}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))
	created := decode[struct {
		ID string `json:"id"`
	}](t, raw)

	resp, _ = call(t, ts, http.MethodPost, "/api/v1/reprimands/"+created.ID+"/resolve", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestReadinessFollowsRealtimeHealth(t *testing.T) {
	redisURL := os.Getenv("TEST_REDIS_URL")
	if redisURL == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	cfg := testConfig()
	cfg.RealtimeDriver = config.DriverRedis
	cfg.RedisURL = redisURL
	cfg.RealtimePrefix = "ppewatch-ready-" + time.Now().Format("150405.000000")
	app, ts := startApp(t, cfg)

	resp, raw := call(t, ts, http.MethodGet, "/readyz", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))

	require.NoError(t, app.Redis.Close())
	resp, raw = call(t, ts, http.MethodGet, "/readyz", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Contains(t, string(raw), "realtime source not ready")
}

func TestReadinessWithMemorySource(t *testing.T) {
	_, ts := startApp(t, testConfig())
	resp, raw := call(t, ts, http.MethodGet, "/readyz", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ready", string(raw))
}
