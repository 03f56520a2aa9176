// internal/audit/audit_test.go
package audit

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"loan-workers/internal/common/logger"
	"loan-workers/internal/models"
)

// ==========================
// Test Helper Functions
// ==========================

type indexRequest struct {
	Method string
	Path   string
	Body   map[string]interface{}
}

func newFakeCluster(t *testing.T, status int) (*elasticsearch.Client, func() []indexRequest) {
	var (
		mu       sync.Mutex
		requests []indexRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var body map[string]interface{}
		_ = json.Unmarshal(raw, &body)

		mu.Lock()
		requests = append(requests, indexRequest{Method: r.Method, Path: r.URL.Path, Body: body})
		mu.Unlock()

		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"_index":"loan-audit","_id":"1","result":"created"}`))
	}))
	t.Cleanup(srv.Close)

	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)

	return client, func() []indexRequest {
		mu.Lock()
		defer mu.Unlock()
		return append([]indexRequest(nil), requests...)
	}
}

// ==========================
// Elastic Tracker Tests
// ==========================

func TestElasticTracker_IndexesEntry(t *testing.T) {
	client, requests := newFakeCluster(t, http.StatusCreated)
	tracker := NewElasticTracker(client, "loan-audit", logger.NewTestLogger(t))
	tracker.now = func() time.Time { return time.Date(2024, 6, 1, 8, 30, 0, 0, time.UTC) }

	err := tracker.Track(context.Background(), models.AuditEntry{
		Event:      EventLoanStatusUpdate,
		Actor:      "manager-1",
		Message:    "Update Status for Loan Form",
		EntityType: "loan",
		EntityRef:  "loan-1",
		Diff:       map[string]interface{}{"status": "accepted"},
	})
	require.NoError(t, err)

	got := requests()
	require.Len(t, got, 1)
	assert.Equal(t, "/loan-audit/_doc", got[0].Path)
	assert.Equal(t, "loan_status_update", got[0].Body["event"])
	assert.Equal(t, "2024-06-01T08:30:00Z", got[0].Body["at"])
	assert.Equal(t, map[string]interface{}{"status": "accepted"}, got[0].Body["diff"])
}

func TestElasticTracker_ReportsClusterError(t *testing.T) {
	client, _ := newFakeCluster(t, http.StatusServiceUnavailable)
	tracker := NewElasticTracker(client, "loan-audit", logger.NewTestLogger(t))

	err := tracker.Track(context.Background(), models.AuditEntry{Event: EventLoanView, Actor: "u1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

// ==========================
// Log Tracker Tests
// ==========================

func TestLogTracker_WritesStructuredEntry(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	tracker := NewLogTracker(logger.NewZapAdapter(zap.New(core)))

	require.NoError(t, tracker.Track(context.Background(), models.AuditEntry{
		Event:     EventLoanDelete,
		Actor:     "admin",
		Message:   "Delete Info for loan-9",
		EntityRef: "loan-9",
	}))

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "Delete Info for loan-9", entries[0].Message)
	assert.Equal(t, "loan_delete", entries[0].ContextMap()["event"])
	assert.Equal(t, "audit", entries[0].ContextMap()["component"])
}
