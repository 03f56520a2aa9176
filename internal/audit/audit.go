// internal/audit/audit.go
package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/elastic/go-elasticsearch/v8"

	"loan-workers/internal/common/logger"
	"loan-workers/internal/common/metrics"
	"loan-workers/internal/models"
)

// Audit events written by the loan service.
const (
	EventLoanCreate       = "loan_create"
	EventLoanStatusUpdate = "loan_status_update"
	EventLoanUpdate       = "loan_update"
	EventLoanView         = "view_loan"
	EventLoanDelete       = "loan_delete"
)

// Tracker records audit entries. Callers treat failures as non-fatal.
type Tracker interface {
	Track(ctx context.Context, entry models.AuditEntry) error
}

// LogTracker writes audit entries to the structured log.
type LogTracker struct {
	logger logger.Logger
}

func NewLogTracker(log logger.Logger) *LogTracker {
	return &LogTracker{logger: log.WithFields(map[string]interface{}{"component": "audit"})}
}

func (t *LogTracker) Track(ctx context.Context, entry models.AuditEntry) error {
	fields := map[string]interface{}{
		"event":      entry.Event,
		"actor":      entry.Actor,
		"entityType": entry.EntityType,
		"entityRef":  entry.EntityRef,
	}
	if len(entry.Diff) > 0 {
		fields["diff"] = entry.Diff
	}
	t.logger.Info(entry.Message, fields)
	return nil
}

// ElasticTracker indexes audit entries into one Elasticsearch index.
type ElasticTracker struct {
	client *elasticsearch.Client
	index  string
	logger logger.Logger
	now    func() time.Time
}

func NewElasticTracker(client *elasticsearch.Client, index string, log logger.Logger) *ElasticTracker {
	return &ElasticTracker{
		client: client,
		index:  index,
		logger: log.WithFields(map[string]interface{}{"component": "audit", "index": index}),
		now:    time.Now,
	}
}

func (t *ElasticTracker) Track(ctx context.Context, entry models.AuditEntry) error {
	if entry.At.IsZero() {
		entry.At = t.now().UTC()
	}
	body, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode audit entry: %w", err)
	}

	res, err := t.client.Index(
		t.index,
		bytes.NewReader(body),
		t.client.Index.WithContext(ctx),
	)
	if err != nil {
		metrics.SideEffectFailures.WithLabelValues("audit").Inc()
		return fmt.Errorf("index audit entry: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		metrics.SideEffectFailures.WithLabelValues("audit").Inc()
		return fmt.Errorf("index audit entry: %s", res.Status())
	}

	t.logger.Debug("audit entry indexed", map[string]interface{}{"event": entry.Event, "entityRef": entry.EntityRef})
	return nil
}
