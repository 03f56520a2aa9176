// internal/common/observability/observability_test.go
package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"loan-workers/internal/common/logger"
)

func TestStartSpan_LogsFinishedSpan(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	obs := New("loan-workers-test", logger.NewZapAdapter(zap.New(core)))
	defer obs.Shutdown()

	_, span := obs.StartSpan(context.Background(), "loan.create", attribute.String("client", "c1"))
	EndSpan(span, errors.New("screening missing"))

	entries := logs.FilterMessage("span finished").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "loan.create", fields["span"])
	assert.Equal(t, "c1", fields["client"])
	assert.Equal(t, "screening missing", fields["error"])
}

func TestNilObservabilityIsSafe(t *testing.T) {
	var obs *Observability
	ctx, span := obs.StartSpan(context.Background(), "noop")
	EndSpan(span, nil)
	obs.RecordJobProcessed(ctx, "ok")
	obs.Shutdown()
}
