// internal/common/observability/observability_test.go
package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTracing_DisabledWithoutEndpoint(t *testing.T) {
	tr, err := NewTracing("", 1)
	require.NoError(t, err)
	assert.Nil(t, tr)
	assert.NoError(t, tr.Shutdown(context.Background()))
	assert.NotNil(t, Tracer("test"))
}

func TestObservability_NilSafe(t *testing.T) {
	var o *Observability
	ctx := context.Background()
	assert.NotPanics(t, func() {
		o.RecordPrediction(ctx, "http", "ok")
		o.RecordDuration(ctx, time.Millisecond, "http", "ok")
	})
	assert.NoError(t, o.Shutdown(ctx))

	empty := &Observability{}
	assert.NotPanics(t, func() {
		empty.RecordPrediction(ctx, "http", "ok")
	})
}

func TestObservability_RecordsAndShutsDown(t *testing.T) {
	o, err := New("career-predictor-test")
	require.NoError(t, err)

	ctx := context.Background()
	o.RecordPrediction(ctx, "http", "ok")
	o.RecordDuration(ctx, 3*time.Millisecond, "http", "ok")

	shutdownCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	assert.NoError(t, o.Shutdown(shutdownCtx))
}
