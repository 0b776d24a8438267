package observability

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestMetricsExposedOnHandler(t *testing.T) {
	mp, handler, err := SetupMetrics("test")
	require.NoError(t, err)
	defer func() { _ = mp.Shutdown(context.Background()) }()

	m, err := NewMetrics(mp.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordStage(ctx, StageAnalysis, time.Now(), nil)
	m.RecordStage(ctx, StageSynthesis, time.Now(), errors.New("x"))
	m.RecordExtraction(ctx, "structured")

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "assistant_stage_total")
	assert.Contains(t, body, `stage="synthesis"`)
	assert.Contains(t, body, "assistant_extraction_total")
}

func TestNilAndNoopMetrics(t *testing.T) {
	var m *Metrics
	m.RecordStage(context.Background(), StageAnalysis, time.Now(), nil)
	m.RecordExtraction(context.Background(), "raw_text")

	NoopMetrics().RecordStage(context.Background(), StageAnalysis, time.Now(), nil)
}

func TestSetupTracing(t *testing.T) {
	prev := otel.GetTracerProvider()
	defer otel.SetTracerProvider(prev)

	var buf bytes.Buffer
	shutdown, err := SetupTracing("test", &buf)
	require.NoError(t, err)

	_, span := otel.Tracer("test").Start(context.Background(), "op")
	span.End()

	require.NoError(t, shutdown(context.Background()))
	assert.Contains(t, buf.String(), `"Name":"op"`)
}
