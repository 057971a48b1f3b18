package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/medistore/backend/internal/domain/shared"
	"github.com/medistore/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
)

func withRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec)))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
	return rec
}

func TestEndSpan(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus codes.Code
		wantEvent  string
	}{
		{"success", nil, codes.Ok, ""},
		{"domain error", shared.ErrInvalidInput, codes.Unset, "domain_error"},
		{"canceled", context.Canceled, codes.Unset, "canceled"},
		{"unavailable", shared.ErrUnavailable, codes.Error, "exception"},
		{"plain error", errors.New("boom"), codes.Error, "exception"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := withRecorder(t)
			_, span := StartServiceSpan(context.Background(), "order", "submit")
			EndSpan(span, tt.err)

			spans := rec.Ended()
			require.Len(t, spans, 1)
			assert.Equal(t, "order.submit", spans[0].Name())
			assert.Equal(t, tt.wantStatus, spans[0].Status().Code)
			if tt.wantEvent != "" {
				require.NotEmpty(t, spans[0].Events())
				assert.Equal(t, tt.wantEvent, spans[0].Events()[0].Name)
			}
		})
	}
}

func TestSetupTracing_Disabled(t *testing.T) {
	prev := otel.GetTracerProvider()
	shutdown, err := SetupTracing(context.Background(), config.TelemetryConfig{}, "test", zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, prev, otel.GetTracerProvider())
	assert.NoError(t, shutdown(context.Background()))
}

func TestSampler(t *testing.T) {
	assert.Equal(t, sdktrace.AlwaysSample().Description(), sampler(1).Description())
	assert.Equal(t, sdktrace.NeverSample().Description(), sampler(0).Description())
	assert.Contains(t, sampler(0.5).Description(), "TraceIDRatioBased")
}
