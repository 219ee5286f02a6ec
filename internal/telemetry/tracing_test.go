package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Togather-Foundation/listsync/internal/config"
)

func TestInitTracingDisabled(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), config.TracingConfig{Enabled: false}, "test")
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestInitTracingNoneExporter(t *testing.T) {
	cfg := config.TracingConfig{Enabled: true, Exporter: "none", ServiceName: "listsync", SampleRate: 0.5}
	shutdown, err := InitTracing(context.Background(), cfg, "test")
	require.NoError(t, err)

	_, span := GetTracer("test").Start(context.Background(), "op")
	span.End()
	assert.NoError(t, shutdown(context.Background()))
}

func TestInitTracingRejectsBadConfig(t *testing.T) {
	_, err := InitTracing(context.Background(), config.TracingConfig{Enabled: true, Exporter: "none", SampleRate: 2}, "test")
	assert.Error(t, err)

	_, err = InitTracing(context.Background(), config.TracingConfig{Enabled: true, Exporter: "zipkin", SampleRate: 1}, "test")
	assert.ErrorContains(t, err, "unsupported exporter")
}

func TestInitTracingOTLPNeedsEndpoint(t *testing.T) {
	_, err := InitTracing(context.Background(), config.TracingConfig{Enabled: true, Exporter: "otlp", SampleRate: 1}, "test")
	assert.ErrorContains(t, err, "OTEL_EXPORTER_OTLP_ENDPOINT")
}

func TestNewSampler(t *testing.T) {
	tests := []struct {
		rate    float64
		want    string
		wantErr bool
	}{
		{rate: 1, want: "AlwaysOnSampler"},
		{rate: 0, want: "AlwaysOffSampler"},
		{rate: 0.25, want: "TraceIDRatioBased{0.25}"},
		{rate: -0.1, wantErr: true},
		{rate: 1.5, wantErr: true},
	}
	for _, tt := range tests {
		s, err := newSampler(tt.rate)
		if tt.wantErr {
			assert.Error(t, err, "rate %v", tt.rate)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, s.Description())
	}
}
