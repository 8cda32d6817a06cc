package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSampler(t *testing.T) {
	tests := []struct {
		name, arg string
		want      string
	}{
		{"always_on", "", "AlwaysOnSampler"},
		{"always_off", "", "AlwaysOffSampler"},
		{"traceidratio", "0.25", "TraceIDRatioBased{0.25}"},
		{"traceidratio", "bogus", "AlwaysOnSampler"},
	}

	for _, tt := range tests {
		t.Run(tt.name+"/"+tt.arg, func(t *testing.T) {
			assert.Equal(t, tt.want, newSampler(tt.name, tt.arg).Description())
		})
	}

	assert.Contains(t, newSampler("", "").Description(), "ParentBased{root:AlwaysOnSampler")
	assert.Contains(t, newSampler("unknown", "").Description(), "ParentBased{root:AlwaysOnSampler")
}

func TestParseTraceIDRatio(t *testing.T) {
	assert.InDelta(t, 0.5, parseTraceIDRatio("0.5"), 1e-9)
	assert.InDelta(t, 1.0, parseTraceIDRatio(""), 1e-9)
	assert.InDelta(t, 1.0, parseTraceIDRatio("1.5"), 1e-9)
	assert.InDelta(t, 1.0, parseTraceIDRatio("-0.1"), 1e-9)
}

func TestNewTracerProvider_Disabled(t *testing.T) {
	tp, err := NewTracerProvider(context.Background(), TracerProviderConfig{})
	require.NoError(t, err)
	assert.Nil(t, tp)
	require.NoError(t, ShutdownTracerProvider(context.Background(), nil))
}

func TestNewTracerProvider_Stdout(t *testing.T) {
	tp, err := NewTracerProvider(context.Background(), TracerProviderConfig{ServiceName: "test", Exporter: TracesExporterStdout})
	require.NoError(t, err)
	require.NotNil(t, tp)
	require.NoError(t, ShutdownTracerProvider(context.Background(), tp))
}
