package tracer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/dmehra2102/prod-golang-projects/oralscreen/config"
)

func TestNewProvider_ExportsComponentSpans(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	tp, err := NewProvider(
		config.TracingConfig{Enabled: true, ServiceName: "oralscreen-test", SampleRate: 1},
		config.AppConfig{Version: "1.2.3", Environment: "test"},
		exp,
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	_, span := Tracer("service").Start(context.Background(), "RecordService.Predict")
	span.End()
	require.NoError(t, tp.ForceFlush(context.Background()))

	spans := exp.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "RecordService.Predict", spans[0].Name)
	assert.Equal(t, scopePrefix+"service", spans[0].InstrumentationScope.Name)

	attrs := spans[0].Resource.Set()
	name, ok := attrs.Value(attribute.Key("service.name"))
	require.True(t, ok)
	assert.Equal(t, "oralscreen-test", name.AsString())
	env, ok := attrs.Value(attribute.Key("deployment.environment.name"))
	require.True(t, ok)
	assert.Equal(t, "test", env.AsString())
}

func TestInit_DisabledRecordsNothing(t *testing.T) {
	tp, err := Init(config.TracingConfig{Enabled: false}, config.AppConfig{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	_, span := Tracer("report").Start(context.Background(), "ReportService.Render")
	defer span.End()
	assert.False(t, span.IsRecording())
}
