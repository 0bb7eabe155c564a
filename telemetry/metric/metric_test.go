//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package metric

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsEndpoint(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT", "custom-metric:4317")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "generic-endpoint:4317")
	assert.Equal(t, "custom-metric:4317", metricsEndpoint())

	t.Setenv("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT", "")
	assert.Equal(t, "generic-endpoint:4317", metricsEndpoint())

	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	assert.Equal(t, "localhost:4317", metricsEndpoint())
}

func TestStart(t *testing.T) {
	original := Meter
	t.Cleanup(func() { Meter = original })

	clean, err := Start(context.Background(),
		WithEndpoint("localhost:4317"),
		WithServiceName("test"),
		WithExportInterval(time.Hour),
	)
	require.NoError(t, err)
	require.NotNil(t, clean)
	assert.NotEqual(t, original, Meter)
	_ = clean() // no collector is running
}
