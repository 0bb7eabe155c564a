//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package graph

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	noopm "go.opentelemetry.io/otel/metric/noop"

	"trpc.group/trpc-go/trpc-agent-app/log"
	tmetric "trpc.group/trpc-go/trpc-agent-app/telemetry/metric"
)

const (
	statusOK    = "ok"
	statusError = "error"
)

// instruments is a counter and a duration histogram for one kind of work.
type instruments struct {
	count    metric.Int64Counter
	duration metric.Float64Histogram
}

func newInstruments(name, description string) instruments {
	var in instruments
	var err error
	in.count, err = tmetric.Meter.Int64Counter(name+".count", metric.WithDescription(description))
	if err != nil {
		log.Warnf("create counter %s: %v", name, err)
		in.count = noopm.Int64Counter{}
	}
	in.duration, err = tmetric.Meter.Float64Histogram(name+".duration",
		metric.WithDescription(description), metric.WithUnit("s"))
	if err != nil {
		log.Warnf("create histogram %s: %v", name, err)
		in.duration = noopm.Float64Histogram{}
	}
	return in
}

func (in instruments) record(ctx context.Context, start time.Time, status string, attrs ...attribute.KeyValue) {
	attrs = append(attrs, attribute.String("status", status))
	set := metric.WithAttributes(attrs...)
	in.count.Add(ctx, 1, set)
	in.duration.Record(ctx, time.Since(start).Seconds(), set)
}
