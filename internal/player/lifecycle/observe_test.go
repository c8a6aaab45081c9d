// Copyright (c) 2025 vflorio
// SPDX-License-Identifier: MIT

package lifecycle

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/vflorio/hbbtv-emu-sub005/internal/player/model"
)

func TestEmitTransitionObs_CountsTransitionsAndRejections(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	prev := otel.GetMeterProvider()
	otel.SetMeterProvider(provider)
	t.Cleanup(func() {
		otel.SetMeterProvider(prev)
		_ = provider.Shutdown(context.Background())
	})

	ctx := context.Background()
	EmitTransitionObs(ctx, "s-1", ActPlay, model.KindPaused, model.KindPlaying, "")
	EmitTransitionObs(ctx, "s-1", ActPlay, model.KindPaused, model.KindPlaying, "")
	EmitTransitionObs(ctx, "s-1", ActSeek, model.KindIdle, model.KindIdle, "invalid_transition")

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}

	if got := counterValue(t, rm, "hbbtv_emu.player.transitions"); got != 2 {
		t.Errorf("transitions = %d, want 2", got)
	}
	if got := counterValue(t, rm, "hbbtv_emu.player.rejections"); got != 1 {
		t.Errorf("rejections = %d, want 1", got)
	}
}

func TestStartDispatchSpan_NameAndWhitelistedAttributes(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = provider.Shutdown(context.Background())
	})

	ctx, span := StartDispatchSpan(context.Background())
	EmitTransitionObs(ctx, "s-1", ActPlay, model.KindPaused, model.KindPlaying, "")
	span.End()

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("ended spans = %d, want 1", len(spans))
	}
	if spans[0].Name != "player.dispatch" {
		t.Errorf("span name = %q, want player.dispatch", spans[0].Name)
	}

	got := map[string]string{}
	for _, kv := range spans[0].Attributes {
		if !allowedAttributes[string(kv.Key)] {
			t.Errorf("attribute outside whitelist: %s", kv.Key)
		}
		got[string(kv.Key)] = kv.Value.AsString()
	}
	if got[AttrAction] != ActPlay.String() {
		t.Errorf("action attribute = %q, want %q", got[AttrAction], ActPlay.String())
	}
	if got[AttrToState] != string(model.KindPlaying) {
		t.Errorf("to-state attribute = %q, want %q", got[AttrToState], model.KindPlaying)
	}
}

func counterValue(t *testing.T, rm metricdata.ResourceMetrics, name string) int64 {
	t.Helper()
	var total int64
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("%s: unexpected data type %T", name, m.Data)
			}
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
		}
	}
	return total
}
