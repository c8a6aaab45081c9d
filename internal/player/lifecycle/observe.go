// Copyright (c) 2025 vflorio
// SPDX-License-Identifier: MIT

package lifecycle

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/vflorio/hbbtv-emu-sub005/internal/log"
	"github.com/vflorio/hbbtv-emu-sub005/internal/player/model"
)

// Observability keys (frozen). Dashboards and alerts depend on these names.
const (
	AttrSessionID = "player.session_id"
	AttrAction    = "player.action"
	AttrFromState = "player.state.from"
	AttrToState   = "player.state.to"
	AttrErrCode   = "player.error_code"
)

var allowedAttributes = map[string]bool{
	AttrSessionID: true,
	AttrAction:    true,
	AttrFromState: true,
	AttrToState:   true,
	AttrErrCode:   true,
}

// EmitTransitionObs records one transition outcome on the current span and
// the runtime meter. Attributes are strictly whitelisted; a key outside the
// frozen set is dropped and logged, never exported.
func EmitTransitionObs(ctx context.Context, sessionID string, act ActionKind, from, to model.StateKind, errCode string) {
	span := trace.SpanFromContext(ctx)
	meter := otel.GetMeterProvider().Meter("player.lifecycle")

	if errCode != "" {
		rejections, _ := meter.Int64Counter("hbbtv_emu.player.rejections",
			metric.WithDescription("Playback actions rejected or failed, by action and code"))
		rejections.Add(ctx, 1, metric.WithAttributes(
			attribute.String(AttrAction, act.String()),
			attribute.String(AttrErrCode, errCode),
		))
	} else {
		transitions, _ := meter.Int64Counter("hbbtv_emu.player.transitions",
			metric.WithDescription("Applied playback state transitions, by action and edge"))
		transitions.Add(ctx, 1, metric.WithAttributes(
			attribute.String(AttrAction, act.String()),
			attribute.String(AttrFromState, string(from)),
			attribute.String(AttrToState, string(to)),
		))
	}

	attrs := []attribute.KeyValue{
		attribute.String(AttrSessionID, sessionID),
		attribute.String(AttrAction, act.String()),
		attribute.String(AttrFromState, string(from)),
		attribute.String(AttrToState, string(to)),
	}
	if errCode != "" {
		attrs = append(attrs, attribute.String(AttrErrCode, errCode))
	}

	for _, kv := range attrs {
		if !allowedAttributes[string(kv.Key)] {
			log.WithComponent("lifecycle").Error().
				Str("event", "obs.attribute_rejected").
				Str("key", string(kv.Key)).
				Msg("attribute outside frozen whitelist")
			continue
		}
		span.SetAttributes(kv)
	}
}

// StartDispatchSpan opens the span under which one dequeued action is
// decided and applied. The tracer is looked up at call time.
func StartDispatchSpan(ctx context.Context) (context.Context, trace.Span) {
	tracer := otel.GetTracerProvider().Tracer("player.lifecycle")
	return tracer.Start(ctx, "player.dispatch")
}
