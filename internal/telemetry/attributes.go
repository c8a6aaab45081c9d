// Copyright (c) 2025 vflorio
// SPDX-License-Identifier: MIT

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Common attribute keys for consistent tracing across the daemon.
const (
	// HTTP attributes
	HTTPMethodKey     = "http.method"
	HTTPStatusCodeKey = "http.status_code"
	HTTPRouteKey      = "http.route"
	HTTPURLKey        = "http.url"
	HTTPUserAgentKey  = "http.user_agent"

	// Session attributes
	SessionIDKey    = "session.id"
	SessionStateKey = "session.state"
	SessionSeqKey   = "session.seq"

	// Playback attributes
	SourceTypeKey     = "playback.source_type"
	SourceURLKey      = "playback.url"
	RepresentationKey = "playback.representation"
	ActionKindKey     = "playback.action"

	// Manifest fetch attributes
	FetchOutcomeKey  = "fetch.outcome"
	FetchCacheHitKey = "fetch.cache_hit"

	// Error attributes
	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// HTTPAttributes creates common HTTP span attributes.
func HTTPAttributes(method, route, url string, statusCode int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(HTTPMethodKey, method),
		attribute.String(HTTPRouteKey, route),
		attribute.String(HTTPURLKey, url),
		attribute.Int(HTTPStatusCodeKey, statusCode),
	}
}

// SessionAttributes creates session-related span attributes.
func SessionAttributes(id, state string, seq uint64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(SessionIDKey, id),
		attribute.String(SessionStateKey, state),
		attribute.Int64(SessionSeqKey, int64(seq)), // #nosec G115 -- seq counts from zero within a session
	}
}

// PlaybackAttributes creates playback-related span attributes, skipping
// unset values.
func PlaybackAttributes(sourceType, url, representation string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 3)
	if sourceType != "" {
		attrs = append(attrs, attribute.String(SourceTypeKey, sourceType))
	}
	if url != "" {
		attrs = append(attrs, attribute.String(SourceURLKey, url))
	}
	if representation != "" {
		attrs = append(attrs, attribute.String(RepresentationKey, representation))
	}
	return attrs
}

// FetchAttributes creates manifest fetch span attributes.
func FetchAttributes(outcome string, cacheHit bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(FetchOutcomeKey, outcome),
		attribute.Bool(FetchCacheHitKey, cacheHit),
	}
}

// ErrorAttributes creates error-related span attributes.
func ErrorAttributes(_ error, errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
