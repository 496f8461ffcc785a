// Telemon - Telemetry Monitoring and Control Processing Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemon

package logging

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type contextKey string

const (
	// batchIDKey carries the identifier of the inject batch being applied.
	batchIDKey contextKey = "batch_id"

	// requestIDKey carries the HTTP request identifier.
	requestIDKey contextKey = "request_id"
)

// GenerateBatchID creates a short identifier for correlating the log lines
// of one inject batch.
func GenerateBatchID() string {
	return uuid.New().String()[:8]
}

// ContextWithBatchID returns a new context with the given batch ID.
func ContextWithBatchID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, batchIDKey, id)
}

// BatchIDFromContext retrieves the batch ID from context, or "".
func BatchIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(batchIDKey).(string); ok {
		return id
	}
	return ""
}

// ContextWithRequestID returns a new context with the given request ID.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext retrieves the request ID from context, or "".
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// Ctx returns the global logger enriched with batch_id and request_id when
// they are present in ctx.
//
//	logging.Ctx(ctx).Info().Int("records", n).Msg("Batch applied")
func Ctx(ctx context.Context) *zerolog.Logger {
	logCtx := Logger().With()
	if id := BatchIDFromContext(ctx); id != "" {
		logCtx = logCtx.Str("batch_id", id)
	}
	if id := RequestIDFromContext(ctx); id != "" {
		logCtx = logCtx.Str("request_id", id)
	}
	l := logCtx.Logger()
	return &l
}
