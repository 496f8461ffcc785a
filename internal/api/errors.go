// Telemon - Telemetry Monitoring and Control Processing Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemon

package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/tomtom215/telemon/internal/engine"
)

// Common API errors
var (
	// ErrArchiveDisabled indicates the record archive is not configured.
	ErrArchiveDisabled = errors.New("record archive is not enabled")

	// ErrEmptyBatch indicates an inject request without inputs.
	ErrEmptyBatch = errors.New("inject request contains no inputs")

	// ErrMissingTarget indicates an input with neither id nor path.
	ErrMissingTarget = errors.New("input needs an id or a path")

	// ErrMissingValue indicates a parameter sample without a value.
	ErrMissingValue = errors.New("parameter sample needs a value")
)

// engineErrorStatus maps an error returned by the processing model to an HTTP
// status and error code. ok is false for errors that only affect part of a
// batch.
func engineErrorStatus(err error) (status int, code string, ok bool) {
	switch {
	case errors.Is(err, engine.ErrNotStarted), errors.Is(err, engine.ErrStopped):
		return http.StatusServiceUnavailable, ErrCodeServiceUnavailable, true
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, ErrCodeServiceUnavailable, true
	default:
		return 0, "", false
	}
}

// errorMessages flattens a joined error into its messages.
func errorMessages(err error) []string {
	if err == nil {
		return nil
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var out []string
		for _, e := range joined.Unwrap() {
			out = append(out, errorMessages(e)...)
		}
		return out
	}
	return []string{err.Error()}
}
