// Telemon - Telemetry Monitoring and Control Processing Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemon

package engine

import (
	"context"
	"time"

	"github.com/tomtom215/telemon/internal/extension"
	"github.com/tomtom215/telemon/internal/graph"
	"github.com/tomtom215/telemon/internal/models"
)

// ArchiveSink persists every non-empty batch of output records.
type ArchiveSink interface {
	Store(ctx context.Context, batch []models.Record) error
}

// IDSource is implemented by archives that can report the highest record id
// stored per type. The model seeds its id counters from it on Start so ids
// stay monotonic across restarts.
type IDSource interface {
	LastIDs(ctx context.Context) (map[models.RecordType]uint64, error)
}

const (
	defaultInjectQueueSize  = 64
	defaultArchiveQueueSize = 256
)

type options struct {
	build            []graph.Option
	archive          ArchiveSink
	injectQueueSize  int
	archiveQueueSize int
	clock            func() time.Time
}

func defaultOptions() options {
	return options{
		injectQueueSize:  defaultInjectQueueSize,
		archiveQueueSize: defaultArchiveQueueSize,
		clock:            time.Now,
	}
}

// Option configures New.
type Option func(*options)

// WithRegistry resolves external calibrations and checks against reg.
func WithRegistry(reg *extension.Registry) Option {
	return func(o *options) { o.build = append(o.build, graph.WithRegistry(reg)) }
}

// WithAllowUnresolved defers unknown external function names to first use,
// where they produce degraded records instead of failing New.
func WithAllowUnresolved(allow bool) Option {
	return func(o *options) { o.build = append(o.build, graph.WithAllowUnresolved(allow)) }
}

// WithAlarmLogInterval rate limits alarm transition logs per parameter.
func WithAlarmLogInterval(d time.Duration) Option {
	return func(o *options) { o.build = append(o.build, graph.WithAlarmLogInterval(d)) }
}

// WithArchive stores every produced batch in sink.
func WithArchive(sink ArchiveSink) Option {
	return func(o *options) { o.archive = sink }
}

// WithInjectQueueSize bounds the number of batches waiting for the writer.
func WithInjectQueueSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.injectQueueSize = n
		}
	}
}

// WithArchiveQueueSize bounds the number of batches waiting for the archive.
// Batches beyond it are dropped.
func WithArchiveQueueSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.archiveQueueSize = n
		}
	}
}

// WithClock replaces time.Now as the source of batch times.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.clock = now
		}
	}
}
