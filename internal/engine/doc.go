// Telemon - Telemetry Monitoring and Control Processing Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemon

/*
Package engine is the processing model facade: it owns the entity graph and
turns injected batches of raw inputs into output records.

# Lifecycle

	m, err := engine.New(defs, engine.WithArchive(store))
	if err != nil {
	    return err // cycle, unknown reference, unresolved extension
	}
	if err := m.Start(ctx); err != nil {
	    return err
	}
	defer m.Stop()

	records, err := m.Inject(ctx, []models.RawInput{sample})

# Ordering

Batches are applied one at a time by a single writer goroutine. Within a
batch, every processor runs at most once per input and in ascending
topological order, so a synthetic parameter always sees the values of the
batch it depends on.

# Subscriptions

Each subscriber gets its own goroutine and an unbounded queue. A slow
subscriber delays only itself; a panicking one loses the batch it panicked
on and keeps its subscription.

# Archive

Every non-empty batch is handed to the ArchiveSink from one archiver
goroutine. When the archive falls behind by more than the configured queue
size, batches are dropped and counted.
*/
package engine
