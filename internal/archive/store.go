// Telemon - Telemetry Monitoring and Control Processing Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemon

// Package archive stores output records in BadgerDB.
//
// Every record is written under rec:<TYPE>:<20-digit internal id>, so keys of
// one record type sort by id and the highest stored id of each type can be
// read back on startup to continue the id sequence.
package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/goccy/go-json"

	"github.com/tomtom215/telemon/internal/logging"
	"github.com/tomtom215/telemon/internal/metrics"
	"github.com/tomtom215/telemon/internal/models"
)

var (
	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("archive is closed")
)

const keyPrefix = "rec:"

// Store is a BadgerDB-backed record archive. It is safe for concurrent use.
type Store struct {
	db     *badger.DB
	config Config

	mu     sync.RWMutex
	closed bool
}

// Open opens (or creates) the archive at cfg.Path.
func Open(cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid archive config: %w", err)
	}

	opts := badger.DefaultOptions(cfg.Path)
	opts.SyncWrites = cfg.SyncWrites
	opts.MemTableSize = cfg.MemTableSize
	opts.ValueLogFileSize = cfg.ValueLogFileSize
	opts.NumCompactors = cfg.NumCompactors
	if cfg.Compression {
		opts.Compression = options.Snappy
	}
	// Reduce logging verbosity
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}

	logging.Info().
		Str("path", cfg.Path).
		Bool("sync_writes", cfg.SyncWrites).
		Bool("compression", cfg.Compression).
		Dur("retention", cfg.Retention).
		Msg("archive opened")
	return &Store{db: db, config: cfg}, nil
}

func recordKey(t models.RecordType, id uint64) []byte {
	return fmt.Appendf(nil, "%s%s:%020d", keyPrefix, t, id)
}

func typePrefix(t models.RecordType) []byte {
	return fmt.Appendf(nil, "%s%s:", keyPrefix, t)
}

func idFromKey(key, prefix []byte) (uint64, error) {
	return strconv.ParseUint(string(bytes.TrimPrefix(key, prefix)), 10, 64)
}

func (s *Store) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

// Store writes a batch of records in one badger write batch.
func (s *Store) Store(ctx context.Context, batch []models.Record) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if len(batch) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, r := range batch {
		data, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("marshal %s record %d: %w", r.RecordType(), r.RecordID(), err)
		}
		e := badger.NewEntry(recordKey(r.RecordType(), r.RecordID()), data)
		if s.config.Retention > 0 {
			e = e.WithTTL(s.config.Retention)
		}
		if err := wb.SetEntry(e); err != nil {
			return fmt.Errorf("queue %s record %d: %w", r.RecordType(), r.RecordID(), err)
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("write to BadgerDB: %w", err)
	}
	return nil
}

// LastIDs returns the highest stored id of every record type that has at
// least one record.
func (s *Store) LastIDs(ctx context.Context) (map[models.RecordType]uint64, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	last := make(map[models.RecordType]uint64, len(models.RecordTypes))
	err := s.db.View(func(txn *badger.Txn) error {
		for _, t := range models.RecordTypes {
			if err := ctx.Err(); err != nil {
				return err
			}
			prefix := typePrefix(t)
			opts := badger.DefaultIteratorOptions
			opts.PrefetchValues = false
			opts.Reverse = true
			opts.Prefix = prefix
			it := txn.NewIterator(opts)
			// Seek past the largest possible id of the prefix.
			it.Seek(append(bytes.Clone(prefix), 0xff))
			if it.ValidForPrefix(prefix) {
				id, err := idFromKey(it.Item().Key(), prefix)
				if err != nil {
					it.Close()
					return fmt.Errorf("corrupt archive key %q: %w", it.Item().Key(), err)
				}
				last[t] = id
			}
			it.Close()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return last, nil
}

// Range returns up to limit records of type t with ids >= fromID, in id
// order. A limit <= 0 returns every matching record.
//
// DETERMINISM: reads run in a single View transaction, so the result is a
// consistent snapshot even while batches are being stored.
func (s *Store) Range(ctx context.Context, t models.RecordType, fromID uint64, limit int) ([]models.Record, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	var out []models.Record
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := typePrefix(t)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(recordKey(t, fromID)); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var rec models.Record
			err := it.Item().Value(func(val []byte) error {
				var derr error
				rec, derr = models.DecodeRecordData(t, val)
				return derr
			})
			if err != nil {
				return fmt.Errorf("read %s: %w", it.Item().Key(), err)
			}
			out = append(out, rec)
			if limit > 0 && len(out) >= limit {
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RunGC runs value log garbage collection until nothing is left to rewrite.
func (s *Store) RunGC() error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	rewritten := false
	for {
		err := s.db.RunValueLogGC(s.config.GCRatio)
		if errors.Is(err, badger.ErrNoRewrite) {
			break
		}
		if err != nil {
			metrics.ArchiveGCRuns.WithLabelValues("error").Inc()
			return fmt.Errorf("run GC: %w", err)
		}
		rewritten = true
	}
	if rewritten {
		metrics.ArchiveGCRuns.WithLabelValues("rewritten").Inc()
	} else {
		metrics.ArchiveGCRuns.WithLabelValues("noop").Inc()
	}
	return nil
}

// Close flushes and closes the database, waiting at most CloseTimeout.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	timeout := s.config.CloseTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	s.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		done <- s.db.Close()
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("close BadgerDB: %w", err)
		}
		logging.Info().Msg("archive closed")
		return nil
	case <-time.After(timeout):
		logging.Warn().Dur("timeout", timeout).Msg("BadgerDB close timed out")
		return fmt.Errorf("badgerdb close timeout after %v", timeout)
	}
}
