// Telemon - Telemetry Monitoring and Control Processing Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemon

package services

import (
	"context"
	"fmt"
)

// StartStopper matches background loops with a Start/Stop lifecycle.
//
// Satisfied by *archive.Compactor.
type StartStopper interface {
	Start(ctx context.Context) error
	Stop()
	IsRunning() bool
}

// ArchiveCompactorService wraps the archive compactor as a supervised
// service. The compactor reclaims BadgerDB value log space of expired
// records.
//
// It adapts the Start/Stop lifecycle pattern to suture's Serve pattern:
//  1. Calls Start(ctx) to begin the compaction loop
//  2. Waits for context cancellation
//  3. Calls Stop(), which waits for a run in progress
//
// Example usage:
//
//	compactor := archive.NewCompactor(store)
//	svc := services.NewArchiveCompactorService(compactor)
//	tree.AddModelService(svc)
type ArchiveCompactorService struct {
	compactor StartStopper
	name      string
}

// NewArchiveCompactorService creates a new archive compactor service wrapper.
func NewArchiveCompactorService(compactor StartStopper) *ArchiveCompactorService {
	return &ArchiveCompactorService{
		compactor: compactor,
		name:      "archive-compactor",
	}
}

// Serve implements suture.Service.
//
// If Start fails the error is returned immediately and suture restarts the
// service according to its backoff policy.
func (s *ArchiveCompactorService) Serve(ctx context.Context) error {
	if err := s.compactor.Start(ctx); err != nil {
		return fmt.Errorf("archive compactor start failed: %w", err)
	}

	<-ctx.Done()

	s.compactor.Stop()
	return ctx.Err()
}

// String implements fmt.Stringer for logging.
func (s *ArchiveCompactorService) String() string {
	return s.name
}
