// Telemon - Telemetry Monitoring and Control Processing Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemon

package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/telemon/internal/engine"
)

// ModelRunner matches the lifecycle of *engine.Model.
type ModelRunner interface {
	Start(ctx context.Context) error
	Stop()
	IsRunning() bool
}

// ModelService runs the processing model under supervision.
//
// Processor state lives in the model, and a stopped model cannot be
// restarted. The service therefore tolerates a model that is already
// running and tells suture not to restart it once it has stopped.
//
// Example usage:
//
//	model, _ := engine.New(defs, engine.WithArchive(store))
//	svc := services.NewModelService(model)
//	tree.AddModelService(svc)
type ModelService struct {
	model ModelRunner
	name  string
}

// NewModelService creates a new processing model service wrapper.
func NewModelService(model ModelRunner) *ModelService {
	return &ModelService{
		model: model,
		name:  "processing-model",
	}
}

// Serve implements suture.Service.
//
// This method:
//  1. Starts the model unless it is already running
//  2. Blocks until the context is canceled
//  3. Stops the model, which drains accepted batches and the archive queue
func (s *ModelService) Serve(ctx context.Context) error {
	err := s.model.Start(ctx)
	switch {
	case err == nil, errors.Is(err, engine.ErrAlreadyStarted):
	case errors.Is(err, engine.ErrStopped):
		return fmt.Errorf("processing model: %w: %w", err, suture.ErrDoNotRestart)
	default:
		return fmt.Errorf("processing model start failed: %w", err)
	}

	<-ctx.Done()

	s.model.Stop()
	return ctx.Err()
}

// String implements fmt.Stringer for logging.
func (s *ModelService) String() string {
	return s.name
}
