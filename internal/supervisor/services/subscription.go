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
	"github.com/tomtom215/telemon/internal/logging"
	"github.com/tomtom215/telemon/internal/models"
)

// RecordSource matches the subscription methods of *engine.Model.
type RecordSource interface {
	Subscribe(sub engine.Subscriber, filter models.RecordFilter) (engine.SubscriptionID, error)
	Unsubscribe(id engine.SubscriptionID) error
}

// subscribe registers sub with source and returns the function that removes
// it again. A stopped model never accepts subscribers, so ErrStopped is
// turned into suture.ErrDoNotRestart.
func subscribe(source RecordSource, sub engine.Subscriber, filter models.RecordFilter, name string) (func(), error) {
	id, err := source.Subscribe(sub, filter)
	if errors.Is(err, engine.ErrStopped) {
		return nil, fmt.Errorf("%s: %w: %w", name, err, suture.ErrDoNotRestart)
	}
	if err != nil {
		return nil, fmt.Errorf("%s subscribe failed: %w", name, err)
	}
	logging.Debug().Str("service", name).Uint64("subscription_id", uint64(id)).Msg("subscribed to records")

	return func() {
		// Stopping the model already dropped every subscription.
		if err := source.Unsubscribe(id); err != nil && !errors.Is(err, engine.ErrUnknownSubscription) {
			logging.Warn().Err(err).Str("service", name).Msg("unsubscribe failed")
		}
	}, nil
}

// SubscriptionService keeps a subscriber registered with the processing
// model while the service runs.
//
// Example usage:
//
//	fwd, _ := forwarder.New(cfg)
//	svc := services.NewSubscriptionService("nats-forwarder", model, fwd, models.RecordFilter{})
//	tree.AddMessagingService(svc)
type SubscriptionService struct {
	source RecordSource
	sub    engine.Subscriber
	filter models.RecordFilter
	name   string
}

// NewSubscriptionService creates a subscription service named name.
func NewSubscriptionService(name string, source RecordSource, sub engine.Subscriber, filter models.RecordFilter) *SubscriptionService {
	return &SubscriptionService{
		source: source,
		sub:    sub,
		filter: filter,
		name:   name,
	}
}

// Serve implements suture.Service. It subscribes, blocks until ctx is
// canceled and unsubscribes.
func (s *SubscriptionService) Serve(ctx context.Context) error {
	unsubscribe, err := subscribe(s.source, s.sub, s.filter, s.name)
	if err != nil {
		return err
	}
	defer unsubscribe()

	<-ctx.Done()
	return ctx.Err()
}

// String implements fmt.Stringer for logging.
func (s *SubscriptionService) String() string {
	return s.name
}
