// Telemon - Telemetry Monitoring and Control Processing Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemon

//go:build nats

package forwarder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	natsgo "github.com/nats-io/nats.go"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/telemon/internal/logging"
	"github.com/tomtom215/telemon/internal/metrics"
	"github.com/tomtom215/telemon/internal/models"
)

// Forwarder publishes output records to NATS JetStream through a Watermill
// publisher guarded by a circuit breaker. It implements engine.Subscriber.
type Forwarder struct {
	publisher message.Publisher
	breaker   *gobreaker.CircuitBreaker[struct{}]
	prefix    string

	mu     sync.RWMutex
	closed bool
}

// New creates a forwarder connected to cfg.URL. The target stream must
// already exist (see EnsureStream).
func New(cfg Config) (*Forwarder, error) {
	logger := watermill.NewSlogLogger(logging.NewSlogLogger())

	// NATS connection options with reconnection handling
	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(cfg.ReconnectWait),
		natsgo.ReconnectBufSize(cfg.ReconnectBuffer),
		natsgo.DisconnectErrHandler(func(nc *natsgo.Conn, err error) {
			if err != nil {
				logging.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logging.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}

	wmConfig := wmNats.PublisherConfig{
		URL:         cfg.URL,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled:      false,
			AutoProvision: false, // Stream is created by EnsureStream
			TrackMsgId:    true,  // Deduplicate republished records
			PublishOptions: []natsgo.PubOpt{
				natsgo.RetryAttempts(3),
				natsgo.RetryWait(100 * time.Millisecond),
			},
		},
	}

	pub, err := wmNats.NewPublisher(wmConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill publisher: %w", err)
	}

	return &Forwarder{
		publisher: pub,
		breaker:   NewCircuitBreaker(cfg.CircuitBreaker),
		prefix:    cfg.SubjectPrefix,
	}, nil
}

// OnRecords publishes a delivered batch. Failures are counted and logged;
// the processing model never sees them.
func (f *Forwarder) OnRecords(batch []models.Record) {
	if err := f.Publish(context.Background(), batch); err != nil && !errors.Is(err, ErrClosed) {
		logging.Error().Err(err).Int("batch_size", len(batch)).Msg("record forwarding failed")
	}
}

// Publish sends every record of batch in order. Records rejected by the
// open circuit breaker are dropped.
func (f *Forwarder) Publish(ctx context.Context, batch []models.Record) error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return ErrClosed
	}

	var errs []error
	for _, r := range batch {
		if err := f.publishRecord(ctx, r); err != nil {
			metrics.ForwarderPublishFailures.Inc()
			errs = append(errs, fmt.Errorf("publish %s record %d: %w", r.RecordType(), r.RecordID(), err))
			continue
		}
		metrics.ForwarderPublished.WithLabelValues(r.RecordType().String()).Inc()
	}
	return errors.Join(errs...)
}

func (f *Forwarder) publishRecord(ctx context.Context, r models.Record) error {
	payload, err := Payload(r)
	if err != nil {
		return err
	}
	id := MessageID(r)
	msg := message.NewMessage(id, payload)
	msg.SetContext(ctx)
	for k, v := range Metadata(r) {
		msg.Metadata.Set(k, v)
	}
	msg.Metadata.Set(natsgo.MsgIdHdr, id)

	return executeWithBreaker(f.breaker, func() error {
		return f.publisher.Publish(Subject(f.prefix, r), msg)
	})
}

// BreakerState reports the circuit breaker state for health checks.
func (f *Forwarder) BreakerState() string {
	return f.breaker.State().String()
}

// Close gracefully shuts down the publisher.
func (f *Forwarder) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil
	}
	f.closed = true

	return f.publisher.Close()
}
