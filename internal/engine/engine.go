// Telemon - Telemetry Monitoring and Control Processing Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemon

package engine

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/telemon/internal/definition"
	"github.com/tomtom215/telemon/internal/graph"
	"github.com/tomtom215/telemon/internal/logging"
	"github.com/tomtom215/telemon/internal/metrics"
	"github.com/tomtom215/telemon/internal/models"
	"github.com/tomtom215/telemon/internal/processor"
)

var (
	// ErrNotStarted is returned by Inject and status changes before Start.
	ErrNotStarted = errors.New("processing model not started")

	// ErrStopped is returned once Stop has been called.
	ErrStopped = errors.New("processing model stopped")

	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = errors.New("processing model already started")

	// ErrUnknownEntity is returned for inputs and lookups that address no
	// entity.
	ErrUnknownEntity = graph.ErrUnknownEntity

	// ErrUnknownSubscription is returned by Unsubscribe for unknown ids.
	ErrUnknownSubscription = errors.New("unknown subscription")
)

type lifecycle uint8

const (
	stateNew lifecycle = iota
	stateRunning
	stateStopped
)

// request is one unit of work for the writer: a batch of raw inputs or a
// status change of a subtree.
type request struct {
	batch  []models.RawInput
	path   models.Path
	status models.Status
	done   chan result
}

type result struct {
	records []models.Record
	err     error
}

// Model is the processing model: the entity graph, its processors and the
// goroutines that apply batches, deliver records and archive them.
//
// CONCURRENCY: a single writer goroutine owns all entity state. Inject and
// the status operations hand work to it over a channel and wait for the
// result. Visit and State take the read side of mu, which the writer holds
// for write while applying a batch.
type Model struct {
	graph *graph.Model
	ids   *processor.IDGenerator
	opts  options
	log   zerolog.Logger

	mu sync.RWMutex

	life      sync.RWMutex
	state     lifecycle
	requests  chan request
	archiveCh chan []models.Record
	stopCh    chan struct{}
	wg        sync.WaitGroup

	subsMu  sync.RWMutex
	subs    map[SubscriptionID]*subscription
	nextSub SubscriptionID
}

// New builds the processing model for defs. Configuration errors (cycles,
// unknown references, unresolved extensions) are returned here and are
// fatal.
func New(defs *definition.Definitions, opts ...Option) (*Model, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	g, err := graph.Build(defs, o.build...)
	if err != nil {
		return nil, fmt.Errorf("build processing model: %w", err)
	}
	return &Model{
		graph: g,
		ids:   processor.NewIDGenerator(),
		opts:  o,
		log:   logging.WithComponent("engine"),
		subs:  make(map[SubscriptionID]*subscription),
	}, nil
}

// Graph exposes the built entity graph.
func (m *Model) Graph() *graph.Model { return m.graph }

// Start seeds the record ids from the archive when it can report them and
// starts the writer and archiver goroutines.
func (m *Model) Start(ctx context.Context) error {
	m.life.Lock()
	defer m.life.Unlock()
	switch m.state {
	case stateRunning:
		return ErrAlreadyStarted
	case stateStopped:
		return ErrStopped
	}

	if src, ok := m.opts.archive.(IDSource); ok {
		last, err := src.LastIDs(ctx)
		if err != nil {
			return fmt.Errorf("restore record ids: %w", err)
		}
		for t, id := range last {
			m.ids.Seed(t, id)
		}
		m.log.Info().Interface("last_ids", last).Msg("record ids restored from archive")
	}

	m.requests = make(chan request, m.opts.injectQueueSize)
	m.stopCh = make(chan struct{})
	if m.opts.archive != nil {
		m.archiveCh = make(chan []models.Record, m.opts.archiveQueueSize)
		m.wg.Add(1)
		go m.archiveLoop(context.WithoutCancel(ctx))
	}
	m.wg.Add(1)
	go m.writeLoop()
	m.state = stateRunning

	m.log.Info().
		Int("entities", m.graph.Len()).
		Bool("archive", m.opts.archive != nil).
		Msg("processing model started")
	return nil
}

// IsRunning reports whether the model accepts batches.
func (m *Model) IsRunning() bool {
	m.life.RLock()
	defer m.life.RUnlock()
	return m.state == stateRunning
}

// Stop applies every batch already accepted, flushes the archive queue and
// closes all subscriptions. It is safe to call more than once.
func (m *Model) Stop() {
	m.life.Lock()
	if m.state != stateRunning {
		m.state = stateStopped
		m.life.Unlock()
		m.closeSubscriptions()
		return
	}
	m.state = stateStopped
	close(m.stopCh)
	m.life.Unlock()

	m.wg.Wait()
	m.closeSubscriptions()
	m.log.Info().Msg("processing model stopped")
}

// Inject applies a batch of raw inputs and returns every record it produced,
// in production order. Inputs addressing no entity are skipped and reported
// in the joined error; the rest of the batch still applies. If ctx ends
// while waiting, the batch may still be applied.
func (m *Model) Inject(ctx context.Context, batch []models.RawInput) ([]models.Record, error) {
	if len(batch) == 0 {
		return nil, nil
	}
	return m.submit(ctx, request{batch: batch})
}

// Enable sets the entity at path and its subtree to ENABLED.
func (m *Model) Enable(ctx context.Context, path models.Path) ([]models.Record, error) {
	return m.SetStatus(ctx, path, models.StatusEnabled)
}

// Disable sets the entity at path and its subtree to DISABLED.
func (m *Model) Disable(ctx context.Context, path models.Path) ([]models.Record, error) {
	return m.SetStatus(ctx, path, models.StatusDisabled)
}

// Ignore sets the entity at path and its subtree to IGNORED.
func (m *Model) Ignore(ctx context.Context, path models.Path) ([]models.Record, error) {
	return m.SetStatus(ctx, path, models.StatusIgnored)
}

// SetStatus changes the status of a subtree through the writer, like a
// batch, and returns the records it produced.
func (m *Model) SetStatus(ctx context.Context, path models.Path, status models.Status) ([]models.Record, error) {
	if _, ok := m.graph.VertexByPath(path); !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEntity, path)
	}
	return m.submit(ctx, request{path: path, status: status})
}

func (m *Model) submit(ctx context.Context, req request) ([]models.Record, error) {
	req.done = make(chan result, 1)

	m.life.RLock()
	switch m.state {
	case stateNew:
		m.life.RUnlock()
		return nil, ErrNotStarted
	case stateStopped:
		m.life.RUnlock()
		return nil, ErrStopped
	}
	select {
	case m.requests <- req:
	case <-ctx.Done():
		m.life.RUnlock()
		return nil, ctx.Err()
	}
	m.life.RUnlock()

	select {
	case res := <-req.done:
		return res.records, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// writeLoop applies requests one at a time. On stop it drains the requests
// that were accepted before the channel was closed to new senders.
func (m *Model) writeLoop() {
	defer m.wg.Done()
	defer func() {
		if m.archiveCh != nil {
			close(m.archiveCh)
		}
	}()
	for {
		select {
		case req := <-m.requests:
			req.done <- m.apply(req)
		case <-m.stopCh:
			for {
				select {
				case req := <-m.requests:
					req.done <- m.apply(req)
				default:
					return
				}
			}
		}
	}
}

func (m *Model) apply(req request) result {
	start := time.Now()
	env := processor.NewEnv(m.graph, m.ids, m.opts.clock())

	var (
		records []models.Record
		err     error
		kind    string
	)
	if req.batch != nil {
		kind = "inject"
		records, err = m.applyBatch(env, req.batch)
	} else {
		kind = "status"
		m.mu.Lock()
		records, err = m.graph.SetStatus(env, req.path, req.status)
		m.mu.Unlock()
	}
	metrics.RecordBatch(kind, len(req.batch), time.Since(start))

	if err != nil {
		m.log.Warn().Err(err).Str("kind", kind).Int("batch_size", len(req.batch)).Msg("batch applied with errors")
	}
	m.publish(records)
	return result{records: records, err: err}
}

func (m *Model) applyBatch(env *processor.Env, batch []models.RawInput) ([]models.Record, error) {
	var (
		ops  = make([]graph.Operation, 0, len(batch))
		errs []error
	)
	for _, in := range batch {
		v, err := m.graph.Resolve(in)
		if err != nil {
			metrics.EngineContractErrors.Inc()
			errs = append(errs, err)
			continue
		}
		ops = append(ops, graph.Operation{Vertex: v, Input: in})
	}
	if len(ops) == 0 {
		return nil, errors.Join(errs...)
	}

	m.mu.Lock()
	records, err := m.graph.Execute(env, m.graph.Plan(ops))
	m.mu.Unlock()
	if err != nil {
		errs = append(errs, err)
	}
	return records, errors.Join(errs...)
}

// publish fans a produced batch out to the subscribers, in subscription
// order, and to the archive queue.
func (m *Model) publish(records []models.Record) {
	if len(records) == 0 {
		return
	}
	for _, r := range records {
		metrics.RecordOutput(r.RecordType().String())
		if pd, ok := r.(*models.ParameterData); ok && pd.Validity.IsDegraded() {
			metrics.RecordDegraded(pd.Validity.String())
		}
	}

	m.subsMu.RLock()
	ids := make([]SubscriptionID, 0, len(m.subs))
	for id := range m.subs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		m.subs[id].enqueue(records)
	}
	m.subsMu.RUnlock()

	if m.archiveCh == nil {
		return
	}
	select {
	case m.archiveCh <- records:
	default:
		metrics.ArchiveDropped.Inc()
		m.log.Warn().Int("batch_size", len(records)).Msg("archive queue full, batch dropped")
	}
}

// archiveLoop stores queued batches until the writer closes the queue.
// Failures are logged and counted, never retried.
func (m *Model) archiveLoop(ctx context.Context) {
	defer m.wg.Done()
	for batch := range m.archiveCh {
		start := time.Now()
		err := m.opts.archive.Store(ctx, batch)
		metrics.RecordArchiveStore(len(batch), time.Since(start), err)
		if err != nil {
			m.log.Error().Err(err).Int("batch_size", len(batch)).Msg("archive store failed")
		}
	}
}

// Subscribe registers sub for the records selected by filter. Delivery
// starts with the next applied batch.
func (m *Model) Subscribe(sub Subscriber, filter models.RecordFilter) (SubscriptionID, error) {
	if sub == nil {
		return 0, errors.New("nil subscriber")
	}
	m.life.RLock()
	stopped := m.state == stateStopped
	m.life.RUnlock()
	if stopped {
		return 0, ErrStopped
	}

	m.subsMu.Lock()
	defer m.subsMu.Unlock()
	m.nextSub++
	id := m.nextSub
	m.subs[id] = newSubscription(id, sub, filter, m.log)
	metrics.SubscriptionsActive.Inc()
	m.log.Debug().Uint64("subscription_id", uint64(id)).Msg("subscriber registered")
	return id, nil
}

// Unsubscribe removes a subscription and discards its pending batches. It
// may be called from the subscriber's own OnRecords.
func (m *Model) Unsubscribe(id SubscriptionID) error {
	m.subsMu.Lock()
	s, ok := m.subs[id]
	delete(m.subs, id)
	m.subsMu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSubscription, id)
	}
	s.close()
	metrics.SubscriptionsActive.Dec()
	m.log.Debug().Uint64("subscription_id", uint64(id)).Msg("subscriber removed")
	return nil
}

func (m *Model) closeSubscriptions() {
	m.subsMu.Lock()
	subs := m.subs
	m.subs = make(map[SubscriptionID]*subscription)
	m.subsMu.Unlock()
	for _, s := range subs {
		s.close()
		metrics.SubscriptionsActive.Dec()
	}
}

// Visit walks the hierarchy from the top-level containers, under the read
// lock. The visitor must not call back into the model.
func (m *Model) Visit(v processor.Visitor) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, root := range m.graph.Roots() {
		state := root.Snapshot()
		if !v.ShouldDescend(state) {
			continue
		}
		v.StartVisit(state)
		root.Visit(v)
		v.EndVisit(state)
	}
}

// State returns the current state of the entity at path.
func (m *Model) State(path models.Path) (processor.EntityState, error) {
	v, ok := m.graph.VertexByPath(path)
	if !ok {
		return processor.EntityState{}, fmt.Errorf("%w: %s", ErrUnknownEntity, path)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return v.Processor().Snapshot(), nil
}

// StateByID returns the current state of the entity with the external id.
func (m *Model) StateByID(id int64) (processor.EntityState, error) {
	v, ok := m.graph.VertexByID(id)
	if !ok {
		return processor.EntityState{}, fmt.Errorf("%w: id %d", ErrUnknownEntity, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return v.Processor().Snapshot(), nil
}

// Snapshot returns the state of every entity in hierarchy order.
func (m *Model) Snapshot() []processor.EntityState {
	c := &collector{}
	m.Visit(c)
	return c.states
}

type collector struct {
	states []processor.EntityState
}

func (c *collector) ShouldDescend(processor.EntityState) bool { return true }
func (c *collector) StartVisit(s processor.EntityState)       { c.states = append(c.states, s) }
func (c *collector) OnVisit(processor.EntityState)            {}
func (c *collector) EndVisit(processor.EntityState)           {}
