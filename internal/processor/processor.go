// Telemon - Telemetry Monitoring and Control Processing Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemon

// Package processor implements the per-entity state machines of the
// processing model: parameters, events, activities and containers.
//
// Processors are not safe for concurrent use. The engine owns them from a
// single writer goroutine and hands them an Env for the duration of a batch.
package processor

import (
	"errors"
	"time"

	"github.com/tomtom215/telemon/internal/extension"
	"github.com/tomtom215/telemon/internal/models"
)

var (
	// ErrInputKind is returned when a raw input is routed to a processor
	// that cannot consume it.
	ErrInputKind = errors.New("raw input not accepted by entity")

	// ErrCalibration is wrapped by every calibration failure.
	ErrCalibration = errors.New("calibration failed")

	// ErrCheck is wrapped by every check evaluation failure.
	ErrCheck = errors.New("check evaluation failed")

	// ErrExtensionPanic is returned when an extension function panics.
	ErrExtensionPanic = errors.New("extension function panicked")
)

// Processor is the state machine behind one entity of the model.
type Processor interface {
	ID() int64
	Path() models.Path
	Type() models.EntityType

	// References lists the entities whose values this processor reads.
	References() []models.Path

	// Process applies a raw input, or recomputes from upstream state when
	// input is nil. The error is reserved for contract violations; failures
	// of a single item are reported as degraded records.
	Process(env *Env, input models.RawInput) ([]models.Record, error)

	Status() models.Status
	// SetStatus changes the status of this entity only.
	SetStatus(env *Env, status models.Status) []models.Record

	// Value returns the current engineering value used by expressions.
	Value() (any, bool)
	// GenerationTime returns the generation time of the current state.
	GenerationTime() time.Time
	// Aggregate returns the alarm state this entity contributes to its
	// container, or false when it does not contribute.
	Aggregate() (models.AlarmState, bool)

	Snapshot() EntityState
	Visit(v Visitor)
}

// EntityState is a read-only snapshot of an entity. The record pointers are
// immutable once emitted and may be shared.
type EntityState struct {
	ID         int64                      `json:"id"`
	Path       models.Path                `json:"path"`
	Type       models.EntityType          `json:"type"`
	Status     models.Status              `json:"status"`
	AlarmState models.AlarmState          `json:"alarm_state"`
	Parameter  *models.ParameterData      `json:"parameter,omitempty"`
	Alarm      *models.AlarmParameterData `json:"alarm,omitempty"`
	Event      *models.EventData          `json:"event,omitempty"`
	Activity   *models.ActivityReport     `json:"activity,omitempty"`
}

// Visitor walks the entity hierarchy. ShouldDescend is asked for every child
// of a container; when it returns true the child is bracketed by StartVisit
// and EndVisit. Leaves report their state through OnVisit.
type Visitor interface {
	ShouldDescend(entity EntityState) bool
	StartVisit(entity EntityState)
	OnVisit(item EntityState)
	EndVisit(entity EntityState)
}

// StateResolver gives processors read access to the other entities.
type StateResolver interface {
	Value(path models.Path) (any, bool)
	GenerationTime(path models.Path) (time.Time, bool)
}

// Options configures processor construction.
type Options struct {
	// Registry resolves external calibrations and checks. Nil uses
	// extension.Default().
	Registry *extension.Registry

	// AllowUnresolved defers unknown external function names to first use,
	// where they degrade the affected item instead of failing the build.
	AllowUnresolved bool

	// AlarmLogInterval is the minimum interval between two alarm transition
	// log lines of the same parameter.
	AlarmLogInterval time.Duration
}

func (o Options) registry() *extension.Registry {
	if o.Registry != nil {
		return o.Registry
	}
	return extension.Default()
}

// IDGenerator hands out record ids, monotonically increasing per record type.
// It is owned by the writer goroutine.
type IDGenerator struct {
	last map[models.RecordType]uint64
}

// NewIDGenerator returns a generator whose first id for every type is 1.
func NewIDGenerator() *IDGenerator {
	return &IDGenerator{last: make(map[models.RecordType]uint64, len(models.RecordTypes))}
}

// Next returns the next id for t.
func (g *IDGenerator) Next(t models.RecordType) uint64 {
	g.last[t]++
	return g.last[t]
}

// Seed makes the next id for t follow last. Seeding never moves a counter back.
func (g *IDGenerator) Seed(t models.RecordType, last uint64) {
	if last > g.last[t] {
		g.last[t] = last
	}
}

// Last returns the last id handed out for t.
func (g *IDGenerator) Last(t models.RecordType) uint64 {
	return g.last[t]
}

// Env is the processing environment of one batch.
type Env struct {
	resolver StateResolver
	ids      *IDGenerator
	now      time.Time
	pending  map[models.Path][]models.EventOccurrence
	feeds    map[models.Path]models.ParameterSample
	changed  map[models.Path]bool
}

// NewEnv creates the environment of a batch. now stamps every record whose
// time is not carried by an input.
func NewEnv(resolver StateResolver, ids *IDGenerator, now time.Time) *Env {
	return &Env{resolver: resolver, ids: ids, now: now}
}

// Now returns the batch time.
func (e *Env) Now() time.Time { return e.now }

// NextID returns the next record id of type t.
func (e *Env) NextID(t models.RecordType) uint64 { return e.ids.Next(t) }

// MarkChanged records that the entity at path produced new state in this
// batch.
func (e *Env) MarkChanged(path models.Path) {
	if e.changed == nil {
		e.changed = make(map[models.Path]bool)
	}
	e.changed[path] = true
}

// Changed reports whether any of paths produced new state in this batch.
func (e *Env) Changed(paths ...models.Path) bool {
	for _, p := range paths {
		if e.changed[p] {
			return true
		}
	}
	return false
}

// RaiseEvent queues an occurrence for the event at path. It is consumed when
// the event is processed later in the same batch.
func (e *Env) RaiseEvent(path models.Path, occ models.EventOccurrence) {
	if e.pending == nil {
		e.pending = make(map[models.Path][]models.EventOccurrence)
	}
	e.pending[path] = append(e.pending[path], occ)
}

// PendingRaises returns the number of queued occurrences not yet consumed.
func (e *Env) PendingRaises() int {
	n := 0
	for _, occs := range e.pending {
		n += len(occs)
	}
	return n
}

func (e *Env) takeRaises(path models.Path) []models.EventOccurrence {
	occs := e.pending[path]
	delete(e.pending, path)
	return occs
}

// FeedParameter queues a sample for the parameter at path. It is consumed
// when the parameter is processed later in the same batch; a later feed for
// the same parameter replaces an unconsumed one.
func (e *Env) FeedParameter(path models.Path, sample models.ParameterSample) {
	if e.feeds == nil {
		e.feeds = make(map[models.Path]models.ParameterSample)
	}
	e.feeds[path] = sample
}

func (e *Env) takeFeed(path models.Path) (models.ParameterSample, bool) {
	s, ok := e.feeds[path]
	delete(e.feeds, path)
	return s, ok
}

// latest returns the most recent generation time among paths.
func (e *Env) latest(paths []models.Path) (time.Time, bool) {
	var out time.Time
	found := false
	for _, p := range paths {
		if t, ok := e.resolver.GenerationTime(p); ok && (!found || t.After(out)) {
			out, found = t, true
		}
	}
	return out, found
}

func (e *Env) context(path models.Path) *evalContext {
	return &evalContext{env: e, path: path}
}

// evalContext is the extension.Context and expression.Resolver handed to
// expressions and extensions while path is processed.
type evalContext struct {
	env  *Env
	path models.Path
}

func (c *evalContext) Value(path models.Path) (any, bool) { return c.env.resolver.Value(path) }
func (c *evalContext) Path() models.Path                  { return c.path }

func stampOr(t, fallback time.Time) time.Time {
	if t.IsZero() {
		return fallback
	}
	return t
}
