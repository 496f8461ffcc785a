// Telemon - Telemetry Monitoring and Control Processing Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemon

package processor

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/telemon/internal/definition"
	"github.com/tomtom215/telemon/internal/expression"
	"github.com/tomtom215/telemon/internal/logging"
	"github.com/tomtom215/telemon/internal/models"
)

// conditionSource is the Source of occurrences raised by an event condition.
const conditionSource = "condition"

// Event raises occurrences from raw inputs, parameter triggers and its
// optional condition.
type Event struct {
	def       *definition.EventDefinition
	path      models.Path
	condition *expression.Expression

	status        models.Status
	conditionHigh bool
	last          *models.EventData
	lastRaise     time.Time
	log           zerolog.Logger
}

// NewEvent compiles an event definition.
func NewEvent(def *definition.EventDefinition) (*Event, error) {
	cond, err := def.Condition.Compile()
	if err != nil {
		return nil, fmt.Errorf("event %s condition: %w", def.Location, err)
	}
	return &Event{
		def:       def,
		path:      def.Path(),
		condition: cond,
		log:       logging.WithComponent("processor"),
	}, nil
}

func (e *Event) ID() int64               { return e.def.ID }
func (e *Event) Path() models.Path       { return e.path }
func (e *Event) Type() models.EntityType { return models.EntityEvent }
func (e *Event) Status() models.Status   { return e.status }

func (e *Event) References() []models.Path {
	if e.condition == nil {
		return nil
	}
	return e.condition.References()
}

// Value is always absent: events cannot be referenced by expressions.
func (e *Event) Value() (any, bool) { return nil, false }

func (e *Event) GenerationTime() time.Time {
	if e.last == nil {
		return time.Time{}
	}
	return e.last.GenerationTime
}

// Aggregate contributes the severity of the last raise.
func (e *Event) Aggregate() (models.AlarmState, bool) {
	if e.status != models.StatusEnabled || e.last == nil {
		return models.AlarmNotApplicable, false
	}
	state := e.last.Severity.AlarmState()
	return state, state != models.AlarmNotApplicable
}

func (e *Event) Snapshot() EntityState {
	s := EntityState{
		ID:         e.def.ID,
		Path:       e.path,
		Type:       models.EntityEvent,
		Status:     e.status,
		AlarmState: models.AlarmNotApplicable,
		Event:      e.last,
	}
	if state, ok := e.Aggregate(); ok {
		s.AlarmState = state
	}
	return s
}

func (e *Event) Visit(v Visitor) { v.OnVisit(e.Snapshot()) }

// Process raises the occurrence carried by input, then every occurrence
// queued by parameter triggers, then evaluates the condition.
func (e *Event) Process(env *Env, input models.RawInput) ([]models.Record, error) {
	var occ *models.EventOccurrence
	if input != nil {
		o, ok := input.(models.EventOccurrence)
		if !ok {
			return nil, fmt.Errorf("%w: %T for event %s", ErrInputKind, input, e.path)
		}
		occ = &o
	}
	queued := env.takeRaises(e.path)
	if e.status == models.StatusDisabled {
		return nil, nil
	}

	var records []models.Record
	if occ != nil {
		if r := e.raise(env, *occ); r != nil {
			records = append(records, r)
		}
	}
	for _, q := range queued {
		if r := e.raise(env, q); r != nil {
			records = append(records, r)
		}
	}
	if occ == nil && e.condition != nil {
		if r := e.evaluateCondition(env); r != nil {
			records = append(records, r)
		}
	}
	return records, nil
}

// evaluateCondition raises on a false to true edge. An evaluation failure
// counts as false.
func (e *Event) evaluateCondition(env *Env) models.Record {
	high, err := e.condition.EvaluateBool(env.context(e.path), nil)
	if err != nil {
		e.log.Debug().Err(err).Str("path", e.path.String()).Msg("event condition evaluation failed")
		high = false
	}
	wasHigh := e.conditionHigh
	e.conditionHigh = high
	if !high || wasHigh {
		return nil
	}
	gen, ok := env.latest(e.condition.References())
	if !ok {
		gen = env.Now()
	}
	return e.raise(env, models.EventOccurrence{
		GenerationTime: gen,
		ReceptionTime:  env.Now(),
		Source:         conditionSource,
	})
}

func (e *Event) raise(env *Env, occ models.EventOccurrence) models.Record {
	gen := stampOr(occ.GenerationTime, env.Now())
	if period := e.def.InhibitionPeriod; period > 0 && e.last != nil && gen.Sub(e.lastRaise) < period {
		e.log.Debug().
			Str("path", e.path.String()).
			Dur("since_last", gen.Sub(e.lastRaise)).
			Msg("event raise inhibited")
		return nil
	}
	severity := occ.Severity
	if severity == models.SeverityNone {
		severity = e.def.Severity
	}
	rec := &models.EventData{
		InternalID:     env.NextID(models.RecordEvent),
		ExternalID:     e.def.ID,
		Path:           e.path,
		Qualifier:      occ.Qualifier,
		Report:         occ.Report,
		Route:          occ.Route,
		Source:         occ.Source,
		Type:           e.def.Type,
		Severity:       severity,
		GenerationTime: gen,
		ReceptionTime:  stampOr(occ.ReceptionTime, env.Now()),
	}
	e.last = rec
	e.lastRaise = gen
	return rec
}

// SetStatus changes the status and emits the entity record.
func (e *Event) SetStatus(env *Env, status models.Status) []models.Record {
	if status == e.status {
		return nil
	}
	e.status = status
	alarm, _ := e.Aggregate()
	return []models.Record{&models.SystemEntity{
		InternalID:     env.NextID(models.RecordEntity),
		ExternalID:     e.def.ID,
		Path:           e.path,
		Type:           models.EntityEvent,
		Status:         status,
		AlarmState:     alarm,
		GenerationTime: env.Now(),
	}}
}
