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
	"github.com/tomtom215/telemon/internal/logging"
	"github.com/tomtom215/telemon/internal/models"
)

// Activity tracks the execution reports of an activity and feeds its state
// and result to the linked parameters. It has no value of its own and does
// not take part in container aggregation.
type Activity struct {
	def    *definition.ActivityDefinition
	path   models.Path
	state  models.Path
	result models.Path

	status models.Status
	last   *models.ActivityReport
	log    zerolog.Logger
}

// NewActivity creates the processor of an activity definition.
func NewActivity(def *definition.ActivityDefinition) *Activity {
	a := &Activity{
		def:  def,
		path: def.Path(),
		log:  logging.WithComponent("processor"),
	}
	if def.StateParameter != "" {
		a.state = models.MustParsePath(def.StateParameter)
	}
	if def.ResultParameter != "" {
		a.result = models.MustParsePath(def.ResultParameter)
	}
	return a
}

func (a *Activity) ID() int64                 { return a.def.ID }
func (a *Activity) Path() models.Path         { return a.path }
func (a *Activity) Type() models.EntityType   { return models.EntityActivity }
func (a *Activity) Status() models.Status     { return a.status }
func (a *Activity) References() []models.Path { return nil }
func (a *Activity) Value() (any, bool)        { return nil, false }

// Linked returns the parameters fed by the activity.
func (a *Activity) Linked() []models.Path { return a.def.Linked() }

func (a *Activity) GenerationTime() time.Time {
	if a.last == nil {
		return time.Time{}
	}
	return a.last.GenerationTime
}

func (a *Activity) Aggregate() (models.AlarmState, bool) { return models.AlarmNotApplicable, false }

func (a *Activity) Snapshot() EntityState {
	s := EntityState{
		ID:         a.def.ID,
		Path:       a.path,
		Type:       models.EntityActivity,
		Status:     a.status,
		AlarmState: models.AlarmNotApplicable,
	}
	if a.last != nil {
		last := *a.last
		s.Activity = &last
	}
	return s
}

func (a *Activity) Visit(v Visitor) { v.OnVisit(a.Snapshot()) }

// Process records a report and queues its state and result for the linked
// parameters. Recomputes are no-ops.
func (a *Activity) Process(env *Env, input models.RawInput) ([]models.Record, error) {
	if input == nil {
		return nil, nil
	}
	report, ok := input.(models.ActivityReport)
	if !ok {
		return nil, fmt.Errorf("%w: %T for activity %s", ErrInputKind, input, a.path)
	}
	if a.status == models.StatusDisabled {
		return nil, nil
	}
	report.GenerationTime = stampOr(report.GenerationTime, env.Now())
	report.ReceptionTime = stampOr(report.ReceptionTime, env.Now())
	if a.last != nil && report.GenerationTime.Before(a.last.GenerationTime) {
		a.log.Debug().
			Str("path", a.path.String()).
			Str("occurrence", report.Occurrence).
			Time("report_time", report.GenerationTime).
			Msg("out-of-order activity report discarded")
		return nil, nil
	}
	report.ID = a.def.ID
	report.Path = a.path
	a.last = &report

	if !a.state.IsEmpty() {
		env.FeedParameter(a.state, a.sample(report, report.State.String()))
	}
	if !a.result.IsEmpty() && report.Result != nil {
		env.FeedParameter(a.result, a.sample(report, report.Result))
	}
	if report.State.IsFinal() && report.State != models.ActivityOK {
		a.log.Info().
			Str("path", a.path.String()).
			Str("occurrence", report.Occurrence).
			Str("stage", report.Stage).
			Str("state", report.State.String()).
			Msg("activity failed")
	}
	return nil, nil
}

func (a *Activity) sample(report models.ActivityReport, value any) models.ParameterSample {
	return models.ParameterSample{
		GenerationTime: report.GenerationTime,
		ReceptionTime:  report.ReceptionTime,
		Value:          value,
		Route:          report.Route,
	}
}

// SetStatus changes the status and emits the entity record.
func (a *Activity) SetStatus(env *Env, status models.Status) []models.Record {
	if status == a.status {
		return nil
	}
	a.status = status
	return []models.Record{&models.SystemEntity{
		InternalID:     env.NextID(models.RecordEntity),
		ExternalID:     a.def.ID,
		Path:           a.path,
		Type:           models.EntityActivity,
		Status:         status,
		AlarmState:     models.AlarmNotApplicable,
		GenerationTime: env.Now(),
	}}
}
