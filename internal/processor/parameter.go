// Telemon - Telemetry Monitoring and Control Processing Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemon

package processor

import (
	"fmt"
	"reflect"
	"slices"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/tomtom215/telemon/internal/definition"
	"github.com/tomtom215/telemon/internal/expression"
	"github.com/tomtom215/telemon/internal/logging"
	"github.com/tomtom215/telemon/internal/models"
)

const defaultAlarmLogInterval = time.Second

type trigger struct {
	event     models.Path
	condition definition.TriggerCondition
}

// Parameter computes the state of one parameter: source value, validity,
// engineering value and alarm state.
type Parameter struct {
	def          *definition.ParameterDefinition
	path         models.Path
	expr         *expression.Expression
	validity     *expression.Expression
	calibrations []*calibration
	checks       []*check
	triggers     []trigger
	refs         []models.Path

	status models.Status
	state  *models.ParameterData
	alarm  *models.AlarmParameterData

	lastNominalValue any
	lastNominalTime  time.Time

	alarmLog        *rate.Limiter
	suppressedLines int
	log             zerolog.Logger
}

// NewParameter compiles a parameter definition. With opts.AllowUnresolved
// unset, an unknown external function name is an error.
func NewParameter(def *definition.ParameterDefinition, opts Options) (*Parameter, error) {
	p := &Parameter{
		def:  def,
		path: def.Path(),
		log:  logging.WithComponent("processor"),
	}
	var err error
	if p.expr, err = def.Expression.Compile(); err != nil {
		return nil, fmt.Errorf("parameter %s expression: %w", p.path, err)
	}
	if p.validity, err = def.Validity.Compile(); err != nil {
		return nil, fmt.Errorf("parameter %s validity: %w", p.path, err)
	}
	for i := range def.Calibrations {
		c, err := compileCalibration(&def.Calibrations[i], opts)
		if err != nil {
			return nil, fmt.Errorf("parameter %s calibration %d: %w", p.path, i, err)
		}
		p.calibrations = append(p.calibrations, c)
	}
	for i := range def.Checks {
		c, err := compileCheck(&def.Checks[i], opts)
		if err != nil {
			return nil, fmt.Errorf("parameter %s: %w", p.path, err)
		}
		p.checks = append(p.checks, c)
	}
	for _, tr := range def.Triggers {
		event, err := models.ParsePath(tr.Event)
		if err != nil {
			return nil, fmt.Errorf("parameter %s trigger: %w", p.path, err)
		}
		p.triggers = append(p.triggers, trigger{event: event, condition: tr.Condition})
	}

	var refs []models.Path
	if p.expr != nil {
		refs = append(refs, p.expr.References()...)
	}
	if p.validity != nil {
		refs = append(refs, p.validity.References()...)
	}
	for _, c := range p.calibrations {
		refs = append(refs, c.references()...)
	}
	for _, c := range p.checks {
		refs = append(refs, c.references()...)
	}
	for _, r := range refs {
		if !slices.Contains(p.refs, r) {
			p.refs = append(p.refs, r)
		}
	}

	if def.DefaultValue != nil {
		if p.state, err = defaultState(def); err != nil {
			return nil, fmt.Errorf("parameter %s default value: %w", p.path, err)
		}
	}

	interval := opts.AlarmLogInterval
	if interval <= 0 {
		interval = defaultAlarmLogInterval
	}
	p.alarmLog = rate.NewLimiter(rate.Every(interval), 1)
	return p, nil
}

// defaultState is the state of a parameter that has not been sampled yet.
// Its timestamps are zero so any sample supersedes it.
func defaultState(def *definition.ParameterDefinition) (*models.ParameterData, error) {
	state := &models.ParameterData{
		ExternalID: def.ID,
		Path:       def.Path(),
		Validity:   models.ValidityUnknown,
		AlarmState: models.AlarmUnknown,
	}
	var err error
	if def.DefaultValue.Type == definition.DefaultRaw {
		state.SourceValue, err = def.RawType.Coerce(def.DefaultValue.Value)
	} else {
		state.EngValue, err = def.EngType.Coerce(def.DefaultValue.Value)
	}
	if err != nil {
		return nil, err
	}
	return state, nil
}

func (p *Parameter) ID() int64                 { return p.def.ID }
func (p *Parameter) Path() models.Path         { return p.path }
func (p *Parameter) Type() models.EntityType   { return models.EntityParameter }
func (p *Parameter) References() []models.Path { return slices.Clone(p.refs) }
func (p *Parameter) Status() models.Status     { return p.status }

// Triggers returns the events this parameter can raise.
func (p *Parameter) Triggers() []models.Path {
	out := make([]models.Path, 0, len(p.triggers))
	for _, tr := range p.triggers {
		if !slices.Contains(out, tr.event) {
			out = append(out, tr.event)
		}
	}
	return out
}

// Value returns the engineering value when the parameter is valid.
func (p *Parameter) Value() (any, bool) {
	if p.state == nil || p.state.Validity != models.ValidityValid || p.state.EngValue == nil {
		return nil, false
	}
	return p.state.EngValue, true
}

func (p *Parameter) GenerationTime() time.Time {
	if p.state == nil {
		return time.Time{}
	}
	return p.state.GenerationTime
}

func (p *Parameter) Aggregate() (models.AlarmState, bool) {
	if p.status != models.StatusEnabled || p.state == nil ||
		p.state.Validity == models.ValidityDisabled || p.state.Validity == models.ValidityUnknown {
		return models.AlarmNotApplicable, false
	}
	return p.state.AlarmState, true
}

func (p *Parameter) Snapshot() EntityState {
	s := EntityState{
		ID:         p.def.ID,
		Path:       p.path,
		Type:       models.EntityParameter,
		Status:     p.status,
		AlarmState: models.AlarmNotApplicable,
		Parameter:  p.state,
		Alarm:      p.alarm,
	}
	if p.state != nil {
		s.AlarmState = p.state.AlarmState
	}
	return s
}

func (p *Parameter) Visit(v Visitor) { v.OnVisit(p.Snapshot()) }

// Process applies a raw sample, or recomputes the parameter from upstream
// state when input is nil. A sample fed by an activity in the same batch is
// applied like a raw one unless a raw sample is present.
func (p *Parameter) Process(env *Env, input models.RawInput) ([]models.Record, error) {
	var sample *models.ParameterSample
	feed, fed := env.takeFeed(p.path)
	if input != nil {
		s, ok := input.(models.ParameterSample)
		if !ok {
			return nil, fmt.Errorf("%w: %T for parameter %s", ErrInputKind, input, p.path)
		}
		sample = &s
	} else if fed {
		sample = &feed
	}
	if p.status == models.StatusDisabled {
		return p.disable(env), nil
	}
	if sample != nil {
		if p.expr != nil {
			p.log.Warn().Str("path", p.path.String()).Msg("raw sample rejected for synthetic parameter")
			return nil, nil
		}
		if p.state != nil && sample.GenerationTime.Before(p.state.GenerationTime) {
			p.log.Debug().
				Str("path", p.path.String()).
				Time("sample_time", sample.GenerationTime).
				Time("current_time", p.state.GenerationTime).
				Msg("out-of-order sample discarded")
			return nil, nil
		}
	}
	return p.update(env, sample, false), nil
}

// SetStatus changes the status and emits the entity record plus the
// resulting parameter state.
func (p *Parameter) SetStatus(env *Env, status models.Status) []models.Record {
	if status == p.status {
		return nil
	}
	p.status = status
	records := []models.Record{p.entityRecord(env)}
	if status == models.StatusDisabled {
		return append(records, p.disable(env)...)
	}
	return append(records, p.update(env, nil, true)...)
}

func (p *Parameter) entityRecord(env *Env) *models.SystemEntity {
	alarm := models.AlarmNotApplicable
	if p.state != nil {
		alarm = p.state.AlarmState
	}
	return &models.SystemEntity{
		InternalID:     env.NextID(models.RecordEntity),
		ExternalID:     p.def.ID,
		Path:           p.path,
		Type:           models.EntityParameter,
		Status:         p.status,
		AlarmState:     alarm,
		GenerationTime: env.Now(),
	}
}

// disable emits a DISABLED state once, stamped with the batch time.
func (p *Parameter) disable(env *Env) []models.Record {
	if p.state != nil && p.state.Validity == models.ValidityDisabled {
		return nil
	}
	next := &models.ParameterData{
		ExternalID:     p.def.ID,
		Path:           p.path,
		Validity:       models.ValidityDisabled,
		AlarmState:     models.AlarmNotApplicable,
		GenerationTime: env.Now(),
		ReceptionTime:  env.Now(),
	}
	if p.state != nil {
		next.SourceValue = p.state.SourceValue
		next.EngValue = p.state.EngValue
		next.AlarmState = p.state.AlarmState
		next.Route = p.state.Route
	}
	next.InternalID = env.NextID(models.RecordParameter)
	p.state = next
	return []models.Record{next}
}

// update runs the processing pipeline. sample is nil for a recompute; force
// recomputes a synthetic parameter even when no reference changed in the
// batch.
func (p *Parameter) update(env *Env, sample *models.ParameterSample, force bool) []models.Record {
	ctx := env.context(p.path)
	prev := p.state
	next := &models.ParameterData{
		ExternalID: p.def.ID,
		Path:       p.path,
		Validity:   models.ValidityValid,
		AlarmState: models.AlarmUnknown,
	}

	switch {
	case sample != nil:
		next.GenerationTime = stampOr(sample.GenerationTime, env.Now())
		next.ReceptionTime = stampOr(sample.ReceptionTime, env.Now())
		next.Route = sample.Route
		src, err := p.def.RawType.Coerce(sample.Value)
		switch {
		case err != nil:
			p.log.Warn().Err(err).Str("path", p.path.String()).Msg("malformed raw sample")
			next.Validity = models.ValidityError
		case src == nil:
			next.Validity = models.ValidityInvalid
		default:
			next.SourceValue = src
		}

	case p.expr != nil:
		if prev != nil && !force && !env.Changed(p.refs...) {
			return nil
		}
		latest, ok := env.latest(p.expr.References())
		if !ok {
			latest = env.Now()
		}
		next.GenerationTime = latest
		next.ReceptionTime = env.Now()
		v, err := p.expr.Evaluate(ctx, nil)
		if err == nil {
			v, err = p.def.RawType.Coerce(v)
		}
		if err != nil {
			p.log.Debug().Err(err).Str("path", p.path.String()).Msg("synthetic parameter evaluation failed")
			next.Validity = models.ValidityInvalid
		} else {
			next.SourceValue = v
		}

	default:
		if prev == nil || prev.SourceValue == nil {
			return nil
		}
		next.SourceValue = prev.SourceValue
		next.GenerationTime = prev.GenerationTime
		next.ReceptionTime = prev.ReceptionTime
		next.Route = prev.Route
	}

	if next.Validity == models.ValidityValid && p.validity != nil {
		ok, err := p.validity.EvaluateBool(ctx, nil)
		switch {
		case err != nil:
			p.log.Debug().Err(err).Str("path", p.path.String()).Msg("validity evaluation failed")
			next.Validity = models.ValidityError
		case !ok:
			next.Validity = models.ValidityInvalid
		}
	}

	if next.Validity == models.ValidityValid {
		eng, err := calibrate(p.calibrations, next.SourceValue, ctx)
		if err == nil {
			eng, err = p.def.EngType.Coerce(eng)
		}
		if err != nil {
			p.log.Warn().Err(err).Str("path", p.path.String()).Msg("calibration failed")
			next.Validity = models.ValidityError
		} else {
			next.EngValue = eng
			next.AlarmState = p.evaluateChecks(next, sample == nil, ctx)
		}
	}

	if prev != nil && (sameState(prev, next) || sample == nil && sameValue(prev, next)) {
		return nil
	}
	next.InternalID = env.NextID(models.RecordParameter)
	p.state = next
	records := []models.Record{next}

	prevAlarm := models.AlarmUnknown
	if prev != nil {
		prevAlarm = prev.AlarmState
	}
	if next.Validity == models.ValidityValid {
		if next.AlarmState == models.AlarmNominal {
			p.lastNominalValue = next.EngValue
			p.lastNominalTime = next.GenerationTime
		}
		if len(p.checks) > 0 && next.AlarmState != prevAlarm {
			p.alarm = &models.AlarmParameterData{
				InternalID:           env.NextID(models.RecordAlarm),
				ExternalID:           p.def.ID,
				Path:                 p.path,
				CurrentAlarmState:    next.AlarmState,
				PreviousAlarmState:   prevAlarm,
				CurrentValue:         next.EngValue,
				LastNominalValue:     p.lastNominalValue,
				LastNominalValueTime: p.lastNominalTime,
				GenerationTime:       next.GenerationTime,
				ReceptionTime:        next.ReceptionTime,
			}
			records = append(records, p.alarm)
			p.logAlarm(prevAlarm, next)
		}
	}

	p.fireTriggers(env, prev, next, sample != nil)
	return records
}

// evaluateChecks returns the most severe state of the applicable checks. A
// failing check makes the whole evaluation ERROR.
func (p *Parameter) evaluateChecks(next *models.ParameterData, reevaluation bool, ctx *evalContext) models.AlarmState {
	if p.status == models.StatusIgnored {
		return models.AlarmIgnored
	}
	if len(p.checks) == 0 {
		return models.AlarmNotChecked
	}
	result := models.AlarmNominal
	for _, c := range p.checks {
		v := next.EngValue
		if c.rawValueChecked {
			v = next.SourceValue
		}
		state, err := c.evaluate(v, next.GenerationTime, reevaluation, ctx)
		if err != nil {
			p.log.Warn().Err(err).Str("path", p.path.String()).Str("check", c.name).Msg("check failed")
			return models.AlarmError
		}
		result = models.MaxAlarmState(result, state)
	}
	return result
}

func (p *Parameter) logAlarm(prev models.AlarmState, next *models.ParameterData) {
	if !p.alarmLog.Allow() {
		p.suppressedLines++
		return
	}
	ev := p.log.Info()
	if next.AlarmState.IsAlarm() {
		ev = p.log.Warn()
	}
	ev.Str("path", p.path.String()).
		Stringer("previous", prev).
		Stringer("current", next.AlarmState).
		Interface("value", next.EngValue).
		Int("suppressed", p.suppressedLines).
		Msg("parameter alarm state changed")
	p.suppressedLines = 0
}

func (p *Parameter) fireTriggers(env *Env, prev, next *models.ParameterData, newSample bool) {
	if len(p.triggers) == 0 {
		return
	}
	wasInAlarm := prev != nil && prev.AlarmState.IsAlarm()
	inAlarm := next.AlarmState.IsAlarm()
	for _, tr := range p.triggers {
		var fire bool
		switch tr.condition {
		case definition.TriggerOnNewSample:
			fire = newSample
		case definition.TriggerOnAlarmRaised:
			fire = !wasInAlarm && inAlarm
		case definition.TriggerOnBackToNominal:
			fire = wasInAlarm && next.AlarmState == models.AlarmNominal
		case definition.TriggerOnValueChange:
			fire = prev == nil || !reflect.DeepEqual(prev.EngValue, next.EngValue)
		}
		if !fire {
			continue
		}
		env.RaiseEvent(tr.event, models.EventOccurrence{
			GenerationTime: next.GenerationTime,
			ReceptionTime:  next.ReceptionTime,
			Qualifier:      string(tr.condition),
			Report:         next.EngValue,
			Route:          next.Route,
			Source:         p.path.String(),
		})
	}
}

// sameState reports whether two states differ only by record id.
func sameState(a, b *models.ParameterData) bool {
	return sameValue(a, b) &&
		a.GenerationTime.Equal(b.GenerationTime) &&
		a.ReceptionTime.Equal(b.ReceptionTime)
}

// sameValue ignores the timestamps. A recompute that lands on the same value,
// validity and alarm state is not a new sample.
func sameValue(a, b *models.ParameterData) bool {
	return a.Validity == b.Validity &&
		a.AlarmState == b.AlarmState &&
		a.Route == b.Route &&
		reflect.DeepEqual(a.SourceValue, b.SourceValue) &&
		reflect.DeepEqual(a.EngValue, b.EngValue)
}
