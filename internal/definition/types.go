// Telemon - Telemetry Monitoring and Control Processing Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemon

// Package definition holds the static processing definitions of parameters,
// events and activities and loads them from YAML.
//
// Definitions are read once before the model is built. Changing them
// requires a full rebuild of the processing model.
package definition

import (
	"time"

	"github.com/tomtom215/telemon/internal/models"
)

// Definitions is the complete, load-time description of the monitored system.
type Definitions struct {
	Parameters []ParameterDefinition `yaml:"parameters" validate:"dive"`
	Events     []EventDefinition     `yaml:"events" validate:"dive"`
	Activities []ActivityDefinition  `yaml:"activities,omitempty" validate:"dive"`
}

// ExpressionDefinition is an expression plus the symbols it binds.
type ExpressionDefinition struct {
	Expression string            `yaml:"expression" validate:"required"`
	Symbols    map[string]string `yaml:"symbols,omitempty" validate:"dive,entity_path"`
}

// ParameterDefinition describes how a parameter is acquired or derived.
type ParameterDefinition struct {
	ID          int64     `yaml:"id" validate:"gt=0"`
	Location    string    `yaml:"location" validate:"required,entity_path"`
	Description string    `yaml:"description,omitempty"`
	RawType     ValueType `yaml:"raw_type,omitempty"`
	EngType     ValueType `yaml:"eng_type,omitempty"`
	Unit        string    `yaml:"unit,omitempty"`

	// Expression makes the parameter synthetic: its source value is derived
	// from other entities and raw samples for it are rejected.
	Expression *ExpressionDefinition `yaml:"expression,omitempty"`

	// Validity must evaluate to true for the value to be VALID.
	Validity *ExpressionDefinition `yaml:"validity,omitempty"`

	// Calibrations are tried in order; the first applicable one is used.
	Calibrations []CalibrationDefinition `yaml:"calibrations,omitempty" validate:"dive"`

	// Checks are evaluated in declaration order.
	Checks []CheckDefinition `yaml:"checks,omitempty" validate:"dive"`

	Triggers []TriggerDefinition `yaml:"triggers,omitempty" validate:"dive"`

	// DefaultValue seeds the state before the first sample arrives.
	DefaultValue *DefaultValueDefinition `yaml:"default_value,omitempty"`
}

// DefaultValueType selects which value of the parameter a default seeds.
type DefaultValueType string

const (
	DefaultRaw         DefaultValueType = "RAW"
	DefaultEngineering DefaultValueType = "ENGINEERING"
)

// DefaultValueDefinition is the initial value of a parameter. The seeded
// state has UNKNOWN validity and alarm state and is replaced by the first
// sample. Type defaults to ENGINEERING.
type DefaultValueDefinition struct {
	Type  DefaultValueType `yaml:"type,omitempty" validate:"omitempty,oneof=RAW ENGINEERING"`
	Value any              `yaml:"value"`
}

// Path returns the parsed location. Only valid after validation.
func (d *ParameterDefinition) Path() models.Path {
	return models.MustParsePath(d.Location)
}

// IsSynthetic reports whether the parameter is derived by an expression.
func (d *ParameterDefinition) IsSynthetic() bool {
	return d.Expression != nil
}

// CalibrationKind selects the calibration algorithm.
type CalibrationKind string

const (
	CalibrationXY           CalibrationKind = "xy"
	CalibrationPolynomial   CalibrationKind = "polynomial"
	CalibrationLog          CalibrationKind = "log"
	CalibrationEnum         CalibrationKind = "enum"
	CalibrationRangeEnum    CalibrationKind = "range_enum"
	CalibrationInvertedEnum CalibrationKind = "inverted_enum"
	CalibrationExpression   CalibrationKind = "expression"
	CalibrationExternal     CalibrationKind = "external"
)

// CalibrationDefinition converts a source value into an engineering value.
// Only the fields of the selected kind are used.
type CalibrationDefinition struct {
	Kind          CalibrationKind       `yaml:"kind" validate:"required,oneof=xy polynomial log enum range_enum inverted_enum expression external"`
	Applicability *ExpressionDefinition `yaml:"applicability,omitempty"`

	// xy
	Points      []XYPoint `yaml:"points,omitempty"`
	Extrapolate bool      `yaml:"extrapolate,omitempty"`

	// polynomial (a0 + a1*x + a2*x^2 ...) and log (1 / (a0 + a1*ln(x) + ...))
	Coefficients []float64 `yaml:"coefficients,omitempty"`

	// enum and inverted_enum
	Entries []EnumEntry `yaml:"entries,omitempty"`

	// range_enum
	Ranges []RangeEntry `yaml:"ranges,omitempty"`

	// Default is returned by enum kinds when no entry matches.
	Default *string `yaml:"default,omitempty"`

	// expression, with the source value bound to "input"
	Expression *ExpressionDefinition `yaml:"expression,omitempty"`

	// external
	Function string            `yaml:"function,omitempty" validate:"required_if=Kind external"`
	Args     map[string]string `yaml:"args,omitempty"`
}

// XYPoint is one point of a piece-wise linear calibration curve.
type XYPoint struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

// EnumEntry maps an integer source value to a label.
type EnumEntry struct {
	Input int64  `yaml:"input"`
	Value string `yaml:"value" validate:"required"`
}

// RangeEntry maps the half-open range [Min, Max) to a label.
type RangeEntry struct {
	Min   float64 `yaml:"min"`
	Max   float64 `yaml:"max" validate:"gtfield=Min"`
	Value string  `yaml:"value" validate:"required"`
}

// CheckKind selects the check algorithm.
type CheckKind string

const (
	CheckLimit      CheckKind = "limit"
	CheckExpected   CheckKind = "expected"
	CheckDelta      CheckKind = "delta"
	CheckExpression CheckKind = "expression"
	CheckExternal   CheckKind = "external"
)

// CheckDefinition is an alarm rule evaluated against the parameter value.
type CheckDefinition struct {
	Name string    `yaml:"name" validate:"required"`
	Kind CheckKind `yaml:"kind" validate:"required,oneof=limit expected delta expression external"`

	// Severity is raised once NumViolations consecutive violations occur:
	// WARNING, ALARM or ERROR. Default WARNING.
	Severity models.AlarmState `yaml:"severity,omitempty"`

	// NumViolations debounces the check. Zero means 1.
	NumViolations int `yaml:"num_violations,omitempty" validate:"gte=0"`

	// RawValueChecked applies the check to the source value.
	RawValueChecked bool `yaml:"raw_value_checked,omitempty"`

	Applicability *ExpressionDefinition `yaml:"applicability,omitempty"`

	// limit: violated outside [Low, High]; delta: violated when the change
	// since the previous sample is outside [Low, High].
	Low  *float64 `yaml:"low,omitempty"`
	High *float64 `yaml:"high,omitempty"`

	// delta
	Absolute bool `yaml:"absolute,omitempty"`

	// expected: violated when the value is not one of Values.
	Values []string `yaml:"values,omitempty"`

	// expression: violated when the expression is true. The checked value is
	// bound to "input" and the previously checked value to "previous".
	Expression *ExpressionDefinition `yaml:"expression,omitempty"`

	// external
	Function string            `yaml:"function,omitempty" validate:"required_if=Kind external"`
	Args     map[string]string `yaml:"args,omitempty"`
}

// EffectiveViolations returns the debounce count, at least 1.
func (c *CheckDefinition) EffectiveViolations() int {
	if c.NumViolations < 1 {
		return 1
	}
	return c.NumViolations
}

// EffectiveSeverity returns the configured severity, WARNING by default.
func (c *CheckDefinition) EffectiveSeverity() models.AlarmState {
	if c.Severity == models.AlarmNotApplicable {
		return models.AlarmWarning
	}
	return c.Severity
}

// TriggerCondition selects when a parameter raises its trigger event.
type TriggerCondition string

const (
	TriggerOnNewSample     TriggerCondition = "ON_NEW_SAMPLE"
	TriggerOnAlarmRaised   TriggerCondition = "ON_ALARM_RAISED"
	TriggerOnBackToNominal TriggerCondition = "ON_BACK_TO_NOMINAL"
	TriggerOnValueChange   TriggerCondition = "ON_VALUE_CHANGE"
)

// TriggerDefinition raises Event when Condition occurs on the parameter.
type TriggerDefinition struct {
	Event     string           `yaml:"event" validate:"required,entity_path"`
	Condition TriggerCondition `yaml:"condition" validate:"required,oneof=ON_NEW_SAMPLE ON_ALARM_RAISED ON_BACK_TO_NOMINAL ON_VALUE_CHANGE"`
}

// EventDefinition describes an event.
type EventDefinition struct {
	ID          int64           `yaml:"id" validate:"gt=0"`
	Location    string          `yaml:"location" validate:"required,entity_path"`
	Description string          `yaml:"description,omitempty"`
	Type        string          `yaml:"type,omitempty"`
	Severity    models.Severity `yaml:"severity,omitempty"`

	// Condition makes the event condition-driven: it is raised whenever the
	// condition changes from false to true.
	Condition *ExpressionDefinition `yaml:"condition,omitempty"`

	// InhibitionPeriod suppresses raises closer than this to the previous
	// one, measured on generation time.
	InhibitionPeriod time.Duration `yaml:"inhibition_period,omitempty" validate:"gte=0"`
}

// Path returns the parsed location. Only valid after validation.
func (d *EventDefinition) Path() models.Path {
	return models.MustParsePath(d.Location)
}

// ActivityDefinition describes an activity whose execution reports feed
// parameters.
type ActivityDefinition struct {
	ID          int64  `yaml:"id" validate:"gt=0"`
	Location    string `yaml:"location" validate:"required,entity_path"`
	Description string `yaml:"description,omitempty"`
	Type        string `yaml:"type,omitempty"`

	// StateParameter receives the state name of every report.
	StateParameter string `yaml:"state_parameter,omitempty" validate:"omitempty,entity_path"`

	// ResultParameter receives the result of every report that carries one.
	ResultParameter string `yaml:"result_parameter,omitempty" validate:"omitempty,entity_path"`
}

// Path returns the parsed location. Only valid after validation.
func (d *ActivityDefinition) Path() models.Path {
	return models.MustParsePath(d.Location)
}

// Linked returns the parameters fed by the activity.
func (d *ActivityDefinition) Linked() []models.Path {
	var out []models.Path
	for _, loc := range []string{d.StateParameter, d.ResultParameter} {
		if loc != "" {
			out = append(out, models.MustParsePath(loc))
		}
	}
	return out
}
