// Telemon - Telemetry Monitoring and Control Processing Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemon

package models

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownEnumValue is returned when an enumeration name cannot be parsed.
var ErrUnknownEnumValue = errors.New("unknown enumeration value")

// EntityType is the kind of a system entity.
type EntityType uint8

const (
	EntityContainer EntityType = iota
	EntityParameter
	EntityEvent
	EntityActivity
)

var entityTypeNames = []string{"CONTAINER", "PARAMETER", "EVENT", "ACTIVITY"}

func (t EntityType) String() string { return enumName(entityTypeNames, t) }

// MarshalText implements encoding.TextMarshaler.
func (t EntityType) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *EntityType) UnmarshalText(b []byte) error { return parseEnum(entityTypeNames, string(b), t) }

// Status is the administrative status of an entity.
type Status uint8

const (
	// StatusEnabled entities are fully processed.
	StatusEnabled Status = iota
	// StatusDisabled entities skip every evaluation and report validity DISABLED.
	StatusDisabled
	// StatusIgnored entities are processed but their checks are skipped and
	// they do not contribute to container aggregation.
	StatusIgnored
)

var statusNames = []string{"ENABLED", "DISABLED", "IGNORED"}

func (s Status) String() string { return enumName(statusNames, s) }

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(b []byte) error { return parseEnum(statusNames, string(b), s) }

// ParseStatus parses a status name, case-insensitively.
func ParseStatus(s string) (Status, error) {
	var st Status
	err := parseEnum(statusNames, s, &st)
	return st, err
}

// Validity qualifies a parameter value.
type Validity uint8

const (
	ValidityUnknown Validity = iota
	ValidityValid
	ValidityInvalid
	ValidityDisabled
	ValidityError
)

var validityNames = []string{"UNKNOWN", "VALID", "INVALID", "DISABLED", "ERROR"}

func (v Validity) String() string { return enumName(validityNames, v) }

// MarshalText implements encoding.TextMarshaler.
func (v Validity) MarshalText() ([]byte, error) { return []byte(v.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (v *Validity) UnmarshalText(b []byte) error { return parseEnum(validityNames, string(b), v) }

// IsDegraded reports whether the validity belongs to the error class.
func (v Validity) IsDegraded() bool {
	return v == ValidityInvalid || v == ValidityError
}

// AlarmState is an ordered severity classification. Greater values are more
// severe; ERROR and UNKNOWN form the terminal unknown class.
type AlarmState uint8

const (
	AlarmNotApplicable AlarmState = iota
	AlarmNotChecked
	AlarmIgnored
	AlarmNominal
	AlarmViolated
	AlarmWarning
	AlarmAlarm
	AlarmError
	AlarmUnknown
)

var alarmStateNames = []string{
	"NOT_APPLICABLE", "NOT_CHECKED", "IGNORED", "NOMINAL", "VIOLATED",
	"WARNING", "ALARM", "ERROR", "UNKNOWN",
}

func (a AlarmState) String() string { return enumName(alarmStateNames, a) }

// MarshalText implements encoding.TextMarshaler.
func (a AlarmState) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *AlarmState) UnmarshalText(b []byte) error { return parseEnum(alarmStateNames, string(b), a) }

// ParseAlarmState parses an alarm state name, case-insensitively.
func ParseAlarmState(s string) (AlarmState, error) {
	var a AlarmState
	err := parseEnum(alarmStateNames, s, &a)
	return a, err
}

// IsAlarm reports whether the state is an alarm condition.
func (a AlarmState) IsAlarm() bool {
	return a == AlarmWarning || a == AlarmAlarm || a == AlarmError
}

// IsNominalClass reports whether the state counts as "back to nominal" for
// transitions: nominal, not checked, ignored or not applicable.
func (a AlarmState) IsNominalClass() bool {
	return a <= AlarmNominal
}

// MaxAlarmState returns the most severe of the two states.
func MaxAlarmState(a, b AlarmState) AlarmState {
	if a > b {
		return a
	}
	return b
}

// Severity is the declared severity of an event.
type Severity uint8

const (
	SeverityNone Severity = iota
	SeverityInfo
	SeverityWarn
	SeverityAlarm
	SeverityError
)

var severityNames = []string{"NONE", "INFO", "WARN", "ALARM", "ERROR"}

func (s Severity) String() string { return enumName(severityNames, s) }

// MarshalText implements encoding.TextMarshaler.
func (s Severity) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Severity) UnmarshalText(b []byte) error { return parseEnum(severityNames, string(b), s) }

// ParseSeverity parses a severity name, case-insensitively.
func ParseSeverity(s string) (Severity, error) {
	var sev Severity
	err := parseEnum(severityNames, s, &sev)
	return sev, err
}

// AlarmState maps an event severity to the alarm state used for container
// aggregation.
func (s Severity) AlarmState() AlarmState {
	switch s {
	case SeverityWarn:
		return AlarmWarning
	case SeverityAlarm:
		return AlarmAlarm
	case SeverityError:
		return AlarmError
	case SeverityNone:
		return AlarmNotApplicable
	default:
		return AlarmNominal
	}
}

// ActivityState is the execution state carried by an activity report.
type ActivityState uint8

const (
	ActivityUnknown ActivityState = iota
	ActivityOK
	ActivityPending
	ActivityExpected
	ActivityTimeout
	ActivityError
	ActivityFatal
)

var activityStateNames = []string{"UNKNOWN", "OK", "PENDING", "EXPECTED", "TIMEOUT", "ERROR", "FATAL"}

func (a ActivityState) String() string { return enumName(activityStateNames, a) }

// MarshalText implements encoding.TextMarshaler.
func (a ActivityState) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *ActivityState) UnmarshalText(b []byte) error {
	return parseEnum(activityStateNames, string(b), a)
}

// ParseActivityState parses an activity state name, case-insensitively.
func ParseActivityState(s string) (ActivityState, error) {
	var a ActivityState
	err := parseEnum(activityStateNames, s, &a)
	return a, err
}

// IsFinal reports whether no further report is expected for the occurrence.
func (a ActivityState) IsFinal() bool {
	return a == ActivityOK || a >= ActivityTimeout
}

// RecordType identifies the concrete type of an output record.
type RecordType uint8

const (
	RecordParameter RecordType = iota
	RecordEvent
	RecordAlarm
	RecordEntity
)

var recordTypeNames = []string{"parameter", "event", "alarm", "entity"}

// RecordTypes lists every record type in declaration order.
var RecordTypes = []RecordType{RecordParameter, RecordEvent, RecordAlarm, RecordEntity}

func (t RecordType) String() string { return enumName(recordTypeNames, t) }

// MarshalText implements encoding.TextMarshaler.
func (t RecordType) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *RecordType) UnmarshalText(b []byte) error { return parseEnum(recordTypeNames, string(b), t) }

// ParseRecordType parses a record type name, case-insensitively.
func ParseRecordType(s string) (RecordType, error) {
	var rt RecordType
	err := parseEnum(recordTypeNames, s, &rt)
	return rt, err
}

func enumName[T ~uint8](names []string, v T) string {
	if int(v) < len(names) {
		return names[v]
	}
	return fmt.Sprintf("INVALID(%d)", uint8(v))
}

func parseEnum[T ~uint8](names []string, s string, out *T) error {
	for i, name := range names {
		if strings.EqualFold(name, strings.TrimSpace(s)) {
			*out = T(i)
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrUnknownEnumValue, s)
}
