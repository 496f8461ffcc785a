// Telemon - Telemetry Monitoring and Control Processing Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemon

package definition

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/tomtom215/telemon/internal/models"
)

func TestLoadSampleDefinitions(t *testing.T) {
	t.Parallel()

	defs, err := Load("testdata/spacecraft.yaml")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(defs.Parameters) != 6 || len(defs.Events) != 2 || len(defs.Activities) != 1 {
		t.Fatalf("got %d parameters, %d events and %d activities", len(defs.Parameters), len(defs.Events), len(defs.Activities))
	}

	busV := defs.Parameters[0]
	if busV.Path() != "/sat/power/bus_v" || busV.RawType != TypeUnsignedInteger {
		t.Errorf("unexpected bus_v definition: %+v", busV)
	}
	check := busV.Checks[0]
	if check.EffectiveSeverity() != models.AlarmAlarm || check.EffectiveViolations() != 2 {
		t.Errorf("unexpected check: severity %s violations %d", check.EffectiveSeverity(), check.EffectiveViolations())
	}
	if defs.Parameters[1].Checks[0].EffectiveSeverity() != models.AlarmWarning {
		t.Error("expected WARNING as default severity")
	}
	if dv := defs.Parameters[1].DefaultValue; dv == nil || dv.Type != DefaultRaw || dv.Value != 0 {
		t.Errorf("unexpected bus_i default value: %+v", dv)
	}
	if !defs.Parameters[2].IsSynthetic() {
		t.Error("expected bus_p to be synthetic")
	}
	act := defs.Activities[0]
	if act.Path() != "/sat/obc/reboot" || len(act.Linked()) != 2 {
		t.Errorf("unexpected activity definition: %+v", act)
	}
	if defs.Events[1].InhibitionPeriod != 10*time.Second {
		t.Errorf("inhibition period = %s", defs.Events[1].InhibitionPeriod)
	}
	if defs.Events[1].Severity != models.SeverityAlarm {
		t.Errorf("event severity = %s", defs.Events[1].Severity)
	}
}

func TestParseRejectsInvalidDefinitions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		yaml    string
		wantMsg string
	}{
		{
			name:    "unknown key",
			yaml:    "parameters:\n  - id: 1\n    location: /a/b\n    colour: red\n",
			wantMsg: "colour",
		},
		{
			name:    "missing id",
			yaml:    "parameters:\n  - location: /a/b\n",
			wantMsg: "parameters[0].id must be greater than 0",
		},
		{
			name:    "bad location",
			yaml:    "parameters:\n  - id: 1\n    location: /a//b\n",
			wantMsg: "must be a valid entity path",
		},
		{
			name:    "duplicate id",
			yaml:    "parameters:\n  - id: 1\n    location: /a/b\nevents:\n  - id: 1\n    location: /a/c\n",
			wantMsg: "id 1 used by both",
		},
		{
			name:    "entity used as container",
			yaml:    "parameters:\n  - id: 1\n    location: /a/b\n  - id: 2\n    location: /a/b/c\n",
			wantMsg: "/a/b is a PARAMETER and cannot contain /a/b/c",
		},
		{
			name:    "unknown calibration kind",
			yaml:    "parameters:\n  - id: 1\n    location: /a/b\n    calibrations:\n      - kind: spline\n",
			wantMsg: "must be one of",
		},
		{
			name:    "external without function",
			yaml:    "parameters:\n  - id: 1\n    location: /a/b\n    calibrations:\n      - kind: external\n",
			wantMsg: "function",
		},
		{
			name:    "xy with one point",
			yaml:    "parameters:\n  - id: 1\n    location: /a/b\n    calibrations:\n      - kind: xy\n        points: [{x: 0, y: 0}]\n",
			wantMsg: "needs at least 2 points",
		},
		{
			name:    "limit without bounds",
			yaml:    "parameters:\n  - id: 1\n    location: /a/b\n    checks:\n      - name: c\n        kind: limit\n",
			wantMsg: "needs low and/or high",
		},
		{
			name:    "bad severity",
			yaml:    "parameters:\n  - id: 1\n    location: /a/b\n    checks:\n      - name: c\n        kind: limit\n        high: 1\n        severity: NOMINAL\n",
			wantMsg: "severity NOMINAL not allowed",
		},
		{
			name:    "trigger to unknown event",
			yaml:    "parameters:\n  - id: 1\n    location: /a/b\n    triggers:\n      - event: /a/e\n        condition: ON_NEW_SAMPLE\n",
			wantMsg: "not a declared event",
		},
		{
			name:    "expression syntax",
			yaml:    "parameters:\n  - id: 1\n    location: /a/b\n    expression:\n      expression: \"x * (\"\n      symbols: {x: /a/c}\n",
			wantMsg: "expression compile error",
		},
		{
			name:    "unbound symbol",
			yaml:    "parameters:\n  - id: 1\n    location: /a/b\n    validity:\n      expression: \"y > 0\"\n",
			wantMsg: "unbound expression variable",
		},
		{
			name:    "default value without value",
			yaml:    "parameters:\n  - id: 1\n    location: /a/b\n    default_value:\n      type: RAW\n",
			wantMsg: "default_value needs a value",
		},
		{
			name:    "default value of the wrong type",
			yaml:    "parameters:\n  - id: 1\n    location: /a/b\n    eng_type: REAL\n    default_value:\n      value: high\n",
			wantMsg: "default_value: value does not match declared type",
		},
		{
			name:    "default value kind",
			yaml:    "parameters:\n  - id: 1\n    location: /a/b\n    default_value:\n      type: CALIBRATED\n      value: 1\n",
			wantMsg: "must be one of",
		},
		{
			name:    "activity linked to an undeclared parameter",
			yaml:    "activities:\n  - id: 1\n    location: /a/act\n    state_parameter: /a/state\n",
			wantMsg: "linked parameter /a/state is not declared",
		},
		{
			name:    "activity linked to a synthetic parameter",
			yaml:    "parameters:\n  - id: 1\n    location: /a/r\n    expression:\n      expression: \"1\"\nactivities:\n  - id: 2\n    location: /a/act\n    result_parameter: /a/r\n",
			wantMsg: "linked parameter /a/r is synthetic",
		},
		{
			name:    "activity state parameter with a numeric type",
			yaml:    "parameters:\n  - id: 1\n    location: /a/s\n    raw_type: REAL\nactivities:\n  - id: 2\n    location: /a/act\n    state_parameter: /a/s\n",
			wantMsg: "needs raw_type CHARACTER_STRING",
		},
		{
			name:    "activity sharing a location",
			yaml:    "parameters:\n  - id: 1\n    location: /a/b\nactivities:\n  - id: 2\n    location: /a/b\n",
			wantMsg: "location /a/b declared twice",
		},
		{
			name:    "unknown raw type",
			yaml:    "parameters:\n  - id: 1\n    location: /a/b\n    raw_type: COMPLEX\n",
			wantMsg: "unknown raw_type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Parse([]byte(tt.yaml))
			if !errors.Is(err, ErrInvalidDefinitions) {
				t.Fatalf("expected ErrInvalidDefinitions, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestParseEmpty(t *testing.T) {
	t.Parallel()

	defs, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse(nil): %v", err)
	}
	if len(defs.Parameters) != 0 {
		t.Error("expected no parameters")
	}
}

func TestValueTypeCoerce(t *testing.T) {
	t.Parallel()

	tests := []struct {
		typ     ValueType
		in      any
		want    any
		wantErr bool
	}{
		{TypeAny, "x", "x", false},
		{TypeReal, int64(3), 3.0, false},
		{TypeSignedInteger, 42.0, int64(42), false},
		{TypeSignedInteger, 4.5, nil, true},
		{TypeUnsignedInteger, -1.0, nil, true},
		{TypeUnsignedInteger, 7.0, uint64(7), false},
		{TypeEnumerated, "1", int64(1), false},
		{TypeBoolean, "true", true, false},
		{TypeBoolean, 0.0, false, false},
		{TypeString, 12.5, "12.5", false},
		{TypeReal, nil, nil, false},
	}
	for _, tt := range tests {
		got, err := tt.typ.Coerce(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrValueType) {
				t.Errorf("%s.Coerce(%v) error = %v, want ErrValueType", tt.typ, tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("%s.Coerce(%v) = %v (%T), %v; want %v", tt.typ, tt.in, got, got, err, tt.want)
		}
	}
}
