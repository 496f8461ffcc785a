// Telemon - Telemetry Monitoring and Control Processing Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemon

package processor

import (
	"errors"
	"testing"
	"time"

	"github.com/tomtom215/telemon/internal/definition"
	"github.com/tomtom215/telemon/internal/extension"
	"github.com/tomtom215/telemon/internal/models"
)

type checkStep struct {
	value        any
	at           time.Duration
	reevaluation bool
	want         models.AlarmState
}

func runCheck(t *testing.T, def definition.CheckDefinition, opts Options, steps []checkStep) {
	t.Helper()
	c, err := compileCheck(&def, opts)
	if err != nil {
		t.Fatalf("compileCheck: %v", err)
	}
	ctx := NewEnv(resolverOf(), NewIDGenerator(), t0).context("/t")
	for i, s := range steps {
		got, err := c.evaluate(s.value, t0.Add(s.at), s.reevaluation, ctx)
		if err != nil && s.want != models.AlarmError {
			t.Fatalf("step %d: evaluate: %v", i, err)
		}
		if got != s.want {
			t.Errorf("step %d (%v): got %s, want %s", i, s.value, got, s.want)
		}
	}
}

func TestLimitCheckDebounce(t *testing.T) {
	t.Parallel()

	def := definition.CheckDefinition{
		Name: "range", Kind: definition.CheckLimit,
		Low: f64(0), High: f64(10),
		Severity: models.AlarmAlarm, NumViolations: 2,
	}
	runCheck(t, def, testOptions(), []checkStep{
		{value: 5.0, at: 0, want: models.AlarmNominal},
		{value: 20.0, at: time.Second, want: models.AlarmViolated},
		// a recompute of the same sample is not a new violation
		{value: 20.0, at: time.Second, reevaluation: true, want: models.AlarmViolated},
		{value: 21.0, at: 2 * time.Second, want: models.AlarmAlarm},
		{value: -3.0, at: 3 * time.Second, want: models.AlarmAlarm},
		{value: 4.0, at: 4 * time.Second, want: models.AlarmNominal},
		{value: 11.0, at: 5 * time.Second, want: models.AlarmViolated},
		{value: "high", at: 6 * time.Second, want: models.AlarmError},
	})
}

func TestExpectedCheck(t *testing.T) {
	t.Parallel()

	def := definition.CheckDefinition{Name: "mode", Kind: definition.CheckExpected, Values: []string{"NOMINAL", "SAFE"}}
	runCheck(t, def, testOptions(), []checkStep{
		{value: "SAFE", want: models.AlarmNominal},
		{value: "OFF", at: time.Second, want: models.AlarmWarning},
	})
}

func TestDeltaCheck(t *testing.T) {
	t.Parallel()

	def := definition.CheckDefinition{Name: "jump", Kind: definition.CheckDelta, High: f64(5), Absolute: true}
	runCheck(t, def, testOptions(), []checkStep{
		// the first sample only primes the rule
		{value: 100.0, want: models.AlarmNominal},
		{value: 103.0, at: time.Second, want: models.AlarmNominal},
		{value: 95.0, at: 2 * time.Second, want: models.AlarmWarning},
		// same generation time compares against the same previous value
		{value: 95.0, at: 2 * time.Second, reevaluation: true, want: models.AlarmWarning},
		{value: 96.0, at: 3 * time.Second, want: models.AlarmNominal},
	})
}

func TestExpressionCheck(t *testing.T) {
	t.Parallel()

	def := definition.CheckDefinition{
		Name: "rising", Kind: definition.CheckExpression,
		Expression: &definition.ExpressionDefinition{Expression: "input > previous"},
	}
	runCheck(t, def, testOptions(), []checkStep{
		{value: 1.0, want: models.AlarmNominal},
		{value: 2.0, at: time.Second, want: models.AlarmWarning},
		{value: 2.0, at: 2 * time.Second, want: models.AlarmNominal},
	})
}

func TestCheckApplicability(t *testing.T) {
	t.Parallel()

	def := definition.CheckDefinition{
		Name: "high", Kind: definition.CheckLimit, High: f64(10),
		Applicability: &definition.ExpressionDefinition{Expression: "input < 1000"},
	}
	runCheck(t, def, testOptions(), []checkStep{
		{value: 20.0, want: models.AlarmWarning},
		{value: 5000.0, at: time.Second, want: models.AlarmNotApplicable},
	})
}

func TestExternalCheck(t *testing.T) {
	t.Parallel()

	reg := extension.New(extension.ProviderFunc("test", func(r *extension.Registrar) {
		r.Check("odd", extension.CheckerFunc(func(in extension.CheckInput, _ extension.Context) (bool, error) {
			n, ok := in.Value.(int64)
			if !ok {
				return false, errors.New("not an integer")
			}
			return n%2 == 1, nil
		}))
	}))
	def := definition.CheckDefinition{Name: "odd", Kind: definition.CheckExternal, Function: "odd", Severity: models.AlarmError}
	runCheck(t, def, Options{Registry: reg}, []checkStep{
		{value: int64(2), want: models.AlarmNominal},
		{value: int64(3), at: time.Second, want: models.AlarmError},
		{value: "x", at: 2 * time.Second, want: models.AlarmError},
	})

	missing := definition.CheckDefinition{Name: "m", Kind: definition.CheckExternal, Function: "unknown_fn"}
	if _, err := compileCheck(&missing, Options{Registry: reg}); !errors.Is(err, extension.ErrUnknownFunction) {
		t.Errorf("expected ErrUnknownFunction, got %v", err)
	}
}
