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
	"github.com/tomtom215/telemon/internal/models"
)

func newTestActivity() *Activity {
	return NewActivity(&definition.ActivityDefinition{
		ID: 20, Location: "/sat/act",
		StateParameter: "/sat/act_state", ResultParameter: "/sat/act_result",
	})
}

func report(state models.ActivityState, at time.Time, result any) models.ActivityReport {
	return models.ActivityReport{Path: "/sat/act", Occurrence: "occ-1", State: state, GenerationTime: at, Result: result}
}

func TestActivityFeedsLinkedParameters(t *testing.T) {
	t.Parallel()

	a := newTestActivity()
	state := newTestParameter(t, definition.ParameterDefinition{ID: 1, Location: "/sat/act_state", RawType: definition.TypeString}, testOptions())
	result := newTestParameter(t, definition.ParameterDefinition{ID: 2, Location: "/sat/act_result", RawType: definition.TypeReal}, testOptions())

	tests := []struct {
		name       string
		report     models.ActivityReport
		wantState  string
		wantResult any
	}{
		{"pending", report(models.ActivityPending, t0, nil), "PENDING", nil},
		{"completed", report(models.ActivityOK, t0.Add(time.Second), 3.5), "OK", 3.5},
	}
	for _, tt := range tests {
		env := NewEnv(resolverOf(a, state, result), NewIDGenerator(), t0)
		if recs := process(t, a, env, tt.report); len(recs) != 0 {
			t.Errorf("%s: activity emitted %d records", tt.name, len(recs))
		}

		st := parameterData(t, process(t, state, env, nil))
		if st.SourceValue != tt.wantState || !st.GenerationTime.Equal(tt.report.GenerationTime) {
			t.Errorf("%s: state parameter = %v at %v", tt.name, st.SourceValue, st.GenerationTime)
		}
		recs := process(t, result, env, nil)
		if tt.wantResult == nil {
			if len(recs) != 0 {
				t.Errorf("%s: result parameter updated without a result", tt.name)
			}
			continue
		}
		if got := parameterData(t, recs); got.SourceValue != tt.wantResult {
			t.Errorf("%s: result parameter = %v, want %v", tt.name, got.SourceValue, tt.wantResult)
		}
	}

	snap := a.Snapshot()
	if snap.Type != models.EntityActivity || snap.Activity == nil || snap.Activity.State != models.ActivityOK {
		t.Errorf("unexpected snapshot %+v", snap)
	}
	if _, ok := a.Aggregate(); ok {
		t.Error("activities must not contribute to aggregation")
	}
}

func TestActivityDiscardsOutOfOrderReports(t *testing.T) {
	t.Parallel()

	a := newTestActivity()
	env := NewEnv(resolverOf(a), NewIDGenerator(), t0)
	process(t, a, env, report(models.ActivityOK, t0.Add(time.Second), nil))
	process(t, a, env, report(models.ActivityPending, t0, nil))

	if a.last.State != models.ActivityOK {
		t.Errorf("late report replaced the last one: %+v", a.last)
	}
	if _, fed := env.takeFeed("/sat/act_state"); !fed {
		t.Error("expected the in-order report to be fed")
	}
}

func TestActivityRawSampleWins(t *testing.T) {
	t.Parallel()

	a := newTestActivity()
	state := newTestParameter(t, definition.ParameterDefinition{ID: 1, Location: "/sat/act_state"}, testOptions())
	env := NewEnv(resolverOf(a, state), NewIDGenerator(), t0)

	process(t, a, env, report(models.ActivityFatal, t0, nil))
	pd := parameterData(t, process(t, state, env, sample("/sat/act_state", t0, "MANUAL")))
	if pd.SourceValue != "MANUAL" {
		t.Errorf("state parameter = %v, want the raw sample", pd.SourceValue)
	}
	if _, fed := env.takeFeed("/sat/act_state"); fed {
		t.Error("feed left queued after the parameter was processed")
	}
}

func TestActivityStatus(t *testing.T) {
	t.Parallel()

	a := newTestActivity()
	env := NewEnv(resolverOf(a), NewIDGenerator(), t0)

	recs := a.SetStatus(env, models.StatusDisabled)
	if len(recs) != 1 {
		t.Fatalf("expected one entity record, got %d", len(recs))
	}
	if ent, ok := recs[0].(*models.SystemEntity); !ok || ent.Type != models.EntityActivity || ent.Status != models.StatusDisabled {
		t.Errorf("unexpected entity record %+v", recs[0])
	}
	process(t, a, env, report(models.ActivityOK, t0, 1.0))
	if a.last != nil {
		t.Error("disabled activity accepted a report")
	}
	if _, fed := env.takeFeed("/sat/act_state"); fed {
		t.Error("disabled activity fed a parameter")
	}

	if _, err := a.Process(env, sample("/sat/act", t0, 1)); !errors.Is(err, ErrInputKind) {
		t.Errorf("expected ErrInputKind, got %v", err)
	}
}
