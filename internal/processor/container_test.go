// Telemon - Telemetry Monitoring and Control Processing Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemon

package processor

import (
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/tomtom215/telemon/internal/models"
)

func TestContainerAggregation(t *testing.T) {
	t.Parallel()

	a := limitParameter(t, 1, "/sat/a", 100)
	b := limitParameter(t, 2, "/sat/b", 100)
	c := NewContainer(-1, "/sat")
	c.AddChild(a)
	c.AddChild(b)
	env := NewEnv(resolverOf(a, b, c), NewIDGenerator(), t0)

	if recs := process(t, c, env, nil); len(recs) != 0 {
		t.Fatal("container without contributing children must stay NOT_APPLICABLE")
	}

	process(t, a, env, sample("/sat/a", t0, 10))
	recs := process(t, c, env, nil)
	if len(recs) != 1 || c.AlarmState() != models.AlarmNominal {
		t.Fatalf("expected NOMINAL record, got %d records and %s", len(recs), c.AlarmState())
	}

	process(t, b, env, sample("/sat/b", t0, 500))
	recs = process(t, c, env, nil)
	se, ok := recs[0].(*models.SystemEntity)
	if !ok || se.AlarmState != models.AlarmWarning || se.Type != models.EntityContainer || se.ExternalID != -1 {
		t.Fatalf("unexpected record %+v", recs[0])
	}

	// unchanged aggregate emits nothing
	process(t, a, env, sample("/sat/a", t0.Add(time.Second), 20))
	if recs := process(t, c, env, nil); len(recs) != 0 {
		t.Error("unchanged aggregate must not emit")
	}

	b.SetStatus(env, models.StatusIgnored)
	process(t, c, env, nil)
	if c.AlarmState() != models.AlarmNominal {
		t.Errorf("ignored child contributes: aggregate %s", c.AlarmState())
	}

	if _, err := c.Process(env, sample("/sat", t0, 1)); !errors.Is(err, ErrInputKind) {
		t.Errorf("expected ErrInputKind, got %v", err)
	}
}

type recordingVisitor struct {
	skip  models.Path
	trace []string
}

func (v *recordingVisitor) ShouldDescend(e EntityState) bool { return e.Path != v.skip }
func (v *recordingVisitor) StartVisit(e EntityState)         { v.trace = append(v.trace, "start "+e.Path.String()) }
func (v *recordingVisitor) OnVisit(e EntityState)            { v.trace = append(v.trace, "visit "+e.Path.String()) }
func (v *recordingVisitor) EndVisit(e EntityState)           { v.trace = append(v.trace, "end "+e.Path.String()) }

func TestContainerVisit(t *testing.T) {
	t.Parallel()

	root := NewContainer(-1, "/sat")
	power := NewContainer(-2, "/sat/power")
	obc := NewContainer(-3, "/sat/obc")
	v := limitParameter(t, 1, "/sat/power/v", 10)
	mode := limitParameter(t, 2, "/sat/obc/mode", 10)
	root.AddChild(power)
	root.AddChild(obc)
	power.AddChild(v)
	obc.AddChild(mode)

	rv := &recordingVisitor{skip: "/sat/obc"}
	root.Visit(rv)
	want := []string{
		"start /sat/power",
		"start /sat/power/v",
		"visit /sat/power/v",
		"end /sat/power/v",
		"end /sat/power",
	}
	if !slices.Equal(rv.trace, want) {
		t.Errorf("trace = %v, want %v", rv.trace, want)
	}
	if got := root.Children(); len(got) != 2 || got[0] != Processor(power) {
		t.Errorf("Children() = %v", got)
	}
}
