// Telemon - Telemetry Monitoring and Control Processing Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemon

package graph

import (
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/tomtom215/telemon/internal/definition"
	"github.com/tomtom215/telemon/internal/expression"
	"github.com/tomtom215/telemon/internal/models"
	"github.com/tomtom215/telemon/internal/processor"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newEnv(m *Model) *processor.Env {
	return processor.NewEnv(m, processor.NewIDGenerator(), t0)
}

func sampleOp(t *testing.T, m *Model, path models.Path, at time.Time, v any) Operation {
	t.Helper()
	in := models.ParameterSample{Path: path, GenerationTime: at, ReceptionTime: at, Value: v}
	vx, err := m.Resolve(in)
	if err != nil {
		t.Fatalf("Resolve(%s): %v", path, err)
	}
	return Operation{Vertex: vx, Input: in}
}

func mustVertex(t *testing.T, m *Model, path models.Path) *Vertex {
	t.Helper()
	v, ok := m.VertexByPath(path)
	if !ok {
		t.Fatalf("no vertex at %s", path)
	}
	return v
}

// reachable is the reference closure used to check Affected.
func reachable(m *Model, from *Vertex) map[int]bool {
	seen := map[int]bool{}
	var walk func(i int)
	walk = func(i int) {
		for _, e := range m.edges {
			if e.Source == i && !seen[e.Destination] {
				seen[e.Destination] = true
				walk(e.Destination)
			}
		}
	}
	walk(from.index)
	delete(seen, from.index)
	return seen
}

func TestAffectedIsSuccessorClosure(t *testing.T) {
	t.Parallel()

	m := buildModel(t, spacecraft())
	for _, v := range m.Vertices() {
		want := reachable(m, v)
		got := m.Affected(v)
		if len(got) != len(want) {
			t.Errorf("Affected(%s) has %d vertices, want %d", v.Path(), len(got), len(want))
			continue
		}
		for i, a := range got {
			if !want[a.index] {
				t.Errorf("Affected(%s) contains unreachable %s", v.Path(), a.Path())
			}
			if i > 0 && got[i-1].OrderingID() >= a.OrderingID() {
				t.Errorf("Affected(%s) not sorted at %d", v.Path(), i)
			}
		}
	}
}

func TestAffectedIsMemoized(t *testing.T) {
	t.Parallel()

	m := buildModel(t, spacecraft())
	v := mustVertex(t, m, "/sat/power/v")
	first := m.Affected(v)
	second := m.Affected(v)
	if len(first) == 0 || &first[0] != &second[0] {
		t.Error("Affected must return the memoized slice")
	}

	var paths []models.Path
	for _, a := range first {
		paths = append(paths, a.Path())
	}
	for _, want := range []models.Path{"/sat/power/p", "/sat/obc/mode", "/sat/power/overload", "/sat/power", "/sat/obc", "/sat"} {
		if !slices.Contains(paths, want) {
			t.Errorf("Affected(/sat/power/v) misses %s: %v", want, paths)
		}
	}
	if slices.Contains(paths, models.Path("/gs")) {
		t.Error("Affected(/sat/power/v) must not reach /gs")
	}
}

func TestPlan(t *testing.T) {
	t.Parallel()

	m := buildModel(t, spacecraft())
	ops := m.Plan([]Operation{
		sampleOp(t, m, "/sat/power/v", t0, 28.0),
		sampleOp(t, m, "/sat/power/i", t0, 2.0),
		sampleOp(t, m, "/sat/power/v", t0.Add(time.Second), 29.0),
	})

	count := map[models.Path]int{}
	for i, op := range ops {
		if !op.External() {
			count[op.Vertex.Path()]++
		}
		if i == 0 {
			continue
		}
		prev := ops[i-1]
		if prev.Vertex.OrderingID() > op.Vertex.OrderingID() {
			t.Errorf("op %d (%s) out of topological order", i, op.Vertex.Path())
		}
		if prev.Vertex == op.Vertex && !prev.External() && op.External() {
			t.Errorf("internal op before external op for %s", op.Vertex.Path())
		}
	}
	for path, n := range count {
		if n != 1 {
			t.Errorf("%s recomputed %d times", path, n)
		}
	}
	if count["/sat/power/p"] != 1 || count["/sat"] != 1 {
		t.Errorf("missing recomputes: %v", count)
	}
	if count["/gs"] != 0 {
		t.Error("unrelated subtree scheduled")
	}

	// both samples of /sat/power/v run in arrival order
	var values []any
	for _, op := range ops {
		if op.External() && op.Vertex.Path() == "/sat/power/v" {
			values = append(values, op.Input.(models.ParameterSample).Value)
		}
	}
	if !slices.Equal(values, []any{28.0, 29.0}) {
		t.Errorf("samples of /sat/power/v ran as %v", values)
	}
}

func TestPlanSkipsRecomputeOfExternalTargets(t *testing.T) {
	t.Parallel()

	defs := &definition.Definitions{Parameters: []definition.ParameterDefinition{
		raw(1, "/x/a"),
		{ID: 2, Location: "/x/b", Validity: &definition.ExpressionDefinition{Expression: "[/x/a] > 0"}},
	}}
	m := buildModel(t, defs)
	ops := m.Plan([]Operation{
		sampleOp(t, m, "/x/a", t0, 1),
		sampleOp(t, m, "/x/b", t0, 2),
	})
	for _, op := range ops {
		if op.Vertex.Path() == "/x/b" && !op.External() {
			t.Error("/x/b has an input and must not be recomputed")
		}
	}
	if len(ops) != 3 {
		t.Errorf("expected 2 inputs plus the /x recompute, got %d ops", len(ops))
	}
}

func TestExecuteDerivedValue(t *testing.T) {
	t.Parallel()

	defs := &definition.Definitions{Parameters: []definition.ParameterDefinition{
		raw(1, "/sys/a"),
		derived(2, "/sys/b", "[/sys/a] * 2"),
	}}
	m := buildModel(t, defs)
	env := newEnv(m)
	recs, err := m.Execute(env, m.Plan([]Operation{sampleOp(t, m, "/sys/a", t0, 10)}))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	var b *models.ParameterData
	for _, r := range recs {
		if pd, ok := r.(*models.ParameterData); ok && pd.Path == "/sys/b" {
			b = pd
		}
	}
	if b == nil {
		t.Fatalf("no record for /sys/b in %v", recs)
	}
	if got, ok := expression.ToFloat(b.EngValue); !ok || got != 20 {
		t.Errorf("/sys/b = %v, want 20", b.EngValue)
	}
	if !b.GenerationTime.Equal(t0) {
		t.Errorf("/sys/b generation time = %v, want the time of /sys/a", b.GenerationTime)
	}
	// a's record precedes b's
	if recs[0].EntityPath() != "/sys/a" {
		t.Errorf("first record is for %s", recs[0].EntityPath())
	}
}

func TestExecuteActivityFeedsLinkedParameters(t *testing.T) {
	t.Parallel()

	defs := &definition.Definitions{
		Parameters: []definition.ParameterDefinition{
			raw(1, "/sys/act_state"),
			raw(2, "/sys/act_result"),
			derived(3, "/sys/double", "[/sys/act_result] * 2"),
		},
		Activities: []definition.ActivityDefinition{{
			ID: 10, Location: "/sys/act",
			StateParameter: "/sys/act_state", ResultParameter: "/sys/act_result",
		}},
	}
	m := buildModel(t, defs)
	act := mustVertex(t, m, "/sys/act")
	for _, linked := range []models.Path{"/sys/act_state", "/sys/act_result"} {
		if !slices.Contains(m.Affected(act), mustVertex(t, m, linked)) {
			t.Errorf("%s is not affected by the activity", linked)
		}
	}

	tests := []struct {
		name       string
		report     models.ActivityReport
		wantState  string
		wantDouble float64
	}{
		{"pending without result", models.ActivityReport{Path: "/sys/act", State: models.ActivityPending}, "PENDING", 0},
		{"completed with result", models.ActivityReport{Path: "/sys/act", State: models.ActivityOK, Result: 21}, "OK", 42},
	}
	for i, tt := range tests {
		at := t0.Add(time.Duration(i) * time.Second)
		tt.report.GenerationTime = at
		vx, err := m.Resolve(tt.report)
		if err != nil {
			t.Fatalf("%s: Resolve: %v", tt.name, err)
		}
		recs, err := m.Execute(newEnv(m), m.Plan([]Operation{{Vertex: vx, Input: tt.report}}))
		if err != nil {
			t.Fatalf("%s: Execute: %v", tt.name, err)
		}
		got := map[models.Path]*models.ParameterData{}
		for _, r := range recs {
			if pd, ok := r.(*models.ParameterData); ok {
				got[pd.Path] = pd
			}
		}
		if st := got["/sys/act_state"]; st == nil || st.EngValue != tt.wantState || !st.GenerationTime.Equal(at) {
			t.Errorf("%s: state record = %+v, want %s at %v", tt.name, st, tt.wantState, at)
		}
		double := got["/sys/double"]
		if tt.wantDouble == 0 {
			if double != nil && double.Validity == models.ValidityValid {
				t.Errorf("%s: /sys/double is valid without a result: %+v", tt.name, double)
			}
			continue
		}
		if double == nil {
			t.Fatalf("%s: no record for /sys/double", tt.name)
		}
		if v, ok := expression.ToFloat(double.EngValue); !ok || v != tt.wantDouble {
			t.Errorf("%s: /sys/double = %v, want %v", tt.name, double.EngValue, tt.wantDouble)
		}
	}
}

func TestExecuteAlarmBubblesToContainers(t *testing.T) {
	t.Parallel()

	high := 100.0
	defs := &definition.Definitions{Parameters: []definition.ParameterDefinition{
		{
			ID: 1, Location: "/sat/thermal/p",
			Checks: []definition.CheckDefinition{{Name: "upper", Kind: definition.CheckLimit, High: &high, Severity: models.AlarmWarning}},
		},
		raw(2, "/sat/thermal/q"),
	}}
	m := buildModel(t, defs)
	env := newEnv(m)

	if _, err := m.Execute(env, m.Plan([]Operation{sampleOp(t, m, "/sat/thermal/p", t0, 150.0)})); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	for _, path := range []models.Path{"/sat/thermal", "/sat"} {
		c := mustVertex(t, m, path).Processor().(*processor.Container)
		if c.AlarmState() != models.AlarmWarning {
			t.Errorf("%s alarm = %s, want WARNING", path, c.AlarmState())
		}
	}

	recs, err := m.Execute(env, m.Plan([]Operation{sampleOp(t, m, "/sat/thermal/p", t0.Add(time.Second), 50.0)}))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	c := mustVertex(t, m, "/sat").Processor().(*processor.Container)
	if c.AlarmState() != models.AlarmNominal {
		t.Errorf("/sat alarm = %s after recovery, want NOMINAL", c.AlarmState())
	}
	var entities int
	for _, r := range recs {
		if r.RecordType() == models.RecordEntity {
			entities++
		}
	}
	if entities != 2 {
		t.Errorf("expected one entity record per container, got %d", entities)
	}
}

func TestExecuteReportsContractErrors(t *testing.T) {
	t.Parallel()

	m := buildModel(t, spacecraft())
	env := newEnv(m)
	container := mustVertex(t, m, "/sat/power")
	ops := []Operation{
		{Vertex: container, Input: models.ParameterSample{Path: "/sat/power", Value: 1}},
		sampleOp(t, m, "/sat/power/v", t0, 28.0),
	}
	recs, err := m.Execute(env, m.Plan(ops))
	if !errors.Is(err, processor.ErrInputKind) {
		t.Errorf("expected ErrInputKind, got %v", err)
	}
	if len(recs) == 0 {
		t.Error("the valid operation must still produce records")
	}
}

func TestResolve(t *testing.T) {
	t.Parallel()

	m := buildModel(t, spacecraft())
	tests := []struct {
		name    string
		in      models.RawInput
		want    models.Path
		wantErr error
	}{
		{"by path", models.ParameterSample{Path: "/sat/power/v"}, "/sat/power/v", nil},
		{"by id", models.ParameterSample{ID: 2, Path: "/ignored"}, "/sat/power/i", nil},
		{"event", models.EventOccurrence{ID: 10}, "/sat/obc/mode_change", nil},
		{"unknown path", models.ParameterSample{Path: "/nope"}, "", ErrUnknownEntity},
		{"unknown id", models.EventOccurrence{ID: 999}, "", ErrUnknownEntity},
		{"wrong kind", models.EventOccurrence{Path: "/sat/power/v"}, "", processor.ErrInputKind},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			v, err := m.Resolve(tt.in)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if v.Path() != tt.want {
				t.Errorf("resolved %s, want %s", v.Path(), tt.want)
			}
		})
	}
}

func TestSetStatusPropagates(t *testing.T) {
	t.Parallel()

	high := 100.0
	defs := &definition.Definitions{Parameters: []definition.ParameterDefinition{
		{
			ID: 1, Location: "/sat/thermal/p",
			Checks: []definition.CheckDefinition{{Name: "upper", Kind: definition.CheckLimit, High: &high}},
		},
		derived(2, "/gs/copy", "[/sat/thermal/p] + 1"),
	}}
	m := buildModel(t, defs)
	env := newEnv(m)
	if _, err := m.Execute(env, m.Plan([]Operation{sampleOp(t, m, "/sat/thermal/p", t0, 150.0)})); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	later := processor.NewEnv(m, processor.NewIDGenerator(), t0.Add(time.Minute))
	recs, err := m.SetStatus(later, "/sat", models.StatusDisabled)
	if err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	disabled := map[models.Path]bool{}
	for _, r := range recs {
		if se, ok := r.(*models.SystemEntity); ok && se.Status == models.StatusDisabled {
			disabled[se.Path] = true
		}
	}
	for _, path := range []models.Path{"/sat", "/sat/thermal", "/sat/thermal/p"} {
		if !disabled[path] {
			t.Errorf("%s not disabled", path)
		}
		if got := mustVertex(t, m, path).Processor().Status(); got != models.StatusDisabled {
			t.Errorf("%s status = %s", path, got)
		}
	}
	if _, ok := m.Value("/sat/thermal/p"); ok {
		t.Error("a disabled parameter must not expose a value")
	}
	if _, ok := mustVertex(t, m, "/gs/copy").Processor().Value(); ok {
		t.Error("dependent of a disabled parameter must lose its value")
	}
	if _, err := m.SetStatus(newEnv(m), "/nope", models.StatusEnabled); !errors.Is(err, ErrUnknownEntity) {
		t.Errorf("expected ErrUnknownEntity, got %v", err)
	}
}
