// Telemon - Telemetry Monitoring and Control Processing Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemon

package engine

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/telemon/internal/definition"
	"github.com/tomtom215/telemon/internal/expression"
	"github.com/tomtom215/telemon/internal/extension"
	"github.com/tomtom215/telemon/internal/graph"
	"github.com/tomtom215/telemon/internal/models"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() func() time.Time {
	return func() time.Time { return t0 }
}

func newStartedModel(t *testing.T, defs *definition.Definitions, opts ...Option) *Model {
	t.Helper()
	opts = append([]Option{WithRegistry(extension.New()), WithClock(fixedClock())}, opts...)
	m, err := New(defs, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(m.Stop)
	return m
}

func sample(path models.Path, at time.Time, v any) models.ParameterSample {
	return models.ParameterSample{Path: path, GenerationTime: at, ReceptionTime: at, Value: v}
}

func inject(t *testing.T, m *Model, inputs ...models.RawInput) []models.Record {
	t.Helper()
	recs, err := m.Inject(context.Background(), inputs)
	if err != nil {
		t.Fatalf("Inject: %v", err)
	}
	return recs
}

func parameterRecord(recs []models.Record, path models.Path) *models.ParameterData {
	for _, r := range recs {
		if pd, ok := r.(*models.ParameterData); ok && pd.Path == path {
			return pd
		}
	}
	return nil
}

func derivedDefs() *definition.Definitions {
	return &definition.Definitions{Parameters: []definition.ParameterDefinition{
		{ID: 1, Location: "/sys/a"},
		{ID: 2, Location: "/sys/b", Expression: &definition.ExpressionDefinition{Expression: "[/sys/a] * 2"}},
	}}
}

func thresholdDefs() *definition.Definitions {
	high := 100.0
	return &definition.Definitions{Parameters: []definition.ParameterDefinition{
		{
			ID: 1, Location: "/sat/thermal/p",
			Checks: []definition.CheckDefinition{{Name: "upper", Kind: definition.CheckLimit, High: &high, Severity: models.AlarmWarning}},
		},
		{ID: 2, Location: "/sat/thermal/q"},
	}}
}

func TestInjectDerivedValue(t *testing.T) {
	t.Parallel()

	m := newStartedModel(t, derivedDefs())
	recs := inject(t, m, sample("/sys/a", t0, 10))

	b := parameterRecord(recs, "/sys/b")
	if b == nil {
		t.Fatalf("no record for /sys/b")
	}
	if got, ok := expression.ToFloat(b.EngValue); !ok || got != 20 {
		t.Errorf("/sys/b = %v, want 20", b.EngValue)
	}

	state, err := m.State("/sys/b")
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if state.Parameter == nil || state.Parameter.InternalID != b.InternalID {
		t.Errorf("State does not reflect the last record: %+v", state)
	}
}

func TestDerivedValueFollowsUpstream(t *testing.T) {
	t.Parallel()

	gated := func() *definition.Definitions {
		return &definition.Definitions{Parameters: []definition.ParameterDefinition{
			{ID: 1, Location: "/sys/c"},
			{ID: 2, Location: "/sys/a", Validity: &definition.ExpressionDefinition{Expression: "[/sys/c] > 0"}},
			{ID: 3, Location: "/sys/b", Expression: &definition.ExpressionDefinition{Expression: "[/sys/a] * 2"}},
		}}
	}

	tests := []struct {
		name      string
		defs      *definition.Definitions
		setup     []models.RawInput
		change    []models.RawInput
		status    models.Status
		statusOf  models.Path
		wantValid models.Validity
		wantValue float64
	}{
		{
			name:      "upstream becomes invalid",
			defs:      gated(),
			setup:     []models.RawInput{sample("/sys/c", t0, 1), sample("/sys/a", t0, 10)},
			change:    []models.RawInput{sample("/sys/c", t0.Add(time.Second), -1)},
			wantValid: models.ValidityInvalid,
		},
		{
			name:      "resample at the same generation time",
			defs:      derivedDefs(),
			setup:     []models.RawInput{sample("/sys/a", t0, 10)},
			change:    []models.RawInput{sample("/sys/a", t0, 30)},
			wantValid: models.ValidityValid,
			wantValue: 60,
		},
		{
			name:      "upstream disabled",
			defs:      derivedDefs(),
			setup:     []models.RawInput{sample("/sys/a", t0, 10)},
			status:    models.StatusDisabled,
			statusOf:  "/sys/a",
			wantValid: models.ValidityInvalid,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			m := newStartedModel(t, tt.defs)
			if b := parameterRecord(inject(t, m, tt.setup...), "/sys/b"); b == nil || b.Validity != models.ValidityValid {
				t.Fatalf("setup: /sys/b = %+v", b)
			}

			var recs []models.Record
			if tt.change != nil {
				recs = inject(t, m, tt.change...)
			} else {
				var err error
				if recs, err = m.SetStatus(context.Background(), tt.statusOf, tt.status); err != nil {
					t.Fatalf("SetStatus: %v", err)
				}
			}

			b := parameterRecord(recs, "/sys/b")
			if b == nil {
				t.Fatalf("no record for /sys/b in %d records", len(recs))
			}
			if b.Validity != tt.wantValid {
				t.Errorf("/sys/b validity = %s, want %s", b.Validity, tt.wantValid)
			}
			if tt.wantValid == models.ValidityValid {
				if got, ok := expression.ToFloat(b.EngValue); !ok || got != tt.wantValue {
					t.Errorf("/sys/b = %v, want %v", b.EngValue, tt.wantValue)
				}
			}
			state, err := m.State("/sys/b")
			if err != nil {
				t.Fatalf("State: %v", err)
			}
			if state.Parameter == nil || state.Parameter.InternalID != b.InternalID {
				t.Errorf("State does not reflect the last record: %+v", state.Parameter)
			}
		})
	}
}

func TestInjectActivityReport(t *testing.T) {
	t.Parallel()

	limit := 5.0
	defs := &definition.Definitions{
		Parameters: []definition.ParameterDefinition{
			{ID: 1, Location: "/gs/tc/state", RawType: definition.TypeString},
			{
				ID: 2, Location: "/gs/tc/retries", RawType: definition.TypeReal,
				Checks: []definition.CheckDefinition{{Name: "retries", Kind: definition.CheckLimit, High: &limit, Severity: models.AlarmWarning}},
			},
		},
		Activities: []definition.ActivityDefinition{{
			ID: 3, Location: "/gs/tc/send",
			StateParameter: "/gs/tc/state", ResultParameter: "/gs/tc/retries",
		}},
	}
	m := newStartedModel(t, defs)

	recs := inject(t, m, models.ActivityReport{
		ID: 3, Occurrence: "tc-42", Stage: "ACCEPTANCE", State: models.ActivityTimeout,
		Result: 7, GenerationTime: t0,
	})
	if st := parameterRecord(recs, "/gs/tc/state"); st == nil || st.EngValue != "TIMEOUT" {
		t.Errorf("state parameter record = %+v", st)
	}
	retries := parameterRecord(recs, "/gs/tc/retries")
	if retries == nil || retries.AlarmState != models.AlarmWarning {
		t.Fatalf("result parameter record = %+v", retries)
	}

	state, err := m.State("/gs/tc/send")
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if state.Activity == nil || state.Activity.Occurrence != "tc-42" || state.Activity.Path != "/gs/tc/send" {
		t.Errorf("activity state = %+v", state.Activity)
	}
	if gs, err := m.State("/gs"); err != nil || gs.AlarmState != models.AlarmWarning {
		t.Errorf("container /gs = %+v, %v", gs, err)
	}
}

func TestInjectAlarmThreshold(t *testing.T) {
	t.Parallel()

	m := newStartedModel(t, thresholdDefs())
	recs := inject(t, m, sample("/sat/thermal/p", t0, 150.0))

	p := parameterRecord(recs, "/sat/thermal/p")
	if p == nil || p.AlarmState != models.AlarmWarning {
		t.Fatalf("expected WARNING parameter record, got %+v", p)
	}
	var alarm *models.AlarmParameterData
	for _, r := range recs {
		if a, ok := r.(*models.AlarmParameterData); ok {
			alarm = a
		}
	}
	if alarm == nil || alarm.CurrentAlarmState != models.AlarmWarning {
		t.Errorf("expected an alarm record, got %+v", alarm)
	}
	for _, path := range []models.Path{"/sat/thermal", "/sat"} {
		state, err := m.State(path)
		if err != nil {
			t.Fatalf("State(%s): %v", path, err)
		}
		if state.AlarmState != models.AlarmWarning {
			t.Errorf("%s alarm = %s, want WARNING", path, state.AlarmState)
		}
	}
}

func TestUnresolvedExtension(t *testing.T) {
	t.Parallel()

	defs := &definition.Definitions{Parameters: []definition.ParameterDefinition{
		{
			ID: 1, Location: "/sat/x",
			Calibrations: []definition.CalibrationDefinition{{Kind: definition.CalibrationExternal, Function: "unknown_fn"}},
		},
		{ID: 2, Location: "/sat/y"},
	}}

	if _, err := New(defs, WithRegistry(extension.New())); !errors.Is(err, extension.ErrUnknownFunction) {
		t.Fatalf("strict build: expected ErrUnknownFunction, got %v", err)
	}

	m := newStartedModel(t, defs, WithAllowUnresolved(true))
	recs, err := m.Inject(context.Background(), []models.RawInput{
		sample("/sat/x", t0, 1.0),
		sample("/sat/y", t0, 2.0),
	})
	if err != nil {
		t.Fatalf("per-item failures must not fail the batch: %v", err)
	}
	x := parameterRecord(recs, "/sat/x")
	if x == nil || x.Validity != models.ValidityError || x.EngValue != nil {
		t.Errorf("expected degraded record for /sat/x, got %+v", x)
	}
	y := parameterRecord(recs, "/sat/y")
	if y == nil || y.Validity != models.ValidityValid || y.EngValue != 2.0 {
		t.Errorf("expected /sat/y to be unaffected, got %+v", y)
	}
}

func TestNewRejectsCycles(t *testing.T) {
	t.Parallel()

	defs := &definition.Definitions{Parameters: []definition.ParameterDefinition{
		{ID: 1, Location: "/x/a", Expression: &definition.ExpressionDefinition{Expression: "[/x/b] + 1"}},
		{ID: 2, Location: "/x/b", Expression: &definition.ExpressionDefinition{Expression: "[/x/a] + 1"}},
	}}
	_, err := New(defs, WithRegistry(extension.New()))
	if !errors.Is(err, graph.ErrCycle) {
		t.Errorf("expected ErrCycle, got %v", err)
	}
}

func TestNewRejectsInvalidDefinitions(t *testing.T) {
	t.Parallel()

	defs := &definition.Definitions{Parameters: []definition.ParameterDefinition{{ID: 1, Location: "sys//a"}}}
	_, err := New(defs, WithRegistry(extension.New()))
	if !errors.Is(err, definition.ErrInvalidDefinitions) {
		t.Errorf("expected ErrInvalidDefinitions, got %v", err)
	}
}

func TestInjectLifecycle(t *testing.T) {
	t.Parallel()

	m, err := New(derivedDefs(), WithRegistry(extension.New()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()
	batch := []models.RawInput{sample("/sys/a", t0, 1)}

	if recs, err := m.Inject(ctx, nil); recs != nil || err != nil {
		t.Errorf("empty batch must return immediately, got %v, %v", recs, err)
	}
	if _, err := m.Inject(ctx, batch); !errors.Is(err, ErrNotStarted) {
		t.Errorf("expected ErrNotStarted, got %v", err)
	}
	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := m.Start(ctx); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("expected ErrAlreadyStarted, got %v", err)
	}
	if _, err := m.Inject(ctx, batch); err != nil {
		t.Errorf("Inject: %v", err)
	}
	m.Stop()
	m.Stop()
	if _, err := m.Inject(ctx, batch); !errors.Is(err, ErrStopped) {
		t.Errorf("expected ErrStopped, got %v", err)
	}
	if _, err := m.Subscribe(SubscriberFunc(func([]models.Record) {}), models.RecordFilter{}); !errors.Is(err, ErrStopped) {
		t.Errorf("expected ErrStopped from Subscribe, got %v", err)
	}
}

func TestInjectUnknownEntity(t *testing.T) {
	t.Parallel()

	m := newStartedModel(t, derivedDefs())
	recs, err := m.Inject(context.Background(), []models.RawInput{
		sample("/sys/missing", t0, 1),
		sample("/sys/a", t0, 4),
		models.ParameterSample{ID: 99, Value: 1},
	})
	if !errors.Is(err, ErrUnknownEntity) {
		t.Fatalf("expected ErrUnknownEntity, got %v", err)
	}
	if parameterRecord(recs, "/sys/b") == nil {
		t.Error("valid inputs of the batch must still apply")
	}
}

func TestInjectCanceledContext(t *testing.T) {
	t.Parallel()

	m := newStartedModel(t, derivedDefs())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// Either the batch is accepted and applied or the wait is abandoned;
	// both leave the model usable.
	_, err := m.Inject(ctx, []models.RawInput{sample("/sys/a", t0, 1)})
	if err != nil && !errors.Is(err, context.Canceled) {
		t.Errorf("unexpected error %v", err)
	}
	inject(t, m, sample("/sys/a", t0.Add(time.Second), 2))
}

func TestDeterministicOutput(t *testing.T) {
	t.Parallel()

	run := func() []byte {
		m := newStartedModel(t, thresholdDefs())
		var out []models.Record
		for i, v := range []float64{50, 150, 160, 20} {
			out = append(out, inject(t, m,
				sample("/sat/thermal/q", t0.Add(time.Duration(i)*time.Second), v),
				sample("/sat/thermal/p", t0.Add(time.Duration(i)*time.Second), v),
			)...)
		}
		b, err := models.MarshalRecords(out)
		if err != nil {
			t.Fatalf("MarshalRecords: %v", err)
		}
		return b
	}
	first, second := run(), run()
	if !bytes.Equal(first, second) {
		t.Errorf("two runs produced different output:\n%s\n%s", first, second)
	}
}

func TestStatusChanges(t *testing.T) {
	t.Parallel()

	m := newStartedModel(t, thresholdDefs())
	ctx := context.Background()
	inject(t, m, sample("/sat/thermal/p", t0, 150.0))

	recs, err := m.Disable(ctx, "/sat/thermal")
	if err != nil {
		t.Fatalf("Disable: %v", err)
	}
	if len(recs) == 0 {
		t.Fatal("Disable produced no records")
	}
	state, _ := m.State("/sat/thermal/p")
	if state.Status != models.StatusDisabled {
		t.Errorf("status = %s, want DISABLED", state.Status)
	}
	if root, _ := m.State("/sat"); root.AlarmState == models.AlarmWarning {
		t.Error("a disabled subtree must not contribute to its parent")
	}

	if _, err := m.Enable(ctx, "/sat/thermal"); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	if _, err := m.Ignore(ctx, "/sat/thermal/p"); err != nil {
		t.Fatalf("Ignore: %v", err)
	}
	state, _ = m.State("/sat/thermal/p")
	if state.Status != models.StatusIgnored || state.AlarmState != models.AlarmIgnored {
		t.Errorf("expected IGNORED, got %s/%s", state.Status, state.AlarmState)
	}

	if _, err := m.Disable(ctx, "/nope"); !errors.Is(err, ErrUnknownEntity) {
		t.Errorf("expected ErrUnknownEntity, got %v", err)
	}
}

func TestSnapshotAndLookup(t *testing.T) {
	t.Parallel()

	m := newStartedModel(t, thresholdDefs())
	var paths []models.Path
	for _, s := range m.Snapshot() {
		paths = append(paths, s.Path)
	}
	want := []models.Path{"/sat", "/sat/thermal", "/sat/thermal/p", "/sat/thermal/q"}
	if len(paths) != len(want) {
		t.Fatalf("Snapshot paths = %v, want %v", paths, want)
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Errorf("Snapshot[%d] = %s, want %s", i, paths[i], want[i])
		}
	}

	if s, err := m.StateByID(2); err != nil || s.Path != "/sat/thermal/q" {
		t.Errorf("StateByID(2) = %+v, %v", s, err)
	}
	if _, err := m.StateByID(404); !errors.Is(err, ErrUnknownEntity) {
		t.Errorf("expected ErrUnknownEntity, got %v", err)
	}
	if _, err := m.State("/nope"); !errors.Is(err, ErrUnknownEntity) {
		t.Errorf("expected ErrUnknownEntity, got %v", err)
	}
}

// memoryArchive records stored batches and reports preset last ids.
type memoryArchive struct {
	mu      sync.Mutex
	batches [][]models.Record
	last    map[models.RecordType]uint64
	err     error
}

func (a *memoryArchive) Store(_ context.Context, batch []models.Record) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.batches = append(a.batches, batch)
	return a.err
}

func (a *memoryArchive) LastIDs(context.Context) (map[models.RecordType]uint64, error) {
	return a.last, nil
}

func (a *memoryArchive) stored() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.batches)
}

func TestArchiveReceivesEveryBatch(t *testing.T) {
	t.Parallel()

	archive := &memoryArchive{last: map[models.RecordType]uint64{models.RecordParameter: 100}}
	m, err := New(derivedDefs(), WithRegistry(extension.New()), WithClock(fixedClock()), WithArchive(archive))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	recs := inject(t, m, sample("/sys/a", t0, 1))
	inject(t, m, sample("/sys/a", t0.Add(time.Second), 2))
	m.Stop()

	if got := archive.stored(); got != 2 {
		t.Errorf("archive stored %d batches, want 2", got)
	}
	if first := parameterRecord(recs, "/sys/a"); first == nil || first.InternalID != 101 {
		t.Errorf("ids must continue after the archived ones, got %+v", first)
	}
}

func TestArchiveFailureDoesNotFailInject(t *testing.T) {
	t.Parallel()

	archive := &memoryArchive{err: errors.New("disk full")}
	m := newStartedModel(t, derivedDefs(), WithArchive(archive))
	inject(t, m, sample("/sys/a", t0, 1))
}
