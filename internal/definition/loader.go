// Telemon - Telemetry Monitoring and Control Processing Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemon

package definition

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tomtom215/telemon/internal/expression"
	"github.com/tomtom215/telemon/internal/models"
	"github.com/tomtom215/telemon/internal/validation"
)

// ErrInvalidDefinitions is matched by every *DefinitionError.
var ErrInvalidDefinitions = errors.New("invalid processing definitions")

// DefinitionError lists every problem found in a set of definitions.
type DefinitionError struct {
	Problems []string
}

func (e *DefinitionError) Error() string {
	return fmt.Sprintf("%s: %s", ErrInvalidDefinitions, strings.Join(e.Problems, "; "))
}

// Is makes errors.Is(err, ErrInvalidDefinitions) match.
func (e *DefinitionError) Is(target error) bool {
	return target == ErrInvalidDefinitions
}

func (e *DefinitionError) add(format string, args ...any) {
	e.Problems = append(e.Problems, fmt.Sprintf(format, args...))
}

// Load reads and validates the definitions file at path.
func Load(path string) (*Definitions, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from trusted configuration
	if err != nil {
		return nil, fmt.Errorf("read definitions %s: %w", path, err)
	}
	defs, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("definitions %s: %w", path, err)
	}
	return defs, nil
}

// Parse decodes YAML definitions and validates them. Unknown keys are rejected.
func Parse(data []byte) (*Definitions, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var defs Definitions
	if err := dec.Decode(&defs); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: decode: %v", ErrInvalidDefinitions, err)
	}
	if err := defs.Validate(); err != nil {
		return nil, err
	}
	return &defs, nil
}

// Validate checks field constraints and cross-definition rules. It returns
// a *DefinitionError describing every problem found.
func (d *Definitions) Validate() error {
	problems := &DefinitionError{}

	if verr := validation.ValidateStruct(d); verr != nil {
		problems.Problems = append(problems.Problems, verr.Messages()...)
		// Structural errors make the semantic pass meaningless.
		return problems
	}

	ids := make(map[int64]string)
	locations := make(map[models.Path]models.EntityType)
	events := make(map[models.Path]bool)
	params := make(map[models.Path]*ParameterDefinition)

	register := func(id int64, loc string, kind models.EntityType) {
		path := models.MustParsePath(loc)
		if prev, dup := ids[id]; dup {
			problems.add("id %d used by both %s and %s", id, prev, path)
		}
		ids[id] = path.String()
		if _, dup := locations[path]; dup {
			problems.add("location %s declared twice", path)
		}
		locations[path] = kind
		if kind == models.EntityEvent {
			events[path] = true
		}
	}
	for i := range d.Parameters {
		register(d.Parameters[i].ID, d.Parameters[i].Location, models.EntityParameter)
		params[d.Parameters[i].Path()] = &d.Parameters[i]
	}
	for i := range d.Events {
		register(d.Events[i].ID, d.Events[i].Location, models.EntityEvent)
	}
	for i := range d.Activities {
		register(d.Activities[i].ID, d.Activities[i].Location, models.EntityActivity)
	}

	// A declared entity cannot also be the container of another one.
	for path := range locations {
		for _, anc := range path.Ancestors() {
			if kind, clash := locations[anc]; clash {
				problems.add("%s is a %s and cannot contain %s", anc, kind, path)
			}
		}
	}

	for i := range d.Parameters {
		validateParameter(&d.Parameters[i], events, problems)
	}
	for i := range d.Events {
		ev := &d.Events[i]
		checkExpression(problems, ev.Location, "condition", ev.Condition)
	}
	for i := range d.Activities {
		validateActivity(&d.Activities[i], params, problems)
	}

	if len(problems.Problems) > 0 {
		return problems
	}
	return nil
}

func validateParameter(p *ParameterDefinition, events map[models.Path]bool, problems *DefinitionError) {
	where := p.Location
	if !validValueTypes[p.RawType] {
		problems.add("%s: unknown raw_type %q", where, p.RawType)
	}
	if !validValueTypes[p.EngType] {
		problems.add("%s: unknown eng_type %q", where, p.EngType)
	}
	checkExpression(problems, where, "expression", p.Expression)
	checkExpression(problems, where, "validity", p.Validity)

	if dv := p.DefaultValue; dv != nil {
		target := p.EngType
		if dv.Type == DefaultRaw {
			target = p.RawType
		}
		switch {
		case dv.Value == nil:
			problems.add("%s: default_value needs a value", where)
		case p.Expression != nil:
			problems.add("%s: default_value is not allowed on a synthetic parameter", where)
		default:
			if _, err := target.Coerce(dv.Value); err != nil {
				problems.add("%s: default_value: %v", where, err)
			}
		}
	}

	for i := range p.Calibrations {
		c := &p.Calibrations[i]
		at := fmt.Sprintf("%s: calibration %d (%s)", where, i, c.Kind)
		checkExpression(problems, at, "applicability", c.Applicability)
		switch c.Kind {
		case CalibrationXY:
			if len(c.Points) < 2 {
				problems.add("%s: needs at least 2 points", at)
			}
		case CalibrationPolynomial:
			if len(c.Coefficients) == 0 {
				problems.add("%s: needs coefficients", at)
			}
		case CalibrationLog:
			if len(c.Coefficients) == 0 || len(c.Coefficients) > 6 {
				problems.add("%s: needs 1 to 6 coefficients", at)
			}
		case CalibrationEnum, CalibrationInvertedEnum:
			if len(c.Entries) == 0 {
				problems.add("%s: needs entries", at)
			}
		case CalibrationRangeEnum:
			if len(c.Ranges) == 0 {
				problems.add("%s: needs ranges", at)
			}
		case CalibrationExpression:
			if c.Expression == nil {
				problems.add("%s: needs an expression", at)
			}
			checkExpression(problems, at, "expression", c.Expression)
		}
	}

	names := make(map[string]bool)
	for i := range p.Checks {
		c := &p.Checks[i]
		at := fmt.Sprintf("%s: check %s", where, c.Name)
		if names[c.Name] {
			problems.add("%s: duplicate check name", at)
		}
		names[c.Name] = true
		switch c.Severity {
		case models.AlarmNotApplicable, models.AlarmWarning, models.AlarmAlarm, models.AlarmError:
		default:
			problems.add("%s: severity %s not allowed", at, c.Severity)
		}
		checkExpression(problems, at, "applicability", c.Applicability)
		switch c.Kind {
		case CheckLimit, CheckDelta:
			if c.Low == nil && c.High == nil {
				problems.add("%s: needs low and/or high", at)
			}
			if c.Low != nil && c.High != nil && *c.Low > *c.High {
				problems.add("%s: low is greater than high", at)
			}
		case CheckExpected:
			if len(c.Values) == 0 {
				problems.add("%s: needs values", at)
			}
		case CheckExpression:
			if c.Expression == nil {
				problems.add("%s: needs an expression", at)
			}
			checkExpression(problems, at, "expression", c.Expression)
		}
	}

	for _, tr := range p.Triggers {
		if !events[models.MustParsePath(tr.Event)] {
			problems.add("%s: trigger references %s which is not a declared event", where, tr.Event)
		}
	}
}

// checkExpression compiles e to surface syntax errors and unbound variables
// at load time.
func validateActivity(a *ActivityDefinition, params map[models.Path]*ParameterDefinition, problems *DefinitionError) {
	if a.StateParameter != "" && a.StateParameter == a.ResultParameter {
		problems.add("%s: state_parameter and result_parameter must differ", a.Location)
	}
	for _, path := range a.Linked() {
		p, ok := params[path]
		switch {
		case !ok:
			problems.add("%s: linked parameter %s is not declared", a.Location, path)
		case p.IsSynthetic():
			problems.add("%s: linked parameter %s is synthetic", a.Location, path)
		}
	}
	if a.StateParameter != "" {
		if p, ok := params[models.MustParsePath(a.StateParameter)]; ok && p.RawType != TypeAny && p.RawType != TypeString {
			problems.add("%s: state parameter %s needs raw_type %s", a.Location, a.StateParameter, TypeString)
		}
	}
}

func checkExpression(problems *DefinitionError, where, field string, e *ExpressionDefinition) {
	if e == nil {
		return
	}
	if _, err := expression.Compile(e.Expression, e.Symbols); err != nil {
		problems.add("%s: %s: %v", where, field, err)
	}
}

// Compile compiles an optional expression definition.
func (e *ExpressionDefinition) Compile() (*expression.Expression, error) {
	if e == nil {
		return nil, nil
	}
	return expression.Compile(e.Expression, e.Symbols)
}
