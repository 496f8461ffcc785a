// Telemon - Telemetry Monitoring and Control Processing Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemon

package processor

import (
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/tomtom215/telemon/internal/definition"
	"github.com/tomtom215/telemon/internal/expression"
	"github.com/tomtom215/telemon/internal/extension"
	"github.com/tomtom215/telemon/internal/models"
)

// violation reports whether a checked value breaks a rule. previous is the
// value checked at the previous generation time, nil on the first sample.
type violation interface {
	violated(c *check, v, previous any, ctx *evalContext) (bool, error)
}

// check is a compiled alarm rule plus its debounce state.
type check struct {
	name            string
	kind            definition.CheckKind
	severity        models.AlarmState
	numViolations   int
	rawValueChecked bool
	applicability   *expression.Expression
	rule            violation

	violations int
	current    any
	currentGen time.Time
	previous   any
	hasCurrent bool
}

func compileCheck(def *definition.CheckDefinition, opts Options) (*check, error) {
	applicability, err := def.Applicability.Compile()
	if err != nil {
		return nil, fmt.Errorf("check %s applicability: %w", def.Name, err)
	}
	c := &check{
		name:            def.Name,
		kind:            def.Kind,
		severity:        def.EffectiveSeverity(),
		numViolations:   def.EffectiveViolations(),
		rawValueChecked: def.RawValueChecked,
		applicability:   applicability,
	}

	switch def.Kind {
	case definition.CheckLimit:
		c.rule = limitRule{low: def.Low, high: def.High}
	case definition.CheckExpected:
		c.rule = expectedRule(slices.Clone(def.Values))
	case definition.CheckDelta:
		c.rule = deltaRule{low: def.Low, high: def.High, absolute: def.Absolute}
	case definition.CheckExpression:
		expr, err := def.Expression.Compile()
		if err != nil {
			return nil, fmt.Errorf("check %s: %w", def.Name, err)
		}
		c.rule = expressionRule{expr: expr}
	case definition.CheckExternal:
		ext := &externalRule{name: def.Function, args: def.Args, registry: opts.registry()}
		fn, err := ext.registry.Checker(def.Function)
		if err != nil && !opts.AllowUnresolved {
			return nil, fmt.Errorf("check %s: %w", def.Name, err)
		}
		ext.fn = fn
		c.rule = ext
	default:
		return nil, fmt.Errorf("check %s: unknown kind %q", def.Name, def.Kind)
	}
	return c, nil
}

func (c *check) references() []models.Path {
	var refs []models.Path
	if c.applicability != nil {
		refs = append(refs, c.applicability.References()...)
	}
	if e, ok := c.rule.(expressionRule); ok {
		refs = append(refs, e.expr.References()...)
	}
	return refs
}

// evaluate returns the state this check contributes. A check that is not
// applicable contributes NOT_APPLICABLE and keeps its debounce counter. On a
// reevaluation of the same sample the counter only moves from zero, so a
// recompute never counts as a new consecutive violation.
func (c *check) evaluate(v any, gen time.Time, reevaluation bool, ctx *evalContext) (models.AlarmState, error) {
	if c.applicability != nil {
		ok, err := c.applicability.EvaluateBool(ctx, map[string]any{expression.LocalInput: v})
		if err != nil {
			return models.AlarmError, fmt.Errorf("%w: %s applicability: %w", ErrCheck, c.name, err)
		}
		if !ok {
			return models.AlarmNotApplicable, nil
		}
	}

	if !c.hasCurrent || !gen.Equal(c.currentGen) {
		if c.hasCurrent {
			c.previous = c.current
		}
		c.current, c.currentGen, c.hasCurrent = v, gen, true
	}

	violated, err := c.rule.violated(c, v, c.previous, ctx)
	if err != nil {
		return models.AlarmError, fmt.Errorf("%w: %s: %w", ErrCheck, c.name, err)
	}
	if !violated {
		c.violations = 0
		return models.AlarmNominal, nil
	}
	if !reevaluation || c.violations == 0 {
		c.violations++
	}
	if c.violations >= c.numViolations {
		return c.severity, nil
	}
	return models.AlarmViolated, nil
}

type limitRule struct {
	low, high *float64
}

func (r limitRule) violated(_ *check, v, _ any, _ *evalContext) (bool, error) {
	x, err := numeric(v)
	if err != nil {
		return false, err
	}
	return (r.low != nil && x < *r.low) || (r.high != nil && x > *r.high), nil
}

// expectedRule is violated when the value is not one of the listed values.
type expectedRule []string

func (r expectedRule) violated(_ *check, v, _ any, _ *evalContext) (bool, error) {
	return !slices.Contains(r, fmt.Sprint(v)), nil
}

// deltaRule compares the change since the previous sample against [low, high].
// The first sample only primes the rule.
type deltaRule struct {
	low, high *float64
	absolute  bool
}

func (r deltaRule) violated(_ *check, v, previous any, _ *evalContext) (bool, error) {
	x, err := numeric(v)
	if err != nil {
		return false, err
	}
	if previous == nil {
		return false, nil
	}
	prev, err := numeric(previous)
	if err != nil {
		return false, err
	}
	delta := x - prev
	if r.absolute {
		delta = math.Abs(delta)
	}
	return (r.low != nil && delta < *r.low) || (r.high != nil && delta > *r.high), nil
}

// expressionRule is violated when the expression is true. previous falls
// back to the checked value on the first sample.
type expressionRule struct {
	expr *expression.Expression
}

func (r expressionRule) violated(_ *check, v, previous any, ctx *evalContext) (bool, error) {
	if previous == nil {
		previous = v
	}
	return r.expr.EvaluateBool(ctx, map[string]any{
		expression.LocalInput:    v,
		expression.LocalPrevious: previous,
	})
}

type externalRule struct {
	name     string
	args     map[string]string
	registry *extension.Registry
	fn       extension.Checker
}

func (r *externalRule) violated(c *check, v, previous any, ctx *evalContext) (violated bool, err error) {
	fn := r.fn
	if fn == nil {
		if fn, err = r.registry.Checker(r.name); err != nil {
			return false, err
		}
	}
	defer func() {
		if rec := recover(); rec != nil {
			violated, err = false, fmt.Errorf("%w: check %q: %v", ErrExtensionPanic, r.name, rec)
		}
	}()
	return fn.Check(extension.CheckInput{
		Value:          v,
		Previous:       previous,
		GenerationTime: c.currentGen,
		Violations:     c.violations,
		Args:           r.args,
	}, ctx)
}
