// Telemon - Telemetry Monitoring and Control Processing Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemon

package processor

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strconv"

	"github.com/tomtom215/telemon/internal/definition"
	"github.com/tomtom215/telemon/internal/expression"
	"github.com/tomtom215/telemon/internal/extension"
	"github.com/tomtom215/telemon/internal/models"
)

type calibrator interface {
	calibrate(v any, ctx *evalContext) (any, error)
}

type calibration struct {
	kind          definition.CalibrationKind
	applicability *expression.Expression
	impl          calibrator
}

func compileCalibration(def *definition.CalibrationDefinition, opts Options) (*calibration, error) {
	applicability, err := def.Applicability.Compile()
	if err != nil {
		return nil, fmt.Errorf("applicability: %w", err)
	}
	c := &calibration{kind: def.Kind, applicability: applicability}

	switch def.Kind {
	case definition.CalibrationXY:
		points := slices.Clone(def.Points)
		slices.SortStableFunc(points, func(a, b definition.XYPoint) int { return cmp.Compare(a.X, b.X) })
		c.impl = xyCalibration{points: points, extrapolate: def.Extrapolate}
	case definition.CalibrationPolynomial:
		c.impl = polynomialCalibration(slices.Clone(def.Coefficients))
	case definition.CalibrationLog:
		c.impl = logCalibration(slices.Clone(def.Coefficients))
	case definition.CalibrationEnum:
		m := make(map[int64]string, len(def.Entries))
		for _, e := range def.Entries {
			m[e.Input] = e.Value
		}
		c.impl = enumCalibration{entries: m, fallback: def.Default}
	case definition.CalibrationInvertedEnum:
		m := make(map[string]int64, len(def.Entries))
		for _, e := range def.Entries {
			if _, dup := m[e.Value]; !dup {
				m[e.Value] = e.Input
			}
		}
		c.impl = invertedEnumCalibration(m)
	case definition.CalibrationRangeEnum:
		c.impl = rangeEnumCalibration{ranges: slices.Clone(def.Ranges), fallback: def.Default}
	case definition.CalibrationExpression:
		expr, err := def.Expression.Compile()
		if err != nil {
			return nil, err
		}
		c.impl = expressionCalibration{expr: expr}
	case definition.CalibrationExternal:
		ext := &externalCalibration{name: def.Function, args: def.Args, registry: opts.registry()}
		fn, err := ext.registry.Calibrator(def.Function)
		if err != nil && !opts.AllowUnresolved {
			return nil, err
		}
		ext.fn = fn
		c.impl = ext
	default:
		return nil, fmt.Errorf("unknown calibration kind %q", def.Kind)
	}
	return c, nil
}

func (c *calibration) references() []models.Path {
	var refs []models.Path
	if c.applicability != nil {
		refs = append(refs, c.applicability.References()...)
	}
	if e, ok := c.impl.(expressionCalibration); ok {
		refs = append(refs, e.expr.References()...)
	}
	return refs
}

// calibrate runs the first applicable calibration. Without calibrations the
// value passes through unchanged.
func calibrate(cals []*calibration, v any, ctx *evalContext) (any, error) {
	if v == nil || len(cals) == 0 {
		return v, nil
	}
	locals := map[string]any{expression.LocalInput: v}
	for _, c := range cals {
		if c.applicability != nil {
			ok, err := c.applicability.EvaluateBool(ctx, locals)
			if err != nil {
				return nil, fmt.Errorf("%w: %s applicability: %w", ErrCalibration, c.kind, err)
			}
			if !ok {
				continue
			}
		}
		out, err := c.impl.calibrate(v, ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrCalibration, c.kind, err)
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: no applicable calibration", ErrCalibration)
}

func numeric(v any) (float64, error) {
	f, ok := expression.ToFloat(v)
	if !ok {
		return 0, fmt.Errorf("value %v (%T) is not numeric", v, v)
	}
	return f, nil
}

type xyCalibration struct {
	points      []definition.XYPoint
	extrapolate bool
}

func (c xyCalibration) calibrate(v any, _ *evalContext) (any, error) {
	x, err := numeric(v)
	if err != nil {
		return nil, err
	}
	pts := c.points
	n := len(pts)
	switch {
	case x < pts[0].X:
		if !c.extrapolate {
			return nil, fmt.Errorf("%v below curve start %v", x, pts[0].X)
		}
		return interpolate(pts[0], pts[1], x), nil
	case x > pts[n-1].X:
		if !c.extrapolate {
			return nil, fmt.Errorf("%v beyond curve end %v", x, pts[n-1].X)
		}
		return interpolate(pts[n-2], pts[n-1], x), nil
	}
	i, found := slices.BinarySearchFunc(pts, x, func(p definition.XYPoint, x float64) int { return cmp.Compare(p.X, x) })
	if found {
		return pts[i].Y, nil
	}
	return interpolate(pts[i-1], pts[i], x), nil
}

func interpolate(p0, p1 definition.XYPoint, x float64) float64 {
	if p1.X == p0.X {
		return p0.Y
	}
	return p0.Y + (x-p0.X)*(p1.Y-p0.Y)/(p1.X-p0.X)
}

// polynomialCalibration computes a0 + a1*x + a2*x^2 + ...
type polynomialCalibration []float64

func (c polynomialCalibration) calibrate(v any, _ *evalContext) (any, error) {
	x, err := numeric(v)
	if err != nil {
		return nil, err
	}
	out := 0.0
	for i := len(c) - 1; i >= 0; i-- {
		out = out*x + c[i]
	}
	return out, nil
}

// logCalibration computes 1 / (a0 + a1*ln(x) + a2*ln(x)^2 + ...)
type logCalibration []float64

func (c logCalibration) calibrate(v any, _ *evalContext) (any, error) {
	x, err := numeric(v)
	if err != nil {
		return nil, err
	}
	if x <= 0 {
		return nil, fmt.Errorf("log calibration undefined for %v", x)
	}
	ln := math.Log(x)
	den := 0.0
	for i := len(c) - 1; i >= 0; i-- {
		den = den*ln + c[i]
	}
	if den == 0 {
		return nil, fmt.Errorf("log calibration divides by zero at %v", x)
	}
	return 1 / den, nil
}

type enumCalibration struct {
	entries  map[int64]string
	fallback *string
}

func (c enumCalibration) calibrate(v any, _ *evalContext) (any, error) {
	n, ok := expression.ToInt(v)
	if !ok {
		return nil, fmt.Errorf("value %v (%T) is not an integer", v, v)
	}
	if s, ok := c.entries[n]; ok {
		return s, nil
	}
	if c.fallback != nil {
		return *c.fallback, nil
	}
	return nil, fmt.Errorf("no enumeration entry for %d", n)
}

type invertedEnumCalibration map[string]int64

func (c invertedEnumCalibration) calibrate(v any, _ *evalContext) (any, error) {
	s := fmt.Sprint(v)
	if n, ok := c[s]; ok {
		return n, nil
	}
	return nil, fmt.Errorf("no enumeration entry for %q", s)
}

type rangeEnumCalibration struct {
	ranges   []definition.RangeEntry
	fallback *string
}

func (c rangeEnumCalibration) calibrate(v any, _ *evalContext) (any, error) {
	x, err := numeric(v)
	if err != nil {
		return nil, err
	}
	for _, r := range c.ranges {
		if x >= r.Min && x < r.Max {
			return r.Value, nil
		}
	}
	if c.fallback != nil {
		return *c.fallback, nil
	}
	return nil, fmt.Errorf("no range contains %s", strconv.FormatFloat(x, 'g', -1, 64))
}

type expressionCalibration struct {
	expr *expression.Expression
}

func (c expressionCalibration) calibrate(v any, ctx *evalContext) (any, error) {
	return c.expr.Evaluate(ctx, map[string]any{expression.LocalInput: v})
}

// externalCalibration calls a registered extension. fn is nil when the name
// was unknown at build time; it is then looked up on every use.
type externalCalibration struct {
	name     string
	args     map[string]string
	registry *extension.Registry
	fn       extension.Calibrator
}

func (c *externalCalibration) calibrate(v any, ctx *evalContext) (out any, err error) {
	fn := c.fn
	if fn == nil {
		if fn, err = c.registry.Calibrator(c.name); err != nil {
			return nil, err
		}
	}
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("%w: calibration %q: %v", ErrExtensionPanic, c.name, r)
		}
	}()
	return fn.Calibrate(v, c.args, ctx)
}
