// Telemon - Telemetry Monitoring and Control Processing Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemon

// Package expression compiles and evaluates the arithmetic and boolean
// expressions used by processing definitions.
//
// An expression refers to other entities either through a symbol declared
// next to it:
//
//	expression: "a * 2"
//	symbols:
//	  a: /sat/power/bus_v
//
// or directly, with the path wrapped in brackets:
//
//	expression: "[/sat/power/bus_v] * 2"
//
// The names in LocalNames are not entity references. They are bound by the
// caller at evaluation time (for example the value a calibration is applied to).
package expression

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/casbin/govaluate"

	"github.com/tomtom215/telemon/internal/models"
)

// Local variable names bound at evaluation time.
const (
	// LocalInput is the value under evaluation (calibration input, checked value).
	LocalInput = "input"
	// LocalPrevious is the previously checked value, when one exists.
	LocalPrevious = "previous"
)

// LocalNames lists the variables that never resolve to entities.
var LocalNames = []string{LocalInput, LocalPrevious}

var (
	// ErrCompile is returned when an expression cannot be parsed.
	ErrCompile = errors.New("expression compile error")

	// ErrUnboundVariable is returned when a variable is neither a symbol,
	// a bracketed path nor a local name.
	ErrUnboundVariable = errors.New("unbound expression variable")

	// ErrMissingValue is returned when a referenced entity has no value yet.
	ErrMissingValue = errors.New("referenced entity has no value")

	// ErrEvaluate is returned when evaluation fails.
	ErrEvaluate = errors.New("expression evaluation error")

	// ErrNotBoolean is returned by EvaluateBool when the result is not a boolean.
	ErrNotBoolean = errors.New("expression result is not a boolean")
)

// Resolver provides the current engineering value of an entity.
type Resolver interface {
	// Value returns the current value of the entity at path. ok is false when
	// the entity has no value yet.
	Value(path models.Path) (value any, ok bool)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(path models.Path) (any, bool)

// Value implements Resolver.
func (f ResolverFunc) Value(path models.Path) (any, bool) { return f(path) }

// Expression is a compiled, immutable expression. It is safe for concurrent use.
type Expression struct {
	text     string
	compiled *govaluate.EvaluableExpression
	bindings map[string]models.Path
	locals   []string
	refs     []models.Path
}

// Compile parses text and binds its variables. symbols maps local names to
// entity paths.
func Compile(text string, symbols map[string]string) (*Expression, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: empty expression", ErrCompile)
	}
	compiled, err := govaluate.NewEvaluableExpressionWithFunctions(text, builtinFunctions)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrCompile, text, err)
	}

	e := &Expression{
		text:     text,
		compiled: compiled,
		bindings: make(map[string]models.Path),
	}
	for _, name := range variables(compiled) {
		if _, seen := e.bindings[name]; seen || slices.Contains(e.locals, name) {
			continue
		}
		if slices.Contains(LocalNames, name) {
			e.locals = append(e.locals, name)
			continue
		}
		target, ok := symbols[name]
		if !ok {
			if !strings.HasPrefix(name, models.PathSeparator) {
				return nil, fmt.Errorf("%w: %q in %q", ErrUnboundVariable, name, text)
			}
			target = name
		}
		path, err := models.ParsePath(target)
		if err != nil {
			return nil, fmt.Errorf("%w: symbol %q: %v", ErrCompile, name, err)
		}
		e.bindings[name] = path
		if !slices.Contains(e.refs, path) {
			e.refs = append(e.refs, path)
		}
	}
	return e, nil
}

// MustCompile is Compile for static expressions. It panics on error.
func MustCompile(text string, symbols map[string]string) *Expression {
	e, err := Compile(text, symbols)
	if err != nil {
		panic(err)
	}
	return e
}

// String returns the source text.
func (e *Expression) String() string {
	return e.text
}

// References returns the referenced entity paths in order of first use.
func (e *Expression) References() []models.Path {
	return slices.Clone(e.refs)
}

// Evaluate computes the expression. locals supplies the values of the local
// names used by the expression.
func (e *Expression) Evaluate(r Resolver, locals map[string]any) (any, error) {
	params := make(map[string]interface{}, len(e.bindings)+len(e.locals))
	for name, path := range e.bindings {
		v, ok := r.Value(path)
		if !ok || v == nil {
			return nil, fmt.Errorf("%w: %s", ErrMissingValue, path)
		}
		params[name] = normalize(v)
	}
	for _, name := range e.locals {
		v, ok := locals[name]
		if !ok {
			return nil, fmt.Errorf("%w: local %q not supplied", ErrMissingValue, name)
		}
		params[name] = normalize(v)
	}

	result, err := e.compiled.Evaluate(params)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrEvaluate, e.text, err)
	}
	if f, ok := result.(float64); ok && (math.IsNaN(f) || math.IsInf(f, 0)) {
		return nil, fmt.Errorf("%w: %q produced %v", ErrEvaluate, e.text, f)
	}
	return result, nil
}

// EvaluateBool computes the expression and requires a boolean result.
func (e *Expression) EvaluateBool(r Resolver, locals map[string]any) (bool, error) {
	v, err := e.Evaluate(r, locals)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("%w: %q returned %T", ErrNotBoolean, e.text, v)
	}
	return b, nil
}

func variables(compiled *govaluate.EvaluableExpression) []string {
	var out []string
	for _, tok := range compiled.Tokens() {
		if tok.Kind != govaluate.VARIABLE {
			continue
		}
		if name, ok := tok.Value.(string); ok {
			out = append(out, name)
		}
	}
	return out
}

// normalize converts integer kinds to float64, the only numeric type the
// evaluator operates on.
func normalize(v any) any {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int8:
		return float64(n)
	case int16:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case uint:
		return float64(n)
	case uint8:
		return float64(n)
	case uint16:
		return float64(n)
	case uint32:
		return float64(n)
	case uint64:
		return float64(n)
	case float32:
		return float64(n)
	default:
		return v
	}
}
