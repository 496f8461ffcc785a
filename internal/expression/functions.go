// Telemon - Telemetry Monitoring and Control Processing Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemon

package expression

import (
	"fmt"
	"math"
	"strconv"

	"github.com/casbin/govaluate"
)

var builtinFunctions = map[string]govaluate.ExpressionFunction{
	"abs":   unary(math.Abs),
	"sqrt":  unary(math.Sqrt),
	"floor": unary(math.Floor),
	"ceil":  unary(math.Ceil),
	"round": unary(math.Round),
	"log10": unary(math.Log10),
	"ln":    unary(math.Log),
	"exp":   unary(math.Exp),
	"sin":   unary(math.Sin),
	"cos":   unary(math.Cos),
	"pow": func(args ...interface{}) (interface{}, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("pow expects 2 arguments, got %d", len(args))
		}
		base, ok1 := ToFloat(args[0])
		exponent, ok2 := ToFloat(args[1])
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("pow expects numeric arguments")
		}
		return math.Pow(base, exponent), nil
	},
	"min": fold(math.Min),
	"max": fold(math.Max),
}

func unary(fn func(float64) float64) govaluate.ExpressionFunction {
	return func(args ...interface{}) (interface{}, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("expected 1 argument, got %d", len(args))
		}
		f, ok := ToFloat(args[0])
		if !ok {
			return nil, fmt.Errorf("expected a numeric argument, got %T", args[0])
		}
		return fn(f), nil
	}
}

func fold(fn func(float64, float64) float64) govaluate.ExpressionFunction {
	return func(args ...interface{}) (interface{}, error) {
		if len(args) == 0 {
			return nil, fmt.Errorf("expected at least 1 argument")
		}
		acc, ok := ToFloat(args[0])
		if !ok {
			return nil, fmt.Errorf("expected numeric arguments, got %T", args[0])
		}
		for _, a := range args[1:] {
			f, ok := ToFloat(a)
			if !ok {
				return nil, fmt.Errorf("expected numeric arguments, got %T", a)
			}
			acc = fn(acc, f)
		}
		return acc, nil
	}
}

// ToFloat converts numeric values, booleans and numeric strings to float64.
func ToFloat(v any) (float64, bool) {
	switch n := normalize(v).(type) {
	case float64:
		return n, true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// ToInt converts a value to int64, truncating fractional parts.
func ToInt(v any) (int64, bool) {
	if n, ok := v.(int64); ok {
		return n, true
	}
	f, ok := ToFloat(v)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int64(f), true
}
