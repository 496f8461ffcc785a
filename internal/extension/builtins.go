// Telemon - Telemetry Monitoring and Control Processing Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemon

package extension

import (
	"fmt"
	"math"
	"strconv"

	"github.com/tomtom215/telemon/internal/expression"
)

// Builtins returns the provider of the extensions every registry carries.
//
// Calibrations: identity, scale (arg "factor"), offset (arg "offset"), abs,
// round (arg "digits"), bool_to_int.
// Checks: non_zero, finite.
func Builtins() Provider {
	return ProviderFunc("builtin", func(r *Registrar) {
		r.Calibration("identity", CalibratorFunc(func(v any, _ map[string]string, _ Context) (any, error) {
			return v, nil
		}))
		r.Calibration("scale", numericCalibration(func(f float64, args map[string]string) (float64, error) {
			factor, err := floatArg(args, "factor", 1)
			return f * factor, err
		}))
		r.Calibration("offset", numericCalibration(func(f float64, args map[string]string) (float64, error) {
			offset, err := floatArg(args, "offset", 0)
			return f + offset, err
		}))
		r.Calibration("abs", numericCalibration(func(f float64, _ map[string]string) (float64, error) {
			return math.Abs(f), nil
		}))
		r.Calibration("round", numericCalibration(func(f float64, args map[string]string) (float64, error) {
			digits, err := floatArg(args, "digits", 0)
			if err != nil {
				return 0, err
			}
			pow := math.Pow(10, digits)
			return math.Round(f*pow) / pow, nil
		}))
		r.Calibration("bool_to_int", CalibratorFunc(func(v any, _ map[string]string, _ Context) (any, error) {
			b, ok := v.(bool)
			if !ok {
				return nil, fmt.Errorf("bool_to_int: expected bool, got %T", v)
			}
			if b {
				return int64(1), nil
			}
			return int64(0), nil
		}))

		r.Check("non_zero", CheckerFunc(func(in CheckInput, _ Context) (bool, error) {
			f, ok := expression.ToFloat(in.Value)
			if !ok {
				return false, fmt.Errorf("non_zero: expected number, got %T", in.Value)
			}
			return f == 0, nil
		}))
		r.Check("finite", CheckerFunc(func(in CheckInput, _ Context) (bool, error) {
			f, ok := expression.ToFloat(in.Value)
			return !ok || math.IsNaN(f) || math.IsInf(f, 0), nil
		}))
	})
}

func numericCalibration(fn func(f float64, args map[string]string) (float64, error)) Calibrator {
	return CalibratorFunc(func(v any, args map[string]string, _ Context) (any, error) {
		f, ok := expression.ToFloat(v)
		if !ok {
			return nil, fmt.Errorf("expected number, got %T", v)
		}
		return fn(f, args)
	})
}

func floatArg(args map[string]string, name string, def float64) (float64, error) {
	s, ok := args[name]
	if !ok {
		return def, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("argument %q: %w", name, err)
	}
	return f, nil
}
