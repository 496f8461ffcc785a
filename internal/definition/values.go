// Telemon - Telemetry Monitoring and Control Processing Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemon

package definition

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/tomtom215/telemon/internal/expression"
)

// ValueType is the declared type of a raw or engineering value. The empty
// value accepts anything without conversion.
type ValueType string

const (
	TypeAny             ValueType = ""
	TypeReal            ValueType = "REAL"
	TypeSignedInteger   ValueType = "SIGNED_INTEGER"
	TypeUnsignedInteger ValueType = "UNSIGNED_INTEGER"
	TypeEnumerated      ValueType = "ENUMERATED"
	TypeBoolean         ValueType = "BOOLEAN"
	TypeString          ValueType = "CHARACTER_STRING"
)

var validValueTypes = map[ValueType]bool{
	TypeAny: true, TypeReal: true, TypeSignedInteger: true, TypeUnsignedInteger: true,
	TypeEnumerated: true, TypeBoolean: true, TypeString: true,
}

// ErrValueType is returned when a value cannot be converted to the declared type.
var ErrValueType = errors.New("value does not match declared type")

// Coerce converts v to the Go representation of the type: float64 for REAL,
// int64 for SIGNED_INTEGER and ENUMERATED, uint64 for UNSIGNED_INTEGER, bool
// and string. nil stays nil.
func (t ValueType) Coerce(v any) (any, error) {
	if v == nil || t == TypeAny {
		return v, nil
	}
	switch t {
	case TypeReal:
		if f, ok := expression.ToFloat(v); ok {
			return f, nil
		}
	case TypeSignedInteger, TypeEnumerated:
		if f, ok := expression.ToFloat(v); ok && f == math.Trunc(f) && !math.IsInf(f, 0) {
			return int64(f), nil
		}
	case TypeUnsignedInteger:
		if f, ok := expression.ToFloat(v); ok && f >= 0 && f == math.Trunc(f) && !math.IsInf(f, 0) {
			return uint64(f), nil
		}
	case TypeBoolean:
		switch b := v.(type) {
		case bool:
			return b, nil
		case string:
			if parsed, err := strconv.ParseBool(b); err == nil {
				return parsed, nil
			}
		default:
			if f, ok := expression.ToFloat(v); ok {
				return f != 0, nil
			}
		}
	case TypeString:
		switch s := v.(type) {
		case string:
			return s, nil
		case fmt.Stringer:
			return s.String(), nil
		default:
			return fmt.Sprint(v), nil
		}
	}
	return nil, fmt.Errorf("%w: %v (%T) is not %s", ErrValueType, v, v, t)
}
