// Telemon - Telemetry Monitoring and Control Processing Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemon

package models

import (
	"errors"
	"fmt"
	"strings"
)

// PathSeparator separates the segments of a Path.
const PathSeparator = "/"

// ErrInvalidPath is returned when a string cannot be parsed as a Path.
var ErrInvalidPath = errors.New("invalid entity path")

// Path is the canonical address of a system entity: "/" followed by one or
// more non-empty segments joined by "/". The zero value is the empty path,
// the virtual parent of every top-level entity.
type Path string

// ParsePath validates and canonicalizes s. A leading separator is optional,
// a trailing one is tolerated, empty inner segments are rejected.
func ParsePath(s string) (Path, error) {
	trimmed := strings.TrimSpace(s)
	trimmed = strings.TrimPrefix(trimmed, PathSeparator)
	trimmed = strings.TrimSuffix(trimmed, PathSeparator)
	if trimmed == "" {
		return "", fmt.Errorf("%w: %q is empty", ErrInvalidPath, s)
	}
	segs := strings.Split(trimmed, PathSeparator)
	for _, seg := range segs {
		if seg == "" {
			return "", fmt.Errorf("%w: %q has an empty segment", ErrInvalidPath, s)
		}
		// brackets delimit path variables inside expressions
		if strings.ContainsAny(seg, "[]") {
			return "", fmt.Errorf("%w: %q contains a bracket", ErrInvalidPath, s)
		}
	}
	return Path(PathSeparator + strings.Join(segs, PathSeparator)), nil
}

// MustParsePath is ParsePath for static paths. It panics on error.
func MustParsePath(s string) Path {
	p, err := ParsePath(s)
	if err != nil {
		panic(err)
	}
	return p
}

// String returns the canonical form of the path.
func (p Path) String() string {
	return string(p)
}

// IsEmpty reports whether p is the empty path.
func (p Path) IsEmpty() bool {
	return p == ""
}

// Segments returns the path segments in order.
func (p Path) Segments() []string {
	if p.IsEmpty() {
		return nil
	}
	return strings.Split(strings.TrimPrefix(string(p), PathSeparator), PathSeparator)
}

// Depth returns the number of segments.
func (p Path) Depth() int {
	return strings.Count(string(p), PathSeparator)
}

// Name returns the last segment.
func (p Path) Name() string {
	idx := strings.LastIndex(string(p), PathSeparator)
	return string(p)[idx+1:]
}

// Parent returns the parent path. The parent of a top-level path is the
// empty path.
func (p Path) Parent() Path {
	idx := strings.LastIndex(string(p), PathSeparator)
	if idx <= 0 {
		return ""
	}
	return p[:idx]
}

// Append returns the child path p/segment.
func (p Path) Append(segment string) Path {
	return Path(string(p) + PathSeparator + segment)
}

// Ancestors returns every proper ancestor of p, from the top-level segment
// down to the direct parent.
func (p Path) Ancestors() []Path {
	segs := p.Segments()
	if len(segs) < 2 {
		return nil
	}
	out := make([]Path, 0, len(segs)-1)
	var cur Path
	for _, seg := range segs[:len(segs)-1] {
		cur = cur.Append(seg)
		out = append(out, cur)
	}
	return out
}

// IsDescendantOf reports whether p equals ancestor or lies below it.
// Every path descends from the empty path.
func (p Path) IsDescendantOf(ancestor Path) bool {
	if ancestor.IsEmpty() || p == ancestor {
		return true
	}
	return strings.HasPrefix(string(p), string(ancestor)+PathSeparator)
}
