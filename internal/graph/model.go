// Telemon - Telemetry Monitoring and Control Processing Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemon

// Package graph builds the entity hierarchy and the dependency graph of the
// processing model, and plans the propagation of updates through it.
//
// Vertices live in an arena indexed by declaration order and edges are index
// pairs. The graph is immutable after Build; only the processors it holds
// carry mutable state.
package graph

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/tomtom215/telemon/internal/models"
	"github.com/tomtom215/telemon/internal/processor"
)

var (
	// ErrCycle is matched by every *CycleError.
	ErrCycle = errors.New("dependency cycle")

	// ErrUnknownReference is matched by every *ReferenceError.
	ErrUnknownReference = errors.New("unknown entity reference")

	// ErrUnknownEntity is returned when an input addresses no entity.
	ErrUnknownEntity = errors.New("unknown entity")
)

// CycleError names the members of a dependency cycle.
type CycleError struct {
	Members []models.Path
}

func (e *CycleError) Error() string {
	parts := make([]string, 0, len(e.Members)+1)
	for _, m := range e.Members {
		parts = append(parts, m.String())
	}
	if len(e.Members) > 0 {
		parts = append(parts, e.Members[0].String())
	}
	return fmt.Sprintf("%s: %s", ErrCycle, strings.Join(parts, " -> "))
}

// Is makes errors.Is(err, ErrCycle) match.
func (e *CycleError) Is(target error) bool { return target == ErrCycle }

// ReferenceError reports an expression or trigger that points to an entity
// that does not exist or cannot be used there.
type ReferenceError struct {
	From   models.Path
	To     models.Path
	Reason string
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("%s: %s references %s: %s", ErrUnknownReference, e.From, e.To, e.Reason)
}

// Is makes errors.Is(err, ErrUnknownReference) match.
func (e *ReferenceError) Is(target error) bool { return target == ErrUnknownReference }

// EdgeKind tells why two vertices are connected.
type EdgeKind uint8

const (
	// EdgeValue connects a referenced entity to the entity reading its value.
	EdgeValue EdgeKind = iota
	// EdgeTrigger connects a parameter to the event it raises.
	EdgeTrigger
	// EdgeContainment connects an entity to its container.
	EdgeContainment
	// EdgeReport connects an activity to a parameter its reports feed.
	EdgeReport
)

func (k EdgeKind) String() string {
	switch k {
	case EdgeValue:
		return "value"
	case EdgeTrigger:
		return "trigger"
	case EdgeContainment:
		return "containment"
	case EdgeReport:
		return "report"
	default:
		return fmt.Sprintf("EdgeKind(%d)", k)
	}
}

// Edge goes from Source, the entity that changes, to Destination, the
// entity that must be recomputed. Both are vertex indices.
type Edge struct {
	Source      int
	Destination int
	Kind        EdgeKind
}

// Vertex is one entity of the model.
type Vertex struct {
	index      int
	orderingID int
	proc       processor.Processor
	parent     int // -1 for top-level entities
	in, out    []int

	affectedOnce sync.Once
	affected     []*Vertex
}

// Index is the declaration index of the vertex.
func (v *Vertex) Index() int { return v.index }

// OrderingID is the position of the vertex in the topological order.
func (v *Vertex) OrderingID() int { return v.orderingID }

// Processor returns the state machine of the entity.
func (v *Vertex) Processor() processor.Processor { return v.proc }

// Path is shorthand for Processor().Path().
func (v *Vertex) Path() models.Path { return v.proc.Path() }

// ID is shorthand for Processor().ID().
func (v *Vertex) ID() int64 { return v.proc.ID() }

// Model is the built entity hierarchy plus its dependency graph.
type Model struct {
	vertices []*Vertex // declaration order
	ordered  []*Vertex // topological order
	edges    []Edge
	byPath   map[models.Path]*Vertex
	byID     map[int64]*Vertex
	roots    []*processor.Container
}

// Len returns the number of vertices.
func (m *Model) Len() int { return len(m.vertices) }

// Vertices returns every vertex in ascending ordering id.
func (m *Model) Vertices() []*Vertex {
	out := make([]*Vertex, len(m.ordered))
	copy(out, m.ordered)
	return out
}

// Edges returns a copy of the edge list.
func (m *Model) Edges() []Edge {
	out := make([]Edge, len(m.edges))
	copy(out, m.edges)
	return out
}

// VertexByPath looks a vertex up by path.
func (m *Model) VertexByPath(path models.Path) (*Vertex, bool) {
	v, ok := m.byPath[path]
	return v, ok
}

// VertexByID looks a vertex up by external id.
func (m *Model) VertexByID(id int64) (*Vertex, bool) {
	v, ok := m.byID[id]
	return v, ok
}

// Roots returns the top-level containers in declaration order.
func (m *Model) Roots() []*processor.Container {
	out := make([]*processor.Container, len(m.roots))
	copy(out, m.roots)
	return out
}

// Children returns the direct children of the container at path.
func (m *Model) Children(path models.Path) ([]*Vertex, error) {
	v, ok := m.byPath[path]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEntity, path)
	}
	var out []*Vertex
	for _, idx := range v.in {
		child := m.vertices[idx]
		if child.parent == v.index {
			out = append(out, child)
		}
	}
	return out, nil
}

// Subtree returns the vertex at path followed by all its descendants, in
// declaration order.
func (m *Model) Subtree(path models.Path) ([]*Vertex, error) {
	root, ok := m.byPath[path]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEntity, path)
	}
	out := []*Vertex{root}
	for _, v := range m.vertices[root.index+1:] {
		if v.Path().IsDescendantOf(path) {
			out = append(out, v)
		}
	}
	return out, nil
}

// Resolve finds the vertex addressed by a raw input: by external id when it
// is set, by path otherwise.
func (m *Model) Resolve(in models.RawInput) (*Vertex, error) {
	id, path := in.Target()
	var (
		v  *Vertex
		ok bool
	)
	if id != 0 {
		v, ok = m.byID[id]
	} else {
		v, ok = m.byPath[path]
	}
	if !ok {
		return nil, fmt.Errorf("%w: id %d path %q", ErrUnknownEntity, id, path)
	}
	if v.proc.Type() != in.Kind() {
		return nil, fmt.Errorf("%w: %s is a %s, input is for a %s", processor.ErrInputKind, v.Path(), v.proc.Type(), in.Kind())
	}
	return v, nil
}

// Value implements processor.StateResolver.
func (m *Model) Value(path models.Path) (any, bool) {
	v, ok := m.byPath[path]
	if !ok {
		return nil, false
	}
	return v.proc.Value()
}

// GenerationTime implements processor.StateResolver.
func (m *Model) GenerationTime(path models.Path) (time.Time, bool) {
	v, ok := m.byPath[path]
	if !ok {
		return time.Time{}, false
	}
	t := v.proc.GenerationTime()
	return t, !t.IsZero()
}
