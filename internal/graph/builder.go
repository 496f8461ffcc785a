// Telemon - Telemetry Monitoring and Control Processing Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemon

package graph

import (
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"time"

	"github.com/tomtom215/telemon/internal/definition"
	"github.com/tomtom215/telemon/internal/extension"
	"github.com/tomtom215/telemon/internal/logging"
	"github.com/tomtom215/telemon/internal/models"
	"github.com/tomtom215/telemon/internal/processor"
)

// Option configures Build.
type Option func(*processor.Options)

// WithRegistry resolves external functions against reg instead of the
// process-wide registry.
func WithRegistry(reg *extension.Registry) Option {
	return func(o *processor.Options) { o.Registry = reg }
}

// WithAllowUnresolved defers unknown external function names to first use.
func WithAllowUnresolved(allow bool) Option {
	return func(o *processor.Options) { o.AllowUnresolved = allow }
}

// WithAlarmLogInterval rate limits alarm transition logging per parameter.
func WithAlarmLogInterval(d time.Duration) Option {
	return func(o *processor.Options) { o.AlarmLogInterval = d }
}

type builder struct {
	m    *Model
	opts processor.Options
	seen map[[2]int]bool
	errs []error
}

// Build creates the processors of every definition, synthesizes the
// containers of the hierarchy, wires the dependency edges and assigns the
// topological ordering ids. It returns a *definition.DefinitionError, a
// *CycleError, a *ReferenceError (or several joined) or a processor
// construction error.
func Build(defs *definition.Definitions, opts ...Option) (*Model, error) {
	if defs == nil {
		defs = &definition.Definitions{}
	}
	if err := defs.Validate(); err != nil {
		return nil, err
	}
	b := &builder{
		m: &Model{
			byPath: make(map[models.Path]*Vertex),
			byID:   make(map[int64]*Vertex),
		},
		seen: make(map[[2]int]bool),
	}
	for _, opt := range opts {
		opt(&b.opts)
	}

	for i := range defs.Parameters {
		p, err := processor.NewParameter(&defs.Parameters[i], b.opts)
		if err != nil {
			return nil, err
		}
		if err := b.addEntity(p); err != nil {
			return nil, err
		}
	}
	for i := range defs.Events {
		e, err := processor.NewEvent(&defs.Events[i])
		if err != nil {
			return nil, err
		}
		if err := b.addEntity(e); err != nil {
			return nil, err
		}
	}
	for i := range defs.Activities {
		if err := b.addEntity(processor.NewActivity(&defs.Activities[i])); err != nil {
			return nil, err
		}
	}

	b.wire()
	if len(b.errs) > 0 {
		return nil, errors.Join(b.errs...)
	}
	if err := b.sort(); err != nil {
		return nil, err
	}

	logging.Debug().
		Int("vertices", len(b.m.vertices)).
		Int("edges", len(b.m.edges)).
		Int("roots", len(b.m.roots)).
		Msg("processing model built")
	return b.m, nil
}

func (b *builder) addEntity(proc processor.Processor) error {
	if _, dup := b.m.byPath[proc.Path()]; dup {
		return fmt.Errorf("duplicate entity %s", proc.Path())
	}
	if _, dup := b.m.byID[proc.ID()]; dup {
		return fmt.Errorf("duplicate entity id %d at %s", proc.ID(), proc.Path())
	}
	parent, err := b.ensureContainer(proc.Path().Parent())
	if err != nil {
		return err
	}
	b.addVertex(proc, parent)
	return nil
}

// ensureContainer returns the vertex of the container at path, creating it
// and its ancestors when missing. It returns nil for the empty path.
func (b *builder) ensureContainer(path models.Path) (*Vertex, error) {
	if path.IsEmpty() {
		return nil, nil
	}
	if v, ok := b.m.byPath[path]; ok {
		if _, isContainer := v.proc.(*processor.Container); !isContainer {
			return nil, fmt.Errorf("%s is a %s and cannot contain other entities", path, v.proc.Type())
		}
		return v, nil
	}
	parent, err := b.ensureContainer(path.Parent())
	if err != nil {
		return nil, err
	}
	c := processor.NewContainer(b.containerID(path), path)
	v := b.addVertex(c, parent)
	if parent == nil {
		b.m.roots = append(b.m.roots, c)
	}
	return v, nil
}

func (b *builder) addVertex(proc processor.Processor, parent *Vertex) *Vertex {
	v := &Vertex{index: len(b.m.vertices), proc: proc, parent: -1}
	if parent != nil {
		v.parent = parent.index
		parent.proc.(*processor.Container).AddChild(proc)
	}
	b.m.vertices = append(b.m.vertices, v)
	b.m.byPath[proc.Path()] = v
	b.m.byID[proc.ID()] = v
	return v
}

// containerID derives a negative external id from the path. Collisions are
// resolved by probing downwards, so ids only depend on the declared paths
// and their order.
func (b *builder) containerID(path models.Path) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(path))
	id := -int64(h.Sum64() & math.MaxInt64)
	if id == 0 {
		id = -1
	}
	for {
		if _, taken := b.m.byID[id]; !taken {
			return id
		}
		id--
		if id == math.MinInt64 {
			id = -1
		}
	}
}

// wire adds value, trigger, report and containment edges.
func (b *builder) wire() {
	for _, v := range b.m.vertices {
		for _, ref := range v.proc.References() {
			src, ok := b.m.byPath[ref]
			if !ok {
				b.errs = append(b.errs, &ReferenceError{From: v.Path(), To: ref, Reason: "not declared"})
				continue
			}
			if src.proc.Type() != models.EntityParameter {
				b.errs = append(b.errs, &ReferenceError{From: v.Path(), To: ref, Reason: fmt.Sprintf("a %s has no value", src.proc.Type())})
				continue
			}
			b.addEdge(src, v, EdgeValue)
		}
		if p, ok := v.proc.(*processor.Parameter); ok {
			for _, target := range p.Triggers() {
				dst, ok := b.m.byPath[target]
				if !ok || dst.proc.Type() != models.EntityEvent {
					b.errs = append(b.errs, &ReferenceError{From: v.Path(), To: target, Reason: "trigger target is not an event"})
					continue
				}
				b.addEdge(v, dst, EdgeTrigger)
			}
		}
		if a, ok := v.proc.(*processor.Activity); ok {
			for _, target := range a.Linked() {
				dst, ok := b.m.byPath[target]
				if !ok || dst.proc.Type() != models.EntityParameter {
					b.errs = append(b.errs, &ReferenceError{From: v.Path(), To: target, Reason: "report target is not a parameter"})
					continue
				}
				b.addEdge(v, dst, EdgeReport)
			}
		}
	}
	for _, v := range b.m.vertices {
		if v.parent >= 0 {
			b.addEdge(v, b.m.vertices[v.parent], EdgeContainment)
		}
	}
}

// addEdge adds src -> dst once per vertex pair.
func (b *builder) addEdge(src, dst *Vertex, kind EdgeKind) {
	key := [2]int{src.index, dst.index}
	if b.seen[key] {
		return
	}
	b.seen[key] = true
	b.m.edges = append(b.m.edges, Edge{Source: src.index, Destination: dst.index, Kind: kind})
	src.out = append(src.out, dst.index)
	dst.in = append(dst.in, src.index)
}

// sort assigns ordering ids with Kahn's algorithm. The ready set is a heap
// keyed by declaration index, so the order is deterministic and independent
// vertices keep their declaration order.
func (b *builder) sort() error {
	n := len(b.m.vertices)
	indegree := make([]int, n)
	for _, e := range b.m.edges {
		indegree[e.Destination]++
	}
	ready := newMinHeap[*Vertex](n)
	for _, v := range b.m.vertices {
		if indegree[v.index] == 0 {
			ready.Push(v.index, v, v.index)
		}
	}

	b.m.ordered = make([]*Vertex, 0, n)
	for ready.Len() > 0 {
		v := ready.Pop().Value
		v.orderingID = len(b.m.ordered)
		b.m.ordered = append(b.m.ordered, v)
		for _, succ := range v.out {
			indegree[succ]--
			if indegree[succ] == 0 {
				ready.Push(succ, b.m.vertices[succ], succ)
			}
		}
	}
	if len(b.m.ordered) == n {
		return nil
	}
	return &CycleError{Members: b.findCycle(indegree)}
}

const (
	white = iota
	grey
	black
)

// findCycle runs a three-colour depth-first search over the vertices the
// topological sort could not consume and returns the first cycle found.
func (b *builder) findCycle(indegree []int) []models.Path {
	colour := make([]uint8, len(b.m.vertices))
	var stack []int

	var visit func(i int) []int
	visit = func(i int) []int {
		colour[i] = grey
		stack = append(stack, i)
		for _, s := range b.m.vertices[i].out {
			switch colour[s] {
			case grey:
				for j := len(stack) - 1; j >= 0; j-- {
					if stack[j] == s {
						return append([]int(nil), stack[j:]...)
					}
				}
			case white:
				if c := visit(s); c != nil {
					return c
				}
			}
		}
		stack = stack[:len(stack)-1]
		colour[i] = black
		return nil
	}

	for _, v := range b.m.vertices {
		if indegree[v.index] == 0 || colour[v.index] != white {
			continue
		}
		if cycle := visit(v.index); cycle != nil {
			out := make([]models.Path, len(cycle))
			for i, idx := range cycle {
				out[i] = b.m.vertices[idx].Path()
			}
			return out
		}
	}
	return nil
}
