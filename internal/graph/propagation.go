// Telemon - Telemetry Monitoring and Control Processing Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemon

package graph

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"github.com/tomtom215/telemon/internal/logging"
	"github.com/tomtom215/telemon/internal/models"
	"github.com/tomtom215/telemon/internal/processor"
)

// Affected returns the successor closure of v, excluding v, in ascending
// ordering id. The result is computed once per vertex and shared; callers
// must not modify it.
func (m *Model) Affected(v *Vertex) []*Vertex {
	v.affectedOnce.Do(func() {
		seen := make(map[int]bool)
		queue := slices.Clone(v.out)
		for len(queue) > 0 {
			idx := queue[0]
			queue = queue[1:]
			if seen[idx] || idx == v.index {
				continue
			}
			seen[idx] = true
			succ := m.vertices[idx]
			v.affected = append(v.affected, succ)
			queue = append(queue, succ.out...)
		}
		slices.SortFunc(v.affected, func(a, b *Vertex) int { return cmp.Compare(a.orderingID, b.orderingID) })
	})
	return v.affected
}

// Operation is one step of a batch: a raw input for its vertex, or a
// recompute when Input is nil.
type Operation struct {
	Vertex *Vertex
	Input  models.RawInput
	seq    int
}

// External reports whether the operation carries a raw input.
func (o Operation) External() bool { return o.Input != nil }

// Plan merges the external operations with the recomputes of everything they
// affect, plus the recomputes of the closure of seeds. Each vertex is
// recomputed at most once and never when it already has an external input.
// Operations are ordered by ordering id, external before internal, then in
// arrival order.
func (m *Model) Plan(external []Operation, seeds ...*Vertex) []Operation {
	ops := make([]Operation, 0, len(external))
	hasInput := make(map[int]bool, len(external))
	for _, op := range external {
		op.seq = len(ops)
		ops = append(ops, op)
		hasInput[op.Vertex.index] = true
	}

	scheduled := make(map[int]bool)
	schedule := func(v *Vertex) {
		for _, a := range m.Affected(v) {
			if hasInput[a.index] || scheduled[a.index] {
				continue
			}
			scheduled[a.index] = true
			ops = append(ops, Operation{Vertex: a, seq: len(ops)})
		}
	}
	for _, op := range external {
		schedule(op.Vertex)
	}
	for _, v := range seeds {
		schedule(v)
	}

	slices.SortFunc(ops, func(a, b Operation) int {
		if c := cmp.Compare(a.Vertex.orderingID, b.Vertex.orderingID); c != 0 {
			return c
		}
		if a.External() != b.External() {
			if a.External() {
				return -1
			}
			return 1
		}
		return cmp.Compare(a.seq, b.seq)
	})
	return ops
}

// Execute runs the operations in order and returns the records they
// produced. Contract violations of single operations are joined into the
// error; the remaining operations still run. A panicking processor is
// recovered and reported the same way.
func (m *Model) Execute(env *processor.Env, ops []Operation) ([]models.Record, error) {
	var (
		records []models.Record
		errs    []error
	)
	for _, op := range ops {
		recs, err := m.run(env, op)
		if err != nil {
			errs = append(errs, err)
		}
		if len(recs) > 0 {
			env.MarkChanged(op.Vertex.Path())
		}
		records = append(records, recs...)
	}
	if n := env.PendingRaises(); n > 0 {
		logging.Warn().Int("pending", n).Msg("event raises left unconsumed at end of batch")
	}
	return records, errors.Join(errs...)
}

func (m *Model) run(env *processor.Env, op Operation) (recs []models.Record, err error) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error().
				Str("path", op.Vertex.Path().String()).
				Interface("panic", r).
				Msg("processor panicked")
			recs, err = nil, fmt.Errorf("processor %s panicked: %v", op.Vertex.Path(), r)
		}
	}()
	return op.Vertex.proc.Process(env, op.Input)
}

// SetStatus applies status to the entity at path and its whole subtree, then
// recomputes everything affected. Every produced record is returned.
func (m *Model) SetStatus(env *processor.Env, path models.Path, status models.Status) ([]models.Record, error) {
	subtree, err := m.Subtree(path)
	if err != nil {
		return nil, err
	}
	var records []models.Record
	var changed []*Vertex
	for _, v := range subtree {
		recs := v.proc.SetStatus(env, status)
		if len(recs) > 0 {
			env.MarkChanged(v.Path())
			changed = append(changed, v)
			records = append(records, recs...)
		}
	}
	recs, err := m.Execute(env, m.Plan(nil, changed...))
	return append(records, recs...), err
}
