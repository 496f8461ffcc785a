// Telemon - Telemetry Monitoring and Control Processing Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemon

package processor

import (
	"fmt"
	"slices"
	"time"

	"github.com/tomtom215/telemon/internal/models"
)

// Container aggregates the alarm state of its direct children.
type Container struct {
	id       int64
	path     models.Path
	status   models.Status
	alarm    models.AlarmState
	changed  time.Time
	children []Processor
}

// NewContainer creates an empty container.
func NewContainer(id int64, path models.Path) *Container {
	return &Container{id: id, path: path, alarm: models.AlarmNotApplicable}
}

// AddChild appends a child. Children are visited in insertion order.
func (c *Container) AddChild(child Processor) {
	c.children = append(c.children, child)
}

// Children returns the direct children in insertion order.
func (c *Container) Children() []Processor {
	return slices.Clone(c.children)
}

func (c *Container) ID() int64                 { return c.id }
func (c *Container) Path() models.Path         { return c.path }
func (c *Container) Type() models.EntityType   { return models.EntityContainer }
func (c *Container) References() []models.Path { return nil }
func (c *Container) Status() models.Status     { return c.status }
func (c *Container) Value() (any, bool)        { return nil, false }
func (c *Container) GenerationTime() time.Time { return c.changed }

// AlarmState returns the current aggregated alarm state.
func (c *Container) AlarmState() models.AlarmState { return c.alarm }

func (c *Container) Aggregate() (models.AlarmState, bool) {
	if c.status != models.StatusEnabled || c.alarm == models.AlarmNotApplicable {
		return models.AlarmNotApplicable, false
	}
	return c.alarm, true
}

func (c *Container) Snapshot() EntityState {
	return EntityState{
		ID:         c.id,
		Path:       c.path,
		Type:       models.EntityContainer,
		Status:     c.status,
		AlarmState: c.alarm,
	}
}

// Visit walks the children. Each child the visitor descends into is
// bracketed by StartVisit and EndVisit.
func (c *Container) Visit(v Visitor) {
	for _, child := range c.children {
		state := child.Snapshot()
		if !v.ShouldDescend(state) {
			continue
		}
		v.StartVisit(state)
		child.Visit(v)
		v.EndVisit(state)
	}
}

// Process recomputes the aggregated alarm state and emits a record when it
// changed. Containers accept no raw input.
func (c *Container) Process(env *Env, input models.RawInput) ([]models.Record, error) {
	if input != nil {
		return nil, fmt.Errorf("%w: %T for container %s", ErrInputKind, input, c.path)
	}
	agg := models.AlarmNotApplicable
	for _, child := range c.children {
		if state, ok := child.Aggregate(); ok {
			agg = models.MaxAlarmState(agg, state)
		}
	}
	if agg == c.alarm {
		return nil, nil
	}
	c.alarm = agg
	return []models.Record{c.entityRecord(env)}, nil
}

// SetStatus changes the status of the container only. Propagation to the
// subtree is driven by the caller.
func (c *Container) SetStatus(env *Env, status models.Status) []models.Record {
	if status == c.status {
		return nil
	}
	c.status = status
	return []models.Record{c.entityRecord(env)}
}

func (c *Container) entityRecord(env *Env) *models.SystemEntity {
	c.changed = env.Now()
	return &models.SystemEntity{
		InternalID:     env.NextID(models.RecordEntity),
		ExternalID:     c.id,
		Path:           c.path,
		Type:           models.EntityContainer,
		Status:         c.status,
		AlarmState:     c.alarm,
		GenerationTime: c.changed,
	}
}
