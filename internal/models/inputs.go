// Telemon - Telemetry Monitoring and Control Processing Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemon

package models

import "time"

// RawInput is a raw parameter sample, event occurrence or activity report
// submitted by an acquisition driver. The target entity is addressed by external id, or by
// path when the id is zero.
type RawInput interface {
	// Target returns the addressed entity.
	Target() (id int64, path Path)
	// Kind returns the entity type this input is valid for.
	Kind() EntityType
}

// ParameterSample is a raw value acquired for a parameter.
type ParameterSample struct {
	ID             int64     `json:"id,omitempty"`
	Path           Path      `json:"path,omitempty"`
	GenerationTime time.Time `json:"generation_time"`
	ReceptionTime  time.Time `json:"reception_time"`
	Value          any       `json:"value"`
	Route          string    `json:"route,omitempty"`
}

func (s ParameterSample) Target() (int64, Path) { return s.ID, s.Path }
func (s ParameterSample) Kind() EntityType      { return EntityParameter }

// EventOccurrence is a raw event raised by an acquisition driver.
type EventOccurrence struct {
	ID             int64     `json:"id,omitempty"`
	Path           Path      `json:"path,omitempty"`
	GenerationTime time.Time `json:"generation_time"`
	ReceptionTime  time.Time `json:"reception_time"`
	Qualifier      string    `json:"qualifier,omitempty"`
	Report         any       `json:"report,omitempty"`
	Route          string    `json:"route,omitempty"`
	Source         string    `json:"source,omitempty"`
	// Severity overrides the declared severity when not SeverityNone.
	Severity Severity `json:"severity,omitempty"`
}

func (o EventOccurrence) Target() (int64, Path) { return o.ID, o.Path }
func (o EventOccurrence) Kind() EntityType      { return EntityEvent }

// ActivityReport is a progress report of one activity occurrence. Occurrence
// tells apart executions of the same activity; Stage names the execution
// step the report belongs to.
type ActivityReport struct {
	ID             int64         `json:"id,omitempty"`
	Path           Path          `json:"path,omitempty"`
	Occurrence     string        `json:"occurrence,omitempty"`
	Stage          string        `json:"stage,omitempty"`
	State          ActivityState `json:"state"`
	Result         any           `json:"result,omitempty"`
	GenerationTime time.Time     `json:"generation_time"`
	ReceptionTime  time.Time     `json:"reception_time"`
	Route          string        `json:"route,omitempty"`
}

func (r ActivityReport) Target() (int64, Path) { return r.ID, r.Path }
func (r ActivityReport) Kind() EntityType      { return EntityActivity }
