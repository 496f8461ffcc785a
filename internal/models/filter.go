// Telemon - Telemetry Monitoring and Control Processing Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemon

package models

import "slices"

// RecordFilter selects output records for a subscription. Empty fields match
// everything. A non-empty field that does not apply to a record type (for
// example Severities on a ParameterData) excludes that record.
type RecordFilter struct {
	PathPrefixes []Path       `json:"path_prefixes,omitempty"`
	Types        []RecordType `json:"types,omitempty"`
	ExternalIDs  []int64      `json:"external_ids,omitempty"`
	Routes       []string     `json:"routes,omitempty"`
	Sources      []string     `json:"sources,omitempty"`
	Severities   []Severity   `json:"severities,omitempty"`
	AlarmStates  []AlarmState `json:"alarm_states,omitempty"`
}

// IsEmpty reports whether the filter matches every record.
func (f RecordFilter) IsEmpty() bool {
	return len(f.PathPrefixes) == 0 && len(f.Types) == 0 && len(f.ExternalIDs) == 0 &&
		len(f.Routes) == 0 && len(f.Sources) == 0 && len(f.Severities) == 0 &&
		len(f.AlarmStates) == 0
}

// Matches reports whether r is selected by the filter.
func (f RecordFilter) Matches(r Record) bool {
	if len(f.Types) > 0 && !slices.Contains(f.Types, r.RecordType()) {
		return false
	}
	if len(f.ExternalIDs) > 0 && !slices.Contains(f.ExternalIDs, r.EntityID()) {
		return false
	}
	if len(f.PathPrefixes) > 0 && !f.matchesPath(r.EntityPath()) {
		return false
	}
	if len(f.Routes) > 0 {
		route, ok := routeOf(r)
		if !ok || !slices.Contains(f.Routes, route) {
			return false
		}
	}
	if len(f.Sources) > 0 {
		ev, ok := r.(*EventData)
		if !ok || !slices.Contains(f.Sources, ev.Source) {
			return false
		}
	}
	if len(f.Severities) > 0 {
		ev, ok := r.(*EventData)
		if !ok || !slices.Contains(f.Severities, ev.Severity) {
			return false
		}
	}
	if len(f.AlarmStates) > 0 {
		state, ok := alarmStateOf(r)
		if !ok || !slices.Contains(f.AlarmStates, state) {
			return false
		}
	}
	return true
}

// Apply returns the records of batch selected by the filter, in order.
func (f RecordFilter) Apply(batch []Record) []Record {
	if f.IsEmpty() {
		return batch
	}
	out := make([]Record, 0, len(batch))
	for _, r := range batch {
		if f.Matches(r) {
			out = append(out, r)
		}
	}
	return out
}

func (f RecordFilter) matchesPath(p Path) bool {
	for _, prefix := range f.PathPrefixes {
		if p.IsDescendantOf(prefix) {
			return true
		}
	}
	return false
}

func routeOf(r Record) (string, bool) {
	switch v := r.(type) {
	case *ParameterData:
		return v.Route, true
	case *EventData:
		return v.Route, true
	default:
		return "", false
	}
}

func alarmStateOf(r Record) (AlarmState, bool) {
	switch v := r.(type) {
	case *ParameterData:
		return v.AlarmState, true
	case *AlarmParameterData:
		return v.CurrentAlarmState, true
	case *SystemEntity:
		return v.AlarmState, true
	case *EventData:
		return v.Severity.AlarmState(), true
	default:
		return 0, false
	}
}
