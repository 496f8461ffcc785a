// Telemon - Telemetry Monitoring and Control Processing Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemon

// Request structs validated with go-playground/validator tags before they
// reach the processing model.
package api

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tomtom215/telemon/internal/models"
	"github.com/tomtom215/telemon/internal/validation"
)

// maxInjectInputs bounds the inputs of a single inject request.
const maxInjectInputs = 10000

// ParameterSampleRequest is one raw parameter value. Either ID or Path
// addresses the parameter; zero times default to the reception time of the
// request.
type ParameterSampleRequest struct {
	ID             int64     `json:"id,omitempty" validate:"gte=0"`
	Path           string    `json:"path,omitempty" validate:"omitempty,entity_path"`
	GenerationTime time.Time `json:"generation_time"`
	ReceptionTime  time.Time `json:"reception_time"`
	Value          any       `json:"value"`
	Route          string    `json:"route,omitempty" validate:"max=128"`
}

// EventOccurrenceRequest is one raw event occurrence.
type EventOccurrenceRequest struct {
	ID             int64     `json:"id,omitempty" validate:"gte=0"`
	Path           string    `json:"path,omitempty" validate:"omitempty,entity_path"`
	GenerationTime time.Time `json:"generation_time"`
	ReceptionTime  time.Time `json:"reception_time"`
	Qualifier      string    `json:"qualifier,omitempty" validate:"max=256"`
	Report         any       `json:"report,omitempty"`
	Route          string    `json:"route,omitempty" validate:"max=128"`
	Source         string    `json:"source,omitempty" validate:"max=128"`
	Severity       string    `json:"severity,omitempty" validate:"omitempty,oneof=NONE INFO WARN ALARM ERROR"`
}

// ActivityReportRequest is one execution report of an activity.
type ActivityReportRequest struct {
	ID             int64     `json:"id,omitempty" validate:"gte=0"`
	Path           string    `json:"path,omitempty" validate:"omitempty,entity_path"`
	Occurrence     string    `json:"occurrence,omitempty" validate:"max=256"`
	Stage          string    `json:"stage,omitempty" validate:"max=128"`
	State          string    `json:"state" validate:"required,oneof=UNKNOWN OK PENDING EXPECTED TIMEOUT ERROR FATAL"`
	Result         any       `json:"result,omitempty"`
	GenerationTime time.Time `json:"generation_time"`
	ReceptionTime  time.Time `json:"reception_time"`
	Route          string    `json:"route,omitempty" validate:"max=128"`
}

// InjectRequest is the body of POST /api/v1/inject. Parameters are applied
// before events and events before activity reports, each list in order, as
// one batch.
type InjectRequest struct {
	Parameters []ParameterSampleRequest `json:"parameters" validate:"max=10000,dive"`
	Events     []EventOccurrenceRequest `json:"events" validate:"max=10000,dive"`
	Activities []ActivityReportRequest  `json:"activities" validate:"max=10000,dive"`
}

// StatusRequest is the body of POST /api/v1/entities/status.
type StatusRequest struct {
	Path   string `json:"path" validate:"required,entity_path"`
	Status string `json:"status" validate:"required,oneof=ENABLED DISABLED IGNORED"`
}

// EntitiesRequest holds the query parameters of GET /api/v1/entities.
type EntitiesRequest struct {
	Prefix string `json:"prefix" validate:"omitempty,entity_path"`
	Type   string `json:"type" validate:"omitempty,oneof=CONTAINER PARAMETER EVENT ACTIVITY"`
}

// ArchiveRequest holds the parameters of GET /api/v1/archive/{type}.
type ArchiveRequest struct {
	Type   string `json:"type" validate:"required,oneof=parameter event alarm entity"`
	FromID uint64 `json:"from"`
	Limit  int    `json:"limit" validate:"min=1,max=10000"`
}

// RawInputs converts the request into model inputs. Inputs without a time
// are stamped with now.
func (req *InjectRequest) RawInputs(now time.Time) ([]models.RawInput, error) {
	total := len(req.Parameters) + len(req.Events) + len(req.Activities)
	if total == 0 {
		return nil, ErrEmptyBatch
	}
	if total > maxInjectInputs {
		return nil, fmt.Errorf("inject request has %d inputs, at most %d allowed", total, maxInjectInputs)
	}

	out := make([]models.RawInput, 0, total)
	for i, p := range req.Parameters {
		if p.ID == 0 && p.Path == "" {
			return nil, fmt.Errorf("parameters[%d]: %w", i, ErrMissingTarget)
		}
		if p.Value == nil {
			return nil, fmt.Errorf("parameters[%d]: %w", i, ErrMissingValue)
		}
		out = append(out, models.ParameterSample{
			ID:             p.ID,
			Path:           models.Path(p.Path),
			GenerationTime: orNow(p.GenerationTime, now),
			ReceptionTime:  orNow(p.ReceptionTime, now),
			Value:          p.Value,
			Route:          p.Route,
		})
	}
	for i, e := range req.Events {
		if e.ID == 0 && e.Path == "" {
			return nil, fmt.Errorf("events[%d]: %w", i, ErrMissingTarget)
		}
		var severity models.Severity
		if e.Severity != "" {
			s, err := models.ParseSeverity(e.Severity)
			if err != nil {
				return nil, fmt.Errorf("events[%d]: %w", i, err)
			}
			severity = s
		}
		out = append(out, models.EventOccurrence{
			ID:             e.ID,
			Path:           models.Path(e.Path),
			GenerationTime: orNow(e.GenerationTime, now),
			ReceptionTime:  orNow(e.ReceptionTime, now),
			Qualifier:      e.Qualifier,
			Report:         e.Report,
			Route:          e.Route,
			Source:         e.Source,
			Severity:       severity,
		})
	}
	for i, a := range req.Activities {
		if a.ID == 0 && a.Path == "" {
			return nil, fmt.Errorf("activities[%d]: %w", i, ErrMissingTarget)
		}
		state, err := models.ParseActivityState(a.State)
		if err != nil {
			return nil, fmt.Errorf("activities[%d]: %w", i, err)
		}
		out = append(out, models.ActivityReport{
			ID:             a.ID,
			Path:           models.Path(a.Path),
			Occurrence:     a.Occurrence,
			Stage:          a.Stage,
			State:          state,
			Result:         a.Result,
			GenerationTime: orNow(a.GenerationTime, now),
			ReceptionTime:  orNow(a.ReceptionTime, now),
			Route:          a.Route,
		})
	}
	return out, nil
}

func orNow(t, now time.Time) time.Time {
	if t.IsZero() {
		return now
	}
	return t
}

// validateRequest validates a struct using go-playground/validator.
// Returns nil if validation passes, or the API view of the failure.
func validateRequest(v interface{}) *validation.APIError {
	validationErr := validation.ValidateStruct(v)
	if validationErr == nil {
		return nil
	}
	return validationErr.ToAPIError()
}

// splitValues returns every value of key, splitting comma-separated lists.
func splitValues(q url.Values, key string) []string {
	var out []string
	for _, v := range q[key] {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// parseRecordFilter builds a record filter from query parameters:
// path (a prefix), type, external_id, route, source, severity and alarm_state.
// Each may repeat or hold a comma-separated list.
func parseRecordFilter(q url.Values) (models.RecordFilter, error) {
	var f models.RecordFilter
	for _, s := range splitValues(q, "path") {
		p, err := models.ParsePath(s)
		if err != nil {
			return f, fmt.Errorf("path: %w", err)
		}
		f.PathPrefixes = append(f.PathPrefixes, p)
	}
	for _, s := range splitValues(q, "type") {
		t, err := models.ParseRecordType(s)
		if err != nil {
			return f, fmt.Errorf("type: %w", err)
		}
		f.Types = append(f.Types, t)
	}
	for _, s := range splitValues(q, "external_id") {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return f, fmt.Errorf("external_id: %w", err)
		}
		f.ExternalIDs = append(f.ExternalIDs, id)
	}
	f.Routes = splitValues(q, "route")
	f.Sources = splitValues(q, "source")
	for _, s := range splitValues(q, "severity") {
		sev, err := models.ParseSeverity(s)
		if err != nil {
			return f, fmt.Errorf("severity: %w", err)
		}
		f.Severities = append(f.Severities, sev)
	}
	for _, s := range splitValues(q, "alarm_state") {
		st, err := models.ParseAlarmState(s)
		if err != nil {
			return f, fmt.Errorf("alarm_state: %w", err)
		}
		f.AlarmStates = append(f.AlarmStates, st)
	}
	return f, nil
}

// getIntParam extracts an integer query parameter with a default value
func getIntParam(q url.Values, key string, defaultValue int) int {
	value := q.Get(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return intValue
}
