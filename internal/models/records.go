// Telemon - Telemetry Monitoring and Control Processing Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemon

package models

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// Record is an immutable output record produced by the processing model.
type Record interface {
	// RecordType identifies the concrete record type.
	RecordType() RecordType
	// RecordID is unique and monotonically increasing per record type.
	RecordID() uint64
	// EntityPath is the path of the entity the record refers to.
	EntityPath() Path
	// EntityID is the external id of the entity the record refers to.
	EntityID() int64
	// Generated is the generation time of the fact.
	Generated() time.Time
}

// ParameterData is the computed state of a parameter.
type ParameterData struct {
	InternalID     uint64     `json:"internal_id"`
	ExternalID     int64      `json:"external_id"`
	Path           Path       `json:"path"`
	SourceValue    any        `json:"source_value"`
	EngValue       any        `json:"eng_value"`
	Validity       Validity   `json:"validity"`
	AlarmState     AlarmState `json:"alarm_state"`
	Route          string     `json:"route,omitempty"`
	GenerationTime time.Time  `json:"generation_time"`
	ReceptionTime  time.Time  `json:"reception_time"`
}

func (d *ParameterData) RecordType() RecordType { return RecordParameter }
func (d *ParameterData) RecordID() uint64       { return d.InternalID }
func (d *ParameterData) EntityPath() Path       { return d.Path }
func (d *ParameterData) EntityID() int64        { return d.ExternalID }
func (d *ParameterData) Generated() time.Time   { return d.GenerationTime }

// EventData is one raised occurrence of an event.
type EventData struct {
	InternalID     uint64    `json:"internal_id"`
	ExternalID     int64     `json:"external_id"`
	Path           Path      `json:"path"`
	Qualifier      string    `json:"qualifier,omitempty"`
	Report         any       `json:"report,omitempty"`
	Route          string    `json:"route,omitempty"`
	Source         string    `json:"source,omitempty"`
	Type           string    `json:"type,omitempty"`
	Severity       Severity  `json:"severity"`
	GenerationTime time.Time `json:"generation_time"`
	ReceptionTime  time.Time `json:"reception_time"`
}

func (d *EventData) RecordType() RecordType { return RecordEvent }
func (d *EventData) RecordID() uint64       { return d.InternalID }
func (d *EventData) EntityPath() Path       { return d.Path }
func (d *EventData) EntityID() int64        { return d.ExternalID }
func (d *EventData) Generated() time.Time   { return d.GenerationTime }

// AlarmParameterData reports a change of the alarm state of a parameter.
type AlarmParameterData struct {
	InternalID           uint64     `json:"internal_id"`
	ExternalID           int64      `json:"external_id"`
	Path                 Path       `json:"path"`
	CurrentAlarmState    AlarmState `json:"current_alarm_state"`
	PreviousAlarmState   AlarmState `json:"previous_alarm_state"`
	CurrentValue         any        `json:"current_value"`
	LastNominalValue     any        `json:"last_nominal_value,omitempty"`
	LastNominalValueTime time.Time  `json:"last_nominal_value_time,omitempty"`
	GenerationTime       time.Time  `json:"generation_time"`
	ReceptionTime        time.Time  `json:"reception_time"`
}

func (d *AlarmParameterData) RecordType() RecordType { return RecordAlarm }
func (d *AlarmParameterData) RecordID() uint64       { return d.InternalID }
func (d *AlarmParameterData) EntityPath() Path       { return d.Path }
func (d *AlarmParameterData) EntityID() int64        { return d.ExternalID }
func (d *AlarmParameterData) Generated() time.Time   { return d.GenerationTime }

// SystemEntity reports the status and alarm state of an entity of the
// hierarchy. Containers emit one whenever their aggregated alarm state
// changes; every entity emits one when its status changes.
type SystemEntity struct {
	InternalID     uint64     `json:"internal_id"`
	ExternalID     int64      `json:"external_id"`
	Path           Path       `json:"path"`
	Type           EntityType `json:"type"`
	Status         Status     `json:"status"`
	AlarmState     AlarmState `json:"alarm_state"`
	GenerationTime time.Time  `json:"generation_time"`
}

func (d *SystemEntity) RecordType() RecordType { return RecordEntity }
func (d *SystemEntity) RecordID() uint64       { return d.InternalID }
func (d *SystemEntity) EntityPath() Path       { return d.Path }
func (d *SystemEntity) EntityID() int64        { return d.ExternalID }
func (d *SystemEntity) Generated() time.Time   { return d.GenerationTime }

// Envelope is the JSON wire form of a Record.
type Envelope struct {
	Type RecordType      `json:"type"`
	Data json.RawMessage `json:"data"`
}

// EncodeRecord serializes a record into its envelope form.
func EncodeRecord(r Record) ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshal %s record: %w", r.RecordType(), err)
	}
	return json.Marshal(Envelope{Type: r.RecordType(), Data: data})
}

// DecodeRecord parses an envelope produced by EncodeRecord.
func DecodeRecord(b []byte) (Record, error) {
	var env Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}
	return DecodeRecordData(env.Type, env.Data)
}

// DecodeRecordData parses the data of a record of the given type.
func DecodeRecordData(t RecordType, data []byte) (Record, error) {
	var rec Record
	switch t {
	case RecordParameter:
		rec = &ParameterData{}
	case RecordEvent:
		rec = &EventData{}
	case RecordAlarm:
		rec = &AlarmParameterData{}
	case RecordEntity:
		rec = &SystemEntity{}
	default:
		return nil, fmt.Errorf("%w: record type %d", ErrUnknownEnumValue, t)
	}
	if err := json.Unmarshal(data, rec); err != nil {
		return nil, fmt.Errorf("unmarshal %s record: %w", t, err)
	}
	return rec, nil
}

// MarshalRecords encodes a batch as a JSON array of envelopes, preserving order.
func MarshalRecords(records []Record) ([]byte, error) {
	envs := make([]Envelope, 0, len(records))
	for _, r := range records {
		data, err := json.Marshal(r)
		if err != nil {
			return nil, fmt.Errorf("marshal %s record: %w", r.RecordType(), err)
		}
		envs = append(envs, Envelope{Type: r.RecordType(), Data: data})
	}
	return json.Marshal(envs)
}
