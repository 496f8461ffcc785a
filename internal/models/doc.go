// Telemon - Telemetry Monitoring and Control Processing Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemon

/*
Package models defines the data structures shared by every Telemon component.

Key Components:

  - Path: slash separated, canonical address of a system entity
  - EntityType, Status, Validity, AlarmState, Severity, ActivityState: ordered enumerations
  - ParameterSample, EventOccurrence, ActivityReport: raw inputs accepted by the processing model
  - ParameterData, EventData, AlarmParameterData, SystemEntity: immutable output records
  - RecordFilter: subscription filter over output records
  - Envelope: JSON wire form of a record used by the archive, NATS and websocket layers

Output records are append-only facts. Once emitted they are never mutated;
a later record for the same entity supersedes them.
*/
package models
