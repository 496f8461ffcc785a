// Telemon - Telemetry Monitoring and Control Processing Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemon

/*
Package websocket streams output records of the processing model to
WebSocket clients.

The Hub is an engine.Subscriber. Each batch delivered by the model is
queued to the hub loop, which sends every connected client the records
selected by that client's filter as a single "records" message. Clients are
visited in id order. A client whose send queue is full is disconnected
rather than slowing the other clients down.

Messages are JSON objects with a type and a data field:

	records   server to client, data is an array of record envelopes
	filter    client to server, data is a RecordFilter; echoed on success
	ping      client to server, answered with pong
	error     server to client, data is a description

The hub runs under suture via RunWithContext; on cancellation all clients
are closed.
*/
package websocket
