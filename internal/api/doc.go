// Telemon - Telemetry Monitoring and Control Processing Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemon

/*
Package api exposes the processing model over HTTP using the chi router.

Endpoints:

	POST /api/v1/inject             apply a batch of samples, events and activity reports
	GET  /api/v1/entities           state of every entity (?prefix=, ?type=)
	GET  /api/v1/entities/*         state of the entity at the path
	GET  /api/v1/ids/{id}           state of the entity with the external id
	POST /api/v1/entities/status    enable, disable or ignore a subtree
	GET  /api/v1/archive/{type}     archived records (?from=, ?limit=)
	GET  /api/v1/ws                 live record stream (filter query parameters)
	GET  /api/v1/health[/live|/ready]
	GET  /metrics                   Prometheus metrics

Every JSON response uses the APIResponse envelope with success, data,
error and meta fields. Records are encoded as {"type": ..., "data": ...}
envelopes in production order.

Middleware: request ids (middleware.RequestID), a panic recoverer writing
the error envelope, go-chi/cors, go-chi/httprate per route group,
Prometheus request metrics, and gzip on the read endpoints. Request bodies are validated with go-playground/validator
through the validation package.
*/
package api
