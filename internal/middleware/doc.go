// Telemon - Telemetry Monitoring and Control Processing Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemon

/*
Package middleware provides HTTP middleware shared by the API routes.

  - RequestID: X-Request-ID propagation into the logging context
  - PrometheusMetrics: request count, latency and in-flight gauge, labeled
    by chi route pattern
  - Compression: gzip for clients that accept it

All three use the http.HandlerFunc signature; the api package adapts them
to chi with chiMiddleware.
*/
package middleware
