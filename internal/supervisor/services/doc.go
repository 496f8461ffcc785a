// Telemon - Telemetry Monitoring and Control Processing Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemon

/*
Package services provides suture.Service wrappers for the server components.

Each wrapper translates a component lifecycle (Start/Stop, RunWithContext,
ListenAndServe) into suture's context-aware Serve pattern and names the
service through fmt.Stringer for the supervisor logs.

# Available Services

Processing model (ModelService):
  - Starts the engine.Model and stops it on shutdown
  - Tolerates a model that is already running
  - Returns suture.ErrDoNotRestart for a stopped model, which cannot restart

Archive compactor (ArchiveCompactorService):
  - Wraps archive.Compactor with its Start/Stop lifecycle

WebSocket hub (WebSocketHubService):
  - Runs websocket.Hub and subscribes it to every model record
  - Removes the subscription before the hub closes its clients

Record subscription (SubscriptionService):
  - Keeps any engine.Subscriber registered while the service runs

NATS forwarder (ForwarderService):
  - Starts the forwarding components and subscribes their publisher
  - Shuts the components down with a bounded timeout

HTTP server (HTTPServerService):
  - Wraps *http.Server with graceful shutdown
  - Forces Close when the graceful shutdown times out

# Error Handling

Return values determine supervisor behavior:

	nil                    -> service stopped cleanly
	error                  -> service crashed, supervisor restarts it
	suture.ErrDoNotRestart -> service stopped for good
	ctx.Err()              -> shutdown requested, normal termination

# Usage Example

	tree, _ := supervisor.NewSupervisorTree(logger, cfg)
	tree.AddModelService(services.NewModelService(model))
	tree.AddMessagingService(services.NewWebSocketHubService(hub, model))
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
	_ = tree.Serve(ctx)

Multiple Serve calls on the same wrapper at once are not supported.
*/
package services
