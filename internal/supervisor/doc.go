// Telemon - Telemetry Monitoring and Control Processing Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemon

/*
Package supervisor provides process supervision for the server using suture v4.

The supervisor tree manages the lifecycle of every long-running service with
Erlang/OTP-style restarts, failure isolation and graceful shutdown.

# Overview

	RootSupervisor ("telemon")
	├── ModelSupervisor ("model-layer")
	│   ├── ModelService
	│   └── ArchiveCompactorService (if archive.enabled)
	├── MessagingSupervisor ("messaging-layer")
	│   └── ForwarderService (if nats.enabled, build tag: nats)
	└── APISupervisor ("api-layer")
	    ├── WebSocketHubService
	    └── HTTPServerService

A failing forwarder restarts inside the messaging layer while the model
keeps applying batches and the API keeps serving.

# Restart Policy

Crashed services restart with suture's backoff. FailureThreshold failures
within the FailureDecay window put the layer into FailureBackoff. The
processing model holds all processor state and is never restarted once it
stopped; its service returns suture.ErrDoNotRestart.

# Logging

Supervisor events go through sutureslog to the slog logger returned by
logging.NewSlogLogger, so they share the zerolog output of the rest of
the server.

# Usage Example

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
	    FailureThreshold: cfg.Supervisor.FailureThreshold,
	    ShutdownTimeout:  cfg.Supervisor.ShutdownTimeout,
	})
	if err != nil {
	    return err
	}
	tree.AddModelService(services.NewModelService(model))
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Supervisor.ShutdownTimeout))
	return tree.Serve(ctx)
*/
package supervisor
