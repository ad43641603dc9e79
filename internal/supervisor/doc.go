// Bazaar - Offline-Resilient Marketplace Catalog
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bazaar

/*
Package supervisor provides process supervision for Bazaar using suture v4.

The tree organizes long-running services into three layers:

	RootSupervisor ("bazaar")
	├── DataSupervisor ("data-layer")
	│   ├── network.Monitor        connectivity probe
	│   ├── wal.GCService          offline queue value-log GC
	│   └── services.ReplayService replays queued clicks on reconnect
	├── JobsSupervisor ("jobs-layer")
	│   └── trigger.Trigger        runs the ranking job
	└── APISupervisor ("api-layer")
	    └── services.HTTPServerService

A panic or error in one service restarts that service only. When a service
fails more than FailureThreshold times (decaying at FailureDecay per
second) its supervisor backs off for FailureBackoff before restarting it.

Supervisor events (restarts, backoff, timeouts) are logged through
sutureslog using the zerolog-backed slog adapter:

	tree, err := supervisor.NewSupervisorTree(
	    logging.NewSlogLogger("supervisor"),
	    supervisor.TreeConfigFromConfig(&cfg.Supervisor),
	)
	tree.AddDataService(monitor)
	tree.AddJobService(prefetch)
	tree.AddAPIService(services.NewHTTPServerService(srv, cfg.Supervisor.ShutdownTimeout))
	err = tree.Serve(ctx)

On shutdown each service gets ShutdownTimeout to return;
UnstoppedServiceReport lists the ones that did not.
*/
package supervisor
