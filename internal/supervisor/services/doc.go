// Bazaar - Offline-Resilient Marketplace Catalog
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bazaar

/*
Package services provides suture.Service wrappers for Bazaar components.

Each wrapper implements the suture.Service interface:

	type Service interface {
	    Serve(ctx context.Context) error
	}

and fmt.Stringer for supervisor event logs.

HTTP Server (HTTPServerService):
  - Wraps *http.Server with graceful shutdown
  - Converts the ListenAndServe pattern to Serve

Offline Queue Replay (ReplayService):
  - Replays queued category clicks when connectivity returns
  - Notify is safe to call from the network monitor's reconnect hook;
    requests arriving during a replay collapse into one follow-up run

Components that already implement Serve (network.Monitor, trigger.Trigger,
wal.GCService) are added to the tree directly.
*/
package services
