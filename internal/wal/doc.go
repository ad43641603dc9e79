// Bazaar - Offline-Resilient Marketplace Catalog
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bazaar

// Package wal provides the durable offline write queue using BadgerDB.
//
// User actions that fail to reach the remote catalog service (category
// click increments) are appended here and replayed when connectivity
// returns. Intents survive process crashes and restarts.
//
// # Architecture
//
//	Click → remote increment ──ok──→ done
//	            ↓ (failure)
//	        Queue.Enqueue (fsync)
//	            ↓ (reconnect)
//	        Queue.Drain → replay each intent → Requeue on failure (bounded)
//
// # Ordering
//
// Keys are "intent:" followed by a big-endian sequence number leased
// from a BadgerDB Sequence, so a prefix scan returns intents in
// insertion order. Intents for the same target are never coalesced:
// every click is one record and one replayed increment.
//
// # Drain atomicity
//
// Drain reads and deletes inside a single read-write transaction. An
// Enqueue that commits before the transaction snapshot is drained; one
// that commits after stays queued for the next Drain. Drains are
// serialized by a mutex so two drains never hand out the same intent.
//
// # Usage
//
//	q, err := wal.Open(wal.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	defer q.Close()
//
//	if err := q.Enqueue(ctx, "food"); err != nil {
//	    return err
//	}
//	intents, err := q.Drain(ctx)
package wal
