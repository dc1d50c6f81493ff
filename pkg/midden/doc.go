// Package midden provides the durable event model and file-backed
// publish/subscribe substrate for the Drey agent clan.
//
// # Overview
//
// The midden is the shared coordination medium for all Drey agents (hiring,
// worker, arbitrator, CLI). Agents are independent OS processes with no shared
// memory; the only thing they share is a filesystem directory. Every message
// between them is an Event written as a discrete JSON file, broadcast to all
// consumers, and archived once every expected consumer has processed it.
//
// # Core Concepts
//
// Events are immutable-once-published records with a closed set of types
// covering the job lifecycle: JOB_CREATED through PAYMENT_RELEASED. Each
// event carries an open payload object whose shape is keyed by the event
// type; DecodePayload resolves it to a concrete Go struct.
//
// The Store persists events under two directories, pending/ and archive/.
// All writes go through a temp-write-then-atomic-rename pattern so no reader
// ever observes a half-written record. Records that fail structural
// validation are quarantined into the archive as corrupted-{name} rather
// than deleted or left blocking enumeration.
//
// The Bus layers publish/subscribe on top of the Store. Each bus instance
// belongs to one consumer identity. A timer-driven poll loop enumerates
// pending events in timestamp order, dispatches registered handlers, appends
// the consumer to the event's processedBy set, and archives the event once
// the set reaches the expected consumer count.
//
// # Concurrency Model
//
// There is no lock manager and no database. Correctness under concurrent
// writers relies on two things: rename() is indivisible at the filesystem
// layer, and every mutation is safe to retry or lose a race on. Two
// consumers may both append themselves and race to persist; the loser's
// write is either superseded or becomes a benign no-op when the file has
// already been archived.
//
// Within one process the poll loop is a single goroutine: exactly one poll
// cycle is in flight at a time, and handlers run sequentially inside it.
//
// # On-Disk Schema
//
// Pending events:   {data_dir}/pending/{event_id}.json
// Archived events:  {data_dir}/archive/{event_id}.json
// Quarantined:      {data_dir}/archive/corrupted-{original_name}
// In-flight writes: {data_dir}/pending/.{event_id}.{nonce}.tmp
//
// The JSON field set (id, type, timestamp, sourceAgent, targetAgent,
// payload, processedBy, status) is the cross-process wire format. Any
// runtime that can parse JSON can participate; there are no Go-specific
// type tags.
//
// # Delivery Guarantees
//
// Publish is idempotent per event id. Delivery is at-least-once overall and
// exactly-once per consumer identity in the absence of crashes: the
// processedBy membership test guards against re-dispatch across poll
// cycles. A crash in the narrow window between running handlers and
// persisting processedBy re-runs that consumer's handlers on restart, so
// handlers should be idempotent; see Bus.Poll.
package midden
