// Package internal documents the listsync server internals.
//
// The internal tree is organized by responsibility:
// - api: HTTP handlers, middleware, problem responses, and routing
// - domain: list, item and user services and their models
// - activity: the append-only audit log and its queries
// - realtime: websocket connections, channels and broadcast transports
// - storage: Postgres and in-memory repositories
// - auth, config, metrics, telemetry, sanitize, validation: shared infrastructure
//
// Code in internal/ is not meant for external import.
package internal
