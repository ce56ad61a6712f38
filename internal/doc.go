// Package internal documents the campus events server internals.
//
// The internal tree is organized by responsibility:
// - api: HTTP handlers, middleware, error bodies, and routing
// - domain: users and events business logic
// - storage: memory, Postgres and Redis backed repositories
// - jobs: River workers for session cleanup and confirmation email
// - auth, audit, config, email, metrics, telemetry: shared infrastructure
//
// Code in internal/ is not meant for external import.
package internal
