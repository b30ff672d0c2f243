// Package harness provides an autonomous work-coordination harness: a
// control loop that distributes discrete units of work ("issues") across
// a pool of long-running autonomous workers, tracks session outcomes,
// adaptively scales the pool, applies backpressure, detects
// externally-introduced changes to the work graph, and periodically
// checkpoints progress for human review.
//
// Harness is designed as a library, not a service. The external issue
// tracker and the session executor are collaborators supplied through
// narrow interfaces; the harness never reimplements them.
//
// # Quick Start
//
//	c, err := coordinator.New(source, executor, store,
//	    coordinator.WithScaleConfig(scale.DefaultConfig()),
//	    coordinator.WithCheckpointPolicy(harness.DefaultCheckpointPolicy()),
//	)
//	if err != nil { ... }
//	err = c.Run(ctx)
//
// # Architecture
//
// Each subsystem lives in its own package: worker (pool and worker state
// machines), scale (adaptive capacity), checkpoint (progress tracking and
// confidence), redirect (work-graph snapshot diffing), convoy (named
// campaign queues), observer (monitoring projections), and coordinator
// (the control loop that composes them). Persistence follows a composable
// store pattern: each subsystem defines its own store interface and a
// single backend implements all of them.
//
// All internal entity IDs use TypeID — type-prefixed, K-sortable,
// UUIDv7-based identifiers. Issue IDs belong to the external tracker and
// stay plain strings.
package harness
