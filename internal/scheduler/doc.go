// Package scheduler multiplexes handler invocations across registered modules.
//
// # Why Scheduler Exists
//
// A graph executor processes one input at a time. The scheduler is what lets
// many requests, possibly for different modules, run at the same time: each
// request's execution is offloaded to its own goroutine, bounded by an optional
// worker limit, and its response is delivered as soon as it completes.
//
// # How It Works
//
//   - Register compiles nothing itself; it wraps an already built graph and
//     handler instance in an executor under a module name.
//   - Dispatch starts a fixed batch. Every module is validated before anything
//     starts, so an unknown module fails the whole call with a
//     *ModuleNotFoundError. Responses arrive in completion order and the
//     channel is closed after the last one.
//   - Enqueue submits a single request without blocking.
//   - Responses streams everything that completes, from both Dispatch and
//     Enqueue, out of one shared completion queue.
//
// Failed requests are reported on their Response and never retried.
package scheduler
