// Package viewcount keeps post view counters in Redis and flushes them to
// the posts table.
//
// # Read path
//
// [Cache.Read] serves a cached counter and increments it in the background.
// On a miss it increments the durable counter inside a unit of work and
// seeds Redis with the result. Every WriteThroughEvery-th background
// increment is also written to the database.
//
// # Sweep
//
// [Cache.Sync] copies every cached counter into the posts table in one
// transaction. [Scheduler] runs it on a fixed interval. A failed sweep is
// logged and retried on the next tick; cached values are never deleted.
//
// [Direct] is the uncached path: every read is one durable increment.
package viewcount
