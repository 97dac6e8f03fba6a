// Package delivery schedules retry scans for undelivered mail and acks.
//
// A [Scheduler] calls a [ScanFunc] once at start, then again after each
// interval. Two scheduling modes are supported:
//
//   - Adaptive backoff (default): the interval starts at [Backoff.Base] and
//     grows by [Backoff.Multiplier] after each scan that re-drove nothing, up
//     to [Backoff.Max]. Any scan that re-drove something, or failed, resets
//     the interval. Jitter spreads scans of peers started together.
//
//   - Cron: a standard cron expression fixes scan times instead.
//
// [Scheduler.Kick] requests an immediate scan, for example after a peer
// comes back online. Kicks are merged and never block.
//
// # Thread Safety
//
// All methods are safe for concurrent use.
package delivery
