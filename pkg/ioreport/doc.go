// Package ioreport is the boundary to the operating system's hardware
// reporting facility.
//
// On macOS the facility is the private IOReport library: channels are
// enumerated per group and subgroup, merged into one channel set, subscribed,
// and sampled. Everything above this package works against the Reporter
// interface, so the rest of the engine is platform independent.
//
// # Implementations
//
//   - NewReporter on darwin with cgo binds libIOReport directly.
//   - NewReporter elsewhere returns a reporter for which every group is
//     unavailable (ErrUnsupported).
//   - Package fake provides a deterministic in-memory reporter.
//
// # Staleness
//
// IOReport does not document an explicit invalidation signal. The darwin
// reporter treats a nil sample from an open subscription as stale and
// returns ErrStale; callers recreate the subscription.
package ioreport
