// Package defaults provides centralized configuration constants for iorstat.
//
// This package defines sampling intervals, resubscription parameters and
// timeouts used across the codebase. Centralizing these values ensures
// consistency and makes tuning easier.
//
// # Categories
//
//   - Sampling: poll interval and the averaging window of the sample command
//   - Resubscription: retry cap and backoff for stale subscriptions
//   - Engine: start and stop timeouts
//   - Server: HTTP exporter timeouts
//
// # Usage
//
// Import and use constants directly:
//
//	import "github.com/iorstat/iorstat/pkg/defaults"
//
//	ctx, cancel := context.WithTimeout(ctx, defaults.EngineStopTimeout)
//	defer cancel()
//
// # Guidelines
//
//   - Poll interval: 1s default; power accuracy depends on a short, regular window
//   - Resubscribe: exponential backoff capped at 10s, at most 5 attempts
//   - Stop: 5s for an in-flight poll before handles are closed regardless
//   - Server shutdown: 30s for graceful shutdown
package defaults
