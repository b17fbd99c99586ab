// Package errors provides structured error types for better observability
// and programmatic error handling across the sampling engine.
//
// The engine distinguishes four domain failure classes, each carried as an
// ErrorCode so callers can branch on them after any amount of wrapping:
//
//   - ErrCodeChannelResolution: the requested channel group is unavailable
//   - ErrCodeSubscription: the OS refused to open a subscription
//   - ErrCodeStaleSubscription: an open subscription was invalidated
//   - ErrCodeLogicInvariant: two samples could not legally be compared
//
// Example usage:
//
//	err := errors.WrapWithContext(
//	    errors.ErrCodeSubscription,
//	    "failed to open subscription",
//	    cause,
//	    map[string]any{
//	        "channels": len(set.Descriptors),
//	    },
//	)
//
//	if errors.IsCode(err, errors.ErrCodeStaleSubscription) {
//	    // resubscribe
//	}
package errors
