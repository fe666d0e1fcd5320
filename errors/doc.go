// Package errors provides standardized error handling patterns for TagKit.
//
// # Overview
//
// The package implements a four-class error classification matching the
// outcomes adapter hosts need to distinguish:
//
//   - Invalid: bad input (malformed time range, empty tag list, unknown
//     aggregation function); surfaced before any I/O, never retried.
//   - NotFound: unresolvable tag or subscription identity.
//   - Canceled: the caller's cancellation signal fired; distinct from real
//     failures so hosts can tell user-initiated aborts apart.
//   - Unavailable: collaborator I/O failure (key/value store, raw-sample
//     provider).
//
// The classification integrates with Go's standard error handling,
// supporting errors.Is(), errors.As(), and wrapping chains.
//
// # Error Wrapping Pattern
//
// All error wrapping follows the standardized format:
//
//	"component.method: action failed: %w"
//
// Classification-aware wrappers apply this pattern while attaching a class:
//
//	errors.WrapInvalid(err, "QueryEngine", "ReadInterpolated", "request validation")
//	errors.WrapUnavailable(err, "TagRegistry", "Init", "load definitions")
//
// Check classification at the call site:
//
//	if err := engine.ReadInterpolated(ctx, caller, req); err != nil {
//	    switch {
//	    case errors.IsCanceled(err):
//	        // user abort, do not alert
//	    case errors.IsInvalid(err):
//	        // reject the request, do not retry
//	    default:
//	        // collaborator failure, surface to operator
//	    }
//	}
//
// Lookups that merely fail to resolve a name return empty results rather
// than errors; the NotFound class is reserved for operations whose contract
// requires an explicit failure.
package errors
