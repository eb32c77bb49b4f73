// Package errors provides standardized error handling for flowdeploy components.
//
// # Overview
//
// The package implements a three-class error classification system: Transient
// (temporary, retryable), Invalid (bad input, non-retryable), and Fatal
// (unrecoverable, stop processing). Classification enables components to make
// retry and escalation decisions without string matching on error text.
//
// # Error Wrapping Pattern
//
// All error wrapping follows the standardized format:
//
//	"component.method: action failed: %w"
//
// Three wrapper functions provide classification-aware wrapping:
//
//	errors.WrapTransient(err, "Component", "Method", "action")  // For retryable errors
//	errors.WrapInvalid(err, "Component", "Method", "action")    // For validation errors
//	errors.WrapFatal(err, "Component", "Method", "action")      // For unrecoverable errors
//
// # Standard Error Variables
//
// Pre-defined variables cover the deployment error taxonomy: pipeline errors
// (ErrParentNotFound, ErrNamingConflict, ErrImportFailed, ErrRenameFailed,
// ErrDeletionFailed), registry errors (ErrRegistryUnsupported, ErrFlowNotFound),
// path resolution errors (ErrPathNotFound, ErrCycleDetected, ErrOrphanedGroup),
// parameter synchronization errors (ErrParameterSyncTimeout,
// ErrParameterSyncFailed), and session errors (ErrAuthenticationFailed).
//
// Naming conflicts are deliberately NOT exceptions in the deployment engine:
// the pipeline returns a conflict description as a first-class value and
// ErrNamingConflict exists only for callers that need a sentinel to match on.
//
// # Integration with errors.As/Is
//
// All error types support standard library error inspection; classification is
// preserved through wrapping chains:
//
//	wrapped := errors.Wrap(errors.ErrConnectionTimeout, "Client", "Do", "request")
//	errors.IsTransient(wrapped) // true
package errors
