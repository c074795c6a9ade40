// Package errors labels node failures and runs node attempts under a retry
// policy.
//
// Node implementations return plain errors or one of the typed errors in
// this package. ErrorType supplies the error_type output when a failure is
// routed to a fail branch; Do repeats failed attempts.
package errors
