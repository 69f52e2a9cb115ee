// Package apperrors provides the error type used across the client for
// sentinel errors with status codes. It implements the standard error
// interface while adding error chaining and HTTP status code management, so
// session and CLI failures can be matched with errors.Is and still carry a
// displayable status.
package apperrors

// Error defines the interface for application errors. It extends the
// standard error interface with methods for error wrapping, message
// derivation, and status code management. All methods return Error to
// support method chaining.
type Error interface {
	error
	Unwrap() error // support for errors.Is / errors.As

	// Extended methods
	New(msg string) Error    // creates a new error using current as template
	Msg(msg string) Error    // creates a new error with message and wraps original
	Err(err ...error) Error  // attaches additional errors to current error
	SetStatusCode(int) Error // sets HTTP status code for the error
	StatusCode() int         // returns the current status code
}
