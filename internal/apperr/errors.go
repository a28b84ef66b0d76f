// Package apperr defines the sentinel errors shared across the application.
package apperr

import "errors"

var (
	// ErrMalformedPath marks a path that is syntactically invalid
	// (absolute, contains a NUL byte, a backslash, or a ".." segment).
	// The caller's fault; never retried.
	ErrMalformedPath = errors.New("malformed path")

	// ErrSandboxDenied marks a well-formed path that escapes the vault
	// or targets a blocked name. Surfaced as an authorization failure.
	ErrSandboxDenied = errors.New("path denied by sandbox")

	// ErrNotFound marks an absent resource.
	ErrNotFound = errors.New("not found")
)
