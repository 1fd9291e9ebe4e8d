package domain

import "errors"

var (
	// ErrTokenExpired indicates the refresh token itself is invalid or revoked.
	// Fatal for that user's scan; the user must re-authenticate. Never retried.
	ErrTokenExpired = errors.New("oauth token expired, re-authentication required")

	// ErrAIInvocation wraps any failure of the underlying model call. The
	// decision step never retries internally; retry is the caller's job.
	ErrAIInvocation = errors.New("ai invocation failed")

	// ErrDuplicateEntry indicates a conditional insert lost to an existing row.
	ErrDuplicateEntry = errors.New("duplicate entry")

	// ErrNotFound is returned by repositories for missing rows.
	ErrNotFound = errors.New("not found")
)
