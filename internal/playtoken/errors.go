package playtoken

import "errors"

// Failure kinds surfaced to callers. Each maps to a different recovery action,
// so they are never collapsed into a generic error.
var (
	// ErrEntitlementDenied means the subject has no ownership or approved
	// enrollment for the lesson's course. Recoverable by obtaining access.
	ErrEntitlementDenied = errors.New("subject is not entitled to this lesson")

	// ErrResourceUnavailable means the lesson does not exist or has no
	// playable video attached.
	ErrResourceUnavailable = errors.New("lesson has no playable video")

	// ErrOriginRejected means the request origin is present but not on the
	// configured allow-list.
	ErrOriginRejected = errors.New("request origin is not allowed")

	// ErrTokenInvalid means the token signature or format is wrong. Never
	// retryable with the same token.
	ErrTokenInvalid = errors.New("playback token is invalid")

	// ErrTokenExpired means the token's TTL has elapsed. Recoverable by
	// requesting a new token.
	ErrTokenExpired = errors.New("playback token has expired")

	// ErrResourceMismatch means the token was minted for a different lesson.
	ErrResourceMismatch = errors.New("playback token was issued for a different lesson")

	// ErrSubjectMismatch means the presenting subject is not the one the
	// token was issued to.
	ErrSubjectMismatch = errors.New("playback token was issued to a different subject")

	// ErrTokenAlreadyUsed means the token was verified once before. Signals a
	// possible replay and is logged as a security event.
	ErrTokenAlreadyUsed = errors.New("playback token has already been used")
)
