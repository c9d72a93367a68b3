package repository

import "errors"

// Sentinel errors surfaced by conditional writes. Services translate these
// into user-facing typed errors.
var (
	// ErrQuotaExhausted is returned when the conditional quota increment
	// matched no row: the school is missing, inactive, or at capacity.
	ErrQuotaExhausted = errors.New("download quota exhausted")

	// ErrDuplicatePending maps the partial unique index on
	// (school_id, video_id) WHERE status = 'pending'.
	ErrDuplicatePending = errors.New("duplicate pending download request")

	// ErrNotPending is returned when a review targets an already
	// resolved request.
	ErrNotPending = errors.New("download request is not pending")

	// ErrAllowanceBelowUsage is returned when an allowance adjustment
	// would drop below the consumed count.
	ErrAllowanceBelowUsage = errors.New("allowance below current usage")
)
