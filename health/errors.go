package health

import "errors"

var (
	// ErrCheckFailed wraps the cause reported by a failing checker.
	ErrCheckFailed = errors.New("health: check failed")

	// ErrCheckTimeout marks a checker abandoned at the aggregator deadline.
	ErrCheckTimeout = errors.New("health: check timeout")

	// ErrCheckerNotFound is returned by Aggregator.Check for unknown names.
	ErrCheckerNotFound = errors.New("health: checker not found")
)
