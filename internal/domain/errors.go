package domain

import "errors"

var (
	// ErrScheduleNotFound is returned when a schedule lookup misses.
	ErrScheduleNotFound = errors.New("schedule not found")

	// ErrRunNotFound is returned when a run lookup misses.
	ErrRunNotFound = errors.New("run not found")

	// ErrRunNotClaimable is returned when a worker tries to claim a run
	// that is no longer PENDING.
	ErrRunNotClaimable = errors.New("run is not pending")

	// ErrInvalidFrequency is returned for frequency shapes that cannot
	// be turned into a cron spec.
	ErrInvalidFrequency = errors.New("invalid frequency")
)
