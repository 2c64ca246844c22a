package repository

import "checkout/internal/apperr"

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = apperr.New(apperr.ErrNotFound, "entity not found")

	// ErrStaleStatus is returned when a status transition lost a race: the
	// stored status no longer matches the one the caller expected.
	ErrStaleStatus = apperr.New(apperr.ErrConflict, "payment status changed concurrently")
)
