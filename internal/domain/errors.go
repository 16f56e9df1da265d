package domain

import "errors"

var (
	// ErrDuplicate is returned by stores when (user, place id) already exists.
	ErrDuplicate = errors.New("place already saved")

	// ErrNotFound is returned when a place or batch does not exist.
	ErrNotFound = errors.New("not found")
)
