package server

import "errors"

var (
	// ErrInvalidID indicates an id outside the Kanto range or not a number.
	ErrInvalidID = errors.New("server: invalid pokemon id")

	// ErrInvalidCompare indicates a malformed ids list for compare.
	ErrInvalidCompare = errors.New("server: invalid compare ids")
)
