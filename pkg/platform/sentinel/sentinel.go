// Package sentinel holds dependency-level errors. Stores and adapters return
// these (optionally wrapped) so services translate them into domain errors once.
package sentinel

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrConflict     = errors.New("conflict")
	ErrExpired      = errors.New("expired")
	ErrClosed       = errors.New("closed")
	ErrUnavailable  = errors.New("unavailable")
)
