// Package repository defines the MySQL data access layer and the sentinel
// error values shared across its repositories. Sentinels let higher layers
// distinguish failure scenarios without inspecting driver errors: for
// example ErrNotFound covers a missing or already-consumed row, while
// ErrEmailExists signals a uniqueness conflict during registration.
package repository

import "errors"

// ErrNotFound is returned when a lookup matches no usable row. Expired and
// revoked rows are reported as not found so callers cannot distinguish them
// from absence.
var ErrNotFound = errors.New("not found")

// ErrEmailExists is returned when an insert violates the unique email
// constraint. Handlers translate this into an HTTP 409 response.
var ErrEmailExists = errors.New("email already exists")
