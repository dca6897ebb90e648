package domain

import "errors"

// ErrNotFound is returned when a requested resource does not exist, either
// locally (no stored snapshot) or on the remote API (HTTP 404).
// Handlers should map this to HTTP 404.
var ErrNotFound = errors.New("not found")

// ErrValidation is returned when input fails validation before any remote call
// is made (e.g. missing email, unknown grid size).
// Handlers should map this to HTTP 422 Unprocessable Entity.
var ErrValidation = errors.New("validation error")

// ErrUnauthenticated is returned when no user is signed in or the remote API
// rejected the held credentials.
// Handlers should map this to HTTP 401.
var ErrUnauthenticated = errors.New("unauthenticated")
