package memorykeep

import "errors"

var (
	// ErrUnauthenticated indicates a missing or malformed bearer credential.
	ErrUnauthenticated = errors.New("memorykeep: missing or malformed credential")
	// ErrUnauthorized indicates a well-formed credential unknown to the registry.
	ErrUnauthorized = errors.New("memorykeep: unknown credential")
	// ErrBadRequest indicates a request missing a required field.
	ErrBadRequest = errors.New("memorykeep: bad request")
	// ErrNotFound indicates that no memory exists for a tenant and category.
	ErrNotFound = errors.New("memorykeep: no memory found")
	// ErrStorageCorrupt indicates a structured memory file that fails to parse.
	ErrStorageCorrupt = errors.New("memorykeep: stored memory is corrupt")
	// ErrRemoteUnavailable indicates a failed network call to the Memory API.
	ErrRemoteUnavailable = errors.New("memorykeep: memory api unavailable")
	// ErrHandlerAlreadyRegistered indicates duplicate automation handler registration.
	ErrHandlerAlreadyRegistered = errors.New("memorykeep: handler already registered")
)
