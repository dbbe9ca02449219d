package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnknownProvider indicates a provider id with no registered backend.
	ErrUnknownProvider = errors.New("unknown provider")

	// Authentication Errors.

	// ErrAuthRequired indicates the backend requires authentication but none is configured.
	ErrAuthRequired = errors.New("authentication required")

	// ErrAuthExpired indicates the authentication has expired and refresh failed.
	ErrAuthExpired = errors.New("authentication expired")

	// ErrTokenRefreshFailed indicates a token refresh operation failed.
	ErrTokenRefreshFailed = errors.New("token refresh failed")

	// Control channel errors.

	// ErrChannelDisabled indicates the control channel exhausted its retry
	// budget and will not reconnect. Terminal for the agent process.
	ErrChannelDisabled = errors.New("control channel permanently disabled")

	// ErrChannelInactive indicates no connection is currently open.
	ErrChannelInactive = errors.New("control channel not connected")

	// ErrDecryptFailed indicates an artifact could not be decrypted.
	ErrDecryptFailed = errors.New("decryption failed")
)
