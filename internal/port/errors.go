package port

import "errors"

// Sentinel errors used across ports. All are recoverable and user-facing;
// handlers map them to HTTP statuses.
var (
	ErrInvalidPattern      = errors.New("invalid regex pattern")
	ErrInvalidAction       = errors.New("invalid rule action")
	ErrInsufficientCredits = errors.New("not enough credits")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrUsernameTaken       = errors.New("username already taken")
	ErrUserNotFound        = errors.New("user not found")
)
