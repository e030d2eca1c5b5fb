package domain

import "errors"

// Domain errors
var (
	ErrMatchNotFound       = errors.New("match not found")
	ErrNotAcceptingPlayers = errors.New("match is not accepting new players")
	ErrMatchFull           = errors.New("match is full")
	ErrForbidden           = errors.New("caller is not allowed to perform this action")
	ErrPlayerExists        = errors.New("player 2 already exists")
	ErrNotInMatch          = errors.New("user not in match")
	ErrNotActive           = errors.New("match is not active")
	ErrNotStarted          = errors.New("match has not started")
	ErrMatchDone           = errors.New("match already done")
	ErrRateLimited         = errors.New("rate limit exceeded")
	ErrInvalidRequest      = errors.New("invalid request")
	ErrInternalError       = errors.New("internal server error")
)

// IsNotFoundError checks if an error is a not-found type error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrMatchNotFound)
}

// IsConflictError checks if an error is a state-conflict type error:
// the operation was well formed but not valid for the match's current state.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrNotAcceptingPlayers) ||
		errors.Is(err, ErrMatchFull) ||
		errors.Is(err, ErrPlayerExists) ||
		errors.Is(err, ErrNotActive) ||
		errors.Is(err, ErrNotStarted) ||
		errors.Is(err, ErrMatchDone)
}

// IsForbiddenError checks if an error is an authorization type error
func IsForbiddenError(err error) bool {
	return errors.Is(err, ErrForbidden) || errors.Is(err, ErrNotInMatch)
}
