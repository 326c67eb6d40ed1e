package session

import "errors"

var (
	// ErrNetwork is returned when a request cannot be completed,
	// including after the single timeout retry.
	ErrNetwork = errors.New("network error")

	// ErrChallengeUnresolved is returned when a challenge survives both
	// solve attempts, the session refresh and the replay.
	ErrChallengeUnresolved = errors.New("challenge unresolved")
)
