package domain

import "errors"

var (
	// ErrDuplicateRound is returned when a round id is already active.
	ErrDuplicateRound = errors.New("round already running")
	// ErrRoundNotFound is returned when operating on an unknown or finalized round.
	ErrRoundNotFound = errors.New("round not found")
	// ErrPlayerNotInRound is returned when a non-member submits an answer.
	ErrPlayerNotInRound = errors.New("player not in round")
	// ErrEmptyRound is returned when scoring a round with zero responses.
	ErrEmptyRound = errors.New("cannot score a round without responses")
)
