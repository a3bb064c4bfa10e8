package domain

import "errors"

var (
	// ErrBankUnavailable indicates the quiz bank could not be loaded at all.
	ErrBankUnavailable = errors.New("quiz bank unavailable")
	// ErrNoEffectiveDay indicates the bank holds no valid day entries.
	ErrNoEffectiveDay = errors.New("no quiz day available")
	// ErrSessionNotFound is returned when no day session exists for a user.
	ErrSessionNotFound = errors.New("quiz day session not found")
	// ErrUnknownRole indicates an identity whose role is not one of the
	// couple's two configured roles. Failing fast here keeps the
	// "not me, therefore partner" bucketing honest.
	ErrUnknownRole = errors.New("role is not part of this couple")
	// ErrNoQuestion is returned when a submission arrives with no
	// current question to answer.
	ErrNoQuestion = errors.New("no question at current index")
)
