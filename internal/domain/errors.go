package domain

import (
	"errors"
	"fmt"
)

// Error categories. Specific errors wrap one of these so callers can
// classify with errors.Is regardless of which operation produced them.
// An operation that returns any of them has left state untouched, except
// ErrInvariant, which is raised by panic and means a bug.
var (
	ErrValidation = errors.New("invalid input")
	ErrState      = errors.New("invalid state")
	ErrCapacity   = errors.New("exposure limit exceeded")
	ErrTransfer   = errors.New("transfer failed")
	ErrInvariant  = errors.New("invariant violation")
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrRateLimited   = errors.New("rate limited")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrLockHeld      = errors.New("lock already held")
)

var (
	ErrOddsBelowMinimum  = fmt.Errorf("%w: odds below minimum 1.000", ErrValidation)
	ErrOddsFrozen        = fmt.Errorf("%w: odds are frozen", ErrState)
	ErrMarketNotOpen     = fmt.Errorf("%w: market not open for betting", ErrState)
	ErrNoOpeningLine     = fmt.Errorf("%w: opening line not set", ErrState)
	ErrMarketFinal       = fmt.Errorf("%w: market already settled or cancelled", ErrState)
	ErrInsufficientFunds = fmt.Errorf("%w: insufficient funds", ErrTransfer)
)
