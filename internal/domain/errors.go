package domain

import (
	"errors"

	"github.com/Mardiprk/Mini-MetaDAO/internal/marketmath"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrLockHeld      = errors.New("lock already held")

	ErrUnauthorized            = errors.New("unauthorized")
	ErrMarketClosed            = errors.New("market is already closed")
	ErrMarketStillActive       = errors.New("market is still active")
	ErrMarketAlreadyResolved   = errors.New("market already resolved")
	ErrMarketNotResolved       = errors.New("market not yet resolved")
	ErrInvalidMarketDuration   = errors.New("invalid market duration")
	ErrBetTooSmall             = errors.New("bet amount too small")
	ErrInsufficientFunds       = errors.New("insufficient funds")
	ErrProposalAlreadyExecuted = errors.New("proposal already executed")
	ErrProposalRejected        = errors.New("proposal rejected by market")
	ErrInvalidOutcome          = errors.New("invalid outcome")

	// Settlement arithmetic errors are shared with marketmath so errors.Is
	// matches across layers.
	ErrEmptyWinningPool = marketmath.ErrZeroWinningPool
	ErrOverflow         = marketmath.ErrOverflow
)
