package domain

import (
	"time"

	"github.com/Mardiprk/Mini-MetaDAO/internal/marketmath"
)

// Market lifecycle bounds and stake floor, in base currency units.
const (
	MinMarketDuration = 24 * time.Hour
	MaxMarketDuration = 7 * 24 * time.Hour

	MinBetAmount uint64 = 1_000_000

	// PassThreshold is the display-price level above which a market is
	// conventionally read as predicting a beneficial outcome. Display only.
	PassThreshold = 0.5
)

// Side is a bettor's chosen outcome.
type Side string

const (
	SideYes Side = "yes"
	SideNo  Side = "no"
)

// Valid reports whether s is one of the two supported sides.
func (s Side) Valid() bool {
	return s == SideYes || s == SideNo
}

// IsYes reports whether s is the YES side.
func (s Side) IsYes() bool {
	return s == SideYes
}

// MarketState is the lifecycle state of a market. Transitions are strictly
// forward: Open → Closed → Resolved.
type MarketState string

const (
	MarketStateOpen     MarketState = "open"
	MarketStateClosed   MarketState = "closed"
	MarketStateResolved MarketState = "resolved"
)

// Market is the pari-mutuel prediction market attached to one proposal.
// Pools grow via staking and shrink only through redemption payouts drawn
// against the market's escrow holding.
type Market struct {
	ID         string
	ProposalID uint64
	YesPool    uint64
	NoPool     uint64
	FeePool    uint64
	ClosesAt   time.Time
	Resolved   bool
	OutcomeYes bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ValidateMarketDuration enforces the open-market duration bounds.
func ValidateMarketDuration(d time.Duration) error {
	if d < MinMarketDuration || d > MaxMarketDuration {
		return ErrInvalidMarketDuration
	}
	return nil
}

// Expired reports whether the betting window has passed. Expiry is derived
// from the clock at call time, never from a stored flag.
func (m *Market) Expired(now time.Time) bool {
	return !now.Before(m.ClosesAt)
}

// State derives the lifecycle state at the given instant.
func (m *Market) State(now time.Time) MarketState {
	switch {
	case m.Resolved:
		return MarketStateResolved
	case m.Expired(now):
		return MarketStateClosed
	default:
		return MarketStateOpen
	}
}

// Stake validates and applies a gross bet to the market's pools, returning
// the net amount credited to the side pool and the fee skimmed.
//
// Only the YES side pays the protocol fee; a NO bet is credited to no_pool in
// full. The asymmetry matches the deployed settlement contract and must not
// change without a migration of every open market.
func (m *Market) Stake(now time.Time, side Side, gross uint64) (net uint64, fee uint64, err error) {
	if m.Expired(now) || m.Resolved {
		return 0, 0, ErrMarketClosed
	}
	if gross < MinBetAmount {
		return 0, 0, ErrBetTooSmall
	}

	if side.IsYes() {
		net, fee, err = marketmath.ApplyFee(gross)
		if err != nil {
			return 0, 0, err
		}
		yes, err := marketmath.CheckedAdd(m.YesPool, net)
		if err != nil {
			return 0, 0, err
		}
		fees, err := marketmath.CheckedAdd(m.FeePool, fee)
		if err != nil {
			return 0, 0, err
		}
		m.YesPool, m.FeePool = yes, fees
		return net, fee, nil
	}

	no, err := marketmath.CheckedAdd(m.NoPool, gross)
	if err != nil {
		return 0, 0, err
	}
	m.NoPool = no
	return gross, 0, nil
}

// Resolve fixes the binary outcome once the betting window has closed.
// Resolving in favor of a side whose pool is empty is rejected: it would make
// every later redemption divide by zero, so the verdict must go to a backed
// side (or wait; resolution carries no deadline).
func (m *Market) Resolve(now time.Time, outcomeYes bool) error {
	if !m.Expired(now) {
		return ErrMarketStillActive
	}
	if m.Resolved {
		return ErrMarketAlreadyResolved
	}
	if (outcomeYes && m.YesPool == 0) || (!outcomeYes && m.NoPool == 0) {
		return ErrEmptyWinningPool
	}

	m.Resolved = true
	m.OutcomeYes = outcomeYes
	return nil
}

// Payout computes the pari-mutuel payout owed to a position: the position's
// pro-rata share of the losing pool plus return of principal. It does not
// mutate the market; pools are frozen once resolved.
func (m *Market) Payout(p Position) (uint64, error) {
	if !m.Resolved {
		return 0, ErrMarketNotResolved
	}
	if p.Redeemed || p.IsYes != m.OutcomeYes {
		return 0, ErrInvalidOutcome
	}

	winning, losing := m.YesPool, m.NoPool
	if !m.OutcomeYes {
		winning, losing = m.NoPool, m.YesPool
	}
	return marketmath.Payout(p.Amount, losing, winning)
}

// YesPrice returns the display-only implied YES probability. The second
// return is false when both pools are empty. Never feed this back into
// settlement arithmetic.
func (m *Market) YesPrice() (float64, bool) {
	return marketmath.YesPrice(m.YesPool, m.NoPool)
}
