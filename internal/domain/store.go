package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination for list queries.
type ListOpts struct {
	Limit  int
	Offset int
}

// DaoStore persists the singleton governance record.
type DaoStore interface {
	// Init creates the dao record. It returns ErrAlreadyExists if the dao
	// has already been initialized.
	Init(ctx context.Context, dao Dao) error
	Get(ctx context.Context) (Dao, error)
}

// ProposalStore persists governance proposals.
type ProposalStore interface {
	// Create assigns the proposal the dao's current counter value as its ID
	// and increments the counter, atomically. The stored proposal is
	// returned with its assigned ID.
	Create(ctx context.Context, p Proposal) (Proposal, error)
	GetByID(ctx context.Context, id uint64) (Proposal, error)
	List(ctx context.Context, opts ListOpts) ([]Proposal, error)
	Count(ctx context.Context) (int64, error)
}

// MarketStore persists markets and owns the atomic staking unit.
type MarketStore interface {
	// Create inserts the market and links the proposal's market reference
	// in the same transaction. It returns ErrAlreadyExists when the
	// proposal already has a market.
	Create(ctx context.Context, m Market) error
	GetByID(ctx context.Context, id string) (Market, error)
	GetByProposal(ctx context.Context, proposalID uint64) (Market, error)
	// ListExpiredUnresolved returns markets whose window closed at or
	// before the cutoff but which have no outcome yet.
	ListExpiredUnresolved(ctx context.Context, cutoff time.Time) ([]Market, error)
	// ListResolvedBefore returns resolved markets whose window closed
	// strictly before the cutoff, for archival.
	ListResolvedBefore(ctx context.Context, cutoff time.Time) ([]Market, error)

	// Stake applies one validated bet as a single atomic unit: debit the
	// bettor's account by gross, credit the market escrow, grow the pools
	// by net/fee, and insert the position. Returns ErrInsufficientFunds if
	// the bettor cannot cover gross and ErrAlreadyExists if the bettor
	// already holds a position on this market.
	Stake(ctx context.Context, pos Position, gross, net, fee uint64) error

	// Resolve persists the outcome iff the market is still unresolved;
	// otherwise it returns ErrMarketAlreadyResolved.
	Resolve(ctx context.Context, id string, outcomeYes bool) error
}

// PositionStore persists bettor positions.
type PositionStore interface {
	Get(ctx context.Context, marketID, bettor string) (Position, error)
	ListByMarket(ctx context.Context, marketID string, opts ListOpts) ([]Position, error)
	ListByBettor(ctx context.Context, bettor string, opts ListOpts) ([]Position, error)
	// Redeem marks the position redeemed and pays out from the market
	// escrow to the bettor, atomically. It returns ErrInvalidOutcome when
	// the position was already redeemed.
	Redeem(ctx context.Context, marketID, bettor string, payout uint64) error
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}
