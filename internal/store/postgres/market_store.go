package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Mardiprk/Mini-MetaDAO/internal/domain"
)

// pgUniqueViolation is the SQLSTATE for unique constraint violations.
const pgUniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// MarketStore implements domain.MarketStore using PostgreSQL.
type MarketStore struct {
	pool *pgxpool.Pool
}

// NewMarketStore creates a new MarketStore backed by the given connection pool.
func NewMarketStore(pool *pgxpool.Pool) *MarketStore {
	return &MarketStore{pool: pool}
}

const marketCols = `id, proposal_id, yes_pool, no_pool, fee_pool,
	closes_at, resolved, outcome_yes, created_at, updated_at`

func scanMarket(row pgx.Row) (domain.Market, error) {
	var m domain.Market
	err := row.Scan(
		&m.ID, &m.ProposalID, &m.YesPool, &m.NoPool, &m.FeePool,
		&m.ClosesAt, &m.Resolved, &m.OutcomeYes,
		&m.CreatedAt, &m.UpdatedAt,
	)
	return m, err
}

// Create inserts the market and links it to its proposal in one transaction.
// A proposal that already carries a market makes the whole unit fail with
// ErrAlreadyExists.
func (s *MarketStore) Create(ctx context.Context, m domain.Market) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin create market: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var linked string
	err = tx.QueryRow(ctx,
		`SELECT market_id FROM proposals WHERE id = $1 FOR UPDATE`, m.ProposalID,
	).Scan(&linked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("postgres: lock proposal %d: %w", m.ProposalID, err)
	}
	if linked != "" {
		return domain.ErrAlreadyExists
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO markets (id, proposal_id, closes_at)
		VALUES ($1, $2, $3)`,
		m.ID, m.ProposalID, m.ClosesAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("postgres: insert market %s: %w", m.ID, err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE proposals SET market_id = $1, updated_at = NOW() WHERE id = $2`,
		m.ID, m.ProposalID,
	)
	if err != nil {
		return fmt.Errorf("postgres: link market %s to proposal %d: %w", m.ID, m.ProposalID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit create market: %w", err)
	}
	return nil
}

// GetByID retrieves a market by its primary key.
func (s *MarketStore) GetByID(ctx context.Context, id string) (domain.Market, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+marketCols+` FROM markets WHERE id = $1`, id)
	m, err := scanMarket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("postgres: get market %s: %w", id, err)
	}
	return m, nil
}

// GetByProposal retrieves the market opened against a proposal.
func (s *MarketStore) GetByProposal(ctx context.Context, proposalID uint64) (domain.Market, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+marketCols+` FROM markets WHERE proposal_id = $1`, proposalID)
	m, err := scanMarket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("postgres: get market for proposal %d: %w", proposalID, err)
	}
	return m, nil
}

func (s *MarketStore) list(ctx context.Context, what, query string, args ...any) ([]domain.Market, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list %s markets: %w", what, err)
	}
	defer rows.Close()

	var markets []domain.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan %s market: %w", what, err)
		}
		markets = append(markets, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list %s markets rows: %w", what, err)
	}
	return markets, nil
}

// ListExpiredUnresolved returns markets whose betting window closed at or
// before the cutoff but which carry no outcome yet.
func (s *MarketStore) ListExpiredUnresolved(ctx context.Context, cutoff time.Time) ([]domain.Market, error) {
	return s.list(ctx, "expired unresolved",
		`SELECT `+marketCols+` FROM markets
		 WHERE NOT resolved AND closes_at <= $1
		 ORDER BY closes_at`, cutoff)
}

// ListResolvedBefore returns resolved markets whose window closed strictly
// before the cutoff, oldest first.
func (s *MarketStore) ListResolvedBefore(ctx context.Context, cutoff time.Time) ([]domain.Market, error) {
	return s.list(ctx, "resolved",
		`SELECT `+marketCols+` FROM markets
		 WHERE resolved AND closes_at < $1
		 ORDER BY closes_at`, cutoff)
}

// Stake applies one validated bet atomically: debit the bettor, credit the
// market escrow, grow the pools, insert the position. Any failing step rolls
// the whole unit back.
func (s *MarketStore) Stake(ctx context.Context, pos domain.Position, gross, net, fee uint64) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin stake: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		UPDATE accounts SET balance = balance - $3, updated_at = NOW()
		WHERE account = $1 AND asset = $2 AND balance >= $3`,
		pos.Bettor, domain.AssetBase, gross,
	)
	if err != nil {
		return fmt.Errorf("postgres: debit bettor %s: %w", pos.Bettor, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInsufficientFunds
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO accounts (account, asset, balance)
		VALUES ($1, $2, $3)
		ON CONFLICT (account, asset) DO UPDATE
		SET balance = accounts.balance + EXCLUDED.balance, updated_at = NOW()`,
		domain.EscrowAccount(pos.MarketID), domain.AssetBase, gross,
	)
	if err != nil {
		return fmt.Errorf("postgres: credit escrow for market %s: %w", pos.MarketID, err)
	}

	var yesDelta, noDelta uint64
	if pos.IsYes {
		yesDelta = net
	} else {
		noDelta = net
	}
	tag, err = tx.Exec(ctx, `
		UPDATE markets SET
			yes_pool   = yes_pool + $2,
			no_pool    = no_pool + $3,
			fee_pool   = fee_pool + $4,
			updated_at = NOW()
		WHERE id = $1 AND NOT resolved`,
		pos.MarketID, yesDelta, noDelta, fee,
	)
	if err != nil {
		return fmt.Errorf("postgres: grow pools for market %s: %w", pos.MarketID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrMarketClosed
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO positions (market_id, bettor, amount, is_yes)
		VALUES ($1, $2, $3, $4)`,
		pos.MarketID, pos.Bettor, pos.Amount, pos.IsYes,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("postgres: insert position %s/%s: %w", pos.MarketID, pos.Bettor, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit stake: %w", err)
	}
	return nil
}

// Resolve persists the outcome for a still-unresolved market. A market that
// already carries an outcome keeps it.
func (s *MarketStore) Resolve(ctx context.Context, id string, outcomeYes bool) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE markets SET resolved = TRUE, outcome_yes = $2, updated_at = NOW()
		WHERE id = $1 AND NOT resolved`,
		id, outcomeYes,
	)
	if err != nil {
		return fmt.Errorf("postgres: resolve market %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		var resolved bool
		err := s.pool.QueryRow(ctx, `SELECT resolved FROM markets WHERE id = $1`, id).Scan(&resolved)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("postgres: check market %s: %w", id, err)
		}
		return domain.ErrMarketAlreadyResolved
	}
	return nil
}
