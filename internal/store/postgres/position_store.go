package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Mardiprk/Mini-MetaDAO/internal/domain"
)

// PositionStore implements domain.PositionStore using PostgreSQL.
type PositionStore struct {
	pool *pgxpool.Pool
}

// NewPositionStore creates a new PositionStore backed by the given connection pool.
func NewPositionStore(pool *pgxpool.Pool) *PositionStore {
	return &PositionStore{pool: pool}
}

const positionCols = `market_id, bettor, amount, is_yes, redeemed, created_at, updated_at`

func scanPosition(row pgx.Row) (domain.Position, error) {
	var p domain.Position
	err := row.Scan(
		&p.MarketID, &p.Bettor, &p.Amount, &p.IsYes, &p.Redeemed,
		&p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}

func (s *PositionStore) listQuery(ctx context.Context, base string, key any, opts domain.ListOpts) ([]domain.Position, error) {
	query := base
	args := []any{key}
	argIdx := 2

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list positions: %w", err)
	}
	defer rows.Close()

	var positions []domain.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan position: %w", err)
		}
		positions = append(positions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list positions rows: %w", err)
	}
	return positions, nil
}

// Get retrieves the position a bettor holds on a market.
func (s *PositionStore) Get(ctx context.Context, marketID, bettor string) (domain.Position, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+positionCols+` FROM positions WHERE market_id = $1 AND bettor = $2`,
		marketID, bettor)
	p, err := scanPosition(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Position{}, domain.ErrNotFound
		}
		return domain.Position{}, fmt.Errorf("postgres: get position %s/%s: %w", marketID, bettor, err)
	}
	return p, nil
}

// ListByMarket returns all positions on a market, oldest first.
func (s *PositionStore) ListByMarket(ctx context.Context, marketID string, opts domain.ListOpts) ([]domain.Position, error) {
	return s.listQuery(ctx,
		`SELECT `+positionCols+` FROM positions WHERE market_id = $1 ORDER BY created_at`,
		marketID, opts)
}

// ListByBettor returns all positions held by a bettor, newest first.
func (s *PositionStore) ListByBettor(ctx context.Context, bettor string, opts domain.ListOpts) ([]domain.Position, error) {
	return s.listQuery(ctx,
		`SELECT `+positionCols+` FROM positions WHERE bettor = $1 ORDER BY created_at DESC`,
		bettor, opts)
}

// Redeem marks the position redeemed and pays out from the market escrow to
// the bettor in one transaction. A position already redeemed fails with
// ErrInvalidOutcome and moves nothing.
func (s *PositionStore) Redeem(ctx context.Context, marketID, bettor string, payout uint64) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin redeem: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		UPDATE positions SET redeemed = TRUE, updated_at = NOW()
		WHERE market_id = $1 AND bettor = $2 AND NOT redeemed`,
		marketID, bettor,
	)
	if err != nil {
		return fmt.Errorf("postgres: mark position %s/%s redeemed: %w", marketID, bettor, err)
	}
	if tag.RowsAffected() == 0 {
		var redeemed bool
		err := tx.QueryRow(ctx,
			`SELECT redeemed FROM positions WHERE market_id = $1 AND bettor = $2`,
			marketID, bettor,
		).Scan(&redeemed)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("postgres: check position %s/%s: %w", marketID, bettor, err)
		}
		return domain.ErrInvalidOutcome
	}

	escrow := domain.EscrowAccount(marketID)
	tag, err = tx.Exec(ctx, `
		UPDATE accounts SET balance = balance - $3, updated_at = NOW()
		WHERE account = $1 AND asset = $2 AND balance >= $3`,
		escrow, domain.AssetBase, payout,
	)
	if err != nil {
		return fmt.Errorf("postgres: debit escrow %s: %w", escrow, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInsufficientFunds
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO accounts (account, asset, balance)
		VALUES ($1, $2, $3)
		ON CONFLICT (account, asset) DO UPDATE
		SET balance = accounts.balance + EXCLUDED.balance, updated_at = NOW()`,
		bettor, domain.AssetBase, payout,
	)
	if err != nil {
		return fmt.Errorf("postgres: credit bettor %s: %w", bettor, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit redeem: %w", err)
	}
	return nil
}
