package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Mardiprk/Mini-MetaDAO/internal/domain"
)

// ProposalStore implements domain.ProposalStore using PostgreSQL.
type ProposalStore struct {
	pool *pgxpool.Pool
}

// NewProposalStore creates a new ProposalStore backed by the given connection pool.
func NewProposalStore(pool *pgxpool.Pool) *ProposalStore {
	return &ProposalStore{pool: pool}
}

const proposalCols = `id, creator, description, market_id, executed, created_at, updated_at`

func scanProposal(row pgx.Row) (domain.Proposal, error) {
	var p domain.Proposal
	err := row.Scan(
		&p.ID, &p.Creator, &p.Description, &p.MarketID, &p.Executed,
		&p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}

// Create assigns the proposal the dao's current counter value as its ID and
// bumps the counter in the same transaction.
func (s *ProposalStore) Create(ctx context.Context, p domain.Proposal) (domain.Proposal, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.Proposal{}, fmt.Errorf("postgres: begin create proposal: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// The row update serializes concurrent creates; RETURNING yields the
	// counter value this proposal claims.
	err = tx.QueryRow(ctx, `
		UPDATE dao SET proposal_count = proposal_count + 1, updated_at = NOW()
		WHERE id = 1
		RETURNING proposal_count - 1`,
	).Scan(&p.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Proposal{}, domain.ErrNotFound
		}
		return domain.Proposal{}, fmt.Errorf("postgres: claim proposal id: %w", err)
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO proposals (id, creator, description)
		VALUES ($1, $2, $3)
		RETURNING created_at, updated_at`,
		p.ID, p.Creator, p.Description,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return domain.Proposal{}, fmt.Errorf("postgres: insert proposal %d: %w", p.ID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Proposal{}, fmt.Errorf("postgres: commit create proposal: %w", err)
	}
	return p, nil
}

// GetByID retrieves a proposal by its ID.
func (s *ProposalStore) GetByID(ctx context.Context, id uint64) (domain.Proposal, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+proposalCols+` FROM proposals WHERE id = $1`, id)
	p, err := scanProposal(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Proposal{}, domain.ErrNotFound
		}
		return domain.Proposal{}, fmt.Errorf("postgres: get proposal %d: %w", id, err)
	}
	return p, nil
}

// List returns proposals newest-first with pagination.
func (s *ProposalStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.Proposal, error) {
	query := `SELECT ` + proposalCols + ` FROM proposals ORDER BY id DESC`
	args := []any{}
	argIdx := 1

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
		return nil, fmt.Errorf("postgres: list proposals: %w", err)
	}
	defer rows.Close()

	var proposals []domain.Proposal
	for rows.Next() {
		p, err := scanProposal(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan proposal: %w", err)
		}
		proposals = append(proposals, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list proposals rows: %w", err)
	}
	return proposals, nil
}

// Count returns the total number of proposals.
func (s *ProposalStore) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM proposals").Scan(&count); err != nil {
		return 0, fmt.Errorf("postgres: count proposals: %w", err)
	}
	return count, nil
}
