package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Mardiprk/Mini-MetaDAO/internal/domain"
)

// DaoStore implements domain.DaoStore using PostgreSQL. The dao table holds
// exactly one row, pinned by a CHECK on its key.
type DaoStore struct {
	pool *pgxpool.Pool
}

// NewDaoStore creates a new DaoStore backed by the given connection pool.
func NewDaoStore(pool *pgxpool.Pool) *DaoStore {
	return &DaoStore{pool: pool}
}

// Init creates the singleton dao record. A second call finds the row present
// and returns ErrAlreadyExists.
func (s *DaoStore) Init(ctx context.Context, dao domain.Dao) error {
	const query = `
		INSERT INTO dao (id, admin, treasury, governance_mint, proposal_count)
		VALUES (1, $1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING`

	tag, err := s.pool.Exec(ctx, query,
		dao.Admin, dao.Treasury, dao.GovernanceMint, dao.ProposalCount,
	)
	if err != nil {
		return fmt.Errorf("postgres: init dao: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAlreadyExists
	}
	return nil
}

// Get retrieves the dao record.
func (s *DaoStore) Get(ctx context.Context) (domain.Dao, error) {
	const query = `
		SELECT admin, treasury, governance_mint, proposal_count, created_at, updated_at
		FROM dao WHERE id = 1`

	var d domain.Dao
	err := s.pool.QueryRow(ctx, query).Scan(
		&d.Admin, &d.Treasury, &d.GovernanceMint, &d.ProposalCount,
		&d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Dao{}, domain.ErrNotFound
		}
		return domain.Dao{}, fmt.Errorf("postgres: get dao: %w", err)
	}
	return d, nil
}
