package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Mardiprk/Mini-MetaDAO/internal/domain"
	"github.com/Mardiprk/Mini-MetaDAO/internal/treasury"
)

// Ledger implements domain.Ledger on the accounts table. Treasury debits go
// through ExecuteProposal only, gated on a verified capability grant.
type Ledger struct {
	pool  *pgxpool.Pool
	vault *treasury.Vault
}

// NewLedger creates a Ledger backed by the given pool, verifying treasury
// grants against vault.
func NewLedger(pool *pgxpool.Pool, vault *treasury.Vault) *Ledger {
	return &Ledger{pool: pool, vault: vault}
}

// Balance returns the current holding. An account/asset pair with no row
// holds zero.
func (l *Ledger) Balance(ctx context.Context, account, asset string) (uint64, error) {
	var balance uint64
	err := l.pool.QueryRow(ctx,
		`SELECT balance FROM accounts WHERE account = $1 AND asset = $2`,
		account, asset,
	).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("postgres: balance %s/%s: %w", account, asset, err)
	}
	return balance, nil
}

const creditQuery = `
	INSERT INTO accounts (account, asset, balance)
	VALUES ($1, $2, $3)
	ON CONFLICT (account, asset) DO UPDATE
	SET balance = accounts.balance + EXCLUDED.balance, updated_at = NOW()`

const guardedDebitQuery = `
	UPDATE accounts SET balance = balance - $3, updated_at = NOW()
	WHERE account = $1 AND asset = $2 AND balance >= $3`

// Deposit credits an account from outside the ledger.
func (l *Ledger) Deposit(ctx context.Context, account, asset string, amount uint64) error {
	if _, err := l.pool.Exec(ctx, creditQuery, account, asset, amount); err != nil {
		return fmt.Errorf("postgres: deposit %d to %s/%s: %w", amount, account, asset, err)
	}
	return nil
}

func transferTx(ctx context.Context, tx pgx.Tx, from, to, asset string, amount uint64) error {
	if amount == 0 {
		return nil
	}
	tag, err := tx.Exec(ctx, guardedDebitQuery, from, asset, amount)
	if err != nil {
		return fmt.Errorf("postgres: debit %s/%s: %w", from, asset, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInsufficientFunds
	}
	if _, err := tx.Exec(ctx, creditQuery, to, asset, amount); err != nil {
		return fmt.Errorf("postgres: credit %s/%s: %w", to, asset, err)
	}
	return nil
}

// Transfer moves amount between accounts atomically, failing with
// ErrInsufficientFunds when the source cannot cover it.
func (l *Ledger) Transfer(ctx context.Context, from, to, asset string, amount uint64) error {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin transfer: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := transferTx(ctx, tx, from, to, asset, amount); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit transfer: %w", err)
	}
	return nil
}

// ExecuteProposal verifies the grant, marks the proposal executed, and moves
// the base and governance-token amounts from the treasury to the recipient
// as one transaction.
func (l *Ledger) ExecuteProposal(ctx context.Context, grant treasury.Grant, proposalID uint64, recipient, tokenAsset string, amount, tokenAmount uint64) error {
	if !l.vault.Verify(grant) ||
		grant.ProposalID != proposalID ||
		grant.Recipient != recipient ||
		grant.TokenAsset != tokenAsset ||
		grant.Amount != amount ||
		grant.TokenAmount != tokenAmount {
		return domain.ErrUnauthorized
	}

	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin execute proposal: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		UPDATE proposals SET executed = TRUE, updated_at = NOW()
		WHERE id = $1 AND NOT executed`,
		proposalID,
	)
	if err != nil {
		return fmt.Errorf("postgres: mark proposal %d executed: %w", proposalID, err)
	}
	if tag.RowsAffected() == 0 {
		var executed bool
		err := tx.QueryRow(ctx, `SELECT executed FROM proposals WHERE id = $1`, proposalID).Scan(&executed)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("postgres: check proposal %d: %w", proposalID, err)
		}
		return domain.ErrProposalAlreadyExecuted
	}

	if err := transferTx(ctx, tx, domain.TreasuryAccount, recipient, domain.AssetBase, amount); err != nil {
		return err
	}
	if err := transferTx(ctx, tx, domain.TreasuryAccount, recipient, tokenAsset, tokenAmount); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit execute proposal: %w", err)
	}
	return nil
}
