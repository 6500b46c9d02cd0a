package domain

import (
	"context"

	"github.com/Mardiprk/Mini-MetaDAO/internal/treasury"
)

// AssetBase is the base currency asset identifier. The governance token
// asset is whatever the dao's GovernanceMint names.
const AssetBase = "base"

// TreasuryAccount is the holding account governed by proposal execution.
const TreasuryAccount = "treasury"

// EscrowAccount returns the holding account that keeps a market's staked
// value until redemption.
func EscrowAccount(marketID string) string {
	return "market:" + marketID
}

// Ledger is the value-transfer collaborator: atomic movement of non-negative
// amounts between addressed holdings. A transfer fails with
// ErrInsufficientFunds when the source cannot cover the amount, and the
// enclosing operation must then leave no trace.
type Ledger interface {
	Balance(ctx context.Context, account, asset string) (uint64, error)
	// Deposit credits an account from outside the ledger (funding).
	Deposit(ctx context.Context, account, asset string, amount uint64) error
	Transfer(ctx context.Context, from, to, asset string, amount uint64) error

	// ExecuteProposal is the treasury unit of the governance gate: verify
	// the capability grant, move the base and governance-token amounts from
	// the treasury to the recipient, and mark the proposal executed, all
	// or nothing. It returns ErrProposalAlreadyExecuted when the proposal
	// was executed earlier and ErrUnauthorized on a bad grant.
	ExecuteProposal(ctx context.Context, grant treasury.Grant, proposalID uint64, recipient, tokenAsset string, amount, tokenAmount uint64) error
}
