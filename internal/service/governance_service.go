// Package service orchestrates the governance, market, and redemption flows
// over the domain stores, the per-market locks, the event bus, and the
// operator notifier.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Mardiprk/Mini-MetaDAO/internal/domain"
	"github.com/Mardiprk/Mini-MetaDAO/internal/notify"
	"github.com/Mardiprk/Mini-MetaDAO/internal/treasury"
)

// GovernanceService handles dao lifecycle, proposals, and gated execution.
type GovernanceService struct {
	dao       domain.DaoStore
	proposals domain.ProposalStore
	markets   domain.MarketStore
	ledger    domain.Ledger
	vault     *treasury.Vault
	audit     domain.AuditStore
	bus       domain.SignalBus
	notifier  *notify.Notifier
	clock     domain.Clock
	logger    *slog.Logger
}

// NewGovernanceService creates a GovernanceService with all required
// dependencies.
func NewGovernanceService(
	dao domain.DaoStore,
	proposals domain.ProposalStore,
	markets domain.MarketStore,
	ledger domain.Ledger,
	vault *treasury.Vault,
	audit domain.AuditStore,
	bus domain.SignalBus,
	notifier *notify.Notifier,
	clock domain.Clock,
	logger *slog.Logger,
) *GovernanceService {
	return &GovernanceService{
		dao:       dao,
		proposals: proposals,
		markets:   markets,
		ledger:    ledger,
		vault:     vault,
		audit:     audit,
		bus:       bus,
		notifier:  notifier,
		clock:     clock,
		logger:    logger,
	}
}

// InitDao creates the singleton dao record with the caller as admin. A
// second init fails with ErrAlreadyExists.
func (s *GovernanceService) InitDao(ctx context.Context, admin, governanceMint string) (domain.Dao, error) {
	dao := domain.Dao{
		Admin:          admin,
		Treasury:       domain.TreasuryAccount,
		GovernanceMint: governanceMint,
	}
	if err := s.dao.Init(ctx, dao); err != nil {
		return domain.Dao{}, fmt.Errorf("governance_service: init dao: %w", err)
	}

	s.auditLog(ctx, "dao_initialized", map[string]any{
		"admin":           admin,
		"governance_mint": governanceMint,
	})
	s.logger.InfoContext(ctx, "governance_service: dao initialized",
		slog.String("admin", admin),
	)
	return s.GetDao(ctx)
}

// GetDao returns the dao snapshot.
func (s *GovernanceService) GetDao(ctx context.Context) (domain.Dao, error) {
	dao, err := s.dao.Get(ctx)
	if err != nil {
		return domain.Dao{}, fmt.Errorf("governance_service: get dao: %w", err)
	}
	return dao, nil
}

// CreateProposal records a proposal from any caller. The proposal claims the
// dao's current counter value as its ID.
func (s *GovernanceService) CreateProposal(ctx context.Context, creator, description string) (domain.Proposal, error) {
	if description == "" {
		return domain.Proposal{}, fmt.Errorf("governance_service: create proposal: description must not be empty")
	}

	p, err := s.proposals.Create(ctx, domain.Proposal{
		Creator:     creator,
		Description: description,
	})
	if err != nil {
		return domain.Proposal{}, fmt.Errorf("governance_service: create proposal: %w", err)
	}

	s.publish(ctx, "proposals", map[string]any{
		"event":       "proposal_created",
		"proposal_id": p.ID,
		"creator":     creator,
	})
	s.auditLog(ctx, "proposal_created", map[string]any{
		"proposal_id": p.ID,
		"creator":     creator,
	})
	s.logger.InfoContext(ctx, "governance_service: proposal created",
		slog.Uint64("proposal_id", p.ID),
		slog.String("creator", creator),
	)
	return p, nil
}

// GetProposal retrieves one proposal.
func (s *GovernanceService) GetProposal(ctx context.Context, id uint64) (domain.Proposal, error) {
	p, err := s.proposals.GetByID(ctx, id)
	if err != nil {
		return domain.Proposal{}, fmt.Errorf("governance_service: get proposal %d: %w", id, err)
	}
	return p, nil
}

// ListProposals returns proposals newest-first.
func (s *GovernanceService) ListProposals(ctx context.Context, opts domain.ListOpts) ([]domain.Proposal, error) {
	proposals, err := s.proposals.List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("governance_service: list proposals: %w", err)
	}
	return proposals, nil
}

// ExecuteProposal runs the governance gate and, when it passes, moves the
// base and governance-token amounts from the treasury to the recipient.
// The gate requires the caller to be the dao admin, the proposal to be
// unexecuted, and the linked market to be resolved YES.
func (s *GovernanceService) ExecuteProposal(ctx context.Context, caller string, proposalID uint64, recipient string, amount, tokenAmount uint64) error {
	dao, err := s.dao.Get(ctx)
	if err != nil {
		return fmt.Errorf("governance_service: execute proposal %d: %w", proposalID, err)
	}
	if caller != dao.Admin {
		return domain.ErrUnauthorized
	}

	p, err := s.proposals.GetByID(ctx, proposalID)
	if err != nil {
		return fmt.Errorf("governance_service: execute proposal %d: %w", proposalID, err)
	}
	if p.Executed {
		return domain.ErrProposalAlreadyExecuted
	}
	if p.MarketID == "" {
		return domain.ErrMarketNotResolved
	}

	m, err := s.markets.GetByID(ctx, p.MarketID)
	if err != nil {
		return fmt.Errorf("governance_service: execute proposal %d market: %w", proposalID, err)
	}
	if !m.Resolved {
		return domain.ErrMarketNotResolved
	}
	if !m.OutcomeYes {
		return domain.ErrProposalRejected
	}

	grant := s.vault.Mint(proposalID, recipient, dao.GovernanceMint, amount, tokenAmount)
	if err := s.ledger.ExecuteProposal(ctx, grant, proposalID, recipient, dao.GovernanceMint, amount, tokenAmount); err != nil {
		return fmt.Errorf("governance_service: execute proposal %d: %w", proposalID, err)
	}

	s.publish(ctx, "proposals", map[string]any{
		"event":        "proposal_executed",
		"proposal_id":  proposalID,
		"recipient":    recipient,
		"amount":       amount,
		"token_amount": tokenAmount,
	})
	s.auditLog(ctx, "proposal_executed", map[string]any{
		"proposal_id":  proposalID,
		"recipient":    recipient,
		"amount":       amount,
		"token_amount": tokenAmount,
	})
	if err := s.notifier.Notify(ctx, notify.EventProposalExecuted,
		"Proposal executed",
		fmt.Sprintf("Proposal %d paid %d base and %d %s to %s.",
			proposalID, amount, tokenAmount, dao.GovernanceMint, recipient),
	); err != nil {
		s.logger.WarnContext(ctx, "governance_service: notify failed",
			slog.Uint64("proposal_id", proposalID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "governance_service: proposal executed",
		slog.Uint64("proposal_id", proposalID),
		slog.String("recipient", recipient),
		slog.Uint64("amount", amount),
		slog.Uint64("token_amount", tokenAmount),
	)
	return nil
}

func (s *GovernanceService) publish(ctx context.Context, channel string, event map[string]any) {
	publishEvent(ctx, s.bus, s.logger, "governance_service", channel, event)
}

func (s *GovernanceService) auditLog(ctx context.Context, event string, detail map[string]any) {
	if err := s.audit.Log(ctx, event, detail); err != nil {
		s.logger.WarnContext(ctx, "governance_service: audit log failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}
