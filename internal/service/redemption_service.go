package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Mardiprk/Mini-MetaDAO/internal/domain"
)

// RedemptionService settles winning positions against resolved markets.
type RedemptionService struct {
	markets   domain.MarketStore
	positions domain.PositionStore
	audit     domain.AuditStore
	bus       domain.SignalBus
	logger    *slog.Logger
}

// NewRedemptionService creates a RedemptionService with all required
// dependencies.
func NewRedemptionService(
	markets domain.MarketStore,
	positions domain.PositionStore,
	audit domain.AuditStore,
	bus domain.SignalBus,
	logger *slog.Logger,
) *RedemptionService {
	return &RedemptionService{
		markets:   markets,
		positions: positions,
		audit:     audit,
		bus:       bus,
		logger:    logger,
	}
}

// Redeem pays out the bettor's winning position: pro-rata share of the
// losing pool plus principal, moved from the market escrow in one unit with
// the redeemed flag.
func (s *RedemptionService) Redeem(ctx context.Context, marketID, bettor string) (uint64, error) {
	m, err := s.markets.GetByID(ctx, marketID)
	if err != nil {
		return 0, fmt.Errorf("redemption_service: redeem %s/%s: %w", marketID, bettor, err)
	}
	p, err := s.positions.Get(ctx, marketID, bettor)
	if err != nil {
		return 0, fmt.Errorf("redemption_service: redeem %s/%s: %w", marketID, bettor, err)
	}

	payout, err := m.Payout(p)
	if err != nil {
		return 0, err
	}

	if err := s.positions.Redeem(ctx, marketID, bettor, payout); err != nil {
		return 0, fmt.Errorf("redemption_service: redeem %s/%s: %w", marketID, bettor, err)
	}

	publishEvent(ctx, s.bus, s.logger, "redemption_service", "positions", map[string]any{
		"event":     "position_redeemed",
		"market_id": marketID,
		"bettor":    bettor,
		"payout":    payout,
	})
	if err := s.audit.Log(ctx, "position_redeemed", map[string]any{
		"market_id": marketID,
		"bettor":    bettor,
		"stake":     p.Amount,
		"payout":    payout,
	}); err != nil {
		s.logger.WarnContext(ctx, "redemption_service: audit log failed",
			slog.String("market_id", marketID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "redemption_service: position redeemed",
		slog.String("market_id", marketID),
		slog.String("bettor", bettor),
		slog.Uint64("payout", payout),
	)
	return payout, nil
}

// GetPosition retrieves a bettor's position on a market.
func (s *RedemptionService) GetPosition(ctx context.Context, marketID, bettor string) (domain.Position, error) {
	p, err := s.positions.Get(ctx, marketID, bettor)
	if err != nil {
		return domain.Position{}, fmt.Errorf("redemption_service: get position %s/%s: %w", marketID, bettor, err)
	}
	return p, nil
}

// ListByMarket returns all positions on a market.
func (s *RedemptionService) ListByMarket(ctx context.Context, marketID string, opts domain.ListOpts) ([]domain.Position, error) {
	positions, err := s.positions.ListByMarket(ctx, marketID, opts)
	if err != nil {
		return nil, fmt.Errorf("redemption_service: list positions for market %s: %w", marketID, err)
	}
	return positions, nil
}

// ListByBettor returns a bettor's positions across markets.
func (s *RedemptionService) ListByBettor(ctx context.Context, bettor string, opts domain.ListOpts) ([]domain.Position, error) {
	positions, err := s.positions.ListByBettor(ctx, bettor, opts)
	if err != nil {
		return nil, fmt.Errorf("redemption_service: list positions for bettor %s: %w", bettor, err)
	}
	return positions, nil
}
