package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Mardiprk/Mini-MetaDAO/internal/domain"
	"github.com/Mardiprk/Mini-MetaDAO/internal/marketmath"
	"github.com/Mardiprk/Mini-MetaDAO/internal/notify"
)

// stakeLockTTL bounds how long a stake can hold its market lock.
const stakeLockTTL = 10 * time.Second

// MarketService handles market lifecycle: opening against a proposal,
// staking, and resolution.
type MarketService struct {
	markets  domain.MarketStore
	prices   domain.PriceCache
	locks    domain.LockManager
	bus      domain.SignalBus
	audit    domain.AuditStore
	notifier *notify.Notifier
	clock    domain.Clock
	logger   *slog.Logger
}

// NewMarketService creates a MarketService with all required dependencies.
func NewMarketService(
	markets domain.MarketStore,
	prices domain.PriceCache,
	locks domain.LockManager,
	bus domain.SignalBus,
	audit domain.AuditStore,
	notifier *notify.Notifier,
	clock domain.Clock,
	logger *slog.Logger,
) *MarketService {
	return &MarketService{
		markets:  markets,
		prices:   prices,
		locks:    locks,
		bus:      bus,
		audit:    audit,
		notifier: notifier,
		clock:    clock,
		logger:   logger,
	}
}

// OpenMarket opens the prediction market for a proposal. Each proposal gets
// at most one market; the window must span one to seven days.
func (s *MarketService) OpenMarket(ctx context.Context, proposalID uint64, duration time.Duration) (domain.Market, error) {
	if err := domain.ValidateMarketDuration(duration); err != nil {
		return domain.Market{}, err
	}

	now := s.clock.Now()
	closeUnix, err := marketmath.CheckedAdd(uint64(now.Unix()), uint64(duration/time.Second))
	if err != nil {
		return domain.Market{}, err
	}

	m := domain.Market{
		ID:         uuid.New().String(),
		ProposalID: proposalID,
		ClosesAt:   time.Unix(int64(closeUnix), 0).UTC(),
	}
	if err := s.markets.Create(ctx, m); err != nil {
		return domain.Market{}, fmt.Errorf("market_service: open market for proposal %d: %w", proposalID, err)
	}

	s.publish(ctx, "markets", map[string]any{
		"event":       "market_opened",
		"market_id":   m.ID,
		"proposal_id": proposalID,
		"closes_at":   m.ClosesAt.Format(time.RFC3339),
	})
	s.auditLog(ctx, "market_opened", map[string]any{
		"market_id":   m.ID,
		"proposal_id": proposalID,
		"closes_at":   m.ClosesAt.Format(time.RFC3339),
	})
	if err := s.notifier.Notify(ctx, notify.EventMarketOpened,
		"Market opened",
		fmt.Sprintf("Market %s opened for proposal %d, closes %s.",
			m.ID, proposalID, m.ClosesAt.Format(time.RFC3339)),
	); err != nil {
		s.logger.WarnContext(ctx, "market_service: notify failed",
			slog.String("market_id", m.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "market_service: market opened",
		slog.String("market_id", m.ID),
		slog.Uint64("proposal_id", proposalID),
		slog.Time("closes_at", m.ClosesAt),
	)
	return s.GetMarket(ctx, m.ID)
}

// GetMarket retrieves a market by ID.
func (s *MarketService) GetMarket(ctx context.Context, id string) (domain.Market, error) {
	m, err := s.markets.GetByID(ctx, id)
	if err != nil {
		return domain.Market{}, fmt.Errorf("market_service: get market %q: %w", id, err)
	}
	return m, nil
}

// GetMarketByProposal retrieves the market opened against a proposal.
func (s *MarketService) GetMarketByProposal(ctx context.Context, proposalID uint64) (domain.Market, error) {
	m, err := s.markets.GetByProposal(ctx, proposalID)
	if err != nil {
		return domain.Market{}, fmt.Errorf("market_service: get market for proposal %d: %w", proposalID, err)
	}
	return m, nil
}

// Stake places a bet on one side of an open market. Stakes on the same
// market serialize behind a distributed lock; the debit, escrow credit, pool
// growth, and position insert commit as one unit.
func (s *MarketService) Stake(ctx context.Context, marketID, bettor string, side domain.Side, gross uint64) (domain.Position, error) {
	if !side.Valid() {
		return domain.Position{}, domain.ErrInvalidOutcome
	}

	unlock, err := s.locks.Acquire(ctx, "market:"+marketID, stakeLockTTL)
	if err != nil {
		return domain.Position{}, fmt.Errorf("market_service: stake on %s: %w", marketID, err)
	}
	defer unlock()

	m, err := s.markets.GetByID(ctx, marketID)
	if err != nil {
		return domain.Position{}, fmt.Errorf("market_service: stake on %s: %w", marketID, err)
	}

	net, fee, err := m.Stake(s.clock.Now(), side, gross)
	if err != nil {
		return domain.Position{}, err
	}

	pos := domain.Position{
		MarketID: marketID,
		Bettor:   bettor,
		Amount:   net,
		IsYes:    side.IsYes(),
	}
	if err := s.markets.Stake(ctx, pos, gross, net, fee); err != nil {
		return domain.Position{}, fmt.Errorf("market_service: stake on %s: %w", marketID, err)
	}

	// m's pools already carry this stake; cache the new display price.
	if price, ok := m.YesPrice(); ok {
		if cacheErr := s.prices.SetPrice(ctx, marketID, price, s.clock.Now()); cacheErr != nil {
			s.logger.WarnContext(ctx, "market_service: price cache set failed",
				slog.String("market_id", marketID),
				slog.String("error", cacheErr.Error()),
			)
		}
	}

	s.publish(ctx, "markets", map[string]any{
		"event":     "stake_placed",
		"market_id": marketID,
		"bettor":    bettor,
		"side":      string(side),
		"gross":     gross,
		"net":       net,
		"fee":       fee,
	})
	s.auditLog(ctx, "stake_placed", map[string]any{
		"market_id": marketID,
		"bettor":    bettor,
		"side":      string(side),
		"gross":     gross,
		"net":       net,
		"fee":       fee,
	})

	s.logger.InfoContext(ctx, "market_service: stake placed",
		slog.String("market_id", marketID),
		slog.String("bettor", bettor),
		slog.String("side", string(side)),
		slog.Uint64("gross", gross),
		slog.Uint64("net", net),
		slog.Uint64("fee", fee),
	)
	return pos, nil
}

// Resolve fixes the market's outcome once its window has closed. The
// resolver's identity is not checked; the first outcome wins and resolving
// toward an empty pool is rejected.
func (s *MarketService) Resolve(ctx context.Context, marketID string, outcomeYes bool) (domain.Market, error) {
	m, err := s.markets.GetByID(ctx, marketID)
	if err != nil {
		return domain.Market{}, fmt.Errorf("market_service: resolve %s: %w", marketID, err)
	}
	if err := m.Resolve(s.clock.Now(), outcomeYes); err != nil {
		return domain.Market{}, err
	}
	if err := s.markets.Resolve(ctx, marketID, outcomeYes); err != nil {
		return domain.Market{}, fmt.Errorf("market_service: resolve %s: %w", marketID, err)
	}

	s.publish(ctx, "markets", map[string]any{
		"event":       "market_resolved",
		"market_id":   marketID,
		"outcome_yes": outcomeYes,
	})
	s.auditLog(ctx, "market_resolved", map[string]any{
		"market_id":   marketID,
		"outcome_yes": outcomeYes,
		"yes_pool":    m.YesPool,
		"no_pool":     m.NoPool,
	})
	outcome := "NO"
	if outcomeYes {
		outcome = "YES"
	}
	if err := s.notifier.Notify(ctx, notify.EventMarketResolved,
		"Market resolved",
		fmt.Sprintf("Market %s resolved %s (yes_pool=%d, no_pool=%d).",
			marketID, outcome, m.YesPool, m.NoPool),
	); err != nil {
		s.logger.WarnContext(ctx, "market_service: notify failed",
			slog.String("market_id", marketID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "market_service: market resolved",
		slog.String("market_id", marketID),
		slog.Bool("outcome_yes", outcomeYes),
	)
	return s.GetMarket(ctx, marketID)
}

// ListExpiredUnresolved returns markets whose window has closed without an
// outcome; the monitor loop reports them.
func (s *MarketService) ListExpiredUnresolved(ctx context.Context) ([]domain.Market, error) {
	markets, err := s.markets.ListExpiredUnresolved(ctx, s.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("market_service: list expired unresolved: %w", err)
	}
	return markets, nil
}

func (s *MarketService) publish(ctx context.Context, channel string, event map[string]any) {
	publishEvent(ctx, s.bus, s.logger, "market_service", channel, event)
}

func (s *MarketService) auditLog(ctx context.Context, event string, detail map[string]any) {
	if err := s.audit.Log(ctx, event, detail); err != nil {
		s.logger.WarnContext(ctx, "market_service: audit log failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

// publishEvent marshals the event and sends it over pub/sub and the durable
// stream of the same name. Delivery failures are logged, never fatal.
func publishEvent(ctx context.Context, bus domain.SignalBus, logger *slog.Logger, svc, channel string, event map[string]any) {
	payload, err := json.Marshal(event)
	if err != nil {
		logger.WarnContext(ctx, svc+": marshal event failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
		return
	}
	if err := bus.Publish(ctx, channel, payload); err != nil {
		logger.WarnContext(ctx, svc+": publish event failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
	}
	if err := bus.StreamAppend(ctx, channel+":events", payload); err != nil {
		logger.WarnContext(ctx, svc+": stream append failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
	}
}
