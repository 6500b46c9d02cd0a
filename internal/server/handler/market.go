package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/Mardiprk/Mini-MetaDAO/internal/domain"
	"github.com/Mardiprk/Mini-MetaDAO/internal/server/middleware"
)

// MarketService defines the methods the market handler requires from the
// service layer.
type MarketService interface {
	OpenMarket(ctx context.Context, proposalID uint64, duration time.Duration) (domain.Market, error)
	GetMarket(ctx context.Context, id string) (domain.Market, error)
	Stake(ctx context.Context, marketID, bettor string, side domain.Side, gross uint64) (domain.Position, error)
	Resolve(ctx context.Context, marketID string, outcomeYes bool) (domain.Market, error)
}

// MarketHandler serves market-related HTTP endpoints.
type MarketHandler struct {
	markets MarketService
	clock   domain.Clock
	logger  *slog.Logger
}

// NewMarketHandler creates a MarketHandler with the given service, clock,
// and logger.
func NewMarketHandler(markets MarketService, clock domain.Clock, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{markets: markets, clock: clock, logger: logHandler(logger, "market")}
}

// marketResponse decorates a market with its derived lifecycle state and
// display price.
type marketResponse struct {
	domain.Market
	State    domain.MarketState `json:"state"`
	YesPrice *float64           `json:"yes_price"`
}

func (h *MarketHandler) marketBody(m domain.Market) marketResponse {
	resp := marketResponse{
		Market: m,
		State:  m.State(h.clock.Now()),
	}
	if price, ok := m.YesPrice(); ok {
		resp.YesPrice = &price
	}
	return resp
}

type openMarketRequest struct {
	DurationSeconds uint64 `json:"duration_seconds"`
}

// OpenMarket opens the prediction market for a proposal.
// POST /api/proposals/{id}/market
func (h *MarketHandler) OpenMarket(w http.ResponseWriter, r *http.Request) {
	id, ok := proposalID(w, r)
	if !ok {
		return
	}

	var req openMarketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	m, err := h.markets.OpenMarket(r.Context(), id, time.Duration(req.DurationSeconds)*time.Second)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidMarketDuration):
			writeError(w, http.StatusBadRequest, "duration must be between 1 and 7 days")
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "proposal not found")
		case errors.Is(err, domain.ErrAlreadyExists):
			writeError(w, http.StatusConflict, "proposal already has a market")
		default:
			h.logger.ErrorContext(r.Context(), "handler: open market failed",
				slog.Uint64("proposal_id", id),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to open market")
		}
		return
	}

	writeJSON(w, http.StatusCreated, h.marketBody(m))
}

// GetMarket returns one market with its display price.
// GET /api/markets/{id}
func (h *MarketHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing market id")
		return
	}

	m, err := h.markets.GetMarket(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "market not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get market failed",
			slog.String("market_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to load market")
		return
	}

	writeJSON(w, http.StatusOK, h.marketBody(m))
}

type stakeRequest struct {
	Side   string `json:"side"`
	Amount uint64 `json:"amount"`
}

// Stake places the caller's bet on one side of a market.
// POST /api/markets/{id}/stake
func (h *MarketHandler) Stake(w http.ResponseWriter, r *http.Request) {
	caller := middleware.CallerAddress(r.Context())
	if caller == "" {
		writeError(w, http.StatusBadRequest, "X-Caller-Address header required")
		return
	}

	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing market id")
		return
	}

	var req stakeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	pos, err := h.markets.Stake(r.Context(), id, caller, domain.Side(req.Side), req.Amount)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidOutcome):
			writeError(w, http.StatusBadRequest, `side must be "yes" or "no"`)
		case errors.Is(err, domain.ErrBetTooSmall):
			writeError(w, http.StatusBadRequest, "amount below minimum bet")
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "market not found")
		case errors.Is(err, domain.ErrMarketClosed), errors.Is(err, domain.ErrMarketAlreadyResolved):
			writeError(w, http.StatusConflict, "market is no longer open")
		case errors.Is(err, domain.ErrAlreadyExists):
			writeError(w, http.StatusConflict, "caller already holds a position in this market")
		case errors.Is(err, domain.ErrInsufficientFunds):
			writeError(w, http.StatusConflict, "insufficient balance")
		case errors.Is(err, domain.ErrLockHeld):
			writeError(w, http.StatusTooManyRequests, "market is busy, retry")
		default:
			h.logger.ErrorContext(r.Context(), "handler: stake failed",
				slog.String("market_id", id),
				slog.String("bettor", caller),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to place stake")
		}
		return
	}

	writeJSON(w, http.StatusCreated, pos)
}

type resolveRequest struct {
	OutcomeYes bool `json:"outcome_yes"`
}

// Resolve settles an expired market to its final outcome.
// POST /api/markets/{id}/resolve
func (h *MarketHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing market id")
		return
	}

	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	m, err := h.markets.Resolve(r.Context(), id, req.OutcomeYes)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "market not found")
		case errors.Is(err, domain.ErrMarketStillActive):
			writeError(w, http.StatusConflict, "market has not expired yet")
		case errors.Is(err, domain.ErrMarketAlreadyResolved):
			writeError(w, http.StatusConflict, "market already resolved")
		case errors.Is(err, domain.ErrEmptyWinningPool):
			writeError(w, http.StatusConflict, "cannot resolve toward an empty pool")
		default:
			h.logger.ErrorContext(r.Context(), "handler: resolve market failed",
				slog.String("market_id", id),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to resolve market")
		}
		return
	}

	writeJSON(w, http.StatusOK, h.marketBody(m))
}
