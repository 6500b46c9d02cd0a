package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Mardiprk/Mini-MetaDAO/internal/domain"
	"github.com/Mardiprk/Mini-MetaDAO/internal/server/middleware"
)

// PositionService defines the methods the position handler requires from the
// service layer.
type PositionService interface {
	Redeem(ctx context.Context, marketID, bettor string) (uint64, error)
	ListByMarket(ctx context.Context, marketID string, opts domain.ListOpts) ([]domain.Position, error)
	ListByBettor(ctx context.Context, bettor string, opts domain.ListOpts) ([]domain.Position, error)
}

// PositionHandler serves position and redemption endpoints.
type PositionHandler struct {
	positions PositionService
	logger    *slog.Logger
}

// NewPositionHandler creates a PositionHandler with the given service and
// logger.
func NewPositionHandler(positions PositionService, logger *slog.Logger) *PositionHandler {
	return &PositionHandler{positions: positions, logger: logHandler(logger, "position")}
}

// Redeem pays out the caller's winning position in a resolved market.
// POST /api/markets/{id}/redeem
func (h *PositionHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	caller := middleware.CallerAddress(r.Context())
	if caller == "" {
		writeError(w, http.StatusBadRequest, "X-Caller-Address header required")
		return
	}

	marketID := pathParam(r, "id")
	if marketID == "" {
		writeError(w, http.StatusBadRequest, "missing market id")
		return
	}

	payout, err := h.positions.Redeem(r.Context(), marketID, caller)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "no position in this market")
		case errors.Is(err, domain.ErrMarketNotResolved):
			writeError(w, http.StatusConflict, "market not yet resolved")
		case errors.Is(err, domain.ErrInvalidOutcome):
			writeError(w, http.StatusConflict, "position is not redeemable")
		default:
			h.logger.ErrorContext(r.Context(), "handler: redeem failed",
				slog.String("market_id", marketID),
				slog.String("bettor", caller),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to redeem position")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"market_id": marketID,
		"bettor":    caller,
		"payout":    payout,
	})
}

// listPositionsResponse wraps position list responses.
type listPositionsResponse struct {
	Positions []domain.Position `json:"positions"`
}

// ListMarketPositions returns all positions in one market.
// GET /api/markets/{id}/positions
func (h *PositionHandler) ListMarketPositions(w http.ResponseWriter, r *http.Request) {
	marketID := pathParam(r, "id")
	if marketID == "" {
		writeError(w, http.StatusBadRequest, "missing market id")
		return
	}

	positions, err := h.positions.ListByMarket(r.Context(), marketID, parseListOpts(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list market positions failed",
			slog.String("market_id", marketID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list positions")
		return
	}

	if positions == nil {
		positions = []domain.Position{}
	}

	writeJSON(w, http.StatusOK, listPositionsResponse{Positions: positions})
}

// ListBettorPositions returns a bettor's positions across markets.
// GET /api/positions?bettor=0x...
func (h *PositionHandler) ListBettorPositions(w http.ResponseWriter, r *http.Request) {
	bettor := r.URL.Query().Get("bettor")
	if bettor == "" {
		bettor = middleware.CallerAddress(r.Context())
	}
	if bettor == "" {
		writeError(w, http.StatusBadRequest, "bettor query parameter required")
		return
	}
	if !common.IsHexAddress(bettor) {
		writeError(w, http.StatusBadRequest, "bettor must be a hex address")
		return
	}
	bettor = common.HexToAddress(bettor).Hex()

	positions, err := h.positions.ListByBettor(r.Context(), bettor, parseListOpts(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list bettor positions failed",
			slog.String("bettor", bettor),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list positions")
		return
	}

	if positions == nil {
		positions = []domain.Position{}
	}

	writeJSON(w, http.StatusOK, listPositionsResponse{Positions: positions})
}
