package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Mardiprk/Mini-MetaDAO/internal/domain"
	"github.com/Mardiprk/Mini-MetaDAO/internal/server/middleware"
)

// ProposalService defines the methods the proposal handler requires from the
// service layer.
type ProposalService interface {
	CreateProposal(ctx context.Context, creator, description string) (domain.Proposal, error)
	GetProposal(ctx context.Context, id uint64) (domain.Proposal, error)
	ListProposals(ctx context.Context, opts domain.ListOpts) ([]domain.Proposal, error)
	ExecuteProposal(ctx context.Context, caller string, proposalID uint64, recipient string, amount, tokenAmount uint64) error
}

// ProposalHandler serves proposal-related HTTP endpoints.
type ProposalHandler struct {
	proposals ProposalService
	logger    *slog.Logger
}

// NewProposalHandler creates a ProposalHandler with the given service and
// logger.
func NewProposalHandler(proposals ProposalService, logger *slog.Logger) *ProposalHandler {
	return &ProposalHandler{proposals: proposals, logger: logHandler(logger, "proposal")}
}

type createProposalRequest struct {
	Description string `json:"description"`
}

// CreateProposal records a new proposal from the caller.
// POST /api/proposals
func (h *ProposalHandler) CreateProposal(w http.ResponseWriter, r *http.Request) {
	caller := middleware.CallerAddress(r.Context())
	if caller == "" {
		writeError(w, http.StatusBadRequest, "X-Caller-Address header required")
		return
	}

	var req createProposalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Description == "" {
		writeError(w, http.StatusBadRequest, "description is required")
		return
	}

	p, err := h.proposals.CreateProposal(r.Context(), caller, req.Description)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusConflict, "dao not initialized")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: create proposal failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to create proposal")
		return
	}

	writeJSON(w, http.StatusCreated, p)
}

// listProposalsResponse wraps the list proposals response.
type listProposalsResponse struct {
	Proposals []domain.Proposal `json:"proposals"`
}

// ListProposals returns proposals in reverse creation order.
// GET /api/proposals?limit=50&offset=0
func (h *ProposalHandler) ListProposals(w http.ResponseWriter, r *http.Request) {
	proposals, err := h.proposals.ListProposals(r.Context(), parseListOpts(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list proposals failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list proposals")
		return
	}

	if proposals == nil {
		proposals = []domain.Proposal{}
	}

	writeJSON(w, http.StatusOK, listProposalsResponse{Proposals: proposals})
}

// GetProposal returns one proposal by ID.
// GET /api/proposals/{id}
func (h *ProposalHandler) GetProposal(w http.ResponseWriter, r *http.Request) {
	id, ok := proposalID(w, r)
	if !ok {
		return
	}

	p, err := h.proposals.GetProposal(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "proposal not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get proposal failed",
			slog.Uint64("proposal_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to load proposal")
		return
	}

	writeJSON(w, http.StatusOK, p)
}

type executeProposalRequest struct {
	Recipient   string `json:"recipient"`
	Amount      uint64 `json:"amount"`
	TokenAmount uint64 `json:"token_amount"`
}

// ExecuteProposal executes a passed proposal, transferring treasury funds
// and the governance grant to the recipient.
// POST /api/proposals/{id}/execute
func (h *ProposalHandler) ExecuteProposal(w http.ResponseWriter, r *http.Request) {
	caller := middleware.CallerAddress(r.Context())
	if caller == "" {
		writeError(w, http.StatusBadRequest, "X-Caller-Address header required")
		return
	}

	id, ok := proposalID(w, r)
	if !ok {
		return
	}

	var req executeProposalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if !common.IsHexAddress(req.Recipient) {
		writeError(w, http.StatusBadRequest, "recipient must be a hex address")
		return
	}
	recipient := common.HexToAddress(req.Recipient).Hex()

	err := h.proposals.ExecuteProposal(r.Context(), caller, id, recipient, req.Amount, req.TokenAmount)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "proposal not found")
		case errors.Is(err, domain.ErrUnauthorized):
			writeError(w, http.StatusForbidden, "caller is not the dao admin")
		case errors.Is(err, domain.ErrProposalAlreadyExecuted):
			writeError(w, http.StatusConflict, "proposal already executed")
		case errors.Is(err, domain.ErrMarketNotResolved):
			writeError(w, http.StatusConflict, "market not yet resolved")
		case errors.Is(err, domain.ErrProposalRejected):
			writeError(w, http.StatusConflict, "proposal rejected by market")
		case errors.Is(err, domain.ErrInsufficientFunds):
			writeError(w, http.StatusConflict, "insufficient treasury funds")
		default:
			h.logger.ErrorContext(r.Context(), "handler: execute proposal failed",
				slog.Uint64("proposal_id", id),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to execute proposal")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "executed",
		"proposal_id": id,
	})
}

// proposalID parses the {id} path segment; on failure it writes a 400 and
// reports ok=false.
func proposalID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	raw := pathParam(r, "id")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid proposal id")
		return 0, false
	}
	return id, true
}
