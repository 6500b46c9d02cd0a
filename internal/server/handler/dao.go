package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Mardiprk/Mini-MetaDAO/internal/domain"
	"github.com/Mardiprk/Mini-MetaDAO/internal/server/middleware"
)

// DaoService defines the methods the dao handler requires from the service
// layer.
type DaoService interface {
	InitDao(ctx context.Context, admin, governanceMint string) (domain.Dao, error)
	GetDao(ctx context.Context) (domain.Dao, error)
}

// DaoHandler serves the singleton dao endpoints.
type DaoHandler struct {
	dao    DaoService
	logger *slog.Logger
}

// NewDaoHandler creates a DaoHandler with the given service and logger.
func NewDaoHandler(dao DaoService, logger *slog.Logger) *DaoHandler {
	return &DaoHandler{dao: dao, logger: logHandler(logger, "dao")}
}

type initDaoRequest struct {
	GovernanceMint string `json:"governance_mint"`
}

// InitDao creates the dao record with the caller as admin.
// POST /api/dao
func (h *DaoHandler) InitDao(w http.ResponseWriter, r *http.Request) {
	caller := middleware.CallerAddress(r.Context())
	if caller == "" {
		writeError(w, http.StatusBadRequest, "X-Caller-Address header required")
		return
	}

	var req initDaoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.GovernanceMint == "" {
		writeError(w, http.StatusBadRequest, "governance_mint is required")
		return
	}

	dao, err := h.dao.InitDao(r.Context(), caller, req.GovernanceMint)
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			writeError(w, http.StatusConflict, "dao already initialized")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: init dao failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to initialize dao")
		return
	}

	writeJSON(w, http.StatusCreated, dao)
}

// GetDao returns the dao snapshot.
// GET /api/dao
func (h *DaoHandler) GetDao(w http.ResponseWriter, r *http.Request) {
	dao, err := h.dao.GetDao(r.Context())
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "dao not initialized")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get dao failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to load dao")
		return
	}

	writeJSON(w, http.StatusOK, dao)
}
