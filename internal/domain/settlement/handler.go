package settlement

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/touristlog/touristlog-api/internal/domain/ledger"
	"github.com/touristlog/touristlog-api/internal/middleware"
	"github.com/touristlog/touristlog-api/internal/pkg/logger"
	"github.com/touristlog/touristlog-api/internal/pkg/response"
	"github.com/touristlog/touristlog-api/internal/pkg/validator"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Settle handles POST /pageviews/{id}/settle
func (h *Handler) Settle(w http.ResponseWriter, r *http.Request) {
	s, ok := middleware.GetSession(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	id := chi.URLParam(r, "id")
	if err := validator.ValidateVar(id, "required,max=64"); err != nil {
		response.BadRequest(w, "invalid page view id")
		return
	}

	// a batch runs one rail timeout per wave of payouts and can outlast the
	// server's write timeout; the caller must still receive the results
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		logger.FromContext(r.Context()).Warn().Err(err).Msg("Failed to lift write deadline for settlement")
	}

	res, err := h.svc.Settle(r.Context(), ledger.Caller{
		UserID:       s.UserID,
		IsAdmin:      s.IsAdmin,
		IsAdvertiser: s.IsAdvertiser,
	}, id)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			response.NotFound(w, "Page view not found")
		case errors.Is(err, ErrTopicNotFound):
			response.NotFound(w, "Topic not found")
		case errors.Is(err, ErrUnauthorized):
			response.Forbidden(w, err.Error())
		case errors.Is(err, ErrAlreadyPaid):
			response.Error(w, http.StatusConflict, "ALREADY_PAID", err.Error())
		case errors.Is(err, ErrSettlementInProgress):
			response.Error(w, http.StatusConflict, "SETTLEMENT_IN_PROGRESS", err.Error())
		case errors.Is(err, ErrNotConfirmed):
			response.Unprocessable(w, "NOT_CONFIRMED", err.Error())
		case errors.Is(err, ErrThresholdNotMet):
			response.Unprocessable(w, "THRESHOLD_NOT_MET", err.Error())
		case errors.Is(err, ErrNoFee):
			response.Unprocessable(w, "NO_FEE", err.Error())
		case errors.Is(err, ErrNoArticles):
			response.Unprocessable(w, "NO_ARTICLES", err.Error())
		case errors.Is(err, ErrNoSuccessfulPayouts):
			response.ErrorWithData(w, http.StatusBadGateway, "PAYOUT_FAILED", res.Message, res)
		case errors.Is(err, ErrClaimLost):
			logger.FromContext(r.Context()).Error().Err(err).Str("page_view_id", id).Msg("Settlement needs reconciliation")
			response.ErrorWithData(w, http.StatusConflict, "SETTLEMENT_CONFLICT", res.Message, res)
		default:
			logger.FromContext(r.Context()).Error().Err(err).Str("page_view_id", id).Msg("Settlement failed")
			if res != nil {
				response.ErrorWithData(w, http.StatusInternalServerError, "INTERNAL_ERROR", res.Message, res)
				return
			}
			response.InternalError(w)
		}
		return
	}

	response.OK(w, res)
}

// Routes mounts under /pageviews.
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Post("/{id}/settle", h.Settle)
	return r
}
