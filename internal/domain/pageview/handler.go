package pageview

import (
	"errors"
	"net/http"

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

// Record handles POST /topics/{topicID}/pageviews
func (h *Handler) Record(w http.ResponseWriter, r *http.Request) {
	s, ok := middleware.GetSession(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req RecordInput
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if errs := validator.Validate(req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	pv, err := h.svc.Record(r.Context(), callerOf(s), chi.URLParam(r, "topicID"), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	response.OK(w, pv)
}

// List handles GET /topics/{topicID}/pageviews
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	s, ok := middleware.GetSession(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	items, err := h.svc.ListByTopic(r.Context(), callerOf(s), chi.URLParam(r, "topicID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	response.OK(w, items)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrTopicNotFound):
		response.NotFound(w, "Topic not found")
	case errors.Is(err, ErrForbidden):
		response.Forbidden(w, err.Error())
	case errors.Is(err, ErrAlreadyPaid):
		response.Conflict(w, "Page views for this month are already paid")
	case errors.Is(err, ErrPeriodNotAllowed):
		response.Unprocessable(w, "PERIOD_NOT_ALLOWED", err.Error())
	case errors.Is(err, ErrDeadlinePassed):
		response.Unprocessable(w, "DEADLINE_PASSED", err.Error())
	case errors.Is(err, ErrFuturePeriod):
		response.Unprocessable(w, "FUTURE_PERIOD", err.Error())
	default:
		logger.FromContext(r.Context()).Error().Err(err).Msg("Page view request failed")
		response.InternalError(w)
	}
}

func callerOf(s middleware.Session) ledger.Caller {
	return ledger.Caller{UserID: s.UserID, IsAdmin: s.IsAdmin, IsAdvertiser: s.IsAdvertiser}
}

// Routes mounts under /topics/{topicID}/pageviews.
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Post("/", h.Record)
	r.Get("/", h.List)
	return r
}
