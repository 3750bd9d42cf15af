package ledger

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/touristlog/touristlog-api/internal/middleware"
	"github.com/touristlog/touristlog-api/internal/pkg/logger"
	"github.com/touristlog/touristlog-api/internal/pkg/response"
	"github.com/touristlog/touristlog-api/internal/pkg/validator"
)

const defaultListLimit = 50

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// History handles GET /transactions
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	s, ok := middleware.GetSession(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	summary, err := h.svc.History(r.Context(), Caller{
		UserID:       s.UserID,
		IsAdmin:      s.IsAdmin,
		IsAdvertiser: s.IsAdvertiser,
	})
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			response.NotFound(w, "User not found")
			return
		}
		logger.FromContext(r.Context()).Error().Err(err).Msg("Failed to build transaction history")
		response.InternalError(w)
		return
	}

	response.OK(w, summary)
}

type listQuery struct {
	Type   string `json:"type" validate:"tx_type"`
	UserID string `json:"userId" validate:"max=128"`
	Limit  int    `json:"limit" validate:"gte=0,lte=200"`
	Offset int    `json:"offset" validate:"gte=0"`
}

// ListAll handles GET /admin/transactions
func (h *Handler) ListAll(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	req := listQuery{
		Type:   q.Get("type"),
		UserID: q.Get("userId"),
	}
	var err error
	if req.Limit, err = queryInt(q.Get("limit"), defaultListLimit); err != nil {
		response.BadRequest(w, "limit must be a number")
		return
	}
	if req.Offset, err = queryInt(q.Get("offset"), 0); err != nil {
		response.BadRequest(w, "offset must be a number")
		return
	}
	if errs := validator.Validate(req); errs != nil {
		response.ValidationError(w, errs)
		return
	}
	if req.Limit == 0 {
		req.Limit = defaultListLimit
	}

	f := TransactionFilter{Limit: req.Limit, Offset: req.Offset}
	if req.Type != "" {
		f.Types = []TransactionType{TransactionType(req.Type)}
	}
	if req.UserID != "" {
		f.UserIDs = []string{req.UserID}
	}
	if f.From, err = queryTime(q.Get("from")); err != nil {
		response.BadRequest(w, "from must be RFC3339 or YYYY-MM-DD")
		return
	}
	if f.To, err = queryTime(q.Get("to")); err != nil {
		response.BadRequest(w, "to must be RFC3339 or YYYY-MM-DD")
		return
	}

	listing, err := h.svc.ListAll(r.Context(), f)
	if err != nil {
		if errors.Is(err, ErrInvalidFilter) {
			response.BadRequest(w, "invalid filter")
			return
		}
		logger.FromContext(r.Context()).Error().Err(err).Msg("Failed to list transactions")
		response.InternalError(w)
		return
	}

	response.WithMeta(w, listing, response.Meta{
		Total:  listing.Total,
		Limit:  f.Limit,
		Offset: f.Offset,
	})
}

func queryInt(v string, def int) (int, error) {
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

func queryTime(v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Routes mounts the caller's history.
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Get("/", h.History)
	return r
}

// AdminRoutes mounts the admin listing.
func (h *Handler) AdminRoutes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Use(middleware.RequireAdmin())
	r.Get("/", h.ListAll)
	return r
}
