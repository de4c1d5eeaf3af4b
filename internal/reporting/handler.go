package reporting

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	errors "github.com/frahmantamala/reimbursement-tracker/internal"
	"github.com/frahmantamala/reimbursement-tracker/internal/core/common/validation"
	"github.com/frahmantamala/reimbursement-tracker/internal/transport"
	"github.com/frahmantamala/reimbursement-tracker/pkg/logger"
)

type ServiceAPI interface {
	Summary(ctx context.Context, viewerID string, f Filter) (*Report, error)
	ManagerSummary(ctx context.Context, managerID string, now time.Time) (*TeamSummary, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
	Now     func() time.Time
}

func NewHandler(svc ServiceAPI) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     svc,
		Now:         time.Now,
	}
}

// GetSummary handles GET /reports/summary
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.RequireUserID(w, r, "GetSummary")
	if !ok {
		return
	}

	f, err := h.parseFilter(r)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	report, err := h.Service.Summary(r.Context(), userID, f)
	if err != nil {
		h.Logger.Error("GetSummary: service error", "error", err, "user_id", userID)
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, report)
}

// GetManagerSummary handles GET /reports/manager-summary
func (h *Handler) GetManagerSummary(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.RequireUserID(w, r, "GetManagerSummary")
	if !ok {
		return
	}

	summary, err := h.Service.ManagerSummary(r.Context(), userID, h.Now().UTC())
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, summary)
}

func (h *Handler) parseFilter(r *http.Request) (Filter, error) {
	q := r.URL.Query()
	f := Filter{
		Year:     transport.QueryInt(r, "year", 0),
		Month:    transport.QueryInt(r, "month", 0),
		Day:      transport.QueryInt(r, "day", 0),
		Category: q.Get("category"),
		Status:   q.Get("status"),
		Search:   strings.TrimSpace(q.Get("search")),
		TopN:     transport.QueryInt(r, "top", 0),
		Now:      h.Now().UTC(),
	}

	v := validation.NewValidator()
	v.Field("from", q.Get("from")).Date()
	v.Field("to", q.Get("to")).Date()
	v.Field("month", f.Month).Custom(between("month", 0, 12))
	v.Field("day", f.Day).Custom(between("day", 0, 31))
	if appErr := v.Validate(); appErr != nil {
		return Filter{}, appErr
	}

	if raw := q.Get("from"); raw != "" {
		from, _ := validation.ParseDate(raw)
		f.From = &from
	}
	if raw := q.Get("to"); raw != "" {
		to, _ := validation.ParseDate(raw)
		f.To = &to
	}
	return f, nil
}

func between(field string, min, max int) func(interface{}) *errors.AppError {
	return func(value interface{}) *errors.AppError {
		if n, ok := value.(int); ok && (n < min || n > max) {
			return errors.NewValidationFieldError(field, field+" is out of range", errors.ErrCodeValidationFailed)
		}
		return nil
	}
}
