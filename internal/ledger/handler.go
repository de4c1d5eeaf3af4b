package ledger

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/frahmantamala/reimbursement-tracker/internal/transport"
	"github.com/frahmantamala/reimbursement-tracker/pkg/logger"
)

type ServiceAPI interface {
	Balance(ctx context.Context, userID string, year int) (*Balance, error)
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

type budgetResponse struct {
	*Balance
	Remaining string `json:"remaining"`
}

// GetBudget handles GET /budget?year=YYYY for the caller.
func (h *Handler) GetBudget(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.RequireUserID(w, r, "GetBudget")
	if !ok {
		return
	}

	year := transport.QueryInt(r, "year", h.Now().UTC().Year())
	if year < 1 || year > 9999 {
		h.WriteError(w, http.StatusBadRequest, "invalid year")
		return
	}

	b, err := h.Service.Balance(r.Context(), userID, year)
	if err != nil {
		h.Logger.Error("GetBudget: service error", "error", err, "user_id", userID, "year", year)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, budgetResponse{Balance: b, Remaining: b.Remaining().StringFixed(2)})
}
