package category

import (
	"net/http"

	"github.com/frahmantamala/reimbursement-tracker/internal/transport"
)

type Handler struct {
	*transport.BaseHandler
}

func NewHandler(baseHandler *transport.BaseHandler) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
	}
}

// GetCategories handles GET /categories
func (h *Handler) GetCategories(w http.ResponseWriter, r *http.Request) {
	categories := make([]CategoryResponse, 0, len(all))
	for _, c := range All() {
		categories = append(categories, c.ToResponse())
	}

	h.WriteJSON(w, http.StatusOK, CategoriesResponse{
		Categories: categories,
	})
}
