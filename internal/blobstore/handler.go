package blobstore

import (
	"log/slog"
	"net/http"
	"path"
	"time"

	"github.com/frahmantamala/reimbursement-tracker/internal/transport"
	"github.com/frahmantamala/reimbursement-tracker/pkg/logger"
	"github.com/go-chi/chi"
)

type Handler struct {
	*transport.BaseHandler
	Store Store
}

func NewHandler(store Store) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Store:       store,
	}
}

// ServeFile handles GET /files/*
func (h *Handler) ServeFile(w http.ResponseWriter, r *http.Request) {
	p := chi.URLParam(r, "*")

	f, err := h.Store.Open(r.Context(), p)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	defer f.Close()

	w.Header().Set("Cache-Control", "private, max-age=3600")
	http.ServeContent(w, r, path.Base(p), time.Time{}, f)
}
