package rest

import (
	"log/slog"
	"net/http"

	"github.com/frahmantamala/reimbursement-tracker/internal/auth"
	"github.com/frahmantamala/reimbursement-tracker/internal/blobstore"
	"github.com/frahmantamala/reimbursement-tracker/internal/category"
	"github.com/frahmantamala/reimbursement-tracker/internal/ledger"
	"github.com/frahmantamala/reimbursement-tracker/internal/reimbursement"
	"github.com/frahmantamala/reimbursement-tracker/internal/reporting"
	"github.com/frahmantamala/reimbursement-tracker/internal/transport/middleware"
	"github.com/frahmantamala/reimbursement-tracker/internal/transport/swagger"
	"github.com/frahmantamala/reimbursement-tracker/internal/user"
	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"
)

// Handlers groups everything the router mounts. Nil handlers are skipped.
// Role checks happen in the services; the router only authenticates.
type Handlers struct {
	Health        *HealthHandler
	Auth          *auth.Handler
	User          *user.Handler
	Category      *category.Handler
	Budget        *ledger.Handler
	Reimbursement *reimbursement.Handler
	Reporting     *reporting.Handler
	Files         *blobstore.Handler

	// OpenAPI is the raw document served at /openapi.yml.
	OpenAPI []byte
}

func RegisterAllRoutes(router *chi.Mux, h Handlers, allowedOrigins string, logger *slog.Logger) {
	// Apply global middleware
	router.Use(middleware.CORS(allowedOrigins))
	router.Use(chiMiddleware.RequestID)
	router.Use(middleware.RequestID)
	router.Use(middleware.LoggingMiddleware(logger))
	router.Use(middleware.RecoveryMiddleware(logger))

	// Serve OpenAPI spec at root (outside API prefix)
	if len(h.OpenAPI) > 0 {
		router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/yaml")
			_, _ = w.Write(h.OpenAPI)
		})
		router.Handle("/swagger/*", swagger.Handler())
	}

	// Mount API under /api/v1 to match OpenAPI basePath
	router.Route("/api/v1", func(r chi.Router) {
		if h.Health != nil {
			r.Get("/health", h.Health.healthCheckHandler)
			r.Get("/ping", h.Health.pingHandler)
		}

		if h.Auth != nil {
			r.Route("/auth", func(sr chi.Router) {
				sr.Post("/login", h.Auth.Login)
				sr.Post("/refresh", h.Auth.RefreshToken)
				sr.Post("/logout", h.Auth.Logout)
			})
		}

		// Public routes
		if h.Category != nil {
			r.Get("/categories", h.Category.GetCategories)
		}
		if h.Files != nil {
			r.Get("/files/*", h.Files.ServeFile)
		}

		if h.Auth == nil {
			return
		}

		// Protected routes that require authentication
		r.Group(func(pr chi.Router) {
			pr.Use(h.Auth.AuthMiddleware)

			if h.Budget != nil {
				pr.Get("/budget", h.Budget.GetBudget)
			}

			if h.User != nil {
				pr.Route("/users", func(ur chi.Router) {
					ur.Get("/me", h.User.GetCurrentUser)
					ur.Get("/managers", h.User.ListManagers)
					ur.Get("/team", h.User.ListTeam)

					ur.Get("/", h.User.ListUsers)
					ur.Post("/", h.User.CreateUser)
					ur.Get("/{id}", h.User.GetUser)
					ur.Put("/{id}", h.User.UpdateUser)
					ur.Post("/{id}/password", h.User.ResetPassword)
					ur.Delete("/{id}", h.User.DeactivateUser)
				})
			}

			if rh := h.Reimbursement; rh != nil {
				pr.Route("/requests", func(rr chi.Router) {
					rr.Post("/", rh.CreateRequest)
					rr.Get("/", rh.ListMyRequests)
					rr.Get("/{id}", rh.GetRequest)
					rr.Put("/{id}", rh.UpdateRequest)
					rr.Delete("/{id}", rh.DeleteRequest)
					rr.Get("/{id}/receipts", rh.ListReceipts)
					rr.Post("/{id}/receipts", rh.AttachReceipts)
					rr.Delete("/{id}/receipts/{name}", rh.RemoveReceipt)
				})

				pr.Route("/approvals", func(ar chi.Router) {
					ar.Get("/", rh.ListApprovals)
					ar.Post("/bulk", rh.BulkDecide)
					ar.Patch("/{id}", rh.DecideRequest)
				})

				pr.Get("/admin/requests", rh.ListAllRequests)
			}

			if h.Reporting != nil {
				pr.Route("/reports", func(rr chi.Router) {
					rr.Get("/summary", h.Reporting.GetSummary)
					rr.Get("/manager-summary", h.Reporting.GetManagerSummary)
				})
			}
		})
	})
}
