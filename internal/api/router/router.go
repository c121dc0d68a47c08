package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	httpmiddleware "github.com/wolfman30/patron-payments/internal/http/middleware"
	"github.com/wolfman30/patron-payments/internal/payments"
	"github.com/wolfman30/patron-payments/pkg/logging"
)

// AdminRole is the JWT role allowed on /admin routes.
const AdminRole = "admin"

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	PaymentsHandler    *payments.Handler
	AdminAuthSecret    string
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", healthCheck)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	if cfg.PaymentsHandler != nil {
		r.Mount("/v1", cfg.PaymentsHandler.Routes())

		// Admin routes are only mounted when a signing secret is configured.
		if cfg.AdminAuthSecret != "" {
			r.Route("/admin", func(admin chi.Router) {
				admin.Use(httpmiddleware.StaffJWT(cfg.AdminAuthSecret, AdminRole))
				admin.Mount("/", cfg.PaymentsHandler.AdminRoutes())
			})
		}
	}

	return r
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
