package httpserver

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/BenjaminPelletier/dss/internal/auth"
)

// Deps holds the handlers and auth gate the router mounts. Kept as a single
// struct so wiring order is explicit and NewServer stays a flat function.
type Deps struct {
	Gate        *auth.Gate
	RateLimiter *auth.RateLimiter
	CORSOrigins []string
	MetricsReg  *prometheus.Registry

	StatusHandler http.HandlerFunc

	SubscriptionsGet    http.HandlerFunc
	SubscriptionsQuery  http.HandlerFunc
	SubscriptionsPut    http.HandlerFunc
	SubscriptionsDelete http.HandlerFunc

	OperationsGet    http.HandlerFunc
	OperationsQuery  http.HandlerFunc
	OperationsPut    http.HandlerFunc
	OperationsDelete http.HandlerFunc
}

// Server holds the HTTP server dependencies.
type Server struct {
	Router    *chi.Mux
	Logger    *slog.Logger
	startedAt time.Time
}

// NewServer builds the chi router for the DSS node: global middleware, the
// unauthenticated status and metrics endpoints, and the two scope-guarded
// route groups from spec section 6's endpoint table.
func NewServer(logger *slog.Logger, deps Deps) *Server {
	s := &Server{
		Router:    chi.NewRouter(),
		Logger:    logger,
		startedAt: time.Now(),
	}

	s.Router.Use(RequestID)
	s.Router.Use(Logger(logger))
	s.Router.Use(Metrics)
	s.Router.Use(middleware.Recoverer)
	s.Router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	s.Router.Get("/healthz", s.handleHealthz)
	s.Router.Get("/dss/v1/status", deps.StatusHandler)
	s.Router.Handle("/metrics", promhttp.HandlerFor(deps.MetricsReg, promhttp.HandlerOpts{}))

	authMiddleware := auth.Middleware(deps.Gate, deps.RateLimiter, RespondError)

	scGuard := auth.RequireScopeMiddleware(RespondError, auth.ScopeStrategicCoordination)
	scOrCCGuard := auth.RequireScopeMiddleware(RespondError,
		auth.ScopeStrategicCoordination, auth.ScopeConstraintConsumption)

	s.Router.Route("/dss/v1/subscriptions", func(r chi.Router) {
		r.Use(authMiddleware)
		r.With(scOrCCGuard).Get("/{id}", deps.SubscriptionsGet)
		r.With(scOrCCGuard).Post("/query", deps.SubscriptionsQuery)
		r.With(scOrCCGuard).Put("/{id}", deps.SubscriptionsPut)
		r.With(scOrCCGuard).Delete("/{id}", deps.SubscriptionsDelete)
	})

	s.Router.Route("/dss/v1/operations", func(r chi.Router) {
		r.Use(authMiddleware)
		r.With(scGuard).Get("/{id}", deps.OperationsGet)
		r.With(scGuard).Post("/query", deps.OperationsQuery)
		r.With(scGuard).Put("/{id}", deps.OperationsPut)
		r.With(scGuard).Delete("/{id}", deps.OperationsDelete)
	})

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Router.ServeHTTP(w, r)
}

// handleHealthz is the process-liveness probe: it reports the process is up
// and serving, independent of the DSS protocol's own status endpoint.
func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	Respond(w, http.StatusOK, map[string]string{"status": "ok"})
}
