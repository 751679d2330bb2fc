package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/nsgates/gateway/internal/api/handler"
	"github.com/nsgates/gateway/internal/api/middleware"
	"github.com/nsgates/gateway/internal/auth"
	"github.com/nsgates/gateway/internal/config"
	"github.com/nsgates/gateway/internal/core"
)

type Server struct {
	router   chi.Router
	logger   zerolog.Logger
	services *core.Services
	registry *core.Registry
	verifier *auth.Verifier
	signer   *auth.TokenSigner
	pool     *pgxpool.Pool
	cfg      *config.Config
}

func NewServer(logger zerolog.Logger, pool *pgxpool.Pool, cfg *config.Config) (*Server, error) {
	signer := auth.NewTokenSigner(cfg.JWTSecret, cfg.JWTExpiration, cfg.JWTRefreshExpiration)
	services := core.NewServices(core.NewDB(pool), signer)
	introspector := auth.NewIntrospectionClient(
		cfg.IntrospectURL, cfg.OAuth2ClientID, cfg.OAuth2ClientSecret, cfg.IntrospectTimeout,
	)

	registry := core.NewRegistry()
	for _, et := range []core.EntityType{
		{Name: "customuser", Slug: "users", Store: services.User},
		{Name: "apikey", Slug: "apikeys", Store: services.APIKey},
	} {
		if err := registry.Register(et); err != nil {
			return nil, err
		}
	}

	s := &Server{
		router:   chi.NewRouter(),
		logger:   logger,
		services: services,
		registry: registry,
		verifier: auth.NewVerifier(introspector, services.IdentityStore()),
		signer:   signer,
		pool:     pool,
		cfg:      cfg,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s, nil
}

func (s *Server) setupMiddleware() {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.RequestLogger(s.logger))
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Metrics)
}

func (s *Server) setupRoutes() {
	// Prometheus metrics endpoint
	s.router.Handle("/metrics", promhttp.Handler())

	// Health check endpoints
	s.router.Get("/status", s.handleHealthz)
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Get("/readyz", s.handleReadyz)

	// Admin token integration
	authToken := handler.NewAuthToken(s.services.Token, s.services.User, s.signer)
	s.router.Route("/auth", func(r chi.Router) {
		r.Post("/login", authToken.Login)
		r.Post("/refresh", authToken.Refresh)
		r.Post("/logout", authToken.Logout)
	})

	apiKey := handler.NewAPIKey(s.services.APIKey)

	// Two parallel route groups per registered entity type: /o/{slug} for
	// bearer tokens gated per verb, /k/{slug} for API keys with full access.
	for _, et := range s.registry.Types() {
		res := handler.NewResource(et)
		view := middleware.RequirePermission(auth.ViewCode(et.Name))
		change := middleware.RequirePermission(auth.ChangeCode(et.Name))
		del := middleware.RequirePermission(auth.DeleteCode(et.Name))

		s.router.Route("/o/"+et.Slug, func(r chi.Router) {
			r.Use(middleware.BearerAuth(s.verifier))

			r.With(view).Get("/", res.List)
			r.With(view).Get("/{id}", res.Get)
			r.With(view).Get("/{id}/history", res.History)
			r.With(change).Patch("/{id}", res.Patch)
			r.With(del).Delete("/{id}", res.Delete)
			r.With(del).Post("/{id}/restore", res.Restore)
		})

		s.router.Route("/k/"+et.Slug, func(r chi.Router) {
			r.Use(middleware.APIKeyAuth(s.verifier))

			// Key minting is itself an API-key-authenticated operation.
			if et.Slug == "apikeys" {
				r.Post("/", apiKey.Create)
			}

			r.Get("/", res.List)
			r.Get("/{id}", res.Get)
			r.Get("/{id}/history", res.History)
			r.Patch("/{id}", res.Patch)
			r.Delete("/{id}", res.Delete)
			r.Post("/{id}/restore", res.Restore)
		})
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	checks := map[string]string{}
	healthy := true

	if err := s.pool.Ping(ctx); err != nil {
		checks["db"] = err.Error()
		healthy = false
	} else {
		checks["db"] = "ok"
	}

	w.Header().Set("Content-Type", "application/json")
	if healthy {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(checks)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
