package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	limiter "github.com/ulule/limiter/v3"

	"github.com/noah-isme/backend-discount/internal/auth"
	"github.com/noah-isme/backend-discount/internal/discount"
	"github.com/noah-isme/backend-discount/internal/health"
	"github.com/noah-isme/backend-discount/internal/obs"
	"github.com/noah-isme/backend-discount/internal/ratelimit"
	"github.com/noah-isme/backend-discount/internal/security"
)

type routerDeps struct {
	Logger         zerolog.Logger
	HTTPMetrics    *obs.HTTPMetrics
	MetricsHandler http.Handler
	Tracing        bool
	CORSOrigins    []string
	Limiter        *limiter.Limiter
	Auth           *auth.Service
	Calculator     *discount.Calculator
	Health         health.Handler
	Headers        security.Headers
	MaxBodyBytes   int64
}

func newRouter(d routerDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if d.Tracing {
		r.Use(obs.TracingMiddleware)
	}
	if d.HTTPMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: d.HTTPMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: d.Logger}.Middleware)
	r.Use(d.Headers.Middleware)
	r.Use(security.BodyLimit{Max: d.MaxBodyBytes}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins(d.CORSOrigins),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders: []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		MaxAge:         300,
	}))

	if d.MetricsHandler != nil {
		r.Handle("/metrics", d.MetricsHandler)
	}
	r.Get("/health/live", d.Health.Live)
	r.Get("/health/ready", d.Health.Ready)

	authHandler := &auth.Handler{Service: d.Auth}
	authMiddleware := auth.Middleware{Service: d.Auth}
	discountHandler := &discount.Handler{Calc: d.Calculator}

	r.Route("/api", func(api chi.Router) {
		api.Use(ratelimit.Handler{
			Limiter: d.Limiter,
			OnError: func(err error) { d.Logger.Warn().Err(err).Msg("rate_limiter_unavailable") },
		}.Middleware)

		api.Post("/login", authHandler.Login)
		api.Group(func(protected chi.Router) {
			protected.Use(authMiddleware.RequireAuth)
			protected.Use(obs.PrincipalLogger)
			protected.Post("/discount/calculate", discountHandler.Calculate)
		})
	})
	return r
}

func allowedOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}
