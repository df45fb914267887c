package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/resreg/resreg/internal/api/handler"
	"github.com/resreg/resreg/internal/api/middleware"
	"github.com/resreg/resreg/internal/directory"
	"github.com/resreg/resreg/internal/feature"
	"github.com/resreg/resreg/internal/identity"
	"github.com/resreg/resreg/internal/project"
	"github.com/resreg/resreg/internal/reconcile"
	"github.com/resreg/resreg/internal/role"
	"github.com/resreg/resreg/internal/session"
	"github.com/resreg/resreg/internal/token"
	"github.com/resreg/resreg/internal/user"
)

// RouterDeps holds all dependencies needed by the router.
type RouterDeps struct {
	Flags         feature.Source
	GatewaySecret []byte
	Resolver      identity.Resolver
	Reconciler    *reconcile.Reconciler
	Cookies       *session.CookieCodec
	CookieName    string
	TokenService  *token.Service
	TokenRepo     token.Repository
	ProjectRepo   project.Repository
	UserRepo      user.Repository
	RoleRepo      role.Repository
	DirChecker    directory.HealthChecker
	DBPinger      handler.DBPinger
	Registry      *prometheus.Registry
	Version       string

	RateLimitRPS   int
	RateLimitBurst int
}

// NewRouter creates and configures a Chi router with all middleware and routes.
func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery)
	r.Use(chimiddleware.Logger)

	if deps.Registry != nil {
		httpMetrics := middleware.NewHTTPMetrics(deps.Registry)
		r.Use(httpMetrics.Handler)
		r.Method("GET", "/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
	}

	general := middleware.NewRateLimiter(deps.RateLimitRPS, deps.RateLimitBurst, deps.CookieName)
	r.Use(general.Handler)

	healthHandler := handler.NewHealthHandler(deps.DirChecker, deps.DBPinger, deps.Version)
	r.Get("/health", healthHandler.ServeHTTP)

	sessionHandler := handler.NewSessionHandler(deps.Flags, deps.GatewaySecret, deps.Resolver, deps.Reconciler, deps.Cookies)
	guard := middleware.Session(deps.Resolver, deps.Cookies, deps.TokenService)

	// Login gets its own, stricter bucket.
	login := middleware.NewRateLimiter(1, 5, deps.CookieName)

	r.Route("/auth", func(r chi.Router) {
		r.With(login.Handler).Post("/login", sessionHandler.Login)
		r.Delete("/session", sessionHandler.Logout)
		r.With(guard).Get("/session", sessionHandler.Current)
	})

	projectHandler := handler.NewProjectHandler(deps.ProjectRepo, deps.UserRepo)
	syncHandler := handler.NewSyncHandler(deps.Reconciler, deps.ProjectRepo, deps.RoleRepo)
	userHandler := handler.NewUserHandler(deps.UserRepo)
	tokenHandler := handler.NewTokenHandler(deps.TokenService, deps.TokenRepo)

	requireAdmin := middleware.RequireProjectRole(deps.RoleRepo, role.TypeAdmin)

	r.Group(func(r chi.Router) {
		r.Use(guard)

		r.Route("/projects", func(r chi.Router) {
			r.Get("/", projectHandler.List)
			r.Get("/{id}", projectHandler.GetByID)
			r.With(requireAdmin).Patch("/{id}", projectHandler.Update)
			r.With(requireAdmin).Post("/{id}/sync", syncHandler.Sync)
			r.With(requireAdmin).Post("/{id}/roles/{roleId}/sync", syncHandler.SyncRole)
		})

		r.Route("/users", func(r chi.Router) {
			r.Get("/me", userHandler.Me)
			r.Put("/me/favorites", userHandler.SetFavorites)
		})

		r.Route("/tokens", func(r chi.Router) {
			r.Post("/", tokenHandler.Create)
			r.Get("/", tokenHandler.List)
			r.Delete("/{id}", tokenHandler.Delete)
		})
	})

	return r
}
