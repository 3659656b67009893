package httpapi

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	goAuthz "github.com/MrEthical07/goAuthz"
	goauthzprom "github.com/MrEthical07/goAuthz/metrics/export/prometheus"
	"github.com/MrEthical07/goAuthz/middleware"
	"github.com/MrEthical07/goAuthz/permission"
)

// Permission codes guarding the administrative routes.
const (
	PermUserManage       = "user_manage"
	PermRoleManage       = "role_manage"
	PermPermissionManage = "permission_manage"

	// SuperAdminRole bundles every administrative permission.
	SuperAdminRole = "super_admin"
)

// Permissions returns the definitions a router engine must declare.
func Permissions() []goAuthz.PermissionDefinition {
	return []goAuthz.PermissionDefinition{
		{Code: PermUserManage, Name: "Manage users", Description: "List, read, activate and deactivate accounts."},
		{Code: PermRoleManage, Name: "Manage roles", Description: "Create roles and assign them to users."},
		{Code: PermPermissionManage, Name: "Manage permissions", Description: "Create permissions and grant them to roles."},
	}
}

// Roles returns the role templates seeded alongside Permissions.
func Roles() []goAuthz.RoleTemplate {
	return []goAuthz.RoleTemplate{{
		Code:        SuperAdminRole,
		Name:        "Super administrator",
		Description: "Full administrative access.",
		Permissions: []string{PermUserManage, PermRoleManage, PermPermissionManage},
	}}
}

// Options tunes the router.
type Options struct {
	// Metrics mounts GET /metrics when true.
	Metrics bool
	// RequestTimeout bounds handler execution. Zero disables it.
	RequestTimeout time.Duration
}

type api struct {
	engine *goAuthz.Engine
	logger *slog.Logger
}

// NewRouter builds the HTTP handler for engine. It panics when engine does
// not declare the permissions returned by Permissions.
func NewRouter(engine *goAuthz.Engine, logger *slog.Logger, opts Options) http.Handler {
	for _, def := range Permissions() {
		if !engine.PermissionDeclared(def.Code) {
			panic(fmt.Sprintf("httpapi: permission %q not declared on engine", def.Code))
		}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	a := &api{engine: engine, logger: logger}

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(middleware.ClientInfo)
	r.Use(requestLogger(logger))
	if opts.RequestTimeout > 0 {
		r.Use(chimw.Timeout(opts.RequestTimeout))
	}

	r.Get("/healthz", a.healthz)
	if opts.Metrics {
		r.Method(http.MethodGet, "/metrics", goauthzprom.Handler(engine))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", a.register)
			r.Post("/login", a.login)
			r.Post("/refresh", a.refresh)
			r.Post("/logout", a.logout)
		})

		r.Route("/users", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAuthenticated(engine))
				r.Get("/me", a.me)
				r.Put("/me", a.updateMe)
			})

			r.Group(func(r chi.Router) {
				r.Use(middleware.Guard(engine, permission.Any(PermUserManage)))
				r.Get("/", a.listUsers)
				r.Get("/{id}", a.getUser)
				r.Put("/{id}/activate", a.activateUser)
				r.Put("/{id}/deactivate", a.deactivateUser)
			})
		})
	})

	return r
}
