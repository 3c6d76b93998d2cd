package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/charlesng35/adboard/internal/app"
	iauth "github.com/charlesng35/adboard/internal/auth"
	"github.com/charlesng35/adboard/internal/handlers"
	"github.com/charlesng35/adboard/internal/middleware"
	"github.com/charlesng35/adboard/internal/services"
)

// RouterOption customises NewRouter.
type RouterOption func(*routerOptions)

type routerOptions struct {
	notifier     services.InvitationNotifier
	healthChecks map[string]handlers.Pinger
}

// WithInvitationNotifier delivers new invitations, for example by email.
func WithInvitationNotifier(n services.InvitationNotifier) RouterOption {
	return func(o *routerOptions) {
		o.notifier = n
	}
}

// WithHealthCheck adds a dependency to the /health probe.
func WithHealthCheck(name string, p handlers.Pinger) RouterOption {
	return func(o *routerOptions) {
		if p != nil {
			o.healthChecks[name] = p
		}
	}
}

// NewRouter builds the Gin engine, wires middleware and registers the workspace API.
func NewRouter(db *gorm.DB, jwt *iauth.JWTService, cfg *app.Config, rateStore middleware.RateStore, opts ...RouterOption) (*gin.Engine, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if jwt == nil {
		return nil, fmt.Errorf("jwt service must be provided")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config must be provided")
	}

	options := routerOptions{healthChecks: map[string]handlers.Pinger{}}
	for _, opt := range opts {
		opt(&options)
	}

	r := gin.New()
	if len(cfg.Server.TrustedProxies) > 0 {
		if err := r.SetTrustedProxies(cfg.Server.TrustedProxies); err != nil {
			return nil, fmt.Errorf("trusted proxies: %w", err)
		}
	}

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORSOrigins...))
	if cfg.RateLimit.Enabled {
		r.Use(middleware.RateLimit(rateStore, cfg.RateLimit.Requests, cfg.RateLimit.Window))
	}
	r.NoRoute(middleware.NotFoundHandler)

	registerHealthRoutes(r, db, cfg, options.healthChecks)

	api := r.Group("/api")
	api.Use(middleware.Auth(jwt))

	invitationOpts := cfg.Invitations.ServiceOptions()
	if options.notifier != nil {
		invitationOpts = append(invitationOpts, services.WithInvitationNotifier(options.notifier))
	}

	if err := registerWorkspaceRoutes(api, db, invitationOpts); err != nil {
		return nil, err
	}

	return r, nil
}
