package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/adboard/internal/api"
	"github.com/charlesng35/adboard/internal/app"
	"github.com/charlesng35/adboard/internal/app/maintenance"
	iauth "github.com/charlesng35/adboard/internal/auth"
	"github.com/charlesng35/adboard/internal/cache"
	"github.com/charlesng35/adboard/internal/database"
	"github.com/charlesng35/adboard/internal/middleware"
	"github.com/charlesng35/adboard/internal/notifications"
	"github.com/charlesng35/adboard/internal/services"
	"github.com/charlesng35/adboard/pkg/logger"
	"github.com/charlesng35/adboard/pkg/mail"
)

// runtimeStack bundles long-lived services used by the HTTP server.
type runtimeStack struct {
	DB         *gorm.DB
	Redis      *cache.RedisStore
	DBStore    *cache.DatabaseStore
	Reconciler *maintenance.Reconciler
	RateStore  middleware.RateStore
	Router     *gin.Engine
}

// bootstrapRuntime initialises the database, caches, background jobs and the HTTP router.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			stack.Shutdown(context.Background(), log)
		}
	}()

	// enable gin debug mod
	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	stack.DB, err = initialiseDatabase(cfg)
	if err != nil {
		return nil, err
	}
	stack.DBStore = cache.NewDatabaseStore(stack.DB)

	if cfg.Cache.Redis.Enabled {
		if stack.Redis, err = cache.NewRedisStore(ctx, cfg.Cache.RedisClientConfig()); err != nil {
			log.Warn("redis unavailable; falling back to database-backed operations", zap.Error(err))
			stack.Redis = nil
		} else {
			log.Info("redis connected", zap.String("addr", cfg.Cache.Redis.Address))
		}
	}

	jwtSvc, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise jwt service: %w", err)
	}

	invitationSvc, err := services.NewInvitationService(stack.DB, cfg.Invitations.ServiceOptions()...)
	if err != nil {
		return nil, fmt.Errorf("initialise invitation service: %w", err)
	}

	if cfg.Maintenance.Enabled {
		stack.Reconciler, err = maintenance.NewReconciler(stack.DB, invitationSvc,
			maintenance.WithSchedule(cfg.Maintenance.Schedule),
			maintenance.WithOrphanGracePeriod(cfg.Maintenance.OrphanGracePeriod),
			maintenance.WithInvitationRetention(cfg.Maintenance.InvitationRetention),
			maintenance.WithCacheStore(stack.DBStore),
		)
		if err != nil {
			return nil, fmt.Errorf("initialise reconciler: %w", err)
		}
		if err := stack.Reconciler.Start(); err != nil {
			return nil, fmt.Errorf("start maintenance jobs: %w", err)
		}
	}

	stack.RateStore = selectRateStore(cfg.RateLimit.Backend, stack.Redis, stack.DBStore)

	routerOpts := []api.RouterOption{}
	if stack.Redis != nil {
		routerOpts = append(routerOpts, api.WithHealthCheck("redis", stack.Redis))
	}
	notifier, err := invitationNotifier(cfg, stack.DB)
	if err != nil {
		return nil, err
	}
	if notifier != nil {
		routerOpts = append(routerOpts, api.WithInvitationNotifier(notifier))
		log.Info("invitation email enabled", zap.String("smtp_host", cfg.Email.SMTP.Host))
	}

	stack.Router, err = api.NewRouter(stack.DB, jwtSvc, cfg, stack.RateStore, routerOpts...)
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

// selectRateStore maps the configured backend to a store. auto prefers redis
// and falls back to the database.
func selectRateStore(backend string, redisStore *cache.RedisStore, dbStore *cache.DatabaseStore) middleware.RateStore {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "memory":
		return middleware.NewMemoryRateStore()
	case "database":
		if dbStore != nil {
			return middleware.NewSharedRateStore(dbStore)
		}
	case "redis":
		if redisStore != nil {
			return middleware.NewSharedRateStore(redisStore)
		}
		if dbStore != nil {
			return middleware.NewSharedRateStore(dbStore)
		}
	default:
		if redisStore != nil {
			return middleware.NewSharedRateStore(redisStore)
		}
		if dbStore != nil {
			return middleware.NewSharedRateStore(dbStore)
		}
	}
	return middleware.NewMemoryRateStore()
}

func invitationNotifier(cfg *app.Config, db *gorm.DB) (services.InvitationNotifier, error) {
	if !cfg.Email.SMTP.Enabled {
		return nil, nil
	}
	mailer, err := mail.NewSMTPMailer(cfg.Email.SMTPSettings())
	if err != nil {
		return nil, fmt.Errorf("initialise smtp mailer: %w", err)
	}
	notifier, err := notifications.NewInvitationMailer(db, mailer)
	if err != nil {
		return nil, fmt.Errorf("initialise invitation mailer: %w", err)
	}
	return notifier, nil
}

// Shutdown gracefully stops background jobs and releases resources.
func (s *runtimeStack) Shutdown(ctx context.Context, log *zap.Logger) {
	if s == nil {
		return
	}

	if s.Reconciler != nil {
		<-s.Reconciler.Stop().Done()
		if _, err := s.Reconciler.RunOnce(ctx); err != nil {
			log.Warn("maintenance shutdown sweep failed", zap.Error(err))
		}
	}

	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			log.Warn("redis shutdown", zap.Error(err))
		}
	}

	if s.DB != nil {
		closeDatabase(s.DB, log)
	}
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := cfg.Database.ConnectionConfig()
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	logger.WithModule("database").Info("database connected", zap.String("driver", dbCfg.Driver))
	return db, nil
}

func closeDatabase(db *gorm.DB, log *zap.Logger) {
	if db == nil {
		return
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Warn("failed to obtain underlying sql DB for closing", zap.Error(err))
		return
	}

	if err := sqlDB.Close(); err != nil {
		log.Warn("failed to close database", zap.Error(err))
	}
}
