package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/charlesng35/adboard/internal/app"
	"github.com/charlesng35/adboard/internal/cache"
	"github.com/charlesng35/adboard/internal/database/testutil"
	"github.com/charlesng35/adboard/internal/models"
)

func testConfig(t *testing.T) *app.Config {
	t.Helper()

	cfg := &app.Config{
		Database: app.DatabaseConfig{Driver: "sqlite", Path: ":memory:"},
		Auth: app.AuthConfig{
			JWT: app.JWTSettings{Secret: "bootstrap-test-secret", Issuer: "test", TTL: time.Hour},
		},
		Invitations: app.InvitationConfig{TTL: time.Hour, TokenBytes: 32},
		Maintenance: app.MaintenanceConfig{
			Enabled:             true,
			Schedule:            "@every 1h",
			OrphanGracePeriod:   time.Minute,
			InvitationRetention: time.Hour,
		},
		Monitoring: app.MonitoringConfig{Health: app.HealthConfig{Enabled: true}},
		RateLimit:  app.RateLimitConfig{Enabled: true, Requests: 100, Window: time.Minute, Backend: "auto"},
	}
	return cfg
}

func TestBootstrapRuntime(t *testing.T) {
	cfg := testConfig(t)
	cfg.Email.SMTP = app.SMTPConfig{Enabled: true, Host: "localhost", Port: 2525, From: "noreply@example.com"}

	stack, err := bootstrapRuntime(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { stack.Shutdown(context.Background(), zap.NewNop()) })

	require.NotNil(t, stack.DB)
	require.NotNil(t, stack.DBStore)
	require.NotNil(t, stack.Reconciler)
	require.Nil(t, stack.Redis)
	require.NotNil(t, stack.Router)

	require.True(t, stack.DB.Migrator().HasTable(&models.WorkspaceMember{}))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/health", nil)
	stack.Router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestBootstrapRuntimeRejectsBadSMTPConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Maintenance.Enabled = false
	cfg.Email.SMTP = app.SMTPConfig{Enabled: true}

	_, err := bootstrapRuntime(context.Background(), cfg, zap.NewNop())
	require.Error(t, err)
	require.Contains(t, err.Error(), "smtp")
}

func TestSelectRateStore(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	dbStore := cache.NewDatabaseStore(db)

	kind := func(backend string, dbStore *cache.DatabaseStore) string {
		return fmt.Sprintf("%T", selectRateStore(backend, nil, dbStore))
	}

	require.Equal(t, "*middleware.memoryRateStore", kind("memory", dbStore))
	require.Equal(t, "*middleware.sharedRateStore", kind("database", dbStore))
	require.Equal(t, "*middleware.sharedRateStore", kind("auto", dbStore))
	require.Equal(t, "*middleware.sharedRateStore", kind("redis", dbStore))
	require.Equal(t, "*middleware.memoryRateStore", kind("", nil))
}

func TestLoadApplicationConfig(t *testing.T) {
	t.Run("missing path", func(t *testing.T) {
		_, err := loadApplicationConfig(filepath.Join(t.TempDir(), "nope"))
		require.Error(t, err)
	})

	t.Run("file path uses its directory", func(t *testing.T) {
		dir := t.TempDir()
		file := filepath.Join(dir, "config.yaml")
		require.NoError(t, os.WriteFile(file, []byte("server:\n  port: 9123\ninvitations:\n  base_url: https://ads.example.com\n"), 0o600))

		cfg, err := loadApplicationConfig(file)
		require.NoError(t, err)
		require.Equal(t, 9123, cfg.Server.Port)
		require.Equal(t, "https://ads.example.com", cfg.Invitations.BaseURL)
	})
}

func TestShutdownTimeout(t *testing.T) {
	require.Equal(t, defaultShutdownTimeout, shutdownTimeout(&app.Config{}))
	require.Equal(t, 3*time.Second, shutdownTimeout(&app.Config{Server: app.ServerConfig{ShutdownTimeout: 3 * time.Second}}))
}
