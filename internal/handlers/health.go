package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/adboard/pkg/logger"
	"github.com/charlesng35/adboard/pkg/response"
)

// Pinger is a dependency the readiness check can probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Health reports ok when the database and every named dependency answer a
// ping, and 503 with the failing checks otherwise.
func Health(db *gorm.DB, deps map[string]Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(requestContext(c), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		checks := gin.H{}

		probe := func(name string, ping func(context.Context) error) {
			checks[name] = "ok"
			if err := ping(ctx); err != nil {
				logger.WithModule("health").Warn("dependency ping failed", zap.String("dependency", name), zap.Error(err))
				checks[name] = "unavailable"
				status = http.StatusServiceUnavailable
			}
		}

		if db != nil {
			probe("database", func(ctx context.Context) error {
				sqlDB, err := db.DB()
				if err != nil {
					return err
				}
				return sqlDB.PingContext(ctx)
			})
		}
		for name, dep := range deps {
			if dep != nil {
				probe(name, dep.Ping)
			}
		}

		overall := "ok"
		if status != http.StatusOK {
			overall = "degraded"
		}
		response.Success(c, status, gin.H{"status": overall, "checks": checks})
	}
}
