package middleware

import (
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/charlesng35/adboard/pkg/metrics"
)

func TestMetricsLabelsByRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(Metrics())
	r.GET("/api/workspaces/:id", func(c *gin.Context) {
		require.EqualValues(t, 1, testutil.ToFloat64(metrics.RequestsInFlight))
		c.Status(http.StatusOK)
	})

	before := testutil.CollectAndCount(metrics.APILatency)
	require.Equal(t, http.StatusOK, serve(r, "/api/workspaces/4f1c").Code)
	require.Equal(t, http.StatusOK, serve(r, "/api/workspaces/9a2b").Code)
	require.Equal(t, http.StatusNotFound, serve(r, "/wp-login.php").Code)
	require.Equal(t, http.StatusNotFound, serve(r, "/.env").Code)

	// Two series: the route template and the shared unmatched label.
	require.Equal(t, before+2, testutil.CollectAndCount(metrics.APILatency))
	require.EqualValues(t, 0, testutil.ToFloat64(metrics.RequestsInFlight))
}

func TestRateLimitCountsRejections(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(RateLimit(NewMemoryRateStore(), 1, time.Minute))
	r.GET("/api/workspaces", func(c *gin.Context) { c.Status(http.StatusOK) })

	counter := metrics.RateLimited.WithLabelValues("/api/workspaces")
	before := testutil.ToFloat64(counter)

	require.Equal(t, http.StatusOK, serve(r, "/api/workspaces").Code)
	require.Equal(t, http.StatusTooManyRequests, serve(r, "/api/workspaces").Code)
	require.Equal(t, before+1, testutil.ToFloat64(counter))
}
