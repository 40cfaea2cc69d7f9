package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthCheck reports an error when a dependency is unavailable.
type HealthCheck func(ctx context.Context) error

// HandleHealthGET runs every check with a short deadline and answers 503 if
// any fails.
func HandleHealthGET(checks map[string]HealthCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		status := http.StatusOK
		out := gin.H{}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				out[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			out[name] = "ok"
		}
		c.JSON(status, gin.H{"ok": status == http.StatusOK, "checks": out})
	}
}
