package authgin

import (
	"time"

	"github.com/PaulFidika/paywallkit/adapters/ginutil"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// RequestLogger logs one entry per request. Health and metrics probes log at
// debug.
func RequestLogger(log logrus.FieldLogger) gin.HandlerFunc {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Set(ginutil.LoggerKey, log)
		c.Next()
		entry := log.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.FullPath(),
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
			"ip":       c.ClientIP(),
		})
		if uid, ok := c.Get(ginutil.UserIDKey); ok {
			entry = entry.WithField("user_id", uid)
		}
		switch p := c.FullPath(); {
		case p == "/health" || p == "/metrics":
			entry.Debug("request")
		case c.Writer.Status() >= 500:
			entry.Error("request")
		default:
			entry.Info("request")
		}
	}
}
