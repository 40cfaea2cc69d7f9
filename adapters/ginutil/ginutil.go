// Package ginutil holds the small response and rate-limit helpers shared by
// the gin handlers.
package ginutil

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// RateLimiter is implemented by ratelimit/memory and ratelimit/redis.
type RateLimiter interface {
	AllowNamed(bucket, key string) (bool, error)
}

// Rate limit buckets.
const (
	RLDefault        = "default"
	RLKVRedeem       = "kv_redeem"
	RLCheckoutCreate = "checkout_create"
	RLWebhook        = "webhook"
)

// UserIDKey is the gin context key holding the authenticated user id.
const UserIDKey = "auth.user_id"

// LoggerKey is the gin context key holding the request's logrus logger.
const LoggerKey = "paywall.logger"

// WithLogger makes log the request logger for downstream helpers. A nil log
// leaves any logger already set in place.
func WithLogger(log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if log != nil {
			c.Set(LoggerKey, log)
		}
		c.Next()
	}
}

// Logger returns the request logger, or the logrus standard logger when no
// middleware set one.
func Logger(c *gin.Context) logrus.FieldLogger {
	if v, ok := c.Get(LoggerKey); ok {
		if l, ok := v.(logrus.FieldLogger); ok && l != nil {
			return l
		}
	}
	return logrus.StandardLogger()
}

// AllowNamed keys the bucket by user when authenticated, else by client IP.
// A nil limiter allows; a failing limiter also allows so Redis outages do not
// take the API down.
func AllowNamed(c *gin.Context, rl RateLimiter, bucket string) bool {
	if rl == nil {
		return true
	}
	key := c.ClientIP()
	if v, ok := c.Get(UserIDKey); ok {
		if s, _ := v.(string); s != "" {
			key = s
		}
	}
	ok, err := rl.AllowNamed(bucket, key)
	if err != nil {
		Logger(c).WithError(err).WithField("bucket", bucket).Warn("rate limiter unavailable")
		return true
	}
	return ok
}

func BadRequest(c *gin.Context, reason string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": reason})
}

func TooMany(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate_limited"})
}

func ServerErr(c *gin.Context, reason string) {
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": reason})
}

func ServerErrWithLog(c *gin.Context, reason string, err error, msg string) {
	Logger(c).WithError(err).WithFields(logrus.Fields{
		"path":   c.FullPath(),
		"reason": reason,
	}).Error(msg)
	ServerErr(c, reason)
}

// Coded answers with a taxonomy code and a localized message.
func Coded(c *gin.Context, status int, code, message string, extra gin.H) {
	body := gin.H{"code": code, "message": message}
	for k, v := range extra {
		body[k] = v
	}
	c.AbortWithStatusJSON(status, body)
}

func Unauthorized(c *gin.Context, code, message string) {
	Coded(c, http.StatusUnauthorized, code, message, nil)
}

func PaymentRequired(c *gin.Context, code, message string) {
	Coded(c, http.StatusPaymentRequired, code, message, nil)
}

func Conflict(c *gin.Context, code, message string, extra gin.H) {
	Coded(c, http.StatusConflict, code, message, extra)
}
