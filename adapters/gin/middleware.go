// Package authgin mounts session verification and paywall gates on gin.
package authgin

import (
	"errors"

	"github.com/PaulFidika/paywallkit/adapters/ginutil"
	"github.com/PaulFidika/paywallkit/core"
	"github.com/PaulFidika/paywallkit/entitlements"
	"github.com/PaulFidika/paywallkit/lang"
	"github.com/PaulFidika/paywallkit/session"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// SessionMiddleware verifies the bearer token when one is sent. Requests
// without a valid token continue anonymously; RequireSession rejects them.
func SessionMiddleware(v session.Verifier, log logrus.FieldLogger) gin.HandlerFunc {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return func(c *gin.Context) {
		raw, err := session.BearerToken(c.GetHeader("Authorization"))
		if err != nil || v == nil {
			c.Next()
			return
		}
		sess, err := v.Verify(c.Request.Context(), raw)
		if err != nil {
			log.WithError(err).Debug("session token rejected")
			c.Next()
			return
		}
		c.Set(ginutil.UserIDKey, sess.UserID)
		c.Request = c.Request.WithContext(session.WithSession(c.Request.Context(), sess))
		c.Next()
	}
}

// RequireSession answers 401 UNAUTHENTICATED when no session was verified.
func RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := ginutil.Session(c); !ok {
			ginutil.Unauthorized(c, entitlements.CodeUnauthenticated,
				lang.Message(lang.FromContext(c.Request.Context()), lang.MsgLoginRequired))
			return
		}
		c.Next()
	}
}

// EntitlementMiddleware resolves the caller's entitlement once per request.
func EntitlementMiddleware(svc *core.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		Entitlement(c, svc)
		c.Next()
	}
}

// Entitlement returns the request's entitlement, resolving it on first use.
func Entitlement(c *gin.Context, svc *core.Service) entitlements.Entitlement {
	return ginutil.Entitlement(c, func() entitlements.Entitlement {
		sess, _ := ginutil.Session(c)
		return svc.Entitlements(c.Request.Context(), sess)
	})
}

// RequireFeature gates a paid-only feature. Missing sessions get 401 before
// any entitlement is resolved; callers who still need to pay get 402 PAYWALL.
func RequireFeature(svc *core.Service, feature string) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, ok := ginutil.Session(c)
		l := lang.FromContext(c.Request.Context())
		if !ok {
			ginutil.Unauthorized(c, entitlements.CodeUnauthenticated, lang.Message(l, lang.MsgLoginRequired))
			return
		}
		ent := Entitlement(c, svc)
		err := entitlements.GuardFeatureAccess(ent)
		svc.RecordDecision(c.Request.Context(), core.Decision{
			Gate:    core.GateFeature,
			UserID:  sess.UserID,
			Source:  ent.Source,
			Allowed: err == nil,
			Feature: feature,
		})
		if errors.Is(err, entitlements.ErrPaywall) {
			ginutil.PaymentRequired(c, entitlements.CodePaywall, lang.Message(l, lang.MsgSubscriptionRequired))
			return
		}
		c.Next()
	}
}
