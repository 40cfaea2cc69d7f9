package ginutil

import (
	"github.com/PaulFidika/paywallkit/entitlements"
	"github.com/PaulFidika/paywallkit/session"
	"github.com/gin-gonic/gin"
)

const entitlementKey = "paywall.entitlement"

// Session returns the verified session attached by the session middleware.
func Session(c *gin.Context) (*entitlements.Session, bool) {
	return session.FromContext(c.Request.Context())
}

// Entitlement returns the entitlement resolved earlier in this request, or
// computes it with resolve and keeps it for later handlers.
func Entitlement(c *gin.Context, resolve func() entitlements.Entitlement) entitlements.Entitlement {
	if v, ok := c.Get(entitlementKey); ok {
		if e, ok := v.(entitlements.Entitlement); ok {
			return e
		}
	}
	e := resolve()
	c.Set(entitlementKey, e)
	return e
}
