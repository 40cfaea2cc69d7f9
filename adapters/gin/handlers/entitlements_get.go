package handlers

import (
	"net/http"

	"github.com/PaulFidika/paywallkit/adapters/ginutil"
	"github.com/PaulFidika/paywallkit/core"
	"github.com/PaulFidika/paywallkit/entitlements"
	"github.com/gin-gonic/gin"
)

func entitlementFor(c *gin.Context, svc *core.Service) entitlements.Entitlement {
	return ginutil.Entitlement(c, func() entitlements.Entitlement {
		sess, _ := ginutil.Session(c)
		return svc.Entitlements(c.Request.Context(), sess)
	})
}

// HandleEntitlementsGET returns {source, paywall_enabled} for the caller.
func HandleEntitlementsGET(svc *core.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, entitlementFor(c, svc))
	}
}
