package handlers

import (
	"net/http"

	"github.com/PaulFidika/paywallkit/adapters/ginutil"
	"github.com/PaulFidika/paywallkit/core"
	"github.com/PaulFidika/paywallkit/entitlements"
	"github.com/gin-gonic/gin"
)

// DefaultPlanPath is where callers who already have access are sent.
const DefaultPlanPath = "/mi-plan"

// HandleCheckoutAccessGET tells the client whether to render the checkout or
// redirect to the plan page.
func HandleCheckoutAccessGET(svc *core.Service, planPath string) gin.HandlerFunc {
	if planPath == "" {
		planPath = DefaultPlanPath
	}
	return func(c *gin.Context) {
		ent := entitlementFor(c, svc)
		err := entitlements.GuardCheckoutAccess(ent)
		var uid string
		if sess, ok := ginutil.Session(c); ok {
			uid = sess.UserID
		}
		svc.RecordDecision(c.Request.Context(), core.Decision{
			Gate: core.GateCheckout, UserID: uid, Source: ent.Source, Allowed: err == nil,
		})
		if err != nil {
			c.JSON(http.StatusOK, gin.H{"allowed": false, "redirect_to": planPath, "source": ent.Source})
			return
		}
		c.JSON(http.StatusOK, gin.H{"allowed": true, "source": ent.Source})
	}
}
