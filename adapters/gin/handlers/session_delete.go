package handlers

import (
	"net/http"

	"github.com/PaulFidika/paywallkit/adapters/ginutil"
	"github.com/PaulFidika/paywallkit/core"
	"github.com/gin-gonic/gin"
)

// HandleSessionDELETE ends the paywall side of a session: the KV gate is cleared.
func HandleSessionDELETE(svc *core.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, _ := ginutil.Session(c)
		if err := svc.EndSession(c.Request.Context(), sess); err != nil {
			ginutil.ServerErrWithLog(c, "failed_to_end_session", err, "failed to clear kv gate")
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}
