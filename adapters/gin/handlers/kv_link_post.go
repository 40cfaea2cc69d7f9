package handlers

import (
	"net/http"

	"github.com/PaulFidika/paywallkit/adapters/ginutil"
	"github.com/PaulFidika/paywallkit/core"
	"github.com/gin-gonic/gin"
)

// HandleKVLinkPOST reopens the KV gate after a fresh sign-in.
func HandleKVLinkPOST(svc *core.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, _ := ginutil.Session(c)
		g, ok, err := svc.LinkGrant(c.Request.Context(), sess)
		if err != nil {
			ginutil.ServerErrWithLog(c, "link_failed", err, "failed to link kv grant")
			return
		}
		if !ok {
			c.JSON(http.StatusOK, gin.H{"linked": false})
			return
		}
		c.JSON(http.StatusOK, gin.H{"linked": true, "expires_at": g.ExpiresAt})
	}
}
