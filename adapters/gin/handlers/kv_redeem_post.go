package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/PaulFidika/paywallkit/adapters/ginutil"
	"github.com/PaulFidika/paywallkit/core"
	"github.com/PaulFidika/paywallkit/lang"
	"github.com/PaulFidika/paywallkit/redemption"
	"github.com/gin-gonic/gin"
)

func HandleKVRedeemPOST(svc *core.Service, rl ginutil.RateLimiter) gin.HandlerFunc {
	type redeemReq struct {
		Code     string `json:"code"`
		DeviceID string `json:"device_id"`
	}
	return func(c *gin.Context) {
		if !ginutil.AllowNamed(c, rl, ginutil.RLKVRedeem) {
			ginutil.TooMany(c)
			return
		}
		var req redeemReq
		if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Code) == "" {
			ginutil.BadRequest(c, "invalid_request")
			return
		}
		l := lang.FromContext(c.Request.Context())
		sess, _ := ginutil.Session(c)
		g, err := svc.RedeemCode(c.Request.Context(), sess, req.Code, req.DeviceID)
		switch {
		case err == nil:
			c.JSON(http.StatusOK, gin.H{"ok": true, "expires_at": g.ExpiresAt, "message": lang.Message(l, lang.MsgCodeRedeemed)})
		case errors.Is(err, redemption.ErrInvalidCode):
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_code", "message": lang.Message(l, lang.MsgInvalidCode)})
		case errors.Is(err, redemption.ErrCodeAlreadyUsed):
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "code_already_used", "message": lang.Message(l, lang.MsgCodeAlreadyUsed)})
		default:
			ginutil.ServerErrWithLog(c, "redeem_failed", err, "failed to redeem kv code")
		}
	}
}
