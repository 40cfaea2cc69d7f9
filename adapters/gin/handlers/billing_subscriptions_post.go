package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/PaulFidika/paywallkit/adapters/ginutil"
	"github.com/PaulFidika/paywallkit/billing"
	"github.com/PaulFidika/paywallkit/core"
	"github.com/PaulFidika/paywallkit/entitlements"
	"github.com/PaulFidika/paywallkit/lang"
	"github.com/gin-gonic/gin"
)

func HandleBillingSubscriptionsPOST(svc *core.Service, rl ginutil.RateLimiter) gin.HandlerFunc {
	type subscribeReq struct {
		Plan      string  `json:"plan"`
		Frequency string  `json:"frequency"`
		Amount    float64 `json:"amount"`
		Origin    string  `json:"origin"`
		Channel   string  `json:"channel"`
	}
	return func(c *gin.Context) {
		if !ginutil.AllowNamed(c, rl, ginutil.RLCheckoutCreate) {
			ginutil.TooMany(c)
			return
		}
		var req subscribeReq
		if err := c.ShouldBindJSON(&req); err != nil || req.Amount <= 0 {
			ginutil.BadRequest(c, "invalid_request")
			return
		}
		if strings.TrimSpace(req.Plan) == "" {
			req.Plan = "Individual"
		}
		sess, _ := ginutil.Session(c)
		pref, err := svc.StartCheckout(c.Request.Context(), sess, core.CheckoutRequest{
			Plan:      req.Plan,
			Frequency: req.Frequency,
			Amount:    req.Amount,
			Origin:    req.Origin,
			Channel:   req.Channel,
		})
		var already *entitlements.AlreadyPaidError
		switch {
		case err == nil:
			c.JSON(http.StatusCreated, gin.H{"preference_id": pref.ID, "init_point": pref.InitPoint})
		case errors.As(err, &already):
			l := lang.FromContext(c.Request.Context())
			ginutil.Conflict(c, entitlements.CodeAlreadyPaid,
				lang.Message(l, lang.MsgAlreadyPaid, already.Source), gin.H{"source": already.Source})
		case errors.Is(err, billing.ErrInvalidFrequency):
			ginutil.BadRequest(c, "invalid_frequency")
		case errors.Is(err, entitlements.ErrUnauthenticated):
			ginutil.Unauthorized(c, entitlements.CodeUnauthenticated,
				lang.Message(lang.FromContext(c.Request.Context()), lang.MsgLoginRequired))
		case errors.Is(err, core.ErrNotConfigured):
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "payments_unavailable"})
		default:
			ginutil.ServerErrWithLog(c, "checkout_failed", err, "failed to open checkout")
		}
	}
}
