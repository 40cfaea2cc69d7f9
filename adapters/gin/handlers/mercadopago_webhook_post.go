package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/PaulFidika/paywallkit/adapters/ginutil"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// PaymentEnqueuer is satisfied by *jobs.Queue.
type PaymentEnqueuer interface {
	EnqueuePaymentApproved(ctx context.Context, paymentID string) error
}

// HandleMercadoPagoWebhookPOST hands payment notifications to the job queue.
// It always answers 200. The job re-reads the payment from the API.
func HandleMercadoPagoWebhookPOST(q PaymentEnqueuer, rl ginutil.RateLimiter, log logrus.FieldLogger) gin.HandlerFunc {
	type notification struct {
		Type   string `json:"type"`
		Action string `json:"action"`
		Data   struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return func(c *gin.Context) {
		if !ginutil.AllowNamed(c, rl, ginutil.RLWebhook) {
			ginutil.TooMany(c)
			return
		}
		var n notification
		_ = c.ShouldBindJSON(&n)

		kind := firstNonEmpty(n.Type, c.Query("type"), c.Query("topic"))
		id := firstNonEmpty(n.Data.ID, c.Query("data.id"), c.Query("id"))
		if kind != "payment" || id == "" {
			c.String(http.StatusOK, "OK")
			return
		}
		if err := q.EnqueuePaymentApproved(c.Request.Context(), id); err != nil {
			log.WithError(err).WithField("payment_id", id).Error("failed to enqueue payment notification")
		}
		c.String(http.StatusOK, "OK")
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
