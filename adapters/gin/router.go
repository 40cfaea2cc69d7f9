package authgin

import (
	"github.com/PaulFidika/paywallkit/adapters/gin/handlers"
	"github.com/PaulFidika/paywallkit/adapters/ginutil"
	"github.com/PaulFidika/paywallkit/core"
	"github.com/PaulFidika/paywallkit/metrics"
	"github.com/PaulFidika/paywallkit/session"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// FeatureTriage names the paid triage feature in decisions and metrics.
const FeatureTriage = "triage"

type RouterDeps struct {
	Service     *core.Service
	Verifier    session.Verifier
	RateLimiter ginutil.RateLimiter
	Payments    handlers.PaymentEnqueuer
	Health      map[string]handlers.HealthCheck
	Language    *LanguageConfig
	PlanPath    string
	Log         logrus.FieldLogger
}

// Register mounts every paywall route on r.
func Register(r gin.IRouter, d RouterDeps) {
	svc := d.Service
	r.Use(ginutil.WithLogger(d.Log), LanguageMiddleware(d.Language), SessionMiddleware(d.Verifier, d.Log))

	r.GET("/health", handlers.HandleHealthGET(d.Health))
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	if d.Payments != nil {
		r.POST("/webhooks/mercadopago", handlers.HandleMercadoPagoWebhookPOST(d.Payments, d.RateLimiter, d.Log))
	}

	authed := r.Group("", RequireSession())
	authed.GET("/me/entitlements", EntitlementMiddleware(svc), handlers.HandleEntitlementsGET(svc))
	authed.GET("/checkout/access", EntitlementMiddleware(svc), handlers.HandleCheckoutAccessGET(svc, d.PlanPath))
	authed.POST("/billing/subscriptions", handlers.HandleBillingSubscriptionsPOST(svc, d.RateLimiter))
	authed.POST("/kv/redeem", handlers.HandleKVRedeemPOST(svc, d.RateLimiter))
	authed.POST("/kv/link", handlers.HandleKVLinkPOST(svc))
	authed.DELETE("/auth/session", handlers.HandleSessionDELETE(svc))

	r.POST("/features/triage/pressure", RequireFeature(svc, FeatureTriage), handlers.HandleTriagePressurePOST())
}
