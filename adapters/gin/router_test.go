package authgin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/PaulFidika/paywallkit/core"
	"github.com/PaulFidika/paywallkit/entitlements"
	"github.com/PaulFidika/paywallkit/payments/mercadopago"
	"github.com/PaulFidika/paywallkit/redemption"
	"github.com/PaulFidika/paywallkit/session"
	memorystore "github.com/PaulFidika/paywallkit/storage/memory"
	pwtesting "github.com/PaulFidika/paywallkit/testing"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

const secret = "super-secret-jwt-token-with-at-least-32-characters"

type billingStub struct {
	src entitlements.Source
	err error
}

func (b *billingStub) PaidSource(context.Context, string) (entitlements.Source, error) {
	return b.src, b.err
}

type redeemerStub struct{}

func (redeemerStub) Redeem(_ context.Context, _, code, _ string) (redemption.Grant, error) {
	switch code {
	case "VITAKV-used":
		return redemption.Grant{}, redemption.ErrCodeAlreadyUsed
	case "VITAKV-good":
		return redemption.Grant{ExpiresAt: time.Now().Add(24 * time.Hour)}, nil
	}
	return redemption.Grant{}, redemption.ErrInvalidCode
}

func (redeemerStub) IsActive(context.Context, string) (redemption.Grant, bool, error) {
	return redemption.Grant{}, false, nil
}

type prefStub struct{}

func (prefStub) CreatePreference(context.Context, mercadopago.PreferenceRequest) (mercadopago.Preference, error) {
	return mercadopago.Preference{ID: "pref-1", InitPoint: "https://mp/pay"}, nil
}

type enqueueStub struct{ ids []string }

func (e *enqueueStub) EnqueuePaymentApproved(_ context.Context, id string) error {
	e.ids = append(e.ids, id)
	return nil
}

type harness struct {
	r     *gin.Engine
	bill  *billingStub
	gates *memorystore.GateStore
	queue *enqueueStub
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)
	h := &harness{bill: &billingStub{}, gates: memorystore.NewGateStore(time.Hour), queue: &enqueueStub{}}
	t.Cleanup(func() { _ = h.gates.Close() })

	svc := core.NewService(core.Deps{
		Billing:     h.bill,
		Gates:       h.gates,
		Redeemer:    redeemerStub{},
		Preferences: prefStub{},
	})
	h.r = gin.New()
	Register(h.r, RouterDeps{
		Service:  svc,
		Verifier: session.NewHMACVerifier(session.Config{JWTSecret: secret, Audience: "authenticated"}),
		Payments: h.queue,
	})
	return h
}

func (h *harness) do(method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

const userID = "0b7f5c8e-3d2a-4f6b-9c1d-2e3f4a5b6c7d"

func TestEntitlements_RequiresSession(t *testing.T) {
	h := newHarness(t)
	w := h.do(http.MethodGet, "/me/entitlements", "", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, entitlements.CodeUnauthenticated, decode(t, w)["code"])

	w = h.do(http.MethodGet, "/me/entitlements", "not-a-jwt", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestEntitlements_Paid(t *testing.T) {
	h := newHarness(t)
	h.bill.src = entitlements.SourcePaid
	tok := pwtesting.SignHMAC(secret, userID, "s1", time.Hour)

	w := h.do(http.MethodGet, "/me/entitlements", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	require.Equal(t, "PAID", body["source"])
	require.Equal(t, false, body["paywall_enabled"])
}

func TestCheckoutAccess_InverseOfFeature(t *testing.T) {
	tok := pwtesting.SignHMAC(secret, userID, "s1", time.Hour)
	reading := map[string]int{"systolic": 120, "diastolic": 80, "heart_rate": 70}

	cases := []struct {
		name string
		src  entitlements.Source
		err  error
	}{
		{"none", entitlements.SourceNone, nil},
		{"paid", entitlements.SourcePaid, nil},
		{"enterprise", entitlements.SourceEnterprise, nil},
		{"lookup failure", entitlements.SourcePaid, errors.New("billing down")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			h.bill.src, h.bill.err = tc.src, tc.err

			w := h.do(http.MethodGet, "/checkout/access", tok, nil)
			require.Equal(t, http.StatusOK, w.Code)
			checkoutAllowed := decode(t, w)["allowed"].(bool)

			w = h.do(http.MethodPost, "/features/triage/pressure", tok, reading)
			featureAllowed := w.Code == http.StatusOK
			if !featureAllowed {
				require.Equal(t, http.StatusPaymentRequired, w.Code)
				require.Equal(t, entitlements.CodePaywall, decode(t, w)["code"])
			}
			require.NotEqual(t, checkoutAllowed, featureAllowed)
		})
	}
}

func TestCheckoutAccess_RedirectsPaid(t *testing.T) {
	h := newHarness(t)
	h.bill.src = entitlements.SourcePartner
	tok := pwtesting.SignHMAC(secret, userID, "s1", time.Hour)

	body := decode(t, h.do(http.MethodGet, "/checkout/access", tok, nil))
	require.Equal(t, false, body["allowed"])
	require.Equal(t, "/mi-plan", body["redirect_to"])
}

func TestFeature_UnauthenticatedBeforePaywall(t *testing.T) {
	h := newHarness(t)
	w := h.do(http.MethodPost, "/features/triage/pressure", "", map[string]int{"systolic": 120})
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestBillingSubscriptions(t *testing.T) {
	h := newHarness(t)
	tok := pwtesting.SignHMAC(secret, userID, "s1", time.Hour)
	req := map[string]any{"plan": "Individual", "frequency": "Mensual", "amount": 199}

	w := h.do(http.MethodPost, "/billing/subscriptions", tok, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	require.Equal(t, "pref-1", decode(t, w)["preference_id"])

	h.bill.src = entitlements.SourceEnterprise
	w = h.do(http.MethodPost, "/billing/subscriptions?lang=en", tok, req)
	require.Equal(t, http.StatusConflict, w.Code)
	body := decode(t, w)
	require.Equal(t, entitlements.CodeAlreadyPaid, body["code"])
	require.Equal(t, "ENTERPRISE", body["source"])
	require.Contains(t, body["message"], "ENTERPRISE")

	w = h.do(http.MethodPost, "/billing/subscriptions", tok, map[string]any{"plan": "x"})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBillingSubscriptions_UnknownFrequency(t *testing.T) {
	h := newHarness(t)
	tok := pwtesting.SignHMAC(secret, userID, "s1", time.Hour)

	w := h.do(http.MethodPost, "/billing/subscriptions", tok, map[string]any{"plan": "Individual", "frequency": "weekly", "amount": 199})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "invalid_frequency", decode(t, w)["error"])

	w = h.do(http.MethodPost, "/billing/subscriptions", tok, map[string]any{"plan": "Individual", "frequency": "Trimestral", "amount": 549})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func TestKVRedeem_ThenLogoutClearsGate(t *testing.T) {
	h := newHarness(t)
	tok := pwtesting.SignHMAC(secret, userID, "s1", time.Hour)

	w := h.do(http.MethodPost, "/kv/redeem", tok, map[string]string{"code": "VITAKV-nope"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "invalid_code", decode(t, w)["error"])

	w = h.do(http.MethodPost, "/kv/redeem", tok, map[string]string{"code": "VITAKV-used"})
	require.Equal(t, http.StatusConflict, w.Code)

	w = h.do(http.MethodPost, "/kv/redeem", tok, map[string]string{"code": "VITAKV-good", "device_id": "d1"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decode(t, h.do(http.MethodGet, "/me/entitlements", tok, nil))
	require.Equal(t, "KV", body["source"])

	// the flag is scoped to the session that redeemed
	other := pwtesting.SignHMAC(secret, userID, "s2", time.Hour)
	require.Equal(t, "NONE", decode(t, h.do(http.MethodGet, "/me/entitlements", other, nil))["source"])

	require.Equal(t, http.StatusOK, h.do(http.MethodDelete, "/auth/session", tok, nil).Code)
	require.Equal(t, "NONE", decode(t, h.do(http.MethodGet, "/me/entitlements", tok, nil))["source"])
}

func TestMercadoPagoWebhook_AlwaysOK(t *testing.T) {
	h := newHarness(t)

	w := h.do(http.MethodPost, "/webhooks/mercadopago", "", map[string]any{"type": "payment", "data": map[string]string{"id": "123"}})
	require.Equal(t, http.StatusOK, w.Code)
	w = h.do(http.MethodPost, "/webhooks/mercadopago?topic=merchant_order&id=9", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = h.do(http.MethodPost, "/webhooks/mercadopago?type=payment&data.id=456", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	require.Equal(t, []string{"123", "456"}, h.queue.ids)
}

func TestSessionMiddleware_JWKS(t *testing.T) {
	gin.SetMode(gin.TestMode)
	issuer := pwtesting.NewTestIssuer()
	defer issuer.Close()

	v, err := session.NewJWKSVerifier(context.Background(), session.Config{JWKSURL: issuer.JWKSURL(), Audience: issuer.Audience()})
	require.NoError(t, err)

	var got *entitlements.Session
	r := gin.New()
	r.Use(SessionMiddleware(v, nil))
	r.GET("/x", RequireSession(), func(c *gin.Context) {
		got, _ = session.FromContext(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer "+issuer.CreateToken("user-1", "sess-9"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusNoContent, w.Code)
	require.Equal(t, "sess-9", got.ID)

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer "+issuer.CreateExpiredToken("user-1", "sess-9"))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCurrentUser(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := core.NewService(core.Deps{Billing: &billingStub{src: entitlements.SourcePaid}})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	v, ok := CurrentUser(c, svc)
	require.False(t, ok)
	require.Equal(t, "NONE", v.Source)
	require.True(t, v.PaywallEnabled)
	require.Equal(t, "es", v.Language)

	c, _ = gin.CreateTestContext(httptest.NewRecorder())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	ctx := session.WithSession(req.Context(), &entitlements.Session{UserID: "u1", ID: "s1", Email: "a@b.c"})
	c.Request = req.WithContext(ctx)
	v, ok = CurrentUser(c, svc)
	require.True(t, ok)
	require.Equal(t, "PAID", v.Source)
	require.Equal(t, "a@b.c", v.Email)
}
