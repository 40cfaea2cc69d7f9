package authgin

import (
	"github.com/PaulFidika/paywallkit/adapters/ginutil"
	"github.com/PaulFidika/paywallkit/core"
	"github.com/PaulFidika/paywallkit/lang"
	"github.com/gin-gonic/gin"
)

// UserView is the caller as seen by handlers: identity, language and access.
type UserView struct {
	UserID         string `json:"user_id,omitempty"`
	Email          string `json:"email,omitempty"`
	SessionID      string `json:"session_id,omitempty"`
	Language       string `json:"language"`
	Source         string `json:"source"`
	PaywallEnabled bool   `json:"paywall_enabled"`
}

// CurrentUser returns a snapshot of the caller. The bool is false for
// anonymous requests, which always see the paywall.
func CurrentUser(c *gin.Context, svc *core.Service) (UserView, bool) {
	v := UserView{Language: lang.FromContext(c.Request.Context())}
	ent := Entitlement(c, svc)
	v.Source, v.PaywallEnabled = ent.Source.String(), ent.PaywallEnabled

	sess, ok := ginutil.Session(c)
	if !ok {
		return v, false
	}
	v.UserID, v.Email, v.SessionID = sess.UserID, sess.Email, sess.ID
	return v, true
}
