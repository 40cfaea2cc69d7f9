package lang

import "fmt"

// Message keys.
const (
	MsgSubscriptionRequired = "subscription_required"
	MsgAlreadyPaid          = "already_paid"
	MsgLoginRequired        = "login_required"
	MsgCodeRedeemed         = "code_redeemed"
	MsgInvalidCode          = "invalid_code"
	MsgCodeAlreadyUsed      = "code_already_used"
)

var catalog = map[string]map[string]string{
	"es": {
		MsgSubscriptionRequired: "Necesitas una membresía activa para usar esta función.",
		MsgAlreadyPaid:          "Ya cuentas con una membresía activa (%s).",
		MsgLoginRequired:        "Inicia sesión para continuar.",
		MsgCodeRedeemed:         "Código activado. Tienes acceso completo.",
		MsgInvalidCode:          "El código no es válido.",
		MsgCodeAlreadyUsed:      "Este código ya fue utilizado.",
	},
	"en": {
		MsgSubscriptionRequired: "An active membership is required to use this feature.",
		MsgAlreadyPaid:          "You already have an active membership (%s).",
		MsgLoginRequired:        "Please sign in to continue.",
		MsgCodeRedeemed:         "Code activated. You have full access.",
		MsgInvalidCode:          "This code is not valid.",
		MsgCodeAlreadyUsed:      "This code has already been used.",
	},
}

// Supported lists the languages with a message catalog.
func Supported() []string { return []string{"es", "en"} }

// Message returns the text for key in language, falling back to Default and
// then to the key itself. args fill the message's format verbs.
func Message(language, key string, args ...any) string {
	msgs, ok := catalog[language]
	if !ok {
		msgs = catalog[Default]
	}
	tmpl, ok := msgs[key]
	if !ok {
		if tmpl, ok = catalog[Default][key]; !ok {
			return key
		}
	}
	if len(args) == 0 {
		return tmpl
	}
	return fmt.Sprintf(tmpl, args...)
}
