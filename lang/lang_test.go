package lang

import (
	"context"
	"testing"
)

func TestMessage_Fallbacks(t *testing.T) {
	if got := Message("en", MsgInvalidCode); got != "This code is not valid." {
		t.Fatalf("en: %q", got)
	}
	if got := Message("fr", MsgInvalidCode); got != "El código no es válido." {
		t.Fatalf("unknown language should use es, got %q", got)
	}
	if got := Message("es", "nope"); got != "nope" {
		t.Fatalf("unknown key should echo, got %q", got)
	}
	if got := Message("en", MsgAlreadyPaid, "PARTNER"); got != "You already have an active membership (PARTNER)." {
		t.Fatalf("format: %q", got)
	}
}

func TestFromContext(t *testing.T) {
	if got := FromContext(context.Background()); got != Default {
		t.Fatalf("default: %q", got)
	}
	if got := FromContext(WithLanguage(context.Background(), "en")); got != "en" {
		t.Fatalf("got %q", got)
	}
}
