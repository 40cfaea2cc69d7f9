// Package lang carries the request language and the user-facing messages
// returned by the paywall endpoints.
package lang

import "context"

// Default is used when no language could be inferred from the request.
const Default = "es"

type ctxKey struct{}

// WithLanguage attaches a request language to ctx.
func WithLanguage(ctx context.Context, language string) context.Context {
	return context.WithValue(ctx, ctxKey{}, language)
}

// LanguageFromContext reads a request language from ctx.
func LanguageFromContext(ctx context.Context) (string, bool) {
	v := ctx.Value(ctxKey{})
	s, ok := v.(string)
	return s, ok && s != ""
}

// FromContext returns the request language or Default.
func FromContext(ctx context.Context) string {
	if l, ok := LanguageFromContext(ctx); ok {
		return l
	}
	return Default
}
