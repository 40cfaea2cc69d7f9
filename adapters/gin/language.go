package authgin

import (
	"regexp"
	"strings"

	"github.com/PaulFidika/paywallkit/lang"
	"github.com/gin-gonic/gin"
)

type LanguageConfig struct {
	Supported  []string
	Default    string
	QueryParam string
	CookieName string
}

func (c *LanguageConfig) defaulted() LanguageConfig {
	out := LanguageConfig{}
	if c != nil {
		out = *c
	}
	if strings.TrimSpace(out.Default) == "" {
		out.Default = lang.Default
	}
	if len(out.Supported) == 0 {
		out.Supported = lang.Supported()
	}
	if strings.TrimSpace(out.QueryParam) == "" {
		out.QueryParam = "lang"
	}
	if strings.TrimSpace(out.CookieName) == "" {
		out.CookieName = "lang"
	}
	return out
}

var reSimpleLang = regexp.MustCompile(`^[a-z]{2}$`)

// normalizeLangCode reduces "es-MX" or "EN_us" to a bare two-letter code.
func normalizeLangCode(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	if i := strings.IndexAny(s, "-_"); i >= 0 {
		s = s[:i]
	}
	if !reSimpleLang.MatchString(s) {
		return ""
	}
	return s
}

type langSet map[string]struct{}

func newLangSet(supported []string) langSet {
	m := make(langSet, len(supported))
	for _, s := range supported {
		if n := normalizeLangCode(s); n != "" {
			m[n] = struct{}{}
		}
	}
	return m
}

// pick normalizes raw and returns it if supported.
func (s langSet) pick(raw string) string {
	l := normalizeLangCode(raw)
	if l == "" {
		return ""
	}
	if _, ok := s[l]; !ok {
		return ""
	}
	return l
}

func (s langSet) fromAcceptLanguage(header string) string {
	for _, part := range strings.Split(header, ",") {
		if i := strings.IndexByte(part, ';'); i >= 0 {
			part = part[:i]
		}
		if l := s.pick(part); l != "" {
			return l
		}
	}
	return ""
}

func (s langSet) fromPathPrefix(path string) string {
	seg := strings.TrimLeft(path, "/")
	if i := strings.IndexByte(seg, '/'); i >= 0 {
		seg = seg[:i]
	}
	if len(seg) != 2 {
		return ""
	}
	return s.pick(seg)
}

// resolveRequestLanguage: `?lang` > `/:lang/` prefix > `lang` cookie >
// Accept-Language > configured default.
func resolveRequestLanguage(c *gin.Context, cfg LanguageConfig) string {
	set := newLangSet(cfg.Supported)
	if l := set.pick(c.Query(cfg.QueryParam)); l != "" {
		return l
	}
	if l := set.fromPathPrefix(c.Request.URL.Path); l != "" {
		return l
	}
	if cv, err := c.Cookie(cfg.CookieName); err == nil {
		if l := set.pick(cv); l != "" {
			return l
		}
	}
	if l := set.fromAcceptLanguage(c.GetHeader("Accept-Language")); l != "" {
		return l
	}
	if l := set.pick(cfg.Default); l != "" {
		return l
	}
	return lang.Default
}

// LanguageMiddleware infers the request language and attaches it to the request context.
func LanguageMiddleware(cfg *LanguageConfig) gin.HandlerFunc {
	c := cfg.defaulted()
	return func(g *gin.Context) {
		l := resolveRequestLanguage(g, c)
		g.Set("paywall.language", l)
		g.Request = g.Request.WithContext(lang.WithLanguage(g.Request.Context(), l))
		g.Next()
	}
}
