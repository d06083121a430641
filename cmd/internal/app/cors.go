package app

import (
	"net/http"
	"net/url"
	"strings"
)

// Rules is the cross-origin allow policy, decoupled from any framework
// callback shape so it can be tested as a plain predicate.
type Rules struct {
	// Origins are full allowed origins, e.g. "https://app.example.com".
	Origins []string

	// AllowLocalhost admits localhost and loopback origins on any port.
	AllowLocalhost bool

	// PreviewSuffix admits any https origin whose host ends with this
	// suffix, e.g. ".preview.example.com".
	PreviewSuffix string
}

// RulesFromConfig builds the origin policy from app configuration.
func RulesFromConfig(cfg Config) Rules {
	return Rules{
		Origins:        cfg.AllowedOrigins,
		AllowLocalhost: cfg.AllowLocalhost,
		PreviewSuffix:  cfg.PreviewSuffix,
	}
}

// OriginAllowed reports whether the given Origin header value is
// admitted by the rule set.
func (r Rules) OriginAllowed(origin string) bool {
	origin = strings.TrimRight(strings.TrimSpace(origin), "/")
	if origin == "" {
		return false
	}

	for _, allowed := range r.Origins {
		if strings.EqualFold(origin, strings.TrimRight(strings.TrimSpace(allowed), "/")) {
			return true
		}
	}

	u, err := url.Parse(origin)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return false
	}
	host := strings.ToLower(u.Hostname())

	if r.AllowLocalhost {
		if host == "localhost" || host == "127.0.0.1" || host == "::1" {
			return true
		}
	}

	if r.PreviewSuffix != "" && u.Scheme == "https" {
		if strings.HasSuffix(host, strings.ToLower(r.PreviewSuffix)) {
			return true
		}
	}

	return false
}

// OriginPatterns derives websocket.Accept host patterns from the rules
// so the HTTP and websocket layers agree on the same policy.
func (r Rules) OriginPatterns() []string {
	var patterns []string
	for _, o := range r.Origins {
		u, err := url.Parse(strings.TrimSpace(o))
		if err != nil || u.Host == "" {
			continue
		}
		patterns = append(patterns, u.Host)
	}
	if r.AllowLocalhost {
		patterns = append(patterns, "localhost:*", "127.0.0.1:*")
	}
	if r.PreviewSuffix != "" {
		patterns = append(patterns, "*"+strings.TrimPrefix(r.PreviewSuffix, "*"))
	}
	return patterns
}

// WithCORS applies the origin policy to cross-origin requests. The auth
// endpoints are called with credentials from foreign origins, so the
// allowed origin is always echoed back verbatim, never wildcarded.
func WithCORS(next http.Handler, rules Rules) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && rules.OriginAllowed(origin) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Add("Vary", "Origin")

			if r.Method == http.MethodOptions {
				h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
				h.Set("Access-Control-Max-Age", "600")
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}
