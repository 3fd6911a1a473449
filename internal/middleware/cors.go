package middleware

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// CORSConfig configures cross-origin access for the browser client.
// Sessions travel in cookies, so credentials are allowed and every origin
// must be listed explicitly.
type CORSConfig struct {
	// AllowedOrigins holds exact origins ("https://notes.example.com") or
	// subdomain patterns ("https://*.example.com", "*.example.com").
	// A bare "*" is ignored while AllowCredentials is set.
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	// MaxAge is the preflight cache lifetime in seconds.
	MaxAge int
}

// DefaultCORSConfig returns the settings the notes web client needs. ETag is
// exposed so the client can send it back in If-Match.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "If-Match", "X-Request-ID", "Accept", "Accept-Language"},
		ExposedHeaders: []string{
			"ETag",
			"X-Request-ID",
			"X-RateLimit-Remaining",
			"X-RateLimit-Reset",
			"Retry-After",
		},
		AllowCredentials: true,
		MaxAge:           86400,
	}
}

// originPattern is one parsed AllowedOrigins entry.
type originPattern struct {
	scheme string // empty matches http and https
	host   string // lowercased host[:port]; for wildcards the suffix after "*."
	suffix bool
}

func (p originPattern) matches(scheme, host string) bool {
	if p.scheme != "" && p.scheme != scheme {
		return false
	}
	if !p.suffix {
		return host == p.host
	}
	return strings.HasSuffix(host, "."+p.host)
}

func parseOriginPatterns(origins []string, credentials bool) []originPattern {
	var out []originPattern
	for _, raw := range origins {
		raw = strings.ToLower(strings.TrimSuffix(strings.TrimSpace(raw), "/"))
		if raw == "" || (raw == "*" && credentials) {
			continue
		}

		var p originPattern
		if scheme, rest, ok := strings.Cut(raw, "://"); ok {
			p.scheme, raw = scheme, rest
		}
		if strings.HasPrefix(raw, "*.") {
			p.suffix, raw = true, strings.TrimPrefix(raw, "*.")
		}
		p.host = raw
		out = append(out, p)
	}
	return out
}

// splitOrigin returns the lowercased scheme and host of an Origin header.
func splitOrigin(origin string) (scheme, host string, ok bool) {
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", "", false
	}
	return strings.ToLower(u.Scheme), strings.ToLower(u.Host), true
}

// CORS answers preflights and decorates responses for allowed origins.
// Requests from other origins pass through without CORS headers, except
// preflights, which get 403.
func CORS(cfg CORSConfig) func(http.Handler) http.Handler {
	patterns := parseOriginPatterns(cfg.AllowedOrigins, cfg.AllowCredentials)
	methods := strings.Join(cfg.AllowedMethods, ", ")
	headers := strings.Join(cfg.AllowedHeaders, ", ")
	exposed := strings.Join(cfg.ExposedHeaders, ", ")

	allowed := func(origin string) bool {
		scheme, host, ok := splitOrigin(origin)
		if !ok {
			return false
		}
		for _, p := range patterns {
			if p.matches(scheme, host) {
				return true
			}
		}
		return false
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Add("Vary", "Origin")
			preflight := r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != ""

			if !allowed(origin) {
				if preflight {
					w.WriteHeader(http.StatusForbidden)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			h.Set("Access-Control-Allow-Origin", origin)
			if cfg.AllowCredentials {
				h.Set("Access-Control-Allow-Credentials", "true")
			}

			if preflight {
				h.Add("Vary", "Access-Control-Request-Method")
				h.Add("Vary", "Access-Control-Request-Headers")
				h.Set("Access-Control-Allow-Methods", methods)
				h.Set("Access-Control-Allow-Headers", headers)
				if cfg.MaxAge > 0 {
					h.Set("Access-Control-Max-Age", strconv.Itoa(cfg.MaxAge))
				}
				w.WriteHeader(http.StatusNoContent)
				return
			}

			if exposed != "" {
				h.Set("Access-Control-Expose-Headers", exposed)
			}
			next.ServeHTTP(w, r)
		})
	}
}
