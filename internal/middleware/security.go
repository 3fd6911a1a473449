package middleware

import (
	"net/http"
)

// SecurityConfig configures the hardening middleware.
type SecurityConfig struct {
	// IsDevelopment drops HSTS so plain-HTTP local setups keep working.
	IsDevelopment bool
	// MaxRequestBodySize caps request bodies in bytes. The default fits a
	// note at the 1 MiB content limit after JSON escaping.
	MaxRequestBodySize int64
}

// DefaultSecurityConfig returns the production settings.
func DefaultSecurityConfig() SecurityConfig {
	return SecurityConfig{
		IsDevelopment:      false,
		MaxRequestBodySize: 2 << 20,
	}
}

// securityHeaders is the fixed header set every notesd response carries.
// Responses are JSON only, so the CSP forbids all subresources and framing.
func securityHeaders(cfg SecurityConfig) http.Header {
	h := http.Header{}
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("X-Frame-Options", "DENY")
	h.Set("X-XSS-Protection", "0")
	h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
	h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
	h.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=(), payment=(), usb=()")
	h.Set("Cross-Origin-Opener-Policy", "same-origin")
	h.Set("Cross-Origin-Resource-Policy", "same-origin")
	// Note bodies and session responses must never sit in shared caches.
	h.Set("Cache-Control", "no-store")
	if !cfg.IsDevelopment {
		h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains; preload")
	}
	return h
}

// Security sets securityHeaders on every response. Handlers may override
// individual values afterwards.
func Security(cfg SecurityConfig) func(http.Handler) http.Handler {
	headers := securityHeaders(cfg)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			dst := w.Header()
			for name, values := range headers {
				dst[name] = append([]string(nil), values...)
			}
			dst.Del("Server")

			next.ServeHTTP(w, r)
		})
	}
}

// MaxBodySize rejects bodies larger than maxBytes. A declared Content-Length
// over the limit is refused with 413 before the handler runs. Chunked bodies
// are cut off by http.MaxBytesReader and surface as a decode error, which the
// note handlers also map to 413.
func MaxBodySize(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body == nil || r.Body == http.NoBody {
				next.ServeHTTP(w, r)
				return
			}
			if r.ContentLength > maxBytes {
				writeError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Request body too large")
				return
			}

			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
