package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
)

// loggedHeaders is the complete set of request headers that reach the log.
// Cookie and Authorization carry session tokens and must never be added.
var loggedHeaders = []string{"Content-Type", "If-Match", "Origin"}

// publicPathPrefix marks routes whose last segment is a share slug. A slug
// grants read access, so it is replaced before logging.
const publicPathPrefix = "/public/"

// quietPaths are probe endpoints logged at debug level while they succeed.
var quietPaths = map[string]bool{
	"/healthz": true,
	"/readyz":  true,
	"/health":  true,
	"/metrics": true,
}

// requestLog collects fields learned by inner middleware after Logger has
// started the request.
type requestLog struct {
	userID         string
	rateLimitScope string
}

type requestLogKey struct{}

func requestLogFrom(ctx context.Context) *requestLog {
	entry, _ := ctx.Value(requestLogKey{}).(*requestLog)
	return entry
}

// setLogUser attaches the authenticated user id to the request log line.
func setLogUser(ctx context.Context, userID string) {
	if entry := requestLogFrom(ctx); entry != nil {
		entry.userID = userID
	}
}

// setLogRateLimited records which limiter rejected the request.
func setLogRateLimited(ctx context.Context, scope string) {
	if entry := requestLogFrom(ctx); entry != nil {
		entry.rateLimitScope = scope
	}
}

// responseWriter captures the status code and body size.
type responseWriter struct {
	http.ResponseWriter
	status      int
	bytes       int
	wroteHeader bool
}

func wrapResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{ResponseWriter: w, status: http.StatusOK}
}

func (rw *responseWriter) WriteHeader(code int) {
	if rw.wroteHeader {
		return
	}
	rw.status = code
	rw.wroteHeader = true
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.WriteHeader(http.StatusOK)
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.bytes += n
	return n, err
}

// Logger writes one structured line per request once the response is done.
// Inner middleware may add the user id and the rate-limit scope.
func Logger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			entry := &requestLog{}
			ctx := context.WithValue(r.Context(), requestLogKey{}, entry)

			wrapped := wrapResponseWriter(w)
			next.ServeHTTP(wrapped, r.WithContext(ctx))

			attrs := []slog.Attr{
				slog.String("request_id", GetRequestID(ctx)),
				slog.String("method", r.Method),
				slog.String("path", loggedPath(r.URL.Path)),
				slog.Int("status_code", wrapped.status),
				slog.Int("bytes", wrapped.bytes),
				slog.Float64("duration_ms", float64(time.Since(start).Microseconds())/1000),
				slog.String("remote_addr", r.RemoteAddr),
				slog.String("user_agent", r.UserAgent()),
			}
			if rctx := chi.RouteContext(ctx); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					attrs = append(attrs, slog.String("route", pattern))
				}
			}
			if traceID := GetTraceID(ctx); traceID != "" {
				attrs = append(attrs, slog.String("trace_id", traceID))
			}
			if entry.userID != "" {
				attrs = append(attrs, slog.String("user_id", entry.userID))
			}
			if entry.rateLimitScope != "" {
				attrs = append(attrs, slog.String("rate_limit_scope", entry.rateLimitScope))
			}
			if headers := headerAttrs(r.Header); len(headers) > 0 {
				attrs = append(attrs, slog.Any("headers", slog.GroupValue(headers...)))
			}

			logger.LogAttrs(ctx, logLevel(r.URL.Path, wrapped.status), "http request", attrs...)
		})
	}
}

func logLevel(path string, status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	case quietPaths[path]:
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

func loggedPath(path string) string {
	if strings.HasPrefix(path, publicPathPrefix) {
		return publicPathPrefix + "{slug}"
	}
	return path
}

func headerAttrs(h http.Header) []slog.Attr {
	var attrs []slog.Attr
	for _, name := range loggedHeaders {
		if v := h.Get(name); v != "" {
			attrs = append(attrs, slog.String(name, v))
		}
	}
	return attrs
}
