package middleware

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/notesd/notesd/internal/auth"
	"github.com/notesd/notesd/internal/cache"
	"github.com/notesd/notesd/internal/metrics"
	"github.com/notesd/notesd/internal/model"
)

// countingLimiter allows the first n calls per subject.
type countingLimiter struct {
	n        int
	calls    map[string]int
	err      error
	subjects []string
}

func (l *countingLimiter) Allow(ctx context.Context, scope, subject string, limit cache.Limit) (*cache.RateLimitResult, error) {
	if l.err != nil {
		return nil, l.err
	}
	if l.calls == nil {
		l.calls = make(map[string]int)
	}
	l.calls[scope+"/"+subject]++
	l.subjects = append(l.subjects, subject)

	used := l.calls[scope+"/"+subject]
	res := &cache.RateLimitResult{
		Allowed: used <= l.n,
		Limit:   l.n,
		ResetAt: time.Unix(1700000000, 0),
	}
	if res.Allowed {
		res.Remaining = int64(l.n - used)
	} else {
		res.RetryAfter = 1500 * time.Millisecond
	}
	return res, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimit_RejectsAfterBurst(t *testing.T) {
	limiter := &countingLimiter{n: 2}
	rec := metrics.NewInMemory()
	handler := RateLimit(RateLimitConfig{
		Logger:   discardLogger(),
		Limiter:  limiter,
		Recorder: rec,
		Scope:    "auth",
		Limit:    cache.PerMinute(2, 2),
	})(okHandler())

	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		req.RemoteAddr = "203.0.113.7:5555"
		last = httptest.NewRecorder()
		handler.ServeHTTP(last, req)
		if i < 2 && last.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i, last.Code)
		}
	}

	if last.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", last.Code)
	}
	if got := last.Header().Get("Retry-After"); got != "1" {
		t.Errorf("Retry-After = %q, want 1", got)
	}
	if got := last.Header().Get("X-RateLimit-Limit"); got != "2" {
		t.Errorf("X-RateLimit-Limit = %q, want 2", got)
	}
	if got := rec.Snapshot().RateLimitedByScope["auth"]; got != 1 {
		t.Errorf("rate limited count = %d, want 1", got)
	}
	if limiter.subjects[0] != "203.0.113.7" {
		t.Errorf("subject = %q, want client IP", limiter.subjects[0])
	}
}

func TestRateLimit_FailsOpen(t *testing.T) {
	handler := RateLimit(RateLimitConfig{
		Logger:  discardLogger(),
		Limiter: &countingLimiter{err: errors.New("redis down")},
		Scope:   "api",
		Limit:   cache.PerMinute(1, 1),
	})(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/notes", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestRateLimit_Disabled(t *testing.T) {
	tests := []struct {
		name    string
		limiter Limiter
		limit   cache.Limit
	}{
		{name: "nil limiter", limit: cache.PerMinute(1, 1)},
		{name: "unlimited", limiter: &countingLimiter{n: 0}, limit: cache.Limit{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := RateLimit(RateLimitConfig{
				Logger:  discardLogger(),
				Limiter: tt.limiter,
				Scope:   "public",
				Limit:   tt.limit,
			})(okHandler())

			for i := 0; i < 5; i++ {
				rec := httptest.NewRecorder()
				handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/public/abc", nil))
				if rec.Code != http.StatusOK {
					t.Fatalf("status = %d, want 200", rec.Code)
				}
			}
		})
	}
}

func TestKeyByUser(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/notes", nil)
	req.RemoteAddr = "198.51.100.1:1234"
	if got := KeyByUser(req); got != "198.51.100.1" {
		t.Errorf("anonymous key = %q, want IP", got)
	}

	ctx := auth.ContextWithUser(req.Context(), &model.User{ID: "u-42"}, nil)
	if got := KeyByUser(req.WithContext(ctx)); got != "user:u-42" {
		t.Errorf("user key = %q, want user:u-42", got)
	}
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name   string
		remote string
		xff    string
		xri    string
		want   string
	}{
		{name: "remote addr", remote: "192.0.2.1:80", want: "192.0.2.1"},
		{name: "forwarded first hop", remote: "10.0.0.1:80", xff: "203.0.113.9, 10.0.0.2", want: "203.0.113.9"},
		{name: "real ip", remote: "10.0.0.1:80", xri: "198.51.100.3", want: "198.51.100.3"},
		{name: "no port", remote: "192.0.2.5", want: "192.0.2.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				req.Header.Set("X-Real-IP", tt.xri)
			}
			if got := getClientIP(req); got != tt.want {
				t.Errorf("getClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}
