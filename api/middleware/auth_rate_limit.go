package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/freshmarket/grocery-backend/api/responses"
	pkgerrors "github.com/freshmarket/grocery-backend/pkg/errors"
	"github.com/freshmarket/grocery-backend/pkg/logger"
)

type rateLimiterStore interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// AuthRateLimitPolicy defines the throttling parameters for a traffic surface.
type AuthRateLimitPolicy struct {
	name       string
	window     time.Duration
	ipLimit    int
	emailLimit int
}

// NewAuthRateLimitPolicy builds a policy with the supplied window and limits.
func NewAuthRateLimitPolicy(name string, window time.Duration, ipLimit, emailLimit int) AuthRateLimitPolicy {
	return AuthRateLimitPolicy{
		name:       strings.ToLower(strings.TrimSpace(name)),
		window:     window,
		ipLimit:    ipLimit,
		emailLimit: emailLimit,
	}
}

func (p AuthRateLimitPolicy) enabled() bool {
	return p.window > 0 && (p.ipLimit > 0 || p.emailLimit > 0)
}

func (p AuthRateLimitPolicy) scope(kind, value string) string {
	name := p.name
	if name == "" {
		name = "auth"
	}
	return "auth:" + name + ":" + kind + ":" + value
}

// maxAuthBody bounds how much of a login/signup body is buffered to find the email.
const maxAuthBody = 64 << 10

type limitCheck struct {
	kind  string
	value string
	limit int
}

// AuthRateLimit enforces per-IP and per-email fixed windows on auth endpoints.
// Emails are hashed before they reach Redis. Blocked callers get 429 with a
// Retry-After of one window.
func AuthRateLimit(policy AuthRateLimitPolicy, store rateLimiterStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !policy.enabled() || store == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			var checks []limitCheck
			if ip := clientIP(r); policy.ipLimit > 0 && ip != "" {
				checks = append(checks, limitCheck{kind: "ip", value: ip, limit: policy.ipLimit})
			}
			if policy.emailLimit > 0 {
				body, err := io.ReadAll(io.LimitReader(r.Body, maxAuthBody))
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request"))
					return
				}
				r.Body = io.NopCloser(bytes.NewReader(body))
				if email := extractEmail(body); email != "" {
					checks = append(checks, limitCheck{kind: "email", value: hashValue(email), limit: policy.emailLimit})
				}
			}

			for _, check := range checks {
				allowed, count, err := store.FixedWindowAllow(ctx, policy.scope(check.kind, check.value), int64(check.limit), policy.window)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
					return
				}
				if !allowed {
					respondRateLimited(ctx, logg, w, policy, check, count)
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

func respondRateLimited(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, policy AuthRateLimitPolicy, check limitCheck, attempts int64) {
	retryAfter := int(math.Ceil(policy.window.Seconds()))
	logCtx := logg.WithFields(ctx, map[string]any{
		"policy":         policy.name,
		"scope":          check.kind,
		"key":            check.value,
		"attempts":       attempts,
		"limit":          check.limit,
		"window_seconds": retryAfter,
	})
	logg.Warn(logCtx, "auth.rate_limit.blocked")

	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeRateLimit, "rate limit exceeded").
		WithDetails(map[string]any{"retry_after_seconds": retryAfter}))
}

func clientIP(r *http.Request) string {
	if header := r.Header.Get("X-Forwarded-For"); header != "" {
		for _, part := range strings.Split(header, ",") {
			if ip := strings.TrimSpace(part); ip != "" {
				return ip
			}
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}

func extractEmail(payload []byte) string {
	var body struct {
		Email string `json:"email"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(body.Email))
}

func hashValue(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
