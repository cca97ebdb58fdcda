package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/rtwroastery/roastery-backend/api/responses"
	pkgerrors "github.com/rtwroastery/roastery-backend/pkg/errors"
	"github.com/rtwroastery/roastery-backend/pkg/logger"
)

type RateLimiter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// throttle is one counting dimension of a policy. subject returns "" when
// the request carries nothing to count against.
type throttle struct {
	dimension string
	limit     int64
	subject   func(r *http.Request, body []byte) string
}

// AuthRateLimitPolicy throttles one auth surface per client IP and per
// submitted email. A zero limit disables that dimension.
type AuthRateLimitPolicy struct {
	name      string
	window    time.Duration
	throttles []throttle
	needsBody bool
}

func NewAuthRateLimitPolicy(name string, window time.Duration, ipLimit, emailLimit int) AuthRateLimitPolicy {
	p := AuthRateLimitPolicy{name: strings.ToLower(strings.TrimSpace(name)), window: window}
	if p.name == "" {
		p.name = "auth"
	}
	if window <= 0 {
		return p
	}
	if ipLimit > 0 {
		p.throttles = append(p.throttles, throttle{
			dimension: "ip",
			limit:     int64(ipLimit),
			subject:   func(r *http.Request, _ []byte) string { return clientIP(r) },
		})
	}
	if emailLimit > 0 {
		p.needsBody = true
		p.throttles = append(p.throttles, throttle{
			dimension: "email",
			limit:     int64(emailLimit),
			subject:   func(_ *http.Request, body []byte) string { return emailDigest(body) },
		})
	}
	return p
}

// AuthRateLimit guards login and register against credential stuffing.
// Rejections carry Retry-After set to the policy window.
func AuthRateLimit(policy AuthRateLimitPolicy, limiter RateLimiter, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if len(policy.throttles) == 0 || limiter == nil {
			return next
		}
		retryAfter := strconv.Itoa(int(policy.window.Round(time.Second) / time.Second))

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			var body []byte
			if policy.needsBody {
				var err error
				body, err = io.ReadAll(r.Body)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
					return
				}
				r.Body = io.NopCloser(bytes.NewReader(body))
			}

			for _, t := range policy.throttles {
				subject := t.subject(r, body)
				if subject == "" {
					continue
				}
				scope := policy.name + ":" + t.dimension + ":" + subject
				allowed, attempts, err := limiter.FixedWindowAllow(ctx, scope, t.limit, policy.window)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
					return
				}
				if allowed {
					continue
				}

				logg.Warn(logg.WithFields(ctx, map[string]any{
					"rate_limit_policy":    policy.name,
					"rate_limit_dimension": t.dimension,
					"attempts":             attempts,
					"limit":                t.limit,
				}), "auth.rate_limited")
				w.Header().Set("Retry-After", retryAfter)
				responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "too many attempts, try again later"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientIP trusts the left-most X-Forwarded-For hop, then X-Real-IP, then the
// socket peer. Values that do not parse as addresses are skipped.
func clientIP(r *http.Request) string {
	first, _, _ := strings.Cut(r.Header.Get("X-Forwarded-For"), ",")
	for _, candidate := range []string{first, r.Header.Get("X-Real-IP")} {
		if addr, err := netip.ParseAddr(strings.TrimSpace(candidate)); err == nil {
			return addr.Unmap().String()
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return host
}

// emailDigest keeps raw addresses out of redis keys.
func emailDigest(body []byte) string {
	var creds struct {
		Email string `json:"email"`
	}
	if json.Unmarshal(body, &creds) != nil {
		return ""
	}
	email := strings.ToLower(strings.TrimSpace(creds.Email))
	if email == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(email))
	return hex.EncodeToString(sum[:])
}
