package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/rtwroastery/roastery-backend/api/responses"
	pkgerrors "github.com/rtwroastery/roastery-backend/pkg/errors"
	"github.com/rtwroastery/roastery-backend/pkg/logger"
	pkgredis "github.com/rtwroastery/roastery-backend/pkg/redis"
)

const (
	IdempotencyKeyHeader = "Idempotency-Key"
	ReplayedHeader       = "Idempotent-Replayed"

	replayTTL      = 24 * time.Hour
	moneyReplayTTL = 7 * 24 * time.Hour
	// a reservation outlives any handler; the server write timeout is far shorter
	pendingReplayTTL = 2 * time.Minute
)

const (
	entryPending  = "pending"
	entryComplete = "complete"
)

// replayRoute names a route template whose responses are remembered per key.
type replayRoute struct {
	method   string
	template string
	ttl      time.Duration
	required bool
}

var replayRoutes = []replayRoute{
	{method: http.MethodPost, template: "/api/v1/orders", ttl: moneyReplayTTL, required: true},
	{method: http.MethodPost, template: "/api/v1/checkout/session", ttl: moneyReplayTTL, required: true},
	{method: http.MethodPost, template: "/api/v1/custom-blends", ttl: replayTTL},
	{method: http.MethodPost, template: "/api/v1/subscriptions", ttl: replayTTL},
	{method: http.MethodPatch, template: "/api/admin/v1/orders/{orderId}", ttl: replayTTL},
}

// replayEntry is what sits under an idempotency key. A pending entry is the
// reservation taken before the handler runs.
type replayEntry struct {
	State       string `json:"state"`
	Fingerprint string `json:"fingerprint"`
	Status      int    `json:"status,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body,omitempty"`
}

// Idempotency reserves the Idempotency-Key before the handler runs and stores
// the response afterwards. A repeat of a finished request is replayed, a
// repeat of one still running is turned away with 409. Responses of 500 and
// above release the key so the client may retry.
func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route, ok := replayRouteFor(r)
			if !ok || store == nil {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()

			clientKey := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))
			if clientKey == "" {
				if route.required {
					responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required"))
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			fingerprint := fingerprintOf(body)
			key := store.IdempotencyKey(replayScope(r), clientKey)
			ctx = logg.WithField(ctx, "idempotency_key", clientKey)

			reservation, _ := json.Marshal(replayEntry{State: entryPending, Fingerprint: fingerprint})
			reserved, err := store.SetNX(ctx, key, string(reservation), pendingReplayTTL)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve idempotency key"))
				return
			}
			if !reserved {
				answerRepeat(ctx, store, key, fingerprint, logg, w)
				return
			}

			rec := &replayRecorder{ResponseWriter: w}
			finished := false
			defer func() {
				if finished {
					return
				}
				// handler panicked; free the key before the recoverer answers
				if delErr := store.Del(context.WithoutCancel(ctx), key); delErr != nil {
					logg.Error(ctx, "idempotency.release_failed", delErr)
				}
			}()
			next.ServeHTTP(rec, r.WithContext(ctx))
			finished = true

			status := rec.statusCode()
			if status >= http.StatusInternalServerError {
				if delErr := store.Del(context.WithoutCancel(ctx), key); delErr != nil {
					logg.Error(ctx, "idempotency.release_failed", delErr)
				}
				return
			}

			payload, err := json.Marshal(replayEntry{
				State:       entryComplete,
				Fingerprint: fingerprint,
				Status:      status,
				ContentType: rec.Header().Get("Content-Type"),
				Body:        rec.buf.Bytes(),
			})
			if err == nil {
				err = store.Set(context.WithoutCancel(ctx), key, string(payload), route.ttl)
			}
			if err != nil {
				logg.Error(ctx, "idempotency.persist_failed", err)
			}
		})
	}
}

func answerRepeat(ctx context.Context, store pkgredis.IdempotencyStore, key, fingerprint string, logg *logger.Logger, w http.ResponseWriter) {
	raw, err := store.Get(ctx, key)
	if err != nil && !errors.Is(err, redis.Nil) {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load idempotency key"))
		return
	}
	if raw == "" {
		// reservation expired between SetNX and Get
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeConflict, "request with this idempotency key is still in progress"))
		return
	}

	var entry replayEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency entry"))
		return
	}
	switch {
	case entry.Fingerprint != fingerprint:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
	case entry.State != entryComplete:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeConflict, "request with this idempotency key is still in progress"))
	default:
		logg.Debug(ctx, "idempotency.replayed")
		if entry.ContentType != "" {
			w.Header().Set("Content-Type", entry.ContentType)
		}
		w.Header().Set(ReplayedHeader, "true")
		w.WriteHeader(entry.Status)
		_, _ = w.Write(entry.Body)
	}
}

// replayScope keeps keys apart per caller and route.
func replayScope(r *http.Request) string {
	return UserIDFromContext(r.Context()) + "|" + r.Method + "|" + strings.TrimSuffix(r.URL.Path, "/")
}

func fingerprintOf(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// replayRouteFor matches the chi pattern when routing has resolved one and
// the raw path otherwise; group middleware runs before the subrouter does.
func replayRouteFor(r *http.Request) (replayRoute, bool) {
	candidates := []string{r.URL.Path}
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			candidates = append([]string{pattern}, candidates...)
		}
	}
	for _, path := range candidates {
		for _, route := range replayRoutes {
			if route.method == r.Method && templateMatches(route.template, path) {
				return route, true
			}
		}
	}
	return replayRoute{}, false
}

func templateMatches(template, path string) bool {
	want := strings.Split(strings.Trim(template, "/"), "/")
	got := strings.Split(strings.Trim(path, "/"), "/")
	if len(want) != len(got) {
		return false
	}
	for i, segment := range want {
		if strings.HasPrefix(segment, "{") && strings.HasSuffix(segment, "}") {
			if got[i] == "" {
				return false
			}
			continue
		}
		if segment != got[i] {
			return false
		}
	}
	return true
}

type replayRecorder struct {
	http.ResponseWriter
	buf    bytes.Buffer
	status int
}

func (r *replayRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *replayRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	r.buf.Write(b)
	return r.ResponseWriter.Write(b)
}

func (r *replayRecorder) statusCode() int {
	if r.status == 0 {
		return http.StatusOK
	}
	return r.status
}
