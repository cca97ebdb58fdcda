package middleware

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/rtwroastery/roastery-backend/pkg/errors"
)

type replayStore struct {
	mu      sync.Mutex
	entries map[string]string
	ttls    map[string]time.Duration
}

func newReplayStore() *replayStore {
	return &replayStore{entries: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (s *replayStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.entries[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (s *replayStore) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = value.(string)
	s.ttls[key] = ttl
	return nil
}

func (s *replayStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[key]; ok {
		return false, nil
	}
	s.entries[key] = value.(string)
	s.ttls[key] = ttl
	return true, nil
}

func (s *replayStore) IdempotencyKey(scope, id string) string {
	return "test:idem:" + scope + ":" + id
}

func (s *replayStore) Del(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.entries, key)
	}
	return nil
}

func (s *replayStore) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func routed(method, target, pattern, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rctx := chi.NewRouteContext()
	if pattern != "" {
		rctx.RoutePatterns = []string{pattern}
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return payload.Error.Code
}

func TestReplayRouteFor(t *testing.T) {
	cases := []struct {
		name     string
		method   string
		path     string
		pattern  string
		ttl      time.Duration
		required bool
		ok       bool
	}{
		{"order create", http.MethodPost, "/api/v1/orders", "", moneyReplayTTL, true, true},
		{"order create trailing slash", http.MethodPost, "/api/v1/orders/", "/api/v1/orders/", moneyReplayTTL, true, true},
		{"checkout session", http.MethodPost, "/api/v1/checkout/session", "", moneyReplayTTL, true, true},
		{"blend create", http.MethodPost, "/api/v1/custom-blends", "", replayTTL, false, true},
		{"admin order status by path", http.MethodPatch, "/api/admin/v1/orders/7b0e", "", replayTTL, false, true},
		{"admin order status by pattern", http.MethodPatch, "/api/admin/v1/orders/7b0e", "/api/admin/v1/orders/{orderId}", replayTTL, false, true},
		{"admin order list", http.MethodPatch, "/api/admin/v1/orders", "", 0, false, false},
		{"order list", http.MethodGet, "/api/v1/orders", "", 0, false, false},
		{"login", http.MethodPost, "/api/v1/auth/login", "", 0, false, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			route, ok := replayRouteFor(routed(tc.method, tc.path, tc.pattern, ""))
			require.Equal(t, tc.ok, ok)
			if ok {
				assert.Equal(t, tc.ttl, route.ttl)
				assert.Equal(t, tc.required, route.required)
			}
		})
	}
}

func TestIdempotencyRequiresKeyOnMoneyPaths(t *testing.T) {
	reached := false
	h := Idempotency(newReplayStore(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, routed(http.MethodPost, "/api/v1/checkout/session", "", `{"order_id":"x"}`))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, reached)
}

func TestIdempotencyPassesOptionalRoutesWithoutKey(t *testing.T) {
	store := newReplayStore()
	calls := 0
	h := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	}))

	for i := 0; i < 2; i++ {
		h.ServeHTTP(httptest.NewRecorder(), routed(http.MethodPost, "/api/v1/custom-blends", "", `{"name":"a"}`))
	}
	assert.Equal(t, 2, calls)
	assert.Zero(t, store.size())
}

func TestIdempotencyReplaysFinishedRequest(t *testing.T) {
	store := newReplayStore()
	calls := 0
	var seenBody string
	h := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		raw, _ := io.ReadAll(r.Body)
		seenBody = string(raw)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"id":"order-1"}}`))
	}))

	send := func() *httptest.ResponseRecorder {
		req := routed(http.MethodPost, "/api/v1/orders", "", `{"items":[]}`)
		req.Header.Set(IdempotencyKeyHeader, "abc")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	first := send()
	require.Equal(t, http.StatusCreated, first.Code)
	assert.Equal(t, `{"items":[]}`, seenBody)
	assert.Empty(t, first.Header().Get(ReplayedHeader))

	second := send()
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, "application/json", second.Header().Get("Content-Type"))
	assert.Equal(t, "true", second.Header().Get(ReplayedHeader))
	assert.Equal(t, `{"data":{"id":"order-1"}}`, second.Body.String())
	assert.Equal(t, 1, calls)

	for key, ttl := range store.ttls {
		assert.Equal(t, moneyReplayTTL, ttl, key)
	}
}

func TestIdempotencyReleasesKeyAfterServerFailure(t *testing.T) {
	store := newReplayStore()
	calls := 0
	h := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))

	for i := 0; i < 2; i++ {
		req := routed(http.MethodPost, "/api/v1/checkout/session", "", `{}`)
		req.Header.Set(IdempotencyKeyHeader, "retry-me")
		h.ServeHTTP(httptest.NewRecorder(), req)
	}
	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, store.size())
}

func TestIdempotencyReleasesKeyWhenHandlerPanics(t *testing.T) {
	store := newReplayStore()
	h := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	req := routed(http.MethodPost, "/api/v1/orders", "", `{}`)
	req.Header.Set(IdempotencyKeyHeader, "explodes")
	assert.Panics(t, func() { h.ServeHTTP(httptest.NewRecorder(), req) })
	assert.Zero(t, store.size())
}

func TestIdempotencyTurnsAwayRequestInFlight(t *testing.T) {
	store := newReplayStore()
	entered := make(chan struct{})
	release := make(chan struct{})
	calls := 0
	h := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		close(entered)
		<-release
		w.WriteHeader(http.StatusCreated)
	}))

	newReq := func() *http.Request {
		req := routed(http.MethodPost, "/api/v1/orders", "", `{"items":[]}`)
		req.Header.Set(IdempotencyKeyHeader, "slow")
		return req
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.ServeHTTP(httptest.NewRecorder(), newReq())
	}()
	<-entered

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, newReq())
	close(release)
	<-done

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeConflict), errorCode(t, rec))
	assert.Equal(t, 1, calls)
}

func TestIdempotencyScopesKeysPerUser(t *testing.T) {
	calls := 0
	h := Idempotency(newReplayStore(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	}))

	for _, user := range []string{"user-a", "user-b"} {
		req := routed(http.MethodPost, "/api/v1/orders", "", `{}`)
		req = req.WithContext(WithUserID(req.Context(), user))
		req.Header.Set(IdempotencyKeyHeader, "shared")
		h.ServeHTTP(httptest.NewRecorder(), req)
	}
	assert.Equal(t, 2, calls)
}

func TestIdempotencyRejectsReusedKeyWithNewBody(t *testing.T) {
	h := Idempotency(newReplayStore(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	first := routed(http.MethodPost, "/api/v1/orders", "", `{"total_amount":"10"}`)
	first.Header.Set(IdempotencyKeyHeader, "xyz")
	h.ServeHTTP(httptest.NewRecorder(), first)

	second := routed(http.MethodPost, "/api/v1/orders", "", `{"total_amount":"11"}`)
	second.Header.Set(IdempotencyKeyHeader, "xyz")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, second)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeIdempotency), errorCode(t, rec))
}
