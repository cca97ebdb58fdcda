package storefront

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/rtwroastery/roastery-backend/internal/auth"
	"github.com/rtwroastery/roastery-backend/internal/orders"
	pkgerrors "github.com/rtwroastery/roastery-backend/pkg/errors"
	"github.com/rtwroastery/roastery-backend/pkg/types"
)

func writeData(t *testing.T, w http.ResponseWriter, status int, data any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(types.SuccessEnvelope{Data: data}); err != nil {
		t.Fatalf("encode: %v", err)
	}
}

func writeErr(w http.ResponseWriter, status int, code pkgerrors.Code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorEnvelope{Error: types.APIError{Code: string(code), Message: msg}})
}

func TestClientLoginDecodesEnvelope(t *testing.T) {
	userID := uuid.New()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/auth/login" || r.Method != http.MethodPost {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "" {
			t.Fatal("login must not send a bearer token")
		}
		var req auth.LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if req.Email != "cup@roastery.test" {
			t.Fatalf("unexpected email %q", req.Email)
		}
		writeData(t, w, http.StatusOK, map[string]any{
			"token": "tok-1",
			"user":  map[string]any{"id": userID, "email": req.Email, "name": "Cup", "role": "customer"},
		})
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL+"/", WithTokenSource(func() string { return "stale" }))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	resp, err := client.Login(context.Background(), auth.LoginRequest{Email: "cup@roastery.test", Password: "pw"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if resp.Token != "tok-1" || resp.User == nil || resp.User.ID != userID {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestClientMapsErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok-2" {
			t.Fatalf("expected bearer token, got %q", got)
		}
		writeErr(w, http.StatusGone, pkgerrors.CodePaymentExpired, "payment session expired")
	}))
	defer srv.Close()

	client, _ := NewClient(srv.URL, WithTokenSource(func() string { return "tok-2" }))
	_, err := client.CheckoutStatus(context.Background(), "cs_test_1")
	if !pkgerrors.IsCode(err, pkgerrors.CodePaymentExpired) {
		t.Fatalf("expected payment expired, got %v", err)
	}
}

func TestClientUnknownFailureIsDependency(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	client, _ := NewClient(srv.URL)
	if _, err := client.ListProducts(context.Background()); !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestClientTransportFailureIsDependency(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	client, _ := NewClient(url)
	if _, err := client.ListShippingRates(context.Background()); !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestClientCreateOrderSendsIdempotencyKey(t *testing.T) {
	var keys []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		keys = append(keys, r.Header.Get("Idempotency-Key"))
		writeData(t, w, http.StatusCreated, map[string]any{"id": uuid.New(), "status": "pending"})
	}))
	defer srv.Close()

	client, _ := NewClient(srv.URL, WithTokenSource(func() string { return "tok" }))
	for i := 0; i < 2; i++ {
		if _, err := client.CreateOrder(context.Background(), orders.CreateOrderRequest{}); err != nil {
			t.Fatalf("create order: %v", err)
		}
	}
	if len(keys) != 2 || keys[0] == "" || keys[0] == keys[1] {
		t.Fatalf("expected distinct idempotency keys, got %v", keys)
	}
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	if _, err := NewClient("  "); err == nil || !strings.Contains(err.Error(), "base url") {
		t.Fatalf("expected base url error, got %v", err)
	}
}
