package webhooks

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stripe/stripe-go/v84"

	stripewebhook "github.com/rtwroastery/roastery-backend/internal/webhooks/stripe"
	pkgerrors "github.com/rtwroastery/roastery-backend/pkg/errors"
)

type stubVerifier struct {
	err error
}

func (s stubVerifier) ConstructEvent(payload []byte, signature string) (stripe.Event, error) {
	if s.err != nil {
		return stripe.Event{}, s.err
	}
	return stripe.Event{ID: "evt_1", Type: "checkout.session.completed"}, nil
}

type stubLedger struct {
	marks    map[string]stripewebhook.Claim
	released []string
	err      error
}

func (l *stubLedger) Claim(_ context.Context, eventID string) (stripewebhook.Claim, error) {
	if l.err != nil {
		return 0, l.err
	}
	if l.marks == nil {
		l.marks = map[string]stripewebhook.Claim{}
	}
	if mark, ok := l.marks[eventID]; ok {
		return mark, nil
	}
	l.marks[eventID] = stripewebhook.ClaimInFlight
	return stripewebhook.ClaimAcquired, nil
}

func (l *stubLedger) Complete(_ context.Context, eventID string) error {
	l.marks[eventID] = stripewebhook.ClaimDone
	return nil
}

func (l *stubLedger) Release(_ context.Context, eventID string) error {
	l.released = append(l.released, eventID)
	delete(l.marks, eventID)
	return nil
}

type stubService struct {
	calls int
	err   error
}

func (s *stubService) HandleEvent(context.Context, *stripe.Event) error {
	s.calls++
	return s.err
}

func post(handler http.HandlerFunc, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", strings.NewReader(`{"id":"evt_1"}`))
	if signature != "" {
		req.Header.Set("Stripe-Signature", signature)
	}
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	return resp
}

func TestStripeWebhookProcessesOnce(t *testing.T) {
	svc := &stubService{}
	ledger := &stubLedger{}
	handler := StripeWebhook(svc, stubVerifier{}, ledger, nil)

	for i := 0; i < 2; i++ {
		if resp := post(handler, "t=1,v1=abc"); resp.Code != http.StatusOK {
			t.Fatalf("delivery %d: expected 200 got %d", i, resp.Code)
		}
	}
	if svc.calls != 1 {
		t.Fatalf("expected one handled event, got %d", svc.calls)
	}
}

func TestStripeWebhookRequiresSignature(t *testing.T) {
	svc := &stubService{}
	resp := post(StripeWebhook(svc, stubVerifier{}, &stubLedger{}, nil), "")
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if svc.calls != 0 {
		t.Fatal("service must not run without a signature")
	}
}

func TestStripeWebhookRejectsBadSignature(t *testing.T) {
	resp := post(StripeWebhook(&stubService{}, stubVerifier{err: errors.New("no signatures found")}, &stubLedger{}, nil), "t=1,v1=bad")
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestStripeWebhookReleasesFailedEvent(t *testing.T) {
	svc := &stubService{err: pkgerrors.New(pkgerrors.CodeDependency, "database unavailable")}
	ledger := &stubLedger{}
	handler := StripeWebhook(svc, stubVerifier{}, ledger, nil)

	if resp := post(handler, "t=1,v1=abc"); resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", resp.Code)
	}
	if len(ledger.released) != 1 || ledger.released[0] != "evt_1" {
		t.Fatalf("expected failed event to be released, got %v", ledger.released)
	}

	svc.err = nil
	if resp := post(handler, "t=1,v1=abc"); resp.Code != http.StatusOK {
		t.Fatalf("expected retry to succeed, got %d", resp.Code)
	}
	if svc.calls != 2 {
		t.Fatalf("expected retry to reach the service, got %d calls", svc.calls)
	}
}

func TestStripeWebhookLedgerFailure(t *testing.T) {
	resp := post(StripeWebhook(&stubService{}, stubVerifier{}, &stubLedger{err: errors.New("redis down")}, nil), "t=1,v1=abc")
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", resp.Code)
	}
}

func TestStripeWebhookTurnsAwayInFlightDelivery(t *testing.T) {
	svc := &stubService{}
	ledger := &stubLedger{marks: map[string]stripewebhook.Claim{"evt_1": stripewebhook.ClaimInFlight}}

	resp := post(StripeWebhook(svc, stubVerifier{}, ledger, nil), "t=1,v1=abc")
	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.Code)
	}
	if svc.calls != 0 {
		t.Fatal("in-flight event must not be applied twice")
	}
}
