package stripe

import (
	"context"
	"errors"
	"testing"

	"github.com/stripe/stripe-go/v84"

	"github.com/rtwroastery/roastery-backend/pkg/enums"
	pkgerrors "github.com/rtwroastery/roastery-backend/pkg/errors"
)

type fakeSessions struct {
	created  *stripe.CheckoutSessionParams
	session  *stripe.CheckoutSession
	err      error
	expired  []string
	getCalls int
}

func (f *fakeSessions) New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	f.created = params
	if f.err != nil {
		return nil, f.err
	}
	return f.session, nil
}

func (f *fakeSessions) Get(id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	f.getCalls++
	if f.err != nil {
		return nil, f.err
	}
	return f.session, nil
}

func (f *fakeSessions) Expire(id string, params *stripe.CheckoutSessionExpireParams) (*stripe.CheckoutSession, error) {
	f.expired = append(f.expired, id)
	return f.session, f.err
}

func TestCreateSessionBuildsPaymentParams(t *testing.T) {
	fake := &fakeSessions{session: &stripe.CheckoutSession{ID: "cs_test_1", URL: "https://checkout.stripe.test/cs_test_1", Status: stripe.CheckoutSessionStatusOpen, PaymentStatus: stripe.CheckoutSessionPaymentStatusUnpaid}}
	gateway := NewGatewayWithAPI(fake)

	sess, err := gateway.CreateSession(context.Background(), CreateSessionInput{
		OrderID:     "order-1",
		UserID:      "user-1",
		AmountCents: 2500,
		SuccessURL:  "https://shop.test/checkout/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:   "https://shop.test/checkout/cancel",
	})
	if err != nil {
		t.Fatalf("CreateSession returned error: %v", err)
	}
	if sess.ID != "cs_test_1" || sess.PaymentStatus != enums.PaymentStatusOpen {
		t.Fatalf("unexpected session %+v", sess)
	}

	params := fake.created
	if params == nil {
		t.Fatal("expected params to be sent")
	}
	if got := *params.Mode; got != string(stripe.CheckoutSessionModePayment) {
		t.Fatalf("expected payment mode, got %s", got)
	}
	if params.Metadata["order_id"] != "order-1" || params.Metadata["user_id"] != "user-1" {
		t.Fatalf("unexpected metadata %v", params.Metadata)
	}
	line := params.LineItems[0]
	if *line.PriceData.UnitAmount != 2500 || *line.PriceData.Currency != "usd" {
		t.Fatalf("unexpected price data %+v", line.PriceData)
	}
	if params.Context == nil {
		t.Fatal("expected context to be propagated")
	}
}

func TestCreateSessionRejectsZeroAmount(t *testing.T) {
	fake := &fakeSessions{}
	gateway := NewGatewayWithAPI(fake)
	_, err := gateway.CreateSession(context.Background(), CreateSessionInput{SuccessURL: "a", CancelURL: "b"})
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if fake.created != nil {
		t.Fatal("gateway must not be called for invalid input")
	}
}

func TestGetSessionMapsErrors(t *testing.T) {
	fake := &fakeSessions{err: &stripe.Error{HTTPStatusCode: 404, Msg: "No such checkout.session"}}
	gateway := NewGatewayWithAPI(fake)
	if _, err := gateway.GetSession(context.Background(), "cs_missing"); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	fake.err = errors.New("connection reset")
	if _, err := gateway.GetSession(context.Background(), "cs_1"); !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestPaymentStatusOf(t *testing.T) {
	cases := []struct {
		session *stripe.CheckoutSession
		want    enums.PaymentStatus
	}{
		{&stripe.CheckoutSession{Status: stripe.CheckoutSessionStatusComplete, PaymentStatus: stripe.CheckoutSessionPaymentStatusPaid}, enums.PaymentStatusPaid},
		{&stripe.CheckoutSession{Status: stripe.CheckoutSessionStatusExpired, PaymentStatus: stripe.CheckoutSessionPaymentStatusUnpaid}, enums.PaymentStatusExpired},
		{&stripe.CheckoutSession{Status: stripe.CheckoutSessionStatusOpen, PaymentStatus: stripe.CheckoutSessionPaymentStatusUnpaid}, enums.PaymentStatusOpen},
		{&stripe.CheckoutSession{Status: stripe.CheckoutSessionStatusComplete, PaymentStatus: stripe.CheckoutSessionPaymentStatusUnpaid}, enums.PaymentStatusOpen},
		{nil, enums.PaymentStatusOpen},
	}
	for _, tc := range cases {
		if got := PaymentStatusOf(tc.session); got != tc.want {
			t.Fatalf("PaymentStatusOf(%+v) = %s, want %s", tc.session, got, tc.want)
		}
	}
}

func TestExpireSession(t *testing.T) {
	fake := &fakeSessions{session: &stripe.CheckoutSession{ID: "cs_1"}}
	gateway := NewGatewayWithAPI(fake)
	if err := gateway.ExpireSession(context.Background(), "cs_1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fake.expired) != 1 || fake.expired[0] != "cs_1" {
		t.Fatalf("expected expire call, got %v", fake.expired)
	}
}
