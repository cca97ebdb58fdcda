package stripe

import (
	"context"
	"errors"
	"strings"

	"github.com/stripe/stripe-go/v84"

	"github.com/rtwroastery/roastery-backend/pkg/enums"
	pkgerrors "github.com/rtwroastery/roastery-backend/pkg/errors"
)

// SessionAPI is the slice of Stripe's checkout session resource the gateway
// calls. *session.Client satisfies it.
type SessionAPI interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	Get(id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	Expire(id string, params *stripe.CheckoutSessionExpireParams) (*stripe.CheckoutSession, error)
}

// CreateSessionInput describes a hosted checkout for a single order.
type CreateSessionInput struct {
	OrderID     string
	UserID      string
	Description string
	AmountCents int64
	Currency    enums.Currency
	SuccessURL  string
	CancelURL   string
}

// Session is the gateway-neutral view of a Stripe checkout session.
type Session struct {
	ID            string
	URL           string
	Status        string
	PaymentStatus enums.PaymentStatus
	AmountTotal   int64
	Currency      string
	Metadata      map[string]string
}

// Gateway creates and inspects Stripe hosted checkout sessions.
type Gateway struct {
	sessions SessionAPI
}

func NewGateway(client *Client) (*Gateway, error) {
	if client == nil || client.sessions == nil {
		return nil, errors.New("stripe client is required")
	}
	return &Gateway{sessions: client.sessions}, nil
}

// NewGatewayWithAPI is used by tests to swap in a fake session resource.
func NewGatewayWithAPI(api SessionAPI) *Gateway {
	return &Gateway{sessions: api}
}

// CreateSession opens a payment-mode checkout session with one line for the order total.
func (g *Gateway) CreateSession(ctx context.Context, input CreateSessionInput) (*Session, error) {
	if input.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "checkout amount must be positive")
	}
	if input.SuccessURL == "" || input.CancelURL == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "return urls are required")
	}
	currency := input.Currency
	if currency == "" {
		currency = enums.CurrencyUSD
	}
	name := input.Description
	if name == "" {
		name = "RTW's Roastery order " + input.OrderID
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(input.SuccessURL),
		CancelURL:         stripe.String(input.CancelURL),
		ClientReferenceID: stripe.String(input.OrderID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Quantity: stripe.Int64(1),
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(currency.String()),
					UnitAmount: stripe.Int64(input.AmountCents),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(name),
					},
				},
			},
		},
	}
	params.Context = ctx
	params.AddMetadata("order_id", input.OrderID)
	params.AddMetadata("user_id", input.UserID)

	cs, err := g.sessions.New(params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create checkout session")
	}
	return toSession(cs), nil
}

// GetSession fetches the current state of a checkout session.
func (g *Gateway) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	cs, err := g.sessions.Get(sessionID, params)
	if err != nil {
		return nil, mapStripeError(err, "get checkout session")
	}
	return toSession(cs), nil
}

// ExpireSession closes an open session so it can no longer be paid.
func (g *Gateway) ExpireSession(ctx context.Context, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}
	params := &stripe.CheckoutSessionExpireParams{}
	params.Context = ctx
	if _, err := g.sessions.Expire(sessionID, params); err != nil {
		return mapStripeError(err, "expire checkout session")
	}
	return nil
}

// PaymentStatusOf collapses Stripe's session status and payment status into
// the three states the storefront reasons about.
func PaymentStatusOf(cs *stripe.CheckoutSession) enums.PaymentStatus {
	if cs == nil {
		return enums.PaymentStatusOpen
	}
	switch cs.PaymentStatus {
	case stripe.CheckoutSessionPaymentStatusPaid, stripe.CheckoutSessionPaymentStatusNoPaymentRequired:
		return enums.PaymentStatusPaid
	}
	if cs.Status == stripe.CheckoutSessionStatusExpired {
		return enums.PaymentStatusExpired
	}
	return enums.PaymentStatusOpen
}

func toSession(cs *stripe.CheckoutSession) *Session {
	if cs == nil {
		return nil
	}
	return &Session{
		ID:            cs.ID,
		URL:           cs.URL,
		Status:        string(cs.Status),
		PaymentStatus: PaymentStatusOf(cs),
		AmountTotal:   cs.AmountTotal,
		Currency:      string(cs.Currency),
		Metadata:      cs.Metadata,
	}
}

func mapStripeError(err error, op string) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) && stripeErr.HTTPStatusCode == 404 {
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, op)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, op)
}
