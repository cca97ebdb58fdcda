// Package checkout drives a storefront checkout attempt: order snapshot,
// gateway session, the external redirect and bounded payment confirmation.
package checkout

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rtwroastery/roastery-backend/internal/blends"
	"github.com/rtwroastery/roastery-backend/internal/cart"
	"github.com/rtwroastery/roastery-backend/internal/catalog"
	"github.com/rtwroastery/roastery-backend/internal/orders"
	"github.com/rtwroastery/roastery-backend/internal/payments"
	"github.com/rtwroastery/roastery-backend/internal/pricing"
	"github.com/rtwroastery/roastery-backend/internal/shipping"
	pkgcheckout "github.com/rtwroastery/roastery-backend/pkg/checkout"
	"github.com/rtwroastery/roastery-backend/pkg/enums"
	pkgerrors "github.com/rtwroastery/roastery-backend/pkg/errors"
	"github.com/rtwroastery/roastery-backend/pkg/logger"
	"github.com/rtwroastery/roastery-backend/pkg/types"
)

const (
	DefaultPollInterval = 2 * time.Second
	DefaultMaxAttempts  = 5
)

type cartStore interface {
	Items(ctx context.Context) ([]cart.LineItemRef, error)
	Clear(ctx context.Context) error
}

type catalogReader interface {
	ListProducts(ctx context.Context) ([]catalog.ProductDTO, error)
}

type blendReader interface {
	ListBlends(ctx context.Context) ([]blends.BlendDTO, error)
}

type rateReader interface {
	ListShippingRates(ctx context.Context) ([]shipping.RateDTO, error)
}

type orderCreator interface {
	CreateOrder(ctx context.Context, req orders.CreateOrderRequest) (*orders.OrderDTO, error)
}

type paymentGateway interface {
	CreateCheckoutSession(ctx context.Context, req payments.CreateSessionRequest) (*payments.SessionResponse, error)
	CheckoutStatus(ctx context.Context, sessionID string) (*payments.StatusResponse, error)
}

// Params wires an Orchestrator.
type Params struct {
	Cart         cartStore
	Catalog      catalogReader
	Blends       blendReader
	Rates        rateReader
	Orders       orderCreator
	Payments     paymentGateway
	Logger       *logger.Logger
	PollInterval time.Duration
	MaxAttempts  int
	NewTicker    TickerFactory
	// OnTransition runs synchronously on every state change. It must not call
	// back into the Orchestrator.
	OnTransition func(prev, next Snapshot)
}

// Request starts a checkout attempt.
type Request struct {
	ShippingAddress types.ShippingAddress
	ShippingRateID  *uuid.UUID
	// OriginURL is where the gateway sends the shopper back.
	OriginURL string
}

// Snapshot is a read-only view of the attempt.
type Snapshot struct {
	State       State
	OrderID     uuid.UUID
	SessionID   string
	RedirectURL string
	Quote       pricing.Quote
	Lines       []cart.PricedLineItem
	Attempts    int
	Err         error
}

type pollRun struct {
	sessionID string
	cancel    context.CancelFunc
	done      chan struct{}
}

// Orchestrator is the checkout state machine for one device session.
type Orchestrator struct {
	mu   sync.Mutex
	snap Snapshot
	run  *pollRun

	cart         cartStore
	catalog      catalogReader
	blends       blendReader
	rates        rateReader
	orders       orderCreator
	payments     paymentGateway
	logg         *logger.Logger
	interval     time.Duration
	maxAttempts  int
	newTicker    TickerFactory
	onTransition func(prev, next Snapshot)
}

func NewOrchestrator(params Params) (*Orchestrator, error) {
	if params.Cart == nil {
		return nil, fmt.Errorf("cart store required")
	}
	if params.Catalog == nil {
		return nil, fmt.Errorf("catalog reader required")
	}
	if params.Blends == nil {
		return nil, fmt.Errorf("blend reader required")
	}
	if params.Rates == nil {
		return nil, fmt.Errorf("shipping rate reader required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("order creator required")
	}
	if params.Payments == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	interval := params.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	attempts := params.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}
	newTicker := params.NewTicker
	if newTicker == nil {
		newTicker = NewTicker
	}
	return &Orchestrator{
		snap:         Snapshot{State: StateIdle},
		cart:         params.Cart,
		catalog:      params.Catalog,
		blends:       params.Blends,
		rates:        params.Rates,
		orders:       params.Orders,
		payments:     params.Payments,
		logg:         params.Logger,
		interval:     interval,
		maxAttempts:  attempts,
		newTicker:    newTicker,
		onTransition: params.OnTransition,
	}, nil
}

// Snapshot returns the current attempt.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snap
}

// Begin prices the cart, creates the order and opens a gateway session. On
// success the attempt is AwaitingPayment and RedirectURL is where the shopper
// pays. Precondition failures leave the orchestrator Idle.
func (o *Orchestrator) Begin(ctx context.Context, req Request) (Snapshot, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.snap.State != StateIdle {
		return o.snap, pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("checkout already %s", o.snap.State))
	}
	if err := pkgcheckout.ValidateShipping(req.ShippingAddress, req.ShippingRateID); err != nil {
		return o.snap, err
	}

	lines, quote, orderReq, err := o.prepare(ctx, req)
	if err != nil {
		return o.snap, err
	}

	next := Snapshot{State: StateOrderCreating, Quote: quote, Lines: lines}
	o.transition(ctx, next)

	order, err := o.orders.CreateOrder(ctx, orderReq)
	if err != nil {
		snap := o.fail(ctx, StateFailed, serviceError(err, "create order"))
		return snap, snap.Err
	}
	next = o.snap
	next.State = StateSessionCreating
	next.OrderID = order.ID
	o.transition(ctx, next)

	session, err := o.payments.CreateCheckoutSession(ctx, payments.CreateSessionRequest{
		OrderID:   order.ID,
		OriginURL: req.OriginURL,
	})
	if err != nil {
		snap := o.fail(ctx, StateFailed, serviceError(err, "create checkout session"))
		return snap, snap.Err
	}

	next = o.snap
	next.SessionID = session.SessionID
	if session.PaymentStatus == enums.PaymentStatusPaid {
		// A reused order was paid through an earlier session.
		o.clearCart(ctx)
		next.State = StateSucceeded
		o.transition(ctx, next)
		return o.snap, nil
	}
	if strings.TrimSpace(session.URL) == "" {
		snap := o.fail(ctx, StateFailed, pkgerrors.New(pkgerrors.CodeDependency, "payment gateway returned no redirect target"))
		return snap, snap.Err
	}
	next.RedirectURL = session.URL
	next.State = StateAwaitingPayment
	o.transition(ctx, next)
	return o.snap, nil
}

// prepare reads the cart and the price sources and builds the order payload.
func (o *Orchestrator) prepare(ctx context.Context, req Request) ([]cart.PricedLineItem, pricing.Quote, orders.CreateOrderRequest, error) {
	var zero orders.CreateOrderRequest

	refs, err := o.cart.Items(ctx)
	if err != nil {
		return nil, pricing.Quote{}, zero, serviceError(err, "read cart")
	}
	if len(refs) == 0 {
		return nil, pricing.Quote{}, zero, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}

	rates, err := o.rates.ListShippingRates(ctx)
	if err != nil {
		return nil, pricing.Quote{}, zero, serviceError(err, "list shipping rates")
	}
	var rate *decimal.Decimal
	for _, r := range rates {
		if r.ID == *req.ShippingRateID {
			value := r.Rate
			rate = &value
			break
		}
	}
	if rate == nil {
		return nil, pricing.Quote{}, zero, pkgerrors.New(pkgerrors.CodeValidation, "selected shipping rate is not available")
	}

	catalogIdx := cart.CatalogIndex{}
	if len(cart.ProductIDs(refs)) > 0 {
		products, err := o.catalog.ListProducts(ctx)
		if err != nil {
			return nil, pricing.Quote{}, zero, serviceError(err, "list products")
		}
		for _, p := range products {
			catalogIdx[p.ID] = cart.IndexEntry{Name: p.Name, Price: p.Price}
		}
	}
	blendIdx := cart.BlendIndex{}
	if len(cart.BlendIDs(refs)) > 0 {
		owned, err := o.blends.ListBlends(ctx)
		if err != nil {
			return nil, pricing.Quote{}, zero, serviceError(err, "list custom blends")
		}
		for _, b := range owned {
			blendIdx[b.ID] = cart.IndexEntry{Name: b.Name, Price: b.Price}
		}
	}

	lines := cart.Resolve(refs, catalogIdx, blendIdx)
	items := make([]orders.OrderLineRequest, 0, len(lines))
	for _, line := range lines {
		if line.Missing {
			return nil, pricing.Quote{}, zero, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("%s is no longer available", line.Name)).
				WithDetails(map[string]any{"cart_item_id": line.ID})
		}
		price := line.UnitPrice
		items = append(items, orders.OrderLineRequest{
			ProductID:     line.ProductID,
			CustomBlendID: line.CustomBlendID,
			Quantity:      line.Quantity,
			Name:          line.Name,
			UnitPrice:     &price,
		})
	}
	quote := pricing.Compute(lines, rate).Rounded()

	return lines, quote, orders.CreateOrderRequest{
		Items:           items,
		TotalAmount:     quote.Total,
		ShippingAddress: req.ShippingAddress,
		ShippingRateID:  req.ShippingRateID,
		Fingerprint:     cart.Fingerprint(refs, req.ShippingAddress, req.ShippingRateID),
	}, nil
}

// Resume verifies the session the gateway redirected back with. It blocks
// until the poll loop ends or ctx is done. A call for a session that is
// already being verified joins that loop instead of starting another.
// Resume is accepted from AwaitingPayment, or from Idle after a restart.
func (o *Orchestrator) Resume(ctx context.Context, sessionID string) (Snapshot, error) {
	sessionID = strings.TrimSpace(sessionID)

	o.mu.Lock()
	if run := o.run; run != nil {
		if run.sessionID != sessionID {
			o.mu.Unlock()
			return o.Snapshot(), pkgerrors.New(pkgerrors.CodeStateConflict, "another checkout session is being verified")
		}
		o.mu.Unlock()
		return o.wait(ctx, run)
	}

	if o.snap.State.Terminal() && o.snap.SessionID == sessionID && sessionID != "" {
		snap := o.snap
		o.mu.Unlock()
		return snap, snap.Err
	}
	if o.snap.State != StateAwaitingPayment && o.snap.State != StateIdle {
		snap := o.snap
		o.mu.Unlock()
		return snap, pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("cannot verify payment while %s", snap.State))
	}
	if sessionID == "" {
		snap := o.fail(ctx, StateFailed, pkgerrors.New(pkgerrors.CodeValidation, "return is missing the checkout session id"))
		o.mu.Unlock()
		return snap, snap.Err
	}

	next := o.snap
	next.State = StateVerifying
	next.SessionID = sessionID
	next.Attempts = 0
	next.Err = nil
	o.transition(ctx, next)

	loopCtx, cancel := context.WithCancel(ctx)
	run := &pollRun{sessionID: sessionID, cancel: cancel, done: make(chan struct{})}
	o.run = run
	o.mu.Unlock()

	go o.poll(loopCtx, run)
	return o.wait(ctx, run)
}

func (o *Orchestrator) wait(ctx context.Context, run *pollRun) (Snapshot, error) {
	select {
	case <-run.done:
		snap := o.Snapshot()
		if !snap.State.Terminal() {
			return snap, context.Canceled
		}
		return snap, snap.Err
	case <-ctx.Done():
		return o.Snapshot(), ctx.Err()
	}
}

// poll checks the session right away and then once per tick, at most
// maxAttempts times.
func (o *Orchestrator) poll(ctx context.Context, run *pollRun) {
	defer close(run.done)
	defer run.cancel()

	ticker := o.newTicker(o.interval)
	defer ticker.Stop()

	for attempt := 1; attempt <= o.maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				o.stopped(ctx, run)
				return
			case <-ticker.C():
			}
		}

		status, err := o.payments.CheckoutStatus(ctx, run.sessionID)
		if ctx.Err() != nil {
			o.stopped(ctx, run)
			return
		}

		o.mu.Lock()
		o.snap.Attempts = attempt
		o.mu.Unlock()

		if err != nil {
			o.finish(ctx, run, StateFailed, serviceError(err, "check payment status"))
			return
		}
		switch status.PaymentStatus {
		case enums.PaymentStatusPaid:
			o.clearCart(ctx)
			o.finish(ctx, run, StateSucceeded, nil)
			return
		case enums.PaymentStatusExpired:
			o.finish(ctx, run, StateFailed, pkgerrors.New(pkgerrors.CodePaymentExpired, "payment session expired; start checkout again"))
			return
		case enums.PaymentStatusOpen:
			o.logg.Debug(o.logg.WithField(ctx, "attempt", attempt), "checkout.payment_open")
		default:
			o.finish(ctx, run, StateFailed, pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("unexpected payment status %q", status.PaymentStatus)))
			return
		}
	}
	o.finish(ctx, run, StateTimedOut, pkgerrors.New(pkgerrors.CodePaymentTimeout, "payment was not confirmed in time"))
}

func (o *Orchestrator) finish(ctx context.Context, run *pollRun, state State, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.run != run {
		return
	}
	o.run = nil
	next := o.snap
	next.State = state
	next.Err = err
	o.transition(ctx, next)
}

// stopped returns a cancelled verification to AwaitingPayment. Nothing is
// written to the server.
func (o *Orchestrator) stopped(ctx context.Context, run *pollRun) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.run != run {
		return
	}
	o.run = nil
	next := o.snap
	next.State = StateAwaitingPayment
	o.transition(context.WithoutCancel(ctx), next)
}

// Cancel stops an in-flight verification and waits for the loop to exit.
// The order and the gateway session are left untouched.
func (o *Orchestrator) Cancel() {
	o.mu.Lock()
	run := o.run
	o.mu.Unlock()
	if run == nil {
		return
	}
	run.cancel()
	<-run.done
}

// Reset starts over after a finished attempt. The cart is left as it is.
func (o *Orchestrator) Reset(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.snap.State.Terminal() {
		return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("cannot reset while %s", o.snap.State))
	}
	o.transition(ctx, Snapshot{State: StateIdle})
	return nil
}

// clearCart empties the cart once payment is confirmed. A failure is logged;
// the payment stands either way.
func (o *Orchestrator) clearCart(ctx context.Context) {
	if err := o.cart.Clear(context.WithoutCancel(ctx)); err != nil {
		o.logg.Error(o.logFields(ctx, o.snap), "checkout.cart_clear_failed", err)
	}
}

// fail must be called with the lock held.
func (o *Orchestrator) fail(ctx context.Context, state State, err error) Snapshot {
	next := o.snap
	next.State = state
	next.Err = err
	o.transition(ctx, next)
	return o.snap
}

// transition must be called with the lock held.
func (o *Orchestrator) transition(ctx context.Context, next Snapshot) {
	prev := o.snap
	o.snap = next

	logCtx := o.logFields(ctx, next)
	logCtx = o.logg.WithField(logCtx, "checkout_prev_state", prev.State.String())
	if next.Err != nil {
		o.logg.Warn(o.logg.WithField(logCtx, "error_code", string(pkgerrors.CodeOf(next.Err))), "checkout.transition")
	} else {
		o.logg.Info(logCtx, "checkout.transition")
	}
	if o.onTransition != nil {
		o.onTransition(prev, next)
	}
}

func (o *Orchestrator) logFields(ctx context.Context, snap Snapshot) context.Context {
	fields := map[string]any{"checkout_state": snap.State.String()}
	if snap.OrderID != uuid.Nil {
		fields["order_id"] = snap.OrderID.String()
	}
	if snap.SessionID != "" {
		fields["session_id"] = snap.SessionID
	}
	return o.logg.WithFields(ctx, fields)
}

// serviceError passes typed failures through and reports anything else as a
// transient collaborator failure.
func serviceError(err error, op string) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, op)
}
