package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/rtwroastery/roastery-backend/internal/orders"
	"github.com/rtwroastery/roastery-backend/pkg/db/models"
	"github.com/rtwroastery/roastery-backend/pkg/enums"
	pkgerrors "github.com/rtwroastery/roastery-backend/pkg/errors"
	"github.com/rtwroastery/roastery-backend/pkg/logger"
	"github.com/rtwroastery/roastery-backend/pkg/metrics"
	"github.com/rtwroastery/roastery-backend/pkg/money"
	pkgstripe "github.com/rtwroastery/roastery-backend/pkg/stripe"
)

const (
	successPath = "/checkout/success?session_id={CHECKOUT_SESSION_ID}"
	cancelPath  = "/checkout/cancel"
)

// Service opens hosted checkout sessions and confirms their payments.
type Service interface {
	CreateSession(ctx context.Context, userID uuid.UUID, req CreateSessionRequest) (*SessionResponse, error)
	Status(ctx context.Context, userID uuid.UUID, sessionID string) (*StatusResponse, error)
	Confirm(ctx context.Context, sessionID, source string) (bool, error)
	Expire(ctx context.Context, sessionID string) error
	ReconcileOpen(ctx context.Context, cutoff time.Time, limit int) (ReconcileResult, error)
}

// ReconcileResult summarizes one reconcile sweep.
type ReconcileResult struct {
	Checked   int
	Confirmed int
	Expired   int
}

type gateway interface {
	CreateSession(ctx context.Context, input pkgstripe.CreateSessionInput) (*pkgstripe.Session, error)
	GetSession(ctx context.Context, sessionID string) (*pkgstripe.Session, error)
	ExpireSession(ctx context.Context, sessionID string) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type statusCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	PaymentStatusKey(sessionID string) string
}

// ServiceParams bundles the payment service dependencies.
type ServiceParams struct {
	Repo     *Repository
	Orders   orders.Repository
	Gateway  gateway
	Tx       txRunner
	Cache    statusCache
	Metrics  *metrics.CheckoutMetrics
	Logger   *logger.Logger
	Currency enums.Currency
	CacheTTL time.Duration
	Now      func() time.Time
}

type service struct {
	repo     *Repository
	orders   orders.Repository
	gateway  gateway
	tx       txRunner
	cache    statusCache
	metrics  *metrics.CheckoutMetrics
	logg     *logger.Logger
	currency enums.Currency
	cacheTTL time.Duration
	now      func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	currency := params.Currency
	if currency == "" {
		currency = enums.CurrencyUSD
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:     params.Repo,
		orders:   params.Orders,
		gateway:  params.Gateway,
		tx:       params.Tx,
		cache:    params.Cache,
		metrics:  params.Metrics,
		logg:     params.Logger,
		currency: currency,
		cacheTTL: params.CacheTTL,
		now:      now,
	}, nil
}

// CreateSession starts a fresh gateway session for a pending order. Any
// earlier session for the order is settled first: a paid one short-circuits,
// an open one is expired so only one payable session exists at a time.
func (s *service) CreateSession(ctx context.Context, userID uuid.UUID, req CreateSessionRequest) (*SessionResponse, error) {
	origin, err := normalizeOrigin(req.OriginURL)
	if err != nil {
		return nil, err
	}
	if req.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order_id is required")
	}

	order, err := s.orders.FindForUser(ctx, userID, req.OrderID)
	if err != nil {
		return nil, err
	}
	ctx = s.logg.WithOrderID(ctx, order.ID.String())

	if order.PaymentStatus == enums.PaymentStatusPaid {
		s.metrics.IncSession("paid")
		return &SessionResponse{SessionID: deref(order.SessionID), PaymentStatus: enums.PaymentStatusPaid}, nil
	}
	if order.Status != enums.OrderStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is not awaiting payment").
			WithDetails(map[string]string{"status": order.Status.String()})
	}

	if order.SessionID != nil && *order.SessionID != "" {
		paid, err := s.settlePrevious(ctx, *order.SessionID)
		if err != nil {
			s.metrics.IncSession("failed")
			return nil, err
		}
		if paid {
			s.metrics.IncSession("paid")
			return &SessionResponse{SessionID: *order.SessionID, PaymentStatus: enums.PaymentStatusPaid}, nil
		}
	}

	amount := money.ToCents(order.TotalAmount)
	sess, err := s.gateway.CreateSession(ctx, pkgstripe.CreateSessionInput{
		OrderID:     order.ID.String(),
		UserID:      userID.String(),
		AmountCents: amount,
		Currency:    s.currency,
		SuccessURL:  origin + successPath,
		CancelURL:   origin + cancelPath,
	})
	if err != nil {
		s.metrics.IncSession("failed")
		s.logg.Error(ctx, "payments.create_session_failed", err)
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txn := &models.PaymentTransaction{
			OrderID:       order.ID,
			UserID:        userID,
			SessionID:     sess.ID,
			Amount:        money.FromCents(amount),
			Currency:      s.currency,
			PaymentStatus: enums.PaymentStatusOpen,
			Metadata:      map[string]string{"order_id": order.ID.String(), "user_id": userID.String()},
		}
		if err := s.repo.WithTx(tx).Create(ctx, txn); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record payment transaction")
		}
		return s.orders.WithTx(tx).SetSession(ctx, order.ID, sess.ID)
	})
	if err != nil {
		s.metrics.IncSession("failed")
		return nil, err
	}

	s.metrics.IncSession("created")
	s.logg.Info(s.logg.WithSessionID(ctx, sess.ID), "payments.session_created")
	return &SessionResponse{SessionID: sess.ID, URL: sess.URL, PaymentStatus: enums.PaymentStatusOpen}, nil
}

func (s *service) settlePrevious(ctx context.Context, sessionID string) (bool, error) {
	prev, err := s.gateway.GetSession(ctx, sessionID)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			return false, s.Expire(ctx, sessionID)
		}
		return false, err
	}
	switch prev.PaymentStatus {
	case enums.PaymentStatusPaid:
		_, err := s.Confirm(ctx, sessionID, metrics.SourceStatusCheck)
		return err == nil, err
	case enums.PaymentStatusOpen:
		if err := s.gateway.ExpireSession(ctx, sessionID); err != nil {
			return false, err
		}
	}
	return false, s.Expire(ctx, sessionID)
}

type cachedStatus struct {
	UserID   uuid.UUID      `json:"user_id"`
	Response StatusResponse `json:"response"`
}

// Status reports a session's payment state, confirming the order the first
// time the gateway reports it paid. Paid results are cached because they never
// change.
func (s *service) Status(ctx context.Context, userID uuid.UUID, sessionID string) (*StatusResponse, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}
	ctx = s.logg.WithSessionID(ctx, sessionID)

	if cached := s.readCache(ctx, sessionID); cached != nil && cached.UserID == userID {
		s.metrics.IncStatusCheck(cached.Response.PaymentStatus.String())
		resp := cached.Response
		return &resp, nil
	}

	txn, err := s.repo.FindBySession(ctx, sessionID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup payment transaction")
	}
	if txn == nil || txn.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "checkout session not found")
	}

	var resp *StatusResponse
	if txn.PaymentStatus == enums.PaymentStatusPaid {
		resp = responseFromTransaction(txn)
	} else {
		sess, err := s.gateway.GetSession(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		resp = &StatusResponse{
			Status:        sess.Status,
			PaymentStatus: sess.PaymentStatus,
			AmountTotal:   sess.AmountTotal,
			Currency:      sess.Currency,
			Metadata:      sess.Metadata,
		}
		switch sess.PaymentStatus {
		case enums.PaymentStatusPaid:
			if _, err := s.Confirm(ctx, sessionID, metrics.SourceStatusCheck); err != nil {
				return nil, err
			}
		case enums.PaymentStatusExpired:
			if err := s.Expire(ctx, sessionID); err != nil {
				return nil, err
			}
		}
	}

	s.metrics.IncStatusCheck(resp.PaymentStatus.String())
	if resp.PaymentStatus == enums.PaymentStatusPaid {
		s.writeCache(ctx, sessionID, cachedStatus{UserID: userID, Response: *resp})
	}
	return resp, nil
}

// Confirm marks the session's transaction and order paid. It reports true only
// for the call that actually moved the order, so every confirmation path can
// race safely.
func (s *service) Confirm(ctx context.Context, sessionID, source string) (bool, error) {
	var confirmed bool
	var orderID uuid.UUID
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		txn, err := repo.FindBySession(ctx, sessionID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup payment transaction")
		}
		if txn == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "checkout session not found")
		}
		orderID = txn.OrderID
		if _, err := repo.MarkPaid(ctx, sessionID, s.now().UTC()); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark transaction paid")
		}
		confirmed, err = s.orders.WithTx(tx).MarkPaid(ctx, txn.OrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark order paid")
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	if confirmed {
		s.metrics.IncConfirmed(source)
		logCtx := s.logg.WithField(s.logg.WithOrderID(ctx, orderID.String()), "source", source)
		s.logg.Info(logCtx, "payments.order_paid")
	}
	return confirmed, nil
}

// Expire closes an open session's transaction and releases the order so a new
// session can be created. Unknown sessions are ignored.
func (s *service) Expire(ctx context.Context, sessionID string) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		txn, err := repo.FindBySession(ctx, sessionID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup payment transaction")
		}
		if txn == nil {
			return nil
		}
		if _, err := repo.MarkExpired(ctx, sessionID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark transaction expired")
		}
		if err := s.orders.WithTx(tx).MarkPaymentExpired(ctx, txn.OrderID, sessionID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark order payment expired")
		}
		return nil
	})
}

// ReconcileOpen re-reads sessions that stayed open past cutoff so payments whose
// webhook and status checks were both missed still confirm their order.
func (s *service) ReconcileOpen(ctx context.Context, cutoff time.Time, limit int) (ReconcileResult, error) {
	var result ReconcileResult
	open, err := s.repo.ListOpenBefore(ctx, cutoff, limit)
	if err != nil {
		return result, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list open transactions")
	}

	var errs error
	for _, txn := range open {
		result.Checked++
		sess, err := s.gateway.GetSession(ctx, txn.SessionID)
		if err != nil {
			if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
				if expErr := s.Expire(ctx, txn.SessionID); expErr != nil {
					errs = multierr.Append(errs, expErr)
				} else {
					result.Expired++
				}
				continue
			}
			errs = multierr.Append(errs, fmt.Errorf("session %s: %w", txn.SessionID, err))
			continue
		}
		switch sess.PaymentStatus {
		case enums.PaymentStatusPaid:
			confirmed, err := s.Confirm(ctx, txn.SessionID, metrics.SourceReconcile)
			if err != nil {
				errs = multierr.Append(errs, err)
				continue
			}
			if confirmed {
				result.Confirmed++
			}
		case enums.PaymentStatusExpired:
			if err := s.Expire(ctx, txn.SessionID); err != nil {
				errs = multierr.Append(errs, err)
				continue
			}
			result.Expired++
		}
	}
	return result, errs
}

func (s *service) readCache(ctx context.Context, sessionID string) *cachedStatus {
	if s.cache == nil {
		return nil
	}
	raw, err := s.cache.Get(ctx, s.cache.PaymentStatusKey(sessionID))
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			s.logg.Warn(ctx, "payments.status_cache_read_failed")
		}
		return nil
	}
	var cached cachedStatus
	if err := json.Unmarshal([]byte(raw), &cached); err != nil {
		return nil
	}
	return &cached
}

func (s *service) writeCache(ctx context.Context, sessionID string, entry cachedStatus) {
	if s.cache == nil {
		return
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, s.cache.PaymentStatusKey(sessionID), payload, s.cacheTTL); err != nil {
		s.logg.Warn(ctx, "payments.status_cache_write_failed")
	}
}

func responseFromTransaction(txn *models.PaymentTransaction) *StatusResponse {
	return &StatusResponse{
		Status:        "complete",
		PaymentStatus: txn.PaymentStatus,
		AmountTotal:   money.ToCents(txn.Amount),
		Currency:      txn.Currency.String(),
		Metadata:      txn.Metadata,
	}
}

func normalizeOrigin(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || raw == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "origin_url must be an absolute url")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "origin_url must use http or https")
	}
	if u.Host == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "origin_url must include a host")
	}
	return u.Scheme + "://" + u.Host + strings.TrimRight(u.Path, "/"), nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
