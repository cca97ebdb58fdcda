// Package storefront adapts the device-side commerce core to the roastery API
// and wires the pieces together for the CLI.
package storefront

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rtwroastery/roastery-backend/internal/auth"
	"github.com/rtwroastery/roastery-backend/internal/blends"
	"github.com/rtwroastery/roastery-backend/internal/catalog"
	"github.com/rtwroastery/roastery-backend/internal/identity"
	"github.com/rtwroastery/roastery-backend/internal/orders"
	"github.com/rtwroastery/roastery-backend/internal/payments"
	"github.com/rtwroastery/roastery-backend/internal/shipping"
	"github.com/rtwroastery/roastery-backend/internal/subscriptions"
	pkgerrors "github.com/rtwroastery/roastery-backend/pkg/errors"
	"github.com/rtwroastery/roastery-backend/pkg/types"
)

const (
	defaultTimeout             = 10 * time.Second
	errorBodyReadLimit   int64 = 4096
	idempotencyKeyHeader       = "Idempotency-Key"
)

var errBaseURLRequired = errors.New("storefront api base url is required")

// Client calls the roastery HTTP API. Every failure leaves the client as a
// typed error carrying the server's code, or CodeDependency for transport
// problems.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      func() string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTokenSource supplies the bearer token for authenticated calls.
func WithTokenSource(fn func() string) Option {
	return func(c *Client) {
		if fn != nil {
			c.token = fn
		}
	}
}

func NewClient(baseURL string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, errBaseURLRequired
	}
	if _, err := url.Parse(trimmed); err != nil {
		return nil, fmt.Errorf("parse api base url: %w", err)
	}

	client := &Client{
		baseURL:    trimmed,
		httpClient: &http.Client{Timeout: defaultTimeout},
		token:      func() string { return "" },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

func (c *Client) Register(ctx context.Context, req auth.RegisterRequest) (*auth.AuthResponse, error) {
	var out auth.AuthResponse
	if err := c.do(ctx, call{method: http.MethodPost, path: "/api/v1/auth/register", body: req, anonymous: true}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Login(ctx context.Context, req auth.LoginRequest) (*auth.AuthResponse, error) {
	var out auth.AuthResponse
	if err := c.do(ctx, call{method: http.MethodPost, path: "/api/v1/auth/login", body: req, anonymous: true}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Me resolves the profile behind token. It is the identity.Provider used to
// hydrate the device identity at startup.
func (c *Client) Me(ctx context.Context, token string) (*identity.Profile, error) {
	var out struct {
		ID    uuid.UUID `json:"id"`
		Email string    `json:"email"`
		Name  string    `json:"name"`
		Role  string    `json:"role"`
	}
	if err := c.do(ctx, call{method: http.MethodGet, path: "/api/v1/auth/me", token: token}, &out); err != nil {
		return nil, err
	}
	return ProfileFromUser(out.ID, out.Email, out.Name, out.Role), nil
}

func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, call{method: http.MethodPost, path: "/api/v1/auth/logout"}, nil)
}

func (c *Client) ListProducts(ctx context.Context) ([]catalog.ProductDTO, error) {
	var out []catalog.ProductDTO
	if err := c.do(ctx, call{method: http.MethodGet, path: "/api/v1/products", anonymous: true}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListShippingRates(ctx context.Context) ([]shipping.RateDTO, error) {
	var out []shipping.RateDTO
	if err := c.do(ctx, call{method: http.MethodGet, path: "/api/v1/shipping/rates", anonymous: true}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateBlend(ctx context.Context, req blends.CreateBlendRequest) (*blends.BlendDTO, error) {
	var out blends.BlendDTO
	if err := c.do(ctx, call{method: http.MethodPost, path: "/api/v1/custom-blends", body: req}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListBlends(ctx context.Context) ([]blends.BlendDTO, error) {
	var out []blends.BlendDTO
	if err := c.do(ctx, call{method: http.MethodGet, path: "/api/v1/custom-blends"}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateOrder submits the checkout snapshot. Each call carries a fresh
// idempotency key so transport retries replay while new attempts do not.
func (c *Client) CreateOrder(ctx context.Context, req orders.CreateOrderRequest) (*orders.OrderDTO, error) {
	var out orders.OrderDTO
	if err := c.do(ctx, call{method: http.MethodPost, path: "/api/v1/orders", body: req, idempotencyKey: uuid.NewString()}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListOrders(ctx context.Context) ([]orders.OrderDTO, error) {
	var out []orders.OrderDTO
	if err := c.do(ctx, call{method: http.MethodGet, path: "/api/v1/orders"}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateCheckoutSession(ctx context.Context, req payments.CreateSessionRequest) (*payments.SessionResponse, error) {
	var out payments.SessionResponse
	if err := c.do(ctx, call{method: http.MethodPost, path: "/api/v1/checkout/session", body: req, idempotencyKey: uuid.NewString()}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CheckoutStatus(ctx context.Context, sessionID string) (*payments.StatusResponse, error) {
	trimmed := strings.TrimSpace(sessionID)
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}
	var out payments.StatusResponse
	if err := c.do(ctx, call{method: http.MethodGet, path: "/api/v1/checkout/status/" + url.PathEscape(trimmed)}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateSubscription(ctx context.Context, req subscriptions.CreateSubscriptionRequest) (*subscriptions.SubscriptionDTO, error) {
	var out subscriptions.SubscriptionDTO
	if err := c.do(ctx, call{method: http.MethodPost, path: "/api/v1/subscriptions", body: req}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListSubscriptions(ctx context.Context) ([]subscriptions.SubscriptionDTO, error) {
	var out []subscriptions.SubscriptionDTO
	if err := c.do(ctx, call{method: http.MethodGet, path: "/api/v1/subscriptions"}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

type call struct {
	method         string
	path           string
	body           any
	token          string
	anonymous      bool
	idempotencyKey string
}

func (c *Client) do(ctx context.Context, in call, out any) error {
	if c == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "storefront client not configured")
	}

	var body io.Reader
	if in.body != nil {
		payload, err := json.Marshal(in.body)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal request")
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, in.method, c.baseURL+in.path, body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build request")
	}
	req.Header.Set("Accept", "application/json")
	if in.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if in.idempotencyKey != "" {
		req.Header.Set(idempotencyKeyHeader, in.idempotencyKey)
	}
	token := in.token
	if token == "" && !in.anonymous {
		token = c.token()
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("%s %s", in.method, in.path))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var envelope types.Envelope[json.RawMessage]
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode response envelope")
	}
	if len(envelope.Data) == 0 || string(envelope.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode response data")
	}
	return nil
}

// decodeError turns the server's error envelope back into a typed error.
func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyReadLimit))

	var envelope types.ErrorEnvelope
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error.Code != "" {
		typed := pkgerrors.New(pkgerrors.Code(envelope.Error.Code), envelope.Error.Message)
		if envelope.Error.Details != nil {
			typed = typed.WithDetails(envelope.Error.Details)
		}
		return typed
	}

	code := pkgerrors.CodeDependency
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		code = pkgerrors.CodeUnauthorized
	case http.StatusForbidden:
		code = pkgerrors.CodeForbidden
	case http.StatusNotFound:
		code = pkgerrors.CodeNotFound
	}
	return pkgerrors.Wrap(code, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw))), "api request failed")
}
