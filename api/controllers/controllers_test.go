package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rtwroastery/roastery-backend/api/middleware"
	"github.com/rtwroastery/roastery-backend/internal/auth"
	"github.com/rtwroastery/roastery-backend/internal/blends"
	"github.com/rtwroastery/roastery-backend/internal/catalog"
	"github.com/rtwroastery/roastery-backend/internal/payments"
	"github.com/rtwroastery/roastery-backend/internal/shipping"
	"github.com/rtwroastery/roastery-backend/internal/users"
	"github.com/rtwroastery/roastery-backend/pkg/config"
	"github.com/rtwroastery/roastery-backend/pkg/db/models"
	"github.com/rtwroastery/roastery-backend/pkg/enums"
	pkgerrors "github.com/rtwroastery/roastery-backend/pkg/errors"
)

type stubAuthService struct {
	resp         *auth.AuthResponse
	err          error
	loggedOut    string
	lastRegister auth.RegisterRequest
}

func (s *stubAuthService) Register(_ context.Context, req auth.RegisterRequest) (*auth.AuthResponse, error) {
	s.lastRegister = req
	return s.resp, s.err
}

func (s *stubAuthService) Login(context.Context, auth.LoginRequest) (*auth.AuthResponse, error) {
	return s.resp, s.err
}

func (s *stubAuthService) Me(_ context.Context, userID uuid.UUID) (*users.UserDTO, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &users.UserDTO{ID: userID, Email: "cup@roastery.test", Role: enums.UserRoleCustomer}, nil
}

func (s *stubAuthService) Logout(_ context.Context, accessID string) error {
	s.loggedOut = accessID
	return s.err
}

func withUser(req *http.Request, userID uuid.UUID) *http.Request {
	return req.WithContext(middleware.WithUserID(req.Context(), userID.String()))
}

func decodeData(t *testing.T, resp *httptest.ResponseRecorder, out any) {
	t.Helper()
	envelope := struct {
		Data json.RawMessage `json:"data"`
	}{}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		t.Fatalf("decode data: %v", err)
	}
}

func TestAuthRegisterCreated(t *testing.T) {
	svc := &stubAuthService{resp: &auth.AuthResponse{Token: "tok", User: &users.UserDTO{ID: uuid.New()}}}
	body := `{"email":"cup@roastery.test","password":"pw","name":"Cup"}`

	resp := httptest.NewRecorder()
	AuthRegister(svc, nil).ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", strings.NewReader(body)))

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	var out auth.AuthResponse
	decodeData(t, resp, &out)
	if out.Token != "tok" || svc.lastRegister.Name != "Cup" {
		t.Fatalf("unexpected response %+v", out)
	}
}

func TestAuthLoginRejectsInvalidEmail(t *testing.T) {
	resp := httptest.NewRecorder()
	AuthLogin(&stubAuthService{}, nil).ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{"email":"nope","password":"pw"}`)))

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestAuthLoginMapsUnauthorized(t *testing.T) {
	svc := &stubAuthService{err: pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")}
	resp := httptest.NewRecorder()
	AuthLogin(svc, nil).ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{"email":"cup@roastery.test","password":"bad"}`)))

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAuthMeReturnsProfile(t *testing.T) {
	userID := uuid.New()
	resp := httptest.NewRecorder()
	AuthMe(&stubAuthService{}, nil).ServeHTTP(resp, withUser(httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil), userID))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	var out users.UserDTO
	decodeData(t, resp, &out)
	if out.ID != userID {
		t.Fatalf("expected profile for %s, got %s", userID, out.ID)
	}
}

func TestAuthLogoutRevokesSession(t *testing.T) {
	svc := &stubAuthService{}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
	req = req.WithContext(middleware.WithAccessID(req.Context(), "jti-1"))

	resp := httptest.NewRecorder()
	AuthLogout(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK || svc.loggedOut != "jti-1" {
		t.Fatalf("expected logout of jti-1, got %d %q", resp.Code, svc.loggedOut)
	}
}

func TestAuthLogoutWithoutSession(t *testing.T) {
	resp := httptest.NewRecorder()
	AuthLogout(&stubAuthService{}, nil).ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil))

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestNilServiceIsInternal(t *testing.T) {
	resp := httptest.NewRecorder()
	AuthLogin(nil, nil).ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil))

	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", resp.Code)
	}
}

type stubCatalogService struct {
	products []catalog.ProductDTO
	last     catalog.CreateProductRequest
	err      error
}

func (s *stubCatalogService) ListProducts(context.Context) ([]catalog.ProductDTO, error) {
	return s.products, s.err
}

func (s *stubCatalogService) CreateProduct(_ context.Context, req catalog.CreateProductRequest) (*catalog.ProductDTO, error) {
	s.last = req
	if s.err != nil {
		return nil, s.err
	}
	return &catalog.ProductDTO{ID: uuid.New(), Name: req.Name}, nil
}

func (s *stubCatalogService) LookupProducts(context.Context, []uuid.UUID) ([]models.Product, error) {
	return nil, nil
}

func TestProductList(t *testing.T) {
	svc := &stubCatalogService{products: []catalog.ProductDTO{{ID: uuid.New(), Name: "Yirgacheffe", Price: decimal.RequireFromString("18.50")}}}
	resp := httptest.NewRecorder()
	ProductList(svc, nil).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/products", nil))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	var out []catalog.ProductDTO
	decodeData(t, resp, &out)
	if len(out) != 1 || !out[0].Price.Equal(decimal.RequireFromString("18.50")) {
		t.Fatalf("unexpected products %+v", out)
	}
}

func TestAdminProductCreateSanitizesName(t *testing.T) {
	svc := &stubCatalogService{}
	body := `{"name":"  House Roast  ","price":"12.00","origin":"Ethiopia","roast_level":"Medium"}`
	resp := httptest.NewRecorder()
	AdminProductCreate(svc, nil).ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/admin/v1/products", strings.NewReader(body)))

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.last.Name != "House Roast" {
		t.Fatalf("expected trimmed name, got %q", svc.last.Name)
	}
}

type stubShippingService struct {
	rates []shipping.RateDTO
	err   error
}

func (s *stubShippingService) List(context.Context) ([]shipping.RateDTO, error) {
	return s.rates, s.err
}

func (s *stubShippingService) Get(_ context.Context, id uuid.UUID) (*shipping.RateDTO, error) {
	return &shipping.RateDTO{ID: id}, s.err
}

func (s *stubShippingService) Create(_ context.Context, req shipping.CreateRateRequest) (*shipping.RateDTO, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &shipping.RateDTO{ID: uuid.New(), Region: req.Region, Rate: decimal.RequireFromString(req.Rate)}, nil
}

func TestShippingRateList(t *testing.T) {
	svc := &stubShippingService{rates: []shipping.RateDTO{{ID: uuid.New(), Region: "US", Rate: decimal.RequireFromString("5.00")}}}
	resp := httptest.NewRecorder()
	ShippingRateList(svc, nil).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/shipping/rates", nil))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestAdminShippingRateCreateRequiresRegion(t *testing.T) {
	resp := httptest.NewRecorder()
	AdminShippingRateCreate(&stubShippingService{}, nil).ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/admin/v1/shipping/rates", strings.NewReader(`{"rate":"5.00"}`)))

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

type stubBlendService struct {
	last   blends.CreateBlendRequest
	lastID uuid.UUID
	err    error
}

func (s *stubBlendService) Create(_ context.Context, userID uuid.UUID, req blends.CreateBlendRequest) (*blends.BlendDTO, error) {
	s.last = req
	if s.err != nil {
		return nil, s.err
	}
	return &blends.BlendDTO{ID: uuid.New(), UserID: userID, Name: req.Name, Quantity: req.Quantity}, nil
}

func (s *stubBlendService) List(context.Context, uuid.UUID) ([]blends.BlendDTO, error) {
	return []blends.BlendDTO{}, s.err
}

func (s *stubBlendService) Get(_ context.Context, _ uuid.UUID, blendID uuid.UUID) (*blends.BlendDTO, error) {
	s.lastID = blendID
	if s.err != nil {
		return nil, s.err
	}
	return &blends.BlendDTO{ID: blendID}, nil
}

func TestBlendCreate(t *testing.T) {
	svc := &stubBlendService{}
	body := `{"name":"Morning","origin":"Colombia","roast_level":"Light","grind_size":"Whole Bean","quantity":1,` +
		`"blend_components":{"Colombia":100}}`
	resp := httptest.NewRecorder()
	BlendCreate(svc, nil).ServeHTTP(resp, withUser(httptest.NewRequest(http.MethodPost, "/api/v1/custom-blends", strings.NewReader(body)), uuid.New()))

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.last.Name != "Morning" || svc.last.Quantity != 1 {
		t.Fatalf("unexpected blend request %+v", svc.last)
	}
}

func TestBlendDetailRejectsBadID(t *testing.T) {
	router := chi.NewRouter()
	router.Get("/api/v1/custom-blends/{blendId}", BlendDetail(&stubBlendService{}, nil))

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, withUser(httptest.NewRequest(http.MethodGet, "/api/v1/custom-blends/not-a-uuid", nil), uuid.New()))

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

type stubPaymentsService struct {
	session     *payments.SessionResponse
	status      *payments.StatusResponse
	err         error
	lastSession string
}

func (s *stubPaymentsService) CreateSession(context.Context, uuid.UUID, payments.CreateSessionRequest) (*payments.SessionResponse, error) {
	return s.session, s.err
}

func (s *stubPaymentsService) Status(_ context.Context, _ uuid.UUID, sessionID string) (*payments.StatusResponse, error) {
	s.lastSession = sessionID
	return s.status, s.err
}

func (s *stubPaymentsService) Confirm(context.Context, string, string) (bool, error) {
	return false, nil
}

func (s *stubPaymentsService) Expire(context.Context, string) error { return nil }

func (s *stubPaymentsService) ReconcileOpen(context.Context, time.Time, int) (payments.ReconcileResult, error) {
	return payments.ReconcileResult{}, nil
}

func TestCheckoutSessionCreated(t *testing.T) {
	svc := &stubPaymentsService{session: &payments.SessionResponse{SessionID: "cs_test_1", URL: "https://checkout.stripe.test/cs_test_1", PaymentStatus: enums.PaymentStatusOpen}}
	body := `{"order_id":"` + uuid.NewString() + `","origin_url":"https://shop.roastery.test"}`
	resp := httptest.NewRecorder()
	CheckoutSession(svc, nil).ServeHTTP(resp, withUser(httptest.NewRequest(http.MethodPost, "/api/v1/checkout/session", strings.NewReader(body)), uuid.New()))

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	var out payments.SessionResponse
	decodeData(t, resp, &out)
	if out.SessionID != "cs_test_1" {
		t.Fatalf("unexpected session %+v", out)
	}
}

func TestCheckoutStatusExpired(t *testing.T) {
	svc := &stubPaymentsService{err: pkgerrors.New(pkgerrors.CodePaymentExpired, "payment session expired")}
	router := chi.NewRouter()
	router.Get("/api/v1/checkout/status/{sessionId}", CheckoutStatus(svc, nil))

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, withUser(httptest.NewRequest(http.MethodGet, "/api/v1/checkout/status/cs_test_9", nil), uuid.New()))

	if resp.Code != http.StatusGone {
		t.Fatalf("expected 410 got %d", resp.Code)
	}
	if svc.lastSession != "cs_test_9" {
		t.Fatalf("expected session param, got %q", svc.lastSession)
	}
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func TestHealthReady(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "dev"}}

	resp := httptest.NewRecorder()
	HealthReady(cfg, nil, stubPinger{}, stubPinger{}).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if resp.Header().Get(envHeader) != "dev" {
		t.Fatalf("expected env header, got %q", resp.Header().Get(envHeader))
	}

	resp = httptest.NewRecorder()
	HealthReady(cfg, nil, stubPinger{}, stubPinger{err: errors.New("redis down")}).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), `"redis":"error"`) {
		t.Fatalf("expected failed check in details, got %s", resp.Body.String())
	}
}

func TestHealthLive(t *testing.T) {
	resp := httptest.NewRecorder()
	HealthLive(&config.Config{}).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}
