package orders

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rtwroastery/roastery-backend/api/middleware"
	internalorders "github.com/rtwroastery/roastery-backend/internal/orders"
	"github.com/rtwroastery/roastery-backend/pkg/enums"
	pkgerrors "github.com/rtwroastery/roastery-backend/pkg/errors"
	"github.com/rtwroastery/roastery-backend/pkg/pagination"
)

type stubOrdersService struct {
	created     *internalorders.OrderDTO
	err         error
	lastCreate  internalorders.CreateOrderRequest
	lastFilters internalorders.AdminFilters
	lastStatus  internalorders.UpdateStatusRequest
	lastOrderID uuid.UUID
}

func (s *stubOrdersService) Create(_ context.Context, _ uuid.UUID, req internalorders.CreateOrderRequest) (*internalorders.OrderDTO, error) {
	s.lastCreate = req
	return s.created, s.err
}

func (s *stubOrdersService) List(context.Context, uuid.UUID) ([]internalorders.OrderDTO, error) {
	return []internalorders.OrderDTO{}, s.err
}

func (s *stubOrdersService) Get(_ context.Context, _ uuid.UUID, orderID uuid.UUID) (*internalorders.OrderDTO, error) {
	s.lastOrderID = orderID
	if s.err != nil {
		return nil, s.err
	}
	return &internalorders.OrderDTO{ID: orderID}, nil
}

func (s *stubOrdersService) AdminList(_ context.Context, filters internalorders.AdminFilters) (*internalorders.OrderPage, error) {
	s.lastFilters = filters
	if s.err != nil {
		return nil, s.err
	}
	return &internalorders.OrderPage{Items: []internalorders.OrderDTO{}}, nil
}

func (s *stubOrdersService) UpdateStatus(_ context.Context, orderID uuid.UUID, req internalorders.UpdateStatusRequest) (*internalorders.OrderDTO, error) {
	s.lastOrderID = orderID
	s.lastStatus = req
	if s.err != nil {
		return nil, s.err
	}
	return &internalorders.OrderDTO{ID: orderID, Status: enums.OrderStatus(req.Status)}, nil
}

func withUser(req *http.Request) *http.Request {
	return req.WithContext(middleware.WithUserID(req.Context(), uuid.NewString()))
}

func createBody(productID uuid.UUID) string {
	return `{"items":[{"product_id":"` + productID.String() + `","quantity":2}],"total_amount":"25.00",` +
		`"shipping_address":{"address":"1 Bean St","city":"Austin","state":"TX","zip":"78701"}}`
}

func TestCreateReturnsCreated(t *testing.T) {
	productID := uuid.New()
	svc := &stubOrdersService{created: &internalorders.OrderDTO{ID: uuid.New(), TotalAmount: decimal.RequireFromString("25.00")}}

	req := withUser(httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(createBody(productID))))
	resp := httptest.NewRecorder()
	Create(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	if len(svc.lastCreate.Items) != 1 || *svc.lastCreate.Items[0].ProductID != productID {
		t.Fatalf("unexpected request %+v", svc.lastCreate)
	}
	if svc.lastCreate.ShippingAddress.City != "Austin" {
		t.Fatalf("expected address to decode, got %+v", svc.lastCreate.ShippingAddress)
	}
}

func TestCreateReusedOrderIsOK(t *testing.T) {
	svc := &stubOrdersService{created: &internalorders.OrderDTO{ID: uuid.New(), Reused: true}}

	req := withUser(httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(createBody(uuid.New()))))
	resp := httptest.NewRecorder()
	Create(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestCreateRequiresItems(t *testing.T) {
	req := withUser(httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(`{"items":[]}`)))
	resp := httptest.NewRecorder()
	Create(&stubOrdersService{}, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestDetailMapsNotFound(t *testing.T) {
	svc := &stubOrdersService{err: pkgerrors.New(pkgerrors.CodeNotFound, "order not found")}
	router := chi.NewRouter()
	router.Get("/api/v1/orders/{orderId}", Detail(svc, nil))

	req := withUser(httptest.NewRequest(http.MethodGet, "/api/v1/orders/"+uuid.NewString(), nil))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
}

func TestAdminListParsesFilters(t *testing.T) {
	svc := &stubOrdersService{}
	req := httptest.NewRequest(http.MethodGet, "/api/admin/v1/orders?status=processing&payment_status=paid&limit=10", nil)
	resp := httptest.NewRecorder()
	AdminList(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	f := svc.lastFilters
	if f.Limit != 10 || f.Status == nil || *f.Status != enums.OrderStatusProcessing || f.PaymentStatus == nil || *f.PaymentStatus != enums.PaymentStatusPaid {
		t.Fatalf("unexpected filters %+v", f)
	}
}

func TestAdminListDecodesCursor(t *testing.T) {
	svc := &stubOrdersService{}
	cursor := pagination.Cursor{CreatedAt: time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC), ID: uuid.New()}
	req := httptest.NewRequest(http.MethodGet, "/api/admin/v1/orders?cursor="+pagination.Encode(cursor), nil)
	resp := httptest.NewRecorder()
	AdminList(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	after := svc.lastFilters.After
	if after == nil || after.ID != cursor.ID || !after.CreatedAt.Equal(cursor.CreatedAt) {
		t.Fatalf("unexpected cursor %+v", after)
	}
	if svc.lastFilters.Limit != pagination.DefaultLimit {
		t.Fatalf("expected default limit, got %d", svc.lastFilters.Limit)
	}

	bad := httptest.NewRecorder()
	AdminList(svc, nil).ServeHTTP(bad, httptest.NewRequest(http.MethodGet, "/api/admin/v1/orders?cursor=%25%25", nil))
	if bad.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a bad cursor got %d", bad.Code)
	}
}

func TestAdminListRejectsUnknownStatus(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/admin/v1/orders?status=lost", nil)
	resp := httptest.NewRecorder()
	AdminList(&stubOrdersService{}, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestAdminUpdateStatus(t *testing.T) {
	svc := &stubOrdersService{}
	orderID := uuid.New()
	router := chi.NewRouter()
	router.Patch("/api/admin/v1/orders/{orderId}", AdminUpdateStatus(svc, nil))

	req := httptest.NewRequest(http.MethodPatch, "/api/admin/v1/orders/"+orderID.String(), strings.NewReader(`{"status":"shipped"}`))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	var envelope struct {
		Data internalorders.OrderDTO `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if svc.lastOrderID != orderID || envelope.Data.Status != enums.OrderStatusShipped {
		t.Fatalf("unexpected update %s %+v", svc.lastOrderID, envelope.Data)
	}
}

func TestAdminUpdateStatusConflict(t *testing.T) {
	svc := &stubOrdersService{err: pkgerrors.New(pkgerrors.CodeStateConflict, "invalid status transition")}
	router := chi.NewRouter()
	router.Patch("/api/admin/v1/orders/{orderId}", AdminUpdateStatus(svc, nil))

	req := httptest.NewRequest(http.MethodPatch, "/api/admin/v1/orders/"+uuid.NewString(), strings.NewReader(`{"status":"delivered"}`))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d", resp.Code)
	}
}
