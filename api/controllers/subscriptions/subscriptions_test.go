package subscriptions

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/rtwroastery/roastery-backend/api/middleware"
	subsvc "github.com/rtwroastery/roastery-backend/internal/subscriptions"
	"github.com/rtwroastery/roastery-backend/pkg/enums"
	pkgerrors "github.com/rtwroastery/roastery-backend/pkg/errors"
)

type stubService struct {
	err        error
	lastCreate subsvc.CreateSubscriptionRequest
	lastUpdate subsvc.UpdateStatusRequest
	lastSubID  uuid.UUID
	lastUserID uuid.UUID
}

func (s *stubService) Create(_ context.Context, userID uuid.UUID, req subsvc.CreateSubscriptionRequest) (*subsvc.SubscriptionDTO, error) {
	s.lastUserID = userID
	s.lastCreate = req
	if s.err != nil {
		return nil, s.err
	}
	return &subsvc.SubscriptionDTO{ID: uuid.New(), CustomBlendID: req.CustomBlendID, Status: enums.SubscriptionStatusActive}, nil
}

func (s *stubService) List(context.Context, uuid.UUID) ([]subsvc.SubscriptionDTO, error) {
	return []subsvc.SubscriptionDTO{}, s.err
}

func (s *stubService) UpdateStatus(_ context.Context, userID, subID uuid.UUID, req subsvc.UpdateStatusRequest) (*subsvc.SubscriptionDTO, error) {
	s.lastUserID = userID
	s.lastSubID = subID
	s.lastUpdate = req
	if s.err != nil {
		return nil, s.err
	}
	return &subsvc.SubscriptionDTO{ID: subID}, nil
}

func (s *stubService) AdvanceDue(context.Context, int) (int, error) { return 0, nil }

func withUser(req *http.Request, userID uuid.UUID) *http.Request {
	return req.WithContext(middleware.WithUserID(req.Context(), userID.String()))
}

func TestCreateSubscription(t *testing.T) {
	svc := &stubService{}
	userID := uuid.New()
	blendID := uuid.New()
	body := `{"custom_blend_id":"` + blendID.String() + `","frequency":"weekly"}`

	resp := httptest.NewRecorder()
	Create(svc, nil).ServeHTTP(resp, withUser(httptest.NewRequest(http.MethodPost, "/api/v1/subscriptions", strings.NewReader(body)), userID))

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.lastUserID != userID || svc.lastCreate.CustomBlendID != blendID || svc.lastCreate.Frequency != "weekly" {
		t.Fatalf("unexpected create call %+v", svc.lastCreate)
	}
}

func TestCreateSubscriptionRequiresFrequency(t *testing.T) {
	body := `{"custom_blend_id":"` + uuid.NewString() + `"}`
	resp := httptest.NewRecorder()
	Create(&stubService{}, nil).ServeHTTP(resp, withUser(httptest.NewRequest(http.MethodPost, "/api/v1/subscriptions", strings.NewReader(body)), uuid.New()))

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestListRequiresUser(t *testing.T) {
	resp := httptest.NewRecorder()
	List(&stubService{}, nil).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/subscriptions", nil))

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestUpdateStatusRoutesParam(t *testing.T) {
	svc := &stubService{}
	subID := uuid.New()
	router := chi.NewRouter()
	router.Patch("/api/v1/subscriptions/{subscriptionId}", UpdateStatus(svc, nil))

	req := withUser(httptest.NewRequest(http.MethodPatch, "/api/v1/subscriptions/"+subID.String(), strings.NewReader(`{"status":"paused"}`)), uuid.New())
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.lastSubID != subID || svc.lastUpdate.Status != "paused" {
		t.Fatalf("unexpected update %s %+v", svc.lastSubID, svc.lastUpdate)
	}
}

func TestUpdateStatusMapsNotFound(t *testing.T) {
	svc := &stubService{err: pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")}
	router := chi.NewRouter()
	router.Patch("/api/v1/subscriptions/{subscriptionId}", UpdateStatus(svc, nil))

	req := withUser(httptest.NewRequest(http.MethodPatch, "/api/v1/subscriptions/"+uuid.NewString(), strings.NewReader(`{"status":"cancelled"}`)), uuid.New())
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
}
