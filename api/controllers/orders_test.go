package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vendora-market/vendora-backend/internal/orders"
	"github.com/vendora-market/vendora-backend/pkg/db/models"
	"github.com/vendora-market/vendora-backend/pkg/enums"
	pkgerrors "github.com/vendora-market/vendora-backend/pkg/errors"
)

type stubOrdersService struct {
	status  *orders.GroupStatus
	err     error
	groupID uuid.UUID
}

func (s *stubOrdersService) Transition(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, target enums.OrderStatus) error {
	return pkgerrors.New(pkgerrors.CodeInternal, "not implemented")
}

func (s *stubOrdersService) MarkPaymentStatus(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, target enums.PaymentStatus) error {
	return pkgerrors.New(pkgerrors.CodeInternal, "not implemented")
}

func (s *stubOrdersService) GroupStatus(ctx context.Context, groupID uuid.UUID) (*orders.GroupStatus, error) {
	s.groupID = groupID
	return s.status, s.err
}

func newOrdersRouter(svc *stubOrdersService) http.Handler {
	r := chi.NewRouter()
	r.Get("/orders/groups/{groupId}", OrderGroupStatus(svc, nil))
	return r
}

func TestOrderGroupStatusSuccess(t *testing.T) {
	t.Parallel()

	groupID := uuid.New()
	svc := &stubOrdersService{status: &orders.GroupStatus{
		Group: &models.OrderGroup{
			ID:       groupID,
			BuyerRef: "buyer-17",
			Orders: []models.Order{
				{ID: uuid.New(), OrderNumber: "VND-1001", Status: enums.OrderStatusCompleted, PaymentStatus: enums.PaymentStatusPaid, TotalCents: 4_500},
				{ID: uuid.New(), OrderNumber: "VND-1002", Status: enums.OrderStatusCancelled, PaymentStatus: enums.PaymentStatusUnpaid, TotalCents: 2_000},
			},
		},
		Complete: true,
	}}
	router := newOrdersRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/orders/groups/"+groupID.String(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if svc.groupID != groupID {
		t.Fatalf("expected lookup for %s, got %s", groupID, svc.groupID)
	}

	var envelope struct {
		Data groupStatusResponse `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !envelope.Data.Complete {
		t.Fatalf("expected complete group, got %+v", envelope.Data)
	}
	if len(envelope.Data.Orders) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(envelope.Data.Orders))
	}
}

func TestOrderGroupStatusRejectsBadID(t *testing.T) {
	t.Parallel()

	router := newOrdersRouter(&stubOrdersService{})

	req := httptest.NewRequest(http.MethodGet, "/orders/groups/not-a-uuid", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestOrderGroupStatusNotFound(t *testing.T) {
	t.Parallel()

	svc := &stubOrdersService{err: pkgerrors.New(pkgerrors.CodeNotFound, "order group not found")}
	router := newOrdersRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/orders/groups/"+uuid.NewString(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
