package orders

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/vendora-market/vendora-backend/pkg/db/models"
	"github.com/vendora-market/vendora-backend/pkg/enums"
	apperrors "github.com/vendora-market/vendora-backend/pkg/errors"
	"github.com/vendora-market/vendora-backend/pkg/logger"
)

type stubRepository struct {
	orders  map[uuid.UUID]*models.Order
	group   *models.OrderGroup
	updates map[uuid.UUID][]map[string]any
}

func (r *stubRepository) WithTx(tx *gorm.DB) Repository { return r }

func (r *stubRepository) CreateOrderGroup(ctx context.Context, group *models.OrderGroup) (*models.OrderGroup, error) {
	return group, nil
}

func (r *stubRepository) CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error) {
	return order, nil
}

func (r *stubRepository) CreateOrderItems(ctx context.Context, items []models.OrderItem) error {
	return nil
}

func (r *stubRepository) FindOrderGroupByID(ctx context.Context, id uuid.UUID) (*models.OrderGroup, error) {
	if r.group == nil || r.group.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	return r.group, nil
}

func (r *stubRepository) FindOrderByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	if order, ok := r.orders[id]; ok {
		return order, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubRepository) UpdateOrder(ctx context.Context, orderID uuid.UUID, updates map[string]any) error {
	if r.updates == nil {
		r.updates = map[uuid.UUID][]map[string]any{}
	}
	r.updates[orderID] = append(r.updates[orderID], updates)
	return nil
}

func (r *stubRepository) FindAttributionByOrder(ctx context.Context, orderID uuid.UUID) (*models.AffiliateAttribution, error) {
	return nil, nil
}

func (r *stubRepository) CreateAttribution(ctx context.Context, attribution *models.AffiliateAttribution) error {
	return nil
}

func newServiceForTest(t *testing.T, repo *stubRepository) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Repo:   repo,
		Logger: logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
	})
	require.NoError(t, err)
	return svc
}

func TestTransitionAppliesLegalStep(t *testing.T) {
	orderID := uuid.New()
	repo := &stubRepository{orders: map[uuid.UUID]*models.Order{
		orderID: {ID: orderID, Status: enums.OrderStatusPending},
	}}
	svc := newServiceForTest(t, repo)

	err := svc.Transition(context.Background(), nil, orderID, enums.OrderStatusConfirmed)
	require.NoError(t, err)

	require.Len(t, repo.updates[orderID], 1)
	assert.Equal(t, enums.OrderStatusConfirmed, repo.updates[orderID][0]["status"])
}

func TestTransitionRejectsIllegalStep(t *testing.T) {
	orderID := uuid.New()
	repo := &stubRepository{orders: map[uuid.UUID]*models.Order{
		orderID: {ID: orderID, Status: enums.OrderStatusCompleted},
	}}
	svc := newServiceForTest(t, repo)

	err := svc.Transition(context.Background(), nil, orderID, enums.OrderStatusCancelled)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeStateConflict))
	assert.Empty(t, repo.updates, "a rejected transition must not touch the row")
}

func TestTransitionUnknownOrder(t *testing.T) {
	svc := newServiceForTest(t, &stubRepository{})

	err := svc.Transition(context.Background(), nil, uuid.New(), enums.OrderStatusConfirmed)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func TestMarkPaymentStatusAppliesLegalStep(t *testing.T) {
	orderID := uuid.New()
	repo := &stubRepository{orders: map[uuid.UUID]*models.Order{
		orderID: {ID: orderID, PaymentStatus: enums.PaymentStatusUnpaid},
	}}
	svc := newServiceForTest(t, repo)

	err := svc.MarkPaymentStatus(context.Background(), nil, orderID, enums.PaymentStatusPaid)
	require.NoError(t, err)

	require.Len(t, repo.updates[orderID], 1)
	assert.Equal(t, enums.PaymentStatusPaid, repo.updates[orderID][0]["payment_status"])
}

func TestMarkPaymentStatusRejectsIllegalStep(t *testing.T) {
	orderID := uuid.New()
	repo := &stubRepository{orders: map[uuid.UUID]*models.Order{
		orderID: {ID: orderID, PaymentStatus: enums.PaymentStatusRefunded},
	}}
	svc := newServiceForTest(t, repo)

	err := svc.MarkPaymentStatus(context.Background(), nil, orderID, enums.PaymentStatusPaid)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeStateConflict))
}

func TestGroupStatusCompleteOnlyWhenEveryOrderIsTerminal(t *testing.T) {
	cases := []struct {
		name     string
		statuses []enums.OrderStatus
		complete bool
	}{
		{"all completed", []enums.OrderStatus{enums.OrderStatusCompleted, enums.OrderStatusCompleted}, true},
		{"all cancelled", []enums.OrderStatus{enums.OrderStatusCancelled}, true},
		{"mixed terminal", []enums.OrderStatus{enums.OrderStatusCompleted, enums.OrderStatusCancelled}, true},
		{"one leg still open", []enums.OrderStatus{enums.OrderStatusCompleted, enums.OrderStatusPending}, false},
		{"one leg processing", []enums.OrderStatus{enums.OrderStatusCancelled, enums.OrderStatusProcessing}, false},
		{"no orders", nil, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			group := &models.OrderGroup{ID: uuid.New()}
			for _, status := range tc.statuses {
				group.Orders = append(group.Orders, models.Order{ID: uuid.New(), Status: status})
			}
			svc := newServiceForTest(t, &stubRepository{group: group})

			status, err := svc.GroupStatus(context.Background(), group.ID)
			require.NoError(t, err)
			assert.Equal(t, tc.complete, status.Complete)
		})
	}
}

func TestGroupStatusUnknownGroup(t *testing.T) {
	svc := newServiceForTest(t, &stubRepository{})

	_, err := svc.GroupStatus(context.Background(), uuid.New())
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}
