package payment

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/vendora-market/vendora-backend/internal/commission"
	"github.com/vendora-market/vendora-backend/internal/orders"
	"github.com/vendora-market/vendora-backend/internal/payments"
	"github.com/vendora-market/vendora-backend/pkg/db/models"
	"github.com/vendora-market/vendora-backend/pkg/enums"
	apperrors "github.com/vendora-market/vendora-backend/pkg/errors"
	"github.com/vendora-market/vendora-backend/pkg/logger"
	"github.com/vendora-market/vendora-backend/pkg/outbox"
)

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type stubOutbox struct {
	events []outbox.DomainEvent
}

func (s *stubOutbox) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	s.events = append(s.events, event)
	return nil
}

type stubTxnRepo struct {
	txn     *models.Transaction
	updates []map[string]any
}

func (r *stubTxnRepo) WithTx(tx *gorm.DB) payments.Repository { return r }

func (r *stubTxnRepo) CreateTransaction(ctx context.Context, txn *models.Transaction) (*models.Transaction, error) {
	return txn, nil
}

func (r *stubTxnRepo) UpdateTransaction(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	r.updates = append(r.updates, updates)
	return nil
}

func (r *stubTxnRepo) FindTransactionByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	return nil, gorm.ErrRecordNotFound
}

func (r *stubTxnRepo) FindTransactionByIdempotencyKey(ctx context.Context, key string) (*models.Transaction, error) {
	return nil, gorm.ErrRecordNotFound
}

func (r *stubTxnRepo) FindTransactionByProviderRef(ctx context.Context, ref string) (*models.Transaction, error) {
	if r.txn == nil || r.txn.ProviderRef == nil || *r.txn.ProviderRef != ref {
		return nil, gorm.ErrRecordNotFound
	}
	return r.txn, nil
}

func (r *stubTxnRepo) LatestAttempt(ctx context.Context, groupID uuid.UUID) (int, error) {
	return 0, nil
}

func (r *stubTxnRepo) HasCompletedTransaction(ctx context.Context, groupID uuid.UUID) (bool, error) {
	return false, nil
}

type stubOrdersRepo struct {
	group        *models.OrderGroup
	orderUpdates map[uuid.UUID][]map[string]any
}

func (r *stubOrdersRepo) WithTx(tx *gorm.DB) orders.Repository { return r }

func (r *stubOrdersRepo) CreateOrderGroup(ctx context.Context, group *models.OrderGroup) (*models.OrderGroup, error) {
	return group, nil
}

func (r *stubOrdersRepo) CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error) {
	return order, nil
}

func (r *stubOrdersRepo) CreateOrderItems(ctx context.Context, items []models.OrderItem) error {
	return nil
}

func (r *stubOrdersRepo) FindOrderGroupByID(ctx context.Context, id uuid.UUID) (*models.OrderGroup, error) {
	if r.group == nil || r.group.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	return r.group, nil
}

func (r *stubOrdersRepo) FindOrderByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	if r.group != nil {
		for i := range r.group.Orders {
			if r.group.Orders[i].ID == id {
				order := r.group.Orders[i]
				return &order, nil
			}
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubOrdersRepo) UpdateOrder(ctx context.Context, orderID uuid.UUID, updates map[string]any) error {
	if r.orderUpdates == nil {
		r.orderUpdates = map[uuid.UUID][]map[string]any{}
	}
	r.orderUpdates[orderID] = append(r.orderUpdates[orderID], updates)
	if r.group != nil {
		for i := range r.group.Orders {
			if r.group.Orders[i].ID != orderID {
				continue
			}
			if status, ok := updates["status"].(enums.OrderStatus); ok {
				r.group.Orders[i].Status = status
			}
			if payment, ok := updates["payment_status"].(enums.PaymentStatus); ok {
				r.group.Orders[i].PaymentStatus = payment
			}
		}
	}
	return nil
}

func (r *stubOrdersRepo) FindAttributionByOrder(ctx context.Context, orderID uuid.UUID) (*models.AffiliateAttribution, error) {
	return nil, nil
}

func (r *stubOrdersRepo) CreateAttribution(ctx context.Context, attribution *models.AffiliateAttribution) error {
	return nil
}

type stubSettler struct {
	calls  int
	orders []models.Order
	result *commission.Result
}

func (s *stubSettler) Settle(ctx context.Context, tx *gorm.DB, txn *models.Transaction, orders []models.Order) (*commission.Result, error) {
	s.calls++
	s.orders = orders
	if s.result != nil {
		return s.result, nil
	}
	return &commission.Result{OrdersSettled: len(orders)}, nil
}

func pendingTransaction(ref string, amount int64) *models.Transaction {
	return &models.Transaction{
		ID:           uuid.New(),
		OrderGroupID: uuid.New(),
		Attempt:      1,
		ProviderRef:  &ref,
		AmountCents:  amount,
		Currency:     enums.CurrencyUSD,
		Status:       enums.TransactionStatusPending,
	}
}

func groupFor(txn *models.Transaction, orderCount int) *models.OrderGroup {
	group := &models.OrderGroup{ID: txn.OrderGroupID}
	for i := 0; i < orderCount; i++ {
		group.Orders = append(group.Orders, models.Order{
			ID:            uuid.New(),
			OrderGroupID:  group.ID,
			Status:        enums.OrderStatusPending,
			PaymentStatus: enums.PaymentStatusUnpaid,
			TotalCents:    1_000,
		})
	}
	return group
}

func newTestService(t *testing.T, txns *stubTxnRepo, ordersRepo *stubOrdersRepo, settle *stubSettler, events *stubOutbox) Service {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	transitions, err := orders.NewService(orders.ServiceParams{Repo: ordersRepo, Logger: logg})
	require.NoError(t, err)
	svc, err := NewService(ServiceParams{
		Tx:           stubTxRunner{},
		Transactions: txns,
		OrdersRepo:   ordersRepo,
		Orders:       transitions,
		Commission:   settle,
		Outbox:       events,
		Logger:       logg,
	})
	require.NoError(t, err)
	return svc
}

func TestProcessSettlesTransaction(t *testing.T) {
	txn := pendingTransaction("sq-order-1", 2_000)
	group := groupFor(txn, 2)
	txns := &stubTxnRepo{txn: txn}
	ordersRepo := &stubOrdersRepo{group: group}
	settle := &stubSettler{}
	events := &stubOutbox{}

	svc := newTestService(t, txns, ordersRepo, settle, events)
	outcome, err := svc.Process(context.Background(), Notification{
		ProviderRef: "sq-order-1",
		Status:      "completed",
		AmountCents: 2_000,
		Currency:    "USD",
	})
	require.NoError(t, err)

	assert.True(t, outcome.Applied)
	assert.Equal(t, enums.TransactionStatusCompleted, outcome.Status)
	assert.Equal(t, 2, outcome.OrdersSettled)

	require.Len(t, txns.updates, 1)
	assert.Equal(t, enums.TransactionStatusCompleted, txns.updates[0]["status"])
	assert.Contains(t, txns.updates[0], "completed_at")

	// Each order moves through two validated transitions: the payment flag
	// first, then the pending to confirmed hop.
	for _, order := range group.Orders {
		updates := ordersRepo.orderUpdates[order.ID]
		require.Len(t, updates, 2)
		assert.Equal(t, enums.PaymentStatusPaid, updates[0]["payment_status"])
		assert.Equal(t, enums.OrderStatusConfirmed, updates[1]["status"])
	}

	assert.Equal(t, 1, settle.calls)
	require.Len(t, events.events, 1)
	assert.Equal(t, enums.EventPaymentSettled, events.events[0].EventType)
}

func TestProcessSettleKeepsProgressedOrder(t *testing.T) {
	txn := pendingTransaction("sq-order-9", 1_000)
	group := groupFor(txn, 1)
	group.Orders[0].Status = enums.OrderStatusProcessing
	txns := &stubTxnRepo{txn: txn}
	ordersRepo := &stubOrdersRepo{group: group}

	svc := newTestService(t, txns, ordersRepo, &stubSettler{}, &stubOutbox{})
	_, err := svc.Process(context.Background(), Notification{
		ProviderRef: "sq-order-9",
		Status:      "completed",
	})
	require.NoError(t, err)

	updates := ordersRepo.orderUpdates[group.Orders[0].ID]
	require.Len(t, updates, 1, "an order past pending only converges its payment flag")
	assert.Equal(t, enums.PaymentStatusPaid, updates[0]["payment_status"])
	assert.Equal(t, enums.OrderStatusProcessing, group.Orders[0].Status)
}

func TestProcessDuplicateDeliveryIsNoOp(t *testing.T) {
	txn := pendingTransaction("sq-order-1", 2_000)
	txn.Status = enums.TransactionStatusCompleted
	txns := &stubTxnRepo{txn: txn}
	settle := &stubSettler{}
	events := &stubOutbox{}

	svc := newTestService(t, txns, &stubOrdersRepo{}, settle, events)
	outcome, err := svc.Process(context.Background(), Notification{
		ProviderRef: "sq-order-1",
		Status:      "completed",
	})
	require.NoError(t, err)

	assert.False(t, outcome.Applied)
	assert.Empty(t, txns.updates)
	assert.Zero(t, settle.calls, "redelivery must not write a second commission ledger")
	assert.Empty(t, events.events)
}

func TestProcessRejectsConflictingOutcome(t *testing.T) {
	txn := pendingTransaction("sq-order-1", 2_000)
	txn.Status = enums.TransactionStatusCompleted
	txns := &stubTxnRepo{txn: txn}

	svc := newTestService(t, txns, &stubOrdersRepo{}, &stubSettler{}, &stubOutbox{})
	_, err := svc.Process(context.Background(), Notification{
		ProviderRef: "sq-order-1",
		Status:      "failed",
	})

	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeStateConflict))
}

func TestProcessRejectsAmountMismatch(t *testing.T) {
	txn := pendingTransaction("sq-order-1", 2_000)
	txns := &stubTxnRepo{txn: txn}

	svc := newTestService(t, txns, &stubOrdersRepo{}, &stubSettler{}, &stubOutbox{})
	_, err := svc.Process(context.Background(), Notification{
		ProviderRef: "sq-order-1",
		Status:      "completed",
		AmountCents: 1_500,
	})

	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
	assert.Empty(t, txns.updates)
}

func TestProcessFailureLeavesOrdersPending(t *testing.T) {
	txn := pendingTransaction("sq-order-1", 2_000)
	txns := &stubTxnRepo{txn: txn}
	ordersRepo := &stubOrdersRepo{group: groupFor(txn, 1)}
	settle := &stubSettler{}
	events := &stubOutbox{}

	svc := newTestService(t, txns, ordersRepo, settle, events)
	outcome, err := svc.Process(context.Background(), Notification{
		ProviderRef: "sq-order-1",
		Status:      "failed",
	})
	require.NoError(t, err)

	assert.True(t, outcome.Applied)
	assert.Equal(t, enums.TransactionStatusFailed, outcome.Status)

	require.Len(t, txns.updates, 1)
	assert.Equal(t, enums.TransactionStatusFailed, txns.updates[0]["status"])

	assert.Empty(t, ordersRepo.orderUpdates, "failed payment must not confirm orders")
	assert.Zero(t, settle.calls)
	require.Len(t, events.events, 1)
	assert.Equal(t, enums.EventPaymentFailed, events.events[0].EventType)
}

func TestProcessValidatesNotification(t *testing.T) {
	svc := newTestService(t, &stubTxnRepo{}, &stubOrdersRepo{}, &stubSettler{}, &stubOutbox{})

	cases := []struct {
		name         string
		notification Notification
		wantCode     apperrors.Code
	}{
		{"missing ref", Notification{Status: "completed"}, apperrors.CodeValidation},
		{"unknown status", Notification{ProviderRef: "x", Status: "settledish"}, apperrors.CodeValidation},
		{"non-terminal status", Notification{ProviderRef: "x", Status: "pending"}, apperrors.CodeValidation},
		{"unknown transaction", Notification{ProviderRef: "missing", Status: "completed"}, apperrors.CodeNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Process(context.Background(), tc.notification)
			require.Error(t, err)
			assert.True(t, apperrors.HasCode(err, tc.wantCode))
		})
	}
}
