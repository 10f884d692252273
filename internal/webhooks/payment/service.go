package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
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

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type settler interface {
	Settle(ctx context.Context, tx *gorm.DB, txn *models.Transaction, orders []models.Order) (*commission.Result, error)
}

// Notification is the already-verified gateway callback payload. Signature
// checking happens at the controller; by the time this struct exists the
// bytes are trusted.
type Notification struct {
	ProviderRef string
	Status      string
	AmountCents int64
	Currency    string
}

// Outcome reports what processing one notification changed.
type Outcome struct {
	TransactionID uuid.UUID
	Status        enums.TransactionStatus
	Applied       bool
	OrdersSettled int
}

// Service applies gateway outcome notifications. The transaction state
// change, order updates, and commission rows commit atomically so a crash
// mid-webhook cannot leave a settled payment without its ledger.
type Service interface {
	Process(ctx context.Context, notification Notification) (*Outcome, error)
}

type service struct {
	tx          txRunner
	txns        payments.Repository
	ordersRepo  orders.Repository
	transitions orders.Service
	commission  settler
	outbox      outboxPublisher
	logger      *logger.Logger
	now         func() time.Time
}

// ServiceParams carries the dependencies for NewService.
type ServiceParams struct {
	Tx           txRunner
	Transactions payments.Repository
	OrdersRepo   orders.Repository
	Orders       orders.Service
	Commission   settler
	Outbox       outboxPublisher
	Logger       *logger.Logger
	Now          func() time.Time
}

// NewService builds the payment webhook processor.
func NewService(params ServiceParams) (Service, error) {
	if params.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Transactions == nil {
		return nil, fmt.Errorf("transactions repository required")
	}
	if params.OrdersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders service required")
	}
	if params.Commission == nil {
		return nil, fmt.Errorf("commission service required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Now == nil {
		params.Now = time.Now
	}
	return &service{
		tx:          params.Tx,
		txns:        params.Transactions,
		ordersRepo:  params.OrdersRepo,
		transitions: params.Orders,
		commission:  params.Commission,
		outbox:      params.Outbox,
		logger:      params.Logger,
		now:         params.Now,
	}, nil
}

func (s *service) Process(ctx context.Context, notification Notification) (*Outcome, error) {
	if notification.ProviderRef == "" {
		return nil, apperrors.New(apperrors.CodeValidation, "provider reference required")
	}
	target, err := enums.ParseTransactionStatus(notification.Status)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeValidation, err, "unknown payment status")
	}
	if !target.IsTerminal() {
		return nil, apperrors.New(apperrors.CodeValidation, "payment notification must carry a terminal status").
			WithDetails(map[string]any{"status": notification.Status})
	}

	var outcome *Outcome
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		applied, err := s.apply(ctx, tx, notification, target)
		if err != nil {
			return err
		}
		outcome = applied
		return nil
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logger.WithFields(ctx, map[string]any{
		"transaction_id": outcome.TransactionID.String(),
		"status":         outcome.Status,
		"applied":        outcome.Applied,
	})
	s.logger.Info(logCtx, "payment notification processed")
	return outcome, nil
}

func (s *service) apply(ctx context.Context, tx *gorm.DB, notification Notification, target enums.TransactionStatus) (*Outcome, error) {
	txns := s.txns.WithTx(tx)

	txn, err := txns.FindTransactionByProviderRef(ctx, notification.ProviderRef)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeNotFound, err, "no transaction for provider reference")
	}

	if txn.Status.IsTerminal() {
		if txn.Status == target {
			// Redelivered notification; the first delivery already won.
			return &Outcome{TransactionID: txn.ID, Status: txn.Status, Applied: false}, nil
		}
		return nil, apperrors.New(apperrors.CodeStateConflict, "transaction already settled with a different outcome").
			WithDetails(map[string]any{"current": txn.Status, "reported": target})
	}

	if notification.AmountCents != 0 && notification.AmountCents != txn.AmountCents {
		return nil, apperrors.New(apperrors.CodeValidation, "notification amount does not match transaction").
			WithDetails(map[string]any{"expected": txn.AmountCents, "reported": notification.AmountCents})
	}
	if notification.Currency != "" && notification.Currency != string(txn.Currency) {
		return nil, apperrors.New(apperrors.CodeValidation, "notification currency does not match transaction")
	}

	switch target {
	case enums.TransactionStatusCompleted:
		return s.settle(ctx, tx, txns, txn)
	default:
		return s.fail(ctx, tx, txns, txn)
	}
}

func (s *service) settle(ctx context.Context, tx *gorm.DB, txns payments.Repository, txn *models.Transaction) (*Outcome, error) {
	settledAt := s.now().UTC()
	updates := map[string]any{
		"status":       enums.TransactionStatusCompleted,
		"completed_at": settledAt,
	}
	if err := txns.UpdateTransaction(ctx, txn.ID, updates); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "mark transaction completed")
	}
	txn.Status = enums.TransactionStatusCompleted
	txn.CompletedAt = &settledAt

	ordersRepo := s.ordersRepo.WithTx(tx)
	group, err := ordersRepo.FindOrderGroupByID(ctx, txn.OrderGroupID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "load order group")
	}

	for i := range group.Orders {
		order := &group.Orders[i]
		if order.Status == enums.OrderStatusCancelled {
			continue
		}
		if err := s.confirmOrder(ctx, tx, order); err != nil {
			return nil, err
		}
	}

	result, err := s.commission.Settle(ctx, tx, txn, group.Orders)
	if err != nil {
		return nil, err
	}

	err = s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventPaymentSettled,
		AggregateType: enums.AggregateTransaction,
		AggregateID:   txn.ID,
		Data: outbox.PaymentSettledEvent{
			TransactionID: txn.ID,
			OrderGroupID:  txn.OrderGroupID,
			AmountCents:   txn.AmountCents,
			Currency:      string(txn.Currency),
			SettledAt:     settledAt,
		},
	})
	if err != nil {
		return nil, err
	}

	return &Outcome{
		TransactionID: txn.ID,
		Status:        enums.TransactionStatusCompleted,
		Applied:       true,
		OrdersSettled: result.OrdersSettled,
	}, nil
}

// confirmOrder moves a paid order forward through the transition service.
// Orders already past pending keep their progress; only the payment flags
// converge.
func (s *service) confirmOrder(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	if order.PaymentStatus != enums.PaymentStatusPaid {
		if err := s.transitions.MarkPaymentStatus(ctx, tx, order.ID, enums.PaymentStatusPaid); err != nil {
			return err
		}
		order.PaymentStatus = enums.PaymentStatusPaid
	}
	if order.Status == enums.OrderStatusPending {
		if err := s.transitions.Transition(ctx, tx, order.ID, enums.OrderStatusConfirmed); err != nil {
			return err
		}
		order.Status = enums.OrderStatusConfirmed
	}
	return nil
}

func (s *service) fail(ctx context.Context, tx *gorm.DB, txns payments.Repository, txn *models.Transaction) (*Outcome, error) {
	updates := map[string]any{
		"status":         enums.TransactionStatusFailed,
		"failure_reason": "rejected by gateway notification",
	}
	if err := txns.UpdateTransaction(ctx, txn.ID, updates); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "mark transaction failed")
	}

	err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventPaymentFailed,
		AggregateType: enums.AggregateTransaction,
		AggregateID:   txn.ID,
		Data: outbox.PaymentFailedEvent{
			TransactionID: txn.ID,
			OrderGroupID:  txn.OrderGroupID,
			Attempt:       txn.Attempt,
			Reason:        "rejected by gateway notification",
		},
	})
	if err != nil {
		return nil, err
	}

	return &Outcome{
		TransactionID: txn.ID,
		Status:        enums.TransactionStatusFailed,
		Applied:       true,
	}, nil
}
