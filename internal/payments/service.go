package payments

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"gorm.io/gorm"

	"github.com/vendora-market/vendora-backend/pkg/db"
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

type groupReader interface {
	FindOrderGroupByID(ctx context.Context, id uuid.UUID) (*models.OrderGroup, error)
}

// SessionResult is what the API hands back to the buyer after StartSession.
type SessionResult struct {
	Transaction *models.Transaction
	CheckoutURL string
}

// Service opens hosted checkout sessions for order groups. Each call is one
// attempt; the transaction row is persisted before the gateway is contacted
// so an interrupted call always leaves an auditable pending row behind.
type Service interface {
	StartSession(ctx context.Context, groupID uuid.UUID) (*SessionResult, error)
}

type service struct {
	tx             txRunner
	repo           Repository
	groups         groupReader
	provider       Provider
	outbox         outboxPublisher
	logger         *logger.Logger
	currency       enums.Currency
	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	now            func() time.Time
}

// ServiceParams carries the dependencies for NewService.
type ServiceParams struct {
	Tx             txRunner
	Repo           Repository
	Groups         groupReader
	Provider       Provider
	Outbox         outboxPublisher
	Logger         *logger.Logger
	Currency       enums.Currency
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Now            func() time.Time
}

// NewService builds the payment gateway adapter.
func NewService(params ServiceParams) (Service, error) {
	if params.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if params.Groups == nil {
		return nil, fmt.Errorf("order group reader required")
	}
	if params.Provider == nil {
		return nil, fmt.Errorf("payment provider required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if !params.Currency.IsValid() {
		params.Currency = enums.CurrencyUSD
	}
	if params.MaxAttempts <= 0 {
		params.MaxAttempts = 4
	}
	if params.InitialBackoff <= 0 {
		params.InitialBackoff = 500 * time.Millisecond
	}
	if params.MaxBackoff <= 0 {
		params.MaxBackoff = 10 * time.Second
	}
	if params.Now == nil {
		params.Now = time.Now
	}
	return &service{
		tx:             params.Tx,
		repo:           params.Repo,
		groups:         params.Groups,
		provider:       params.Provider,
		outbox:         params.Outbox,
		logger:         params.Logger,
		currency:       params.Currency,
		maxAttempts:    params.MaxAttempts,
		initialBackoff: params.InitialBackoff,
		maxBackoff:     params.MaxBackoff,
		now:            params.Now,
	}, nil
}

// IdempotencyKey derives the gateway idempotency key for one attempt against
// a group. The same (group, attempt) pair always yields the same key, so a
// crashed call that is replayed cannot double-charge.
func IdempotencyKey(groupID uuid.UUID, attempt int) string {
	return fmt.Sprintf("grp-%s-a%d", groupID, attempt)
}

func (s *service) StartSession(ctx context.Context, groupID uuid.UUID) (*SessionResult, error) {
	group, err := s.groups.FindOrderGroupByID(ctx, groupID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeNotFound, err, "order group not found")
	}
	if len(group.Orders) == 0 {
		return nil, apperrors.New(apperrors.CodeValidation, "order group has no orders")
	}

	settled, err := s.repo.HasCompletedTransaction(ctx, groupID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "check settlement state")
	}
	if settled {
		return nil, apperrors.New(apperrors.CodeStateConflict, "order group already settled")
	}

	amount := int64(0)
	for _, order := range group.Orders {
		if order.Status == enums.OrderStatusCancelled {
			continue
		}
		amount += order.TotalCents
	}
	if amount <= 0 {
		return nil, apperrors.New(apperrors.CodeValidation, "order group total must be positive")
	}

	txn, err := s.openAttempt(ctx, groupID, amount)
	if err != nil {
		return nil, err
	}

	logCtx := s.logger.WithFields(ctx, map[string]any{
		"order_group_id": groupID.String(),
		"transaction_id": txn.ID.String(),
		"attempt":        txn.Attempt,
	})

	session, tries, providerErr := s.createWithRetry(ctx, txn, group)
	if providerErr != nil {
		if ctx.Err() != nil {
			// Leave the row pending; the reconciliation sweep owns it now.
			s.logger.Warn(logCtx, "payment session interrupted, transaction left pending")
			return nil, apperrors.Wrap(apperrors.CodeInternal, providerErr, "payment session interrupted")
		}
		if failErr := s.markFailed(ctx, txn, tries, providerErr); failErr != nil {
			s.logger.Error(logCtx, "persist failed transaction", failErr)
		}
		if apperrors.HasCode(providerErr, apperrors.CodePaymentRejected) {
			s.logger.Warn(logCtx, "payment session rejected by gateway")
			return nil, providerErr
		}
		s.logger.Error(logCtx, "payment session attempts exhausted", providerErr)
		return nil, apperrors.Wrap(apperrors.CodeDependency, providerErr, "payment gateway unavailable")
	}

	updates := map[string]any{
		"provider_ref": session.ProviderRef,
		"checkout_url": session.CheckoutURL,
		"retry_count":  tries - 1,
	}
	if err := s.repo.UpdateTransaction(ctx, txn.ID, updates); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "record payment session")
	}
	txn.ProviderRef = &session.ProviderRef
	txn.CheckoutURL = &session.CheckoutURL
	txn.RetryCount = tries - 1

	s.logger.Info(logCtx, "payment session opened")
	return &SessionResult{Transaction: txn, CheckoutURL: session.CheckoutURL}, nil
}

// openAttempt persists the pending transaction row before any gateway call.
// A concurrent caller racing on the same attempt loses on the idempotency
// key's unique constraint and is handed the winner's row instead.
func (s *service) openAttempt(ctx context.Context, groupID uuid.UUID, amount int64) (*models.Transaction, error) {
	attempt, err := s.repo.LatestAttempt(ctx, groupID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "resolve attempt number")
	}
	attempt++

	txn := &models.Transaction{
		ID:             uuid.New(),
		OrderGroupID:   groupID,
		Attempt:        attempt,
		IdempotencyKey: IdempotencyKey(groupID, attempt),
		AmountCents:    amount,
		Currency:       s.currency,
		Status:         enums.TransactionStatusPending,
	}
	created, err := s.repo.CreateTransaction(ctx, txn)
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			existing, findErr := s.repo.FindTransactionByIdempotencyKey(ctx, txn.IdempotencyKey)
			if findErr != nil {
				return nil, apperrors.Wrap(apperrors.CodeInternal, findErr, "load racing transaction")
			}
			return existing, nil
		}
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "persist transaction")
	}
	return created, nil
}

// createWithRetry calls the provider with exponential backoff and jitter.
// Only transient failures (gateway outage, rate limit) are retried; a 4xx
// rejection is final on the first response.
func (s *service) createWithRetry(ctx context.Context, txn *models.Transaction, group *models.OrderGroup) (*Session, int, error) {
	params := SessionParams{
		Name:           fmt.Sprintf("Order group %s", group.ID),
		AmountCents:    txn.AmountCents,
		Currency:       string(txn.Currency),
		IdempotencyKey: txn.IdempotencyKey,
		ReferenceID:    group.ID.String(),
	}

	backoff := retry.NewExponential(s.initialBackoff)
	backoff = retry.WithCappedDuration(s.maxBackoff, backoff)
	backoff = retry.WithJitterPercent(20, backoff)
	backoff = retry.WithMaxRetries(uint64(s.maxAttempts-1), backoff)

	var session *Session
	tries := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		tries++
		created, err := s.provider.CreateSession(ctx, params)
		if err != nil {
			if isTransient(err) {
				return retry.RetryableError(err)
			}
			return err
		}
		session = created
		return nil
	})
	if err != nil {
		return nil, tries, err
	}
	return session, tries, nil
}

func (s *service) markFailed(ctx context.Context, txn *models.Transaction, tries int, cause error) error {
	reason := cause.Error()
	if appErr := apperrors.As(cause); appErr != nil {
		reason = appErr.Message()
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		updates := map[string]any{
			"status":         enums.TransactionStatusFailed,
			"failure_reason": reason,
			"retry_count":    tries - 1,
		}
		if err := s.repo.WithTx(tx).UpdateTransaction(ctx, txn.ID, updates); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentFailed,
			AggregateType: enums.AggregateTransaction,
			AggregateID:   txn.ID,
			Data: outbox.PaymentFailedEvent{
				TransactionID: txn.ID,
				OrderGroupID:  txn.OrderGroupID,
				Attempt:       txn.Attempt,
				Reason:        reason,
			},
		})
	})
}

func isTransient(err error) bool {
	return apperrors.HasCode(err, apperrors.CodeDependency) ||
		apperrors.HasCode(err, apperrors.CodeRateLimit)
}
