package commission

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/vendora-market/vendora-backend/pkg/db"
	"github.com/vendora-market/vendora-backend/pkg/db/models"
	"github.com/vendora-market/vendora-backend/pkg/enums"
	apperrors "github.com/vendora-market/vendora-backend/pkg/errors"
	"github.com/vendora-market/vendora-backend/pkg/logger"
	"github.com/vendora-market/vendora-backend/pkg/outbox"
)

type attributionReader interface {
	FindAttributionByOrder(ctx context.Context, orderID uuid.UUID) (*models.AffiliateAttribution, error)
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Result reports what one settlement pass wrote.
type Result struct {
	OrdersSettled    int
	AffiliateEntries int
}

// Service splits each settled order into platform commission and seller
// net. It runs inside the caller's transaction so commission rows and the
// payment state change commit together.
type Service interface {
	Settle(ctx context.Context, tx *gorm.DB, txn *models.Transaction, orders []models.Order) (*Result, error)
}

type service struct {
	repo         Repository
	attributions attributionReader
	outbox       outboxPublisher
	logger       *logger.Logger
	platformRate decimal.Decimal
	now          func() time.Time
}

// ServiceParams carries the dependencies for NewService.
type ServiceParams struct {
	Repo         Repository
	Attributions attributionReader
	Outbox       outboxPublisher
	Logger       *logger.Logger
	PlatformRate string
	Now          func() time.Time
}

// NewService builds the commission calculator.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("commission repository required")
	}
	if params.Attributions == nil {
		return nil, fmt.Errorf("attribution reader required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	rate, err := decimal.NewFromString(params.PlatformRate)
	if err != nil {
		return nil, fmt.Errorf("parse platform rate %q: %w", params.PlatformRate, err)
	}
	if rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("platform rate %s out of range [0, 1)", rate)
	}
	if params.Now == nil {
		params.Now = time.Now
	}
	return &service{
		repo:         params.Repo,
		attributions: params.Attributions,
		outbox:       params.Outbox,
		logger:       params.Logger,
		platformRate: rate,
		now:          params.Now,
	}, nil
}

func (s *service) Settle(ctx context.Context, tx *gorm.DB, txn *models.Transaction, orders []models.Order) (*Result, error) {
	if txn.Status != enums.TransactionStatusCompleted {
		return nil, apperrors.New(apperrors.CodeStateConflict, "commission requires a completed transaction")
	}

	repo := s.repo.WithTx(tx)
	result := &Result{}
	for i := range orders {
		order := &orders[i]
		if order.Status == enums.OrderStatusCancelled {
			continue
		}
		settled, affiliate, err := s.settleOrder(ctx, tx, repo, txn, order)
		if err != nil {
			return nil, err
		}
		if settled {
			result.OrdersSettled++
		}
		if affiliate {
			result.AffiliateEntries++
		}
	}

	logCtx := s.logger.WithFields(ctx, map[string]any{
		"transaction_id": txn.ID.String(),
		"orders_settled": result.OrdersSettled,
	})
	s.logger.Info(logCtx, "commission settlement computed")
	return result, nil
}

// settleOrder writes the platform ledger row for one order, plus the
// affiliate row when the order carries an attribution. The unique index on
// (transaction_id, order_id) makes redelivered webhooks a no-op.
func (s *service) settleOrder(ctx context.Context, tx *gorm.DB, repo Repository, txn *models.Transaction, order *models.Order) (bool, bool, error) {
	commissionCents := roundCommission(order.TotalCents, s.platformRate)
	sellerCents := order.TotalCents - commissionCents

	row := &models.PlatformCommission{
		ID:                    uuid.New(),
		TransactionID:         txn.ID,
		OrderID:               order.ID,
		SellerID:              order.SellerID,
		TotalAmountCents:      order.TotalCents,
		CommissionRate:        s.platformRate,
		CommissionAmountCents: commissionCents,
		SellerAmountCents:     sellerCents,
	}
	if err := repo.CreatePlatformCommission(ctx, row); err != nil {
		if db.IsUniqueViolation(err, "ux_platform_commissions_txn_order") {
			return false, false, nil
		}
		return false, false, apperrors.Wrap(apperrors.CodeInternal, err, "persist platform commission")
	}

	affiliate, err := s.settleAffiliate(ctx, repo, txn, order, sellerCents)
	if err != nil {
		return false, false, err
	}

	return true, affiliate, s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventPayoutPending,
		AggregateType: enums.AggregateTransaction,
		AggregateID:   txn.ID,
		Data: outbox.PayoutPendingEvent{
			TransactionID:     txn.ID,
			OrderID:           order.ID,
			SellerID:          order.SellerID,
			SellerAmountCents: sellerCents,
			SettledAt:         s.now().UTC(),
		},
	})
}

// settleAffiliate pays the referral out of the platform margin. The seller
// net is the commission base but is never reduced by it.
func (s *service) settleAffiliate(ctx context.Context, repo Repository, txn *models.Transaction, order *models.Order, sellerCents int64) (bool, error) {
	attribution, err := s.attributions.FindAttributionByOrder(ctx, order.ID)
	if err != nil {
		return false, apperrors.Wrap(apperrors.CodeInternal, err, "load affiliate attribution")
	}
	if attribution == nil {
		return false, nil
	}

	amount := roundCommission(sellerCents, attribution.CommissionRate)
	var cappedAt *int64
	if attribution.MaxCommissionPerSaleCents != nil && amount > *attribution.MaxCommissionPerSaleCents {
		amount = *attribution.MaxCommissionPerSaleCents
		cappedAt = attribution.MaxCommissionPerSaleCents
	}

	row := &models.AffiliateCommission{
		ID:                    uuid.New(),
		TransactionID:         txn.ID,
		OrderID:               order.ID,
		AffiliateID:           attribution.AffiliateID,
		BaseAmountCents:       sellerCents,
		CommissionRate:        attribution.CommissionRate,
		CommissionAmountCents: amount,
		CappedAt:              cappedAt,
	}
	if err := repo.CreateAffiliateCommission(ctx, row); err != nil {
		if db.IsUniqueViolation(err, "ux_affiliate_commissions_txn_order") {
			return false, nil
		}
		return false, apperrors.Wrap(apperrors.CodeInternal, err, "persist affiliate commission")
	}
	return true, nil
}

// roundCommission applies a fractional rate to an integer cent amount and
// rounds half away from zero, keeping base == commission + remainder exact.
func roundCommission(cents int64, rate decimal.Decimal) int64 {
	return decimal.NewFromInt(cents).Mul(rate).Round(0).IntPart()
}
