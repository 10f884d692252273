package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vendora-market/vendora-backend/pkg/db/models"
	"github.com/vendora-market/vendora-backend/pkg/enums"
	apperrors "github.com/vendora-market/vendora-backend/pkg/errors"
	"github.com/vendora-market/vendora-backend/pkg/logger"
)

// GroupStatus is the settlement view of one order group.
type GroupStatus struct {
	Group    *models.OrderGroup
	Complete bool
}

// Service applies status changes to orders through the transition tables.
// Transition and MarkPaymentStatus run inside the caller's transaction so a
// settlement touching several orders commits or rolls back as one unit.
type Service interface {
	Transition(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, target enums.OrderStatus) error
	MarkPaymentStatus(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, target enums.PaymentStatus) error
	GroupStatus(ctx context.Context, groupID uuid.UUID) (*GroupStatus, error)
}

// ServiceParams carries the dependencies for NewService.
type ServiceParams struct {
	Repo   Repository
	Logger *logger.Logger
}

type service struct {
	repo   Repository
	logger *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders service: repo is required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("orders service: logger is required")
	}
	return &service{repo: params.Repo, logger: params.Logger}, nil
}

func (s *service) Transition(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, target enums.OrderStatus) error {
	repo := s.repo.WithTx(tx)

	order, err := repo.FindOrderByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.New(apperrors.CodeNotFound, "order not found")
		}
		return apperrors.Wrap(apperrors.CodeInternal, err, "failed to load order")
	}

	if err := ValidateTransition(order.Status, target); err != nil {
		return err
	}

	if err := repo.UpdateOrder(ctx, orderID, map[string]any{"status": target}); err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, err, "failed to update order status")
	}

	s.logger.Info(
		s.logger.WithFields(ctx, map[string]any{
			"order_id": orderID.String(),
			"from":     order.Status.String(),
			"to":       target.String(),
		}),
		"order status transitioned",
	)
	return nil
}

func (s *service) MarkPaymentStatus(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, target enums.PaymentStatus) error {
	repo := s.repo.WithTx(tx)

	order, err := repo.FindOrderByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.New(apperrors.CodeNotFound, "order not found")
		}
		return apperrors.Wrap(apperrors.CodeInternal, err, "failed to load order")
	}

	if err := ValidatePaymentTransition(order.PaymentStatus, target); err != nil {
		return err
	}

	if err := repo.UpdateOrder(ctx, orderID, map[string]any{"payment_status": target}); err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, err, "failed to update payment status")
	}
	return nil
}

// GroupStatus loads an order group with its children and reports whether the
// group has settled. A group is complete only when every child order reached
// a terminal status.
func (s *service) GroupStatus(ctx context.Context, groupID uuid.UUID) (*GroupStatus, error) {
	group, err := s.repo.FindOrderGroupByID(ctx, groupID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.New(apperrors.CodeNotFound, "order group not found")
		}
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "failed to load order group")
	}
	return &GroupStatus{Group: group, Complete: group.Complete()}, nil
}
