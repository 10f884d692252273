package reconcile

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/vendora-market/vendora-backend/pkg/db/models"
	"github.com/vendora-market/vendora-backend/pkg/enums"
	apperrors "github.com/vendora-market/vendora-backend/pkg/errors"
	"github.com/vendora-market/vendora-backend/pkg/logger"
	"github.com/vendora-market/vendora-backend/pkg/outbox"
)

const (
	// MinStaleHours and MaxStaleHours bound the operator-supplied window.
	MinStaleHours = 1
	MaxStaleHours = 168

	abandonedReason = "abandoned pending transaction"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// statusPoller asks the payment provider for a transaction's current state.
type statusPoller interface {
	SessionStatus(ctx context.Context, providerRef string) (enums.TransactionStatus, error)
}

// Counts reports what one reconciliation pass cleaned up.
type Counts struct {
	TransactionsCleaned     int `json:"transactions_cleaned"`
	OrphanedOrdersCleaned   int `json:"orphaned_orders_cleaned"`
	IncompleteGroupsCleaned int `json:"incomplete_groups_cleaned"`
}

// Service sweeps abandoned checkout state: pending transactions nobody will
// ever settle, and order groups whose buyer walked away. Each candidate is
// re-checked inside its own transaction so a settlement racing the sweep
// always wins.
type Service interface {
	Run(ctx context.Context, staleHours int) (*Counts, error)
}

type service struct {
	tx           txRunner
	repo         Repository
	outbox       outboxPublisher
	poller       statusPoller
	logger       *logger.Logger
	defaultHours int
	batchSize    int
	now          func() time.Time
}

// ServiceParams carries the dependencies for NewService. Poller is optional;
// without one the sweep fails stale transactions on age alone.
type ServiceParams struct {
	Tx           txRunner
	Repo         Repository
	Outbox       outboxPublisher
	Poller       statusPoller
	Logger       *logger.Logger
	DefaultHours int
	BatchSize    int
	Now          func() time.Time
}

// NewService builds the orphan reconciliation service.
func NewService(params ServiceParams) (Service, error) {
	if params.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("reconcile repository required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DefaultHours <= 0 {
		params.DefaultHours = 24
	}
	if params.BatchSize <= 0 {
		params.BatchSize = 200
	}
	if params.Now == nil {
		params.Now = time.Now
	}
	return &service{
		tx:           params.Tx,
		repo:         params.Repo,
		outbox:       params.Outbox,
		poller:       params.Poller,
		logger:       params.Logger,
		defaultHours: params.DefaultHours,
		batchSize:    params.BatchSize,
		now:          params.Now,
	}, nil
}

func (s *service) Run(ctx context.Context, staleHours int) (*Counts, error) {
	if staleHours == 0 {
		staleHours = s.defaultHours
	}
	if staleHours < MinStaleHours || staleHours > MaxStaleHours {
		return nil, apperrors.New(apperrors.CodeValidation, "stale hours out of range").
			WithDetails(map[string]any{"min": MinStaleHours, "max": MaxStaleHours, "got": staleHours})
	}

	cutoff := s.now().UTC().Add(-time.Duration(staleHours) * time.Hour)
	counts := &Counts{}
	var errs []error

	if err := s.sweepTransactions(ctx, cutoff, counts); err != nil {
		errs = append(errs, err)
	}
	if ctx.Err() != nil {
		return counts, multierr.Combine(append(errs, ctx.Err())...)
	}
	if err := s.sweepGroups(ctx, cutoff, staleHours, counts); err != nil {
		errs = append(errs, err)
	}

	logCtx := s.logger.WithFields(ctx, map[string]any{
		"transactions_cleaned": counts.TransactionsCleaned,
		"orders_cleaned":       counts.OrphanedOrdersCleaned,
		"groups_cleaned":       counts.IncompleteGroupsCleaned,
		"stale_hours":          staleHours,
	})
	s.logger.Info(logCtx, "reconciliation pass complete")
	return counts, multierr.Combine(errs...)
}

// sweepTransactions fails pending transactions past the cutoff and cancels
// the pending orders of groups that will never settle.
func (s *service) sweepTransactions(ctx context.Context, cutoff time.Time, counts *Counts) error {
	stale, err := s.repo.ListStalePendingTransactions(ctx, cutoff, s.batchSize)
	if err != nil {
		return fmt.Errorf("list stale transactions: %w", err)
	}

	for _, candidate := range stale {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)

			// Re-check: the webhook may have settled it since listing.
			current, err := repo.FindTransactionByID(ctx, candidate.ID)
			if err != nil {
				return fmt.Errorf("reload transaction: %w", err)
			}
			if current.Status != enums.TransactionStatusPending {
				return nil
			}
			if !s.confirmAbandoned(ctx, current) {
				return nil
			}
			if err := repo.MarkTransactionFailed(ctx, current.ID, abandonedReason); err != nil {
				return fmt.Errorf("mark transaction failed: %w", err)
			}
			counts.TransactionsCleaned++

			settled, err := repo.HasCompletedTransaction(ctx, current.OrderGroupID)
			if err != nil {
				return fmt.Errorf("check group settlement: %w", err)
			}
			if settled {
				return nil
			}
			pending, err := repo.ListPendingOrdersByGroup(ctx, current.OrderGroupID)
			if err != nil {
				return fmt.Errorf("list pending orders: %w", err)
			}
			cancelledAt := s.now().UTC()
			for _, order := range pending {
				if err := repo.CancelOrder(ctx, order.ID, cancelledAt); err != nil {
					return fmt.Errorf("cancel order: %w", err)
				}
				counts.OrphanedOrdersCleaned++
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// confirmAbandoned double-checks a stale transaction with the provider
// before failing it. A payment the provider already completed is left for
// its webhook; a poll error defers the candidate to the next sweep.
func (s *service) confirmAbandoned(ctx context.Context, txn *models.Transaction) bool {
	if s.poller == nil || txn.ProviderRef == nil || *txn.ProviderRef == "" {
		return true
	}
	status, err := s.poller.SessionStatus(ctx, *txn.ProviderRef)
	if err != nil {
		s.logger.Warn(
			s.logger.WithField(ctx, "transaction_id", txn.ID.String()),
			"provider poll failed, deferring stale transaction",
		)
		return false
	}
	if status == enums.TransactionStatusCompleted {
		s.logger.Warn(
			s.logger.WithField(ctx, "transaction_id", txn.ID.String()),
			"provider reports completed payment, leaving transaction for its webhook",
		)
		return false
	}
	return true
}

// sweepGroups purges groups whose orders never progressed. The listing
// predicate is re-evaluated on the loaded group before anything is deleted.
func (s *service) sweepGroups(ctx context.Context, cutoff time.Time, staleHours int, counts *Counts) error {
	ids, err := s.repo.ListStaleGroupIDs(ctx, cutoff, s.batchSize)
	if err != nil {
		return fmt.Errorf("list stale groups: %w", err)
	}

	for _, id := range ids {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)

			group, err := repo.FindGroupForPurge(ctx, id)
			if err != nil {
				return fmt.Errorf("reload group: %w", err)
			}
			if !purgeable(group, cutoff) {
				return nil
			}
			settled, err := repo.HasCompletedTransaction(ctx, id)
			if err != nil {
				return fmt.Errorf("check group settlement: %w", err)
			}
			if settled {
				return nil
			}

			purged, err := repo.PurgeGroup(ctx, id)
			if err != nil {
				return fmt.Errorf("purge group: %w", err)
			}
			counts.IncompleteGroupsCleaned++
			counts.OrphanedOrdersCleaned += purged

			return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventGroupPurged,
				AggregateType: enums.AggregateOrderGroup,
				AggregateID:   id,
				Data: outbox.GroupPurgedEvent{
					OrderGroupID: id,
					OrdersPurged: purged,
					StaleHours:   staleHours,
					PurgedAt:     s.now().UTC(),
				},
			})
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// purgeable re-applies the listing predicate to the freshly loaded group:
// stale, with at least one order that never left pending. Orders that
// progressed do not protect the group; only a settled transaction does,
// and that is checked separately.
func purgeable(group *models.OrderGroup, cutoff time.Time) bool {
	if !group.CreatedAt.Before(cutoff) {
		return false
	}
	for _, order := range group.Orders {
		if order.Status == enums.OrderStatusPending {
			return true
		}
	}
	return false
}
