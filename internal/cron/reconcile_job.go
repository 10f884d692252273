package cron

import (
	"context"
	"fmt"

	"github.com/vendora-market/vendora-backend/internal/reconcile"
	"github.com/vendora-market/vendora-backend/pkg/logger"
)

type reconcileRunner interface {
	Run(ctx context.Context, staleHours int) (*reconcile.Counts, error)
}

// ReconcileJobParams configure the orphan reconciliation job.
type ReconcileJobParams struct {
	Logger     *logger.Logger
	Service    reconcileRunner
	StaleHours int
}

// NewReconcileJob builds the cron job that sweeps abandoned checkout state.
func NewReconcileJob(params ReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Service == nil {
		return nil, fmt.Errorf("reconcile service required")
	}
	return &reconcileJob{
		logg:       params.Logger,
		service:    params.Service,
		staleHours: params.StaleHours,
	}, nil
}

type reconcileJob struct {
	logg       *logger.Logger
	service    reconcileRunner
	staleHours int
}

func (j *reconcileJob) Name() string { return "orphan-reconcile" }

func (j *reconcileJob) Run(ctx context.Context) error {
	counts, err := j.service.Run(ctx, j.staleHours)
	if counts != nil {
		logCtx := j.logg.WithFields(ctx, map[string]any{
			"transactions_cleaned": counts.TransactionsCleaned,
			"orders_cleaned":       counts.OrphanedOrdersCleaned,
			"groups_cleaned":       counts.IncompleteGroupsCleaned,
		})
		j.logg.Info(logCtx, "orphan sweep finished")
	}
	return err
}
