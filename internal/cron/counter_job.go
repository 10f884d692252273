package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/vendora-market/vendora-backend/pkg/logger"
)

const defaultCounterRetentionDays = 90

type counterPruner interface {
	PruneBuckets(ctx context.Context, before time.Time) (int64, error)
}

// CounterRetentionJobParams configure the order number counter cleanup job.
type CounterRetentionJobParams struct {
	Logger        *logger.Logger
	Counters      counterPruner
	RetentionDays int
}

// NewCounterRetentionJob builds the job that prunes stale order number
// counter buckets.
func NewCounterRetentionJob(params CounterRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Counters == nil {
		return nil, fmt.Errorf("counter repository required")
	}
	if params.RetentionDays <= 0 {
		params.RetentionDays = defaultCounterRetentionDays
	}
	return &counterRetentionJob{
		logg:          params.Logger,
		counters:      params.Counters,
		retentionDays: params.RetentionDays,
	}, nil
}

type counterRetentionJob struct {
	logg          *logger.Logger
	counters      counterPruner
	retentionDays int
}

func (j *counterRetentionJob) Name() string { return "counter-retention" }

func (j *counterRetentionJob) Run(ctx context.Context) error {
	cutoff := time.Now().AddDate(0, 0, -j.retentionDays)
	pruned, err := j.counters.PruneBuckets(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("pruning counter buckets: %w", err)
	}
	if pruned > 0 {
		logCtx := j.logg.WithFields(ctx, map[string]any{
			"buckets_pruned": pruned,
			"retention_days": j.retentionDays,
		})
		j.logg.Info(logCtx, "counter retention finished")
	}
	return nil
}
