package cron

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/vendora-market/vendora-backend/pkg/logger"
)

type fakeCounterPruner struct {
	pruned int64
	err    error
	before time.Time
	calls  int
}

func (f *fakeCounterPruner) PruneBuckets(ctx context.Context, before time.Time) (int64, error) {
	f.calls++
	f.before = before
	return f.pruned, f.err
}

func TestCounterRetentionJobPrunesBeforeCutoff(t *testing.T) {
	pruner := &fakeCounterPruner{pruned: 7}
	job, err := NewCounterRetentionJob(CounterRetentionJobParams{
		Logger:        logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		Counters:      pruner,
		RetentionDays: 30,
	})
	if err != nil {
		t.Fatalf("job setup: %v", err)
	}

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run returned error: %v", err)
	}
	if pruner.calls != 1 {
		t.Fatalf("expected one prune call, got %d", pruner.calls)
	}

	expected := time.Now().AddDate(0, 0, -30)
	if diff := expected.Sub(pruner.before); diff < -time.Minute || diff > time.Minute {
		t.Fatalf("cutoff not near 30 days ago: %v", pruner.before)
	}
}

func TestCounterRetentionJobDefaultsRetention(t *testing.T) {
	pruner := &fakeCounterPruner{}
	job, err := NewCounterRetentionJob(CounterRetentionJobParams{
		Logger:   logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		Counters: pruner,
	})
	if err != nil {
		t.Fatalf("job setup: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run returned error: %v", err)
	}

	expected := time.Now().AddDate(0, 0, -defaultCounterRetentionDays)
	if diff := expected.Sub(pruner.before); diff < -time.Minute || diff > time.Minute {
		t.Fatalf("cutoff not near default retention: %v", pruner.before)
	}
}

func TestCounterRetentionJobPropagatesError(t *testing.T) {
	pruner := &fakeCounterPruner{err: errors.New("table locked")}
	job, err := NewCounterRetentionJob(CounterRetentionJobParams{
		Logger:   logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		Counters: pruner,
	})
	if err != nil {
		t.Fatalf("job setup: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatalf("expected error to propagate")
	}
}
