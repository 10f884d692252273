package cron

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/vendora-market/vendora-backend/internal/reconcile"
	"github.com/vendora-market/vendora-backend/pkg/logger"
)

type fakeReconciler struct {
	hours  int
	counts *reconcile.Counts
	err    error
}

func (f *fakeReconciler) Run(ctx context.Context, staleHours int) (*reconcile.Counts, error) {
	f.hours = staleHours
	return f.counts, f.err
}

func TestReconcileJobForwardsConfiguredHours(t *testing.T) {
	runner := &fakeReconciler{counts: &reconcile.Counts{TransactionsCleaned: 3}}
	job, err := NewReconcileJob(ReconcileJobParams{
		Logger:     logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		Service:    runner,
		StaleHours: 48,
	})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}
	if job.Name() != "orphan-reconcile" {
		t.Fatalf("unexpected job name %q", job.Name())
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if runner.hours != 48 {
		t.Fatalf("expected stale hours 48, got %d", runner.hours)
	}
}

func TestReconcileJobPropagatesErrors(t *testing.T) {
	boom := errors.New("sweep failed")
	runner := &fakeReconciler{counts: &reconcile.Counts{}, err: boom}
	job, err := NewReconcileJob(ReconcileJobParams{
		Logger:  logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		Service: runner,
	})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}
	if got := job.Run(context.Background()); !errors.Is(got, boom) {
		t.Fatalf("expected wrapped sweep error, got %v", got)
	}
}
