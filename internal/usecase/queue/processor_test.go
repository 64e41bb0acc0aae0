package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kailas-cloud/linkmesh/internal/domain"
	"github.com/kailas-cloud/linkmesh/internal/usecase/embedding"
)

func TestRunMarksBatchOutcomes(t *testing.T) {
	f := newFixture(t)
	f.pend(1, 2, 3)
	f.embedder.outcome[2] = embedding.Result{ContentID: 2, Err: errors.New("rate limited")}
	f.embedder.outcome[3] = embedding.Result{ContentID: 3, Skipped: true}

	report, err := f.proc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Claimed != 3 || report.Completed != 1 || report.Failed != 1 || report.Skipped != 1 {
		t.Errorf("report = %+v, want claimed=3 completed=1 failed=1 skipped=1", report)
	}

	// already-current items count as skipped but are still marked completed
	if len(f.store.completedIDs) != 2 {
		t.Errorf("completed ids = %v, want [1 3]", f.store.completedIDs)
	}
	if len(f.store.failedIDs) != 1 || f.store.failedIDs[0] != 2 {
		t.Errorf("failed ids = %v, want [2]", f.store.failedIDs)
	}
	if f.store.failedMsgs[2] != "rate limited" {
		t.Errorf("failure message = %q", f.store.failedMsgs[2])
	}
	if f.store.failedCaps[2] != domain.DefaultRetryCap {
		t.Errorf("retry cap = %d, want %d", f.store.failedCaps[2], domain.DefaultRetryCap)
	}
}

func TestRunClaimsConfiguredBatchSize(t *testing.T) {
	f := newFixture(t)
	ids := make([]int64, 0, 25)
	for id := int64(1); id <= 25; id++ {
		ids = append(ids, id)
	}
	f.pend(ids...)

	if _, err := f.proc.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	batchSize := domain.DefaultSettings().APIBatchSize
	if len(f.store.claimLimits) != 1 || f.store.claimLimits[0] != batchSize {
		t.Errorf("claim limits = %v, want one claim of %d", f.store.claimLimits, batchSize)
	}
	if len(f.embedder.batches) != 1 || len(f.embedder.batches[0]) != batchSize {
		t.Errorf("embedder got %v, want one batch of %d ids", f.embedder.batches, batchSize)
	}
}

func TestRunSignalsMoreWork(t *testing.T) {
	f := newFixture(t)
	f.pend(1)
	f.store.counts = domain.QueueCounts{Pending: 12, Total: 13}

	report, err := f.proc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !report.MoreWork {
		t.Error("MoreWork = false with 12 pending items")
	}

	f.store.counts = domain.QueueCounts{Completed: 13, Total: 13}
	report, err = f.proc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.MoreWork {
		t.Error("MoreWork = true on a drained queue")
	}
}

func TestRunEmptyQueueSkipsEmbedder(t *testing.T) {
	f := newFixture(t)

	report, err := f.proc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Claimed != 0 {
		t.Errorf("claimed = %d, want 0", report.Claimed)
	}
	if len(f.embedder.batches) != 0 {
		t.Errorf("embedder called on empty queue: %v", f.embedder.batches)
	}
}

func TestRunReclaimsStaleBeforeClaiming(t *testing.T) {
	f := newFixture(t)
	f.store.reclaimed = 2

	report, err := f.proc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Reclaimed != 2 {
		t.Errorf("reclaimed = %d, want 2", report.Reclaimed)
	}
	if len(f.store.reclaimAges) != 1 || f.store.reclaimAges[0] != 10*time.Minute {
		t.Errorf("reclaim ages = %v, want one sweep at the default window", f.store.reclaimAges)
	}
}

func TestRunProviderFailureFailsWholeBatch(t *testing.T) {
	f := newFixture(t)
	f.pend(1, 2)
	f.embedder.err = domain.ErrNotConfigured
	f.embedder.outcome[1] = embedding.Result{ContentID: 1, Err: domain.ErrNotConfigured}
	f.embedder.outcome[2] = embedding.Result{ContentID: 2, Err: domain.ErrNotConfigured}

	report, err := f.proc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Failed != 2 || report.Completed != 0 {
		t.Errorf("report = %+v, want both items failed", report)
	}
	if len(f.store.failedIDs) != 2 {
		t.Errorf("failed ids = %v, want [1 2]", f.store.failedIDs)
	}
}

func TestNewAppliesRetryAndStaleOverrides(t *testing.T) {
	f := newFixture(t)
	f.proc = New(f.store, f.embedder, &mockSettings{settings: domain.DefaultSettings()}, f.proc.logger, 5, time.Hour)
	f.pend(1)
	f.embedder.outcome[1] = embedding.Result{ContentID: 1, Err: errors.New("boom")}

	if _, err := f.proc.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if f.store.failedCaps[1] != 5 {
		t.Errorf("retry cap = %d, want 5", f.store.failedCaps[1])
	}
	if f.store.reclaimAges[0] != time.Hour {
		t.Errorf("stale window = %v, want 1h", f.store.reclaimAges[0])
	}
}
