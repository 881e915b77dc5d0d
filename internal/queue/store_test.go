package queue_test

import (
	"context"
	"testing"
	"time"

	"clipstream/internal/queue"
	"clipstream/internal/testsupport"
)

func TestEnqueueIsIdempotent(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	first, created, err := store.Enqueue(ctx, "vid-1", "Boss Fight", "raw-uploads/vid-1")
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if !created {
		t.Fatal("expected first enqueue to create the record")
	}
	if first.Status != queue.StatusPending {
		t.Fatalf("expected pending status, got %s", first.Status)
	}

	second, created, err := store.Enqueue(ctx, "vid-1", "Boss Fight (redelivered)", "raw-uploads/vid-1")
	if err != nil {
		t.Fatalf("Enqueue redelivery: %v", err)
	}
	if created {
		t.Fatal("redelivery must not create a second record")
	}
	if second.Title != "Boss Fight" {
		t.Fatalf("redelivery must not mutate the record, got title %q", second.Title)
	}
}

func TestClaimFailsFast(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	video := testsupport.EnqueueVideo(t, store, "vid-claim", "Claim Test")

	ok, err := store.Claim(ctx, video.ID, queue.StatusPending, queue.StatusDuplicateChecking, "worker-1")
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if !ok {
		t.Fatal("expected first claim to succeed")
	}

	ok, err = store.Claim(ctx, video.ID, queue.StatusPending, queue.StatusDuplicateChecking, "worker-2")
	if err != nil {
		t.Fatalf("second Claim: %v", err)
	}
	if ok {
		t.Fatal("second claim must fail while the lease is held")
	}

	claimed, err := store.GetByID(ctx, video.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if claimed.Status != queue.StatusDuplicateChecking {
		t.Fatalf("expected duplicate_checking, got %s", claimed.Status)
	}
	if claimed.LeaseOwner != "worker-1" {
		t.Fatalf("expected lease owner worker-1, got %q", claimed.LeaseOwner)
	}
}

func TestClaimBlockedAfterCancelRequest(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	video := testsupport.EnqueueVideo(t, store, "vid-cancel", "Cancel Test")

	if _, err := store.RequestCancel(ctx, video.ID); err != nil {
		t.Fatalf("RequestCancel: %v", err)
	}

	ok, err := store.Claim(ctx, video.ID, queue.StatusPending, queue.StatusDuplicateChecking, "worker-1")
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if ok {
		t.Fatal("cancelled video must not be claimable")
	}

	cancelled, err := store.GetByID(ctx, video.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if cancelled.Status != queue.StatusCancelled {
		t.Fatalf("video at stage boundary should cancel immediately, got %s", cancelled.Status)
	}
}

func TestRequestCancelDuringProcessingOnlyFlags(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	video := testsupport.EnqueueVideo(t, store, "vid-flag", "In-flight Cancel")

	if ok, err := store.Claim(ctx, video.ID, queue.StatusPending, queue.StatusDuplicateChecking, "worker-1"); err != nil || !ok {
		t.Fatalf("Claim: ok=%v err=%v", ok, err)
	}
	if _, err := store.RequestCancel(ctx, video.ID); err != nil {
		t.Fatalf("RequestCancel: %v", err)
	}

	flagged, err := store.GetByID(ctx, video.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if flagged.Status != queue.StatusDuplicateChecking {
		t.Fatalf("in-flight video status must not change, got %s", flagged.Status)
	}
	if !flagged.CancelRequested {
		t.Fatal("cancel flag should be set on in-flight video")
	}
}

func TestRequestCancelIgnoresTerminalVideos(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	video := testsupport.EnqueueVideo(t, store, "vid-term", "Already Done")

	video.Status = queue.StatusCompleted
	if err := store.Update(ctx, video); err != nil {
		t.Fatalf("Update: %v", err)
	}

	changed, err := store.RequestCancel(ctx, video.ID)
	if err != nil {
		t.Fatalf("RequestCancel: %v", err)
	}
	if changed {
		t.Fatal("cancel of a terminal video must be a no-op")
	}

	got, err := store.GetByID(ctx, video.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != queue.StatusCompleted {
		t.Fatalf("terminal status must not change, got %s", got.Status)
	}
}

func TestNextReadyHonorsBackoffGate(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	early := testsupport.EnqueueVideo(t, store, "vid-a", "First Upload")
	later := testsupport.EnqueueVideo(t, store, "vid-b", "Second Upload")

	future := time.Now().UTC().Add(time.Hour)
	early.NotBefore = &future
	if err := store.Update(ctx, early); err != nil {
		t.Fatalf("Update: %v", err)
	}

	ready, err := store.NextReady(ctx, queue.StatusPending)
	if err != nil {
		t.Fatalf("NextReady: %v", err)
	}
	if ready == nil {
		t.Fatal("expected a ready video")
	}
	if ready.ID != later.ID {
		t.Fatalf("backed-off video must be skipped, got %s", ready.ID)
	}

	past := time.Now().UTC().Add(-time.Minute)
	early.NotBefore = &past
	if err := store.Update(ctx, early); err != nil {
		t.Fatalf("Update: %v", err)
	}

	ready, err = store.NextReady(ctx, queue.StatusPending)
	if err != nil {
		t.Fatalf("NextReady: %v", err)
	}
	if ready == nil || ready.ID != early.ID {
		t.Fatalf("expected oldest eligible video %s first, got %+v", early.ID, ready)
	}
}

func TestFindByFingerprintReturnsEarliestOriginal(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	original := testsupport.EnqueueVideo(t, store, "vid-orig", "Original")
	original.Fingerprint = "fp-123"
	original.Status = queue.StatusCompleted
	if err := store.Update(ctx, original); err != nil {
		t.Fatalf("Update original: %v", err)
	}

	dup := testsupport.EnqueueVideo(t, store, "vid-dup", "Copy")
	dup.Fingerprint = "fp-123"
	dup.Status = queue.StatusDuplicate
	if err := store.Update(ctx, dup); err != nil {
		t.Fatalf("Update duplicate: %v", err)
	}

	found, err := store.FindByFingerprint(ctx, "fp-123")
	if err != nil {
		t.Fatalf("FindByFingerprint: %v", err)
	}
	if found == nil || found.ID != original.ID {
		t.Fatalf("expected original %s, got %+v", original.ID, found)
	}

	missing, err := store.FindByFingerprint(ctx, "fp-unknown")
	if err != nil {
		t.Fatalf("FindByFingerprint unknown: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for unknown fingerprint, got %+v", missing)
	}
}

func TestReclaimStaleReturnsVideosToStageStart(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	stale := testsupport.EnqueueVideo(t, store, "vid-stale", "Crashed Worker")
	if ok, err := store.Claim(ctx, stale.ID, queue.StatusPending, queue.StatusDuplicateChecking, "worker-dead"); err != nil || !ok {
		t.Fatalf("Claim stale: ok=%v err=%v", ok, err)
	}

	healthy := testsupport.EnqueueVideo(t, store, "vid-live", "Live Worker")
	healthy.Status = queue.StatusTranscoded
	if err := store.Update(ctx, healthy); err != nil {
		t.Fatalf("Update healthy: %v", err)
	}
	if ok, err := store.Claim(ctx, healthy.ID, queue.StatusTranscoded, queue.StatusTranscribing, "worker-live"); err != nil || !ok {
		t.Fatalf("Claim healthy: ok=%v err=%v", ok, err)
	}

	// Heartbeat the healthy video after choosing the cutoff so only the
	// stale lease falls behind it.
	cutoff := time.Now().UTC().Add(time.Second)
	time.Sleep(10 * time.Millisecond)
	if err := store.UpdateHeartbeat(ctx, healthy.ID); err != nil {
		t.Fatalf("UpdateHeartbeat: %v", err)
	}

	reclaimed, err := store.ReclaimStale(ctx, cutoff)
	if err != nil {
		t.Fatalf("ReclaimStale: %v", err)
	}
	if reclaimed != 1 {
		t.Fatalf("expected 1 reclaimed video, got %d", reclaimed)
	}

	got, err := store.GetByID(ctx, stale.ID)
	if err != nil {
		t.Fatalf("GetByID stale: %v", err)
	}
	if got.Status != queue.StatusPending {
		t.Fatalf("stale video should return to pending, got %s", got.Status)
	}
	if got.LeaseOwner != "" {
		t.Fatalf("stale lease should be cleared, got %q", got.LeaseOwner)
	}

	got, err = store.GetByID(ctx, healthy.ID)
	if err != nil {
		t.Fatalf("GetByID healthy: %v", err)
	}
	if got.Status != queue.StatusTranscribing {
		t.Fatalf("healthy video must keep its lease, got %s", got.Status)
	}
}

func TestReleaseLeaseRestoresStageStart(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	video := testsupport.EnqueueVideo(t, store, "vid-rel", "Shutdown Release")
	if ok, err := store.Claim(ctx, video.ID, queue.StatusPending, queue.StatusDuplicateChecking, "worker-1"); err != nil || !ok {
		t.Fatalf("Claim: ok=%v err=%v", ok, err)
	}

	if err := store.ReleaseLease(ctx, video.ID, queue.StatusDuplicateChecking); err != nil {
		t.Fatalf("ReleaseLease: %v", err)
	}

	got, err := store.GetByID(ctx, video.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != queue.StatusPending {
		t.Fatalf("expected pending after release, got %s", got.Status)
	}
	if got.LeaseOwner != "" {
		t.Fatalf("lease owner should be cleared, got %q", got.LeaseOwner)
	}
}

func TestRetryFailedRequeuesToResumeStatus(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	video := testsupport.EnqueueVideo(t, store, "vid-retry", "Transcode Failure")
	video.SetFailed(queue.StatusDuplicateChecked, "external_tool", "ffmpeg exited 1")
	video.Attempts = 3
	if err := store.Update(ctx, video); err != nil {
		t.Fatalf("Update: %v", err)
	}

	other := testsupport.EnqueueVideo(t, store, "vid-other", "Untouched")

	requeued, err := store.RetryFailed(ctx, video.ID)
	if err != nil {
		t.Fatalf("RetryFailed: %v", err)
	}
	if requeued != 1 {
		t.Fatalf("expected 1 requeued video, got %d", requeued)
	}

	got, err := store.GetByID(ctx, video.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != queue.StatusDuplicateChecked {
		t.Fatalf("expected resume at duplicate_checked, got %s", got.Status)
	}
	if got.Attempts != 0 {
		t.Fatalf("attempts should reset on manual retry, got %d", got.Attempts)
	}
	if got.ErrorMessage != "" || got.ErrorKind != "" {
		t.Fatalf("error fields should clear, got %q/%q", got.ErrorKind, got.ErrorMessage)
	}

	untouched, err := store.GetByID(ctx, other.ID)
	if err != nil {
		t.Fatalf("GetByID other: %v", err)
	}
	if untouched.Status != queue.StatusPending {
		t.Fatalf("unrelated video must be untouched, got %s", untouched.Status)
	}
}

func TestRetryFailedWithoutResumeStatusDefaultsToPending(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	video := testsupport.EnqueueVideo(t, store, "vid-nores", "No Resume")
	video.Status = queue.StatusFailed
	if err := store.Update(ctx, video); err != nil {
		t.Fatalf("Update: %v", err)
	}

	if _, err := store.RetryFailed(ctx); err != nil {
		t.Fatalf("RetryFailed: %v", err)
	}

	got, err := store.GetByID(ctx, video.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != queue.StatusPending {
		t.Fatalf("expected pending fallback, got %s", got.Status)
	}
}

func TestQueueStats(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	testsupport.EnqueueVideo(t, store, "vid-s1", "Pending One")

	done := testsupport.EnqueueVideo(t, store, "vid-s2", "Done")
	done.Status = queue.StatusCompleted
	if err := store.Update(ctx, done); err != nil {
		t.Fatalf("Update done: %v", err)
	}

	inflight := testsupport.EnqueueVideo(t, store, "vid-s3", "Working")
	if ok, err := store.Claim(ctx, inflight.ID, queue.StatusPending, queue.StatusDuplicateChecking, "worker-1"); err != nil || !ok {
		t.Fatalf("Claim: ok=%v err=%v", ok, err)
	}

	stats, err := store.QueueStats(ctx)
	if err != nil {
		t.Fatalf("QueueStats: %v", err)
	}
	if stats.Total != 3 {
		t.Fatalf("expected total 3, got %d", stats.Total)
	}
	if stats.Pending != 1 || stats.Processing != 1 || stats.Completed != 1 {
		t.Fatalf("unexpected stats breakdown: %+v", stats)
	}
}
