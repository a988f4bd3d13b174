package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/itxfb/Cohere-sub000/internal/models"
)

type stubJobStore struct {
	due       []models.ReleaseJob
	claimErr  error
	claimed   int
	done      []string
	failed    map[string]string
	claimedAt []time.Time
}

func newStubJobStore(due ...models.ReleaseJob) *stubJobStore {
	return &stubJobStore{due: due, failed: make(map[string]string)}
}

func (s *stubJobStore) ClaimDue(_ context.Context, now time.Time, limit int) ([]models.ReleaseJob, error) {
	if s.claimErr != nil {
		return nil, s.claimErr
	}
	s.claimedAt = append(s.claimedAt, now)
	if len(s.due) > limit {
		s.claimed = limit
		return s.due[:limit], nil
	}
	s.claimed = len(s.due)
	return s.due, nil
}

func (s *stubJobStore) MarkDone(_ context.Context, jobID string) error {
	s.done = append(s.done, jobID)
	return nil
}

func (s *stubJobStore) MarkFailed(_ context.Context, jobID string, reason string) error {
	s.failed[jobID] = reason
	return nil
}

type stubExecutor struct {
	failIDs  map[string]error
	executed []string
}

func (e *stubExecutor) Execute(_ context.Context, job models.ReleaseJob) error {
	e.executed = append(e.executed, job.ID)
	if err, ok := e.failIDs[job.ID]; ok {
		return err
	}
	return nil
}

func releaseJob(id string, kind models.JobKind) models.ReleaseJob {
	return models.ReleaseJob{
		ID:             id,
		Kind:           kind,
		ContributionID: 1,
		SlotID:         "st1",
	}
}

func TestTickExecutesAndCompletesDueJobs(t *testing.T) {
	store := newStubJobStore(
		releaseJob("job-1", models.JobKindEscrowRelease),
		releaseJob("job-2", models.JobKindAffiliateRelease),
	)
	executor := &stubExecutor{}
	scheduler := New(store, executor, time.Minute)

	scheduler.tick(context.Background())

	if len(executor.executed) != 2 {
		t.Fatalf("Expected both jobs executed, got %v", executor.executed)
	}
	if len(store.done) != 2 {
		t.Fatalf("Expected both jobs marked done, got %v", store.done)
	}
	if len(store.failed) != 0 {
		t.Errorf("Expected no failures, got %v", store.failed)
	}
}

func TestTickRequeuesFailedJobAndContinues(t *testing.T) {
	store := newStubJobStore(
		releaseJob("job-1", models.JobKindEscrowRelease),
		releaseJob("job-2", models.JobKindAffiliateRelease),
	)
	executor := &stubExecutor{
		failIDs: map[string]error{"job-1": errors.New("payment platform unavailable")},
	}
	scheduler := New(store, executor, time.Minute)

	scheduler.tick(context.Background())

	if len(executor.executed) != 2 {
		t.Fatalf("Expected the failure not to stop the batch, got %v", executor.executed)
	}
	if reason, ok := store.failed["job-1"]; !ok || reason != "payment platform unavailable" {
		t.Errorf("Expected job-1 marked failed with the executor's reason, got %v", store.failed)
	}
	if len(store.done) != 1 || store.done[0] != "job-2" {
		t.Errorf("Expected only job-2 marked done, got %v", store.done)
	}
}

func TestTickSkipsExecutionWhenClaimFails(t *testing.T) {
	store := newStubJobStore(releaseJob("job-1", models.JobKindEscrowRelease))
	store.claimErr = errors.New("connection refused")
	executor := &stubExecutor{}
	scheduler := New(store, executor, time.Minute)

	scheduler.tick(context.Background())

	if len(executor.executed) != 0 {
		t.Fatalf("Expected no execution after a claim error, got %v", executor.executed)
	}
}

func TestStartStopsOnContextCancel(t *testing.T) {
	store := newStubJobStore()
	scheduler := New(store, &stubExecutor{}, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		scheduler.Start(ctx)
		close(stopped)
	}()

	time.Sleep(25 * time.Millisecond)
	cancel()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Expected Start to return after cancel")
	}
	if len(store.claimedAt) == 0 {
		t.Errorf("Expected at least one tick before cancel")
	}
}
