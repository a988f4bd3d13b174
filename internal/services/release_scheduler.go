package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/itxfb/Cohere-sub000/internal/models"
)

// ReleaseScheduler enqueues deferred financial-release jobs. Enqueue is the
// engine's success boundary: execution, retries and failures belong to the
// job executor.
type ReleaseScheduler interface {
	Schedule(ctx context.Context, delay time.Duration, kind models.JobKind, contributionID int64, slotID string, participantIDs []int64) error
}

type jobEnqueuer interface {
	Enqueue(ctx context.Context, job *models.ReleaseJob) error
}

// QueueReleaseScheduler writes release jobs to the durable queue. The queue
// deduplicates on (kind, contribution, slot), so replaying a completion
// never doubles a release.
type QueueReleaseScheduler struct {
	jobs jobEnqueuer
	now  func() time.Time
}

func NewQueueReleaseScheduler(jobs jobEnqueuer) *QueueReleaseScheduler {
	return &QueueReleaseScheduler{jobs: jobs, now: time.Now}
}

func (s *QueueReleaseScheduler) Schedule(
	ctx context.Context,
	delay time.Duration,
	kind models.JobKind,
	contributionID int64,
	slotID string,
	participantIDs []int64,
) error {
	return s.jobs.Enqueue(ctx, &models.ReleaseJob{
		ID:             uuid.NewString(),
		Kind:           kind,
		ContributionID: contributionID,
		SlotID:         slotID,
		ParticipantIDs: participantIDs,
		RunAt:          s.now().UTC().Add(delay),
		Status:         models.JobPending,
	})
}
