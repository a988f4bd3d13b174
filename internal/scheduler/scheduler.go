package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/itxfb/Cohere-sub000/internal/models"
)

// claimBatchSize bounds how many due jobs one tick drains.
const claimBatchSize = 50

type jobStore interface {
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]models.ReleaseJob, error)
	MarkDone(ctx context.Context, jobID string) error
	MarkFailed(ctx context.Context, jobID string, reason string) error
}

// JobExecutor carries out one release job. Execution is at-least-once: a
// failed job goes back on the queue, so executors must tolerate replays.
type JobExecutor interface {
	Execute(ctx context.Context, job models.ReleaseJob) error
}

// Scheduler drains due release jobs to the executor on a fixed interval.
type Scheduler struct {
	jobs     jobStore
	executor JobExecutor
	interval time.Duration
}

func New(jobs jobStore, executor JobExecutor, interval time.Duration) *Scheduler {
	return &Scheduler{
		jobs:     jobs,
		executor: executor,
		interval: interval,
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	log.Printf("release scheduler started: interval=%s", s.interval)
	for {
		select {
		case <-ctx.Done():
			log.Println("release scheduler stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	jobs, err := s.jobs.ClaimDue(ctx, time.Now().UTC(), claimBatchSize)
	if err != nil {
		log.Printf("claim due release jobs failed: err=%v", err)
		return
	}

	for _, job := range jobs {
		if err := s.executor.Execute(ctx, job); err != nil {
			log.Printf(
				"release job failed: job=%s kind=%s contribution=%d slot=%s err=%v",
				job.ID, job.Kind, job.ContributionID, job.SlotID, err,
			)
			if markErr := s.jobs.MarkFailed(ctx, job.ID, err.Error()); markErr != nil {
				log.Printf("mark release job failed errored: job=%s err=%v", job.ID, markErr)
			}
			continue
		}
		if err := s.jobs.MarkDone(ctx, job.ID); err != nil {
			log.Printf("mark release job done errored: job=%s err=%v", job.ID, err)
		}
	}
}
