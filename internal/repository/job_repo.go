package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/itxfb/Cohere-sub000/internal/models"
)

type JobRepository struct {
	db DBTX
}

func NewJobRepository(db DBTX) *JobRepository {
	return &JobRepository{db: db}
}

// Enqueue inserts a deferred release job. A job for the same (kind,
// contribution, slot) already on the queue absorbs the insert, which makes
// duplicate enqueues from replayed completion calls safe.
func (r *JobRepository) Enqueue(ctx context.Context, job *models.ReleaseJob) error {
	participants, err := json.Marshal(job.ParticipantIDs)
	if err != nil {
		return fmt.Errorf("encode participant ids: %w", err)
	}

	query := `
		INSERT INTO release_jobs (id, kind, contribution_id, slot_id, participant_ids, run_at, status)
		VALUES ($1, $2, $3, $4, $5, $6, 'pending')
		ON CONFLICT (kind, contribution_id, slot_id) DO NOTHING
	`
	_, err = r.db.Exec(
		ctx,
		query,
		job.ID,
		job.Kind,
		job.ContributionID,
		job.SlotID,
		participants,
		job.RunAt,
	)
	return err
}

// ClaimDue atomically moves up to limit due jobs to running and returns
// them. Skip-locked so multiple dispatcher instances never double-claim.
func (r *JobRepository) ClaimDue(
	ctx context.Context,
	now time.Time,
	limit int,
) ([]models.ReleaseJob, error) {
	query := `
		UPDATE release_jobs
		SET status = 'running'
		WHERE id IN (
			SELECT id
			FROM release_jobs
			WHERE status = 'pending' AND run_at <= $1
			ORDER BY run_at ASC
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, kind, contribution_id, slot_id, participant_ids, run_at, status, last_error, created_at
	`
	rows, err := r.db.Query(ctx, query, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	jobs := make([]models.ReleaseJob, 0)
	for rows.Next() {
		var (
			job          models.ReleaseJob
			participants []byte
		)
		if err := rows.Scan(
			&job.ID,
			&job.Kind,
			&job.ContributionID,
			&job.SlotID,
			&participants,
			&job.RunAt,
			&job.Status,
			&job.LastError,
			&job.CreatedAt,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(participants, &job.ParticipantIDs); err != nil {
			return nil, fmt.Errorf("decode participant ids: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return jobs, nil
}

func (r *JobRepository) MarkDone(ctx context.Context, jobID string) error {
	_, err := r.db.Exec(ctx, `UPDATE release_jobs SET status = 'done' WHERE id = $1`, jobID)
	return err
}

// MarkFailed records the failure and returns the job to pending so the
// executor's at-least-once contract holds across dispatcher restarts.
func (r *JobRepository) MarkFailed(ctx context.Context, jobID string, reason string) error {
	query := `
		UPDATE release_jobs
		SET status = 'pending', last_error = $2, run_at = run_at + INTERVAL '1 minute'
		WHERE id = $1
	`
	_, err := r.db.Exec(ctx, query, jobID, reason)
	return err
}
