package models

import "time"

type JobKind string

const (
	JobKindEscrowRelease    JobKind = "escrow_release"
	JobKindAffiliateRelease JobKind = "affiliate_release"
)

type JobStatus string

const (
	JobPending JobStatus = "pending"
	JobRunning JobStatus = "running"
	JobDone    JobStatus = "done"
	JobFailed  JobStatus = "failed"
)

// ReleaseJob is a deferred financial-release task fired a fixed delay after
// a slot completes. One row exists per (kind, contribution, slot); duplicate
// enqueues are absorbed at the store.
type ReleaseJob struct {
	ID             string    `json:"id"`
	Kind           JobKind   `json:"kind"`
	ContributionID int64     `json:"contribution_id"`
	SlotID         string    `json:"slot_id"`
	ParticipantIDs []int64   `json:"participant_ids"`
	RunAt          time.Time `json:"run_at"`
	Status         JobStatus `json:"status"`
	LastError      *string   `json:"last_error,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
