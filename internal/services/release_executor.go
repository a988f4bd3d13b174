package services

import (
	"context"
	"log"

	"github.com/itxfb/Cohere-sub000/internal/models"
)

// LogReleaseExecutor is the hand-off point to the payments platform: it
// records which release became due for whom. Deployments wire the real
// transfer client in its place.
type LogReleaseExecutor struct{}

func NewLogReleaseExecutor() *LogReleaseExecutor {
	return &LogReleaseExecutor{}
}

func (e *LogReleaseExecutor) Execute(_ context.Context, job models.ReleaseJob) error {
	log.Printf(
		"release due: kind=%s contribution=%d slot=%s participants=%v",
		job.Kind, job.ContributionID, job.SlotID, job.ParticipantIDs,
	)
	return nil
}
