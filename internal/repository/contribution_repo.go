package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/itxfb/Cohere-sub000/internal/models"
)

type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ErrVersionConflict is returned when a conditional save loses a race with
// a concurrent writer. Callers may reload and retry.
var ErrVersionConflict = errors.New("contribution was modified concurrently")

type ContributionRepository struct {
	db DBTX
}

func NewContributionRepository(db DBTX) *ContributionRepository {
	return &ContributionRepository{db: db}
}

const contributionColumns = `
	id, coach_id, title, type, status, partners, calendar_account,
	sessions, availability_times, version, created_at, updated_at
`

func (r *ContributionRepository) Create(
	ctx context.Context,
	contribution *models.Contribution,
) error {
	partners, sessions, availability, err := marshalSchedule(contribution)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO contributions (coach_id, title, type, status, partners, calendar_account, sessions, availability_times)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, version, created_at, updated_at
	`
	return r.db.QueryRow(
		ctx,
		query,
		contribution.CoachID,
		contribution.Title,
		contribution.Type,
		contribution.Status,
		partners,
		contribution.CalendarAccount,
		sessions,
		availability,
	).Scan(
		&contribution.ID,
		&contribution.Version,
		&contribution.CreatedAt,
		&contribution.UpdatedAt,
	)
}

func (r *ContributionRepository) GetByID(
	ctx context.Context,
	contributionID int64,
) (*models.Contribution, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM contributions
		WHERE id = $1
	`, contributionColumns)

	return scanContribution(r.db.QueryRow(ctx, query, contributionID))
}

func (r *ContributionRepository) ListByCoach(
	ctx context.Context,
	coachID int64,
) ([]models.Contribution, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM contributions
		WHERE coach_id = $1
		ORDER BY id ASC
	`, contributionColumns)

	rows, err := r.db.Query(ctx, query, coachID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	contributions := make([]models.Contribution, 0)
	for rows.Next() {
		contribution, err := scanContribution(rows)
		if err != nil {
			return nil, err
		}
		contributions = append(contributions, *contribution)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return contributions, nil
}

// Save writes the whole aggregate back, conditional on the version it was
// loaded at. A lost race returns ErrVersionConflict and writes nothing.
func (r *ContributionRepository) Save(
	ctx context.Context,
	contribution *models.Contribution,
) error {
	partners, sessions, availability, err := marshalSchedule(contribution)
	if err != nil {
		return err
	}

	query := `
		UPDATE contributions
		SET status = $2,
		    partners = $3,
		    calendar_account = $4,
		    sessions = $5,
		    availability_times = $6,
		    version = version + 1,
		    updated_at = NOW()
		WHERE id = $1 AND version = $7
		RETURNING version, updated_at
	`
	err = r.db.QueryRow(
		ctx,
		query,
		contribution.ID,
		contribution.Status,
		partners,
		contribution.CalendarAccount,
		sessions,
		availability,
		contribution.Version,
	).Scan(&contribution.Version, &contribution.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrVersionConflict
	}
	return err
}

// AttachEventInfo persists an external-calendar event id onto a slot after
// the aggregate was already durably saved. Retries version races locally so
// a post-commit dispatcher never has to.
func (r *ContributionRepository) AttachEventInfo(
	ctx context.Context,
	contributionID int64,
	sessionTimeID string,
	info models.EventInfo,
) error {
	return r.attachWithRetry(ctx, contributionID, func(c *models.Contribution) bool {
		return c.AttachEventInfo(sessionTimeID, info)
	})
}

// AttachBookedEventInfo is the one-to-one counterpart of AttachEventInfo.
func (r *ContributionRepository) AttachBookedEventInfo(
	ctx context.Context,
	contributionID int64,
	bookedTimeID string,
	info models.EventInfo,
) error {
	return r.attachWithRetry(ctx, contributionID, func(c *models.Contribution) bool {
		return c.AttachBookedEventInfo(bookedTimeID, info)
	})
}

func (r *ContributionRepository) attachWithRetry(
	ctx context.Context,
	contributionID int64,
	mutate func(*models.Contribution) bool,
) error {
	const attempts = 3
	var err error
	for i := 0; i < attempts; i++ {
		var contribution *models.Contribution
		contribution, err = r.GetByID(ctx, contributionID)
		if err != nil {
			return err
		}
		if !mutate(contribution) {
			return models.ErrSlotNotFound
		}
		err = r.Save(ctx, contribution)
		if !errors.Is(err, ErrVersionConflict) {
			return err
		}
	}
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContribution(row rowScanner) (*models.Contribution, error) {
	var (
		contribution models.Contribution
		partners     []byte
		sessions     []byte
		availability []byte
	)
	err := row.Scan(
		&contribution.ID,
		&contribution.CoachID,
		&contribution.Title,
		&contribution.Type,
		&contribution.Status,
		&partners,
		&contribution.CalendarAccount,
		&sessions,
		&availability,
		&contribution.Version,
		&contribution.CreatedAt,
		&contribution.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(partners, &contribution.Partners); err != nil {
		return nil, fmt.Errorf("decode partners: %w", err)
	}
	if err := json.Unmarshal(sessions, &contribution.Sessions); err != nil {
		return nil, fmt.Errorf("decode sessions: %w", err)
	}
	if err := json.Unmarshal(availability, &contribution.AvailabilityTimes); err != nil {
		return nil, fmt.Errorf("decode availability times: %w", err)
	}
	return &contribution, nil
}

func marshalSchedule(c *models.Contribution) (partners, sessions, availability []byte, err error) {
	if partners, err = json.Marshal(emptyIfNilIDs(c.Partners)); err != nil {
		return nil, nil, nil, fmt.Errorf("encode partners: %w", err)
	}
	if c.Sessions == nil {
		c.Sessions = []models.Session{}
	}
	if sessions, err = json.Marshal(c.Sessions); err != nil {
		return nil, nil, nil, fmt.Errorf("encode sessions: %w", err)
	}
	if c.AvailabilityTimes == nil {
		c.AvailabilityTimes = []models.AvailabilityTime{}
	}
	if availability, err = json.Marshal(c.AvailabilityTimes); err != nil {
		return nil, nil, nil, fmt.Errorf("encode availability times: %w", err)
	}
	return partners, sessions, availability, nil
}

func emptyIfNilIDs(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}
