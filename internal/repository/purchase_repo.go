package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/itxfb/Cohere-sub000/internal/models"
)

type PurchaseRepository struct {
	db DBTX
}

func NewPurchaseRepository(db DBTX) *PurchaseRepository {
	return &PurchaseRepository{db: db}
}

func (r *PurchaseRepository) GetByContributionAndClient(
	ctx context.Context,
	contributionID int64,
	clientID int64,
) (*models.Purchase, error) {
	query := `
		SELECT id, contribution_id, client_id, created_at
		FROM purchases
		WHERE contribution_id = $1 AND client_id = $2
	`
	var purchase models.Purchase
	err := r.db.QueryRow(ctx, query, contributionID, clientID).Scan(
		&purchase.ID,
		&purchase.ContributionID,
		&purchase.ClientID,
		&purchase.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	payments, err := r.listPayments(ctx, purchase.ID)
	if err != nil {
		return nil, err
	}
	purchase.Payments = payments
	return &purchase, nil
}

func (r *PurchaseRepository) listPayments(
	ctx context.Context,
	purchaseID int64,
) ([]models.Payment, error) {
	query := `
		SELECT id, purchase_id, status, amount, booked_class_ids, created_at
		FROM payments
		WHERE purchase_id = $1
		ORDER BY id ASC
	`
	rows, err := r.db.Query(ctx, query, purchaseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payments := make([]models.Payment, 0)
	for rows.Next() {
		var (
			payment models.Payment
			booked  []byte
		)
		if err := rows.Scan(
			&payment.ID,
			&payment.PurchaseID,
			&payment.Status,
			&payment.Amount,
			&booked,
			&payment.CreatedAt,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(booked, &payment.BookedClassIDs); err != nil {
			return nil, fmt.Errorf("decode booked class ids: %w", err)
		}
		payments = append(payments, payment)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return payments, nil
}

// SaveBookedClassIDs overwrites one payment's booked-class ledger. The
// caller computes the target set in memory, so replaying the same write is
// harmless: the booking engine is a secondary writer of this ledger and the
// update must stay re-driveable after a crash.
func (r *PurchaseRepository) SaveBookedClassIDs(
	ctx context.Context,
	paymentID int64,
	bookedClassIDs []string,
) error {
	if bookedClassIDs == nil {
		bookedClassIDs = []string{}
	}
	encoded, err := json.Marshal(bookedClassIDs)
	if err != nil {
		return fmt.Errorf("encode booked class ids: %w", err)
	}

	query := `
		UPDATE payments
		SET booked_class_ids = $2
		WHERE id = $1
	`
	_, err = r.db.Exec(ctx, query, paymentID, encoded)
	return err
}
