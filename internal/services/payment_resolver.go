package services

import (
	"context"

	"github.com/itxfb/Cohere-sub000/internal/models"
)

// PaymentStatusResolver computes the effective payment standing of a
// purchase. The full reconciliation (subscription state, charge retries)
// belongs to the payment subsystem; the booking engine only consumes the
// verdict.
type PaymentStatusResolver interface {
	ResolveActualStatus(ctx context.Context, purchase *models.Purchase) (models.PaymentStatus, error)
}

// LedgerPaymentResolver derives the standing from the payment records
// already attached to the purchase. It stands in for the payment platform's
// resolver when the service runs without one.
type LedgerPaymentResolver struct{}

func NewLedgerPaymentResolver() *LedgerPaymentResolver {
	return &LedgerPaymentResolver{}
}

func (r *LedgerPaymentResolver) ResolveActualStatus(
	_ context.Context,
	purchase *models.Purchase,
) (models.PaymentStatus, error) {
	if purchase == nil || len(purchase.Payments) == 0 {
		return models.PaymentUnpurchased, nil
	}

	status := models.PaymentUnpurchased
	for i := range purchase.Payments {
		switch purchase.Payments[i].Status {
		case models.PaymentSucceeded, models.PaymentPaid:
			return purchase.Payments[i].Status, nil
		case models.PaymentTrial:
			status = models.PaymentTrial
		case models.PaymentDeclined:
			if status == models.PaymentUnpurchased {
				status = models.PaymentDeclined
			}
		}
	}
	return status, nil
}
