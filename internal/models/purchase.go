package models

import "time"

type PaymentStatus string

const (
	PaymentUnpurchased PaymentStatus = "unpurchased"
	PaymentSucceeded   PaymentStatus = "succeeded"
	PaymentPaid        PaymentStatus = "paid"
	PaymentTrial       PaymentStatus = "trial"
	PaymentDeclined    PaymentStatus = "declined"
)

// CoversBooking reports whether a payment in this status counts toward the
// booked-class ledger and toward the purchase precondition for booking.
func (s PaymentStatus) CoversBooking() bool {
	return s == PaymentSucceeded || s == PaymentPaid
}

// Payment is one charge attempt within a purchase. BookedClassIDs is the
// authoritative ledger of session-time ids this payment has consumed; it
// has set semantics, never multiset.
type Payment struct {
	ID             int64         `json:"id"`
	PurchaseID     int64         `json:"purchase_id"`
	Status         PaymentStatus `json:"status"`
	Amount         float64       `json:"amount"`
	BookedClassIDs []string      `json:"booked_class_ids"`
	CreatedAt      time.Time     `json:"created_at"`
}

// HasBookedClass reports whether this payment's ledger holds the slot.
func (p *Payment) HasBookedClass(slotID string) bool {
	for _, id := range p.BookedClassIDs {
		if id == slotID {
			return true
		}
	}
	return false
}

// AddBookedClass appends a slot id to the ledger if absent. Reports whether
// the ledger changed.
func (p *Payment) AddBookedClass(slotID string) bool {
	if p.HasBookedClass(slotID) {
		return false
	}
	p.BookedClassIDs = append(p.BookedClassIDs, slotID)
	return true
}

// RemoveBookedClass drops a slot id from the ledger. Reports whether the
// ledger changed.
func (p *Payment) RemoveBookedClass(slotID string) bool {
	for i, id := range p.BookedClassIDs {
		if id == slotID {
			p.BookedClassIDs = append(p.BookedClassIDs[:i], p.BookedClassIDs[i+1:]...)
			return true
		}
	}
	return false
}

// Purchase is the enrollment record for one (contribution, client) pair.
type Purchase struct {
	ID             int64     `json:"id"`
	ContributionID int64     `json:"contribution_id"`
	ClientID       int64     `json:"client_id"`
	Payments       []Payment `json:"payments"`
	CreatedAt      time.Time `json:"created_at"`
}

// PaidForSlot reports whether some covering payment's ledger contains the
// slot id.
func (p *Purchase) PaidForSlot(slotID string) bool {
	for i := range p.Payments {
		if p.Payments[i].Status.CoversBooking() && p.Payments[i].HasBookedClass(slotID) {
			return true
		}
	}
	return false
}
