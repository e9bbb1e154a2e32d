package model

import "time"

// PaymentStatus is the lifecycle state of a payment intent attempt.
// A payment is created PENDING and only the webhook reconciler moves it
// to a terminal state.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusSucceeded PaymentStatus = "SUCCEEDED"
	PaymentStatusFailed    PaymentStatus = "FAILED"
)

// Payment records one payment-intent attempt. Amount is in minor currency
// units (cents); Currency is a lowercase ISO code.
type Payment struct {
	ID                    string            `db:"id" json:"id"`
	UserID                string            `db:"user_id" json:"user_id"`
	StripePaymentIntentID string            `db:"stripe_payment_intent_id" json:"stripe_payment_intent_id"`
	Amount                int64             `db:"amount" json:"amount"`
	Currency              string            `db:"currency" json:"currency"`
	Status                PaymentStatus     `db:"status" json:"status"`
	Description           string            `db:"description" json:"description"`
	Metadata              map[string]string `db:"metadata" json:"metadata,omitempty"`
	CreatedAt             time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time         `db:"updated_at" json:"updated_at"`
}
