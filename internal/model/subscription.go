package model

import "time"

// SubscriptionStatus is the local subscription state. Stripe is the system
// of record; these values are derived from Stripe statuses via MapStripeStatus.
type SubscriptionStatus string

const (
	SubscriptionStatusInactive SubscriptionStatus = "INACTIVE"
	SubscriptionStatusActive   SubscriptionStatus = "ACTIVE"
	SubscriptionStatusPastDue  SubscriptionStatus = "PAST_DUE"
	SubscriptionStatusCanceled SubscriptionStatus = "CANCELED"
	SubscriptionStatusUnpaid   SubscriptionStatus = "UNPAID"
)

// Subscription is the per-user billing record. Exactly one row exists per
// user; it is created alongside the account and only ever mutated, never
// deleted on its own. The Stripe identifiers stay nil until the user's
// first billing action.
type Subscription struct {
	ID                   string             `db:"id" json:"id"`
	UserID               string             `db:"user_id" json:"user_id"`
	StripeCustomerID     *string            `db:"stripe_customer_id" json:"stripe_customer_id,omitempty"`
	StripePriceID        *string            `db:"stripe_price_id" json:"stripe_price_id,omitempty"`
	StripeSubscriptionID *string            `db:"stripe_subscription_id" json:"stripe_subscription_id,omitempty"`
	Status               SubscriptionStatus `db:"status" json:"status"`
	CurrentPeriodStart   *time.Time         `db:"current_period_start" json:"current_period_start,omitempty"`
	CurrentPeriodEnd     *time.Time         `db:"current_period_end" json:"current_period_end,omitempty"`
	CancelAtPeriodEnd    bool               `db:"cancel_at_period_end" json:"cancel_at_period_end"`
	CreatedAt            time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time          `db:"updated_at" json:"updated_at"`
}

// MapStripeStatus translates a Stripe subscription status into the local
// enum. Unknown statuses deliberately fall back to INACTIVE.
func MapStripeStatus(stripeStatus string) SubscriptionStatus {
	switch stripeStatus {
	case "active":
		return SubscriptionStatusActive
	case "incomplete", "incomplete_expired":
		return SubscriptionStatusInactive
	case "past_due":
		return SubscriptionStatusPastDue
	case "canceled":
		return SubscriptionStatusCanceled
	case "unpaid":
		return SubscriptionStatusUnpaid
	default:
		return SubscriptionStatusInactive
	}
}
