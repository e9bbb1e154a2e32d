package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"app/internal/model"
)

// SubscriptionRepository defines methods for accessing subscription rows.
//
// Mutations deliberately filter on user_id or stripe_subscription_id rather
// than the primary key: webhook deliveries are applied to whatever rows
// match, and touching zero rows is not an error. That keeps reconciliation
// idempotent under at-least-once delivery.
type SubscriptionRepository interface {
	Create(ctx context.Context, id, userID string) error
	GetByUserID(ctx context.Context, userID string) (*model.Subscription, error)
	SetCustomerIDByUserID(ctx context.Context, userID, customerID string) error
	ApplyStripeSubscriptionByUserID(ctx context.Context, userID, priceID, stripeSubscriptionID string, status model.SubscriptionStatus, periodStart, periodEnd time.Time) error
	SetCancelAtPeriodEndByUserID(ctx context.Context, userID string, cancel bool) error
	UpdateStatusByStripeSubscriptionID(ctx context.Context, stripeSubscriptionID string, status model.SubscriptionStatus) error
	ApplyStripeUpdateByStripeSubscriptionID(ctx context.Context, stripeSubscriptionID string, status model.SubscriptionStatus, periodStart, periodEnd time.Time, cancelAtPeriodEnd bool) error
}

type subscriptionRepo struct {
	db *sql.DB
}

func NewSubscriptionRepo(db *sql.DB) SubscriptionRepository {
	return &subscriptionRepo{db: db}
}

// Create inserts the initial INACTIVE row for a freshly registered user.
func (r *subscriptionRepo) Create(ctx context.Context, id, userID string) error {
	const q = `
        INSERT INTO subscriptions (id, user_id, status, cancel_at_period_end)
        VALUES ($1, $2, 'INACTIVE', FALSE)
    `
	if _, err := r.db.ExecContext(ctx, q, id, userID); err != nil {
		return fmt.Errorf("create subscription for user %s: %w", userID, err)
	}
	return nil
}

// GetByUserID returns the user's subscription row, or nil when none exists.
func (r *subscriptionRepo) GetByUserID(ctx context.Context, userID string) (*model.Subscription, error) {
	const q = `
        SELECT id, user_id, stripe_customer_id, stripe_price_id, stripe_subscription_id,
               status, current_period_start, current_period_end, cancel_at_period_end,
               created_at, updated_at
        FROM subscriptions
        WHERE user_id = $1
        ORDER BY created_at
        LIMIT 1
    `
	var s model.Subscription
	err := r.db.QueryRowContext(ctx, q, userID).Scan(
		&s.ID,
		&s.UserID,
		&s.StripeCustomerID,
		&s.StripePriceID,
		&s.StripeSubscriptionID,
		&s.Status,
		&s.CurrentPeriodStart,
		&s.CurrentPeriodEnd,
		&s.CancelAtPeriodEnd,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch subscription for user %s: %w", userID, err)
	}
	return &s, nil
}

func (r *subscriptionRepo) SetCustomerIDByUserID(ctx context.Context, userID, customerID string) error {
	const q = `
        UPDATE subscriptions
        SET stripe_customer_id = $2, updated_at = NOW()
        WHERE user_id = $1
    `
	if _, err := r.db.ExecContext(ctx, q, userID, customerID); err != nil {
		return fmt.Errorf("set stripe customer id for user %s: %w", userID, err)
	}
	return nil
}

func (r *subscriptionRepo) ApplyStripeSubscriptionByUserID(ctx context.Context, userID, priceID, stripeSubscriptionID string, status model.SubscriptionStatus, periodStart, periodEnd time.Time) error {
	const q = `
        UPDATE subscriptions
        SET stripe_price_id = $2,
            stripe_subscription_id = $3,
            status = $4,
            current_period_start = $5,
            current_period_end = $6,
            updated_at = NOW()
        WHERE user_id = $1
    `
	if _, err := r.db.ExecContext(ctx, q, userID, priceID, stripeSubscriptionID, status, periodStart, periodEnd); err != nil {
		return fmt.Errorf("apply stripe subscription for user %s: %w", userID, err)
	}
	return nil
}

func (r *subscriptionRepo) SetCancelAtPeriodEndByUserID(ctx context.Context, userID string, cancel bool) error {
	const q = `
        UPDATE subscriptions
        SET cancel_at_period_end = $2, updated_at = NOW()
        WHERE user_id = $1
    `
	if _, err := r.db.ExecContext(ctx, q, userID, cancel); err != nil {
		return fmt.Errorf("set cancel_at_period_end for user %s: %w", userID, err)
	}
	return nil
}

func (r *subscriptionRepo) UpdateStatusByStripeSubscriptionID(ctx context.Context, stripeSubscriptionID string, status model.SubscriptionStatus) error {
	const q = `
        UPDATE subscriptions
        SET status = $2, updated_at = NOW()
        WHERE stripe_subscription_id = $1
    `
	if _, err := r.db.ExecContext(ctx, q, stripeSubscriptionID, status); err != nil {
		return fmt.Errorf("update status for stripe subscription %s: %w", stripeSubscriptionID, err)
	}
	return nil
}

// ApplyStripeUpdateByStripeSubscriptionID overwrites the reconciled fields
// with the provider's current snapshot. Last writer wins.
func (r *subscriptionRepo) ApplyStripeUpdateByStripeSubscriptionID(ctx context.Context, stripeSubscriptionID string, status model.SubscriptionStatus, periodStart, periodEnd time.Time, cancelAtPeriodEnd bool) error {
	const q = `
        UPDATE subscriptions
        SET status = $2,
            current_period_start = $3,
            current_period_end = $4,
            cancel_at_period_end = $5,
            updated_at = NOW()
        WHERE stripe_subscription_id = $1
    `
	if _, err := r.db.ExecContext(ctx, q, stripeSubscriptionID, status, periodStart, periodEnd, cancelAtPeriodEnd); err != nil {
		return fmt.Errorf("apply stripe update for subscription %s: %w", stripeSubscriptionID, err)
	}
	return nil
}
