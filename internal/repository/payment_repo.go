package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"app/internal/model"
)

type PaymentRepository interface {
	Create(ctx context.Context, p *model.Payment) error
	GetByIntentID(ctx context.Context, intentID string) (*model.Payment, error)
	// UpdateStatusByIntentID updates every payment matching the intent ID.
	// Matching zero rows is not an error.
	UpdateStatusByIntentID(ctx context.Context, intentID string, status model.PaymentStatus) error
}

type paymentRepo struct {
	db *sql.DB
}

func NewPaymentRepo(db *sql.DB) PaymentRepository {
	return &paymentRepo{db: db}
}

func (r *paymentRepo) Create(ctx context.Context, p *model.Payment) error {
	metadata, err := json.Marshal(p.Metadata)
	if err != nil {
		return fmt.Errorf("marshal payment metadata: %w", err)
	}
	const q = `
        INSERT INTO payments (id, user_id, stripe_payment_intent_id, amount, currency, status, description, metadata)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING created_at, updated_at
    `
	err = r.db.QueryRowContext(ctx, q, p.ID, p.UserID, p.StripePaymentIntentID, p.Amount, p.Currency, p.Status, p.Description, metadata).
		Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create payment for user %s: %w", p.UserID, err)
	}
	return nil
}

func (r *paymentRepo) GetByIntentID(ctx context.Context, intentID string) (*model.Payment, error) {
	const q = `
        SELECT id, user_id, stripe_payment_intent_id, amount, currency, status, description, metadata, created_at, updated_at
        FROM payments
        WHERE stripe_payment_intent_id = $1
    `
	var p model.Payment
	var rawMetadata []byte
	err := r.db.QueryRowContext(ctx, q, intentID).Scan(
		&p.ID,
		&p.UserID,
		&p.StripePaymentIntentID,
		&p.Amount,
		&p.Currency,
		&p.Status,
		&p.Description,
		&rawMetadata,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch payment for intent %s: %w", intentID, err)
	}
	if len(rawMetadata) > 0 {
		if err := json.Unmarshal(rawMetadata, &p.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata for payment %s: %w", p.ID, err)
		}
	}
	return &p, nil
}

func (r *paymentRepo) UpdateStatusByIntentID(ctx context.Context, intentID string, status model.PaymentStatus) error {
	const q = `
        UPDATE payments
        SET status = $2, updated_at = NOW()
        WHERE stripe_payment_intent_id = $1
    `
	if _, err := r.db.ExecContext(ctx, q, intentID, status); err != nil {
		return fmt.Errorf("update status for payment intent %s: %w", intentID, err)
	}
	return nil
}
