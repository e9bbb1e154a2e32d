package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"app/internal/model"
	"app/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v82"
)

var (
	ErrSubscriptionNotFound    = errors.New("subscription not found")
	ErrInvalidWebhookSignature = errors.New("invalid webhook signature")
)

// PaymentService owns the billing flows and the webhook reconciler. Stripe
// holds the authoritative subscription/payment state; the local rows are a
// synchronized snapshot. Synchronous writes after a gateway call are a
// best-effort cache warm — the webhook stream re-applies the same state and
// heals any divergence.
type PaymentService struct {
	gateway     BillingGateway
	userRepo    repository.UserRepository
	subRepo     repository.SubscriptionRepository
	paymentRepo repository.PaymentRepository
	logger      zerolog.Logger
}

func NewPaymentService(gateway BillingGateway, userRepo repository.UserRepository, subRepo repository.SubscriptionRepository, paymentRepo repository.PaymentRepository, logger zerolog.Logger) *PaymentService {
	return &PaymentService{
		gateway:     gateway,
		userRepo:    userRepo,
		subRepo:     subRepo,
		paymentRepo: paymentRepo,
		logger:      logger.With().Str("service", "PaymentService").Logger(),
	}
}

// EnsureCustomer returns the user's Stripe customer ID, creating the
// customer lazily on first use. The ID is written onto every subscription
// row for the user. A second call never reaches Stripe again.
func (s *PaymentService) EnsureCustomer(ctx context.Context, userID string) (string, error) {
	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		return "", err
	}
	if user == nil {
		return "", ErrUserNotFound
	}
	sub, err := s.subRepo.GetByUserID(ctx, userID)
	if err != nil {
		return "", err
	}
	if sub != nil && sub.StripeCustomerID != nil && *sub.StripeCustomerID != "" {
		return *sub.StripeCustomerID, nil
	}

	name := strings.TrimSpace(user.FirstName + " " + user.LastName)
	cust, err := s.gateway.CreateCustomer(ctx, user.Email, name, userID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to create Stripe customer")
		return "", fmt.Errorf("create stripe customer: %w", err)
	}
	if err := s.subRepo.SetCustomerIDByUserID(ctx, userID, cust.ID); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to store stripe customer id")
		return "", err
	}
	return cust.ID, nil
}

// CreateSubscription creates a Stripe subscription for the given price and
// mirrors its status and period onto the local record. The raw Stripe
// subscription is returned as well: it carries the client secret the
// frontend needs to complete the first payment.
func (s *PaymentService) CreateSubscription(ctx context.Context, userID, priceID string) (*model.Subscription, *stripe.Subscription, error) {
	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	if user == nil {
		return nil, nil, ErrUserNotFound
	}
	sub, err := s.subRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	if sub == nil {
		return nil, nil, ErrSubscriptionNotFound
	}

	customerID := ""
	if sub.StripeCustomerID != nil {
		customerID = *sub.StripeCustomerID
	}
	if customerID == "" {
		customerID, err = s.EnsureCustomer(ctx, userID)
		if err != nil {
			return nil, nil, err
		}
	}

	ss, err := s.gateway.CreateSubscription(ctx, customerID, priceID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Str("price_id", priceID).Msg("Failed to create Stripe subscription")
		return nil, nil, fmt.Errorf("create stripe subscription: %w", err)
	}

	status := model.MapStripeStatus(string(ss.Status))
	start, end := subscriptionPeriod(ss)
	if err := s.subRepo.ApplyStripeSubscriptionByUserID(ctx, userID, priceID, ss.ID, status, start, end); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to persist subscription")
		return nil, nil, err
	}

	updated, err := s.subRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	return updated, ss, nil
}

// CancelSubscription marks the Stripe subscription for cancellation at
// period end. Status is left untouched: the actual transition arrives via
// webhook when the period ends.
func (s *PaymentService) CancelSubscription(ctx context.Context, userID string) (*model.Subscription, error) {
	sub, err := s.subRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if sub == nil || sub.StripeSubscriptionID == nil || *sub.StripeSubscriptionID == "" {
		return nil, ErrSubscriptionNotFound
	}

	if _, err := s.gateway.CancelAtPeriodEnd(ctx, *sub.StripeSubscriptionID); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to schedule Stripe cancellation")
		return nil, fmt.Errorf("cancel stripe subscription: %w", err)
	}
	if err := s.subRepo.SetCancelAtPeriodEndByUserID(ctx, userID, true); err != nil {
		return nil, err
	}
	return s.subRepo.GetByUserID(ctx, userID)
}

// GetSubscription returns the user's subscription row.
func (s *PaymentService) GetSubscription(ctx context.Context, userID string) (*model.Subscription, error) {
	sub, err := s.subRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, ErrSubscriptionNotFound
	}
	return sub, nil
}

// CreatePaymentIntent creates a Stripe payment intent and a local PENDING
// payment record. The returned client secret is what the frontend uses to
// confirm the payment.
func (s *PaymentService) CreatePaymentIntent(ctx context.Context, userID string, amount int64, currency string) (*model.Payment, string, error) {
	if currency == "" {
		currency = "usd"
	}
	currency = strings.ToLower(currency)

	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, "", err
	}
	if user == nil {
		return nil, "", ErrUserNotFound
	}
	sub, err := s.subRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, "", err
	}
	customerID := ""
	if sub != nil && sub.StripeCustomerID != nil {
		customerID = *sub.StripeCustomerID
	}

	intent, err := s.gateway.CreatePaymentIntent(ctx, amount, currency, customerID, userID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Int64("amount", amount).Msg("Failed to create payment intent")
		return nil, "", fmt.Errorf("create payment intent: %w", err)
	}

	payment := &model.Payment{
		ID:                    uuid.NewString(),
		UserID:                userID,
		StripePaymentIntentID: intent.ID,
		Amount:                amount,
		Currency:              currency,
		Status:                model.PaymentStatusPending,
		Description:           fmt.Sprintf("Payment of %s %s", formatMajorUnits(amount), strings.ToUpper(currency)),
		Metadata:              map[string]string{"user_id": userID},
	}
	if err := s.paymentRepo.Create(ctx, payment); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Str("intent_id", intent.ID).Msg("Failed to record payment")
		return nil, "", err
	}
	return payment, intent.ClientSecret, nil
}

// webhookInvoice pins the invoice event fields the reconciler depends on.
// Webhook payloads carry subscription and payment_intent as plain ID
// strings regardless of SDK struct churn across Stripe API versions.
type webhookInvoice struct {
	ID            string `json:"id"`
	Subscription  string `json:"subscription"`
	PaymentIntent string `json:"payment_intent"`
}

type webhookSubscription struct {
	ID                 string `json:"id"`
	Status             string `json:"status"`
	CancelAtPeriodEnd  bool   `json:"cancel_at_period_end"`
	CurrentPeriodStart int64  `json:"current_period_start"`
	CurrentPeriodEnd   int64  `json:"current_period_end"`
}

// HandleWebhook verifies and applies one provider event. Every write is a
// full overwrite of the reconciled fields from the provider's snapshot, so
// redelivery of the same event converges to the same state. Unhandled event
// types and updates that match no rows are acknowledged without error.
func (s *PaymentService) HandleWebhook(ctx context.Context, payload []byte, sigHeader string) error {
	event, err := s.gateway.ConstructEvent(payload, sigHeader)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Signature verification failed for Stripe webhook")
		return ErrInvalidWebhookSignature
	}
	s.logger.Info().Str("event_type", string(event.Type)).Msg("Stripe webhook received")

	switch event.Type {
	case "invoice.payment_succeeded":
		return s.applyInvoiceEvent(ctx, event, model.SubscriptionStatusActive, model.PaymentStatusSucceeded)
	case "invoice.payment_failed":
		return s.applyInvoiceEvent(ctx, event, model.SubscriptionStatusPastDue, model.PaymentStatusFailed)
	case "customer.subscription.updated":
		var ws webhookSubscription
		if err := json.Unmarshal(event.Data.Raw, &ws); err != nil {
			return fmt.Errorf("decode customer.subscription.updated payload: %w", err)
		}
		status := model.MapStripeStatus(ws.Status)
		start := time.Unix(ws.CurrentPeriodStart, 0)
		end := time.Unix(ws.CurrentPeriodEnd, 0)
		if err := s.subRepo.ApplyStripeUpdateByStripeSubscriptionID(ctx, ws.ID, status, start, end, ws.CancelAtPeriodEnd); err != nil {
			s.logger.Error().Err(err).Str("subscription_id", ws.ID).Msg("Failed to apply subscription update")
			return err
		}
	default:
		s.logger.Debug().Str("event_type", string(event.Type)).Msg("Unhandled Stripe webhook event")
	}
	return nil
}

func (s *PaymentService) applyInvoiceEvent(ctx context.Context, event stripe.Event, subStatus model.SubscriptionStatus, payStatus model.PaymentStatus) error {
	var inv webhookInvoice
	if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
		return fmt.Errorf("decode %s payload: %w", event.Type, err)
	}
	if inv.Subscription != "" {
		if err := s.subRepo.UpdateStatusByStripeSubscriptionID(ctx, inv.Subscription, subStatus); err != nil {
			s.logger.Error().Err(err).Str("subscription_id", inv.Subscription).Msg("Failed to update subscription status")
			return err
		}
	}
	if inv.PaymentIntent != "" {
		if err := s.paymentRepo.UpdateStatusByIntentID(ctx, inv.PaymentIntent, payStatus); err != nil {
			s.logger.Error().Err(err).Str("intent_id", inv.PaymentIntent).Msg("Failed to update payment status")
			return err
		}
	}
	return nil
}

// subscriptionPeriod reads the current period from the subscription's
// first item, where Stripe reports it.
func subscriptionPeriod(ss *stripe.Subscription) (time.Time, time.Time) {
	if ss.Items == nil || len(ss.Items.Data) == 0 {
		now := time.Now()
		return now, now
	}
	item := ss.Items.Data[0]
	return time.Unix(item.CurrentPeriodStart, 0), time.Unix(item.CurrentPeriodEnd, 0)
}

// formatMajorUnits renders a minor-unit amount in major units for display
// only; storage stays in minor units.
func formatMajorUnits(amount int64) string {
	return strconv.FormatFloat(float64(amount)/100, 'f', -1, 64)
}
