package dto

import (
	"app/internal/model"

	"github.com/stripe/stripe-go/v82"
)

type CreateSubscriptionRequest struct {
	PriceID string `json:"price_id" validate:"required"`
}

// CreateSubscriptionResponse returns the local record plus the raw Stripe
// subscription, whose expanded latest invoice carries the client secret the
// frontend needs to complete the first payment.
type CreateSubscriptionResponse struct {
	Subscription       *model.Subscription  `json:"subscription"`
	StripeSubscription *stripe.Subscription `json:"stripe_subscription"`
}

type CreatePaymentIntentRequest struct {
	// Amount is in minor currency units (cents).
	Amount   int64  `json:"amount" validate:"required,gt=0"`
	Currency string `json:"currency" validate:"omitempty,len=3"`
}

type CreatePaymentIntentResponse struct {
	Payment      *model.Payment `json:"payment"`
	ClientSecret string         `json:"client_secret"`
}

// WebhookAck is the acknowledgement returned for every processed event.
type WebhookAck struct {
	Received bool `json:"received"`
}
