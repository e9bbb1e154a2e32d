package service

import (
	"context"

	"app/internal/config"

	"github.com/stripe/stripe-go/v82"
	customerpkg "github.com/stripe/stripe-go/v82/customer"
	paymentintentpkg "github.com/stripe/stripe-go/v82/paymentintent"
	subscriptionpkg "github.com/stripe/stripe-go/v82/subscription"
	"github.com/stripe/stripe-go/v82/webhook"
)

// BillingGateway is the stateless wrapper around the external billing
// provider. Stripe is the system of record; everything local is a
// correlation cache kept in sync through these calls and the webhook
// stream.
type BillingGateway interface {
	CreateCustomer(ctx context.Context, email, name, userID string) (*stripe.Customer, error)
	CreateSubscription(ctx context.Context, customerID, priceID string) (*stripe.Subscription, error)
	CancelAtPeriodEnd(ctx context.Context, subscriptionID string) (*stripe.Subscription, error)
	CreatePaymentIntent(ctx context.Context, amount int64, currency, customerID, userID string) (*stripe.PaymentIntent, error)
	ConstructEvent(payload []byte, sigHeader string) (stripe.Event, error)
}

type stripeGateway struct {
	webhookSecret string
}

// NewStripeGateway sets the global Stripe key and returns the gateway.
// The client is stateless; one instance is constructed at startup and
// passed by dependency injection.
func NewStripeGateway(cfg *config.Config) BillingGateway {
	stripe.Key = cfg.StripeSecretKey
	return &stripeGateway{webhookSecret: cfg.StripeWebhookSecret}
}

func (g *stripeGateway) CreateCustomer(ctx context.Context, email, name, userID string) (*stripe.Customer, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
	}
	if name != "" {
		params.Name = stripe.String(name)
	}
	params.Context = ctx
	params.AddMetadata("user_id", userID)
	return customerpkg.New(params)
}

func (g *stripeGateway) CreateSubscription(ctx context.Context, customerID, priceID string) (*stripe.Subscription, error) {
	// default_incomplete leaves the subscription inactive until the first
	// invoice is paid; the caller completes payment on the frontend using
	// the expanded invoice's payment intent client secret.
	params := &stripe.SubscriptionParams{
		Customer: stripe.String(customerID),
		Items: []*stripe.SubscriptionItemsParams{
			{Price: stripe.String(priceID)},
		},
		PaymentBehavior: stripe.String("default_incomplete"),
		PaymentSettings: &stripe.SubscriptionPaymentSettingsParams{
			SaveDefaultPaymentMethod: stripe.String("on_subscription"),
		},
	}
	params.Context = ctx
	params.AddExpand("latest_invoice.payment_intent")
	return subscriptionpkg.New(params)
}

func (g *stripeGateway) CancelAtPeriodEnd(ctx context.Context, subscriptionID string) (*stripe.Subscription, error) {
	params := &stripe.SubscriptionParams{
		CancelAtPeriodEnd: stripe.Bool(true),
	}
	params.Context = ctx
	return subscriptionpkg.Update(subscriptionID, params)
}

func (g *stripeGateway) CreatePaymentIntent(ctx context.Context, amount int64, currency, customerID, userID string) (*stripe.PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amount),
		Currency: stripe.String(currency),
	}
	if customerID != "" {
		params.Customer = stripe.String(customerID)
	}
	params.Context = ctx
	params.AddMetadata("user_id", userID)
	return paymentintentpkg.New(params)
}

func (g *stripeGateway) ConstructEvent(payload []byte, sigHeader string) (stripe.Event, error) {
	return webhook.ConstructEvent(payload, sigHeader, g.webhookSecret)
}
