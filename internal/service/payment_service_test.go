package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"app/internal/model"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82"
)

// --- fakes ---

type fakeUserRepo struct {
	mu       sync.Mutex
	users    map[string]*model.User
	profiles []*model.Profile
}

func newFakeUserRepo(users ...*model.User) *fakeUserRepo {
	r := &fakeUserRepo{users: map[string]*model.User{}}
	for _, u := range users {
		r.users[u.ID] = u
	}
	return r
}

func (r *fakeUserRepo) CreateUser(ctx context.Context, u *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *u
	r.users[u.ID] = &copied
	return nil
}

func (r *fakeUserRepo) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	copied := *u
	return &copied, nil
}

func (r *fakeUserRepo) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *fakeUserRepo) UpdateAvatarURL(ctx context.Context, userID, avatarURL string) error {
	if u := r.users[userID]; u != nil {
		u.AvatarURL = avatarURL
	}
	return nil
}

func (r *fakeUserRepo) CreateProfile(ctx context.Context, p *model.Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.profiles = append(r.profiles, p)
	return nil
}

func (r *fakeUserRepo) UpdateProfile(ctx context.Context, p *model.Profile) error { return nil }
func (r *fakeUserRepo) GetProfileByUserID(ctx context.Context, userID string) (*model.Profile, error) {
	return &model.Profile{UserID: userID}, nil
}

type fakeSubscriptionRepo struct {
	mu   sync.Mutex
	rows []*model.Subscription
}

func (r *fakeSubscriptionRepo) Create(ctx context.Context, id, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = append(r.rows, &model.Subscription{
		ID:     id,
		UserID: userID,
		Status: model.SubscriptionStatusInactive,
	})
	return nil
}

func (r *fakeSubscriptionRepo) GetByUserID(ctx context.Context, userID string) (*model.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.rows {
		if s.UserID == userID {
			copied := *s
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *fakeSubscriptionRepo) SetCustomerIDByUserID(ctx context.Context, userID, customerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.rows {
		if s.UserID == userID {
			id := customerID
			s.StripeCustomerID = &id
		}
	}
	return nil
}

func (r *fakeSubscriptionRepo) ApplyStripeSubscriptionByUserID(ctx context.Context, userID, priceID, stripeSubscriptionID string, status model.SubscriptionStatus, periodStart, periodEnd time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.rows {
		if s.UserID == userID {
			price, sub := priceID, stripeSubscriptionID
			start, end := periodStart, periodEnd
			s.StripePriceID = &price
			s.StripeSubscriptionID = &sub
			s.Status = status
			s.CurrentPeriodStart = &start
			s.CurrentPeriodEnd = &end
		}
	}
	return nil
}

func (r *fakeSubscriptionRepo) SetCancelAtPeriodEndByUserID(ctx context.Context, userID string, cancel bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.rows {
		if s.UserID == userID {
			s.CancelAtPeriodEnd = cancel
		}
	}
	return nil
}

func (r *fakeSubscriptionRepo) UpdateStatusByStripeSubscriptionID(ctx context.Context, stripeSubscriptionID string, status model.SubscriptionStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.rows {
		if s.StripeSubscriptionID != nil && *s.StripeSubscriptionID == stripeSubscriptionID {
			s.Status = status
		}
	}
	return nil
}

func (r *fakeSubscriptionRepo) ApplyStripeUpdateByStripeSubscriptionID(ctx context.Context, stripeSubscriptionID string, status model.SubscriptionStatus, periodStart, periodEnd time.Time, cancelAtPeriodEnd bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.rows {
		if s.StripeSubscriptionID != nil && *s.StripeSubscriptionID == stripeSubscriptionID {
			start, end := periodStart, periodEnd
			s.Status = status
			s.CurrentPeriodStart = &start
			s.CurrentPeriodEnd = &end
			s.CancelAtPeriodEnd = cancelAtPeriodEnd
		}
	}
	return nil
}

type fakePaymentRepo struct {
	mu       sync.Mutex
	payments map[string]*model.Payment
}

func newFakePaymentRepo() *fakePaymentRepo {
	return &fakePaymentRepo{payments: map[string]*model.Payment{}}
}

func (r *fakePaymentRepo) Create(ctx context.Context, p *model.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payments[p.StripePaymentIntentID] = p
	return nil
}

func (r *fakePaymentRepo) GetByIntentID(ctx context.Context, intentID string) (*model.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.payments[intentID], nil
}

func (r *fakePaymentRepo) UpdateStatusByIntentID(ctx context.Context, intentID string, status model.PaymentStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.payments[intentID]; ok {
		p.Status = status
	}
	return nil
}

type fakeGateway struct {
	createCustomerCalls     int
	createSubscriptionCalls int
	cancelCalls             int
	createIntentCalls       int

	subscriptionStatus string
	periodStart        int64
	periodEnd          int64

	validSig string
	event    stripe.Event
}

func (g *fakeGateway) CreateCustomer(ctx context.Context, email, name, userID string) (*stripe.Customer, error) {
	g.createCustomerCalls++
	return &stripe.Customer{ID: "cus_test", Email: email, Name: name}, nil
}

func (g *fakeGateway) CreateSubscription(ctx context.Context, customerID, priceID string) (*stripe.Subscription, error) {
	g.createSubscriptionCalls++
	return &stripe.Subscription{
		ID:     "sub_ext_1",
		Status: stripe.SubscriptionStatus(g.subscriptionStatus),
		Items: &stripe.SubscriptionItemList{
			Data: []*stripe.SubscriptionItem{
				{CurrentPeriodStart: g.periodStart, CurrentPeriodEnd: g.periodEnd},
			},
		},
	}, nil
}

func (g *fakeGateway) CancelAtPeriodEnd(ctx context.Context, subscriptionID string) (*stripe.Subscription, error) {
	g.cancelCalls++
	return &stripe.Subscription{ID: subscriptionID, CancelAtPeriodEnd: true}, nil
}

func (g *fakeGateway) CreatePaymentIntent(ctx context.Context, amount int64, currency, customerID, userID string) (*stripe.PaymentIntent, error) {
	g.createIntentCalls++
	return &stripe.PaymentIntent{ID: "pi_1", ClientSecret: "pi_1_secret"}, nil
}

func (g *fakeGateway) ConstructEvent(payload []byte, sigHeader string) (stripe.Event, error) {
	if g.validSig != "" && sigHeader != g.validSig {
		return stripe.Event{}, errors.New("signature mismatch")
	}
	return g.event, nil
}

// --- helpers ---

func newTestPaymentService(t *testing.T, gw *fakeGateway) (*PaymentService, *fakeUserRepo, *fakeSubscriptionRepo, *fakePaymentRepo) {
	t.Helper()
	userRepo := newFakeUserRepo(&model.User{
		ID:        "user-1",
		Email:     "ada@example.com",
		FirstName: "Ada",
		LastName:  "Lovelace",
	})
	subRepo := &fakeSubscriptionRepo{}
	require.NoError(t, subRepo.Create(context.Background(), "local-sub-1", "user-1"))
	paymentRepo := newFakePaymentRepo()
	svc := NewPaymentService(gw, userRepo, subRepo, paymentRepo, zerolog.Nop())
	return svc, userRepo, subRepo, paymentRepo
}

func invoiceEvent(eventType, subscriptionID, intentID string) stripe.Event {
	raw, _ := json.Marshal(map[string]string{
		"id":             "in_1",
		"subscription":   subscriptionID,
		"payment_intent": intentID,
	})
	return stripe.Event{Type: stripe.EventType(eventType), Data: &stripe.EventData{Raw: raw}}
}

func subscriptionUpdatedEvent(subscriptionID, status string, start, end int64, cancel bool) stripe.Event {
	raw, _ := json.Marshal(map[string]any{
		"id":                   subscriptionID,
		"status":               status,
		"cancel_at_period_end": cancel,
		"current_period_start": start,
		"current_period_end":   end,
	})
	return stripe.Event{Type: "customer.subscription.updated", Data: &stripe.EventData{Raw: raw}}
}

// --- tests ---

func TestEnsureCustomerIsIdempotent(t *testing.T) {
	gw := &fakeGateway{}
	svc, _, _, _ := newTestPaymentService(t, gw)
	ctx := context.Background()

	id, err := svc.EnsureCustomer(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "cus_test", id)
	assert.Equal(t, 1, gw.createCustomerCalls)

	id, err = svc.EnsureCustomer(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "cus_test", id)
	assert.Equal(t, 1, gw.createCustomerCalls, "second call must not reach the gateway")
}

func TestEnsureCustomerUserNotFound(t *testing.T) {
	gw := &fakeGateway{}
	svc, _, _, _ := newTestPaymentService(t, gw)

	_, err := svc.EnsureCustomer(context.Background(), "user-404")
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.Zero(t, gw.createCustomerCalls)
}

func TestCreateSubscription(t *testing.T) {
	gw := &fakeGateway{subscriptionStatus: "active", periodStart: 1700000000, periodEnd: 1702592000}
	svc, _, _, _ := newTestPaymentService(t, gw)

	sub, stripeSub, err := svc.CreateSubscription(context.Background(), "user-1", "price_123")
	require.NoError(t, err)

	assert.Equal(t, 1, gw.createCustomerCalls, "customer is created lazily exactly once")
	assert.Equal(t, 1, gw.createSubscriptionCalls)

	require.NotNil(t, sub.StripePriceID)
	assert.Equal(t, "price_123", *sub.StripePriceID)
	require.NotNil(t, sub.StripeSubscriptionID)
	assert.Equal(t, "sub_ext_1", *sub.StripeSubscriptionID)
	assert.Equal(t, model.SubscriptionStatusActive, sub.Status)
	require.NotNil(t, sub.CurrentPeriodStart)
	assert.Equal(t, time.Unix(1700000000, 0), *sub.CurrentPeriodStart)
	require.NotNil(t, sub.CurrentPeriodEnd)
	assert.Equal(t, time.Unix(1702592000, 0), *sub.CurrentPeriodEnd)

	assert.Equal(t, "sub_ext_1", stripeSub.ID)
}

func TestCreateSubscriptionMapsIncompleteToInactive(t *testing.T) {
	gw := &fakeGateway{subscriptionStatus: "incomplete", periodStart: 1700000000, periodEnd: 1702592000}
	svc, _, _, _ := newTestPaymentService(t, gw)

	sub, _, err := svc.CreateSubscription(context.Background(), "user-1", "price_123")
	require.NoError(t, err)
	assert.Equal(t, model.SubscriptionStatusInactive, sub.Status)
}

func TestCancelSubscriptionWithoutStripeID(t *testing.T) {
	gw := &fakeGateway{}
	svc, _, _, _ := newTestPaymentService(t, gw)

	_, err := svc.CancelSubscription(context.Background(), "user-1")
	assert.ErrorIs(t, err, ErrSubscriptionNotFound)
	assert.Zero(t, gw.cancelCalls, "gateway must not be called without an external subscription")
}

func TestCancelSubscriptionSetsFlagOnly(t *testing.T) {
	gw := &fakeGateway{subscriptionStatus: "active", periodStart: 1700000000, periodEnd: 1702592000}
	svc, _, _, _ := newTestPaymentService(t, gw)
	ctx := context.Background()

	_, _, err := svc.CreateSubscription(ctx, "user-1", "price_123")
	require.NoError(t, err)

	sub, err := svc.CancelSubscription(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, gw.cancelCalls)
	assert.True(t, sub.CancelAtPeriodEnd)
	assert.Equal(t, model.SubscriptionStatusActive, sub.Status, "status changes only via webhook")
}

func TestGetSubscriptionNotFound(t *testing.T) {
	gw := &fakeGateway{}
	svc, _, _, _ := newTestPaymentService(t, gw)

	_, err := svc.GetSubscription(context.Background(), "user-404")
	assert.ErrorIs(t, err, ErrSubscriptionNotFound)
}

func TestCreatePaymentIntent(t *testing.T) {
	gw := &fakeGateway{}
	svc, _, _, paymentRepo := newTestPaymentService(t, gw)

	payment, clientSecret, err := svc.CreatePaymentIntent(context.Background(), "user-1", 2550, "")
	require.NoError(t, err)

	assert.Equal(t, "pi_1_secret", clientSecret)
	assert.Equal(t, int64(2550), payment.Amount)
	assert.Equal(t, "usd", payment.Currency)
	assert.Equal(t, model.PaymentStatusPending, payment.Status)
	assert.Equal(t, "Payment of 25.5 USD", payment.Description)
	assert.Equal(t, "user-1", payment.Metadata["user_id"])

	stored, err := paymentRepo.GetByIntentID(context.Background(), "pi_1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, model.PaymentStatusPending, stored.Status)
}

func TestCreatePaymentIntentWholeAmountDescription(t *testing.T) {
	gw := &fakeGateway{}
	svc, _, _, _ := newTestPaymentService(t, gw)

	payment, _, err := svc.CreatePaymentIntent(context.Background(), "user-1", 2500, "EUR")
	require.NoError(t, err)
	assert.Equal(t, "Payment of 25 EUR", payment.Description)
	assert.Equal(t, "eur", payment.Currency)
}

func TestHandleWebhookInvalidSignature(t *testing.T) {
	gw := &fakeGateway{
		validSig: "good",
		event:    invoiceEvent("invoice.payment_succeeded", "sub_ext_1", "pi_1"),
	}
	svc, _, subRepo, _ := newTestPaymentService(t, gw)

	err := svc.HandleWebhook(context.Background(), []byte("{}"), "bad")
	assert.ErrorIs(t, err, ErrInvalidWebhookSignature)

	sub, err := subRepo.GetByUserID(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, model.SubscriptionStatusInactive, sub.Status, "no state mutation on bad signature")
}

func TestHandleWebhookPaymentSucceededIsIdempotent(t *testing.T) {
	gw := &fakeGateway{subscriptionStatus: "incomplete", periodStart: 1700000000, periodEnd: 1702592000}
	svc, _, subRepo, paymentRepo := newTestPaymentService(t, gw)
	ctx := context.Background()

	_, _, err := svc.CreateSubscription(ctx, "user-1", "price_123")
	require.NoError(t, err)
	_, _, err = svc.CreatePaymentIntent(ctx, "user-1", 2500, "usd")
	require.NoError(t, err)

	gw.event = invoiceEvent("invoice.payment_succeeded", "sub_ext_1", "pi_1")
	require.NoError(t, svc.HandleWebhook(ctx, []byte("{}"), ""))
	require.NoError(t, svc.HandleWebhook(ctx, []byte("{}"), ""), "redelivery must not fail")

	sub, err := subRepo.GetByUserID(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, model.SubscriptionStatusActive, sub.Status)

	payment, err := paymentRepo.GetByIntentID(ctx, "pi_1")
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusSucceeded, payment.Status)
}

func TestHandleWebhookPaymentFailed(t *testing.T) {
	gw := &fakeGateway{subscriptionStatus: "active", periodStart: 1700000000, periodEnd: 1702592000}
	svc, _, subRepo, paymentRepo := newTestPaymentService(t, gw)
	ctx := context.Background()

	_, _, err := svc.CreateSubscription(ctx, "user-1", "price_123")
	require.NoError(t, err)
	_, _, err = svc.CreatePaymentIntent(ctx, "user-1", 2500, "usd")
	require.NoError(t, err)

	gw.event = invoiceEvent("invoice.payment_failed", "sub_ext_1", "pi_1")
	require.NoError(t, svc.HandleWebhook(ctx, []byte("{}"), ""))

	sub, err := subRepo.GetByUserID(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, model.SubscriptionStatusPastDue, sub.Status)

	payment, err := paymentRepo.GetByIntentID(ctx, "pi_1")
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusFailed, payment.Status)
}

func TestHandleWebhookUnhandledEventIsAccepted(t *testing.T) {
	gw := &fakeGateway{event: stripe.Event{Type: "customer.created", Data: &stripe.EventData{Raw: []byte(`{}`)}}}
	svc, _, _, _ := newTestPaymentService(t, gw)

	assert.NoError(t, svc.HandleWebhook(context.Background(), []byte("{}"), ""))
}

func TestSubscriptionLifecycle(t *testing.T) {
	gw := &fakeGateway{subscriptionStatus: "active", periodStart: 1700000000, periodEnd: 1702592000}
	svc, _, subRepo, _ := newTestPaymentService(t, gw)
	ctx := context.Background()

	sub, _, err := svc.CreateSubscription(ctx, "user-1", "p1")
	require.NoError(t, err)
	assert.Equal(t, model.SubscriptionStatusActive, sub.Status)
	assert.Equal(t, time.Unix(1700000000, 0), *sub.CurrentPeriodStart)
	assert.Equal(t, time.Unix(1702592000, 0), *sub.CurrentPeriodEnd)

	gw.event = subscriptionUpdatedEvent("sub_ext_1", "past_due", 1700000000, 1702592000, false)
	require.NoError(t, svc.HandleWebhook(ctx, []byte("{}"), ""))

	sub, err = subRepo.GetByUserID(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, model.SubscriptionStatusPastDue, sub.Status)
}

func TestHandleWebhookSubscriptionUpdatedOverwritesAllFields(t *testing.T) {
	gw := &fakeGateway{subscriptionStatus: "active", periodStart: 1700000000, periodEnd: 1702592000}
	svc, _, subRepo, _ := newTestPaymentService(t, gw)
	ctx := context.Background()

	_, _, err := svc.CreateSubscription(ctx, "user-1", "p1")
	require.NoError(t, err)

	gw.event = subscriptionUpdatedEvent("sub_ext_1", "canceled", 1702592000, 1705184000, true)
	require.NoError(t, svc.HandleWebhook(ctx, []byte("{}"), ""))

	sub, err := subRepo.GetByUserID(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, model.SubscriptionStatusCanceled, sub.Status)
	assert.True(t, sub.CancelAtPeriodEnd)
	assert.Equal(t, time.Unix(1702592000, 0), *sub.CurrentPeriodStart)
	assert.Equal(t, time.Unix(1705184000, 0), *sub.CurrentPeriodEnd)
}
