package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapStripeStatus(t *testing.T) {
	cases := []struct {
		stripeStatus string
		want         SubscriptionStatus
	}{
		{"active", SubscriptionStatusActive},
		{"incomplete", SubscriptionStatusInactive},
		{"incomplete_expired", SubscriptionStatusInactive},
		{"past_due", SubscriptionStatusPastDue},
		{"canceled", SubscriptionStatusCanceled},
		{"unpaid", SubscriptionStatusUnpaid},
		{"trialing", SubscriptionStatusInactive},
		{"anything_else", SubscriptionStatusInactive},
		{"", SubscriptionStatusInactive},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, MapStripeStatus(tc.stripeStatus), "status %q", tc.stripeStatus)
	}
}
