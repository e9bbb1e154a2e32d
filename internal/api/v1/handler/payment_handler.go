package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"app/internal/api/v1/dto"
	"app/internal/middleware"
	"app/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

const webhookBodyLimit = 1 << 20 // 1MiB

// PaymentHandler exposes the billing endpoints. Everything except the
// webhook requires an authenticated user; the webhook authenticates by
// signature verification instead.
type PaymentHandler struct {
	paymentSvc *service.PaymentService
	validate   *validator.Validate
	logger     zerolog.Logger
}

func NewPaymentHandler(paymentSvc *service.PaymentService, validate *validator.Validate, logger zerolog.Logger) *PaymentHandler {
	return &PaymentHandler{paymentSvc: paymentSvc, validate: validate, logger: logger}
}

func (h *PaymentHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware func(http.Handler) http.Handler) {
	mux.Handle("POST /payments/create-subscription", authMiddleware(http.HandlerFunc(h.CreateSubscription)))
	mux.Handle("POST /payments/cancel-subscription", authMiddleware(http.HandlerFunc(h.CancelSubscription)))
	mux.Handle("GET /payments/subscription", authMiddleware(http.HandlerFunc(h.GetSubscription)))
	mux.Handle("POST /payments/create-payment-intent", authMiddleware(http.HandlerFunc(h.CreatePaymentIntent)))
	mux.HandleFunc("POST /payments/webhook", h.Webhook)
}

func (h *PaymentHandler) CreateSubscription(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())
	if userID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	var req dto.CreateSubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request payload", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	sub, stripeSub, err := h.paymentSvc.CreateSubscription(r.Context(), userID, req.PriceID)
	if err != nil {
		h.writePaymentError(w, err, "failed to create subscription")
		return
	}
	writeJSON(w, http.StatusCreated, dto.CreateSubscriptionResponse{
		Subscription:       sub,
		StripeSubscription: stripeSub,
	}, h.logger)
}

func (h *PaymentHandler) CancelSubscription(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())
	if userID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	sub, err := h.paymentSvc.CancelSubscription(r.Context(), userID)
	if err != nil {
		h.writePaymentError(w, err, "failed to cancel subscription")
		return
	}
	writeJSON(w, http.StatusOK, sub, h.logger)
}

func (h *PaymentHandler) GetSubscription(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())
	if userID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	sub, err := h.paymentSvc.GetSubscription(r.Context(), userID)
	if err != nil {
		h.writePaymentError(w, err, "failed to fetch subscription")
		return
	}
	writeJSON(w, http.StatusOK, sub, h.logger)
}

func (h *PaymentHandler) CreatePaymentIntent(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())
	if userID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	var req dto.CreatePaymentIntentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request payload", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	payment, clientSecret, err := h.paymentSvc.CreatePaymentIntent(r.Context(), userID, req.Amount, req.Currency)
	if err != nil {
		h.writePaymentError(w, err, "failed to create payment intent")
		return
	}
	writeJSON(w, http.StatusCreated, dto.CreatePaymentIntentResponse{
		Payment:      payment,
		ClientSecret: clientSecret,
	}, h.logger)
}

// Webhook receives provider events. The raw body must be passed to
// signature verification unmodified.
func (h *PaymentHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, webhookBodyLimit))
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to read webhook payload")
		http.Error(w, "failed to read payload", http.StatusBadRequest)
		return
	}
	sig := r.Header.Get("Stripe-Signature")
	if err := h.paymentSvc.HandleWebhook(r.Context(), payload, sig); err != nil {
		if errors.Is(err, service.ErrInvalidWebhookSignature) {
			http.Error(w, "Invalid webhook signature", http.StatusBadRequest)
			return
		}
		h.logger.Error().Err(err).Msg("failed to process webhook")
		http.Error(w, "failed to process webhook", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, dto.WebhookAck{Received: true}, h.logger)
}

func (h *PaymentHandler) writePaymentError(w http.ResponseWriter, err error, msg string) {
	switch {
	case errors.Is(err, service.ErrUserNotFound):
		http.Error(w, "user not found", http.StatusNotFound)
	case errors.Is(err, service.ErrSubscriptionNotFound):
		http.Error(w, "subscription not found", http.StatusNotFound)
	default:
		h.logger.Error().Err(err).Msg(msg)
		http.Error(w, msg, http.StatusInternalServerError)
	}
}
