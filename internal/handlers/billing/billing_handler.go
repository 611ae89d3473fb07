// Package billing serves the app-facing billing routes.
package billing

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kevin07696/subscription-service/internal/domain"
	"github.com/kevin07696/subscription-service/internal/handlers/respond"
	"github.com/kevin07696/subscription-service/internal/middleware"
	serviceports "github.com/kevin07696/subscription-service/internal/services/ports"
	"github.com/kevin07696/subscription-service/pkg/resilience"
	"github.com/kevin07696/subscription-service/pkg/timeutil"
)

const maxBodyBytes = 64 << 10

// Handler serves checkout, access and cancellation requests
type Handler struct {
	checkout     serviceports.CheckoutService
	access       serviceports.AccessService
	cancellation serviceports.CancellationService
	timeouts     *resilience.TimeoutConfig
	logger       *zap.Logger
	now          func() time.Time
}

// NewHandler creates a new billing handler
func NewHandler(
	checkout serviceports.CheckoutService,
	access serviceports.AccessService,
	cancellation serviceports.CancellationService,
	timeouts *resilience.TimeoutConfig,
	logger *zap.Logger,
) *Handler {
	if timeouts == nil {
		timeouts = resilience.DefaultTimeoutConfig()
	}
	return &Handler{
		checkout:     checkout,
		access:       access,
		cancellation: cancellation,
		timeouts:     timeouts,
		logger:       logger,
		now:          timeutil.Now,
	}
}

// Routes registers the billing routes on r
func (h *Handler) Routes(r chi.Router) {
	r.Post("/create-payment-intent", h.CreatePaymentIntent)
	r.Post("/confirm-payment", h.ConfirmPayment)
	r.Get("/access", h.Access)
	r.Get("/subscription", h.Subscription)
	r.Post("/cancel-subscription", h.CancelSubscription)
}

// CreatePaymentIntentRequest is the body of POST /create-payment-intent
type CreatePaymentIntentRequest struct {
	Amount        int64  `json:"amount"`
	IsTrialPeriod bool   `json:"isTrialPeriod"`
	UserID        string `json:"userId"`
	Email         string `json:"email"`
	Interval      string `json:"interval"`
}

// CreatePaymentIntentResponse carries what the payment sheet needs
type CreatePaymentIntentResponse struct {
	ClientSecret    string `json:"clientSecret"`
	PaymentIntentID string `json:"paymentIntentId"`
}

// CreatePaymentIntent handles POST /create-payment-intent
func (h *Handler) CreatePaymentIntent(w http.ResponseWriter, r *http.Request) {
	var req CreatePaymentIntentRequest
	if !h.decode(w, r, &req) {
		return
	}
	userID, err := middleware.ResolveUser(r.Context(), req.UserID)
	if err != nil {
		respond.Error(w, h.logger, r, err)
		return
	}

	ctx, cancel := h.timeouts.ServiceContext(r.Context())
	defer cancel()

	session, err := h.checkout.Begin(ctx, serviceports.BeginCheckoutRequest{
		UserID:   userID,
		Email:    req.Email,
		Interval: req.Interval,
		Amount:   req.Amount,
		IsTrial:  req.IsTrialPeriod,
	}, h.now())
	if err != nil {
		respond.Error(w, h.logger, r, err)
		return
	}

	respond.JSON(w, h.logger, http.StatusOK, CreatePaymentIntentResponse{
		ClientSecret:    session.ClientSecret,
		PaymentIntentID: session.PaymentID,
	})
}

// ConfirmPaymentRequest is the body of POST /confirm-payment
type ConfirmPaymentRequest struct {
	UserID          string `json:"userId"`
	PaymentIntentID string `json:"paymentIntentId"`
	Type            string `json:"type"`
	Outcome         string `json:"outcome"`
}

// ConfirmPaymentResponse reports the subscription after confirmation
type ConfirmPaymentResponse struct {
	Status       string                     `json:"status"`
	Subscription *domain.SubscriptionRecord `json:"subscription,omitempty"`
}

// ConfirmPayment handles POST /confirm-payment
func (h *Handler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	var req ConfirmPaymentRequest
	if !h.decode(w, r, &req) {
		return
	}
	userID, err := middleware.ResolveUser(r.Context(), req.UserID)
	if err != nil {
		respond.Error(w, h.logger, r, err)
		return
	}

	outcome := serviceports.PaymentOutcome(req.Outcome)
	if outcome == "" {
		outcome = serviceports.PaymentOutcomeSucceeded
	}
	var plan domain.PlanType
	if outcome == serviceports.PaymentOutcomeSucceeded {
		if plan, err = domain.ParsePlanType(req.Type); err != nil {
			respond.Error(w, h.logger, r, err)
			return
		}
	}

	ctx, cancel := h.timeouts.ServiceContext(r.Context())
	defer cancel()

	res, err := h.checkout.Confirm(ctx, serviceports.ConfirmPaymentRequest{
		UserID:    userID,
		PaymentID: req.PaymentIntentID,
		Plan:      plan,
		Outcome:   outcome,
	}, h.now())
	if err != nil {
		respond.Error(w, h.logger, r, err)
		return
	}

	resp := ConfirmPaymentResponse{Status: "active", Subscription: res.Subscription}
	if res.Dismissed {
		resp.Status = "dismissed"
	}
	respond.JSON(w, h.logger, http.StatusOK, resp)
}

// Access handles GET /access?userId=
func (h *Handler) Access(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.ResolveUser(r.Context(), r.URL.Query().Get("userId"))
	if err != nil {
		respond.Error(w, h.logger, r, err)
		return
	}

	ctx, cancel := h.timeouts.ServiceContext(r.Context())
	defer cancel()

	decision, err := h.access.Evaluate(ctx, userID, h.now())
	if err != nil {
		respond.Error(w, h.logger, r, err)
		return
	}
	respond.JSON(w, h.logger, http.StatusOK, decision)
}

// SubscriptionResponse is the full billing view of an account
type SubscriptionResponse struct {
	UserID   string                      `json:"userId"`
	Current  *domain.SubscriptionRecord  `json:"current"`
	History  []domain.SubscriptionRecord `json:"history"`
	Payments []domain.PaymentRecord      `json:"payments"`
}

// Subscription handles GET /subscription?userId=
func (h *Handler) Subscription(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.ResolveUser(r.Context(), r.URL.Query().Get("userId"))
	if err != nil {
		respond.Error(w, h.logger, r, err)
		return
	}
	if userID == "" {
		respond.Error(w, h.logger, r, domain.ErrInvalidRequest.WithDetail("field", "userId"))
		return
	}

	ctx, cancel := h.timeouts.ServiceContext(r.Context())
	defer cancel()

	acc, err := h.access.Account(ctx, userID)
	if err != nil {
		respond.Error(w, h.logger, r, err)
		return
	}
	respond.JSON(w, h.logger, http.StatusOK, SubscriptionResponse{
		UserID:   acc.UserID(),
		Current:  acc.Current(),
		History:  nonNil(acc.History()),
		Payments: nonNil(acc.Payments()),
	})
}

// CancelSubscriptionRequest is the body of POST /cancel-subscription
type CancelSubscriptionRequest struct {
	UserID string `json:"userId"`
}

// CancelSubscriptionResponse confirms until when access remains
type CancelSubscriptionResponse struct {
	Message string    `json:"message"`
	EndDate time.Time `json:"endDate"`
}

// CancelSubscription handles POST /cancel-subscription
func (h *Handler) CancelSubscription(w http.ResponseWriter, r *http.Request) {
	var req CancelSubscriptionRequest
	if !h.decode(w, r, &req) {
		return
	}
	userID, err := middleware.ResolveUser(r.Context(), req.UserID)
	if err != nil {
		respond.DetailedError(w, h.logger, r, err)
		return
	}

	ctx, cancel := h.timeouts.ServiceContext(r.Context())
	defer cancel()

	res, err := h.cancellation.Cancel(ctx, userID, h.now())
	if err != nil {
		respond.DetailedError(w, h.logger, r, err)
		return
	}

	msg := "Subscription cancelled"
	if res.AlreadyCancelled {
		msg = "Subscription already cancelled"
	}
	respond.JSON(w, h.logger, http.StatusOK, CancelSubscriptionResponse{
		Message: msg,
		EndDate: res.Subscription.EndDate,
	})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		respond.Error(w, h.logger, r, domain.NewDomainError(domain.ErrorCodeInvalidRequest, "malformed JSON body"))
		return false
	}
	return true
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
