// Package webhook serves the payment gateway's webhook endpoint.
package webhook

import (
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kevin07696/subscription-service/internal/domain"
	"github.com/kevin07696/subscription-service/internal/handlers/respond"
	serviceports "github.com/kevin07696/subscription-service/internal/services/ports"
	webhooksvc "github.com/kevin07696/subscription-service/internal/services/webhook"
	"github.com/kevin07696/subscription-service/pkg/resilience"
	"github.com/kevin07696/subscription-service/pkg/timeutil"
)

const maxPayloadBytes = 256 << 10

// Handler receives gateway webhooks
type Handler struct {
	service  serviceports.WebhookService
	timeouts *resilience.TimeoutConfig
	logger   *zap.Logger
	now      func() time.Time
}

// NewHandler creates a new webhook handler
func NewHandler(service serviceports.WebhookService, timeouts *resilience.TimeoutConfig, logger *zap.Logger) *Handler {
	if timeouts == nil {
		timeouts = resilience.DefaultTimeoutConfig()
	}
	return &Handler{service: service, timeouts: timeouts, logger: logger, now: timeutil.Now}
}

// Routes registers POST /webhook on r
func (h *Handler) Routes(r chi.Router) {
	r.Post("/webhook", h.Receive)
}

// ReceiveResponse acknowledges a delivery
type ReceiveResponse struct {
	Received bool   `json:"received"`
	Status   string `json:"status"`
}

// Receive handles POST /webhook. Only a failure worth retrying answers 5xx;
// duplicates and unusable events are acknowledged.
func (h *Handler) Receive(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPayloadBytes))
	if err != nil {
		respond.Error(w, h.logger, r, domain.NewDomainError(domain.ErrorCodeInvalidRequest, "unreadable webhook body"))
		return
	}

	ctx, cancel := h.timeouts.ServiceContext(r.Context())
	defer cancel()

	result, err := h.service.HandleEvent(ctx, payload, r.Header.Get(webhooksvc.SignatureHeader), h.now())
	if err != nil {
		if domain.IsDomainError(err, domain.ErrorCodeInvalidSignature) {
			h.logger.Warn("Webhook signature verification failed",
				zap.String("remote_addr", r.RemoteAddr),
				zap.String("user_agent", r.UserAgent()),
			)
		}
		respond.Error(w, h.logger, r, err)
		return
	}

	h.logger.Info("Webhook handled",
		zap.String("event_id", result.EventID),
		zap.String("event_type", result.EventType),
		zap.String("outcome", string(result.Outcome)),
	)
	respond.JSON(w, h.logger, http.StatusOK, ReceiveResponse{Received: true, Status: string(result.Outcome)})
}
