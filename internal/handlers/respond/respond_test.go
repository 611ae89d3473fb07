package respond

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kevin07696/subscription-service/internal/domain"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.ErrInvalidRequest, http.StatusBadRequest},
		{domain.ErrInvalidPlanType, http.StatusBadRequest},
		{domain.ErrInvalidSignature, http.StatusBadRequest},
		{domain.ErrNoActiveSubscription, http.StatusBadRequest},
		{domain.ErrUnauthenticated, http.StatusUnauthorized},
		{domain.ErrForbidden, http.StatusForbidden},
		{domain.ErrSubscriptionNotFound, http.StatusNotFound},
		{domain.ErrGatewayUnavailable, http.StatusServiceUnavailable},
		{domain.ErrActivationFailed, http.StatusInternalServerError},
		{domain.ErrCancellationFailed, http.StatusInternalServerError},
		{domain.ErrDatabaseError, http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, StatusFor(tt.err))
		})
	}
}

func TestError_Bodies(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/x", nil)

	t.Run("client error keeps message and details", func(t *testing.T) {
		rec := httptest.NewRecorder()
		Error(rec, zap.NewNop(), req, domain.ErrInvalidRequest.WithDetail("field", "userId"))

		var body ErrorBody
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "invalid request", body.Message)
		assert.Equal(t, "userId", body.Details["field"])
	})

	t.Run("activation failure carries the payment id", func(t *testing.T) {
		rec := httptest.NewRecorder()
		err := domain.WrapError(domain.ErrorCodeActivationFailed, "payment succeeded but activation failed", errors.New("db down")).
			WithDetail("paymentId", "pi_123")
		Error(rec, zap.NewNop(), req, err)

		var body ErrorBody
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, domain.ErrorCodeActivationFailed, body.Code)
		assert.Equal(t, "pi_123", body.Details["paymentId"])
		assert.NotContains(t, rec.Body.String(), "db down")
	})

	t.Run("unknown error is hidden", func(t *testing.T) {
		rec := httptest.NewRecorder()
		Error(rec, zap.NewNop(), req, errors.New("pq: password authentication failed"))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "password")
	})

	t.Run("detailed shape", func(t *testing.T) {
		rec := httptest.NewRecorder()
		DetailedError(rec, zap.NewNop(), req, domain.ErrSubscriptionNotFound)

		var body DetailedErrorBody
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "subscription not found", body.Error)
		assert.Equal(t, string(domain.ErrorCodeSubscriptionNotFound), body.Details)
	})
}

func TestDetailedError_DetailsNeverNull(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/cancel-subscription", nil)

	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantDetails interface{}
	}{
		{
			name:        "no details falls back to code",
			err:         domain.ErrNoActiveSubscription,
			wantStatus:  http.StatusBadRequest,
			wantDetails: string(domain.ErrorCodeNoActiveSubscription),
		},
		{
			name: "cancellation failure keeps details",
			err: domain.WrapError(domain.ErrorCodeCancellationFailed, "subscription cancellation failed", errors.New("connection reset")).
				WithDetail("stage", "store"),
			wantStatus:  http.StatusInternalServerError,
			wantDetails: map[string]interface{}{"stage": "store"},
		},
		{
			name:        "server error without details falls back to code",
			err:         domain.WrapError(domain.ErrorCodeDatabaseError, "update current record", errors.New("connection reset")),
			wantStatus:  http.StatusInternalServerError,
			wantDetails: string(domain.ErrorCodeDatabaseError),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			DetailedError(rec, zap.NewNop(), req, tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.NotContains(t, rec.Body.String(), `"details":null`)
			assert.NotContains(t, rec.Body.String(), "connection reset")
			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantDetails, body["details"])
		})
	}
}
