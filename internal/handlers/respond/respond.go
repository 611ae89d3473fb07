// Package respond writes JSON responses and maps domain errors to HTTP
// statuses for every billing route.
package respond

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/kevin07696/subscription-service/internal/domain"
)

// ErrorBody is the JSON error shape for client routes
type ErrorBody struct {
	Message string                 `json:"message"`
	Code    domain.ErrorCode       `json:"code,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// DetailedErrorBody is the cancellation route's error shape
type DetailedErrorBody struct {
	Error   string      `json:"error"`
	Details interface{} `json:"details,omitempty"`
}

// JSON writes v with the given status
func JSON(w http.ResponseWriter, logger *zap.Logger, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to encode response", zap.Error(err))
	}
}

// StatusFor maps an error to its HTTP status
func StatusFor(err error) int {
	switch domain.GetErrorCode(err) {
	case domain.ErrorCodeInvalidRequest,
		domain.ErrorCodeInvalidPlanType,
		domain.ErrorCodeInvalidSignature,
		domain.ErrorCodeNoActiveSubscription:
		return http.StatusBadRequest
	case domain.ErrorCodeUnauthenticated:
		return http.StatusUnauthorized
	case domain.ErrorCodeForbidden:
		return http.StatusForbidden
	case domain.ErrorCodeSubscriptionNotFound:
		return http.StatusNotFound
	case domain.ErrorCodeGatewayUnavailable:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// Error writes err as {message, code, details}. Server errors are logged and
// their internals are not exposed.
func Error(w http.ResponseWriter, logger *zap.Logger, r *http.Request, err error) {
	status := StatusFor(err)
	JSON(w, logger, status, errorBody(logger, r, status, err))
}

// DetailedError writes err as {error, details}. details is never null: it
// falls back to the error code.
func DetailedError(w http.ResponseWriter, logger *zap.Logger, r *http.Request, err error) {
	status := StatusFor(err)
	body := errorBody(logger, r, status, err)
	out := DetailedErrorBody{Error: body.Message}
	switch {
	case len(body.Details) > 0:
		out.Details = body.Details
	case body.Code != "":
		out.Details = string(body.Code)
	}
	JSON(w, logger, status, out)
}

func errorBody(logger *zap.Logger, r *http.Request, status int, err error) ErrorBody {
	var de *domain.DomainError
	if !errors.As(err, &de) {
		logger.Error("Unhandled error",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		return ErrorBody{Message: "internal error", Code: domain.ErrorCodeInternalError}
	}

	body := ErrorBody{Message: de.Message, Code: de.Code}
	if len(de.Details) > 0 {
		body.Details = de.Details
	}
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		logger.Error("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("code", string(de.Code)),
			zap.Error(err),
		)
		switch de.Code {
		case domain.ErrorCodeActivationFailed, domain.ErrorCodeCancellationFailed:
		default:
			body.Details = nil
		}
	}
	return body
}
