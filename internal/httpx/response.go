// Package httpx holds the JSON response, error mapping and logging helpers
// shared by the user API and the admin API.
package httpx

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/digkill/visionhub/internal/apperror"
	"github.com/digkill/visionhub/internal/provider"
	"github.com/digkill/visionhub/internal/service"
)

// ErrorResponse is the body of every failed request. Action points the
// client at a page that resolves the error, such as /plans for missing credits.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
	Action  string `json:"action,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// WriteError maps service errors to HTTP statuses. Unknown errors are logged
// and answered with a generic 500.
func WriteError(w http.ResponseWriter, log *slog.Logger, err error) {
	status, body := Classify(err)
	if status >= http.StatusInternalServerError && log != nil {
		log.Error("request failed", "status", status, "err", err)
	}
	WriteJSON(w, status, body)
}

func Classify(err error) (int, ErrorResponse) {
	switch {
	case errors.Is(err, service.ErrInsufficientCredits):
		return http.StatusPaymentRequired, ErrorResponse{
			Error:   "insufficient_credits",
			Message: "not enough credits for this generation",
			Action:  "/plans",
		}
	case errors.Is(err, service.ErrGenerationDisabled):
		return http.StatusServiceUnavailable, ErrorResponse{Error: "unavailable", Message: err.Error()}
	case errors.Is(err, service.ErrUsernameTaken),
		errors.Is(err, service.ErrUsernameAlreadySet),
		errors.Is(err, service.ErrPaymentAlreadyApproved),
		errors.Is(err, service.ErrPromoAlreadyRedeemed),
		errors.Is(err, service.ErrPromoExhausted):
		return http.StatusConflict, ErrorResponse{Error: "conflict", Message: err.Error()}
	case errors.Is(err, service.ErrPromoInvalid):
		return http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: err.Error(), Field: "code"}
	}

	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		resp := ErrorResponse{Message: appErr.Message, Field: appErr.Field}
		switch {
		case errors.Is(err, apperror.ErrValidation):
			resp.Error = "validation_error"
			return http.StatusBadRequest, resp
		case errors.Is(err, apperror.ErrNotFound):
			resp.Error = "not_found"
			return http.StatusNotFound, resp
		case errors.Is(err, apperror.ErrForbidden):
			resp.Error = "forbidden"
			return http.StatusForbidden, resp
		case errors.Is(err, apperror.ErrConflict):
			resp.Error = "conflict"
			return http.StatusConflict, resp
		case errors.Is(err, apperror.ErrRateLimited):
			resp.Error = "rate_limited"
			return http.StatusTooManyRequests, resp
		case errors.Is(err, apperror.ErrUnavailable):
			resp.Error = "unavailable"
			return http.StatusServiceUnavailable, resp
		}
	}

	var statusErr *provider.StatusError
	if errors.As(err, &statusErr) || errors.Is(err, provider.ErrNoMedia) {
		return http.StatusBadGateway, ErrorResponse{Error: "generation_failed", Message: "the generation provider failed, try again"}
	}

	return http.StatusInternalServerError, ErrorResponse{Error: "internal_error", Message: "An internal error occurred"}
}

// Reference images arrive base64 encoded inside the JSON body.
const MaxBodyBytes = 16 << 20

// DecodeJSON reads a bounded JSON body into v.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperror.ValidationFailed("body", "invalid json")
	}
	return nil
}
