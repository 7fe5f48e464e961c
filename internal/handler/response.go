package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"gomate-auth/internal/otp"
	"gomate-auth/internal/service"
	"gomate-auth/internal/util"
	"gomate-auth/internal/validator"
)

const maxBodyBytes = 1 << 20

// Response represents a standard API response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Message string      `json:"message,omitempty"`
	Fields  interface{} `json:"fields,omitempty"`
}

// successResponse creates a successful response
func successResponse(data interface{}, message string) Response {
	return Response{
		Success: true,
		Data:    data,
		Message: message,
	}
}

// respondWithJSON sends a JSON response
func respondWithJSON(w http.ResponseWriter, logger *zap.Logger, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("Failed to encode JSON response", util.ErrorField(err))
	}
}

// respondWithResult maps a ledger or verifier result onto the envelope. The
// message is always passed through untouched.
func respondWithResult(w http.ResponseWriter, logger *zap.Logger, res otp.Result, data interface{}) {
	if res.Success {
		respondWithJSON(w, logger, http.StatusOK, successResponse(data, res.Message))
		return
	}

	status := statusCode(res.Err)
	if status >= http.StatusInternalServerError {
		logger.Warn("HTTP error response",
			util.ErrorField(res.Err),
			util.Int("status_code", status),
			util.String("message", res.Message))
	}
	respondWithJSON(w, logger, status, Response{
		Error:   errorCode(res.Err),
		Message: res.Message,
	})
}

// respondWithError sends an error response for failures outside the services:
// bad JSON, failed validation, unexpected faults.
func respondWithError(w http.ResponseWriter, logger *zap.Logger, err error, message string) {
	var verr validator.ValidationError
	if errors.As(err, &verr) {
		respondWithJSON(w, logger, http.StatusBadRequest, Response{
			Error:   "validation_failed",
			Message: message,
			Fields:  verr,
		})
		return
	}

	status := statusCode(err)
	logger.Warn("HTTP error response",
		util.ErrorField(err),
		util.Int("status_code", status),
		util.String("message", message))
	respondWithJSON(w, logger, status, Response{
		Error:   errorCode(err),
		Message: message,
	})
}

// statusCode determines the appropriate HTTP status code for an error
func statusCode(err error) int {
	switch {
	case errors.Is(err, errBadRequest), errors.Is(err, otp.ErrInvalidRecipient):
		return http.StatusBadRequest
	case errors.Is(err, otp.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, otp.ErrExpired), errors.Is(err, otp.ErrAttemptsExhausted):
		return http.StatusGone
	case errors.Is(err, otp.ErrMismatch):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrTokenInvalid):
		return http.StatusBadRequest
	case errors.Is(err, otp.ErrDelivery):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// errorCode is the stable machine readable counterpart of statusCode.
func errorCode(err error) string {
	switch {
	case errors.Is(err, errBadRequest):
		return "bad_request"
	case errors.Is(err, otp.ErrInvalidRecipient):
		return "invalid_recipient"
	case errors.Is(err, otp.ErrNotFound):
		return "not_found"
	case errors.Is(err, otp.ErrExpired):
		return "expired"
	case errors.Is(err, otp.ErrAttemptsExhausted):
		return "attempts_exhausted"
	case errors.Is(err, otp.ErrMismatch):
		return "mismatch"
	case errors.Is(err, service.ErrTokenInvalid):
		return "invalid_token"
	case errors.Is(err, otp.ErrDelivery):
		return "delivery_failed"
	default:
		return "internal_error"
	}
}

var errBadRequest = errors.New("malformed request body")

// decodeAndValidate reads a JSON body into dst and runs the validator on it.
func decodeAndValidate(r *http.Request, w http.ResponseWriter, v *validator.Validator, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errors.Join(errBadRequest, err)
	}
	return v.Validate(dst)
}
