package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/warp/leave-engine/generic"
	"go.uber.org/zap"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error generic.WireError `json:"error"`
}

// statusFor maps a taxonomy code to its HTTP status.
func statusFor(code string) int {
	switch code {
	case generic.CodeValidation:
		return http.StatusBadRequest
	case generic.CodeUnauthorized, generic.CodeNotLinked:
		return http.StatusForbidden
	case generic.CodeNotFound:
		return http.StatusNotFound
	case generic.CodeInvalidTransition:
		return http.StatusConflict
	case generic.CodeInsufficientBalance:
		return http.StatusUnprocessableEntity
	case generic.CodeTransport:
		return http.StatusBadGateway
	case generic.CodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError renders err in wire form. Internal errors are logged and
// replaced by a generic message.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	wire := generic.ToWire(err)
	status := statusFor(wire.Code)
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		wire = generic.WireError{Code: generic.CodeInternal, Message: "internal error"}
	}
	writeJSON(w, status, ErrorResponse{Error: wire})
}

// writeErrorBody renders a taxonomy error outside a Handler, for middleware.
func writeErrorBody(w http.ResponseWriter, err error) {
	wire := generic.ToWire(err)
	writeJSON(w, statusFor(wire.Code), ErrorResponse{Error: wire})
}

// validationError turns the first validator failure into a ValidationError
// named after the JSON field.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return generic.NewValidationError("", "invalid input")
	}
	e := verrs[0]
	switch e.Tag() {
	case "required":
		return generic.NewValidationError(e.Field(), "is required")
	case "datetime":
		return generic.NewValidationError(e.Field(), "must be a date (YYYY-MM-DD)")
	case "max":
		return generic.NewValidationError(e.Field(), "must be at most "+e.Param()+" characters")
	case "oneof":
		return generic.NewValidationError(e.Field(), "must be one of: "+strings.ReplaceAll(e.Param(), " ", ", "))
	default:
		return generic.NewValidationError(e.Field(), "is invalid")
	}
}

// decode reads a JSON body and validates it.
func (h *Handler) decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return generic.NewValidationError("", "invalid request body")
	}
	if err := h.validate.Struct(dst); err != nil {
		return validationError(err)
	}
	return nil
}
