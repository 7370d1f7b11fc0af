package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"toolrental/internal/apperror"
	"toolrental/internal/logger"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Code    string            `json:"code"`
	Details map[string]string `json:"details,omitempty"`
}

// WriteJSON encodes v as the response body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

// StatusFor maps an error to the HTTP status it is reported with.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, apperror.ErrInvalidRequest),
		errors.Is(err, apperror.ErrInvalidMovementType),
		errors.Is(err, apperror.ErrInvalidStatus),
		errors.Is(err, apperror.ErrMissingField):
		return http.StatusBadRequest
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperror.ErrNoUnitsAvailable),
		errors.Is(err, apperror.ErrDuplicateToolGroup),
		errors.Is(err, apperror.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, apperror.ErrCustomerIneligible),
		errors.Is(err, apperror.ErrLoanLimitExceeded):
		return http.StatusUnprocessableEntity
	case errors.Is(err, apperror.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, apperror.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// WriteError reports err to the client. Errors outside the taxonomy are
// logged and answered with a generic message.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	resp := ErrorResponse{Error: err.Error(), Code: apperror.Code(err)}

	var verr *ValidationError
	if errors.As(err, &verr) {
		resp.Details = verr.Fields
	}

	if status == http.StatusInternalServerError {
		logger.Ctx(r.Context()).Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		resp.Error = "internal server error"
	}

	WriteJSON(w, status, resp)
}

// DecodeJSON decodes the request body into v and validates it.
func DecodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: malformed JSON body: %v", apperror.ErrInvalidRequest, err)
	}
	return Validate(v)
}

// PathID parses the chi URL parameter name as a positive int64.
func PathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid %s %q", apperror.ErrInvalidRequest, name, raw)
	}
	return id, nil
}
