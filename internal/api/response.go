package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"salonbook/internal/domain"
)

// Error codes produced by the HTTP layer itself.
const (
	codeUnauthenticated = "UNAUTHENTICATED"
	codeRateLimited     = "RATE_LIMITED"
)

type envelope struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *errorBody `json:"error,omitempty"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeOK(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, statusCode int, code, message string) {
	writeJSON(w, statusCode, envelope{Error: &errorBody{Code: code, Message: message}})
}

// writeDomainError maps a service error onto the HTTP status of its code.
func writeDomainError(w http.ResponseWriter, err error) {
	code := domain.Code(err)
	message := err.Error()
	if code == domain.CodeInternal {
		message = "internal error"
	}
	writeError(w, httpStatus(code), code, message)
}

func httpStatus(code string) int {
	switch code {
	case domain.CodeSlotConflict:
		return http.StatusConflict
	case domain.CodeInvalidArgument:
		return http.StatusBadRequest
	case domain.CodePermissionDenied:
		return http.StatusForbidden
	case domain.CodeTransientStorage:
		return http.StatusServiceUnavailable
	case domain.CodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

const maxBodyBytes = 1 << 20

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) {
			return domain.Invalid("malformed JSON at offset %d", syntaxErr.Offset)
		}
		return domain.Invalid("invalid JSON body: %s", err.Error())
	}
	return nil
}

func permissionDenied(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrPermissionDenied, fmt.Sprintf(format, args...))
}
