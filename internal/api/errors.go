package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/virtuaplant-core/internal/register"
)

// Error is the body of every non-2xx response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes.
const (
	ErrCodeBadRequest  = "bad_request"
	ErrCodeNotFound    = "not_found"
	ErrCodeForbidden   = "forbidden"
	ErrCodeInternal    = "internal_error"
	ErrCodeValidation  = "validation_error"
	ErrCodeUnavailable = "unavailable"
)

// registerErrors maps register sentinels onto responses, first match wins.
var registerErrors = []struct {
	err    error
	status int
	code   string
}{
	{register.ErrUnknownTag, http.StatusNotFound, ErrCodeNotFound},
	{register.ErrReadOnlyTag, http.StatusForbidden, ErrCodeForbidden},
	{register.ErrInvalidTagValue, http.StatusBadRequest, ErrCodeValidation},
	{register.ErrBankUnavailable, http.StatusServiceUnavailable, ErrCodeUnavailable},
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v) //nolint:errcheck // client may be gone
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{Status: status, Code: code, Message: message})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

func writeUnavailable(w http.ResponseWriter, message string) {
	writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, message)
}

// writeRegisterError answers a failed tag read or write.
func writeRegisterError(w http.ResponseWriter, err error) {
	for _, m := range registerErrors {
		if errors.Is(err, m.err) {
			writeError(w, m.status, m.code, err.Error())
			return
		}
	}
	writeInternalError(w, err.Error())
}
