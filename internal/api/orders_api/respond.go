package orders_api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/BearBump/TrackDesk/internal/models"
)

const (
	codeBadRequest        = "BAD_REQUEST"
	codeValidation        = "VALIDATION_ERROR"
	codeInvalidTransition = "INVALID_TRANSITION"
	codeNotFound          = "NOT_FOUND"
	codeConflict          = "CONFLICT"
	codeUnauthorized      = "UNAUTHORIZED"
	codeRateLimited       = "RATE_LIMITED"
	codeInternal          = "INTERNAL_ERROR"
)

type envelope struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *errorBody `json:"error,omitempty"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Success: true, Data: data})
}

func writeFail(w http.ResponseWriter, status int, code, msg string, details any) {
	writeJSON(w, status, envelope{Error: &errorBody{Code: code, Message: msg, Details: details}})
}

// writeError переводит доменную ошибку в HTTP-ответ.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		ve *models.ValidationError
		te *models.InvalidTransitionError
	)
	switch {
	case errors.As(err, &ve):
		writeFail(w, http.StatusBadRequest, codeValidation, "Invalid request data", ve.Fields)
	case errors.As(err, &te):
		writeFail(w, http.StatusUnprocessableEntity, codeInvalidTransition, te.Error(),
			map[string]string{"from": string(te.From), "to": string(te.To)})
	case errors.Is(err, models.ErrNotFound):
		writeFail(w, http.StatusNotFound, codeNotFound, err.Error(), nil)
	case errors.Is(err, models.ErrConflict):
		writeFail(w, http.StatusConflict, codeConflict, err.Error(), nil)
	case errors.Is(err, models.ErrInvalidCredentials):
		writeFail(w, http.StatusUnauthorized, codeUnauthorized, err.Error(), nil)
	default:
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err.Error())
		writeFail(w, http.StatusInternalServerError, codeInternal, "Internal server error", nil)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeFail(w, http.StatusBadRequest, codeBadRequest, "Malformed JSON body", err.Error())
		return false
	}
	return true
}
