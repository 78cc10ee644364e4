package account

import (
	"encoding/json"
	"net/http"

	"github.com/mindflowhq/identity/pkg/logger"
)

// genericAuthError is the single message every security-sensitive failure
// renders as, so the HTTP surface leaks nothing about accounts or tokens.
const genericAuthError = "authentication failed"

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorResponse{Error: message})
}

func (m *Module) respondGenericAuthFailure(w http.ResponseWriter, r *http.Request, err error) {
	m.logger.Warn("authentication failure",
		logger.Error(err),
		logger.Component("account"),
	)
	respondError(w, http.StatusUnauthorized, genericAuthError)
}

func (m *Module) respondInternal(w http.ResponseWriter, r *http.Request, err error) {
	m.logger.Error("request failed",
		logger.Error(err),
		logger.Component("account"),
	)
	respondError(w, http.StatusInternalServerError, "internal error")
}

func decodeJSON(r *http.Request, dst any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
