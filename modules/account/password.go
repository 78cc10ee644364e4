package account

import (
	"errors"
	"net/http"

	"github.com/mindflowhq/identity/pkg/auth"
	"github.com/mindflowhq/identity/pkg/validator"
)

type passwordSignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// passwordSignIn verifies an email/password pair. All credential failures
// render the same generic message.
func (m *Module) passwordSignIn(w http.ResponseWriter, r *http.Request) {
	var req passwordSignInRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	account, err := m.password.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			m.respondGenericAuthFailure(w, r, err)
			return
		}
		m.respondInternal(w, r, err)
		return
	}

	if _, err := m.sessions.Authenticate(r.Context(), w, r, account.ID); err != nil {
		m.respondInternal(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"account_id": account.ID.String(),
		"email":      account.Email,
	})
}

type attachPasswordRequest struct {
	Password string `json:"password"`
}

// attachPassword completes the password linking flow started from settings.
// The linking token travels in the caller's session, never in the request
// body.
func (m *Module) attachPassword(w http.ResponseWriter, r *http.Request) {
	var req attachPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sess, err := m.sessions.Get(r.Context(), r)
	if err != nil {
		m.respondGenericAuthFailure(w, r, err)
		return
	}
	linkToken, ok := sess.GetString(linkTokenKey)
	if !ok || linkToken == "" {
		m.respondGenericAuthFailure(w, r, auth.ErrLinkingTokenInvalid)
		return
	}

	account, err := m.password.Attach(r.Context(), linkToken, req.Password)
	if err != nil {
		var verr validator.ValidationErrors
		switch {
		case errors.As(err, &verr):
			respondError(w, http.StatusBadRequest, verr.Error())
		case errors.Is(err, auth.ErrLinkingTokenInvalid):
			m.respondGenericAuthFailure(w, r, err)
		case errors.Is(err, auth.ErrMethodAlreadyPresent):
			respondError(w, http.StatusConflict, err.Error())
		default:
			m.respondInternal(w, r, err)
		}
		return
	}

	sess.Delete(linkTokenKey)
	_ = m.sessions.Save(r.Context(), sess)

	if _, err := m.sessions.Authenticate(r.Context(), w, r, account.ID); err != nil {
		m.respondInternal(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"account_id": account.ID.String(),
	})
}
