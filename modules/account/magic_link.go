package account

import (
	"errors"
	"net/http"

	"github.com/mindflowhq/identity/pkg/auth"
	"github.com/mindflowhq/identity/pkg/clientip"
)

type magicLinkRequest struct {
	Email          string `json:"email"`
	TurnstileToken string `json:"turnstile_token,omitempty"`
}

// requestMagicLink accepts a sign-in request. The response is identical
// whether the email is registered, rate limited, or unknown.
func (m *Module) requestMagicLink(w http.ResponseWriter, r *http.Request) {
	var req magicLinkRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	origin := clientip.GetIP(r)

	if m.captcha != nil {
		if err := m.captcha.Verify(r.Context(), req.TurnstileToken, origin); err != nil {
			respondError(w, http.StatusForbidden, "challenge verification failed")
			return
		}
	}

	if err := m.magic.Request(r.Context(), req.Email, origin); err != nil {
		if errors.Is(err, auth.ErrInvalidEmail) {
			respondError(w, http.StatusBadRequest, "invalid email address")
			return
		}
		m.respondInternal(w, r, err)
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]string{
		"message": "if the address is registered, a sign-in link is on its way",
	})
}

// verifyMagicLink redeems the emailed token and signs the browser in.
func (m *Module) verifyMagicLink(w http.ResponseWriter, r *http.Request) {
	value := r.URL.Query().Get("token")
	if value == "" {
		m.respondGenericAuthFailure(w, r, auth.ErrTokenNotRedeemable)
		return
	}

	account, err := m.magic.Redeem(r.Context(), value)
	if err != nil {
		if errors.Is(err, auth.ErrTokenNotRedeemable) {
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
