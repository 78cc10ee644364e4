package account

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mindflowhq/identity/pkg/auth"
)

func (m *Module) provider(r *http.Request) (*auth.OAuthService, bool) {
	kind := auth.MethodKind(chi.URLParam(r, "provider"))
	svc, ok := m.providers[kind]
	return svc, ok
}

// beginOAuth redirects the browser to the provider's authorization page.
func (m *Module) beginOAuth(w http.ResponseWriter, r *http.Request) {
	svc, ok := m.provider(r)
	if !ok {
		respondError(w, http.StatusNotFound, "unknown provider")
		return
	}

	authURL, err := svc.BeginAuth(r.Context())
	if err != nil {
		m.respondInternal(w, r, err)
		return
	}

	http.Redirect(w, r, authURL, http.StatusFound)
}

// oauthCallback completes the provider round-trip. A pending linking token in
// the session turns the callback into a linking completion; the token's bound
// account, not the session's, decides where the method lands.
func (m *Module) oauthCallback(w http.ResponseWriter, r *http.Request) {
	svc, ok := m.provider(r)
	if !ok {
		respondError(w, http.StatusNotFound, "unknown provider")
		return
	}

	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")

	var linkToken string
	sess, sessErr := m.sessions.Get(r.Context(), r)
	if sessErr == nil {
		linkToken, _ = sess.GetString(linkTokenKey)
	}

	account, err := svc.HandleCallback(r.Context(), code, state, linkToken)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrSignInToLink):
			respondError(w, http.StatusConflict,
				"an account with this email already exists; sign in first, then link the provider from settings")
		case errors.Is(err, auth.ErrEmailClaimMissing):
			respondError(w, http.StatusBadRequest, "the provider did not supply a verified email address")
		case errors.Is(err, auth.ErrMethodAlreadyClaimed), errors.Is(err, auth.ErrMethodAlreadyPresent):
			respondError(w, http.StatusConflict, err.Error())
		case errors.Is(err, auth.ErrInvalidState),
			errors.Is(err, auth.ErrInvalidCode),
			errors.Is(err, auth.ErrLinkingTokenInvalid),
			errors.Is(err, auth.ErrInvalidProfile):
			m.respondGenericAuthFailure(w, r, err)
		default:
			m.respondInternal(w, r, err)
		}
		return
	}

	// The linking token is spent either way; drop it from the session.
	if sessErr == nil {
		if _, had := sess.GetString(linkTokenKey); had {
			sess.Delete(linkTokenKey)
			_ = m.sessions.Save(r.Context(), sess)
		}
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
