package account

import (
	"net/http"

	"github.com/mindflowhq/identity/pkg/session"
)

// linkTokenKey is the session data key carrying a pending linking token
// between the link request and the provider callback.
const linkTokenKey = "link_token"

// requireAuth admits only authenticated sessions and places the session in
// the request context.
func (m *Module) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := m.sessions.Get(r.Context(), r)
		if err != nil || !sess.IsAuthenticated() {
			respondError(w, http.StatusUnauthorized, genericAuthError)
			return
		}
		next.ServeHTTP(w, r.WithContext(session.WithSession(r.Context(), sess)))
	})
}
