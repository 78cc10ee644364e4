package account

import (
	"github.com/go-chi/chi/v5"
)

// Router builds the module's route tree, ready to mount at /account.
func (m *Module) Router() chi.Router {
	r := chi.NewRouter()

	r.Route("/auth", func(r chi.Router) {
		r.Post("/magic", m.requestMagicLink)
		r.Get("/magic/verify", m.verifyMagicLink)

		if m.password != nil {
			r.Post("/password", m.passwordSignIn)
			r.Post("/password/attach", m.attachPassword)
		}

		r.Get("/{provider}", m.beginOAuth)
		r.Get("/{provider}/callback", m.oauthCallback)
	})

	r.Route("/settings/methods", func(r chi.Router) {
		r.Use(m.requireAuth)
		r.Get("/", m.listMethods)
		r.Post("/link", m.beginLink)
		r.Post("/unlink", m.unlinkMethod)
	})

	return r
}
