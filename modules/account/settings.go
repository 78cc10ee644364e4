package account

import (
	"errors"
	"net/http"
	"time"

	"github.com/mindflowhq/identity/pkg/auth"
	"github.com/mindflowhq/identity/pkg/session"
)

type methodView struct {
	Kind       string     `json:"kind"`
	IsActive   bool       `json:"is_active"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
}

// listMethods returns the account's linked methods for the settings view.
// Provider subjects stay server-side.
func (m *Module) listMethods(w http.ResponseWriter, r *http.Request) {
	sess, _ := session.FromContext(r.Context())

	methods, err := m.registry.ListMethods(r.Context(), *sess.AccountID)
	if err != nil {
		m.respondInternal(w, r, err)
		return
	}

	views := make([]methodView, 0, len(methods))
	for _, method := range methods {
		views = append(views, methodView{
			Kind:       string(method.Kind),
			IsActive:   method.IsActive,
			CreatedAt:  method.CreatedAt,
			LastUsedAt: method.LastUsedAt,
		})
	}
	respondJSON(w, http.StatusOK, map[string]any{"methods": views})
}

type linkRequest struct {
	Kind string `json:"kind"`
}

// beginLink starts linking a new method to the authenticated account. The
// issued token is stashed in the session; external providers continue at the
// /auth/{provider} redirect, the password method at /auth/password/attach.
func (m *Module) beginLink(w http.ResponseWriter, r *http.Request) {
	var req linkRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	kind := auth.MethodKind(req.Kind)
	if !kind.Valid() || kind == auth.MethodMagicLink {
		respondError(w, http.StatusBadRequest, "unsupported method kind")
		return
	}

	sess, _ := session.FromContext(r.Context())

	value, err := m.linking.Begin(r.Context(), *sess.AccountID, kind)
	if err != nil {
		if errors.Is(err, auth.ErrMethodAlreadyPresent) {
			respondError(w, http.StatusConflict, err.Error())
			return
		}
		m.respondInternal(w, r, err)
		return
	}

	sess.Set(linkTokenKey, value)
	if err := m.sessions.Save(r.Context(), sess); err != nil {
		m.respondInternal(w, r, err)
		return
	}

	resp := map[string]string{}
	if kind.IsExternal() {
		resp["next"] = "/account/auth/" + string(kind)
	} else {
		resp["next"] = "/account/auth/password/attach"
	}
	respondJSON(w, http.StatusOK, resp)
}

type unlinkRequest struct {
	Kind string `json:"kind"`
}

// unlinkMethod detaches a method from the authenticated account. The
// last-method guard is surfaced specifically: the owner is entitled to know
// why the detach was refused.
func (m *Module) unlinkMethod(w http.ResponseWriter, r *http.Request) {
	var req unlinkRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	kind := auth.MethodKind(req.Kind)
	if !kind.Valid() {
		respondError(w, http.StatusBadRequest, "unsupported method kind")
		return
	}

	sess, _ := session.FromContext(r.Context())
	accountID := *sess.AccountID

	if err := m.registry.DetachMethod(r.Context(), accountID, kind); err != nil {
		switch {
		case errors.Is(err, auth.ErrLastMethod):
			respondError(w, http.StatusConflict, err.Error())
		case errors.Is(err, auth.ErrMethodNotFound):
			respondError(w, http.StatusNotFound, err.Error())
		default:
			m.respondInternal(w, r, err)
		}
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"account_id": accountID.String(),
		"kind":       string(kind),
		"status":     "unlinked",
	})
}
