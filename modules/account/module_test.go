package account_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/mindflowhq/identity/modules/account"
	"github.com/mindflowhq/identity/pkg/auth"
	"github.com/mindflowhq/identity/pkg/session"
	"github.com/mindflowhq/identity/store/memory"
)

// captureSender records the last magic link instead of emailing it.
type captureSender struct {
	link string
}

func (c *captureSender) SendMagicLink(_ context.Context, _, link string, _ time.Time) error {
	c.link = link
	return nil
}

// stubAdapter speaks the provider adapter contract with canned responses.
type stubAdapter struct {
	kind    auth.MethodKind
	profile auth.ProviderProfile
}

func (a *stubAdapter) Kind() auth.MethodKind { return a.kind }

func (a *stubAdapter) AuthURL(state string) (string, error) {
	return "https://provider.example.com/authorize?state=" + url.QueryEscape(state), nil
}

func (a *stubAdapter) ResolveProfile(_ context.Context, code string) (auth.ProviderProfile, error) {
	if code == "" {
		return auth.ProviderProfile{}, auth.ErrInvalidCode
	}
	return a.profile, nil
}

type fixture struct {
	storage  *memory.Storage
	registry *auth.Registry
	tokens   *auth.TokenStore
	sender   *captureSender
	adapter  *stubAdapter
	router   chi.Router
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	storage := memory.New()
	registry := auth.NewRegistry(storage)
	tokens := auth.NewTokenStore(storage)
	sender := &captureSender{}
	magic := auth.NewMagicLinkService(registry, tokens, sender, "https://app.example.com")
	linking := auth.NewLinkingService(registry, tokens)
	assoc := auth.NewAssociationService(registry, tokens)
	adapter := &stubAdapter{kind: auth.MethodGoogle}
	googleOAuth := auth.NewOAuthService(storage, adapter, assoc)
	password := auth.NewPasswordService(registry, tokens, auth.WithBcryptCost(bcrypt.MinCost))

	cfg := session.DefaultConfig()
	cfg.SecureCookies = false
	sessions := session.New(session.WithStore(session.NewMemoryStore(0)), session.WithConfig(cfg))

	mod := account.New(registry, magic, linking, sessions,
		account.WithPassword(password),
		account.WithProvider(googleOAuth),
	)

	router := chi.NewRouter()
	router.Mount("/account", mod.Router())

	return &fixture{
		storage:  storage,
		registry: registry,
		tokens:   tokens,
		sender:   sender,
		adapter:  adapter,
		router:   router,
	}
}

func (f *fixture) do(t *testing.T, method, target string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	r := httptest.NewRequest(method, target, reader)
	r.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		r.AddCookie(c)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, r)
	return w
}

func sidCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == "sid" && c.MaxAge >= 0 {
			return c
		}
	}
	t.Fatal("session cookie not set")
	return nil
}

// signInViaMagicLink provisions an account and returns its session cookie.
func (f *fixture) signInViaMagicLink(t *testing.T, email string) *http.Cookie {
	t.Helper()

	_, err := f.registry.CreateAccount(context.Background(), email)
	require.NoError(t, err)

	w := f.do(t, http.MethodPost, "/account/auth/magic", map[string]string{"email": email})
	require.Equal(t, http.StatusAccepted, w.Code)
	require.NotEmpty(t, f.sender.link)

	u, err := url.Parse(f.sender.link)
	require.NoError(t, err)
	w = f.do(t, http.MethodGet, "/account/auth/magic/verify?token="+url.QueryEscape(u.Query().Get("token")), nil)
	require.Equal(t, http.StatusOK, w.Code)
	return sidCookie(t, w)
}

func TestMagicLinkEndpoints(t *testing.T) {
	t.Parallel()

	t.Run("request and verify", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		cookie := f.signInViaMagicLink(t, "user@example.com")
		assert.NotEmpty(t, cookie.Value)
	})

	t.Run("unknown email gets the same accepted response", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		w := f.do(t, http.MethodPost, "/account/auth/magic", map[string]string{"email": "ghost@example.com"})
		assert.Equal(t, http.StatusAccepted, w.Code)
		assert.Empty(t, f.sender.link)
	})

	t.Run("garbage token is a generic failure", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		w := f.do(t, http.MethodGet, "/account/auth/magic/verify?token=garbage", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "authentication failed")
	})
}

func TestOAuthEndpoints(t *testing.T) {
	t.Parallel()

	t.Run("begin redirects to the provider", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		w := f.do(t, http.MethodGet, "/account/auth/google", nil)
		require.Equal(t, http.StatusFound, w.Code)
		assert.True(t, strings.HasPrefix(w.Header().Get("Location"), "https://provider.example.com/authorize?state="))
	})

	t.Run("callback creates an account and a session", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.adapter.profile = auth.ProviderProfile{Subject: "sub-1", Email: "fresh@example.com", EmailVerified: true}

		w := f.do(t, http.MethodGet, "/account/auth/google", nil)
		require.Equal(t, http.StatusFound, w.Code)
		loc, err := url.Parse(w.Header().Get("Location"))
		require.NoError(t, err)

		w = f.do(t, http.MethodGet, "/account/auth/google/callback?code=good&state="+url.QueryEscape(loc.Query().Get("state")), nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "fresh@example.com")
		sidCookie(t, w)
	})

	t.Run("callback with existing email refuses association", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		_, err := f.registry.CreateAccount(context.Background(), "taken@example.com")
		require.NoError(t, err)
		f.adapter.profile = auth.ProviderProfile{Subject: "sub-t", Email: "taken@example.com", EmailVerified: true}

		w := f.do(t, http.MethodGet, "/account/auth/google", nil)
		loc, err := url.Parse(w.Header().Get("Location"))
		require.NoError(t, err)

		w = f.do(t, http.MethodGet, "/account/auth/google/callback?code=good&state="+url.QueryEscape(loc.Query().Get("state")), nil)
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("unknown provider", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		w := f.do(t, http.MethodGet, "/account/auth/github", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestSettingsEndpoints(t *testing.T) {
	t.Parallel()

	t.Run("requires authentication", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		w := f.do(t, http.MethodGet, "/account/settings/methods/", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("lists methods", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		cookie := f.signInViaMagicLink(t, "user@example.com")

		w := f.do(t, http.MethodGet, "/account/settings/methods/", nil, cookie)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "magic_link")
	})

	t.Run("unlinking the only method is refused", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		cookie := f.signInViaMagicLink(t, "user@example.com")

		w := f.do(t, http.MethodPost, "/account/settings/methods/unlink", map[string]string{"kind": "magic_link"}, cookie)
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Contains(t, w.Body.String(), "only remaining")
	})

	t.Run("link a provider end to end", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		cookie := f.signInViaMagicLink(t, "user@example.com")
		f.adapter.profile = auth.ProviderProfile{Subject: "sub-link", Email: "user@example.com", EmailVerified: true}

		w := f.do(t, http.MethodPost, "/account/settings/methods/link", map[string]string{"kind": "google"}, cookie)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "/account/auth/google")

		w = f.do(t, http.MethodGet, "/account/auth/google", nil, cookie)
		require.Equal(t, http.StatusFound, w.Code)
		loc, err := url.Parse(w.Header().Get("Location"))
		require.NoError(t, err)

		w = f.do(t, http.MethodGet, "/account/auth/google/callback?code=good&state="+url.QueryEscape(loc.Query().Get("state")), nil, cookie)
		require.Equal(t, http.StatusOK, w.Code)
		rotated := sidCookie(t, w)

		// The provider method now resolves to the linked account.
		_, err = f.registry.FindAccountByMethod(context.Background(), auth.MethodGoogle, "sub-link")
		require.NoError(t, err)

		// Unlinking is now possible: two active methods exist.
		w = f.do(t, http.MethodPost, "/account/settings/methods/unlink", map[string]string{"kind": "google"}, rotated)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("link token wins when the session changes hands mid flow", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		cookie := f.signInViaMagicLink(t, "alice@example.com")
		alice, err := f.registry.FindAccountByEmail(context.Background(), "alice@example.com")
		require.NoError(t, err)

		f.adapter.profile = auth.ProviderProfile{Subject: "sub-switch", Email: "provider@example.com", EmailVerified: true}

		w := f.do(t, http.MethodPost, "/account/settings/methods/link", map[string]string{"kind": "google"}, cookie)
		require.Equal(t, http.StatusOK, w.Code)

		w = f.do(t, http.MethodGet, "/account/auth/google", nil, cookie)
		require.Equal(t, http.StatusFound, w.Code)
		loc, err := url.Parse(w.Header().Get("Location"))
		require.NoError(t, err)
		state := loc.Query().Get("state")

		// Bob signs in on the same browser session before the callback lands.
		_, err = f.registry.CreateAccount(context.Background(), "bob@example.com")
		require.NoError(t, err)
		w = f.do(t, http.MethodPost, "/account/auth/magic", map[string]string{"email": "bob@example.com"}, cookie)
		require.Equal(t, http.StatusAccepted, w.Code)
		u, err := url.Parse(f.sender.link)
		require.NoError(t, err)
		w = f.do(t, http.MethodGet, "/account/auth/magic/verify?token="+url.QueryEscape(u.Query().Get("token")), nil, cookie)
		require.Equal(t, http.StatusOK, w.Code)
		asBob := sidCookie(t, w)

		// The callback attaches to the account the link token was bound to
		// and re-authenticates the session as that account.
		w = f.do(t, http.MethodGet, "/account/auth/google/callback?code=good&state="+url.QueryEscape(state), nil, asBob)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), alice.ID.String())

		got, err := f.registry.FindAccountByMethod(context.Background(), auth.MethodGoogle, "sub-switch")
		require.NoError(t, err)
		assert.Equal(t, alice.ID, got.ID)
	})

	t.Run("attach password under a session link token", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		cookie := f.signInViaMagicLink(t, "user@example.com")

		w := f.do(t, http.MethodPost, "/account/settings/methods/link", map[string]string{"kind": "password"}, cookie)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "/account/auth/password/attach")

		w = f.do(t, http.MethodPost, "/account/auth/password/attach", map[string]string{"password": "correct horse battery"}, cookie)
		require.Equal(t, http.StatusOK, w.Code)

		w = f.do(t, http.MethodPost, "/account/auth/password", map[string]string{
			"email":    "user@example.com",
			"password": "correct horse battery",
		}, cookie)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("password sign-in with bad credentials", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		w := f.do(t, http.MethodPost, "/account/auth/password", map[string]string{
			"email":    "nobody@example.com",
			"password": "whatever",
		})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "authentication failed")
	})
}
