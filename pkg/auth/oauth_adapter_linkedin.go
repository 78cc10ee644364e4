package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/linkedin"
)

// LinkedInOAuthConfig holds configuration for the LinkedIn OAuth provider.
// The default scopes use LinkedIn's OpenID Connect profile, which exposes the
// stable member subject and the email claim through the userinfo endpoint.
type LinkedInOAuthConfig struct {
	ClientID     string        `env:"LINKEDIN_OAUTH_CLIENT_ID,required"`
	ClientSecret string        `env:"LINKEDIN_OAUTH_CLIENT_SECRET,required"`
	RedirectURL  string        `env:"LINKEDIN_OAUTH_REDIRECT_URL,required"`
	Scopes       []string      `env:"LINKEDIN_OAUTH_SCOPES" envSeparator:"," envDefault:"openid,email"`
	StateTTL     time.Duration `env:"LINKEDIN_OAUTH_STATE_TTL" envDefault:"10m"`
}

type linkedinAdapter struct {
	conf       *oauth2.Config
	httpClient *http.Client
}

// NewLinkedInAdapter creates a LinkedIn provider adapter.
func NewLinkedInAdapter(cfg LinkedInOAuthConfig) ProviderAdapter {
	return &linkedinAdapter{
		conf: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint:     linkedin.Endpoint,
		},
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (a *linkedinAdapter) Kind() MethodKind {
	return MethodLinkedIn
}

func (a *linkedinAdapter) AuthURL(state string) (string, error) {
	return a.conf.AuthCodeURL(state), nil
}

// ResolveProfile exchanges the authorization code and fetches the OIDC
// userinfo endpoint.
func (a *linkedinAdapter) ResolveProfile(ctx context.Context, code string) (ProviderProfile, error) {
	tok, err := a.conf.Exchange(ctx, code)
	if err != nil {
		return ProviderProfile{}, ErrInvalidCode
	}

	u, err := a.fetchUserinfo(ctx, tok.AccessToken)
	if err != nil {
		return ProviderProfile{}, fmt.Errorf("fetch linkedin userinfo: %w", err)
	}
	if u.Sub == "" {
		return ProviderProfile{}, ErrInvalidProfile
	}

	return ProviderProfile{
		Subject:       u.Sub,
		Email:         u.Email,
		EmailVerified: u.EmailVerified,
	}, nil
}

func (a *linkedinAdapter) fetchUserinfo(ctx context.Context, accessToken string) (*liUser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://api.linkedin.com/v2/userinfo", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("linkedin api returned status %d", resp.StatusCode)
	}

	var user liUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, err
	}
	return &user, nil
}

type liUser struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
}

var _ ProviderAdapter = (*linkedinAdapter)(nil)
