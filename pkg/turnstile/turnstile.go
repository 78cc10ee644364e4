// Package turnstile verifies Cloudflare Turnstile challenge tokens.
package turnstile

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const verifyURL = "https://challenges.cloudflare.com/turnstile/v0/siteverify"

// Config holds Turnstile credentials. Both keys empty means the integration
// is disabled; in that state verification passes in development mode and
// fails otherwise.
type Config struct {
	SiteKey   string `env:"TURNSTILE_SITE_KEY"`
	SecretKey string `env:"TURNSTILE_SECRET_KEY"`
	DevMode   bool   `env:"TURNSTILE_DEV_MODE" envDefault:"false"`
}

var ErrVerificationFailed = errors.New("turnstile.verification_failed")

// Verifier checks challenge tokens against Cloudflare's siteverify endpoint.
type Verifier struct {
	config Config
	client *http.Client
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(v *Verifier) {
		v.client = client
	}
}

// New creates a Turnstile verifier.
func New(cfg Config, opts ...Option) *Verifier {
	v := &Verifier{
		config: cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Enabled reports whether both keys are configured.
func (v *Verifier) Enabled() bool {
	return v.config.SiteKey != "" && v.config.SecretKey != ""
}

// SiteKey returns the public key for embedding in frontend widgets.
func (v *Verifier) SiteKey() string {
	return v.config.SiteKey
}

type verifyResponse struct {
	Success    bool     `json:"success"`
	ErrorCodes []string `json:"error-codes"`
}

// Verify checks a client-supplied challenge token. When no secret key is
// configured, development mode passes every token and production mode fails
// closed. Network and decode failures count as verification failures.
func (v *Verifier) Verify(ctx context.Context, token, remoteIP string) error {
	if v.config.SecretKey == "" {
		if v.config.DevMode {
			return nil
		}
		return ErrVerificationFailed
	}

	form := url.Values{
		"secret":   {v.config.SecretKey},
		"response": {token},
	}
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, verifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return errors.Join(ErrVerificationFailed, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.client.Do(req)
	if err != nil {
		return errors.Join(ErrVerificationFailed, err)
	}
	defer resp.Body.Close()

	var result verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return errors.Join(ErrVerificationFailed, err)
	}
	if !result.Success {
		return ErrVerificationFailed
	}
	return nil
}
