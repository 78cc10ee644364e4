package session

import "time"

// Config controls session lifetime and cookie behavior.
type Config struct {
	CookieName      string        `env:"SESSION_COOKIE_NAME" envDefault:"sid"`
	TTL             time.Duration `env:"SESSION_TTL" envDefault:"720h"`
	AnonymousTTL    time.Duration `env:"SESSION_ANON_TTL" envDefault:"24h"`
	SecureCookies   bool          `env:"SESSION_SECURE_COOKIES" envDefault:"true"`
	CleanupInterval time.Duration `env:"SESSION_CLEANUP_INTERVAL" envDefault:"5m"`
}

// DefaultConfig returns the configuration used when none is supplied.
func DefaultConfig() Config {
	return Config{
		CookieName:      "sid",
		TTL:             720 * time.Hour,
		AnonymousTTL:    24 * time.Hour,
		SecureCookies:   true,
		CleanupInterval: 5 * time.Minute,
	}
}

func (c Config) ttlFor(authenticated bool) time.Duration {
	if authenticated {
		return c.TTL
	}
	return c.AnonymousTTL
}
