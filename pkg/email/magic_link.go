package email

import (
	"context"
	"fmt"
	"html"
	"time"
)

// MagicLinkMailer builds and sends the sign-in email. It satisfies the
// authentication flow's sender contract without depending on it.
type MagicLinkMailer struct {
	sender  EmailSender
	appName string
}

// NewMagicLinkMailer wraps an EmailSender with the sign-in message template.
func NewMagicLinkMailer(sender EmailSender, appName string) *MagicLinkMailer {
	return &MagicLinkMailer{sender: sender, appName: appName}
}

// SendMagicLink delivers a one-time sign-in link. The link carries the raw
// token and must never be written to logs.
func (m *MagicLinkMailer) SendMagicLink(ctx context.Context, email, link string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt).Round(time.Minute)
	body := fmt.Sprintf(`<html><body>
<p>Hi,</p>
<p>Click the link below to sign in to %s:</p>
<p><a href="%s">Sign in to %s</a></p>
<p>The link can be used once and expires in %s. If you did not request it, you can ignore this email.</p>
</body></html>`,
		html.EscapeString(m.appName),
		html.EscapeString(link),
		html.EscapeString(m.appName),
		formatTTL(ttl),
	)

	return m.sender.SendEmail(ctx, SendEmailParams{
		SendTo:   email,
		Subject:  fmt.Sprintf("Sign in to %s", m.appName),
		BodyHTML: body,
		Tag:      "magic-link",
	})
}

func formatTTL(d time.Duration) string {
	if d >= time.Hour {
		hours := int(d.Hours())
		if hours == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", hours)
	}
	minutes := int(d.Minutes())
	if minutes < 1 {
		minutes = 1
	}
	if minutes == 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", minutes)
}
