// Package email provides outbound transactional email delivery.
//
// EmailSender is the transport contract. Two implementations ship with the
// package: a Postmark client for production and a development sender that
// writes each message to disk as an HTML file with a JSON sidecar, so flows
// can be exercised locally without a mail account.
//
// MagicLinkMailer sits on top of a sender and renders the sign-in email for
// the passwordless flow.
package email
