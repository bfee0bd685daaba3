// Package mailer sends plain-text email over SMTP.
//
// It deliberately knows nothing about queueing or retries; the outbox job owns
// that. Sender is an interface so jobs can be tested with a fake.
package mailer
