package core

import "net/mail"

type (
	// EmailMessage is a plain-text notification. The attendance summary
	// mailed to a presenter on session close is the only template-free
	// message the core sends.
	EmailMessage struct {
		To      []mail.Address
		Subject string
		Body    string
	}

	// EmailService is any service that can send emails.
	EmailService interface {
		// SendMessages sends messages concurrently; delivery is
		// best-effort and never blocks the caller.
		SendMessages(messages ...*EmailMessage)
	}
)

func (m *EmailMessage) HasRecipients() bool {
	return len(m.To) > 0
}

func (m *EmailMessage) HasContent() bool {
	return m.Body != ""
}
