package core

import "net/mail"

type EmailMessage struct {
	To          []mail.Address
	Cc          []mail.Address
	Subject     string
	TextContent string
	HTMLContent string
}

func (m *EmailMessage) HasRecipients() bool { return len(m.To) > 0 }
func (m *EmailMessage) HasContent() bool    { return (m.TextContent != "") || (m.HTMLContent != "") }

// EmailService is any service that can send emails
type EmailService interface {
	// SendMessages sends messages concurrently
	SendMessages(messages ...*EmailMessage)
}
