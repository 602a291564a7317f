package utils

import (
	"bytes"
	"fmt"

	"gopkg.in/gomail.v2"
)

// EMLMessage is a rendered simulated phishing email
type EMLMessage struct {
	FromName  string
	FromEmail string
	To        string
	Subject   string
	HTML      string
	MessageID string
}

// BuildEML packages a rendered email as an RFC 5322 message.
// The message is only serialised for download; nothing here dials a mail server.
func BuildEML(msg EMLMessage) ([]byte, error) {
	m := gomail.NewMessage()
	m.SetAddressHeader("From", msg.FromEmail, msg.FromName)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	if msg.MessageID != "" {
		m.SetHeader("Message-ID", "<"+msg.MessageID+">")
	}
	m.SetHeader("X-Phishdrill-Simulation", "true")
	m.SetBody("text/html", msg.HTML)

	var buf bytes.Buffer
	if _, err := m.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to build message: %w", err)
	}
	return buf.Bytes(), nil
}
