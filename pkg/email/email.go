package email

import (
	"fmt"
	"net/smtp"
)

// Config holds the SMTP settings used for outbound mail.
type Config struct {
	Host     string
	Port     string
	Sender   string
	Password string
}

// Send sends a plain text email using SMTP.
func Send(cfg Config, to, subject, body string) error {
	auth := smtp.PlainAuth("", cfg.Sender, cfg.Password, cfg.Host)

	msg := []byte("To: " + to + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"\r\n" + body + "\r\n")

	address := cfg.Host + ":" + cfg.Port

	if err := smtp.SendMail(address, auth, cfg.Sender, []string{to}, msg); err != nil {
		return fmt.Errorf("failed to send email: %v", err)
	}
	return nil
}
