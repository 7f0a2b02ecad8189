package workflow

import (
	"fmt"
	"net/smtp"
	"os"
	"strings"

	"github.com/mmlogistics/freight_backend/config"
)

type EmailMessage struct {
	To       string
	Subject  string
	HtmlBody string
}

// EmailSender is the delivery boundary; the send workflow never cares
// which transport sits behind it.
type EmailSender interface {
	Send(msg EmailMessage) error
}

type SmtpSender struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

func NewSmtpSenderFromEnv() *SmtpSender {
	return &SmtpSender{
		Host:     os.Getenv("SMTP_HOST"),
		Port:     os.Getenv("SMTP_PORT"),
		Username: os.Getenv("SMTP_USERNAME"),
		Password: os.Getenv("SMTP_PASSWORD"),
		From:     os.Getenv("SMTP_FROM"),
	}
}

func (s *SmtpSender) Send(msg EmailMessage) error {
	if s.Host == "" || s.From == "" {
		return fmt.Errorf("smtp sender is not configured")
	}

	var body strings.Builder
	body.WriteString("From: " + s.From + "\r\n")
	body.WriteString("To: " + msg.To + "\r\n")
	body.WriteString("Subject: " + msg.Subject + "\r\n")
	body.WriteString("MIME-Version: 1.0\r\n")
	body.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	body.WriteString("\r\n")
	body.WriteString(msg.HtmlBody)

	addr := s.Host + ":" + s.Port
	var auth smtp.Auth
	if s.Username != "" {
		auth = smtp.PlainAuth("", s.Username, s.Password, s.Host)
	}
	return smtp.SendMail(addr, auth, s.From, []string{msg.To}, []byte(body.String()))
}

// LogSender stands in when SMTP_HOST is unset (local development): the
// message is logged instead of delivered and the send counts as success.
type LogSender struct{}

func (LogSender) Send(msg EmailMessage) error {
	logger := config.GetLogger()
	logger.WithField("to", msg.To).WithField("subject", msg.Subject).Warn("smtp not configured, email logged only")
	return nil
}

func DefaultSender() EmailSender {
	if os.Getenv("SMTP_HOST") == "" {
		return LogSender{}
	}
	return NewSmtpSenderFromEnv()
}
