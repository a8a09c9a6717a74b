package notify

import (
	"context"

	"gopkg.in/gomail.v2"

	"album-publisher/types"
)

// SMTPNotifier sends email through an SMTP relay
type SMTPNotifier struct {
	from string
	to   string
	send func(...*gomail.Message) error
}

// NewSMTP creates an SMTP transport
func NewSMTP(host string, port int, username, password, from, to string) *SMTPNotifier {
	dialer := gomail.NewDialer(host, port, username, password)
	return &SMTPNotifier{from: from, to: to, send: dialer.DialAndSend}
}

func (s *SMTPNotifier) Notify(ctx context.Context, n types.Notification) error {
	html, err := RenderHTML(n)
	if err != nil {
		return err
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", s.from)
	msg.SetHeader("To", s.to)
	msg.SetHeader("Subject", Subject(n))
	msg.SetBody("text/html", html)

	if err := ctx.Err(); err != nil {
		return err
	}
	return s.send(msg)
}
