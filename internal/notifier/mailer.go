package notifier

import (
	"context"

	"gopkg.in/gomail.v2"
)

// Mailer отправляет одно письмо списку получателей.
type Mailer interface {
	Send(ctx context.Context, subject, body string, to []string) error
}

// SMTPMailer отправляет письма через SMTP-сервер.
type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPMailer(host string, port int, username, password, from string) *SMTPMailer {
	return &SMTPMailer{
		dialer: gomail.NewDialer(host, port, username, password),
		from:   from,
	}
}

func (m *SMTPMailer) Send(ctx context.Context, subject, body string, to []string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to...)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	// gomail не принимает контекст, поэтому отправка выполняется в
	// отдельной горутине, а отмена контекста прерывает ожидание.
	done := make(chan error, 1)
	go func() {
		done <- m.dialer.DialAndSend(msg)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
