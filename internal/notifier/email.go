package notifier

import (
	"context"
	"fmt"
	"html"

	"github.com/wneessen/go-mail"
)

// EmailNotifier sends the HTML report over SMTP, with the plain text table as an alternative part.
type EmailNotifier struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string

	send func(ctx context.Context, m *mail.Msg) error
}

func NewEmailNotifier(host string, port int, username, password, from string, to []string) *EmailNotifier {
	e := &EmailNotifier{
		Host:     host,
		Port:     port,
		Username: username,
		Password: password,
		From:     from,
		To:       to,
	}
	e.send = e.dialAndSend
	return e
}

func (e *EmailNotifier) Name() string { return "email" }

func (e *EmailNotifier) Notify(ctx context.Context, msg Message) error {
	m, err := e.compose(msg)
	if err != nil {
		return err
	}
	if err := e.send(ctx, m); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func (e *EmailNotifier) compose(msg Message) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.From(e.From); err != nil {
		return nil, fmt.Errorf("email from: %w", err)
	}
	if err := m.To(e.To...); err != nil {
		return nil, fmt.Errorf("email to: %w", err)
	}
	m.Subject(msg.Subject)

	body := msg.HTML
	if body == "" {
		body = "<pre>" + html.EscapeString(msg.Text) + "</pre>"
	}
	m.SetBodyString(mail.TypeTextHTML, body)
	if msg.Text != "" {
		m.AddAlternativeString(mail.TypeTextPlain, msg.Text)
	}
	return m, nil
}

// dialAndSend opens one connection per report and upgrades to TLS when the server offers it.
func (e *EmailNotifier) dialAndSend(ctx context.Context, m *mail.Msg) error {
	opts := []mail.Option{
		mail.WithPort(e.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if e.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(e.Username),
			mail.WithPassword(e.Password),
		)
	}
	c, err := mail.NewClient(e.Host, opts...)
	if err != nil {
		return err
	}
	return c.DialAndSendWithContext(ctx, m)
}
