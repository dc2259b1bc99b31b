package notify

import (
	"bytes"
	"context"
	"fmt"

	"voicereport-platform/internal/config"

	"github.com/wneessen/go-mail"
)

// Message is one outbound report email.
type Message struct {
	To       string
	Subject  string
	HTMLBody string
	TextBody string

	// Attachment is the optional PDF report.
	Attachment     []byte
	AttachmentName string
}

// Mailer delivers report emails over SMTP.
//
// Convention: a mailer with no SMTP host configured is "disabled" and Send
// returns (false, nil) rather than an error, so a missing email setup never
// fails a pipeline.
type Mailer struct {
	cfg    config.SMTPConfig
	client *mail.Client
}

func NewMailer(cfg config.SMTPConfig) (*Mailer, error) {
	if cfg.Host == "" {
		return &Mailer{cfg: cfg}, nil
	}

	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}
	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	return &Mailer{cfg: cfg, client: client}, nil
}

// Enabled reports whether SMTP is configured.
func (m *Mailer) Enabled() bool { return m.client != nil }

// Send delivers the message. Returns (true, nil) on delivery, (false, nil)
// when the mailer is disabled and (false, err) on a real send failure.
func (m *Mailer) Send(ctx context.Context, msg Message) (bool, error) {
	if !m.Enabled() {
		return false, nil
	}

	em := mail.NewMsg()
	if err := em.From(m.cfg.From); err != nil {
		return false, fmt.Errorf("from address: %w", err)
	}
	if err := em.To(msg.To); err != nil {
		return false, fmt.Errorf("to address: %w", err)
	}
	em.Subject(msg.Subject)
	em.SetBodyString(mail.TypeTextPlain, msg.TextBody)
	if msg.HTMLBody != "" {
		em.AddAlternativeString(mail.TypeTextHTML, msg.HTMLBody)
	}
	if len(msg.Attachment) > 0 {
		name := msg.AttachmentName
		if name == "" {
			name = "report.pdf"
		}
		if err := em.AttachReader(name, bytes.NewReader(msg.Attachment)); err != nil {
			return false, fmt.Errorf("attach report: %w", err)
		}
	}

	if err := m.client.DialAndSendWithContext(ctx, em); err != nil {
		return false, fmt.Errorf("send email: %w", err)
	}
	return true, nil
}
