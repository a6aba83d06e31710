package notify

import (
	"context"
	"fmt"

	"github.com/go-gomail/gomail"

	"github.com/trigg3rX/triggerx-jobqueue/internal/jobqueue/types"
)

type mailer interface {
	DialAndSend(m ...*gomail.Message) error
}

type EmailConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	To       []string
}

// EmailChannel mails alerts through an SMTP relay.
type EmailChannel struct {
	mailer mailer
	from   string
	to     []string
}

func NewEmailChannel(cfg EmailConfig) (*EmailChannel, error) {
	if cfg.Host == "" || len(cfg.To) == 0 {
		return nil, fmt.Errorf("email host and at least one recipient are required")
	}
	from := cfg.From
	if from == "" {
		from = cfg.User
	}
	if from == "" {
		return nil, fmt.Errorf("email sender is required")
	}
	return &EmailChannel{
		mailer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password),
		from:   from,
		to:     cfg.To,
	}, nil
}

func (c *EmailChannel) Name() string { return "email" }

func (c *EmailChannel) Send(_ context.Context, a types.QueueAlert) error {
	m := gomail.NewMessage()
	m.SetHeader("From", c.from)
	m.SetHeader("To", c.to...)
	m.SetHeader("Subject", Subject(a))
	m.SetBody("text/html", FormatHTML(a))
	m.AddAlternative("text/plain", FormatText(a))

	if err := c.mailer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send alert email: %w", err)
	}
	return nil
}
