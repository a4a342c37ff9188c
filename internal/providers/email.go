package providers

import (
	"time"

	"github.com/sirupsen/logrus"
	"intel-correlation-service/internal/config"
	"intel-correlation-service/internal/utils"
	"intel-correlation-service/pkg/email"
)

// Mailer delivers notification mail through the configured SMTP relay.
// Transport failures are recoverable: the caller records the failed phase
// and retries on the next natural fire.
type Mailer struct {
	cfg    config.Config
	logger *logrus.Logger
}

func NewMailer(cfg config.Config, logger *logrus.Logger) *Mailer {
	return &Mailer{cfg: cfg, logger: logger}
}

// Enabled reports whether an SMTP relay is configured at all.
func (m *Mailer) Enabled() bool {
	return m.cfg.Email.SMTPServer != "" && m.cfg.Email.From != ""
}

// Send delivers one message to the full, unmasked recipient addresses.
func (m *Mailer) Send(to []string, subject, body string) error {
	timeout := time.Duration(m.cfg.Email.TimeoutSec) * time.Second
	return utils.Retry(m.logger, 2, 2*time.Second, func() error {
		return email.Send(
			m.cfg.Email.SMTPServer,
			m.cfg.Email.SMTPPort,
			m.cfg.Email.Username,
			m.cfg.Email.Password,
			m.cfg.Email.From,
			to, subject, body, timeout)
	})
}
