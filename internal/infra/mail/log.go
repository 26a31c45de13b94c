package mail

import (
	"context"

	"go.uber.org/zap"

	"github.com/arklim/storefront-iam/internal/core/port"
	"github.com/arklim/storefront-iam/internal/infra/logger"
)

// LogMailer writes mail to the log instead of sending it. Used in development when no SMTP host is configured.
type LogMailer struct {
	logger *zap.Logger
}

// NewLogMailer constructs a LogMailer.
func NewLogMailer(log *zap.Logger) *LogMailer {
	return &LogMailer{logger: log}
}

// Send logs the mail. The body is logged in full because it is the only way to follow links locally.
func (m *LogMailer) Send(_ context.Context, msg port.MailMessage) error {
	m.logger.Info("mail (not sent)",
		zap.String("to", logger.MaskEmail(msg.To)),
		zap.String("subject", msg.Subject),
		zap.String("body", msg.Body),
	)
	return nil
}

var _ port.Mailer = (*LogMailer)(nil)
