package kafka

import (
	"context"

	"go.uber.org/zap"

	"github.com/helioscale/platform-auth/internal/core/port"
	"github.com/helioscale/platform-auth/internal/infra/logger"
)

// StubNotifier logs notification requests instead of publishing them. Used
// when no Kafka brokers are configured.
type StubNotifier struct {
	logger *zap.Logger
}

// NewStubNotifier constructs a development-friendly notification sink.
func NewStubNotifier(log *zap.Logger) *StubNotifier {
	return &StubNotifier{logger: log}
}

// Send logs the notification request and reports success.
func (n *StubNotifier) Send(_ context.Context, notification port.Notification) error {
	n.logger.Info("stub notification",
		zap.String("template", notification.Template),
		zap.String("recipient", logger.MaskEmail(notification.Recipient)),
		zap.String("tenant_name", notification.TenantName),
		zap.String("subject", notification.Subject),
	)
	return nil
}

var _ port.Notifier = (*StubNotifier)(nil)
