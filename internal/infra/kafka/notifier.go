package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/helioscale/platform-auth/internal/core/port"
	"github.com/helioscale/platform-auth/internal/infra/config"
)

const (
	schemaVersion         = "1.0"
	notificationEventType = "notification.requested"
)

// Notifier implements port.Notifier by publishing notification request events
// to Kafka for the downstream delivery service.
type Notifier struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

// NewNotifier constructs a Kafka-backed notification sink.
func NewNotifier(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *Notifier {
	return &Notifier{producer: producer, appCfg: appCfg, logger: logger}
}

type envelopeMetadata map[string]string

type eventEnvelope struct {
	EventID   string           `json:"event_id"`
	EventType string           `json:"event_type"`
	Timestamp time.Time        `json:"timestamp"`
	Version   string           `json:"version"`
	Payload   any              `json:"payload"`
	Metadata  envelopeMetadata `json:"metadata,omitempty"`
}

// Send publishes the notification request. Delivery to the recipient is
// asynchronous; a nil return means the event was accepted by the producer.
func (n *Notifier) Send(ctx context.Context, notification port.Notification) error {
	payload := struct {
		Template   string `json:"template"`
		Recipient  string `json:"recipient"`
		Name       string `json:"name,omitempty"`
		TenantName string `json:"tenant_name,omitempty"`
		Code       string `json:"code,omitempty"`
		Subject    string `json:"subject,omitempty"`
	}{
		Template:   notification.Template,
		Recipient:  notification.Recipient,
		Name:       notification.Name,
		TenantName: notification.TenantName,
		Code:       notification.Code,
		Subject:    notification.Subject,
	}

	metadata := envelopeMetadata{
		"service":     n.appCfg.Name,
		"environment": n.appCfg.Env,
	}

	if span := trace.SpanFromContext(ctx); span != nil {
		if sc := span.SpanContext(); sc.IsValid() {
			metadata["trace_id"] = sc.TraceID().String()
		}
	}

	envelope := eventEnvelope{
		EventID:   uuid.NewString(),
		EventType: notificationEventType,
		Timestamp: time.Now().UTC(),
		Version:   schemaVersion,
		Payload:   payload,
		Metadata:  metadata,
	}

	bytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal notification envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: n.producer.TopicName(notificationEventType),
		Key:   sarama.StringEncoder(notification.Recipient),
		Value: sarama.ByteEncoder(bytes),
	}

	select {
	case n.producer.Producer().Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var _ port.Notifier = (*Notifier)(nil)
