package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/covid-dashboard/internal/config"
	"github.com/couchcryptid/covid-dashboard/internal/domain"
	"github.com/couchcryptid/covid-dashboard/internal/observability"
	kafkago "github.com/segmentio/kafka-go"
)

const eventTypeRefreshed = "data_refreshed"

// Notifier publishes refresh events to a Kafka topic so other services can
// pick up new data.
type Notifier struct {
	writer  *kafkago.Writer
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewNotifier creates a Kafka producer for the configured refresh topic.
func NewNotifier(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) *Notifier {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
		BatchTimeout: 50 * time.Millisecond,
	}
	return &Notifier{writer: w, logger: logger, metrics: metrics}
}

// NotifyRefresh publishes one refresh event.
func (n *Notifier) NotifyRefresh(ctx context.Context, event domain.RefreshEvent) error {
	msg, err := serializeToMessage(event)
	if err != nil {
		n.metrics.RefreshNotifications.WithLabelValues("error").Inc()
		return err
	}
	if err := n.writer.WriteMessages(ctx, msg); err != nil {
		n.metrics.RefreshNotifications.WithLabelValues("error").Inc()
		return fmt.Errorf("publish refresh event: %w", err)
	}
	n.metrics.RefreshNotifications.WithLabelValues("success").Inc()
	n.logger.Info("refresh event published", "topic", n.writer.Topic, "commit", event.Commit)
	return nil
}

func (n *Notifier) Close() error {
	return n.writer.Close()
}

// serializeToMessage marshals a RefreshEvent into a Kafka message keyed by commit.
func serializeToMessage(event domain.RefreshEvent) (kafkago.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize refresh event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(event.Commit),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(eventTypeRefreshed)},
			{Key: "downloaded_at", Value: []byte(event.DownloadedAt.Format(time.RFC3339))},
		},
	}, nil
}
