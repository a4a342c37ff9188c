package ingest

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
	"intel-correlation-service/internal/config"
)

// Requester asks the external feed fetchers to run a pull cycle. The
// collection job treats this as best effort: the fetchers publish results
// asynchronously and the job correlates whatever intel is already pending.
type Requester struct {
	writer *kafka.Writer
	logger *logrus.Logger
}

func NewRequester(cfg config.Config, logger *logrus.Logger) *Requester {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Kafka.Broker),
		Topic:        cfg.Kafka.RequestTopic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
	}
	return &Requester{writer: writer, logger: logger}
}

func (r *Requester) RequestFetch(ctx context.Context) error {
	payload, err := json.Marshal(map[string]any{
		"requested_at": time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	if err := r.writer.WriteMessages(ctx, kafka.Message{Value: payload}); err != nil {
		return err
	}
	r.logger.Debugf("Fetch request published to %s", r.writer.Topic)
	return nil
}

func (r *Requester) Close() {
	if err := r.writer.Close(); err != nil {
		r.logger.Errorf("Close fetch request writer failed: %v", err)
	}
}
