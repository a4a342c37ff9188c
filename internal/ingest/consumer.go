package ingest

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
	"intel-correlation-service/internal/config"
	"intel-correlation-service/internal/db"
	"intel-correlation-service/internal/models"
)

// Consumer ingests normalized intel records published by the external feed
// fetchers. A malformed record is a recoverable data error: skipped with a
// warning, never aborting the stream. Duplicates are filtered by the dedup
// store and are not errors.
type Consumer struct {
	reader *kafka.Reader
	db     *db.DB
	logger *logrus.Logger
}

// wireItem is the fetchers' publish format.
type wireItem struct {
	Source      string    `json:"source"`
	ExternalID  string    `json:"external_id"`
	Title       string    `json:"title"`
	PublishedAt time.Time `json:"published_at"`
	ProductTags []string  `json:"product_tags"`
	CVSS        *float64  `json:"cvss"`
}

func NewConsumer(cfg config.Config, database *db.DB, logger *logrus.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  []string{cfg.Kafka.Broker},
		Topic:    cfg.Kafka.IntelTopic,
		GroupID:  cfg.Kafka.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return &Consumer{reader: reader, db: database, logger: logger}
}

// Start consumes until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) {
	c.logger.Infof("Intel consumer started on topic %s", c.reader.Config().Topic)
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Infof("Intel consumer stopped")
				return
			}
			c.logger.Errorf("Read intel message failed: %v", err)
			continue
		}

		var w wireItem
		if err := json.Unmarshal(msg.Value, &w); err != nil {
			c.logger.Warnf("Skipping malformed intel record at offset %d: %v", msg.Offset, err)
			continue
		}

		item := models.RawIntelItem{
			Source:      w.Source,
			ExternalID:  w.ExternalID,
			DedupKey:    models.BuildDedupKey(w.Source, w.ExternalID),
			Title:       w.Title,
			PublishedAt: w.PublishedAt,
			ProductTags: w.ProductTags,
			CVSS:        w.CVSS,
		}
		if item.PublishedAt.IsZero() {
			item.PublishedAt = time.Now()
		}
		if err := item.Validate(); err != nil {
			c.logger.Warnf("Skipping invalid intel record: %v", err)
			continue
		}

		inserted, err := c.db.InsertIntel(ctx, item)
		if err != nil {
			c.logger.Errorf("Store intel %s failed: %v", item.DedupKey, err)
			continue
		}
		if inserted {
			c.logger.Debugf("Ingested intel %s", item.DedupKey)
		} else {
			c.logger.Debugf("Duplicate intel %s ignored", item.DedupKey)
		}
	}
}

func (c *Consumer) Close() {
	if err := c.reader.Close(); err != nil {
		c.logger.Errorf("Close intel reader failed: %v", err)
	}
}
