package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"clipstream/internal/config"
	"clipstream/internal/logging"
	"clipstream/internal/queue"
	"clipstream/internal/storage"
)

const (
	defaultPrefetch = 4
	redialInterval  = 5 * time.Second
	routingKey      = "upload.completed"
)

// UploadCompleted is the event published by the upload service once a raw
// video object has been fully written to storage.
type UploadCompleted struct {
	VideoID   string `json:"video_id"`
	Title     string `json:"title"`
	ObjectKey string `json:"object_key"`
}

// Enqueuer is the slice of the queue store the consumer needs.
type Enqueuer interface {
	Enqueue(ctx context.Context, id, title, sourceKey string) (*queue.Video, bool, error)
}

// Consumer bridges broker deliveries into the processing queue.
type Consumer struct {
	cfg    *config.Config
	store  Enqueuer
	logger *slog.Logger
}

// NewConsumer constructs an upload-event consumer.
func NewConsumer(cfg *config.Config, store Enqueuer, logger *slog.Logger) *Consumer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Consumer{cfg: cfg, store: store, logger: logging.NewComponentLogger(logger, "ingest")}
}

// Run consumes upload events until the context is cancelled, redialing the
// broker after connection loss.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		if err := c.consumeOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Warn("broker connection lost, redialing", logging.Error(err))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(redialInterval):
		}
	}
}

func (c *Consumer) consumeOnce(ctx context.Context) error {
	conn, err := amqp.Dial(c.cfg.Ingest.URL)
	if err != nil {
		return fmt.Errorf("dial broker: %w", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	deliveries, err := c.setupChannel(ch)
	if err != nil {
		return err
	}
	c.logger.Info("consuming upload events",
		logging.String("queue", c.cfg.Ingest.Queue),
		logging.String("exchange", c.cfg.Ingest.Exchange))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-deliveries:
			if !ok {
				return errors.New("delivery channel closed")
			}
			c.handleDelivery(ctx, delivery)
		}
	}
}

func (c *Consumer) setupChannel(ch *amqp.Channel) (<-chan amqp.Delivery, error) {
	exchange := c.cfg.Ingest.Exchange
	queueName := c.cfg.Ingest.Queue

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	q, err := ch.QueueDeclare(queueName, true, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, routingKey, exchange, false, nil); err != nil {
		return nil, fmt.Errorf("bind queue: %w", err)
	}

	prefetch := c.cfg.Ingest.Prefetch
	if prefetch <= 0 {
		prefetch = defaultPrefetch
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("set qos: %w", err)
	}

	deliveries, err := ch.Consume(q.Name, "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consume queue: %w", err)
	}
	return deliveries, nil
}

func (c *Consumer) handleDelivery(ctx context.Context, delivery amqp.Delivery) {
	requeue, err := c.HandleUpload(ctx, delivery.Body)
	if err != nil {
		c.logger.Error("upload event rejected",
			logging.Bool("requeue", requeue),
			logging.Error(err))
		if nackErr := delivery.Nack(false, requeue); nackErr != nil {
			c.logger.Warn("nack failed", logging.Error(nackErr))
		}
		return
	}
	if ackErr := delivery.Ack(false); ackErr != nil {
		c.logger.Warn("ack failed", logging.Error(ackErr))
	}
}

// HandleUpload decodes and enqueues a single upload event. The returned bool
// indicates whether a failed event should be redelivered: malformed payloads
// are dead on arrival, enqueue errors are worth retrying.
func (c *Consumer) HandleUpload(ctx context.Context, body []byte) (bool, error) {
	var event UploadCompleted
	if err := json.Unmarshal(body, &event); err != nil {
		return false, fmt.Errorf("decode upload event: %w", err)
	}
	event.VideoID = strings.TrimSpace(event.VideoID)
	if event.VideoID == "" {
		return false, errors.New("upload event missing video_id")
	}
	sourceKey := strings.TrimSpace(event.ObjectKey)
	if sourceKey == "" {
		sourceKey = storage.RawUploadKey(event.VideoID)
	}

	video, created, err := c.store.Enqueue(ctx, event.VideoID, event.Title, sourceKey)
	if err != nil {
		return true, fmt.Errorf("enqueue video: %w", err)
	}
	if created {
		c.logger.Info("video enqueued",
			logging.String(logging.FieldVideoID, video.ID),
			logging.String("title", video.Title),
			logging.String("source_key", video.SourceKey))
	} else {
		c.logger.Debug("duplicate upload event ignored",
			logging.String(logging.FieldVideoID, event.VideoID))
	}
	return false, nil
}
