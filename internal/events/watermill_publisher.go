package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v2/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

type PublisherConfig struct {
	Brokers []string
	Topic   string
}

// WatermillPublisher writes events to Kafka, or to an in-process GoChannel when no brokers are set
type WatermillPublisher struct {
	publisher message.Publisher
	// subscriber is only set for the in-process transport
	subscriber message.Subscriber
	topic      string
	logger     *slog.Logger
}

func NewWatermillPublisher(cfg PublisherConfig, logger *slog.Logger) (*WatermillPublisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	wmLogger := watermill.NewSlogLogger(logger)

	if len(cfg.Brokers) == 0 {
		ch := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, wmLogger)
		logger.Info("Event publisher using in-process channel", "topic", cfg.Topic)
		return &WatermillPublisher{publisher: ch, subscriber: ch, topic: cfg.Topic, logger: logger}, nil
	}

	pub, err := kafka.NewPublisher(kafka.PublisherConfig{
		Brokers:   cfg.Brokers,
		Marshaler: kafka.DefaultMarshaler{},
	}, wmLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka publisher: %w", err)
	}
	logger.Info("Event publisher using kafka", "brokers", cfg.Brokers, "topic", cfg.Topic)
	return &WatermillPublisher{publisher: pub, topic: cfg.Topic, logger: logger}, nil
}

func (p *WatermillPublisher) Publish(ctx context.Context, event *Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(event.ID, payload)
	msg.Metadata.Set("type", string(event.Type))
	msg.Metadata.Set("source", event.Source)
	msg.SetContext(ctx)

	if err := p.publisher.Publish(p.topic, msg); err != nil {
		return fmt.Errorf("failed to publish %s: %w", event.Type, err)
	}
	return nil
}

// Subscribe exposes the in-process stream; it fails on the kafka transport
func (p *WatermillPublisher) Subscribe(ctx context.Context) (<-chan *message.Message, error) {
	if p.subscriber == nil {
		return nil, fmt.Errorf("in-process subscription not available")
	}
	return p.subscriber.Subscribe(ctx, p.topic)
}

func (p *WatermillPublisher) Close() error {
	return p.publisher.Close()
}

// RunAuditLog logs every event seen on msgs until the channel closes
func RunAuditLog(msgs <-chan *message.Message, logger *slog.Logger) {
	for msg := range msgs {
		var event Event
		if err := json.Unmarshal(msg.Payload, &event); err != nil {
			logger.Warn("Dropping undecodable event", "message_id", msg.UUID, "error", err)
			msg.Ack()
			continue
		}
		logger.Info("Domain event", "event_id", event.ID, "type", event.Type, "data", event.Data)
		msg.Ack()
	}
}
