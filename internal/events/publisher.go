package events

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/yourorg/strategy-catalog/internal/model"
)

// messageWriter is the part of *kafka.Writer the publisher uses
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Topics names the topics events are published to
type Topics struct {
	StrategyEvents string
	BacktestEvents string
}

// Publisher publishes catalog and backtest events to Kafka
type Publisher struct {
	mu        sync.Mutex
	writers   map[string]messageWriter
	newWriter func(topic string) messageWriter

	topics Topics
	logger *zap.Logger
}

// Message represents a Kafka message to be sent
type Message struct {
	Key     string
	Value   interface{}
	Headers []kafka.Header
}

// NewPublisher creates a new Kafka event publisher
func NewPublisher(brokers []string, clientID string, topics Topics, logger *zap.Logger) *Publisher {
	p := &Publisher{
		writers: make(map[string]messageWriter),
		topics:  topics,
		logger:  logger,
	}
	p.newWriter = func(topic string) messageWriter {
		return &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchSize:    100,
			BatchTimeout: 10 * time.Millisecond,
			RequiredAcks: kafka.RequireOne,
			Async:        false,
			Transport: &kafka.Transport{
				ClientID: clientID,
			},
		}
	}
	return p
}

// ParseBrokers splits a comma separated broker list
func ParseBrokers(list string) []string {
	var brokers []string
	for _, b := range strings.Split(list, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// getWriter returns a Kafka writer for the specified topic
func (p *Publisher) getWriter(topic string) messageWriter {
	p.mu.Lock()
	defer p.mu.Unlock()

	if writer, exists := p.writers[topic]; exists {
		return writer
	}

	writer := p.newWriter(topic)
	p.writers[topic] = writer
	return writer
}

// PublishStrategyEvent publishes a catalog change keyed by strategy id
func (p *Publisher) PublishStrategyEvent(ctx context.Context, event model.StrategyEvent) error {
	return p.Publish(ctx, p.topics.StrategyEvents, Message{
		Key:     event.StrategyID.String(),
		Value:   event,
		Headers: []kafka.Header{{Key: "event-type", Value: []byte(event.Type)}},
	})
}

// PublishBacktestEvent publishes a settled backtest keyed by strategy id
func (p *Publisher) PublishBacktestEvent(ctx context.Context, event model.BacktestEvent) error {
	return p.Publish(ctx, p.topics.BacktestEvents, Message{
		Key:     event.StrategyID.String(),
		Value:   event,
		Headers: []kafka.Header{{Key: "event-type", Value: []byte(event.Type)}},
	})
}

// Publish sends a message to a Kafka topic
func (p *Publisher) Publish(ctx context.Context, topic string, msg Message) error {
	// Marshal the message value to JSON
	jsonValue, err := json.Marshal(msg.Value)
	if err != nil {
		p.logger.Error("Failed to marshal message",
			zap.String("topic", topic),
			zap.Error(err))
		return err
	}

	// Create Kafka message
	kafkaMsg := kafka.Message{
		Key:     []byte(msg.Key),
		Value:   jsonValue,
		Headers: msg.Headers,
		Time:    time.Now(),
	}

	// Write the message
	if err := p.getWriter(topic).WriteMessages(ctx, kafkaMsg); err != nil {
		p.logger.Error("Failed to publish message",
			zap.String("topic", topic),
			zap.String("key", msg.Key),
			zap.Error(err))
		return err
	}

	p.logger.Debug("Message published",
		zap.String("topic", topic),
		zap.String("key", msg.Key))

	return nil
}

// Close closes all Kafka writers
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for topic, writer := range p.writers {
		if err := writer.Close(); err != nil {
			p.logger.Error("Failed to close Kafka writer",
				zap.String("topic", topic),
				zap.Error(err))
		}
	}
	p.writers = make(map[string]messageWriter)
	return nil
}

// NopPublisher discards every event. It is used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) PublishStrategyEvent(context.Context, model.StrategyEvent) error { return nil }

func (NopPublisher) PublishBacktestEvent(context.Context, model.BacktestEvent) error { return nil }

func (NopPublisher) Close() error { return nil }
