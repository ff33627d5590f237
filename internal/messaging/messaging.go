package messaging

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/servio/internal/config"
)

// HeaderEventType carries the event name so consumers can route without decoding.
const HeaderEventType = "event-type"

// Message represents a message consumed from the bus.
type Message struct {
	Topic   string
	Key     []byte
	Value   []byte
	Headers map[string]string
	Offset  int64
	Time    time.Time
}

// EventType returns the routing header, if present.
func (m Message) EventType() string {
	return m.Headers[HeaderEventType]
}

// Handler processes an inbound message.
type Handler func(context.Context, Message) error

// Client is the pluggable messaging abstraction.
type Client interface {
	Publish(ctx context.Context, key []byte, value []byte, headers map[string]string) error
	Consume(ctx context.Context, handler Handler) error
	Topic() string
}

// Module wires the messaging client.
var Module = fx.Provide(NewClient)

// NewNoop returns a client that drops published messages.
func NewNoop(topic string) Client {
	return noopClient{topic: topic}
}

type noopClient struct {
	topic string
}

func (n noopClient) Publish(context.Context, []byte, []byte, map[string]string) error { return nil }
func (n noopClient) Consume(ctx context.Context, handler Handler) error {
	<-ctx.Done()
	return ctx.Err()
}
func (n noopClient) Topic() string { return n.topic }

type kafkaClient struct {
	writer *kafka.Writer
	reader *kafka.Reader
	topic  string
	logger *zap.Logger
}

func (k *kafkaClient) Publish(ctx context.Context, key []byte, value []byte, headers map[string]string) error {
	msg := kafka.Message{Key: key, Value: value}
	for name, v := range headers {
		msg.Headers = append(msg.Headers, kafka.Header{Key: name, Value: []byte(v)})
	}
	return k.writer.WriteMessages(ctx, msg)
}

func (k *kafkaClient) Consume(ctx context.Context, handler Handler) error {
	for {
		msg, err := k.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			k.logger.Error("kafka fetch failed", zap.Error(err))

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
			continue
		}

		if err := handler(ctx, wrap(msg)); err != nil {
			// uncommitted messages are redelivered after a rebalance or restart
			k.logger.Error("message handler failed", zap.Error(err), zap.Int64("offset", msg.Offset))
			continue
		}

		if err := k.reader.CommitMessages(ctx, msg); err != nil {
			k.logger.Warn("commit failed", zap.Error(err))
		}
	}
}

func (k *kafkaClient) Topic() string { return k.topic }

func wrap(msg kafka.Message) Message {
	wrapped := Message{
		Topic:  msg.Topic,
		Key:    append([]byte(nil), msg.Key...),
		Value:  append([]byte(nil), msg.Value...),
		Offset: msg.Offset,
		Time:   msg.Time,
	}
	if len(msg.Headers) > 0 {
		wrapped.Headers = make(map[string]string, len(msg.Headers))
		for _, h := range msg.Headers {
			wrapped.Headers[h.Key] = string(h.Value)
		}
	}
	return wrapped
}

// NewClient builds a messaging client based on configuration.
func NewClient(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (Client, error) {
	if !cfg.Messaging.Enabled || cfg.Messaging.Driver == "noop" {
		logger.Info("messaging disabled; using noop client")
		return NewNoop(cfg.Messaging.Kafka.Topic), nil
	}

	switch cfg.Messaging.Driver {
	case "kafka":
		return newKafkaClient(lc, cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported messaging driver: %s", cfg.Messaging.Driver)
	}
}

func newKafkaClient(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (Client, error) {
	kcfg := cfg.Messaging.Kafka

	writer := &kafka.Writer{
		Addr:         kafka.TCP(kcfg.Brokers...),
		Topic:        kcfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
		Logger:       kafkaLogger{logger: logger},
		ErrorLogger:  kafkaLogger{logger: logger},
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        kcfg.Brokers,
		GroupID:        cfg.Messaging.ConsumerGroup,
		Topic:          kcfg.Topic,
		MinBytes:       kcfg.MinBytes,
		MaxBytes:       kcfg.MaxBytes,
		CommitInterval: kcfg.CommitInterval,
		Dialer: &kafka.Dialer{
			Timeout:  kcfg.ConnectTimeout,
			ClientID: kcfg.ClientID,
		},
	})

	client := &kafkaClient{writer: writer, reader: reader, topic: kcfg.Topic, logger: logger}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			logger.Info("closing kafka client")
			if err := writer.Close(); err != nil {
				return err
			}
			return reader.Close()
		},
	})

	return client, nil
}

type kafkaLogger struct {
	logger *zap.Logger
}

func (k kafkaLogger) Printf(msg string, args ...interface{}) {
	k.logger.Sugar().Debugf(msg, args...)
}
