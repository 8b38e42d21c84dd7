package ingest

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl/plain"
)

// Stream is the message-queue consumption contract: subscribe once, then
// fetch URL payloads until the context is cancelled.
type Stream interface {
	Subscribe(ctx context.Context) error
	Fetch(ctx context.Context) (string, error)
	Close() error
}

// KafkaConfig contains connection details for the URL topic.
type KafkaConfig struct {
	Brokers     []string
	Username    string
	Password    string
	Topic       string
	GroupPrefix string
}

// KafkaStream consumes one URL per message from a Kafka topic, reading
// from the earliest available offset. Each process gets its own consumer
// group so a fresh deployment replays the whole topic.
type KafkaStream struct {
	cfg    KafkaConfig
	dialer *kafka.Dialer
	reader *kafka.Reader
}

var _ Stream = (*KafkaStream)(nil)

func NewKafkaStream(cfg KafkaConfig) *KafkaStream {
	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}
	if cfg.Username != "" {
		dialer.SASLMechanism = plain.Mechanism{
			Username: cfg.Username,
			Password: cfg.Password,
		}
		dialer.TLS = &tls.Config{}
	}
	return &KafkaStream{cfg: cfg, dialer: dialer}
}

// Subscribe verifies the brokers are reachable and the topic exists
// before creating the reader, so connection problems surface here rather
// than inside the consume loop.
func (s *KafkaStream) Subscribe(ctx context.Context) error {
	if len(s.cfg.Brokers) == 0 {
		return fmt.Errorf("no kafka brokers configured")
	}

	conn, err := s.dialer.DialContext(ctx, "tcp", s.cfg.Brokers[0])
	if err != nil {
		return fmt.Errorf("connect to broker %s: %w", s.cfg.Brokers[0], err)
	}
	_, err = conn.ReadPartitions(s.cfg.Topic)
	conn.Close()
	if err != nil {
		return fmt.Errorf("subscribe to topic %s: %w", s.cfg.Topic, err)
	}

	s.reader = kafka.NewReader(kafka.ReaderConfig{
		Brokers:     s.cfg.Brokers,
		GroupID:     fmt.Sprintf("%s%d", s.cfg.GroupPrefix, time.Now().UnixNano()),
		Topic:       s.cfg.Topic,
		StartOffset: kafka.FirstOffset,
		Dialer:      s.dialer,
	})
	return nil
}

// Fetch blocks until the next message arrives and returns its payload.
func (s *KafkaStream) Fetch(ctx context.Context) (string, error) {
	msg, err := s.reader.ReadMessage(ctx)
	if err != nil {
		return "", err
	}
	return string(msg.Value), nil
}

func (s *KafkaStream) Close() error {
	if s.reader == nil {
		return nil
	}
	return s.reader.Close()
}
