package intake

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/segmentio/kafka-go"
)

// KafkaSource reads event payloads from a Kafka topic using
// segmentio/kafka-go.
type KafkaSource struct {
	cfg      Config
	messages chan Message

	mu     sync.Mutex
	reader *kafka.Reader
}

// NewKafkaSource creates a source for the configured topic.
func NewKafkaSource(cfg Config) *KafkaSource {
	return &KafkaSource{
		cfg:      cfg,
		messages: make(chan Message, 100),
	}
}

// Start launches the reader goroutine.
func (s *KafkaSource) Start(ctx context.Context) error {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  strings.Split(s.cfg.Brokers, ","),
		Topic:    s.cfg.Topic,
		GroupID:  s.cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})

	s.mu.Lock()
	s.reader = reader
	s.mu.Unlock()

	go func() {
		defer close(s.messages)
		for {
			msg, err := reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				slog.Warn("Kafka read error", "topic", s.cfg.Topic, "error", err)
				continue
			}
			select {
			case s.messages <- Message{Topic: msg.Topic, Key: msg.Key, Value: msg.Value}:
			case <-ctx.Done():
				return
			}
		}
	}()

	slog.Info("Kafka intake started",
		"brokers", s.cfg.Brokers, "topic", s.cfg.Topic, "group", s.cfg.GroupID)
	return nil
}

// Messages returns the channel of consumed payloads.
func (s *KafkaSource) Messages() <-chan Message {
	return s.messages
}

// Close stops the reader.
func (s *KafkaSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reader != nil {
		return s.reader.Close()
	}
	return nil
}

// ChannelSource is an in-process Source backed by a Go channel, used by
// tests and the admin event-injection endpoint.
type ChannelSource struct {
	ch chan Message

	mu     sync.Mutex
	closed bool
}

// NewChannelSource creates an in-process source.
func NewChannelSource() *ChannelSource {
	return &ChannelSource{ch: make(chan Message, 100)}
}

// Start is a no-op for the channel source.
func (s *ChannelSource) Start(ctx context.Context) error { return nil }

// Messages returns the message channel.
func (s *ChannelSource) Messages() <-chan Message { return s.ch }

// Close closes the channel.
func (s *ChannelSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
	return nil
}

// Send pushes a payload into the source. Returns false once closed.
func (s *ChannelSource) Send(msg Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.ch <- msg
	return true
}
