// Package intake reads life-event notifications off an external stream
// and feeds them onto the internal bus.
package intake

import (
	"context"
	"log/slog"

	"github.com/pawdiary/pawdiary/internal/bus"
	"github.com/pawdiary/pawdiary/internal/event"
)

// Message is one raw payload read from a source.
type Message struct {
	Topic string
	Key   []byte
	Value []byte
}

// Source is a stream of raw event payloads. Implementations: KafkaSource
// for production, ChannelSource for tests and in-process injection.
type Source interface {
	Start(ctx context.Context) error
	Messages() <-chan Message
	Close() error
}

// Config holds event stream settings.
type Config struct {
	Enabled bool   `json:"enabled" envconfig:"ENABLED"`
	Brokers string `json:"brokers" envconfig:"BROKERS"`
	GroupID string `json:"groupId" envconfig:"GROUP_ID"`
	Topic   string `json:"topic" envconfig:"TOPIC"`
}

// DefaultConfig returns intake defaults. Disabled until brokers are
// configured.
func DefaultConfig() Config {
	return Config{
		Enabled: false,
		Brokers: "localhost:9092",
		GroupID: "pawdiary",
		Topic:   "pawdiary.events",
	}
}

// Pump decodes payloads from a source and publishes them as events.
type Pump struct {
	source Source
	bus    *bus.EventBus
}

// NewPump wires a source to the event bus.
func NewPump(source Source, b *bus.EventBus) *Pump {
	return &Pump{source: source, bus: b}
}

// Run consumes the source until the context is cancelled or the source
// channel closes. Undecodable payloads are logged and dropped; the stream
// delivers at least once and the quota gate already dedupes per
// category and day, so redelivery is harmless.
func (p *Pump) Run(ctx context.Context) error {
	if err := p.source.Start(ctx); err != nil {
		return err
	}
	defer p.source.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-p.source.Messages():
			if !ok {
				slog.Info("Intake source closed")
				return nil
			}
			ev, err := event.Decode(msg.Value)
			if err != nil {
				slog.Warn("Dropping undecodable event payload",
					"topic", msg.Topic, "error", err)
				continue
			}
			p.bus.PublishEvent(ev)
		}
	}
}
