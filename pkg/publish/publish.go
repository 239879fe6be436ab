// Package publish announces completed forecast runs to downstream consumers.
package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// Event is emitted once per stored forecast run.
type Event struct {
	RunID       string    `json:"runId"`
	Series      string    `json:"series"`
	GeneratedAt time.Time `json:"generatedAt"`
	Nobs        int       `json:"nobs"`
	Horizon     int       `json:"horizon"`
	NumDraws    int       `json:"numDraws"`
	// Median is the 50% band of the forecast, one value per week.
	Median []float64 `json:"median,omitempty"`
}

// Publisher delivers forecast events.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Noop discards every event. It is used when no broker is configured.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }
func (Noop) Close() error                         { return nil }

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events as JSON messages keyed by series, so all runs of
// a series land on the same partition in order.
type KafkaPublisher struct {
	w   messageWriter
	log *slog.Logger
}

// NewKafkaPublisher creates a synchronous publisher for topic.
func NewKafkaPublisher(brokers []string, topic string, log *slog.Logger) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka publisher: at least one broker is required")
	}
	if topic == "" {
		return nil, errors.New("kafka publisher: topic is required")
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		Async:                  false,
		AllowAutoTopicCreation: true,
	}
	return newKafkaPublisher(w, log), nil
}

func newKafkaPublisher(w messageWriter, log *slog.Logger) *KafkaPublisher {
	if log == nil {
		log = slog.Default()
	}
	return &KafkaPublisher{w: w, log: log.With(slog.String("component", "kafka-publisher"))}
}

// Publish implements Publisher.
func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	msg := kafka.Message{Key: []byte(e.Series), Value: b, Time: e.GeneratedAt}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish run %s: %w", e.RunID, err)
	}
	p.log.Debug("published forecast event", "run_id", e.RunID, "series", e.Series)
	return nil
}

// Close flushes and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.w.Close()
}
