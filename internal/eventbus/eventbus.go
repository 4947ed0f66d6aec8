package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
)

// Publisher is the write side of the bus.
type Publisher interface {
	Publish(ctx context.Context, topic string, event Event) error
}

type EventBus struct {
	writers map[string]*kafka.Writer
	brokers []string
	logger  *slog.Logger
}

func NewEventBus(brokers []string, logger *slog.Logger) *EventBus {
	if logger == nil {
		logger = slog.Default()
	}
	writers := make(map[string]*kafka.Writer)
	for _, topic := range append(append([]string(nil), OutboundTopics...), InboundTopics...) {
		writers[topic] = &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.LeastBytes{},
		}
	}
	return &EventBus{
		writers: writers,
		brokers: brokers,
		logger:  logger,
	}
}

// Validate checks the fields every event on the bus must carry.
func (e Event) Validate() error {
	if e.EventID == "" || e.EventType == "" || e.VehicleID == "" {
		return fmt.Errorf("event missing required fields: event_id=%q, event_type=%q, vehicle_id=%q",
			e.EventID, e.EventType, e.VehicleID)
	}
	return nil
}

func (eb *EventBus) Publish(ctx context.Context, topic string, event Event) error {
	if err := event.Validate(); err != nil {
		return err
	}
	w, ok := eb.writers[topic]
	if !ok {
		return fmt.Errorf("no writer for topic %s", topic)
	}
	msg, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	key := event.VehicleID
	if event.TrackID != nil {
		key += "/" + *event.TrackID
	}
	return w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: msg,
	})
}

// pollFrequency reads KAFKA_POLL_FREQUENCY_MS, defaulting to one second.
func pollFrequency(logger *slog.Logger) time.Duration {
	pollFreqStr := os.Getenv("KAFKA_POLL_FREQUENCY_MS")
	if pollFreqStr == "" {
		return time.Second
	}
	pollFreqMs, err := strconv.Atoi(pollFreqStr)
	if err != nil || pollFreqMs <= 0 {
		logger.Warn("invalid KAFKA_POLL_FREQUENCY_MS, using 1000ms", "value", pollFreqStr)
		return time.Second
	}
	return time.Millisecond * time.Duration(pollFreqMs)
}

// Subscribe reads topic until ctx is done, handing each decoded event to
// handler. Undecodable messages are logged and skipped.
func (eb *EventBus) Subscribe(ctx context.Context, topic, groupID string, handler func(Event)) {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  eb.brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  pollFrequency(eb.logger),
	})
	defer reader.Close()
	eb.logger.Info("subscribed", "topic", topic, "group", groupID)
	for {
		m, err := reader.ReadMessage(ctx)
		if err != nil {
			select {
			case <-ctx.Done():
				eb.logger.Info("subscription stopped", "topic", topic, "reason", ctx.Err())
				return
			default:
				eb.logger.Warn("read error", "topic", topic, "error", err)
			}
			continue
		}
		var event Event
		if err := json.Unmarshal(m.Value, &event); err != nil {
			eb.logger.Warn("parse error", "topic", topic, "key", string(m.Key), "error", err)
			continue
		}
		handler(event)
	}
}

func (eb *EventBus) Close() error {
	var errs []error
	for topic, writer := range eb.writers {
		if err := writer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close writer for topic %s: %w", topic, err))
		}
	}
	return errors.Join(errs...)
}

func (eb *EventBus) PublishPost(ctx context.Context, event Event) error {
	return eb.Publish(ctx, TopicHelmPosts, event)
}

func (eb *EventBus) PublishFunction(ctx context.Context, event Event) error {
	return eb.Publish(ctx, TopicHelmFunctions, event)
}

func (eb *EventBus) PublishWarning(ctx context.Context, event Event) error {
	return eb.Publish(ctx, TopicHelmWarnings, event)
}

func (eb *EventBus) PublishEncounter(ctx context.Context, event Event) error {
	return eb.Publish(ctx, TopicEncounters, event)
}
