package eventbus

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPollFrequency(t *testing.T) {
	t.Setenv("KAFKA_POLL_FREQUENCY_MS", "")
	assert.Equal(t, time.Second, pollFrequency(slog.Default()))

	t.Setenv("KAFKA_POLL_FREQUENCY_MS", "2000")
	assert.Equal(t, 2*time.Second, pollFrequency(slog.Default()))

	t.Setenv("KAFKA_POLL_FREQUENCY_MS", "fast")
	assert.Equal(t, time.Second, pollFrequency(slog.Default()))
}

func TestNewEventBusWritesEveryTopic(t *testing.T) {
	eb := NewEventBus([]string{"localhost:9092"}, nil)
	for _, topic := range append(append([]string(nil), InboundTopics...), OutboundTopics...) {
		assert.Contains(t, eb.writers, topic)
	}
	assert.NoError(t, eb.Close())
}

func TestPublishRejectsIncompleteEvents(t *testing.T) {
	eb := NewEventBus([]string{"localhost:9092"}, nil)
	defer eb.Close()

	err := eb.Publish(context.Background(), TopicHelmPosts, Event{EventType: TypeHelmPost})
	assert.ErrorContains(t, err, "missing required fields")

	ev := NewEvent(TypeHelmPost, "avoidhelm", "alpha", nil)
	err = eb.Publish(context.Background(), "no_such_topic", ev)
	assert.ErrorContains(t, err, "no writer")
}

func TestEventRoundTrip(t *testing.T) {
	ev := NewEvent(TypeNavReport, "nav", "alpha", map[string]any{"x": 12.5, "id": "ob_1"}).WithTrack("ob_1")
	require.NoError(t, ev.Validate())

	raw, err := json.Marshal(ev)
	require.NoError(t, err)
	var back Event
	require.NoError(t, json.Unmarshal(raw, &back))

	x, ok := back.Float("x")
	assert.True(t, ok)
	assert.Equal(t, 12.5, x)
	assert.Equal(t, "ob_1", back.String("id"))
	assert.Equal(t, "", back.String("x"))
	require.NotNil(t, back.TrackID)
	assert.Equal(t, "ob_1", *back.TrackID)
}
