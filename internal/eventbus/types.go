package eventbus

import (
	"time"

	"github.com/google/uuid"
)

type Event struct {
	EventID   string         `json:"event_id"`
	EventType string         `json:"event_type"`
	Timestamp time.Time      `json:"timestamp"`
	Source    string         `json:"source"`
	VehicleID string         `json:"vehicle_id"`
	TrackID   *string        `json:"track_id,omitempty"`
	Payload   map[string]any `json:"payload"`
}

func NewEvent(eventType, source, vehicleID string, payload map[string]any) Event {
	if payload == nil {
		payload = make(map[string]any)
	}
	return Event{
		EventID:   uuid.NewString(),
		EventType: eventType,
		Timestamp: time.Now().UTC(),
		Source:    source,
		VehicleID: vehicleID,
		Payload:   payload,
	}
}

// WithTrack tags the event with an obstacle track id.
func (e Event) WithTrack(id string) Event {
	e.TrackID = &id
	return e
}

// String returns a payload field as a string, empty when absent or not a string.
func (e Event) String(key string) string {
	s, _ := e.Payload[key].(string)
	return s
}

// Float returns a numeric payload field. JSON numbers decode as float64.
func (e Event) Float(key string) (float64, bool) {
	switch v := e.Payload[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
}
