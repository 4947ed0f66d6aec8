// Package encounter keeps the history of finished obstacle encounters.
package encounter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"avoidance-core/internal/behavior"
)

// Record is one finished encounter between a vehicle and an obstacle.
type Record struct {
	ID        string `json:"id"`
	VehicleID string `json:"vehicle_id"`
	Behavior  string `json:"behavior"`
	behavior.Encounter
	Events    []behavior.Event `json:"events,omitempty"`
	StartedAt time.Time        `json:"started_at"`
	EndedAt   time.Time        `json:"ended_at"`
}

// NewRecord stamps a summary with a fresh id.
func NewRecord(vehicle, bhv string, sum behavior.Encounter, events []behavior.Event, started, ended time.Time) Record {
	return Record{
		ID:        uuid.NewString(),
		VehicleID: vehicle,
		Behavior:  bhv,
		Encounter: sum,
		Events:    append([]behavior.Event(nil), events...),
		StartedAt: started.UTC(),
		EndedAt:   ended.UTC(),
	}
}

// ObstacleKey is the obstacle id, falling back to the polygon label.
func (r Record) ObstacleKey() string {
	if r.ObstacleID != "" {
		return r.ObstacleID
	}
	return r.Label
}

// Validate checks the fields every sink needs.
func (r Record) Validate() error {
	if r.ID == "" || r.VehicleID == "" || r.ObstacleKey() == "" {
		return fmt.Errorf("encounter missing required fields: id=%q, vehicle_id=%q, obstacle=%q",
			r.ID, r.VehicleID, r.ObstacleKey())
	}
	return nil
}

// Recorder stores finished encounters.
type Recorder interface {
	Record(ctx context.Context, r Record) error
}

// Multi fans a record out to every recorder and joins their errors.
type Multi []Recorder

func (m Multi) Record(ctx context.Context, r Record) error {
	var errs []error
	for _, rec := range m {
		if err := rec.Record(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Discard drops every record.
type Discard struct{}

func (Discard) Record(context.Context, Record) error { return nil }
