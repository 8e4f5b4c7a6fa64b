// Package event provides domain event recording for fixture operations.
// Events are written as activity entries via the activity.Store interface,
// then published to the in-process event bus for downstream consumers.
package event

import (
	"context"

	"github.com/matthewbaird/jigtrack/internal/activity"
)

// Recorder writes domain events to the activity store.
type Recorder interface {
	Record(ctx context.Context, evt DomainEvent) error
}

// Publisher sends domain events to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, evt DomainEvent)
}

// ActivityRecorder implements Recorder by turning a DomainEvent into an
// activity entry and writing it via activity.Store. If a Publisher is set,
// the event is also published after the store write succeeds.
type ActivityRecorder struct {
	store activity.Store
	bus   Publisher
}

// NewActivityRecorder creates a new ActivityRecorder backed by the given store.
func NewActivityRecorder(store activity.Store) *ActivityRecorder {
	return &ActivityRecorder{store: store}
}

// SetPublisher attaches an event bus. Events are published after store writes.
func (r *ActivityRecorder) SetPublisher(p Publisher) {
	r.bus = p
}

// Record writes evt to the activity store and publishes it.
func (r *ActivityRecorder) Record(ctx context.Context, evt DomainEvent) error {
	entry := activity.Entry{
		EventID:    evt.ID,
		EventType:  evt.EventType,
		OccurredAt: evt.OccurredAt,
		User:       evt.User,
		JigID:      evt.JigID,
		Summary:    evt.Summary,
		Category:   evt.Category,
		Weight:     evt.Weight,
		Payload:    evt.Payload,
	}
	if err := r.store.Write(ctx, entry); err != nil {
		return err
	}

	if r.bus != nil {
		r.bus.Publish(ctx, evt)
	}
	return nil
}
