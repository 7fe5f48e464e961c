package otp

import (
	"context"
	"time"
)

type EventType string

const (
	EventIssued         EventType = "issued"
	EventVerified       EventType = "verified"
	EventMismatch       EventType = "mismatch"
	EventExpired        EventType = "expired"
	EventExhausted      EventType = "exhausted"
	EventInvalidated    EventType = "invalidated"
	EventDeliveryFailed EventType = "delivery_failed"
)

// Event describes one ledger state transition. It never carries the code.
type Event struct {
	Type       EventType
	Recipient  string
	Attempts   int
	OccurredAt time.Time
}

// EventSink receives ledger events. Implementations must not block the caller
// for long; their failures never change a ledger result.
type EventSink interface {
	Record(ctx context.Context, e Event)
}

type nopSink struct{}

func (nopSink) Record(context.Context, Event) {}

// NopSink discards every event.
var NopSink EventSink = nopSink{}
