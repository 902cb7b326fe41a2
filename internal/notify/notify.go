package notify

// #region imports
import (
	"context"
	"log"
	"time"
)

// #endregion imports

// #region types

// EventType labels downstream alert events.
type EventType string

const (
	EventThreatCreated   EventType = "threat_created"
	EventThreatEscalated EventType = "threat_escalated"
	EventRequestCreated  EventType = "collection_request_created"
)

// Event is one alert pushed to downstream consumers.
type Event struct {
	Type    EventType
	Subject string // threat or request id
	Level   string // severity or urgency label
	Message string
	At      time.Time
}

// Notifier receives pipeline events. Failures must never fail a
// reevaluation; the caller logs and moves on.
type Notifier interface {
	Notify(ctx context.Context, e Event) error
}

// #endregion types

// #region log-notifier

// LogNotifier writes events to the process log. Default when no downstream
// channel is wired.
type LogNotifier struct{}

// Notify implements Notifier.
func (LogNotifier) Notify(_ context.Context, e Event) error {
	log.Printf("[NOTIFY] %s subject=%s level=%s: %s", e.Type, e.Subject, e.Level, e.Message)
	return nil
}

// #endregion log-notifier
