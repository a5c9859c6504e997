package interfaces

import "context"

// EventType names one kind of bus event
type EventType string

// Job lifecycle and quality events. The pipeline engine and the job API are
// the publishers; the WebSocket handler subscribes to all of them.
const (
	// EventJobCreated fires when a submission is accepted
	EventJobCreated EventType = "job_created"
	// EventJobProgress fires on every stage transition while a job runs
	EventJobProgress EventType = "job_progress"
	// EventJobCompleted fires when a job reaches completed
	EventJobCompleted EventType = "job_completed"
	// EventJobFailed fires when a job reaches failed
	EventJobFailed EventType = "job_failed"
	// EventJobCancelled fires when a cancel request lands
	EventJobCancelled EventType = "job_cancelled"
	// EventQualityAlert fires when the quality monitor raises an alert
	EventQualityAlert EventType = "quality_alert"
	// EventSimilarityAlert fires when a batch similarity check trips
	EventSimilarityAlert EventType = "similarity_alert"
)

// Event is one bus message. Payload is typically a map ready for JSON
// encoding on the WebSocket path.
type Event struct {
	Type    EventType
	Payload interface{}
}

// EventHandler consumes one event. Errors from async delivery are logged by
// the bus, not surfaced to the publisher.
type EventHandler func(ctx context.Context, event Event) error

// EventService is the in-process pub/sub bus
type EventService interface {
	Subscribe(eventType EventType, handler EventHandler) error
	Unsubscribe(eventType EventType, handler EventHandler) error

	// Publish delivers asynchronously and returns immediately
	Publish(ctx context.Context, event Event) error
	// PublishSync delivers in subscription order and returns handler errors
	PublishSync(ctx context.Context, event Event) error

	Close() error
}
