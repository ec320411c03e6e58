package types

// EventType names a broadcast event.
type EventType string

const (
	EventConnectionStatus  EventType = "connection_status"
	EventAccountUpdated    EventType = "account_updated"
	EventPositionUpdated   EventType = "position_updated"
	EventPositionClosed    EventType = "position_closed"
	EventOrderCreated      EventType = "order_created"
	EventOrderFilled       EventType = "order_filled"
	EventOrderCancelled    EventType = "order_cancelled"
	EventSignalGenerated   EventType = "signal_generated"
	EventSignalExecuted    EventType = "signal_executed"
	EventSignalSkipped     EventType = "signal_skipped"
	EventSignalError       EventType = "signal_error"
	EventConfigChanged     EventType = "config_changed"
	EventValidationWarning EventType = "validation_warning"
)

// Event is an unsolicited notification pushed to every open connection.
type Event struct {
	Type EventType `json:"type"`
	Data any       `json:"data"`
}

// NewEvent creates an Event.
func NewEvent(eventType EventType, data any) Event {
	return Event{Type: eventType, Data: data}
}
