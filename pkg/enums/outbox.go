package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateInventoryItem OutboxAggregateType = "inventory_item"
	AggregateReservation   OutboxAggregateType = "reservation"
	AggregateUser          OutboxAggregateType = "user"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateInventoryItem,
	AggregateReservation,
	AggregateUser,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventItemCreated          OutboxEventType = "item_created"
	EventItemUpdated          OutboxEventType = "item_updated"
	EventItemDeleted          OutboxEventType = "item_deleted"
	EventItemMaintenanceSet   OutboxEventType = "item_maintenance_set"
	EventItemRetired          OutboxEventType = "item_retired"
	EventReservationCreated   OutboxEventType = "reservation_created"
	EventReservationConfirmed OutboxEventType = "reservation_confirmed"
	EventReservationStarted   OutboxEventType = "reservation_started"
	EventReservationCompleted OutboxEventType = "reservation_completed"
	EventReservationCancelled OutboxEventType = "reservation_cancelled"
	EventReservationExpired   OutboxEventType = "reservation_expired"
	EventUserRegistered       OutboxEventType = "user_registered"
)

var validOutboxEventTypes = []OutboxEventType{
	EventItemCreated,
	EventItemUpdated,
	EventItemDeleted,
	EventItemMaintenanceSet,
	EventItemRetired,
	EventReservationCreated,
	EventReservationConfirmed,
	EventReservationStarted,
	EventReservationCompleted,
	EventReservationCancelled,
	EventReservationExpired,
	EventUserRegistered,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
