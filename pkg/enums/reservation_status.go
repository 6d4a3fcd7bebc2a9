package enums

import "fmt"

// ReservationStatus tracks a reservation through its lifecycle:
// PENDING -> CONFIRMED -> ACTIVE -> COMPLETED, with CANCELLED reachable
// from any of the first three.
type ReservationStatus string

const (
	ReservationPending   ReservationStatus = "PENDING"
	ReservationConfirmed ReservationStatus = "CONFIRMED"
	ReservationActive    ReservationStatus = "ACTIVE"
	ReservationCompleted ReservationStatus = "COMPLETED"
	ReservationCancelled ReservationStatus = "CANCELLED"
)

var validReservationStatuses = []ReservationStatus{
	ReservationPending,
	ReservationConfirmed,
	ReservationActive,
	ReservationCompleted,
	ReservationCancelled,
}

// CommittedReservationStatuses are the states that hold capacity against an
// item's quantity counters.
var CommittedReservationStatuses = []ReservationStatus{
	ReservationPending,
	ReservationConfirmed,
	ReservationActive,
}

// String implements fmt.Stringer.
func (s ReservationStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known ReservationStatus.
func (s ReservationStatus) IsValid() bool {
	for _, candidate := range validReservationStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsCommitted reports whether the status holds capacity.
func (s ReservationStatus) IsCommitted() bool {
	for _, candidate := range CommittedReservationStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are allowed.
func (s ReservationStatus) IsTerminal() bool {
	return s == ReservationCompleted || s == ReservationCancelled
}

// CanTransitionTo reports whether the lifecycle permits moving from s to next.
func (s ReservationStatus) CanTransitionTo(next ReservationStatus) bool {
	switch s {
	case ReservationPending:
		return next == ReservationConfirmed || next == ReservationCancelled
	case ReservationConfirmed:
		return next == ReservationActive || next == ReservationCancelled
	case ReservationActive:
		return next == ReservationCompleted || next == ReservationCancelled
	default:
		return false
	}
}

// ParseReservationStatus converts raw input into a ReservationStatus.
func ParseReservationStatus(value string) (ReservationStatus, error) {
	for _, candidate := range validReservationStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid reservation status %q", value)
}
