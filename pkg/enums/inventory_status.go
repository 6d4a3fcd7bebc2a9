package enums

import "fmt"

// InventoryStatus reflects the availability of an inventory item. The first
// three values are derived from quantity counters; MAINTENANCE and RETIRED
// are set explicitly by operators and override the derived value.
type InventoryStatus string

const (
	InventoryAvailable          InventoryStatus = "AVAILABLE"
	InventoryPartiallyAvailable InventoryStatus = "PARTIALLY_AVAILABLE"
	InventoryUnavailable        InventoryStatus = "UNAVAILABLE"
	InventoryMaintenance        InventoryStatus = "MAINTENANCE"
	InventoryRetired            InventoryStatus = "RETIRED"
)

var validInventoryStatuses = []InventoryStatus{
	InventoryAvailable,
	InventoryPartiallyAvailable,
	InventoryUnavailable,
	InventoryMaintenance,
	InventoryRetired,
}

// String implements fmt.Stringer.
func (s InventoryStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known InventoryStatus.
func (s InventoryStatus) IsValid() bool {
	for _, candidate := range validInventoryStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsForced reports whether the status is operator-set rather than derived
// from quantity counters.
func (s InventoryStatus) IsForced() bool {
	return s == InventoryMaintenance || s == InventoryRetired
}

// ParseInventoryStatus converts raw input into an InventoryStatus.
func ParseInventoryStatus(value string) (InventoryStatus, error) {
	for _, candidate := range validInventoryStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid inventory status %q", value)
}
