package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/equiprent/equiprent-backend/pkg/enums"
)

// InventoryItem is a stocked piece of rentable equipment. Quantity counters
// (available/reserved) are a materialized view over committed reservations
// and are kept consistent by the reservation lifecycle.
type InventoryItem struct {
	ID           uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	Name         string                  `gorm:"column:name;not null"`
	Description  string                  `gorm:"column:description;not null"`
	Category     enums.EquipmentCategory `gorm:"column:category;type:equipment_category;not null"`
	Model        string                  `gorm:"column:model;not null"`
	SerialNumber string                  `gorm:"column:serial_number;not null;uniqueIndex:idx_inventory_items_serial"`

	TotalQuantity     int `gorm:"column:total_quantity;not null"`
	AvailableQuantity int `gorm:"column:available_quantity;not null;default:0"`
	ReservedQuantity  int `gorm:"column:reserved_quantity;not null;default:0"`

	DailyRate  decimal.Decimal  `gorm:"column:daily_rate;type:numeric(12,2);not null"`
	HourlyRate *decimal.Decimal `gorm:"column:hourly_rate;type:numeric(12,2)"`
	Currency   enums.Currency   `gorm:"column:currency;type:currency;not null;default:LKR"`

	// Status holds the value derived from quantity counters. ForcedStatus,
	// when set, overrides it (MAINTENANCE or RETIRED) without destroying
	// the derived value underneath.
	Status       enums.InventoryStatus  `gorm:"column:status;type:inventory_status;not null"`
	ForcedStatus *enums.InventoryStatus `gorm:"column:forced_status;type:inventory_status"`

	Location   string     `gorm:"column:location;not null"`
	SupplierID *uuid.UUID `gorm:"column:supplier_id;type:uuid"`

	ConditionRating     int        `gorm:"column:condition_rating;not null;default:5"`
	LastMaintenanceDate *time.Time `gorm:"column:last_maintenance_date"`
	NextMaintenanceDate *time.Time `gorm:"column:next_maintenance_date"`

	Specifications json.RawMessage `gorm:"column:specifications;type:jsonb"`
	Images         pq.StringArray  `gorm:"column:images;type:text[]"`
	Tags           pq.StringArray  `gorm:"column:tags;type:text[]"`

	MinRentalHours int `gorm:"column:min_rental_hours;not null;default:1"`
	MaxRentalHours int `gorm:"column:max_rental_hours;not null;default:8760"`

	IsDeleted bool      `gorm:"column:is_deleted;not null;default:false"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// EffectiveStatus returns the operator override when present, otherwise the
// derived status.
func (i *InventoryItem) EffectiveStatus() enums.InventoryStatus {
	if i.ForcedStatus != nil {
		return *i.ForcedStatus
	}
	return i.Status
}

// DerivedStatus computes the counter-based status for the given committed
// peak demand.
func DerivedStatus(total, available int) enums.InventoryStatus {
	switch {
	case available <= 0:
		return enums.InventoryUnavailable
	case available < total:
		return enums.InventoryPartiallyAvailable
	default:
		return enums.InventoryAvailable
	}
}
