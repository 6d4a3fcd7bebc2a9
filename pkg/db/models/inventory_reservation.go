package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/equiprent/equiprent-backend/pkg/enums"
)

// InventoryReservation holds a quantity of an item for a rental window.
// The window is half-open: [StartDate, EndDate).
type InventoryReservation struct {
	ID          uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	InventoryID uuid.UUID               `gorm:"column:inventory_id;type:uuid;not null;index:idx_reservations_inventory"`
	UserID      uuid.UUID               `gorm:"column:user_id;type:uuid;not null;index:idx_reservations_user"`
	RentalID    *uuid.UUID              `gorm:"column:rental_id;type:uuid"`
	Quantity    int                     `gorm:"column:quantity;not null"`
	StartDate   time.Time               `gorm:"column:start_date;not null"`
	EndDate     time.Time               `gorm:"column:end_date;not null"`
	Status      enums.ReservationStatus `gorm:"column:status;type:reservation_status;not null"`
	Notes       *string                 `gorm:"column:notes"`
	CreatedAt   time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}

// Overlaps reports whether the reservation window intersects [start, end).
// Touching boundaries do not overlap.
func (r *InventoryReservation) Overlaps(start, end time.Time) bool {
	return r.StartDate.Before(end) && r.EndDate.After(start)
}
