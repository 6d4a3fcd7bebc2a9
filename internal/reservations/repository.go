package reservations

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/equiprent/equiprent-backend/pkg/db/models"
	"github.com/equiprent/equiprent-backend/pkg/enums"
	"github.com/equiprent/equiprent-backend/pkg/pagination"
)

// ReservationRepository defines persistence operations for reservations.
type ReservationRepository interface {
	Create(context.Context, *models.InventoryReservation) error
	Update(context.Context, *models.InventoryReservation) error
	Delete(context.Context, uuid.UUID) error
	FindByID(ctx context.Context, inventoryID, reservationID uuid.UUID) (*models.InventoryReservation, error)
	ListByInventory(ctx context.Context, inventoryID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.InventoryReservation, error)
	ListCommitted(context.Context, uuid.UUID) ([]models.InventoryReservation, error)
	ListStalePending(ctx context.Context, cutoff time.Time) ([]models.InventoryReservation, error)
}

// Repository wires reservation persistence to GORM.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// Create inserts the reservation.
func (r *Repository) Create(ctx context.Context, res *models.InventoryReservation) error {
	if res.ID == uuid.Nil {
		res.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(res).Error
}

// Update saves all reservation fields.
func (r *Repository) Update(ctx context.Context, res *models.InventoryReservation) error {
	return r.db.WithContext(ctx).Save(res).Error
}

// Delete removes the row permanently. Administrative use only; normal flows
// cancel instead.
func (r *Repository) Delete(ctx context.Context, reservationID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Delete(&models.InventoryReservation{}, "id = ?", reservationID).Error
}

// FindByID loads a reservation scoped to its inventory item.
func (r *Repository) FindByID(ctx context.Context, inventoryID, reservationID uuid.UUID) (*models.InventoryReservation, error) {
	var res models.InventoryReservation
	err := r.db.WithContext(ctx).
		First(&res, "id = ? AND inventory_id = ?", reservationID, inventoryID).Error
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// ListByInventory returns a page of the item's reservations, newest first.
// The cursor pins the page boundary to (created_at, id) so new bookings do
// not shift later pages.
func (r *Repository) ListByInventory(ctx context.Context, inventoryID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.InventoryReservation, error) {
	q := r.db.WithContext(ctx).
		Where("inventory_id = ?", inventoryID)
	if cursor != nil {
		q = q.Where(
			"created_at < ? OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}
	var rows []models.InventoryReservation
	err := q.
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// ListCommitted returns the reservations currently holding capacity
// (PENDING, CONFIRMED or ACTIVE).
func (r *Repository) ListCommitted(ctx context.Context, inventoryID uuid.UUID) ([]models.InventoryReservation, error) {
	var rows []models.InventoryReservation
	err := r.db.WithContext(ctx).
		Where("inventory_id = ? AND status IN ?", inventoryID, enums.CommittedReservationStatuses).
		Order("start_date ASC").
		Find(&rows).Error
	return rows, err
}

// CountCommitted returns how many reservations currently hold capacity
// against the item.
func (r *Repository) CountCommitted(ctx context.Context, inventoryID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.InventoryReservation{}).
		Where("inventory_id = ? AND status IN ?", inventoryID, enums.CommittedReservationStatuses).
		Count(&count).Error
	return count, err
}

// ListStalePending returns PENDING reservations whose start date passed the
// cutoff. Used by the expiry sweep.
func (r *Repository) ListStalePending(ctx context.Context, cutoff time.Time) ([]models.InventoryReservation, error) {
	var rows []models.InventoryReservation
	err := r.db.WithContext(ctx).
		Where("status = ? AND start_date < ?", enums.ReservationPending, cutoff).
		Order("start_date ASC").
		Find(&rows).Error
	return rows, err
}
