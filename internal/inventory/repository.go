package inventory

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/equiprent/equiprent-backend/pkg/db/models"
	"github.com/equiprent/equiprent-backend/pkg/enums"
)

// ItemRepository defines persistence operations for inventory items.
type ItemRepository interface {
	Create(context.Context, *models.InventoryItem) error
	Update(context.Context, *models.InventoryItem) error
	FindByID(context.Context, uuid.UUID) (*models.InventoryItem, error)
	ListAll(context.Context) ([]models.InventoryItem, error)
	ListByCategory(context.Context, enums.EquipmentCategory) ([]models.InventoryItem, error)
	ListByStatus(context.Context, enums.InventoryStatus) ([]models.InventoryItem, error)
	ListAvailable(context.Context) ([]models.InventoryItem, error)
	Search(context.Context, string) ([]models.InventoryItem, error)
	UpdateCounters(ctx context.Context, id uuid.UUID, available, reserved int, status enums.InventoryStatus) error
	SoftDelete(context.Context, uuid.UUID) error
	ExistsBySerial(context.Context, string) (bool, error)
}

// Repository wires inventory item persistence to GORM.
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

// Create inserts the item.
func (r *Repository) Create(ctx context.Context, item *models.InventoryItem) error {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(item).Error
}

// Update saves all item fields.
func (r *Repository) Update(ctx context.Context, item *models.InventoryItem) error {
	return r.db.WithContext(ctx).Save(item).Error
}

// FindByID loads a live (non-deleted) item.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.InventoryItem, error) {
	var item models.InventoryItem
	err := r.db.WithContext(ctx).
		First(&item, "id = ? AND is_deleted = ?", id, false).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// ListAll returns every live item ordered by creation time.
func (r *Repository) ListAll(ctx context.Context) ([]models.InventoryItem, error) {
	var items []models.InventoryItem
	err := r.db.WithContext(ctx).
		Where("is_deleted = ?", false).
		Order("created_at DESC").
		Find(&items).Error
	return items, err
}

// ListByCategory returns live items in the given category.
func (r *Repository) ListByCategory(ctx context.Context, category enums.EquipmentCategory) ([]models.InventoryItem, error) {
	var items []models.InventoryItem
	err := r.db.WithContext(ctx).
		Where("is_deleted = ? AND category = ?", false, category).
		Order("created_at DESC").
		Find(&items).Error
	return items, err
}

// ListByStatus matches against the effective status: a forced value when set,
// the derived value otherwise.
func (r *Repository) ListByStatus(ctx context.Context, status enums.InventoryStatus) ([]models.InventoryItem, error) {
	var items []models.InventoryItem
	err := r.db.WithContext(ctx).
		Where("is_deleted = ?", false).
		Where("forced_status = ? OR (forced_status IS NULL AND status = ?)", status, status).
		Order("created_at DESC").
		Find(&items).Error
	return items, err
}

// ListAvailable returns items whose effective status allows new reservations.
func (r *Repository) ListAvailable(ctx context.Context) ([]models.InventoryItem, error) {
	var items []models.InventoryItem
	err := r.db.WithContext(ctx).
		Where("is_deleted = ? AND forced_status IS NULL", false).
		Where("status IN ?", []enums.InventoryStatus{enums.InventoryAvailable, enums.InventoryPartiallyAvailable}).
		Order("created_at DESC").
		Find(&items).Error
	return items, err
}

// Search matches the term case-insensitively against name, description and model.
func (r *Repository) Search(ctx context.Context, term string) ([]models.InventoryItem, error) {
	like := "%" + strings.ToLower(term) + "%"
	var items []models.InventoryItem
	err := r.db.WithContext(ctx).
		Where("is_deleted = ?", false).
		Where("LOWER(name) LIKE ? OR LOWER(description) LIKE ? OR LOWER(model) LIKE ?", like, like, like).
		Order("created_at DESC").
		Find(&items).Error
	return items, err
}

// UpdateCounters writes the re-synchronized quantity view. ForcedStatus is
// deliberately untouched.
func (r *Repository) UpdateCounters(ctx context.Context, id uuid.UUID, available, reserved int, status enums.InventoryStatus) error {
	return r.db.WithContext(ctx).Model(&models.InventoryItem{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"available_quantity": available,
			"reserved_quantity":  reserved,
			"status":             status,
		}).Error
}

// SoftDelete retires the row without destroying reservation history.
func (r *Repository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&models.InventoryItem{}).
		Where("id = ?", id).
		Update("is_deleted", true).Error
}

// ExistsBySerial reports whether a live item already claims the serial number.
func (r *Repository) ExistsBySerial(ctx context.Context, serial string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.InventoryItem{}).
		Where("serial_number = ? AND is_deleted = ?", serial, false).
		Count(&count).Error
	return count > 0, err
}
