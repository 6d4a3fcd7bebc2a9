package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/equiprent/equiprent-backend/internal/locks"
	"github.com/equiprent/equiprent-backend/pkg/db/models"
	"github.com/equiprent/equiprent-backend/pkg/enums"
	pkgerrors "github.com/equiprent/equiprent-backend/pkg/errors"
	"github.com/equiprent/equiprent-backend/pkg/logger"
	"github.com/equiprent/equiprent-backend/pkg/outbox"
)

const searchTermMinLength = 2

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// reservationCounter reports how many reservations currently hold capacity
// on an item. Implemented by the reservations repository.
type reservationCounter interface {
	CountCommitted(ctx context.Context, inventoryID uuid.UUID) (int64, error)
}

// Service manages the equipment catalog: CRUD, search and the operator
// status overrides. Capacity-sensitive mutations take the same per-item
// lock the reservation lifecycle uses.
type Service struct {
	tx           txRunner
	repo         *Repository
	reservations reservationCounter
	locker       locks.ItemLocker
	publisher    outboxPublisher
	logg         *logger.Logger
	now          func() time.Time
}

// NewService validates dependencies and builds the catalog service.
func NewService(
	tx txRunner,
	repo *Repository,
	reservations reservationCounter,
	locker locks.ItemLocker,
	publisher outboxPublisher,
	logg *logger.Logger,
) (*Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if reservations == nil {
		return nil, fmt.Errorf("reservation counter required")
	}
	if locker == nil {
		return nil, fmt.Errorf("item locker required")
	}
	return &Service{
		tx:           tx,
		repo:         repo,
		reservations: reservations,
		locker:       locker,
		publisher:    publisher,
		logg:         logg,
		now:          time.Now,
	}, nil
}

// CreateItemInput carries the fields accepted when registering equipment.
type CreateItemInput struct {
	Name           string
	Description    string
	Category       enums.EquipmentCategory
	Model          string
	SerialNumber   string
	TotalQuantity  int
	DailyRate      decimal.Decimal
	HourlyRate     *decimal.Decimal
	Currency       enums.Currency
	Location       string
	SupplierID     *uuid.UUID
	Specifications json.RawMessage
	Images         []string
	Tags           []string
	MinRentalHours *int
	MaxRentalHours *int
	Actor          *outbox.ActorRef
}

// UpdateItemInput carries catalog fields that may change after creation.
// Nil leaves the field unchanged. Counters and status are never set
// directly; TotalQuantity changes adjust availability by the difference.
type UpdateItemInput struct {
	Name                *string
	Description         *string
	Category            *enums.EquipmentCategory
	Model               *string
	TotalQuantity       *int
	DailyRate           *decimal.Decimal
	HourlyRate          *decimal.Decimal
	Location            *string
	ConditionRating     *int
	NextMaintenanceDate *time.Time
	Specifications      json.RawMessage
	Images              []string
	Tags                []string
	MinRentalHours      *int
	MaxRentalHours      *int
	Actor               *outbox.ActorRef
}

// Create registers a new piece of equipment. All units start available.
func (s *Service) Create(ctx context.Context, input CreateItemInput) (*models.InventoryItem, error) {
	if err := validateCreate(input); err != nil {
		return nil, err
	}

	exists, err := s.repo.ExistsBySerial(ctx, input.SerialNumber)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, pkgerrors.New(pkgerrors.CodeConflict,
			fmt.Sprintf("serial number %s is already registered", input.SerialNumber))
	}

	item := &models.InventoryItem{
		ID:                uuid.New(),
		Name:              input.Name,
		Description:       input.Description,
		Category:          input.Category,
		Model:             input.Model,
		SerialNumber:      input.SerialNumber,
		TotalQuantity:     input.TotalQuantity,
		AvailableQuantity: input.TotalQuantity,
		ReservedQuantity:  0,
		DailyRate:         input.DailyRate,
		HourlyRate:        input.HourlyRate,
		Currency:          input.Currency,
		Status:            enums.InventoryAvailable,
		Location:          input.Location,
		SupplierID:        input.SupplierID,
		ConditionRating:   5,
		Specifications:    input.Specifications,
		Images:            pq.StringArray(input.Images),
		Tags:              pq.StringArray(input.Tags),
		MinRentalHours:    1,
		MaxRentalHours:    8760,
	}
	if input.Currency == "" {
		item.Currency = enums.CurrencyLKR
	}
	if input.MinRentalHours != nil {
		item.MinRentalHours = *input.MinRentalHours
	}
	if input.MaxRentalHours != nil {
		item.MaxRentalHours = *input.MaxRentalHours
	}
	if item.MaxRentalHours < item.MinRentalHours {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "max rental hours cannot be below min rental hours")
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.Create(ctx, item); err != nil {
			return err
		}
		return s.emit(ctx, tx, enums.EventItemCreated, item, input.Actor)
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		s.logg.Info(s.logg.WithInventoryID(ctx, item.ID.String()), "inventory item created")
	}
	return item, nil
}

// Get loads one catalog item.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.InventoryItem, error) {
	return s.load(ctx, s.repo, id)
}

// List returns the full catalog.
func (s *Service) List(ctx context.Context) ([]models.InventoryItem, error) {
	return s.repo.ListAll(ctx)
}

// ListByCategory filters the catalog to one equipment category.
func (s *Service) ListByCategory(ctx context.Context, category enums.EquipmentCategory) ([]models.InventoryItem, error) {
	if !category.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("unknown equipment category %q", category))
	}
	return s.repo.ListByCategory(ctx, category)
}

// ListByStatus filters the catalog by effective status, forced overrides
// included.
func (s *Service) ListByStatus(ctx context.Context, status enums.InventoryStatus) ([]models.InventoryItem, error) {
	if !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("unknown inventory status %q", status))
	}
	return s.repo.ListByStatus(ctx, status)
}

// ListAvailable returns items with at least one unit free right now.
func (s *Service) ListAvailable(ctx context.Context) ([]models.InventoryItem, error) {
	return s.repo.ListAvailable(ctx)
}

// Search matches the term against name, description and model.
func (s *Service) Search(ctx context.Context, term string) ([]models.InventoryItem, error) {
	term = strings.TrimSpace(term)
	if len(term) < searchTermMinLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("search term must be at least %d characters", searchTermMinLength))
	}
	return s.repo.Search(ctx, term)
}

// Update rewrites catalog fields. Shrinking the fleet below what is
// currently reserved is rejected.
func (s *Service) Update(ctx context.Context, id uuid.UUID, input UpdateItemInput) (*models.InventoryItem, error) {
	var updated *models.InventoryItem
	err := s.locker.WithLock(ctx, id, func() error {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			item, err := s.load(ctx, repo, id)
			if err != nil {
				return err
			}

			if input.TotalQuantity != nil && *input.TotalQuantity != item.TotalQuantity {
				newTotal := *input.TotalQuantity
				if newTotal <= 0 {
					return pkgerrors.New(pkgerrors.CodeValidation, "total quantity must be positive")
				}
				newAvailable := item.AvailableQuantity + (newTotal - item.TotalQuantity)
				if newAvailable < 0 {
					return pkgerrors.New(pkgerrors.CodeValidation,
						fmt.Sprintf("cannot reduce total quantity below the %d units currently reserved", item.ReservedQuantity)).
						WithDetails(map[string]any{
							"reserved_quantity": item.ReservedQuantity,
							"total_quantity":    newTotal,
						})
				}
				item.TotalQuantity = newTotal
				item.AvailableQuantity = newAvailable
				item.Status = models.DerivedStatus(newTotal, newAvailable)
			}

			applyCatalogFields(item, input)
			if item.MaxRentalHours < item.MinRentalHours {
				return pkgerrors.New(pkgerrors.CodeValidation, "max rental hours cannot be below min rental hours")
			}

			if err := repo.Update(ctx, item); err != nil {
				return err
			}
			if err := s.emit(ctx, tx, enums.EventItemUpdated, item, input.Actor); err != nil {
				return err
			}
			updated = item
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete soft-deletes an item. Items with committed reservations cannot be
// removed.
func (s *Service) Delete(ctx context.Context, id uuid.UUID, actor *outbox.ActorRef) error {
	return s.locker.WithLock(ctx, id, func() error {
		count, err := s.reservations.CountCommitted(ctx, id)
		if err != nil {
			return err
		}
		if count > 0 {
			return pkgerrors.New(pkgerrors.CodeConstraint,
				fmt.Sprintf("item has %d active reservations", count)).
				WithDetails(map[string]any{"committed_reservations": count})
		}
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			item, err := s.load(ctx, repo, id)
			if err != nil {
				return err
			}
			if err := repo.SoftDelete(ctx, item.ID); err != nil {
				return err
			}
			return s.emit(ctx, tx, enums.EventItemDeleted, item, actor)
		})
	})
}

// SetMaintenance takes an item out of rotation. Rejected while any units
// are reserved.
func (s *Service) SetMaintenance(ctx context.Context, id uuid.UUID, actor *outbox.ActorRef) (*models.InventoryItem, error) {
	var updated *models.InventoryItem
	err := s.locker.WithLock(ctx, id, func() error {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			item, err := s.load(ctx, repo, id)
			if err != nil {
				return err
			}
			if item.ReservedQuantity > 0 {
				return pkgerrors.New(pkgerrors.CodeConstraint,
					fmt.Sprintf("%d units are currently reserved", item.ReservedQuantity)).
					WithDetails(map[string]any{"reserved_quantity": item.ReservedQuantity})
			}

			forced := enums.InventoryMaintenance
			item.ForcedStatus = &forced
			maintainedAt := s.now()
			item.LastMaintenanceDate = &maintainedAt
			if err := repo.Update(ctx, item); err != nil {
				return err
			}
			if err := s.emit(ctx, tx, enums.EventItemMaintenanceSet, item, actor); err != nil {
				return err
			}
			updated = item
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ClearMaintenance returns an item to rotation; the counter-derived status
// takes over again.
func (s *Service) ClearMaintenance(ctx context.Context, id uuid.UUID, actor *outbox.ActorRef) (*models.InventoryItem, error) {
	var updated *models.InventoryItem
	err := s.locker.WithLock(ctx, id, func() error {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			item, err := s.load(ctx, repo, id)
			if err != nil {
				return err
			}
			if item.ForcedStatus == nil || *item.ForcedStatus != enums.InventoryMaintenance {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "item is not under maintenance").
					WithDetails(map[string]any{"status": item.EffectiveStatus()})
			}

			item.ForcedStatus = nil
			item.Status = models.DerivedStatus(item.TotalQuantity, item.AvailableQuantity)
			if err := repo.Update(ctx, item); err != nil {
				return err
			}
			if err := s.emit(ctx, tx, enums.EventItemUpdated, item, actor); err != nil {
				return err
			}
			updated = item
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Retire permanently removes an item from rotation. Rejected while any
// reservations hold capacity.
func (s *Service) Retire(ctx context.Context, id uuid.UUID, actor *outbox.ActorRef) (*models.InventoryItem, error) {
	var updated *models.InventoryItem
	err := s.locker.WithLock(ctx, id, func() error {
		count, err := s.reservations.CountCommitted(ctx, id)
		if err != nil {
			return err
		}
		if count > 0 {
			return pkgerrors.New(pkgerrors.CodeConstraint,
				fmt.Sprintf("item has %d active reservations", count)).
				WithDetails(map[string]any{"committed_reservations": count})
		}
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			item, err := s.load(ctx, repo, id)
			if err != nil {
				return err
			}
			forced := enums.InventoryRetired
			item.ForcedStatus = &forced
			if err := repo.Update(ctx, item); err != nil {
				return err
			}
			if err := s.emit(ctx, tx, enums.EventItemRetired, item, actor); err != nil {
				return err
			}
			updated = item
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func applyCatalogFields(item *models.InventoryItem, input UpdateItemInput) {
	if input.Name != nil {
		item.Name = *input.Name
	}
	if input.Description != nil {
		item.Description = *input.Description
	}
	if input.Category != nil {
		item.Category = *input.Category
	}
	if input.Model != nil {
		item.Model = *input.Model
	}
	if input.DailyRate != nil {
		item.DailyRate = *input.DailyRate
	}
	if input.HourlyRate != nil {
		item.HourlyRate = input.HourlyRate
	}
	if input.Location != nil {
		item.Location = *input.Location
	}
	if input.ConditionRating != nil {
		item.ConditionRating = *input.ConditionRating
	}
	if input.NextMaintenanceDate != nil {
		item.NextMaintenanceDate = input.NextMaintenanceDate
	}
	if input.Specifications != nil {
		item.Specifications = input.Specifications
	}
	if input.Images != nil {
		item.Images = pq.StringArray(input.Images)
	}
	if input.Tags != nil {
		item.Tags = pq.StringArray(input.Tags)
	}
	if input.MinRentalHours != nil {
		item.MinRentalHours = *input.MinRentalHours
	}
	if input.MaxRentalHours != nil {
		item.MaxRentalHours = *input.MaxRentalHours
	}
}

func validateCreate(input CreateItemInput) error {
	switch {
	case strings.TrimSpace(input.Name) == "":
		return pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	case strings.TrimSpace(input.SerialNumber) == "":
		return pkgerrors.New(pkgerrors.CodeValidation, "serial number is required")
	case !input.Category.IsValid():
		return pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("unknown equipment category %q", input.Category))
	case input.TotalQuantity <= 0:
		return pkgerrors.New(pkgerrors.CodeValidation, "total quantity must be positive")
	case input.DailyRate.IsNegative():
		return pkgerrors.New(pkgerrors.CodeValidation, "daily rate cannot be negative")
	}
	if input.Currency != "" && !input.Currency.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("unsupported currency %q", input.Currency))
	}
	return nil
}

func (s *Service) emit(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, item *models.InventoryItem, actor *outbox.ActorRef) error {
	if s.publisher == nil {
		return nil
	}
	return s.publisher.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateInventoryItem,
		AggregateID:   item.ID,
		Actor:         actor,
		Data: map[string]any{
			"inventory_id":       item.ID,
			"name":               item.Name,
			"category":           item.Category,
			"total_quantity":     item.TotalQuantity,
			"available_quantity": item.AvailableQuantity,
			"status":             item.EffectiveStatus(),
		},
		Version: 1,
	})
}

func (s *Service) load(ctx context.Context, repo *Repository, id uuid.UUID) (*models.InventoryItem, error) {
	item, err := repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "inventory item not found")
		}
		return nil, err
	}
	return item, nil
}
