package reservations

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/equiprent/equiprent-backend/internal/inventory"
	"github.com/equiprent/equiprent-backend/internal/locks"
	"github.com/equiprent/equiprent-backend/pkg/db/models"
	"github.com/equiprent/equiprent-backend/pkg/enums"
	pkgerrors "github.com/equiprent/equiprent-backend/pkg/errors"
	"github.com/equiprent/equiprent-backend/pkg/logger"
	"github.com/equiprent/equiprent-backend/pkg/outbox"
	"github.com/equiprent/equiprent-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service drives the reservation lifecycle. Every capacity-affecting
// operation runs under the item's lock and inside one transaction, so the
// availability check and the write it guards cannot interleave with a
// concurrent booking.
type Service struct {
	tx        txRunner
	items     *inventory.Repository
	rsv       *Repository
	locker    locks.ItemLocker
	publisher outboxPublisher
	logg      *logger.Logger
	now       func() time.Time
}

// NewService validates dependencies and builds the lifecycle service.
func NewService(
	tx txRunner,
	items *inventory.Repository,
	rsv *Repository,
	locker locks.ItemLocker,
	publisher outboxPublisher,
	logg *logger.Logger,
) (*Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if items == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if rsv == nil {
		return nil, fmt.Errorf("reservation repository required")
	}
	if locker == nil {
		return nil, fmt.Errorf("item locker required")
	}
	return &Service{
		tx:        tx,
		items:     items,
		rsv:       rsv,
		locker:    locker,
		publisher: publisher,
		logg:      logg,
		now:       time.Now,
	}, nil
}

// AvailabilityQuery describes a capacity probe for a date range.
type AvailabilityQuery struct {
	StartDate time.Time
	EndDate   time.Time
	Quantity  int
}

// AvailabilityResult reports what the probe found.
type AvailabilityResult struct {
	Available         bool                          `json:"available"`
	AvailableQuantity int                           `json:"available_quantity"`
	RequestedQuantity int                           `json:"requested_quantity"`
	Conflicts         []models.InventoryReservation `json:"conflicts"`
}

// CreateReservationInput carries everything needed to book equipment.
type CreateReservationInput struct {
	InventoryID uuid.UUID
	UserID      uuid.UUID
	RentalID    *uuid.UUID
	Quantity    int
	StartDate   time.Time
	EndDate     time.Time
	Notes       *string
	Actor       *outbox.ActorRef
}

// UpdateReservationInput carries the mutable reservation fields. Nil means
// leave unchanged. Status moves through the lifecycle methods, not here.
type UpdateReservationInput struct {
	Quantity  *int
	StartDate *time.Time
	EndDate   *time.Time
	Notes     *string
	Actor     *outbox.ActorRef
}

// CheckAvailability computes how many units are free across the requested
// window. Peak demand over the window is what counts, not the sum of every
// overlapping reservation.
func (s *Service) CheckAvailability(ctx context.Context, inventoryID uuid.UUID, query AvailabilityQuery) (*AvailabilityResult, error) {
	item, err := s.loadItem(ctx, s.items, inventoryID)
	if err != nil {
		return nil, err
	}

	if item.EffectiveStatus() == enums.InventoryMaintenance || item.EffectiveStatus() == enums.InventoryRetired {
		return &AvailabilityResult{
			Available:         false,
			AvailableQuantity: 0,
			RequestedQuantity: query.Quantity,
			Conflicts:         []models.InventoryReservation{},
		}, nil
	}

	if err := s.validateWindow(query.StartDate, query.EndDate, true); err != nil {
		return nil, err
	}
	if query.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	committed, err := s.rsv.ListCommitted(ctx, inventoryID)
	if err != nil {
		return nil, err
	}
	conflicts := Overlapping(committed, query.StartDate, query.EndDate, nil)
	peak := PeakDemand(conflicts, query.StartDate, query.EndDate)
	freeInPeriod := item.TotalQuantity - peak

	if conflicts == nil {
		conflicts = []models.InventoryReservation{}
	}
	return &AvailabilityResult{
		Available:         freeInPeriod >= query.Quantity,
		AvailableQuantity: freeInPeriod,
		RequestedQuantity: query.Quantity,
		Conflicts:         conflicts,
	}, nil
}

// Create books equipment. The whole check-then-act sequence holds the item
// lock, so two concurrent requests for the last unit cannot both succeed.
func (s *Service) Create(ctx context.Context, input CreateReservationInput) (*models.InventoryReservation, error) {
	if input.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	if err := s.validateWindow(input.StartDate, input.EndDate, true); err != nil {
		return nil, err
	}

	var created *models.InventoryReservation
	err := s.locker.WithLock(ctx, input.InventoryID, func() error {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			items := s.items.WithTx(tx)
			rsv := s.rsv.WithTx(tx)

			item, err := s.loadItem(ctx, items, input.InventoryID)
			if err != nil {
				return err
			}
			if status := item.EffectiveStatus(); status == enums.InventoryMaintenance || status == enums.InventoryRetired {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "item is not rentable").
					WithDetails(map[string]any{"status": status})
			}
			if err := s.validateDuration(item, input.StartDate, input.EndDate); err != nil {
				return err
			}

			committed, err := rsv.ListCommitted(ctx, input.InventoryID)
			if err != nil {
				return err
			}
			conflicts := Overlapping(committed, input.StartDate, input.EndDate, nil)
			peak := PeakDemand(conflicts, input.StartDate, input.EndDate)
			free := item.TotalQuantity - peak
			if free < input.Quantity {
				return pkgerrors.New(pkgerrors.CodeConflict,
					fmt.Sprintf("only %d units available for the requested period", free)).
					WithDetails(map[string]any{
						"available_quantity": free,
						"requested_quantity": input.Quantity,
						"conflicts":          len(conflicts),
					})
			}

			res := &models.InventoryReservation{
				ID:          uuid.New(),
				InventoryID: input.InventoryID,
				UserID:      input.UserID,
				RentalID:    input.RentalID,
				Quantity:    input.Quantity,
				StartDate:   input.StartDate,
				EndDate:     input.EndDate,
				Status:      enums.ReservationPending,
				Notes:       input.Notes,
			}
			if err := rsv.Create(ctx, res); err != nil {
				return err
			}
			if err := s.resync(ctx, items, rsv, item); err != nil {
				return err
			}
			if err := s.emit(ctx, tx, enums.EventReservationCreated, res, input.Actor); err != nil {
				return err
			}
			created = res
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		logCtx := s.logg.WithReservationID(s.logg.WithInventoryID(ctx, created.InventoryID.String()), created.ID.String())
		s.logg.Info(logCtx, "reservation created")
	}
	return created, nil
}

// Get loads one reservation scoped to its item.
func (s *Service) Get(ctx context.Context, inventoryID, reservationID uuid.UUID) (*models.InventoryReservation, error) {
	res, err := s.rsv.FindByID(ctx, inventoryID, reservationID)
	if err != nil {
		return nil, s.notFoundOr(err, "reservation not found")
	}
	return res, nil
}

// ReservationPage is one cursor page of an item's reservations.
type ReservationPage struct {
	Items      []models.InventoryReservation `json:"items"`
	NextCursor string                        `json:"next_cursor,omitempty"`
}

// ListByInventory returns a page of the item's reservations after verifying
// the item exists.
func (s *Service) ListByInventory(ctx context.Context, inventoryID uuid.UUID, params pagination.Params) (*ReservationPage, error) {
	if _, err := s.loadItem(ctx, s.items, inventoryID); err != nil {
		return nil, err
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	limit := pagination.NormalizeLimit(params.Limit)
	rows, err := s.rsv.ListByInventory(ctx, inventoryID, cursor, pagination.LimitWithBuffer(params.Limit))
	if err != nil {
		return nil, err
	}
	page := &ReservationPage{Items: rows}
	if len(rows) > limit {
		page.Items = rows[:limit]
		last := page.Items[limit-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}
	return page, nil
}

// Confirm moves PENDING to CONFIRMED.
func (s *Service) Confirm(ctx context.Context, inventoryID, reservationID uuid.UUID, actor *outbox.ActorRef) (*models.InventoryReservation, error) {
	return s.transition(ctx, inventoryID, reservationID, enums.ReservationConfirmed, enums.EventReservationConfirmed, actor)
}

// Start moves CONFIRMED to ACTIVE when the equipment is picked up.
func (s *Service) Start(ctx context.Context, inventoryID, reservationID uuid.UUID, actor *outbox.ActorRef) (*models.InventoryReservation, error) {
	return s.transition(ctx, inventoryID, reservationID, enums.ReservationActive, enums.EventReservationStarted, actor)
}

// End moves ACTIVE to COMPLETED when the equipment is returned, releasing
// its capacity.
func (s *Service) End(ctx context.Context, inventoryID, reservationID uuid.UUID, actor *outbox.ActorRef) (*models.InventoryReservation, error) {
	return s.transition(ctx, inventoryID, reservationID, enums.ReservationCompleted, enums.EventReservationCompleted, actor)
}

// Cancel aborts a reservation from any committed state.
func (s *Service) Cancel(ctx context.Context, inventoryID, reservationID uuid.UUID, actor *outbox.ActorRef) (*models.InventoryReservation, error) {
	return s.transition(ctx, inventoryID, reservationID, enums.ReservationCancelled, enums.EventReservationCancelled, actor)
}

func (s *Service) transition(
	ctx context.Context,
	inventoryID, reservationID uuid.UUID,
	target enums.ReservationStatus,
	eventType enums.OutboxEventType,
	actor *outbox.ActorRef,
) (*models.InventoryReservation, error) {
	var updated *models.InventoryReservation
	err := s.locker.WithLock(ctx, inventoryID, func() error {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			items := s.items.WithTx(tx)
			rsv := s.rsv.WithTx(tx)

			item, err := s.loadItem(ctx, items, inventoryID)
			if err != nil {
				return err
			}
			res, err := rsv.FindByID(ctx, inventoryID, reservationID)
			if err != nil {
				return s.notFoundOr(err, "reservation not found")
			}
			if !res.Status.CanTransitionTo(target) {
				return pkgerrors.New(pkgerrors.CodeStateConflict,
					fmt.Sprintf("cannot move reservation from %s to %s", res.Status, target)).
					WithDetails(map[string]any{"current_status": res.Status, "target_status": target})
			}

			res.Status = target
			if err := rsv.Update(ctx, res); err != nil {
				return err
			}
			if err := s.resync(ctx, items, rsv, item); err != nil {
				return err
			}
			if err := s.emit(ctx, tx, eventType, res, actor); err != nil {
				return err
			}
			updated = res
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Update rewrites dates, quantity or notes. Window or quantity changes are
// re-checked against every other committed reservation; the one being
// updated never conflicts with itself.
func (s *Service) Update(ctx context.Context, inventoryID, reservationID uuid.UUID, input UpdateReservationInput) (*models.InventoryReservation, error) {
	var updated *models.InventoryReservation
	err := s.locker.WithLock(ctx, inventoryID, func() error {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			items := s.items.WithTx(tx)
			rsv := s.rsv.WithTx(tx)

			item, err := s.loadItem(ctx, items, inventoryID)
			if err != nil {
				return err
			}
			res, err := rsv.FindByID(ctx, inventoryID, reservationID)
			if err != nil {
				return s.notFoundOr(err, "reservation not found")
			}
			if res.Status.IsTerminal() {
				return pkgerrors.New(pkgerrors.CodeStateConflict,
					fmt.Sprintf("cannot update reservation with status %s", res.Status)).
					WithDetails(map[string]any{"current_status": res.Status})
			}

			newStart := res.StartDate
			newEnd := res.EndDate
			newQuantity := res.Quantity
			if input.StartDate != nil {
				newStart = *input.StartDate
			}
			if input.EndDate != nil {
				newEnd = *input.EndDate
			}
			if input.Quantity != nil {
				newQuantity = *input.Quantity
			}

			if input.StartDate != nil || input.EndDate != nil || input.Quantity != nil {
				if newQuantity <= 0 {
					return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
				}
				if err := s.validateWindow(newStart, newEnd, false); err != nil {
					return err
				}
				if err := s.validateDuration(item, newStart, newEnd); err != nil {
					return err
				}

				committed, err := rsv.ListCommitted(ctx, inventoryID)
				if err != nil {
					return err
				}
				conflicts := Overlapping(committed, newStart, newEnd, &res.ID)
				peak := PeakDemand(conflicts, newStart, newEnd)
				if item.TotalQuantity-peak < newQuantity {
					return pkgerrors.New(pkgerrors.CodeConflict, "requested changes conflict with existing reservations").
						WithDetails(map[string]any{
							"available_quantity": item.TotalQuantity - peak,
							"requested_quantity": newQuantity,
						})
				}
			}

			res.StartDate = newStart
			res.EndDate = newEnd
			res.Quantity = newQuantity
			if input.Notes != nil {
				res.Notes = input.Notes
			}
			if err := rsv.Update(ctx, res); err != nil {
				return err
			}
			if err := s.resync(ctx, items, rsv, item); err != nil {
				return err
			}
			updated = res
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// HardDelete removes the reservation row outright. Administrative escape
// hatch; counters are re-synchronized so the capacity comes back.
func (s *Service) HardDelete(ctx context.Context, inventoryID, reservationID uuid.UUID) error {
	return s.locker.WithLock(ctx, inventoryID, func() error {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			items := s.items.WithTx(tx)
			rsv := s.rsv.WithTx(tx)

			item, err := s.loadItem(ctx, items, inventoryID)
			if err != nil {
				return err
			}
			res, err := rsv.FindByID(ctx, inventoryID, reservationID)
			if err != nil {
				return s.notFoundOr(err, "reservation not found")
			}
			if err := rsv.Delete(ctx, res.ID); err != nil {
				return err
			}
			return s.resync(ctx, items, rsv, item)
		})
	})
}

// ExpireStalePending cancels PENDING reservations whose start date passed
// more than grace ago. Each cancellation goes through the normal transition
// path so counters and events stay consistent. Returns how many were
// cancelled.
func (s *Service) ExpireStalePending(ctx context.Context, grace time.Duration) (int, error) {
	cutoff := s.now().Add(-grace)
	stale, err := s.rsv.ListStalePending(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	expired := 0
	for i := range stale {
		res := &stale[i]
		err := s.locker.WithLock(ctx, res.InventoryID, func() error {
			return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
				items := s.items.WithTx(tx)
				rsv := s.rsv.WithTx(tx)

				item, err := s.loadItem(ctx, items, res.InventoryID)
				if err != nil {
					return err
				}
				current, err := rsv.FindByID(ctx, res.InventoryID, res.ID)
				if err != nil {
					return s.notFoundOr(err, "reservation not found")
				}
				// re-check under the lock; it may have been confirmed meanwhile
				if current.Status != enums.ReservationPending {
					return nil
				}
				current.Status = enums.ReservationCancelled
				if err := rsv.Update(ctx, current); err != nil {
					return err
				}
				if err := s.resync(ctx, items, rsv, item); err != nil {
					return err
				}
				if err := s.emit(ctx, tx, enums.EventReservationExpired, current, nil); err != nil {
					return err
				}
				expired++
				return nil
			})
		})
		if err != nil {
			if s.logg != nil {
				s.logg.Error(s.logg.WithReservationID(ctx, res.ID.String()), "expiring stale reservation failed", err)
			}
			continue
		}
	}
	return expired, nil
}

// Resync recomputes the item's counters from its committed reservations.
// Safe to call repeatedly; the result only depends on stored reservations.
func (s *Service) Resync(ctx context.Context, inventoryID uuid.UUID) error {
	return s.locker.WithLock(ctx, inventoryID, func() error {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			items := s.items.WithTx(tx)
			rsv := s.rsv.WithTx(tx)
			item, err := s.loadItem(ctx, items, inventoryID)
			if err != nil {
				return err
			}
			return s.resync(ctx, items, rsv, item)
		})
	})
}

// resync writes the materialized counter view: reserved is the peak
// concurrent committed demand, available the remainder. ForcedStatus is
// never touched here.
func (s *Service) resync(ctx context.Context, items *inventory.Repository, rsv *Repository, item *models.InventoryItem) error {
	committed, err := rsv.ListCommitted(ctx, item.ID)
	if err != nil {
		return err
	}
	reserved := CommittedPeak(committed)
	available := item.TotalQuantity - reserved
	if available < 0 {
		available = 0
	}
	status := models.DerivedStatus(item.TotalQuantity, available)
	return items.UpdateCounters(ctx, item.ID, available, reserved, status)
}

func (s *Service) emit(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, res *models.InventoryReservation, actor *outbox.ActorRef) error {
	if s.publisher == nil {
		return nil
	}
	return s.publisher.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateReservation,
		AggregateID:   res.ID,
		Actor:         actor,
		Data: map[string]any{
			"reservation_id": res.ID,
			"inventory_id":   res.InventoryID,
			"user_id":        res.UserID,
			"quantity":       res.Quantity,
			"start_date":     res.StartDate,
			"end_date":       res.EndDate,
			"status":         res.Status,
		},
		Version: 1,
	})
}

func (s *Service) loadItem(ctx context.Context, items *inventory.Repository, inventoryID uuid.UUID) (*models.InventoryItem, error) {
	item, err := items.FindByID(ctx, inventoryID)
	if err != nil {
		return nil, s.notFoundOr(err, "inventory item not found")
	}
	return item, nil
}

func (s *Service) notFoundOr(err error, message string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, message)
	}
	return err
}

func (s *Service) validateWindow(start, end time.Time, rejectPast bool) error {
	if start.IsZero() || end.IsZero() {
		return pkgerrors.New(pkgerrors.CodeValidation, "start and end dates are required")
	}
	if !start.Before(end) {
		return pkgerrors.New(pkgerrors.CodeValidation, "start date must be before end date")
	}
	if rejectPast && start.Before(s.now()) {
		return pkgerrors.New(pkgerrors.CodeValidation, "start date cannot be in the past")
	}
	return nil
}

// validateDuration enforces the item's rental bounds. Both bounds live in
// hours; partial hours count against the minimum.
func (s *Service) validateDuration(item *models.InventoryItem, start, end time.Time) error {
	hours := int(math.Ceil(end.Sub(start).Hours()))
	if item.MinRentalHours > 0 && hours < item.MinRentalHours {
		return pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("minimum rental duration is %d hours", item.MinRentalHours))
	}
	if item.MaxRentalHours > 0 && hours > item.MaxRentalHours {
		return pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("maximum rental duration is %d hours", item.MaxRentalHours))
	}
	return nil
}
