package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/equiprent/equiprent-backend/api/middleware"
	"github.com/equiprent/equiprent-backend/api/responses"
	"github.com/equiprent/equiprent-backend/api/validators"
	reservationsvc "github.com/equiprent/equiprent-backend/internal/reservations"
	pkgerrors "github.com/equiprent/equiprent-backend/pkg/errors"
	"github.com/equiprent/equiprent-backend/pkg/logger"
	"github.com/equiprent/equiprent-backend/pkg/outbox"
	"github.com/equiprent/equiprent-backend/pkg/pagination"
)

// CheckAvailability probes free capacity for a date range.
func CheckAvailability(svc *reservationsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		itemID, err := validators.ParseUUIDParam(r, "itemID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		start, err := validators.ParseQueryTime(r, "start")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		end, err := validators.ParseQueryTime(r, "end")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		quantity, err := validators.ParseQueryInt(r, "quantity", 1, 1, 10000)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.CheckAvailability(r.Context(), itemID, reservationsvc.AvailabilityQuery{
			StartDate: start,
			EndDate:   end,
			Quantity:  quantity,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

type createReservationRequest struct {
	Quantity  int       `json:"quantity" validate:"required,min=1"`
	StartDate time.Time `json:"start_date" validate:"required"`
	EndDate   time.Time `json:"end_date" validate:"required"`
	RentalID  *string   `json:"rental_id,omitempty" validate:"omitempty,uuid"`
	Notes     *string   `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

// CreateReservation books equipment for the authenticated user.
func CreateReservation(svc *reservationsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		itemID, err := validators.ParseUUIDParam(r, "itemID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		userID, err := uuid.Parse(middleware.UserIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}
		var payload createReservationRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var rentalID *uuid.UUID
		if payload.RentalID != nil {
			parsed, err := uuid.Parse(*payload.RentalID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid rental id"))
				return
			}
			rentalID = &parsed
		}

		res, err := svc.Create(r.Context(), reservationsvc.CreateReservationInput{
			InventoryID: itemID,
			UserID:      userID,
			RentalID:    rentalID,
			Quantity:    payload.Quantity,
			StartDate:   payload.StartDate,
			EndDate:     payload.EndDate,
			Notes:       payload.Notes,
			Actor:       actorFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, res)
	}
}

// GetReservation loads one reservation.
func GetReservation(svc *reservationsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		itemID, reservationID, err := reservationParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		res, err := svc.Get(r.Context(), itemID, reservationID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, res)
	}
}

// ListReservations returns an item's reservations, newest first.
func ListReservations(svc *reservationsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		itemID, err := validators.ParseUUIDParam(r, "itemID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", 0, 0, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := svc.ListByInventory(r.Context(), itemID, pagination.Params{
			Limit:  limit,
			Cursor: r.URL.Query().Get("cursor"),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

type updateReservationRequest struct {
	Quantity  *int       `json:"quantity,omitempty" validate:"omitempty,min=1"`
	StartDate *time.Time `json:"start_date,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`
	Notes     *string    `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

// UpdateReservation rewrites dates, quantity or notes. Status moves through
// the lifecycle endpoints.
func UpdateReservation(svc *reservationsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		itemID, reservationID, err := reservationParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload updateReservationRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		res, err := svc.Update(r.Context(), itemID, reservationID, reservationsvc.UpdateReservationInput{
			Quantity:  payload.Quantity,
			StartDate: payload.StartDate,
			EndDate:   payload.EndDate,
			Notes:     payload.Notes,
			Actor:     actorFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, res)
	}
}

type lifecycleFunc func(*reservationsvc.Service, *http.Request, uuid.UUID, uuid.UUID, *outbox.ActorRef) (any, error)

func lifecycleHandler(svc *reservationsvc.Service, logg *logger.Logger, fn lifecycleFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		itemID, reservationID, err := reservationParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		res, err := fn(svc, r, itemID, reservationID, actorFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, res)
	}
}

// ConfirmReservation moves a pending reservation to confirmed.
func ConfirmReservation(svc *reservationsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return lifecycleHandler(svc, logg, func(svc *reservationsvc.Service, r *http.Request, itemID, reservationID uuid.UUID, actor *outbox.ActorRef) (any, error) {
		return svc.Confirm(r.Context(), itemID, reservationID, actor)
	})
}

// StartReservation marks the equipment as picked up.
func StartReservation(svc *reservationsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return lifecycleHandler(svc, logg, func(svc *reservationsvc.Service, r *http.Request, itemID, reservationID uuid.UUID, actor *outbox.ActorRef) (any, error) {
		return svc.Start(r.Context(), itemID, reservationID, actor)
	})
}

// EndReservation marks the equipment as returned.
func EndReservation(svc *reservationsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return lifecycleHandler(svc, logg, func(svc *reservationsvc.Service, r *http.Request, itemID, reservationID uuid.UUID, actor *outbox.ActorRef) (any, error) {
		return svc.End(r.Context(), itemID, reservationID, actor)
	})
}

// CancelReservation aborts a reservation.
func CancelReservation(svc *reservationsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return lifecycleHandler(svc, logg, func(svc *reservationsvc.Service, r *http.Request, itemID, reservationID uuid.UUID, actor *outbox.ActorRef) (any, error) {
		return svc.Cancel(r.Context(), itemID, reservationID, actor)
	})
}

// DeleteReservation removes a reservation row outright.
func DeleteReservation(svc *reservationsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		itemID, reservationID, err := reservationParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.HardDelete(r.Context(), itemID, reservationID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}

// ResyncItem recomputes the item's counters from committed reservations.
func ResyncItem(svc *reservationsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		itemID, err := validators.ParseUUIDParam(r, "itemID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Resync(r.Context(), itemID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "synchronized"})
	}
}

func reservationParams(r *http.Request) (uuid.UUID, uuid.UUID, error) {
	itemID, err := validators.ParseUUIDParam(r, "itemID")
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	reservationID, err := validators.ParseUUIDParam(r, "reservationID")
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return itemID, reservationID, nil
}
