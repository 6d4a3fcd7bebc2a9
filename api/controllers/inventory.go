package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/equiprent/equiprent-backend/api/middleware"
	"github.com/equiprent/equiprent-backend/api/responses"
	"github.com/equiprent/equiprent-backend/api/validators"
	inventorysvc "github.com/equiprent/equiprent-backend/internal/inventory"
	"github.com/equiprent/equiprent-backend/pkg/enums"
	pkgerrors "github.com/equiprent/equiprent-backend/pkg/errors"
	"github.com/equiprent/equiprent-backend/pkg/logger"
	"github.com/equiprent/equiprent-backend/pkg/outbox"
)

func actorFromContext(ctx context.Context) *outbox.ActorRef {
	raw := middleware.UserIDFromContext(ctx)
	if raw == "" {
		return nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil
	}
	return &outbox.ActorRef{UserID: id, Role: middleware.RoleFromContext(ctx)}
}

type createItemRequest struct {
	Name           string           `json:"name" validate:"required,min=2,max=200"`
	Description    string           `json:"description" validate:"max=2000"`
	Category       string           `json:"category" validate:"required"`
	Model          string           `json:"model" validate:"max=120"`
	SerialNumber   string           `json:"serial_number" validate:"required,min=2,max=120"`
	TotalQuantity  int              `json:"total_quantity" validate:"required,min=1"`
	DailyRate      decimal.Decimal  `json:"daily_rate" validate:"required"`
	HourlyRate     *decimal.Decimal `json:"hourly_rate,omitempty"`
	Currency       string           `json:"currency,omitempty"`
	Location       string           `json:"location" validate:"required,min=2,max=200"`
	SupplierID     *string          `json:"supplier_id,omitempty" validate:"omitempty,uuid"`
	Specifications json.RawMessage  `json:"specifications,omitempty"`
	Images         []string         `json:"images,omitempty"`
	Tags           []string         `json:"tags,omitempty"`
	MinRentalHours *int             `json:"min_rental_hours,omitempty" validate:"omitempty,min=1"`
	MaxRentalHours *int             `json:"max_rental_hours,omitempty" validate:"omitempty,min=1"`
}

func (r createItemRequest) toCreateInput(actor *outbox.ActorRef) (inventorysvc.CreateItemInput, error) {
	category, err := enums.ParseEquipmentCategory(strings.ToUpper(strings.TrimSpace(r.Category)))
	if err != nil {
		return inventorysvc.CreateItemInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid category")
	}

	var currency enums.Currency
	if r.Currency != "" {
		currency, err = enums.ParseCurrency(strings.ToUpper(strings.TrimSpace(r.Currency)))
		if err != nil {
			return inventorysvc.CreateItemInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid currency")
		}
	}

	var supplierID *uuid.UUID
	if r.SupplierID != nil {
		parsed, err := uuid.Parse(*r.SupplierID)
		if err != nil {
			return inventorysvc.CreateItemInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid supplier id")
		}
		supplierID = &parsed
	}

	return inventorysvc.CreateItemInput{
		Name:           strings.TrimSpace(r.Name),
		Description:    strings.TrimSpace(r.Description),
		Category:       category,
		Model:          strings.TrimSpace(r.Model),
		SerialNumber:   strings.TrimSpace(r.SerialNumber),
		TotalQuantity:  r.TotalQuantity,
		DailyRate:      r.DailyRate,
		HourlyRate:     r.HourlyRate,
		Currency:       currency,
		Location:       strings.TrimSpace(r.Location),
		SupplierID:     supplierID,
		Specifications: r.Specifications,
		Images:         r.Images,
		Tags:           r.Tags,
		MinRentalHours: r.MinRentalHours,
		MaxRentalHours: r.MaxRentalHours,
		Actor:          actor,
	}, nil
}

// CreateItem registers a piece of equipment.
func CreateItem(svc *inventorysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload createItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := payload.toCreateInput(actorFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		item, err := svc.Create(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, item)
	}
}

// GetItem loads one equipment record.
func GetItem(svc *inventorysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "itemID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		item, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, item)
	}
}

// ListItems returns the catalog, optionally filtered by category, status or
// current availability.
func ListItems(svc *inventorysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()

		if term := strings.TrimSpace(query.Get("q")); term != "" {
			items, err := svc.Search(r.Context(), term)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			responses.WriteSuccess(w, items)
			return
		}
		if category := strings.TrimSpace(query.Get("category")); category != "" {
			items, err := svc.ListByCategory(r.Context(), enums.EquipmentCategory(strings.ToUpper(category)))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			responses.WriteSuccess(w, items)
			return
		}
		if status := strings.TrimSpace(query.Get("status")); status != "" {
			items, err := svc.ListByStatus(r.Context(), enums.InventoryStatus(strings.ToUpper(status)))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			responses.WriteSuccess(w, items)
			return
		}
		if query.Get("available") == "true" {
			items, err := svc.ListAvailable(r.Context())
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			responses.WriteSuccess(w, items)
			return
		}

		items, err := svc.List(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, items)
	}
}

type updateItemRequest struct {
	Name                *string          `json:"name,omitempty" validate:"omitempty,min=2,max=200"`
	Description         *string          `json:"description,omitempty" validate:"omitempty,max=2000"`
	Category            *string          `json:"category,omitempty"`
	Model               *string          `json:"model,omitempty" validate:"omitempty,max=120"`
	TotalQuantity       *int             `json:"total_quantity,omitempty" validate:"omitempty,min=1"`
	DailyRate           *decimal.Decimal `json:"daily_rate,omitempty"`
	HourlyRate          *decimal.Decimal `json:"hourly_rate,omitempty"`
	Location            *string          `json:"location,omitempty" validate:"omitempty,min=2,max=200"`
	ConditionRating     *int             `json:"condition_rating,omitempty" validate:"omitempty,min=1,max=5"`
	NextMaintenanceDate *time.Time       `json:"next_maintenance_date,omitempty"`
	Specifications      json.RawMessage  `json:"specifications,omitempty"`
	Images              []string         `json:"images,omitempty"`
	Tags                []string         `json:"tags,omitempty"`
	MinRentalHours      *int             `json:"min_rental_hours,omitempty" validate:"omitempty,min=1"`
	MaxRentalHours      *int             `json:"max_rental_hours,omitempty" validate:"omitempty,min=1"`
}

func (r updateItemRequest) toUpdateInput(actor *outbox.ActorRef) (inventorysvc.UpdateItemInput, error) {
	input := inventorysvc.UpdateItemInput{
		Name:                r.Name,
		Description:         r.Description,
		Model:               r.Model,
		TotalQuantity:       r.TotalQuantity,
		DailyRate:           r.DailyRate,
		HourlyRate:          r.HourlyRate,
		Location:            r.Location,
		ConditionRating:     r.ConditionRating,
		NextMaintenanceDate: r.NextMaintenanceDate,
		Specifications:      r.Specifications,
		Images:              r.Images,
		Tags:                r.Tags,
		MinRentalHours:      r.MinRentalHours,
		MaxRentalHours:      r.MaxRentalHours,
		Actor:               actor,
	}
	if r.Category != nil {
		category, err := enums.ParseEquipmentCategory(strings.ToUpper(strings.TrimSpace(*r.Category)))
		if err != nil {
			return inventorysvc.UpdateItemInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid category")
		}
		input.Category = &category
	}
	return input, nil
}

// UpdateItem rewrites catalog fields on an equipment record.
func UpdateItem(svc *inventorysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "itemID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload updateItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := payload.toUpdateInput(actorFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		item, err := svc.Update(r.Context(), id, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, item)
	}
}

// DeleteItem soft-deletes an equipment record.
func DeleteItem(svc *inventorysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "itemID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Delete(r.Context(), id, actorFromContext(r.Context())); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}

// SetMaintenance takes an item out of rotation.
func SetMaintenance(svc *inventorysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "itemID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		item, err := svc.SetMaintenance(r.Context(), id, actorFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, item)
	}
}

// ClearMaintenance returns an item to rotation.
func ClearMaintenance(svc *inventorysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "itemID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		item, err := svc.ClearMaintenance(r.Context(), id, actorFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, item)
	}
}

// RetireItem permanently removes an item from rotation.
func RetireItem(svc *inventorysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "itemID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		item, err := svc.Retire(r.Context(), id, actorFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, item)
	}
}
