package inventory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/equiprent/equiprent-backend/internal/locks"
	"github.com/equiprent/equiprent-backend/pkg/db"
	"github.com/equiprent/equiprent-backend/pkg/db/models"
	"github.com/equiprent/equiprent-backend/pkg/enums"
	pkgerrors "github.com/equiprent/equiprent-backend/pkg/errors"
	"github.com/equiprent/equiprent-backend/pkg/outbox"
)

type stubCounter struct {
	committed int64
}

func (c *stubCounter) CountCommitted(context.Context, uuid.UUID) (int64, error) {
	return c.committed, nil
}

type recordingPublisher struct {
	events []outbox.DomainEvent
}

func (p *recordingPublisher) Emit(_ context.Context, _ *gorm.DB, event outbox.DomainEvent) error {
	p.events = append(p.events, event)
	return nil
}

type catalogHarness struct {
	svc       *Service
	repo      *Repository
	counter   *stubCounter
	publisher *recordingPublisher
}

func newCatalogHarness(t *testing.T) *catalogHarness {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&models.InventoryItem{}); err != nil {
		t.Fatalf("failed to migrate sqlite: %v", err)
	}

	repo := NewRepository(conn)
	counter := &stubCounter{}
	publisher := &recordingPublisher{}
	svc, err := NewService(db.FromGorm(conn), repo, counter, locks.NewLocalLocker(), publisher, nil)
	if err != nil {
		t.Fatalf("failed to build service: %v", err)
	}
	return &catalogHarness{svc: svc, repo: repo, counter: counter, publisher: publisher}
}

func (h *catalogHarness) createItem(t *testing.T, total int) *models.InventoryItem {
	t.Helper()
	item, err := h.svc.Create(context.Background(), CreateItemInput{
		Name:          "Mobile Crane",
		Description:   "30t all-terrain crane",
		Category:      enums.CategoryCrane,
		Model:         "AT-30",
		SerialNumber:  uuid.NewString(),
		TotalQuantity: total,
		DailyRate:     decimal.NewFromInt(60000),
		Location:      "Kandy depot",
	})
	if err != nil {
		t.Fatalf("failed to create item: %v", err)
	}
	return item
}

func requireCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", code)
	}
	appErr := pkgerrors.As(err)
	if appErr == nil {
		t.Fatalf("expected *errors.Error, got %T: %v", err, err)
	}
	if appErr.Code() != code {
		t.Fatalf("expected code %s, got %s (%s)", code, appErr.Code(), appErr.Message())
	}
}

func TestCreateItemDefaults(t *testing.T) {
	h := newCatalogHarness(t)
	item := h.createItem(t, 4)

	if item.AvailableQuantity != 4 || item.ReservedQuantity != 0 {
		t.Fatalf("expected all units available, got available=%d reserved=%d",
			item.AvailableQuantity, item.ReservedQuantity)
	}
	if item.Status != enums.InventoryAvailable {
		t.Fatalf("expected AVAILABLE, got %s", item.Status)
	}
	if item.Currency != enums.CurrencyLKR {
		t.Fatalf("expected LKR default, got %s", item.Currency)
	}
	if item.ConditionRating != 5 {
		t.Fatalf("expected condition 5, got %d", item.ConditionRating)
	}
	if item.MinRentalHours != 1 || item.MaxRentalHours != 8760 {
		t.Fatalf("expected default rental bounds, got min=%d max=%d",
			item.MinRentalHours, item.MaxRentalHours)
	}
	if len(h.publisher.events) != 1 || h.publisher.events[0].EventType != enums.EventItemCreated {
		t.Fatalf("expected one item_created event, got %+v", h.publisher.events)
	}
}

func TestCreateItemValidation(t *testing.T) {
	h := newCatalogHarness(t)
	ctx := context.Background()

	_, err := h.svc.Create(ctx, CreateItemInput{
		Category:      enums.CategoryCrane,
		SerialNumber:  "SN-1",
		TotalQuantity: 1,
	})
	requireCode(t, err, pkgerrors.CodeValidation)

	_, err = h.svc.Create(ctx, CreateItemInput{
		Name:          "Crane",
		Category:      "JETPACK",
		SerialNumber:  "SN-1",
		TotalQuantity: 1,
	})
	requireCode(t, err, pkgerrors.CodeValidation)

	_, err = h.svc.Create(ctx, CreateItemInput{
		Name:          "Crane",
		Category:      enums.CategoryCrane,
		SerialNumber:  "SN-1",
		TotalQuantity: 0,
	})
	requireCode(t, err, pkgerrors.CodeValidation)
}

func TestCreateItemDuplicateSerial(t *testing.T) {
	h := newCatalogHarness(t)
	item := h.createItem(t, 1)

	_, err := h.svc.Create(context.Background(), CreateItemInput{
		Name:          "Clone",
		Category:      enums.CategoryCrane,
		SerialNumber:  item.SerialNumber,
		TotalQuantity: 1,
	})
	requireCode(t, err, pkgerrors.CodeConflict)
}

func TestUpdateTotalQuantityAdjustsAvailability(t *testing.T) {
	h := newCatalogHarness(t)
	item := h.createItem(t, 4)
	ctx := context.Background()

	// simulate two units out on rent
	if err := h.repo.UpdateCounters(ctx, item.ID, 2, 2, enums.InventoryPartiallyAvailable); err != nil {
		t.Fatalf("failed to seed counters: %v", err)
	}

	grow := 6
	updated, err := h.svc.Update(ctx, item.ID, UpdateItemInput{TotalQuantity: &grow})
	if err != nil {
		t.Fatalf("grow failed: %v", err)
	}
	if updated.TotalQuantity != 6 || updated.AvailableQuantity != 4 {
		t.Fatalf("expected total=6 available=4, got total=%d available=%d",
			updated.TotalQuantity, updated.AvailableQuantity)
	}

	// shrinking below the reserved floor must fail
	shrink := 1
	_, err = h.svc.Update(ctx, item.ID, UpdateItemInput{TotalQuantity: &shrink})
	requireCode(t, err, pkgerrors.CodeValidation)

	// shrinking to exactly the reserved count is fine
	shrink = 2
	updated, err = h.svc.Update(ctx, item.ID, UpdateItemInput{TotalQuantity: &shrink})
	if err != nil {
		t.Fatalf("shrink failed: %v", err)
	}
	if updated.AvailableQuantity != 0 || updated.Status != enums.InventoryUnavailable {
		t.Fatalf("expected available=0 UNAVAILABLE, got available=%d status=%s",
			updated.AvailableQuantity, updated.Status)
	}
}

func TestUpdateRentalBounds(t *testing.T) {
	h := newCatalogHarness(t)
	item := h.createItem(t, 1)

	min := 48
	max := 24
	_, err := h.svc.Update(context.Background(), item.ID, UpdateItemInput{
		MinRentalHours: &min,
		MaxRentalHours: &max,
	})
	requireCode(t, err, pkgerrors.CodeValidation)
}

func TestDeleteGuardsCommittedReservations(t *testing.T) {
	h := newCatalogHarness(t)
	item := h.createItem(t, 1)
	ctx := context.Background()

	h.counter.committed = 2
	err := h.svc.Delete(ctx, item.ID, nil)
	requireCode(t, err, pkgerrors.CodeConstraint)

	h.counter.committed = 0
	if err := h.svc.Delete(ctx, item.ID, nil); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	_, err = h.svc.Get(ctx, item.ID)
	requireCode(t, err, pkgerrors.CodeNotFound)
}

func TestSetMaintenanceGuardsReservedUnits(t *testing.T) {
	h := newCatalogHarness(t)
	item := h.createItem(t, 2)
	ctx := context.Background()

	if err := h.repo.UpdateCounters(ctx, item.ID, 1, 1, enums.InventoryPartiallyAvailable); err != nil {
		t.Fatalf("failed to seed counters: %v", err)
	}
	_, err := h.svc.SetMaintenance(ctx, item.ID, nil)
	requireCode(t, err, pkgerrors.CodeConstraint)

	if err := h.repo.UpdateCounters(ctx, item.ID, 2, 0, enums.InventoryAvailable); err != nil {
		t.Fatalf("failed to reset counters: %v", err)
	}
	updated, err := h.svc.SetMaintenance(ctx, item.ID, nil)
	if err != nil {
		t.Fatalf("set maintenance failed: %v", err)
	}
	if updated.EffectiveStatus() != enums.InventoryMaintenance {
		t.Fatalf("expected MAINTENANCE, got %s", updated.EffectiveStatus())
	}
	if updated.LastMaintenanceDate == nil {
		t.Fatal("expected last maintenance date to be stamped")
	}
	// the derived status survives underneath the override
	if updated.Status != enums.InventoryAvailable {
		t.Fatalf("expected derived status preserved, got %s", updated.Status)
	}
}

func TestClearMaintenanceRestoresDerivedStatus(t *testing.T) {
	h := newCatalogHarness(t)
	item := h.createItem(t, 2)
	ctx := context.Background()

	if _, err := h.svc.SetMaintenance(ctx, item.ID, nil); err != nil {
		t.Fatalf("set maintenance failed: %v", err)
	}
	updated, err := h.svc.ClearMaintenance(ctx, item.ID, nil)
	if err != nil {
		t.Fatalf("clear maintenance failed: %v", err)
	}
	if updated.ForcedStatus != nil {
		t.Fatalf("expected override cleared, got %s", *updated.ForcedStatus)
	}
	if updated.EffectiveStatus() != enums.InventoryAvailable {
		t.Fatalf("expected AVAILABLE, got %s", updated.EffectiveStatus())
	}

	// clearing twice is a state conflict
	_, err = h.svc.ClearMaintenance(ctx, item.ID, nil)
	requireCode(t, err, pkgerrors.CodeStateConflict)
}

func TestRetire(t *testing.T) {
	h := newCatalogHarness(t)
	item := h.createItem(t, 1)
	ctx := context.Background()

	h.counter.committed = 1
	_, err := h.svc.Retire(ctx, item.ID, nil)
	requireCode(t, err, pkgerrors.CodeConstraint)

	h.counter.committed = 0
	updated, err := h.svc.Retire(ctx, item.ID, nil)
	if err != nil {
		t.Fatalf("retire failed: %v", err)
	}
	if updated.EffectiveStatus() != enums.InventoryRetired {
		t.Fatalf("expected RETIRED, got %s", updated.EffectiveStatus())
	}
}

func TestSearch(t *testing.T) {
	h := newCatalogHarness(t)
	ctx := context.Background()

	_, err := h.svc.Create(ctx, CreateItemInput{
		Name:          "Scissor Lift",
		Description:   "Electric scissor lift, 10m reach",
		Category:      enums.CategoryOther,
		Model:         "SL-10E",
		SerialNumber:  uuid.NewString(),
		TotalQuantity: 2,
		DailyRate:     decimal.NewFromInt(12000),
		Location:      "Galle depot",
	})
	if err != nil {
		t.Fatalf("failed to create item: %v", err)
	}
	h.createItem(t, 1)

	_, err = h.svc.Search(ctx, "x")
	requireCode(t, err, pkgerrors.CodeValidation)

	results, err := h.svc.Search(ctx, "scissor")
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(results) != 1 || results[0].Name != "Scissor Lift" {
		t.Fatalf("expected the scissor lift, got %d results", len(results))
	}
}

func TestListFilters(t *testing.T) {
	h := newCatalogHarness(t)
	ctx := context.Background()
	h.createItem(t, 2)
	retired := h.createItem(t, 1)
	if _, err := h.svc.Retire(ctx, retired.ID, nil); err != nil {
		t.Fatalf("retire failed: %v", err)
	}

	byCategory, err := h.svc.ListByCategory(ctx, enums.CategoryCrane)
	if err != nil {
		t.Fatalf("list by category failed: %v", err)
	}
	if len(byCategory) != 2 {
		t.Fatalf("expected 2 cranes, got %d", len(byCategory))
	}

	_, err = h.svc.ListByCategory(ctx, "JETPACK")
	requireCode(t, err, pkgerrors.CodeValidation)

	retiredOnly, err := h.svc.ListByStatus(ctx, enums.InventoryRetired)
	if err != nil {
		t.Fatalf("list by status failed: %v", err)
	}
	if len(retiredOnly) != 1 || retiredOnly[0].ID != retired.ID {
		t.Fatalf("expected only the retired item, got %d", len(retiredOnly))
	}

	available, err := h.svc.ListAvailable(ctx)
	if err != nil {
		t.Fatalf("list available failed: %v", err)
	}
	if len(available) != 1 {
		t.Fatalf("expected 1 rentable item, got %d", len(available))
	}
}

func TestGetUnknownItem(t *testing.T) {
	h := newCatalogHarness(t)
	_, err := h.svc.Get(context.Background(), uuid.New())
	requireCode(t, err, pkgerrors.CodeNotFound)
}

func TestUpdateCatalogFields(t *testing.T) {
	h := newCatalogHarness(t)
	item := h.createItem(t, 1)

	name := "Mobile Crane Mk2"
	rating := 4
	next := time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC)
	updated, err := h.svc.Update(context.Background(), item.ID, UpdateItemInput{
		Name:                &name,
		ConditionRating:     &rating,
		NextMaintenanceDate: &next,
		Tags:                []string{"crane", "heavy"},
	})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.Name != name || updated.ConditionRating != 4 {
		t.Fatalf("expected fields applied, got name=%q rating=%d", updated.Name, updated.ConditionRating)
	}
	if len(updated.Tags) != 2 {
		t.Fatalf("expected 2 tags, got %d", len(updated.Tags))
	}
}
