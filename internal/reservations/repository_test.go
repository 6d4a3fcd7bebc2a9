package reservations

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/equiprent/equiprent-backend/pkg/db/models"
	"github.com/equiprent/equiprent-backend/pkg/enums"
	"github.com/equiprent/equiprent-backend/pkg/pagination"
)

func setupReservationRepo(t *testing.T) *Repository {
	t.Helper()

	conn, err := gorm.Open(
		sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())),
		&gorm.Config{SkipDefaultTransaction: true},
	)
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&models.InventoryReservation{}))
	return NewRepository(conn)
}

func seedReservation(t *testing.T, repo *Repository, inventoryID uuid.UUID, status enums.ReservationStatus, start, end, createdAt time.Time) *models.InventoryReservation {
	t.Helper()

	res := &models.InventoryReservation{
		ID:          uuid.New(),
		InventoryID: inventoryID,
		UserID:      uuid.New(),
		Quantity:    1,
		StartDate:   start,
		EndDate:     end,
		Status:      status,
		CreatedAt:   createdAt,
	}
	require.NoError(t, repo.Create(context.Background(), res))
	return res
}

func TestRepositoryFindByIDScopesToInventory(t *testing.T) {
	repo := setupReservationRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	itemID := uuid.New()
	res := seedReservation(t, repo, itemID, enums.ReservationPending,
		now.Add(24*time.Hour), now.Add(48*time.Hour), now)

	found, err := repo.FindByID(ctx, itemID, res.ID)
	require.NoError(t, err)
	assert.Equal(t, res.ID, found.ID)

	// the same reservation must not be visible through another item
	_, err = repo.FindByID(ctx, uuid.New(), res.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRepositoryListCommittedFiltersAndOrders(t *testing.T) {
	repo := setupReservationRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	itemID := uuid.New()
	later := seedReservation(t, repo, itemID, enums.ReservationConfirmed,
		now.Add(72*time.Hour), now.Add(96*time.Hour), now)
	earlier := seedReservation(t, repo, itemID, enums.ReservationPending,
		now.Add(24*time.Hour), now.Add(48*time.Hour), now)
	seedReservation(t, repo, itemID, enums.ReservationCancelled,
		now.Add(24*time.Hour), now.Add(48*time.Hour), now)
	seedReservation(t, repo, itemID, enums.ReservationCompleted,
		now.Add(-48*time.Hour), now.Add(-24*time.Hour), now)
	seedReservation(t, repo, uuid.New(), enums.ReservationConfirmed,
		now.Add(24*time.Hour), now.Add(48*time.Hour), now)

	rows, err := repo.ListCommitted(ctx, itemID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, earlier.ID, rows[0].ID)
	assert.Equal(t, later.ID, rows[1].ID)

	count, err := repo.CountCommitted(ctx, itemID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)
}

func TestRepositoryListByInventoryKeyset(t *testing.T) {
	repo := setupReservationRepo(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	itemID := uuid.New()
	var seeded []uuid.UUID
	for i := 0; i < 5; i++ {
		res := seedReservation(t, repo, itemID, enums.ReservationPending,
			now.Add(24*time.Hour), now.Add(48*time.Hour),
			now.Add(time.Duration(i)*time.Minute))
		seeded = append(seeded, res.ID)
	}

	first, err := repo.ListByInventory(ctx, itemID, nil, 2)
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, seeded[4], first[0].ID)
	assert.Equal(t, seeded[3], first[1].ID)

	boundary := &pagination.Cursor{CreatedAt: first[1].CreatedAt, ID: first[1].ID}
	second, err := repo.ListByInventory(ctx, itemID, boundary, 2)
	require.NoError(t, err)
	require.Len(t, second, 2)
	assert.Equal(t, seeded[2], second[0].ID)
	assert.Equal(t, seeded[1], second[1].ID)

	boundary = &pagination.Cursor{CreatedAt: second[1].CreatedAt, ID: second[1].ID}
	last, err := repo.ListByInventory(ctx, itemID, boundary, 2)
	require.NoError(t, err)
	require.Len(t, last, 1)
	assert.Equal(t, seeded[0], last[0].ID)
}

func TestRepositoryListStalePending(t *testing.T) {
	repo := setupReservationRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	stale := seedReservation(t, repo, uuid.New(), enums.ReservationPending,
		now.Add(-2*time.Hour), now.Add(24*time.Hour), now)
	seedReservation(t, repo, uuid.New(), enums.ReservationPending,
		now.Add(24*time.Hour), now.Add(48*time.Hour), now)
	seedReservation(t, repo, uuid.New(), enums.ReservationConfirmed,
		now.Add(-2*time.Hour), now.Add(24*time.Hour), now)

	rows, err := repo.ListStalePending(ctx, now)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, stale.ID, rows[0].ID)
}
