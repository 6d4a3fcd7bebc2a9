package routes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	authsvc "github.com/equiprent/equiprent-backend/internal/auth"
	inventorysvc "github.com/equiprent/equiprent-backend/internal/inventory"
	"github.com/equiprent/equiprent-backend/internal/locks"
	reservationsvc "github.com/equiprent/equiprent-backend/internal/reservations"
	userssvc "github.com/equiprent/equiprent-backend/internal/users"
	pkgauth "github.com/equiprent/equiprent-backend/pkg/auth"
	"github.com/equiprent/equiprent-backend/pkg/config"
	"github.com/equiprent/equiprent-backend/pkg/db"
	"github.com/equiprent/equiprent-backend/pkg/db/models"
	"github.com/equiprent/equiprent-backend/pkg/enums"
	"github.com/equiprent/equiprent-backend/pkg/logger"
)

type routerHarness struct {
	handler http.Handler
	cfg     *config.Config
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "dev", Port: "8080"},
		JWT: config.JWTConfig{
			Secret:            "router-test-secret",
			Issuer:            "equiprent-test",
			ExpirationMinutes: 15,
		},
		Password: config.PasswordConfig{
			ArgonMemoryKB:    8192,
			ArgonTime:        1,
			ArgonParallelism: 1,
			ArgonSaltLen:     16,
			ArgonKeyLen:      32,
		},
	}
}

func newRouterHarness(t *testing.T) *routerHarness {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(
		&models.User{},
		&models.InventoryItem{},
		&models.InventoryReservation{},
	); err != nil {
		t.Fatalf("failed to migrate sqlite: %v", err)
	}

	cfg := testConfig()
	logg := logger.New(logger.Options{ServiceName: "router-test", Output: io.Discard})
	client := db.FromGorm(conn)
	locker := locks.NewLocalLocker()

	userRepo := userssvc.NewRepository(conn)
	itemRepo := inventorysvc.NewRepository(conn)
	rsvRepo := reservationsvc.NewRepository(conn)

	usersService, err := userssvc.NewService(client, userRepo, nil, logg, cfg.Password)
	if err != nil {
		t.Fatalf("users service: %v", err)
	}
	authService, err := authsvc.NewService(userRepo, cfg.JWT, logg)
	if err != nil {
		t.Fatalf("auth service: %v", err)
	}
	inventoryService, err := inventorysvc.NewService(client, itemRepo, rsvRepo, locker, nil, logg)
	if err != nil {
		t.Fatalf("inventory service: %v", err)
	}
	reservationService, err := reservationsvc.NewService(client, itemRepo, rsvRepo, locker, nil, logg)
	if err != nil {
		t.Fatalf("reservation service: %v", err)
	}

	handler := NewRouter(cfg, logg, client, usersService, authService, inventoryService, reservationService)
	return &routerHarness{handler: handler, cfg: cfg}
}

func (h *routerHarness) tokenFor(t *testing.T, role enums.UserRole) string {
	t.Helper()
	token, err := pkgauth.MintAccessToken(h.cfg.JWT, time.Now(), pkgauth.AccessTokenPayload{
		UserID: uuid.New(),
		Role:   role,
		JTI:    uuid.NewString(),
	})
	if err != nil {
		t.Fatalf("failed to mint token: %v", err)
	}
	return token
}

func (h *routerHarness) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dest any) {
	t.Helper()
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("failed to decode envelope: %v", err)
	}
	if err := json.Unmarshal(envelope.Data, dest); err != nil {
		t.Fatalf("failed to decode data: %v", err)
	}
}

func TestHealthEndpoints(t *testing.T) {
	h := newRouterHarness(t)
	if rec := h.do(t, http.MethodGet, "/health/live", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("live: expected 200, got %d", rec.Code)
	}
	if rec := h.do(t, http.MethodGet, "/health/ready", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("ready: expected 200, got %d", rec.Code)
	}
}

func TestRegisterAndLogin(t *testing.T) {
	h := newRouterHarness(t)

	rec := h.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email":     "renter@example.com",
		"password":  "long enough pw",
		"full_name": "Site Renter",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = h.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email":    "renter@example.com",
		"password": "long enough pw",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var login struct {
		AccessToken string `json:"access_token"`
	}
	decodeData(t, rec, &login)
	if login.AccessToken == "" {
		t.Fatal("expected an access token")
	}

	rec = h.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email":    "renter@example.com",
		"password": "wrong password",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad login: expected 401, got %d", rec.Code)
	}
}

func TestInventoryRouteAuthorization(t *testing.T) {
	h := newRouterHarness(t)
	body := map[string]any{
		"name":           "Excavator",
		"category":       "EXCAVATOR",
		"serial_number":  "EX-100",
		"total_quantity": 1,
		"daily_rate":     "35000",
		"location":       "Colombo depot",
	}

	// no token
	if rec := h.do(t, http.MethodPost, "/api/v1/inventory", "", body); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
	// customer token cannot create catalog entries
	customer := h.tokenFor(t, enums.UserRoleCustomer)
	if rec := h.do(t, http.MethodPost, "/api/v1/inventory", customer, body); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for customer, got %d", rec.Code)
	}
	// staff can
	staff := h.tokenFor(t, enums.UserRoleStaff)
	rec := h.do(t, http.MethodPost, "/api/v1/inventory", staff, body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 for staff, got %d: %s", rec.Code, rec.Body.String())
	}

	var created struct {
		ID string `json:"ID"`
	}
	decodeData(t, rec, &created)
	if created.ID == "" {
		t.Fatal("expected created item id")
	}

	// customers can read the catalog
	if rec := h.do(t, http.MethodGet, "/api/v1/inventory", customer, nil); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 listing for customer, got %d", rec.Code)
	}
	// but only admins delete
	if rec := h.do(t, http.MethodDelete, "/api/v1/inventory/"+created.ID, staff, nil); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for staff delete, got %d", rec.Code)
	}
	admin := h.tokenFor(t, enums.UserRoleAdmin)
	if rec := h.do(t, http.MethodDelete, "/api/v1/inventory/"+created.ID, admin, nil); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin delete, got %d", rec.Code)
	}
}

func TestReservationFlowOverHTTP(t *testing.T) {
	h := newRouterHarness(t)
	staff := h.tokenFor(t, enums.UserRoleStaff)
	customer := h.tokenFor(t, enums.UserRoleCustomer)

	rec := h.do(t, http.MethodPost, "/api/v1/inventory", staff, map[string]any{
		"name":           "Generator",
		"category":       "GENERATOR",
		"serial_number":  "GEN-1",
		"total_quantity": 1,
		"daily_rate":     "9000",
		"location":       "Galle depot",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create item: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var item struct {
		ID string `json:"ID"`
	}
	decodeData(t, rec, &item)

	start := time.Now().Add(24 * time.Hour).UTC().Format(time.RFC3339)
	end := time.Now().Add(48 * time.Hour).UTC().Format(time.RFC3339)

	// availability before booking
	rec = h.do(t, http.MethodGet,
		fmt.Sprintf("/api/v1/inventory/%s/availability?start=%s&end=%s&quantity=1", item.ID, start, end),
		customer, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("availability: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var probe struct {
		Available bool `json:"available"`
	}
	decodeData(t, rec, &probe)
	if !probe.Available {
		t.Fatal("expected the item to be available")
	}

	// book it
	rec = h.do(t, http.MethodPost, fmt.Sprintf("/api/v1/inventory/%s/reservations", item.ID), customer, map[string]any{
		"quantity":   1,
		"start_date": start,
		"end_date":   end,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create reservation: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var reservation struct {
		ID     string `json:"ID"`
		Status string `json:"Status"`
	}
	decodeData(t, rec, &reservation)
	if reservation.Status != "PENDING" {
		t.Fatalf("expected PENDING, got %s", reservation.Status)
	}

	// second booking for the same window conflicts
	rec = h.do(t, http.MethodPost, fmt.Sprintf("/api/v1/inventory/%s/reservations", item.ID), customer, map[string]any{
		"quantity":   1,
		"start_date": start,
		"end_date":   end,
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("overbooking: expected 409, got %d: %s", rec.Code, rec.Body.String())
	}

	// staff confirms, starts and ends the rental
	base := fmt.Sprintf("/api/v1/inventory/%s/reservations/%s", item.ID, reservation.ID)
	for _, step := range []string{"confirm", "start", "end"} {
		rec = h.do(t, http.MethodPost, base+"/"+step, staff, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d: %s", step, rec.Code, rec.Body.String())
		}
	}

	// ending twice is a state conflict
	rec = h.do(t, http.MethodPost, base+"/end", staff, nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("double end: expected 422, got %d: %s", rec.Code, rec.Body.String())
	}
}
