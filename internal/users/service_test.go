package users

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/equiprent/equiprent-backend/pkg/config"
	"github.com/equiprent/equiprent-backend/pkg/db"
	"github.com/equiprent/equiprent-backend/pkg/db/models"
	"github.com/equiprent/equiprent-backend/pkg/enums"
	pkgerrors "github.com/equiprent/equiprent-backend/pkg/errors"
	"github.com/equiprent/equiprent-backend/pkg/security"
)

func testPasswordConfig() config.PasswordConfig {
	// minimal argon parameters keep the tests fast
	return config.PasswordConfig{
		ArgonMemoryKB:    8192,
		ArgonTime:        1,
		ArgonParallelism: 1,
		ArgonSaltLen:     16,
		ArgonKeyLen:      32,
	}
}

func newUserService(t *testing.T) (*Service, *Repository) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&models.User{}); err != nil {
		t.Fatalf("failed to migrate sqlite: %v", err)
	}
	repo := NewRepository(conn)
	svc, err := NewService(db.FromGorm(conn), repo, nil, nil, testPasswordConfig())
	if err != nil {
		t.Fatalf("failed to build service: %v", err)
	}
	return svc, repo
}

func TestRegister(t *testing.T) {
	svc, repo := newUserService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, RegisterInput{
		Email:    "Ops@Example.COM",
		Password: "correct horse battery",
		FullName: "Site Operator",
	})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if user.Email != "ops@example.com" {
		t.Fatalf("expected lowercased email, got %q", user.Email)
	}
	if user.Role != enums.UserRoleCustomer {
		t.Fatalf("expected default customer role, got %s", user.Role)
	}
	if !user.IsActive {
		t.Fatal("expected new account to be active")
	}

	stored, err := repo.FindByEmail(ctx, "ops@example.com")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	ok, err := security.VerifyPassword("correct horse battery", stored.PasswordHash)
	if err != nil || !ok {
		t.Fatalf("expected stored hash to verify, ok=%v err=%v", ok, err)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newUserService(t)
	ctx := context.Background()

	cases := []RegisterInput{
		{Email: "not-an-email", Password: "long enough pw"},
		{Email: "a@b.com", Password: "short"},
		{Email: "a@b.com", Password: "long enough pw", Role: "superuser"},
	}
	for _, input := range cases {
		_, err := svc.Register(ctx, input)
		appErr := pkgerrors.As(err)
		if appErr == nil || appErr.Code() != pkgerrors.CodeValidation {
			t.Fatalf("expected validation error for %+v, got %v", input, err)
		}
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, _ := newUserService(t)
	ctx := context.Background()

	input := RegisterInput{Email: "dup@example.com", Password: "long enough pw"}
	if _, err := svc.Register(ctx, input); err != nil {
		t.Fatalf("first register failed: %v", err)
	}
	_, err := svc.Register(ctx, input)
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestGetUnknownUser(t *testing.T) {
	svc, _ := newUserService(t)
	_, err := svc.Get(context.Background(), uuid.New())
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}
