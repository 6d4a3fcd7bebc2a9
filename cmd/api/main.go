package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/equiprent/equiprent-backend/api/routes"
	authsvc "github.com/equiprent/equiprent-backend/internal/auth"
	inventorysvc "github.com/equiprent/equiprent-backend/internal/inventory"
	"github.com/equiprent/equiprent-backend/internal/locks"
	reservationsvc "github.com/equiprent/equiprent-backend/internal/reservations"
	userssvc "github.com/equiprent/equiprent-backend/internal/users"
	"github.com/equiprent/equiprent-backend/pkg/config"
	"github.com/equiprent/equiprent-backend/pkg/db"
	"github.com/equiprent/equiprent-backend/pkg/logger"
	"github.com/equiprent/equiprent-backend/pkg/migrate"
	"github.com/equiprent/equiprent-backend/pkg/outbox"
	"github.com/equiprent/equiprent-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	locker, err := buildLocker(cfg, redisClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create item locker", err)
		os.Exit(1)
	}

	publisher := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	userRepo := userssvc.NewRepository(dbClient.DB())
	itemRepo := inventorysvc.NewRepository(dbClient.DB())
	rsvRepo := reservationsvc.NewRepository(dbClient.DB())

	usersService, err := userssvc.NewService(dbClient, userRepo, publisher, logg, cfg.Password)
	if err != nil {
		logg.Error(context.Background(), "failed to create users service", err)
		os.Exit(1)
	}
	authService, err := authsvc.NewService(userRepo, cfg.JWT, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create auth service", err)
		os.Exit(1)
	}
	inventoryService, err := inventorysvc.NewService(dbClient, itemRepo, rsvRepo, locker, publisher, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create inventory service", err)
		os.Exit(1)
	}
	reservationService, err := reservationsvc.NewService(dbClient, itemRepo, rsvRepo, locker, publisher, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create reservation service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":       cfg.App.Env,
		"addr":      addr,
		"lock_mode": cfg.Rental.LockMode,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, usersService, authService, inventoryService, reservationService),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func buildLocker(cfg *config.Config, redisClient *redis.Client) (locks.ItemLocker, error) {
	if cfg.Rental.LockMode == config.LockModeRedis {
		return locks.NewRedisLocker(redisClient, cfg.Rental.LockTTL)
	}
	return locks.NewLocalLocker(), nil
}
