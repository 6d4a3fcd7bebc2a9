package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/equiprent/equiprent-backend/api/controllers"
	"github.com/equiprent/equiprent-backend/api/middleware"
	authsvc "github.com/equiprent/equiprent-backend/internal/auth"
	inventorysvc "github.com/equiprent/equiprent-backend/internal/inventory"
	reservationsvc "github.com/equiprent/equiprent-backend/internal/reservations"
	userssvc "github.com/equiprent/equiprent-backend/internal/users"
	"github.com/equiprent/equiprent-backend/pkg/config"
	"github.com/equiprent/equiprent-backend/pkg/db"
	"github.com/equiprent/equiprent-backend/pkg/enums"
	"github.com/equiprent/equiprent-backend/pkg/logger"
)

// NewRouter wires every endpoint. Catalog mutations and hard deletes sit
// behind staff or admin roles; reading the catalog and booking equipment
// only require a valid token.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	pinger db.Pinger,
	usersService *userssvc.Service,
	authService *authsvc.Service,
	inventoryService *inventorysvc.Service,
	reservationService *reservationsvc.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, pinger, logg))
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Post("/register", controllers.Register(usersService, logg))
		r.Post("/login", controllers.Login(authService, logg))
	})

	authenticated := middleware.Auth(cfg.JWT, logg)
	staff := middleware.RequireRole(logg, enums.UserRoleAdmin, enums.UserRoleStaff)
	admin := middleware.RequireRole(logg, enums.UserRoleAdmin)

	r.Route("/api/v1/inventory", func(r chi.Router) {
		r.Use(authenticated)

		r.Get("/", controllers.ListItems(inventoryService, logg))
		r.With(staff).Post("/", controllers.CreateItem(inventoryService, logg))

		r.Route("/{itemID}", func(r chi.Router) {
			r.Get("/", controllers.GetItem(inventoryService, logg))
			r.With(staff).Patch("/", controllers.UpdateItem(inventoryService, logg))
			r.With(admin).Delete("/", controllers.DeleteItem(inventoryService, logg))

			r.With(staff).Post("/maintenance", controllers.SetMaintenance(inventoryService, logg))
			r.With(staff).Delete("/maintenance", controllers.ClearMaintenance(inventoryService, logg))
			r.With(admin).Post("/retire", controllers.RetireItem(inventoryService, logg))
			r.With(staff).Post("/resync", controllers.ResyncItem(reservationService, logg))

			r.Get("/availability", controllers.CheckAvailability(reservationService, logg))

			r.Route("/reservations", func(r chi.Router) {
				r.Get("/", controllers.ListReservations(reservationService, logg))
				r.Post("/", controllers.CreateReservation(reservationService, logg))

				r.Route("/{reservationID}", func(r chi.Router) {
					r.Get("/", controllers.GetReservation(reservationService, logg))
					r.Patch("/", controllers.UpdateReservation(reservationService, logg))
					r.With(admin).Delete("/", controllers.DeleteReservation(reservationService, logg))

					r.With(staff).Post("/confirm", controllers.ConfirmReservation(reservationService, logg))
					r.With(staff).Post("/start", controllers.StartReservation(reservationService, logg))
					r.With(staff).Post("/end", controllers.EndReservation(reservationService, logg))
					r.Post("/cancel", controllers.CancelReservation(reservationService, logg))
				})
			})
		})
	})

	return r
}
