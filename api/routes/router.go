package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/counterpos-backend/api/controllers"
	inventorycontrollers "github.com/angelmondragon/counterpos-backend/api/controllers/inventory"
	ordercontrollers "github.com/angelmondragon/counterpos-backend/api/controllers/orders"
	recipecontrollers "github.com/angelmondragon/counterpos-backend/api/controllers/recipes"
	"github.com/angelmondragon/counterpos-backend/api/middleware"
	"github.com/angelmondragon/counterpos-backend/internal/orders"
	"github.com/angelmondragon/counterpos-backend/pkg/config"
	"github.com/angelmondragon/counterpos-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/counterpos-backend/pkg/redis"
)

// RouterParams carries everything the HTTP adapter serves. Events, Idempotency and Gatherer
// are optional.
type RouterParams struct {
	Config      *config.Config
	Logger      *logger.Logger
	Readiness   []controllers.ReadinessCheck
	Mode        controllers.ModeSource
	SyncStatus  controllers.StatusSource
	Views       controllers.VersionSource
	Events      controllers.EventSource
	Inventory   inventorycontrollers.Service
	Recipes     recipecontrollers.Service
	Orders      orders.Service
	Idempotency pkgredis.IdempotencyStore
	Gatherer    prometheus.Gatherer
}

func NewRouter(p RouterParams) http.Handler {
	cfg, logg := p.Config, p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, p.Mode, p.Readiness, logg))
	})

	if cfg.Metrics.Enabled && p.Gatherer != nil {
		r.Handle(cfg.Metrics.Path, promhttp.HandlerFor(p.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.UserIdentity(logg))
		r.Use(middleware.Idempotency(p.Idempotency, logg))

		r.Route("/v1", func(r chi.Router) {
			r.Route("/orders", func(r chi.Router) {
				r.Post("/", ordercontrollers.Place(p.Orders, logg))
				r.Get("/{orderId}", ordercontrollers.Detail(p.Orders, logg))
			})
			r.Get("/sales", ordercontrollers.Sales(p.Orders, logg))

			r.Route("/inventory", func(r chi.Router) {
				r.Get("/", inventorycontrollers.List(p.Inventory, logg))
				r.Post("/", inventorycontrollers.Create(p.Inventory, logg))
				r.Get("/low-stock", inventorycontrollers.LowStock(p.Inventory, logg))
				r.Route("/{inventoryId}", func(r chi.Router) {
					r.Get("/", inventorycontrollers.Detail(p.Inventory, logg))
					r.Patch("/", inventorycontrollers.Update(p.Inventory, logg))
					r.Delete("/", inventorycontrollers.Delete(p.Inventory, logg))
					r.Post("/adjust", inventorycontrollers.Adjust(p.Inventory, logg))
					r.Post("/restock", inventorycontrollers.Restock(p.Inventory, logg))
				})
			})

			r.Route("/products/{productId}/recipe", func(r chi.Router) {
				r.Get("/", recipecontrollers.Get(p.Recipes, logg))
				r.Put("/", recipecontrollers.Replace(p.Recipes, logg))
			})

			r.Get("/sync/status", controllers.SyncStatus(p.SyncStatus, logg))
			r.Get("/views", controllers.ViewVersions(p.Views, logg))
			if p.Events != nil {
				r.Get("/views/events", controllers.ViewEvents(p.Events, logg))
			}
		})

		r.Route("/admin/v1", func(r chi.Router) {
			r.Delete("/orders/{orderId}", ordercontrollers.Purge(p.Orders, logg))
			r.Delete("/products/{productId}/order-references", ordercontrollers.UnlinkProduct(p.Orders, logg))
		})
	})

	return r
}
