package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stocklinehq/stockline-backend/api/controllers"
	"github.com/stocklinehq/stockline-backend/api/middleware"
	"github.com/stocklinehq/stockline-backend/internal/damaged"
	"github.com/stocklinehq/stockline-backend/internal/inventory"
	"github.com/stocklinehq/stockline-backend/internal/movements"
	"github.com/stocklinehq/stockline-backend/internal/orders"
	"github.com/stocklinehq/stockline-backend/internal/stock"
	"github.com/stocklinehq/stockline-backend/pkg/config"
	"github.com/stocklinehq/stockline-backend/pkg/db"
	"github.com/stocklinehq/stockline-backend/pkg/logger"
	"github.com/stocklinehq/stockline-backend/pkg/redis"
)

// Deps carries everything the router wires into handlers.
type Deps struct {
	Config    *config.Config
	Logger    *logger.Logger
	DB        db.Pinger
	Redis     redis.Pinger
	Registry  *prometheus.Registry
	Inventory inventory.Service
	Stock     stock.Service
	Movements movements.Service
	Orders    orders.Service
	Damaged   damaged.Service
}

func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(deps.Logger),
		middleware.RequestID(deps.Logger),
		middleware.Logging(deps.Logger),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(deps.Config))
		r.Get("/ready", controllers.HealthReady(deps.Config, deps.Logger, deps.DB, deps.Redis))
	})

	if deps.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/products/{productId}", func(r chi.Router) {
			r.Post("/batches", controllers.CreateBatch(deps.Inventory, deps.Logger))
			r.Get("/batches", controllers.ListBatches(deps.Inventory, deps.Logger))
			r.Get("/stock", controllers.GetStock(deps.Stock, deps.Logger))
			r.Post("/stock/sync", controllers.SyncStock(deps.Stock, deps.Logger))
			r.Get("/movements", controllers.ListMovements(deps.Movements, deps.Logger))
		})

		r.Route("/batches/{batchId}", func(r chi.Router) {
			r.Get("/", controllers.GetBatch(deps.Inventory, deps.Logger))
			r.Patch("/", controllers.UpdateBatch(deps.Inventory, deps.Logger))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", controllers.CreateOrder(deps.Orders, deps.Logger))
			r.Get("/", controllers.ListOrders(deps.Orders, deps.Logger))
			r.Route("/{orderId}", func(r chi.Router) {
				r.Get("/", controllers.GetOrder(deps.Orders, deps.Logger))
				r.Post("/confirm", controllers.ConfirmOrder(deps.Orders, deps.Logger))
				r.Post("/reject", controllers.RejectOrder(deps.Orders, deps.Logger))
				r.Post("/status", controllers.UpdateOrderStatus(deps.Orders, deps.Logger))
				r.Post("/delivery", controllers.AssignDelivery(deps.Orders, deps.Logger))
				r.Patch("/delivery-method", controllers.UpdateDeliveryMethod(deps.Orders, deps.Logger))
			})
		})

		r.Route("/damaged-goods", func(r chi.Router) {
			r.Post("/", controllers.ReportDamagedGoods(deps.Damaged, deps.Logger))
			r.Get("/", controllers.ListDamagedGoods(deps.Damaged, deps.Logger))
			r.Get("/{damagedGoodsId}", controllers.GetDamagedGoods(deps.Damaged, deps.Logger))
			r.Delete("/{damagedGoodsId}", controllers.ReverseDamagedGoods(deps.Damaged, deps.Logger))
		})
	})

	return r
}
