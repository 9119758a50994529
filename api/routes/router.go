package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/angelmondragon/rocketshoes-cart/api/controllers"
	cartcontrollers "github.com/angelmondragon/rocketshoes-cart/api/controllers/cart"
	inventorycontrollers "github.com/angelmondragon/rocketshoes-cart/api/controllers/inventory"
	"github.com/angelmondragon/rocketshoes-cart/api/middleware"
	"github.com/angelmondragon/rocketshoes-cart/pkg/config"
	"github.com/angelmondragon/rocketshoes-cart/pkg/logger"
)

// Deps are the collaborators the cart API routes are wired to.
type Deps struct {
	Config    *config.Config
	Logger    *logger.Logger
	Carts     cartcontrollers.Carts
	Feed      cartcontrollers.Feed
	Gatherer  prometheus.Gatherer
	Readiness []controllers.ReadinessCheck
}

func NewRouter(d Deps) http.Handler {
	logg := d.Logger
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(d.Config.App.AllowedOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(d.Config.App.Env))
		r.Get("/ready", controllers.HealthReady(d.Config.App.Env, logg, d.Readiness...))
	})
	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/cart", func(r chi.Router) {
		r.Use(middleware.Session(logg, d.Config.App.IsProd()))
		r.Get("/", cartcontrollers.CartFetch(d.Carts, logg))
		r.Get("/notifications", cartcontrollers.CartNotifications(d.Feed, logg))
		r.Route("/items", func(r chi.Router) {
			r.Post("/", cartcontrollers.CartAddItem(d.Carts, logg))
			r.Delete("/{productId}", cartcontrollers.CartRemoveItem(d.Carts, logg))
			r.Patch("/{productId}", cartcontrollers.CartUpdateItem(d.Carts, logg))
		})
	})

	return otelhttp.NewHandler(r, "cart-api")
}

// NewInventoryRouter serves the seed catalog for local development.
func NewInventoryRouter(catalog inventorycontrollers.Catalog, logg *logger.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)
	r.Get("/products", inventorycontrollers.ListProducts(catalog))
	r.Get("/products/{id}", inventorycontrollers.GetProduct(catalog, logg))
	r.Get("/stock", inventorycontrollers.ListStock(catalog))
	r.Get("/stock/{id}", inventorycontrollers.GetStock(catalog, logg))
	r.Put("/stock/{id}", inventorycontrollers.SetStock(catalog, logg))
	return r
}
