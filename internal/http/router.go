package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/services/pos-service-go/internal/metrics"
	"github.com/andreasstove999/ecommerce-system/services/pos-service-go/internal/payment"
)

type Deps struct {
	Logger  *zap.Logger
	Metrics *metrics.Metrics

	Inventory InventoryService
	Billing   BillingService
	Payments  PaymentService
	Users     UserService

	// LocalGateway enables the development checkout endpoint.
	LocalGateway *payment.LocalGateway

	CORSAllowOrigins []string
}

func NewRouter(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observe(d.Logger, d.Metrics))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.CORSAllowOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", health)
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}

	inv := &inventoryHandler{svc: d.Inventory}
	r.Route("/inventory", func(r chi.Router) {
		r.Post("/add", inv.Add)
		r.Put("/update/{id}", inv.Update)
		r.Delete("/delete/{id}", inv.Delete)
		r.Get("/all", inv.All)
	})

	bill := &billingHandler{svc: d.Billing}
	r.Post("/billing/create", bill.Create)

	pay := &paymentHandler{svc: d.Payments}
	r.Route("/payment", func(r chi.Router) {
		r.Post("/create-checkout-session", pay.CreateCheckoutSession)
		r.Get("/session/{id}", pay.ConfirmSession)
	})

	if d.LocalGateway != nil {
		co := &localCheckoutHandler{gateway: d.LocalGateway}
		r.Post("/checkout/{id}/pay", co.Pay)
	}

	usr := &userHandler{svc: d.Users}
	r.Post("/users/create", usr.Create)

	return r
}

func health(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
