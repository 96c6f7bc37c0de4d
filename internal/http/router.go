package http

import (
	"net/http"
	"time"

	"github.com/fjod/go_takeout/internal/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/propagation"
)

type RouterConfig struct {
	RequestTimeout     time.Duration
	MaxRequestBodySize int64
	SessionTTL         time.Duration
	SecureCookies      bool
}

func NewRouter(cfg RouterConfig, carts *CartHandler, checkout *CheckoutHandler, orders *OrdersHandler, log zerolog.Logger) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.MaxRequestBodySize <= 0 {
		cfg.MaxRequestBodySize = 1 << 20 // 1MB
	}
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(hlog.NewHandler(log))
	r.Use(RequestLogMiddleware)
	r.Use(logger.TraceMiddleware)
	r.Use(hlog.AccessHandler(accessLog))
	r.Use(middleware.RequestSize(cfg.MaxRequestBodySize))
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(SessionMiddleware(cfg.SessionTTL, cfg.SecureCookies))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/stores/{merchant_id}", func(r chi.Router) {
			r.Route("/cart", func(r chi.Router) {
				r.Get("/", carts.GetCart)
				r.Delete("/", carts.ClearCart)
				r.Post("/items", carts.AddItem)
				r.Put("/items/{item_id}", carts.UpdateQuantity)
				r.Delete("/items/{item_id}", carts.RemoveItem)
			})
			r.Post("/checkout", checkout.StartCheckout)
			r.Post("/checkout/abandon", checkout.Abandon)
			r.Post("/finalize", checkout.Finalize)
			r.Post("/orders", checkout.CreateOrder)
		})
		r.Get("/payments/{merchant_payment_id}/status", checkout.Status)
		r.Route("/orders", func(r chi.Router) {
			r.Get("/", orders.ListOrders)
			r.Get("/last", orders.LastOrder)
			r.Get("/{order_id}", orders.GetOrder)
		})
		r.Get("/merchants/{merchant_id}/orders", orders.MerchantOrders)
		r.Patch("/merchants/{merchant_id}/orders/{order_id}/status", orders.UpdateStatus)
	})

	return otelhttp.NewHandler(r, "takeout-api",
		otelhttp.WithPropagators(propagation.TraceContext{}),
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}
