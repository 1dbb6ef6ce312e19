package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/safar/marketplace-orders/internal/metrics"
)

func NewRouter(h *Handler, auth *Authenticator, health http.HandlerFunc) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)

	r.Get("/health", health)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/pricing/quote", h.Quote)

		r.Route("/orders", func(r chi.Router) {
			r.With(auth.Optional).Post("/", h.CreateOrder)
			r.With(auth.Require()).Get("/mine", h.MyOrders)
			r.With(auth.Optional).Get("/{id}", h.GetOrder)
			r.Get("/{id}/payment/return", h.PaymentReturn)
		})

		r.Route("/vendor", func(r chi.Router) {
			r.Use(auth.Require(RoleVendor))
			r.Get("/orders", h.VendorOrders)
			r.Get("/analytics", h.VendorAnalytics)
		})

		r.Route("/admin", func(r chi.Router) {
			r.With(auth.Require(RoleAdmin, RoleVendor)).Put("/orders/{id}/pay", h.MarkPaid)
			r.With(auth.Require(RoleAdmin, RoleVendor)).Put("/orders/{id}/deliver", h.MarkDelivered)
			r.With(auth.Require(RoleAdmin)).Get("/analytics", h.StoreAnalytics)
			r.With(auth.Require(RoleAdmin)).Post("/settings/reload", h.ReloadSettings)
		})
	})

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		slog.InfoContext(r.Context(), "http request",
			"request_id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
		)
	})
}
