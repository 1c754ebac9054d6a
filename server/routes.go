package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jrsteele09/go-storefront/internal/metrics"
)

func (s *Server) initRoutes() {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(metrics.InstrumentHandler)
	router.Use(s.LoggingMiddleware)

	s.RegisterRoute(router, "", http.MethodGet, RouteMetrics, metrics.Handler().ServeHTTP)

	router.Route(RouteAPI, func(api chi.Router) {
		// Public
		s.RegisterRoute(api, RouteAPI, http.MethodPost, RouteAuthLogin, s.LoginHandler())
		s.RegisterRoute(api, RouteAPI, http.MethodPost, RouteAuthRegister, s.RegisterHandler())

		// Bearer token required
		api.Group(func(protected chi.Router) {
			protected.Use(s.RequireAuth)

			s.RegisterRoute(protected, RouteAPI, http.MethodPost, RouteAuthLogout, s.LogoutHandler())
			s.RegisterRoute(protected, RouteAPI, http.MethodPost, RouteAuthLogoutAll, s.LogoutAllHandler())
			s.RegisterRoute(protected, RouteAPI, http.MethodGet, RouteAuthProfile, s.ProfileHandler())

			s.RegisterRoute(protected, RouteAPI, http.MethodGet, RouteProducts, s.ListProductsHandler())
			s.RegisterRoute(protected, RouteAPI, http.MethodGet, RouteProduct, s.GetProductHandler())

			s.RegisterRoute(protected, RouteAPI, http.MethodGet, RouteCart, s.GetCartHandler())
			s.RegisterRoute(protected, RouteAPI, http.MethodPost, RouteCartItems, s.AddItemHandler())
			s.RegisterRoute(protected, RouteAPI, http.MethodPatch, RouteCartItem, s.UpdateItemHandler())
			s.RegisterRoute(protected, RouteAPI, http.MethodDelete, RouteCartItem, s.RemoveItemHandler())
			s.RegisterRoute(protected, RouteAPI, http.MethodDelete, RouteCartClear, s.ClearCartHandler())

			s.RegisterRoute(protected, RouteAPI, http.MethodPost, RouteCheckout, s.CheckoutHandler())
			s.RegisterRoute(protected, RouteAPI, http.MethodGet, RouteMyOrders, s.ListOrdersHandler())
			s.RegisterRoute(protected, RouteAPI, http.MethodGet, RouteOrder, s.GetOrderHandler())
		})
	})

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Ruta no encontrada")
	})
	s.router = router
}

// LoggingMiddleware logs every request in DEV
func (s *Server) LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.env == "DEV" {
			logRoute(r.Method, r.URL.Path)
		}
		next.ServeHTTP(w, r)
	})
}
