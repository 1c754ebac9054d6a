package server

// Route path constants, relative to RouteAPI
const (
	RouteAPI = "/api"

	// Auth
	RouteAuthLogin     = "/auth/login"
	RouteAuthRegister  = "/auth/register"
	RouteAuthLogout    = "/auth/logout"
	RouteAuthLogoutAll = "/auth/logout-all"
	RouteAuthProfile   = "/auth/profile"

	// Catalog
	RouteProducts = "/productos"
	RouteProduct  = "/productos/{id}"

	// Cart
	RouteCart      = "/carrito"
	RouteCartItems = "/carrito/item"
	RouteCartItem  = "/carrito/item/{id}"
	RouteCartClear = "/carrito/clear"

	// Orders
	RouteCheckout = "/pedidos/checkout"
	RouteMyOrders = "/pedidos/mis-pedidos"
	RouteOrder    = "/pedidos/{id}"

	RouteMetrics = "/metrics"
)
