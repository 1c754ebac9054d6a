package server

import (
	"github.com/jrsteele09/go-storefront/server/shoprepo"
	"github.com/jrsteele09/go-storefront/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

const (
	DemoUserEmail    = "demo@tienda.com"
	DemoUserPassword = "demo1234"
)

// InitialiseSystem seeds the catalog and a demo customer when the repos are empty
func (s *Server) InitialiseSystem() error {
	if _, total := s.shop.ListProducts(shoprepo.ProductFilter{}); total == 0 {
		s.shop.AddProducts(DefaultCatalog()...)
		log.Info().Int("products", len(DefaultCatalog())).Msg("[Server.InitialiseSystem] catalog seeded")
	}

	if _, err := s.users.GetByEmail(DemoUserEmail); err == nil {
		return nil
	} else if !errors.Is(err, users.ErrUserNotFound) {
		return errors.Wrap(err, "[Server.InitialiseSystem] failed to look up demo user")
	}

	hash, err := users.HashPassword(DemoUserPassword)
	if err != nil {
		return errors.Wrap(err, "[Server.InitialiseSystem] failed to hash demo password")
	}
	demo := &users.User{
		Email:        DemoUserEmail,
		PasswordHash: hash,
		FirstName:    "Demo",
		LastName:     "Cliente",
		Phone:        "11223344",
		Address:      "Avenida Siempre Viva 742",
		Active:       true,
		CreatedAt:    s.nowFunc(),
	}
	if err := s.users.Insert(demo); err != nil {
		return errors.Wrap(err, "[Server.InitialiseSystem] failed to create demo user")
	}
	return nil
}

// DefaultCatalog is the product list a fresh backend starts with
func DefaultCatalog() []shoprepo.Product {
	price := decimal.RequireFromString
	return []shoprepo.Product{
		{ID: 1, Name: "Auriculares inalámbricos", Description: "Bluetooth 5.3 con cancelación de ruido", Price: price("59.90"), Stock: 25, CategoryID: 1},
		{ID: 2, Name: "Teclado mecánico", Description: "Switches rojos, retroiluminado", Price: price("84.50"), Stock: 12, CategoryID: 1},
		{ID: 3, Name: "Mouse ergonómico", Description: "Seis botones programables", Price: price("29.99"), Stock: 40, CategoryID: 1},
		{ID: 4, Name: "Remera de algodón", Description: "Talles S a XL", Price: price("15.00"), Stock: 100, CategoryID: 2},
		{ID: 5, Name: "Campera impermeable", Description: "Con capucha desmontable", Price: price("120.00"), Stock: 8, CategoryID: 2},
		{ID: 6, Name: "Taza térmica", Description: "Acero inoxidable 450ml", Price: price("18.75"), Stock: 60, CategoryID: 3},
		{ID: 7, Name: "Set de cuchillos", Description: "Cinco piezas con soporte", Price: price("45.00"), Stock: 15, CategoryID: 3},
		{ID: 8, Name: "Lámpara de escritorio", Description: "LED regulable", Price: price("32.40"), Stock: 20, CategoryID: 3},
		{ID: 42, Name: "Mochila urbana", Description: "Compartimento para notebook de 15 pulgadas", Price: price("49.90"), Stock: 30, CategoryID: 2},
	}
}
