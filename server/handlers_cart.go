package server

import (
	"net/http"
	"strconv"

	"github.com/jrsteele09/go-storefront/server/shoprepo"
	"github.com/pkg/errors"
)

type addItemBody struct {
	ProductID int `json:"idProducto"`
	Quantity  int `json:"cantidad"`
}

type updateItemBody struct {
	Quantity int `json:"cantidad"`
}

func (s *Server) GetCartHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, r, http.StatusOK, s.shop.GetCart(shopUserID(r)))
	}
}

func (s *Server) AddItemHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body addItemBody
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "Cuerpo de la solicitud inválido")
			return
		}
		cart, err := s.shop.AddItem(shopUserID(r), body.ProductID, body.Quantity)
		if err != nil {
			writeShopError(w, err)
			return
		}
		writeJSON(w, r, http.StatusCreated, cart)
	}
}

func (s *Server) UpdateItemHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		itemID, ok := pathID(r)
		if !ok {
			writeError(w, http.StatusBadRequest, "ID de item inválido")
			return
		}
		var body updateItemBody
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "Cuerpo de la solicitud inválido")
			return
		}
		cart, err := s.shop.UpdateItem(shopUserID(r), itemID, body.Quantity)
		if err != nil {
			writeShopError(w, err)
			return
		}
		writeJSON(w, r, http.StatusOK, cart)
	}
}

func (s *Server) RemoveItemHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		itemID, ok := pathID(r)
		if !ok {
			writeError(w, http.StatusBadRequest, "ID de item inválido")
			return
		}
		cart, err := s.shop.RemoveItem(shopUserID(r), itemID)
		if err != nil {
			writeShopError(w, err)
			return
		}
		writeJSON(w, r, http.StatusOK, cart)
	}
}

func (s *Server) ClearCartHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, r, http.StatusOK, s.shop.ClearCart(shopUserID(r)))
	}
}

// shopUserID maps the authenticated user to the numeric id the shop repo keys on
func shopUserID(r *http.Request) int {
	id, _ := strconv.Atoi(userFromContext(r.Context()).ID)
	return id
}

func writeShopError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shoprepo.ErrProductNotFound):
		writeError(w, http.StatusNotFound, "Producto no encontrado")
	case errors.Is(err, shoprepo.ErrItemNotFound):
		writeError(w, http.StatusNotFound, "Item no encontrado en el carrito")
	case errors.Is(err, shoprepo.ErrOrderNotFound):
		writeError(w, http.StatusNotFound, "Pedido no encontrado")
	case errors.Is(err, shoprepo.ErrInvalidQuantity):
		writeError(w, http.StatusBadRequest, "La cantidad debe ser al menos 1")
	case errors.Is(err, shoprepo.ErrInsufficientStock):
		writeError(w, http.StatusBadRequest, "Stock insuficiente")
	case errors.Is(err, shoprepo.ErrEmptyCart):
		writeError(w, http.StatusBadRequest, "El carrito está vacío")
	default:
		writeError(w, http.StatusInternalServerError, "Error interno del servidor")
	}
}
