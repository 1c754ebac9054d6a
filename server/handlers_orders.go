package server

import (
	"net/http"

	"github.com/jrsteele09/go-storefront/apiclient"
	"github.com/jrsteele09/go-storefront/checkout"
	"github.com/jrsteele09/go-storefront/internal/validation"
	"github.com/jrsteele09/go-storefront/server/shoprepo"
	"github.com/rs/zerolog/log"
)

// CheckoutHandler validates the payment form, turns the cart into an order
// and empties it. A repeated Idempotency-Key replays the first order.
func (s *Server) CheckoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req checkout.Request
		if err := decodeBody(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "Cuerpo de la solicitud inválido")
			return
		}
		req.CardNumber = validation.NormalizeCardNumber(req.CardNumber)
		if err := req.Validate(); err != nil {
			writeValidationError(w, err)
			return
		}

		details := shoprepo.CheckoutDetails{
			ShippingAddress: req.ShippingAddress,
			CardLast4:       req.CardNumber[len(req.CardNumber)-4:],
		}
		idempotencyKey := r.Header.Get(apiclient.HeaderIdempotencyKey)
		order, replayed, err := s.shop.Checkout(shopUserID(r), details, idempotencyKey)
		if err != nil {
			writeShopError(w, err)
			return
		}

		status := http.StatusCreated
		if replayed {
			status = http.StatusOK
			log.Info().Int("order", order.ID).Msg("[Server.Checkout] idempotent replay")
		}
		writeJSON(w, r, status, order)
	}
}

// ListOrdersHandler answers with a bare array, newest first
func (s *Server) ListOrdersHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, r, http.StatusOK, s.shop.ListOrders(shopUserID(r)))
	}
}

func (s *Server) GetOrderHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, ok := pathID(r)
		if !ok {
			writeError(w, http.StatusBadRequest, "ID de pedido inválido")
			return
		}
		order, err := s.shop.GetOrder(shopUserID(r), orderID)
		if err != nil {
			writeShopError(w, err)
			return
		}
		writeJSON(w, r, http.StatusOK, order)
	}
}
