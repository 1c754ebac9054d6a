package server

import (
	"net/http"

	"github.com/jrsteele09/go-storefront/server/shoprepo"
)

const defaultPageSize = 50

type productPage struct {
	Data  []shoprepo.Product `json:"data"`
	Total int                `json:"total"`
	Page  int                `json:"page"`
	Limit int                `json:"limit"`
}

func (s *Server) ListProductsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter := shoprepo.ProductFilter{
			Search:   r.URL.Query().Get("search"),
			Category: queryInt(r, "categoria", 0),
			Page:     queryInt(r, "page", 1),
			Limit:    queryInt(r, "limit", defaultPageSize),
		}
		if filter.Page < 1 {
			filter.Page = 1
		}
		if filter.Limit < 1 {
			filter.Limit = defaultPageSize
		}

		products, total := s.shop.ListProducts(filter)
		writeJSON(w, r, http.StatusOK, productPage{Data: products, Total: total, Page: filter.Page, Limit: filter.Limit})
	}
}

func (s *Server) GetProductHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r)
		if !ok {
			writeError(w, http.StatusBadRequest, "ID de producto inválido")
			return
		}
		product, err := s.shop.GetProduct(id)
		if err != nil {
			writeError(w, http.StatusNotFound, "Producto no encontrado")
			return
		}
		writeJSON(w, r, http.StatusOK, product)
	}
}
