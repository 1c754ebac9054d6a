package products

import (
	"encoding/json"
	"fmt"

	"github.com/jrsteele09/go-storefront/internal/utils"
	"github.com/shopspring/decimal"
)

const (
	DefaultDescription = "No description available"
	DefaultCategory    = "Uncategorized"
	DefaultCategoryID  = 1
)

type Category struct {
	ID   int    `json:"id"`
	Name string `json:"nombre"`
}

type Product struct {
	ID          int             `json:"id"`
	Name        string          `json:"nombre"`
	Description string          `json:"descripcion"`
	Price       decimal.Decimal `json:"precio"`
	Stock       int             `json:"stock"`
	ImageURL    string          `json:"imageUrl,omitempty"`
	CategoryID  int             `json:"idCategoria"`
	Category    *Category       `json:"categoria,omitempty"`
}

// wireProduct accepts every field spelling the backend has used
type wireProduct struct {
	IDProducto  *int             `json:"idProducto"`
	ID          *int             `json:"id"`
	Name        string           `json:"nombre"`
	Description string           `json:"descripcion"`
	Price       *decimal.Decimal `json:"precio"`
	Stock       int              `json:"stock"`
	ImageURL    string           `json:"imageUrl"`
	ImagenURL   string           `json:"imagenUrl"`
	IDCat       *int             `json:"idCat"`
	IDCategoria *int             `json:"idCategoria"`
	Category    *Category        `json:"categoria"`
}

// UnmarshalJSON fills the gaps left by partial backend payloads with defaults
func (p *Product) UnmarshalJSON(data []byte) error {
	var w wireProduct
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	*p = Product{
		ID:          firstInt(0, w.IDProducto, w.ID),
		Name:        w.Name,
		Description: w.Description,
		Price:       utils.Value(w.Price),
		Stock:       w.Stock,
		ImageURL:    w.ImageURL,
		CategoryID:  firstInt(DefaultCategoryID, w.IDCat, w.IDCategoria),
		Category:    w.Category,
	}
	if p.ImageURL == "" {
		p.ImageURL = w.ImagenURL
	}
	if p.Name == "" {
		p.Name = fmt.Sprintf("Product %d", p.ID)
	}
	if p.Description == "" {
		p.Description = DefaultDescription
	}
	if p.Category == nil {
		p.Category = &Category{ID: p.CategoryID, Name: DefaultCategory}
	}
	return nil
}

func firstInt(fallback int, values ...*int) int {
	for _, v := range values {
		if v != nil && *v != 0 {
			return *v
		}
	}
	return fallback
}

// InStock reports whether quantity units can be ordered
func (p *Product) InStock(quantity int) bool {
	return quantity <= p.Stock
}
