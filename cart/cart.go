package cart

import (
	"encoding/json"

	"github.com/jrsteele09/go-storefront/internal/utils"
	"github.com/jrsteele09/go-storefront/products"
	"github.com/shopspring/decimal"
)

type Item struct {
	ID        int               `json:"idCarritoItem"`
	CartID    int               `json:"idCarrito,omitempty"`
	ProductID int               `json:"idProducto"`
	Quantity  int               `json:"cantidad"`
	UnitPrice decimal.Decimal   `json:"precio"` // Price snapshot taken when the item was added
	AddedAt   string            `json:"fechaAgregado,omitempty"`
	Product   *products.Product `json:"producto,omitempty"`
}

type wireItem struct {
	IDCarritoItem *int              `json:"idCarritoItem"`
	ID            *int              `json:"id"`
	CartID        int               `json:"idCarrito"`
	IDProducto    *int              `json:"idProducto"`
	ProductID     *int              `json:"productId"`
	Cantidad      *int              `json:"cantidad"`
	Quantity      *int              `json:"quantity"`
	UnitPrice     *decimal.Decimal  `json:"precio"`
	AddedAt       string            `json:"fechaAgregado"`
	Product       *products.Product `json:"producto"`
}

func (i *Item) UnmarshalJSON(data []byte) error {
	var w wireItem
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*i = Item{
		ID:        utils.First(w.IDCarritoItem, w.ID),
		CartID:    w.CartID,
		ProductID: utils.First(w.IDProducto, w.ProductID),
		Quantity:  utils.First(w.Cantidad, w.Quantity),
		UnitPrice: utils.Value(w.UnitPrice),
		AddedAt:   w.AddedAt,
		Product:   w.Product,
	}
	if i.ProductID == 0 && i.Product != nil {
		i.ProductID = i.Product.ID
	}
	return nil
}

// Price is the unit price the item is charged at: the snapshot when the
// backend sent one, the product's current price otherwise
func (i Item) Price() decimal.Decimal {
	if !i.UnitPrice.IsZero() {
		return i.UnitPrice
	}
	if i.Product != nil {
		return i.Product.Price
	}
	return decimal.Zero
}

func (i Item) Subtotal() decimal.Decimal {
	return i.Price().Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Cart is the user's single active cart. ServerTotal is what the backend
// reported and is never used for display.
type Cart struct {
	ID          int                 `json:"idCarrito"`
	UserID      int                 `json:"idUsuario,omitempty"`
	Active      bool                `json:"estaActivo"`
	Items       []Item              `json:"items"`
	ServerTotal decimal.NullDecimal `json:"total"`
}

// Total recomputes the cart total from its items
func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.Subtotal())
	}
	return total
}

// Count is the number of units in the cart
func (c *Cart) Count() int {
	n := 0
	for _, item := range c.Items {
		n += item.Quantity
	}
	return n
}

func (c *Cart) Empty() bool {
	return len(c.Items) == 0
}

// Item returns the line with the given item id
func (c *Cart) Item(itemID int) (Item, bool) {
	for _, item := range c.Items {
		if item.ID == itemID {
			return item, true
		}
	}
	return Item{}, false
}

// ItemForProduct returns the line holding productID
func (c *Cart) ItemForProduct(productID int) (Item, bool) {
	for _, item := range c.Items {
		if item.ProductID == productID {
			return item, true
		}
	}
	return Item{}, false
}
