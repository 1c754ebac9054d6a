package shoprepo

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrItemNotFound      = errors.New("cart item not found")
	ErrOrderNotFound     = errors.New("order not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrEmptyCart         = errors.New("cart is empty")
	ErrInvalidQuantity   = errors.New("quantity must be at least 1")
)

// Product is the catalog entry as the backend serializes it
type Product struct {
	ID          int             `json:"idProducto"`
	Name        string          `json:"nombre"`
	Description string          `json:"descripcion"`
	Price       decimal.Decimal `json:"precio"`
	Stock       int             `json:"stock"`
	ImageURL    string          `json:"imagenUrl,omitempty"`
	CategoryID  int             `json:"idCat"`
}

type CartItem struct {
	ID        int             `json:"idCarritoItem"`
	CartID    int             `json:"idCarrito"`
	ProductID int             `json:"idProducto"`
	Quantity  int             `json:"cantidad"`
	Price     decimal.Decimal `json:"precio"`
	AddedAt   string          `json:"fechaAgregado"`
	Product   Product         `json:"producto"`
}

type Cart struct {
	ID     int             `json:"idCarrito"`
	UserID int             `json:"idUsuario"`
	Active bool            `json:"estaActivo"`
	Items  []CartItem      `json:"items"`
	Total  decimal.Decimal `json:"total"`
}

type OrderLine struct {
	ID        int             `json:"idDetallePedido"`
	Quantity  int             `json:"cantidad"`
	UnitPrice decimal.Decimal `json:"precioUnitario"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	Product   Product         `json:"producto"`
}

type Order struct {
	ID              int             `json:"idPedido"`
	Number          string          `json:"numeroPedido"`
	PlacedAt        string          `json:"fechaPedido"`
	Status          string          `json:"estado"`
	Total           decimal.Decimal `json:"total"`
	ShippingAddress string          `json:"direccionEnvio"`
	PaymentMethod   string          `json:"metodoPago"`
	Notes           string          `json:"notas,omitempty"`
	Lines           []OrderLine     `json:"detalles"`
}

type ProductFilter struct {
	Search   string
	Category int
	Page     int
	Limit    int
}

// CheckoutDetails is what an order keeps of the checkout form
type CheckoutDetails struct {
	ShippingAddress string
	CardLast4       string
}

// Repo is the backend's shop state. There is exactly one active cart per
// user, created on first access.
type Repo interface {
	AddProducts(products ...Product)
	ListProducts(filter ProductFilter) (products []Product, total int)
	GetProduct(id int) (Product, error)

	GetCart(userID int) Cart
	AddItem(userID, productID, quantity int) (Cart, error)
	UpdateItem(userID, itemID, quantity int) (Cart, error)
	RemoveItem(userID, itemID int) (Cart, error)
	ClearCart(userID int) Cart

	// Checkout turns the cart into an order and empties it. A repeated
	// idempotency key returns the order it created the first time.
	Checkout(userID int, details CheckoutDetails, idempotencyKey string) (order Order, replayed bool, err error)
	ListOrders(userID int) []Order
	GetOrder(userID, orderID int) (Order, error)
}
