package orders

import (
	"encoding/json"
	"strings"

	"github.com/jrsteele09/go-storefront/internal/utils"
	"github.com/jrsteele09/go-storefront/products"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// ParseStatus normalizes the backend's status names. Unknown values are pending.
func ParseStatus(s string) Status {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "procesando", "processing", "enviado", "shipped":
		return StatusProcessing
	case "completado", "completed", "entregado", "delivered":
		return StatusCompleted
	case "cancelado", "cancelled", "canceled":
		return StatusCancelled
	}
	return StatusPending
}

func (s *Status) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = ParseStatus(raw)
	return nil
}

// Line is a product snapshot frozen at purchase time
type Line struct {
	ID        int               `json:"idDetallePedido"`
	Quantity  int               `json:"cantidad"`
	UnitPrice decimal.Decimal   `json:"precioUnitario"`
	Subtotal  decimal.Decimal   `json:"subtotal"`
	Product   *products.Product `json:"producto,omitempty"`
}

type wireLine struct {
	IDDetallePedido *int              `json:"idDetallePedido"`
	ID              *int              `json:"id"`
	Quantity        int               `json:"cantidad"`
	UnitPrice       *decimal.Decimal  `json:"precioUnitario"`
	Price           *decimal.Decimal  `json:"precio"`
	Subtotal        *decimal.Decimal  `json:"subtotal"`
	Product         *products.Product `json:"producto"`
}

func (l *Line) UnmarshalJSON(data []byte) error {
	var w wireLine
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*l = Line{
		ID:        utils.First(w.IDDetallePedido, w.ID),
		Quantity:  w.Quantity,
		UnitPrice: utils.First(w.UnitPrice, w.Price),
		Product:   w.Product,
	}
	if w.Subtotal != nil {
		l.Subtotal = *w.Subtotal
	} else {
		l.Subtotal = l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
	}
	return nil
}

// Name is the product name captured with the line
func (l Line) Name() string {
	if l.Product == nil {
		return ""
	}
	return l.Product.Name
}

type Order struct {
	ID              int             `json:"idPedido"`
	Number          string          `json:"numeroPedido"`
	PlacedAt        string          `json:"fechaPedido"`
	Status          Status          `json:"estado"`
	Total           decimal.Decimal `json:"total"`
	ShippingAddress string          `json:"direccionEnvio"`
	PaymentMethod   string          `json:"metodoPago"`
	Notes           string          `json:"notas,omitempty"`
	Lines           []Line          `json:"detalles"`
}

type wireOrder struct {
	IDPedido        *int             `json:"idPedido"`
	ID              *int             `json:"id"`
	Number          string           `json:"numeroPedido"`
	FechaPedido     string           `json:"fechaPedido"`
	FechaCreacion   string           `json:"fechaCreacion"`
	Status          Status           `json:"estado"`
	Total           *decimal.Decimal `json:"total"`
	ShippingAddress string           `json:"direccionEnvio"`
	PaymentMethod   string           `json:"metodoPago"`
	Notes           string           `json:"notas"`
	Detalles        []Line           `json:"detalles"`
	Items           []Line           `json:"items"`
}

func (o *Order) UnmarshalJSON(data []byte) error {
	w := wireOrder{Status: StatusPending}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*o = Order{
		ID:              utils.First(w.IDPedido, w.ID),
		Number:          w.Number,
		PlacedAt:        w.FechaPedido,
		Status:          w.Status,
		ShippingAddress: w.ShippingAddress,
		PaymentMethod:   w.PaymentMethod,
		Notes:           w.Notes,
		Lines:           w.Detalles,
	}
	if o.PlacedAt == "" {
		o.PlacedAt = w.FechaCreacion
	}
	if len(o.Lines) == 0 {
		o.Lines = w.Items
	}
	if w.Total != nil {
		o.Total = *w.Total
	} else {
		o.Total = o.LinesTotal()
	}
	return nil
}

// LinesTotal sums the frozen line subtotals
func (o *Order) LinesTotal() decimal.Decimal {
	total := decimal.Zero
	for _, l := range o.Lines {
		total = total.Add(l.Subtotal)
	}
	return total
}
