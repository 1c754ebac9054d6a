package shoprepo

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

type userCart struct {
	cart  Cart
	items []CartItem
}

// InMemoryRepo is an in-memory implementation of Repo
type InMemoryRepo struct {
	mu          sync.RWMutex
	products    map[int]Product
	carts       map[int]*userCart // userID -> cart
	orders      map[int][]Order   // userID -> orders, oldest first
	idempotency map[string]int    // userID:key -> orderID
	nextCartID  int
	nextItemID  int
	nextOrderID int
	nextLineID  int
	nowFunc     func() time.Time
}

var _ Repo = (*InMemoryRepo)(nil)

// NewInMemoryRepo creates a new in-memory shop repository
func NewInMemoryRepo(nowFunc func() time.Time) *InMemoryRepo {
	if nowFunc == nil {
		nowFunc = time.Now
	}
	return &InMemoryRepo{
		products:    make(map[int]Product),
		carts:       make(map[int]*userCart),
		orders:      make(map[int][]Order),
		idempotency: make(map[string]int),
		nextCartID:  1,
		nextItemID:  1,
		nextOrderID: 1,
		nextLineID:  1,
		nowFunc:     nowFunc,
	}
}

func (r *InMemoryRepo) AddProducts(products ...Product) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range products {
		r.products[p.ID] = p
	}
}

func (r *InMemoryRepo) ListProducts(filter ProductFilter) ([]Product, int) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	search := strings.ToLower(strings.TrimSpace(filter.Search))
	matches := make([]Product, 0)
	for _, p := range r.products {
		if filter.Category != 0 && p.CategoryID != filter.Category {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(p.Name), search) && !strings.Contains(strings.ToLower(p.Description), search) {
			continue
		}
		matches = append(matches, p)
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].ID < matches[j].ID
	})

	total := len(matches)
	if filter.Limit <= 0 {
		return matches, total
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	start := (page - 1) * filter.Limit
	if start >= total {
		return []Product{}, total
	}
	end := start + filter.Limit
	if end > total {
		end = total
	}
	return matches[start:end], total
}

func (r *InMemoryRepo) GetProduct(id int) (Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.products[id]
	if !ok {
		return Product{}, ErrProductNotFound
	}
	return p, nil
}

func (r *InMemoryRepo) GetCart(userID int) Cart {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshot(r.cartFor(userID))
}

func (r *InMemoryRepo) AddItem(userID, productID, quantity int) (Cart, error) {
	if quantity < 1 {
		return Cart{}, ErrInvalidQuantity
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.products[productID]
	if !ok {
		return Cart{}, ErrProductNotFound
	}
	uc := r.cartFor(userID)

	for i := range uc.items {
		if uc.items[i].ProductID == productID {
			if uc.items[i].Quantity+quantity > p.Stock {
				return Cart{}, ErrInsufficientStock
			}
			uc.items[i].Quantity += quantity
			return r.snapshot(uc), nil
		}
	}

	if quantity > p.Stock {
		return Cart{}, ErrInsufficientStock
	}
	uc.items = append(uc.items, CartItem{
		ID:        r.nextItemID,
		CartID:    uc.cart.ID,
		ProductID: productID,
		Quantity:  quantity,
		Price:     p.Price,
		AddedAt:   r.nowFunc().UTC().Format(time.RFC3339),
	})
	r.nextItemID++
	return r.snapshot(uc), nil
}

func (r *InMemoryRepo) UpdateItem(userID, itemID, quantity int) (Cart, error) {
	if quantity < 1 {
		return Cart{}, ErrInvalidQuantity
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	uc := r.cartFor(userID)
	for i := range uc.items {
		if uc.items[i].ID != itemID {
			continue
		}
		if p, ok := r.products[uc.items[i].ProductID]; ok && quantity > p.Stock {
			return Cart{}, ErrInsufficientStock
		}
		uc.items[i].Quantity = quantity
		return r.snapshot(uc), nil
	}
	return Cart{}, ErrItemNotFound
}

func (r *InMemoryRepo) RemoveItem(userID, itemID int) (Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	uc := r.cartFor(userID)
	for i := range uc.items {
		if uc.items[i].ID == itemID {
			uc.items = append(uc.items[:i], uc.items[i+1:]...)
			return r.snapshot(uc), nil
		}
	}
	return Cart{}, ErrItemNotFound
}

func (r *InMemoryRepo) ClearCart(userID int) Cart {
	r.mu.Lock()
	defer r.mu.Unlock()

	uc := r.cartFor(userID)
	uc.items = nil
	return r.snapshot(uc)
}

func (r *InMemoryRepo) Checkout(userID int, details CheckoutDetails, idempotencyKey string) (Order, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idemKey := ""
	if idempotencyKey != "" {
		idemKey = fmt.Sprintf("%d:%s", userID, idempotencyKey)
		if orderID, ok := r.idempotency[idemKey]; ok {
			for _, o := range r.orders[userID] {
				if o.ID == orderID {
					return o, true, nil
				}
			}
		}
	}

	uc := r.cartFor(userID)
	if len(uc.items) == 0 {
		return Order{}, false, ErrEmptyCart
	}
	for _, item := range uc.items {
		if p := r.products[item.ProductID]; item.Quantity > p.Stock {
			return Order{}, false, fmt.Errorf("%w: %s", ErrInsufficientStock, p.Name)
		}
	}

	order := Order{
		ID:              r.nextOrderID,
		Number:          fmt.Sprintf("PED-%06d", r.nextOrderID),
		PlacedAt:        r.nowFunc().UTC().Format(time.RFC3339),
		Status:          "pendiente",
		ShippingAddress: details.ShippingAddress,
		PaymentMethod:   "Tarjeta **** " + details.CardLast4,
		Total:           decimal.Zero,
	}
	r.nextOrderID++

	for _, item := range uc.items {
		p := r.products[item.ProductID]
		p.Stock -= item.Quantity
		r.products[p.ID] = p

		subtotal := item.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
		order.Lines = append(order.Lines, OrderLine{
			ID:        r.nextLineID,
			Quantity:  item.Quantity,
			UnitPrice: item.Price,
			Subtotal:  subtotal,
			Product:   p,
		})
		r.nextLineID++
		order.Total = order.Total.Add(subtotal)
	}

	uc.items = nil
	r.orders[userID] = append(r.orders[userID], order)
	if idemKey != "" {
		r.idempotency[idemKey] = order.ID
	}
	return order, false, nil
}

// ListOrders returns the user's orders, newest first
func (r *InMemoryRepo) ListOrders(userID int) []Order {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := r.orders[userID]
	out := make([]Order, 0, len(list))
	for i := len(list) - 1; i >= 0; i-- {
		out = append(out, list[i])
	}
	return out
}

func (r *InMemoryRepo) GetOrder(userID, orderID int) (Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, o := range r.orders[userID] {
		if o.ID == orderID {
			return o, nil
		}
	}
	return Order{}, ErrOrderNotFound
}

// cartFor returns the user's cart, creating it on first access. Callers hold the lock.
func (r *InMemoryRepo) cartFor(userID int) *userCart {
	uc, ok := r.carts[userID]
	if !ok {
		uc = &userCart{cart: Cart{ID: r.nextCartID, UserID: userID, Active: true}}
		r.nextCartID++
		r.carts[userID] = uc
	}
	return uc
}

// snapshot copies the cart with current product data. Callers hold the lock.
func (r *InMemoryRepo) snapshot(uc *userCart) Cart {
	c := uc.cart
	c.Items = make([]CartItem, 0, len(uc.items))
	c.Total = decimal.Zero
	for _, item := range uc.items {
		item.Product = r.products[item.ProductID]
		c.Items = append(c.Items, item)
		c.Total = c.Total.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return c
}
