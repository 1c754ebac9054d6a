package checkout

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-storefront/apiclient"
	"github.com/jrsteele09/go-storefront/cart"
	apperrors "github.com/jrsteele09/go-storefront/internal/errors"
	"github.com/jrsteele09/go-storefront/internal/validation"
	"github.com/jrsteele09/go-storefront/orders"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const PathCheckout = "/pedidos/checkout"

// PaymentDetails is the card form
type PaymentDetails struct {
	CardNumber string
	CardHolder string
	Expiry     string // MM/YY
	CVV        string
}

// Request is the checkout body. The same schema validates single fields while
// the form is filled in and the whole request on submission.
type Request struct {
	ShippingAddress string `json:"direccionEnvio" validate:"required"`
	CardNumber      string `json:"numeroTarjeta" validate:"required,cardnumber"`
	CardHolder      string `json:"nombreTarjeta" validate:"required,letters"`
	Expiry          string `json:"fechaExpiracion" validate:"required,cardexpiry"`
	CVV             string `json:"cvv" validate:"required,cvv"`
}

func NewRequest(payment PaymentDetails, shippingAddress string) Request {
	return Request{
		ShippingAddress: strings.TrimSpace(shippingAddress),
		CardNumber:      validation.NormalizeCardNumber(payment.CardNumber),
		CardHolder:      strings.TrimSpace(payment.CardHolder),
		Expiry:          strings.TrimSpace(payment.Expiry),
		CVV:             strings.TrimSpace(payment.CVV),
	}
}

func (r Request) Validate() error {
	return validation.Struct(r)
}

// ValidateField validates one form field by its json name
func (r Request) ValidateField(name string) error {
	return validation.Field(r, name)
}

// Cart is what the orchestrator needs from the cart synchronizer
type Cart interface {
	Cached(ctx context.Context) (*cart.Cart, bool)
	FetchCart(ctx context.Context) (*cart.Cart, error)
	Invalidate(ctx context.Context)
}

// Orders is what the orchestrator needs from the order history
type Orders interface {
	Invalidate(ctx context.Context)
}

type TokenRotator interface {
	RotateToken(token string)
}

// Orchestrator submits one-shot payment and order creation requests
type Orchestrator struct {
	client          *apiclient.Client
	rotator         TokenRotator
	cart            Cart
	orders          Orders
	idempotencyKeys bool
}

type Option func(*Orchestrator)

// WithIdempotencyKeys attaches a fresh Idempotency-Key to every submission
// so the backend can drop a duplicate of a retried request
func WithIdempotencyKeys(enabled bool) Option {
	return func(o *Orchestrator) {
		o.idempotencyKeys = enabled
	}
}

func New(client *apiclient.Client, rotator TokenRotator, c Cart, o Orders, opts ...Option) *Orchestrator {
	orch := &Orchestrator{
		client:  client,
		rotator: rotator,
		cart:    c,
		orders:  o,
	}
	for _, opt := range opts {
		opt(orch)
	}
	return orch
}

// Submit validates the form and the cart, then creates the order with a
// single call. On success the cart and order caches are invalidated; on
// failure nothing local changes. A timed out submission may still have
// created the order. The emptiness check reads the cached cart; a cold cache
// costs one GET of the cart before an empty cart is rejected.
func (o *Orchestrator) Submit(ctx context.Context, payment PaymentDetails, shippingAddress string) (*orders.Order, error) {
	req := NewRequest(payment, shippingAddress)
	if err := req.Validate(); err != nil {
		return nil, err
	}

	current, ok := o.cart.Cached(ctx)
	if !ok {
		var err error
		current, err = o.cart.FetchCart(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "[Orchestrator.Submit] reading cart")
		}
	}
	if current.Empty() {
		return nil, apperrors.NewRuleError("cart", apperrors.ErrEmptyCart)
	}

	var header http.Header
	if o.idempotencyKeys {
		header = http.Header{}
		header.Set(apiclient.HeaderIdempotencyKey, uuid.New().String())
	}

	env, err := apiclient.Post[orders.Order](ctx, o.client, PathCheckout, req, header)
	if err != nil {
		return nil, errors.Wrap(err, "[Orchestrator.Submit]")
	}
	o.rotator.RotateToken(env.RotatedToken)

	o.cart.Invalidate(ctx)
	o.orders.Invalidate(ctx)

	order := env.Data
	log.Info().Int("order", order.ID).Str("number", order.Number).Msg("[Orchestrator.Submit] order created")
	return &order, nil
}
