package config

type CheckoutConfig interface {
	GetIdempotencyKeys() bool
}

type Checkout struct{}

var _ CheckoutConfig = Checkout{}

func (Checkout) GetIdempotencyKeys() bool {
	return GetBool("CHECKOUT_IDEMPOTENCY_KEYS", false) // Off: retried submits may duplicate orders
}
