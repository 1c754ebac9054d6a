package cart

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/jrsteele09/go-storefront/apiclient"
	"github.com/jrsteele09/go-storefront/cache"
	apperrors "github.com/jrsteele09/go-storefront/internal/errors"
	"github.com/jrsteele09/go-storefront/internal/metrics"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

const (
	PathCart      = "/carrito"
	PathCartItem  = "/carrito/item"
	PathCartClear = "/carrito/clear"
)

// Session is what the synchronizer needs from the session controller
type Session interface {
	IsAuthenticated() bool
	UserID() string
	RotateToken(token string)
}

type addItemRequest struct {
	ProductID int `json:"idProducto"`
	Quantity  int `json:"cantidad"`
}

type updateItemRequest struct {
	Quantity int `json:"cantidad"`
}

// Synchronizer keeps a cached view of the server-side cart. Every mutation
// invalidates the cache, the next read fetches a fresh cart. Callers must
// serialize mutations against the cart; the last response wins.
type Synchronizer struct {
	client  *apiclient.Client
	session Session
	cache   cache.Cache[Cart]
	group   singleflight.Group

	lock       sync.Mutex
	cartID     int
	hasCartID  bool
	generation uint64
	key        string
}

func NewSynchronizer(client *apiclient.Client, session Session, c cache.Cache[Cart]) *Synchronizer {
	return &Synchronizer{
		client:  client,
		session: session,
		cache:   c,
	}
}

// CartID returns the discovered cart identity
func (s *Synchronizer) CartID() (int, bool) {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.cartID, s.hasCartID
}

// FetchCart returns the user's cart, from cache while it is fresh.
// Concurrent fetches share one request.
func (s *Synchronizer) FetchCart(ctx context.Context) (*Cart, error) {
	if !s.session.IsAuthenticated() {
		return nil, apperrors.ErrNotAuthenticated
	}
	key := s.cacheKey()

	if cached, err := s.cache.Get(ctx, key); err == nil {
		metrics.RecordCacheLookup("cart", true)
		s.discover(&cached, s.currentGeneration())
		return &cached, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		log.Warn().Err(err).Msg("[Synchronizer.FetchCart] cache read failed")
	}
	metrics.RecordCacheLookup("cart", false)

	flight := fmt.Sprintf("%s#%d", key, s.currentGeneration())
	v, err, _ := s.group.Do(flight, func() (any, error) {
		return s.fetch(ctx, key)
	})
	if err != nil {
		return nil, err
	}
	c := v.(Cart)
	c.Items = append([]Item(nil), c.Items...)
	return &c, nil
}

func (s *Synchronizer) fetch(ctx context.Context, key string) (Cart, error) {
	gen := s.currentGeneration()

	env, err := apiclient.Get[Cart](ctx, s.client, PathCart, nil)
	if err != nil {
		return Cart{}, errors.Wrap(err, "[Synchronizer.FetchCart]")
	}
	s.session.RotateToken(env.RotatedToken)

	c := env.Data
	if c.ServerTotal.Valid && !c.ServerTotal.Decimal.Equal(c.Total()) {
		log.Debug().Str("server", c.ServerTotal.Decimal.String()).Str("computed", c.Total().String()).Msg("[Synchronizer.FetchCart] server total disagrees with items")
	}

	// A fetch that raced an invalidation must not repopulate the cache
	if s.discover(&c, gen) {
		if err := s.cache.Set(ctx, key, c); err != nil {
			log.Warn().Err(err).Msg("[Synchronizer.FetchCart] cache write failed")
		}
	}
	return c, nil
}

// discover records the cart identity if gen is still current
func (s *Synchronizer) discover(c *Cart, gen uint64) bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	if gen != s.generation {
		return false
	}
	if c.ID != 0 {
		s.cartID = c.ID
		s.hasCartID = true
	}
	return true
}

// AddItem adds quantity units of productID. The cart identity is discovered
// with a fetch first when it is not known yet.
func (s *Synchronizer) AddItem(ctx context.Context, productID, quantity int) error {
	if quantity < 1 {
		return apperrors.NewRuleError("cantidad", apperrors.ErrInvalidQuantity)
	}
	if !s.session.IsAuthenticated() {
		return apperrors.ErrNotAuthenticated
	}
	if _, ok := s.CartID(); !ok {
		if _, err := s.FetchCart(ctx); err != nil {
			return errors.Wrap(err, "[Synchronizer.AddItem] discovering cart")
		}
	}

	body := addItemRequest{ProductID: productID, Quantity: quantity}
	return s.mutate(ctx, "AddItem", func() (*apiclient.Envelope[apiclient.Empty], error) {
		return apiclient.Post[apiclient.Empty](ctx, s.client, PathCartItem, body, nil)
	})
}

// UpdateItemQuantity sets the quantity of a line. Quantities below 1 are
// rejected locally; removing a line is RemoveItem's job.
func (s *Synchronizer) UpdateItemQuantity(ctx context.Context, itemID, quantity int) error {
	if quantity < 1 {
		return apperrors.NewRuleError("cantidad", apperrors.ErrInvalidQuantity)
	}
	if !s.session.IsAuthenticated() {
		return apperrors.ErrNotAuthenticated
	}
	body := updateItemRequest{Quantity: quantity}
	return s.mutate(ctx, "UpdateItemQuantity", func() (*apiclient.Envelope[apiclient.Empty], error) {
		return apiclient.Patch[apiclient.Empty](ctx, s.client, fmt.Sprintf("%s/%d", PathCartItem, itemID), body)
	})
}

func (s *Synchronizer) RemoveItem(ctx context.Context, itemID int) error {
	if !s.session.IsAuthenticated() {
		return apperrors.ErrNotAuthenticated
	}
	return s.mutate(ctx, "RemoveItem", func() (*apiclient.Envelope[apiclient.Empty], error) {
		return apiclient.Delete[apiclient.Empty](ctx, s.client, fmt.Sprintf("%s/%d", PathCartItem, itemID))
	})
}

// ClearCart empties the cart. Clearing an empty cart succeeds.
func (s *Synchronizer) ClearCart(ctx context.Context) error {
	if !s.session.IsAuthenticated() {
		return apperrors.ErrNotAuthenticated
	}
	err := s.mutate(ctx, "ClearCart", func() (*apiclient.Envelope[apiclient.Empty], error) {
		return apiclient.Delete[apiclient.Empty](ctx, s.client, PathCartClear)
	})
	var httpErr *apperrors.HttpError
	if errors.As(err, &httpErr) && httpErr.Status == http.StatusNotFound {
		return nil
	}
	return err
}

func (s *Synchronizer) mutate(ctx context.Context, op string, call func() (*apiclient.Envelope[apiclient.Empty], error)) error {
	s.cacheKey()
	env, err := call()
	if err != nil {
		// The server may have applied the change before failing
		s.Invalidate(ctx)
		return errors.Wrapf(err, "[Synchronizer.%s]", op)
	}
	s.session.RotateToken(env.RotatedToken)
	s.Invalidate(ctx)
	return nil
}

// Invalidate drops the cached cart. Fetches in flight will not repopulate it.
func (s *Synchronizer) Invalidate(ctx context.Context) {
	s.lock.Lock()
	s.generation++
	key := s.key
	s.lock.Unlock()

	if key == "" {
		return
	}
	if err := s.cache.Delete(ctx, key); err != nil {
		log.Warn().Err(err).Msg("[Synchronizer.Invalidate] cache delete failed")
	}
}

// Cached returns the cached cart without fetching
func (s *Synchronizer) Cached(ctx context.Context) (*Cart, bool) {
	s.lock.Lock()
	key := s.key
	s.lock.Unlock()
	if key == "" {
		return nil, false
	}
	c, err := s.cache.Get(ctx, key)
	if err != nil {
		return nil, false
	}
	return &c, true
}

// Reset forgets the cart of the ended session
func (s *Synchronizer) Reset() {
	ctx := context.Background()
	s.Invalidate(ctx)

	s.lock.Lock()
	s.cartID = 0
	s.hasCartID = false
	s.key = ""
	s.lock.Unlock()
}

func (s *Synchronizer) currentGeneration() uint64 {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.generation
}

func (s *Synchronizer) cacheKey() string {
	key := s.session.UserID()
	if key == "" {
		key = "me"
	}
	s.lock.Lock()
	s.key = key
	s.lock.Unlock()
	return key
}
