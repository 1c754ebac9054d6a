// Package storefront wires the storefront client components together.
package storefront

import (
	"context"
	"net/http"
	"time"

	"github.com/jrsteele09/go-storefront/apiclient"
	"github.com/jrsteele09/go-storefront/cache"
	"github.com/jrsteele09/go-storefront/cart"
	"github.com/jrsteele09/go-storefront/checkout"
	"github.com/jrsteele09/go-storefront/guard"
	"github.com/jrsteele09/go-storefront/internal/config"
	"github.com/jrsteele09/go-storefront/orders"
	"github.com/jrsteele09/go-storefront/products"
	"github.com/jrsteele09/go-storefront/sessions"
	"github.com/jrsteele09/go-storefront/token"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const redisKeyPrefix = "storefront"

// Config is the subset of the configuration the client reads
type Config interface {
	config.EnvConfig
	config.ClientConfig
	config.CacheConfig
	config.CheckoutConfig
}

// Storefront holds one session's worth of client components. The caches
// of Products, Cart and Orders are reset whenever the session ends.
type Storefront struct {
	Tokens   *token.Store
	Client   *apiclient.Client
	Session  *sessions.Controller
	Products *products.Service
	Cart     *cart.Synchronizer
	Orders   *orders.Service
	Checkout *checkout.Orchestrator
	Guard    *guard.Guard

	redis      *redis.Client
	ownsClient bool
}

type options struct {
	httpClient    *http.Client
	redisClient   *redis.Client
	restoredToken string
}

type Option func(*options)

func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) {
		o.httpClient = hc
	}
}

// WithRedisClient uses an existing Redis client for the caches, regardless of REDIS_ADDR
func WithRedisClient(rc *redis.Client) Option {
	return func(o *options) {
		o.redisClient = rc
	}
}

// WithRestoredToken starts with a token kept from an earlier run. It stays
// unconfirmed until the guard or a successful call vouches for it.
func WithRestoredToken(rawToken string) Option {
	return func(o *options) {
		o.restoredToken = rawToken
	}
}

func New(cfg Config, opts ...Option) (*Storefront, error) {
	if cfg == nil {
		return nil, errors.New("[Storefront New] config is required")
	}
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	s := &Storefront{Tokens: token.NewStore()}
	s.Tokens.Set(o.restoredToken)

	clientOpts := []apiclient.Option{
		apiclient.WithTimeout(cfg.GetRequestTimeout()),
		apiclient.WithReadRetries(cfg.GetReadRetries()),
		apiclient.WithRateLimit(cfg.GetRateLimit()),
	}
	if o.httpClient != nil {
		clientOpts = append(clientOpts, apiclient.WithHTTPClient(o.httpClient))
	}
	s.Client = apiclient.New(cfg.GetAPIURL(), s.Tokens, clientOpts...)
	s.Session = sessions.New(s.Client, s.Tokens)

	if err := s.connectRedis(cfg, o.redisClient); err != nil {
		return nil, err
	}
	productCache, cartCache, orderCache := s.caches(cfg)

	s.Products = products.New(s.Client, s.Session, productCache)
	s.Cart = cart.NewSynchronizer(s.Client, s.Session, cartCache)
	s.Orders = orders.New(s.Client, s.Session, orderCache)
	s.Checkout = checkout.New(s.Client, s.Session, s.Cart, s.Orders, checkout.WithIdempotencyKeys(cfg.GetIdempotencyKeys()))
	s.Guard = guard.New(s.Client, s.Session, s.Tokens)

	s.Session.Track(s.Products, s.Cart, s.Orders)
	return s, nil
}

// Close releases the Redis connection when the storefront opened it
func (s *Storefront) Close() error {
	if s.redis == nil || !s.ownsClient {
		return nil
	}
	return s.redis.Close()
}

func (s *Storefront) connectRedis(cfg Config, rc *redis.Client) error {
	if rc != nil {
		s.redis = rc
		return nil
	}
	addr := cfg.GetRedisAddr()
	if addr == "" {
		return nil
	}

	rc = redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return errors.Wrapf(err, "[Storefront New] failed to reach redis at %s", addr)
	}
	s.redis = rc
	s.ownsClient = true
	log.Info().Str("addr", addr).Msg("[Storefront] caching in redis")
	return nil
}

func (s *Storefront) caches(cfg Config) (cache.Cache[[]products.Product], cache.Cache[cart.Cart], cache.Cache[[]orders.Order]) {
	if s.redis == nil {
		return cache.NewMemoryCache[[]products.Product](cfg.GetProductsCacheTTL()),
			cache.NewMemoryCache[cart.Cart](cfg.GetCartCacheTTL()),
			cache.NewMemoryCache[[]orders.Order](cfg.GetOrdersCacheTTL())
	}
	return cache.NewRedisCache[[]products.Product](s.redis, redisKeyPrefix+":products", cfg.GetProductsCacheTTL()),
		cache.NewRedisCache[cart.Cart](s.redis, redisKeyPrefix+":cart", cfg.GetCartCacheTTL()),
		cache.NewRedisCache[[]orders.Order](s.redis, redisKeyPrefix+":orders", cfg.GetOrdersCacheTTL())
}
