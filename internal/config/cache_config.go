package config

import "time"

type CacheConfig interface {
	GetRedisAddr() string
	GetCartCacheTTL() time.Duration
	GetOrdersCacheTTL() time.Duration
	GetProductsCacheTTL() time.Duration
}

type Cache struct{}

var _ CacheConfig = Cache{}

// GetRedisAddr returns the Redis address for the cart cache, empty means in-memory
func (Cache) GetRedisAddr() string {
	return GetEnv("REDIS_ADDR", "")
}

func (Cache) GetCartCacheTTL() time.Duration {
	return GetDuration("CART_CACHE_TTL", 2*time.Minute)
}

func (Cache) GetOrdersCacheTTL() time.Duration {
	return GetDuration("ORDERS_CACHE_TTL", 2*time.Minute)
}

func (Cache) GetProductsCacheTTL() time.Duration {
	return GetDuration("PRODUCTS_CACHE_TTL", 5*time.Minute)
}
