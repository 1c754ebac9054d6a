package config

import "time"

type ClientConfig interface {
	GetRequestTimeout() time.Duration
	GetReadRetries() int
	GetRateLimit() float64
}

type Client struct{}

var _ ClientConfig = Client{}

func (Client) GetRequestTimeout() time.Duration {
	return GetDuration("REQUEST_TIMEOUT", 15*time.Second)
}

// GetReadRetries is how many times a failed read is retried. Mutations are never retried.
func (Client) GetReadRetries() int {
	return GetInt("READ_RETRIES", 1)
}

// GetRateLimit is the client-side requests per second, 0 disables limiting
func (Client) GetRateLimit() float64 {
	return float64(GetInt("RATE_LIMIT_RPS", 0))
}
