package config

import (
	"fmt"
	"time"
)

// BackendConfig configures the reference storefront backend
type BackendConfig interface {
	GetPort() string
	GetTokenSecret() string
	GetTokenTTL() time.Duration
	GetTokenRotateAfter() time.Duration
}

type Backend struct{}

var _ BackendConfig = Backend{}

func (Backend) GetPort() string {
	port := GetEnv("PORT", "3000")
	if port[0] != ':' {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (Backend) GetTokenSecret() string {
	return GetEnv("TOKEN_SECRET", "dev-secret")
}

func (Backend) GetTokenTTL() time.Duration {
	return GetDuration("TOKEN_TTL", 15*time.Minute)
}

// GetTokenRotateAfter is the token age after which responses carry a fresh token
func (Backend) GetTokenRotateAfter() time.Duration {
	return GetDuration("TOKEN_ROTATE_AFTER", time.Minute)
}
