package config

type Config interface {
	EnvConfig
	ClientConfig
	CacheConfig
	CheckoutConfig
	BackendConfig
}

type EnvConfig interface {
	GetAPIURL() string
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
}

type mainConfig struct {
	EnvVars
	Client
	Cache
	Checkout
	Backend
}

func New() Config {
	return mainConfig{}
}
