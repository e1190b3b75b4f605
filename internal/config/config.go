package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"
	"github.com/go-playground/validator/v10"
	"github.com/jrsteele09/go-token-service/internal/errors"
)

type Config interface {
	EnvConfig
	CorsConfig
	TokenConfig
	SecurityConfig
	StoreConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
	GetTrustProxyHeaders() bool
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type mainConfig struct {
	EnvVars
	Cors
	Token
	Security
	Store
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// New loads the configuration from the process environment and validates it.
// Any returned error wraps errors.ErrConfig and should stop the process.
func New() (Config, error) {
	return load(env.Options{})
}

// NewFromMap loads the configuration from the given variables instead of the
// process environment.
func NewFromMap(vars map[string]string) (Config, error) {
	return load(env.Options{Environment: vars})
}

func load(opts env.Options) (Config, error) {
	var c mainConfig
	if err := env.ParseWithOptions(&c, opts); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrConfig, err)
	}
	if err := validate.Struct(c); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrConfig, err)
	}
	return c, nil
}
