package config

import (
	"fmt"
	"strings"
)

type EnvVars struct {
	Port              string `env:"PORT" envDefault:"8080" validate:"required"`
	AppName           string `env:"APP_NAME" envDefault:"Go Token Service"`
	Environment       string `env:"ENV" envDefault:"DEV"`
	LogLevel          string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=trace debug info warn error"`
	TrustProxyHeaders bool   `env:"TRUST_PROXY_HEADERS" envDefault:"false"`
}

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetPort() string {
	port := e.Port
	if port != "" && port[0] != ':' {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (e EnvVars) GetAppName() string {
	return e.AppName
}

func (e EnvVars) GetEnv() string {
	return strings.ToUpper(e.Environment)
}

func (e EnvVars) GetLogLevel() string {
	return e.LogLevel
}

// GetTrustProxyHeaders reports whether X-Forwarded-For may be used to derive the client IP.
// Only enable this behind a proxy that overwrites the header.
func (e EnvVars) GetTrustProxyHeaders() bool {
	return e.TrustProxyHeaders
}
