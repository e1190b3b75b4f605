package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-token-service/internal/config"
	"github.com/jrsteele09/go-token-service/token/jwt"
	"github.com/jrsteele09/go-token-service/token/keys"
	"github.com/jrsteele09/go-token-service/token/refresh"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// TokenLifecycle is the credential lifecycle exposed over HTTP
type TokenLifecycle interface {
	Issue(ctx context.Context, subjectID string, roles []string, clientIP string) (*refresh.Tokens, error)
	Rotate(ctx context.Context, rawRefresh, clientIP string) (*refresh.Tokens, error)
	Revoke(ctx context.Context, rawRefresh, clientIP, reason string) error
}

// AccessInspector validates access credentials for the introspection endpoint
type AccessInspector interface {
	Introspect(rawToken string) (*jwt.TokenIntrospection, error)
}

type Server struct {
	env       string // Environment (e.g., "DEV", "PROD")
	mux       *http.ServeMux
	routes    []string
	config    config.Config
	tokens    TokenLifecycle
	inspector AccessInspector
	jwks      keys.JWKSProvider
	admin     IdentityAdmin
	metrics   http.Handler
	logger    zerolog.Logger
}

// Option configures optional Server collaborators
type Option func(*Server)

// WithJWKS publishes the signer's public keys. Without it the JWKS route returns 404.
func WithJWKS(provider keys.JWKSProvider) Option {
	return func(s *Server) {
		s.jwks = provider
	}
}

// WithIdentityAdmin mounts the user admin routes behind the internal API key
func WithIdentityAdmin(admin IdentityAdmin) Option {
	return func(s *Server) {
		s.admin = admin
	}
}

// WithMetricsHandler serves h on the metrics route
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

func New(config config.Config, tokens TokenLifecycle, inspector AccessInspector, opts ...Option) *Server {
	s := &Server{
		env:       config.GetEnv(),
		mux:       http.NewServeMux(),
		config:    config,
		tokens:    tokens,
		inspector: inspector,
		logger:    log.Logger,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.initRoutes()
	s.logRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		method, path, found := strings.Cut(route, " ")
		if !found {
			method, path = "", route
		}
		s.logger.Debug().Str("method", method).Str("path", path).Msg("route registered")
	}
}
