package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/jrsteele09/go-token-service/internal/config"
	"github.com/jrsteele09/go-token-service/internal/metrics"
	"github.com/jrsteele09/go-token-service/server"
	"github.com/jrsteele09/go-token-service/token/jwt"
	"github.com/jrsteele09/go-token-service/token/keys"
	"github.com/jrsteele09/go-token-service/token/refresh"
	"github.com/jrsteele09/go-token-service/token/refresh/pgstore"
	"github.com/jrsteele09/go-token-service/token/refresh/redisstore"
	refreshrepofake "github.com/jrsteele09/go-token-service/token/refresh/repofake"
	"github.com/jrsteele09/go-token-service/users"
	"github.com/jrsteele09/go-token-service/users/pgrepo"
	"github.com/jrsteele09/go-token-service/users/redisrepo"
	fakeuserrepo "github.com/jrsteele09/go-token-service/users/repofake"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const devUserID = "dev-user"

type app struct {
	handler http.Handler
	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// newApp wires every collaborator explicitly. Key material or store errors
// stop startup.
func newApp(ctx context.Context, c config.Config) (*app, error) {
	a := &app{}

	signer, err := keys.NewSigner(c.GetSignerType(), c.GetSigningKey(), c.GetPrivateKeyPEM(), c.GetKeyID())
	if err != nil {
		return nil, fmt.Errorf("failed to create signer: %w", err)
	}
	issuer, err := jwt.NewIssuer(signer, c.GetIssuer(), c.GetAudience(), c.GetAccessTokenTTL())
	if err != nil {
		return nil, err
	}
	hasher, err := refresh.NewHasher(
		refresh.WithSecretSize(c.GetRefreshTokenBytes()),
		refresh.WithAlgorithm(c.GetDigestAlgorithm()),
		refresh.WithPepper(c.GetDigestPepper()),
	)
	if err != nil {
		return nil, err
	}

	store, userRepo, err := a.openStores(ctx, c)
	if err != nil {
		a.Close()
		return nil, err
	}

	if c.GetEnv() == "DEV" {
		if err := seedUsers(ctx, userRepo); err != nil {
			a.Close()
			return nil, err
		}
	}

	recorder := metrics.New()
	directory := users.NewDirectory(userRepo)
	manager := refresh.NewManager(store, directory, issuer, hasher,
		refresh.WithRefreshTTL(c.GetRefreshTokenTTL()),
		refresh.WithTheftWindow(c.GetTheftDetectionWindow()),
		refresh.WithMaxTokenLength(c.GetMaxRefreshTokenLength()),
		refresh.WithLogger(log.Logger.With().Str("component", "refresh").Logger()),
		refresh.WithMetrics(recorder),
	)

	opts := []server.Option{
		server.WithMetricsHandler(recorder.Handler()),
		server.WithIdentityAdmin(directory),
		server.WithLogger(log.Logger.With().Str("component", "http").Logger()),
	}
	if provider, ok := signer.(keys.JWKSProvider); ok {
		opts = append(opts, server.WithJWKS(provider))
	}
	a.handler = server.New(c, manager, jwt.NewInspector(signer, c.GetIssuer(), c.GetAudience()), opts...)
	return a, nil
}

// openStores returns the refresh record store and the identity repo for the
// configured backend. Both live in the same database so a restart keeps
// records and the stamps they were issued against.
func (a *app) openStores(ctx context.Context, c config.Config) (refresh.Store, users.UserRepo, error) {
	switch c.GetStoreBackend() {
	case config.StorePostgres:
		pool, err := pgstore.NewPool(ctx, c.GetDatabaseURL(), c.GetDBMaxConns())
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		a.closers = append(a.closers, pool.Close)

		store := pgstore.New(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, nil, err
		}
		userRepo := pgrepo.New(pool)
		if err := userRepo.EnsureSchema(ctx); err != nil {
			return nil, nil, err
		}
		log.Info().Msg("Using postgres refresh token and identity store")
		return store, userRepo, nil

	case config.StoreRedis:
		client, err := redisstore.NewClient(ctx, c.GetRedisAddr(), c.GetRedisPassword(), c.GetRedisDB())
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		a.closers = append(a.closers, func() { _ = client.Close() })
		log.Info().Str("addr", c.GetRedisAddr()).Msg("Using redis refresh token and identity store")
		store := redisstore.New(client,
			redisstore.WithKeyPrefix(c.GetRedisKeyPrefix()),
			redisstore.WithRetention(c.GetRedisRetention()),
		)
		return store, redisrepo.New(client, c.GetRedisKeyPrefix()), nil

	default:
		log.Warn().Msg("Using in-memory refresh token and identity store; everything is lost on restart")
		return refreshrepofake.NewFakeRefreshTokenStore(), fakeuserrepo.NewFakeUserRepo(), nil
	}
}

// seedUsers adds a development identity so the issue route can be exercised
// locally. An existing identity is left untouched so its stamp survives restarts.
func seedUsers(ctx context.Context, repo users.UserRepo) error {
	_, err := repo.GetByID(ctx, devUserID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, users.ErrNotFound) {
		return err
	}
	return repo.Upsert(ctx, &users.User{
		ID:          devUserID,
		Email:       "dev@example.com",
		Username:    "dev",
		DisplayName: "Development User",
		Roles:       []users.RoleType{users.RoleUser, users.RoleAdmin},
	})
}

func configureLogging(c config.Config) {
	level, err := zerolog.ParseLevel(c.GetLogLevel())
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339Nano

	if c.GetEnv() == "DEV" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
	log.Logger = log.Logger.With().Str("app", c.GetAppName()).Logger()
}
