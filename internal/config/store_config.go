package config

import "time"

// Record store backends
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

type StoreConfig interface {
	GetStoreBackend() string
	GetDatabaseURL() string
	GetDBMaxConns() int32
	GetRedisAddr() string
	GetRedisPassword() string
	GetRedisDB() int
	GetRedisKeyPrefix() string
	GetRedisRetention() time.Duration
}

type Store struct {
	Backend        string        `env:"STORE_BACKEND" envDefault:"memory" validate:"oneof=memory postgres redis"`
	DatabaseURL    string        `env:"DATABASE_URL" validate:"required_if=Backend postgres"`
	DBMaxConns     int32         `env:"DB_MAX_CONNS" envDefault:"10" validate:"gte=0"`
	RedisAddr      string        `env:"REDIS_ADDR" validate:"required_if=Backend redis"`
	RedisPassword  string        `env:"REDIS_PASSWORD"`
	RedisDB        int           `env:"REDIS_DB" validate:"gte=0"`
	RedisKeyPrefix string        `env:"REDIS_KEY_PREFIX" envDefault:"tokensvc:"`
	RedisRetention time.Duration `env:"REDIS_RETENTION" envDefault:"0s" validate:"gte=0s"`
}

var _ StoreConfig = Store{}

func (s Store) GetStoreBackend() string {
	return s.Backend
}

func (s Store) GetDatabaseURL() string {
	return s.DatabaseURL
}

func (s Store) GetDBMaxConns() int32 {
	return s.DBMaxConns
}

func (s Store) GetRedisAddr() string {
	return s.RedisAddr
}

func (s Store) GetRedisPassword() string {
	return s.RedisPassword
}

func (s Store) GetRedisDB() int {
	return s.RedisDB
}

func (s Store) GetRedisKeyPrefix() string {
	return s.RedisKeyPrefix
}

// GetRedisRetention returns how long records are kept after creation. Zero keeps them until
// an external sweeper deletes them.
func (s Store) GetRedisRetention() time.Duration {
	return s.RedisRetention
}
