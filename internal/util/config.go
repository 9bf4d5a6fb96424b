package util

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

//nolint:gochecknoglobals // here its ok
var once sync.Once

func init() {
	once.Do(func() {
		if err := godotenv.Load(".env"); err != nil {
			log.Printf("Warning: could not load .env file: %v", err)
		}
	})
}

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMongo    = "mongo"
	StorageDriverMemory   = "memory"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Server      ServerConfig
	Token       TokenConfig
	AuthPolicy  AuthPolicyConfig
	Cookie      CookieConfig
	Storage     StorageConfig
	Redis       RedisConfig
	RateLimiter RateLimiterConfig

	SecurityWebhookURL string `env:"SECURITY_WEBHOOK_URL"`
	LogLevel           string `env:"LOG_LEVEL" envDefault:"info"`
}

type ServerConfig struct {
	ServerAddr      string        `env:"SERVER_ADDRESS"   envDefault:"localhost:8080"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT"    envDefault:"10s"`
	ReadTimeout     time.Duration `env:"READ_TIMEOUT"     envDefault:"10s"`
	IdleTimeout     time.Duration `env:"IDLE_TIMEOUT"     envDefault:"30s"`
	GracefulTimeout time.Duration `env:"GRACEFUL_TIMEOUT" envDefault:"5s"`
}

// TokenConfig holds the signing material for both token roles. It is read
// once at startup and never mutated afterwards.
type TokenConfig struct {
	AccessSecret  string        `env:"ACCESS_TOKEN_SECRET,required,notEmpty"`
	RefreshSecret string        `env:"REFRESH_TOKEN_SECRET,required,notEmpty"`
	AccessTTL     time.Duration `env:"ACCESS_TOKEN_TTL"  envDefault:"15m"`
	RefreshTTL    time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"240h"`
	Leeway        time.Duration `env:"JWT_LEEWAY"        envDefault:"0s"`
	Issuer        string        `env:"JWT_ISSUER"        envDefault:"tubeauth"`
}

type AuthPolicyConfig struct {
	// UnifyLoginErrors reports an unknown identifier as invalid credentials.
	UnifyLoginErrors bool `env:"AUTH_UNIFY_LOGIN_ERRORS" envDefault:"true"`
	BcryptCost       int  `env:"BCRYPT_COST"             envDefault:"10"`
}

type CookieConfig struct {
	Secure   bool   `env:"COOKIE_SECURE"   envDefault:"true"`
	Domain   string `env:"COOKIE_DOMAIN"`
	SameSite string `env:"COOKIE_SAMESITE" envDefault:"lax"`
}

type StorageConfig struct {
	Driver        string `env:"STORAGE_DRIVER" envDefault:"postgres"`
	DatabaseURL   string `env:"DATABASE_URL"`
	MongoURI      string `env:"MONGO_URI"`
	MongoDatabase string `env:"MONGO_DATABASE" envDefault:"tubeauth"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

type RateLimiterConfig struct {
	Limit     int           `env:"RATE_LIMIT_LIMIT"      envDefault:"10"`
	Interval  time.Duration `env:"RATE_LIMIT_INTERVAL"   envDefault:"1m"`
	BlockTime time.Duration `env:"RATE_LIMIT_BLOCK_TIME" envDefault:"5m"`
}

// LoadConfig parses the process environment into a Config and validates it.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Token.AccessSecret == c.Token.RefreshSecret {
		return fmt.Errorf("%w: ACCESS_TOKEN_SECRET and REFRESH_TOKEN_SECRET must differ", ErrInvalidConfig)
	}
	if c.Token.AccessTTL <= 0 || c.Token.RefreshTTL <= 0 {
		return fmt.Errorf("%w: token TTLs must be positive", ErrInvalidConfig)
	}
	if c.Token.AccessTTL >= c.Token.RefreshTTL {
		return fmt.Errorf("%w: ACCESS_TOKEN_TTL must be shorter than REFRESH_TOKEN_TTL", ErrInvalidConfig)
	}

	switch c.Storage.Driver {
	case StorageDriverPostgres:
		if c.Storage.DatabaseURL == "" {
			return fmt.Errorf("%w: DATABASE_URL is not set", ErrInvalidConfig)
		}
	case StorageDriverMongo:
		if c.Storage.MongoURI == "" {
			return fmt.Errorf("%w: MONGO_URI is not set", ErrInvalidConfig)
		}
	case StorageDriverMemory:
	default:
		return fmt.Errorf("%w: unknown STORAGE_DRIVER %q", ErrInvalidConfig, c.Storage.Driver)
	}

	if _, err := c.Cookie.SameSiteMode(); err != nil {
		return err
	}
	if c.RateLimiter.Limit <= 0 {
		return fmt.Errorf("%w: RATE_LIMIT_LIMIT must be positive", ErrInvalidConfig)
	}
	return nil
}

func (c CookieConfig) SameSiteMode() (http.SameSite, error) {
	switch strings.ToLower(c.SameSite) {
	case "", "lax":
		return http.SameSiteLaxMode, nil
	case "strict":
		return http.SameSiteStrictMode, nil
	case "none":
		return http.SameSiteNoneMode, nil
	default:
		return http.SameSiteDefaultMode, fmt.Errorf("%w: unknown COOKIE_SAMESITE %q", ErrInvalidConfig, c.SameSite)
	}
}
