package config

import "time"

// APIConfig holds runtime configuration for the API service.
type APIConfig struct {
	Environment        string        `env:"APP_ENV" envDefault:"development"`
	Addr               string        `env:"API_ADDR" envDefault:":4000"`
	DatabaseURL        string        `env:"DATABASE_URL" envDefault:"postgres://teamhub:teamhub@db:5432/teamhub?sslmode=disable"`
	MigrationsDir      string        `env:"DB_MIGRATIONS_DIR" envDefault:"db/migrations"`
	JWTSecret          string        `env:"JWT_SECRET" envDefault:"supersecuresecret"`
	AccessTokenTTL     time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"15m"`
	RefreshTokenTTL    time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"24h"`
	InvitationTTL      time.Duration `env:"INVITATION_TTL" envDefault:"168h"`
	RateLimitRedisAddr string        `env:"RATE_LIMIT_REDIS_ADDR"`
	RateLimitRedisPass string        `env:"RATE_LIMIT_REDIS_PASSWORD"`
	RateLimitRedisDB   int           `env:"RATE_LIMIT_REDIS_DB" envDefault:"0"`
	LogLevel           string        `env:"LOG_LEVEL" envDefault:"info"`
}

// LoadAPIConfig constructs an APIConfig from environment variables.
func LoadAPIConfig() (APIConfig, error) {
	var cfg APIConfig
	if err := Parse(&cfg); err != nil {
		return APIConfig{}, err
	}
	return cfg, nil
}
