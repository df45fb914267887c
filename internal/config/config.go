package config

import "github.com/kelseyhightower/envconfig"

// Config holds application configuration loaded from environment variables.
type Config struct {
	Port        int    `envconfig:"PORT" default:"8080"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	Version     string `envconfig:"VERSION" default:"dev"`

	// FederatedAuthEnabled is the boot-time default for federated mode. The
	// live value is re-read from the environment on every resolver and
	// reconciler call so it can be toggled without a restart.
	FederatedAuthEnabled bool `envconfig:"FEDERATED_AUTH_ENABLED" default:"false"`

	DirectoryBaseURL string `envconfig:"DIRECTORY_BASE_URL" default:""`
	DirectoryToken   string `envconfig:"DIRECTORY_TOKEN" default:""`
	DirectoryTimeout int    `envconfig:"DIRECTORY_TIMEOUT_SECONDS" default:"10"`

	// GatewaySecret verifies the identity assertion issued by the upstream
	// authentication gateway. SessionSecret signs the session cookie.
	GatewaySecret  string `envconfig:"GATEWAY_SECRET" default:""`
	SessionSecret  string `envconfig:"SESSION_SECRET" default:""`
	SessionTTL     int    `envconfig:"SESSION_TTL_MINUTES" default:"480"`
	SessionCookie  string `envconfig:"SESSION_COOKIE" default:"resreg_session"`
	SecureCookies  bool   `envconfig:"SECURE_COOKIES" default:"true"`
	SyncInterval   int    `envconfig:"SYNC_INTERVAL_MINUTES" default:"0"`
	BcryptCost     int    `envconfig:"BCRYPT_COST" default:"12"`
	RunMigrations  bool   `envconfig:"RUN_MIGRATIONS" default:"true"`
	RateLimitRPS   int    `envconfig:"RATE_LIMIT_RPS" default:"10"`
	RateLimitBurst int    `envconfig:"RATE_LIMIT_BURST" default:"30"`
}

// Load reads configuration from environment variables into a Config struct.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
