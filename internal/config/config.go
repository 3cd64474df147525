package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

const (
	TransportSSE   = "sse"
	TransportRedis = "redis"

	CredentialStoreAuto = "auto"
	CredentialStoreFile = "file"
	CredentialStorePass = "pass"
)

type Config struct {
	APIURL            string        `env:"BUSWORK_API_URL,              default=http://localhost:3000"`
	EventsPath        string        `env:"BUSWORK_EVENTS_PATH,          default=/events"`
	Transport         string        `env:"BUSWORK_TRANSPORT,            default=sse"`
	RequestTimeout    time.Duration `env:"BUSWORK_REQUEST_TIMEOUT,      default=30s"`
	LogLevel          string        `env:"BUSWORK_LOG_LEVEL,            default=warn"`
	LogFile           string        `env:"BUSWORK_LOG_FILE"`
	RetainLogOnLogout bool          `env:"BUSWORK_RETAIN_LOG_ON_LOGOUT, default=false"`
	MetricsAddr       string        `env:"BUSWORK_METRICS_ADDR"`
	CredentialStore   string        `env:"BUSWORK_CREDENTIAL_STORE,     default=auto"`

	Reconnect ReconnectConfig
	Redis     RedisConfig
}

// ReconnectConfig bounds the progress channel reconnect sequence.
type ReconnectConfig struct {
	InitialDelay time.Duration `env:"BUSWORK_RECONNECT_INITIAL_DELAY, default=500ms"`
	MaxDelay     time.Duration `env:"BUSWORK_RECONNECT_MAX_DELAY,     default=10s"`
	MaxAttempts  int           `env:"BUSWORK_RECONNECT_MAX_ATTEMPTS,  default=5"`
}

type RedisConfig struct {
	Addr     string `env:"BUSWORK_REDIS_ADDR,    default=localhost:6379"`
	Password string `env:"BUSWORK_REDIS_PASSWORD"`
	DB       int    `env:"BUSWORK_REDIS_DB,      default=0"`
	Channel  string `env:"BUSWORK_REDIS_CHANNEL, default=progressUpdate"`
}

// Load reads configuration from the process environment.
func Load(ctx context.Context) (*Config, error) {
	return LoadWith(ctx, envconfig.OsLookuper())
}

// LoadWith reads configuration through lookuper and validates it.
func LoadWith(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	c.APIURL = strings.TrimRight(strings.TrimSpace(c.APIURL), "/")
	if c.APIURL == "" {
		return fmt.Errorf("api url is empty")
	}

	c.Transport = strings.ToLower(strings.TrimSpace(c.Transport))
	switch c.Transport {
	case TransportSSE, TransportRedis:
	default:
		return fmt.Errorf("unsupported transport %q (want %s or %s)", c.Transport, TransportSSE, TransportRedis)
	}

	c.CredentialStore = strings.ToLower(strings.TrimSpace(c.CredentialStore))
	switch c.CredentialStore {
	case CredentialStoreAuto, CredentialStoreFile, CredentialStorePass:
	default:
		return fmt.Errorf("unsupported credential store %q (want %s, %s or %s)", c.CredentialStore, CredentialStoreAuto, CredentialStoreFile, CredentialStorePass)
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive, got %s", c.RequestTimeout)
	}
	if c.Reconnect.MaxAttempts < 0 {
		return fmt.Errorf("reconnect max attempts must not be negative, got %d", c.Reconnect.MaxAttempts)
	}
	if c.Reconnect.InitialDelay <= 0 || c.Reconnect.MaxDelay < c.Reconnect.InitialDelay {
		return fmt.Errorf("reconnect delays must satisfy 0 < initial (%s) <= max (%s)", c.Reconnect.InitialDelay, c.Reconnect.MaxDelay)
	}

	return nil
}

// EventsURL is the SSE endpoint derived from the API URL.
func (c *Config) EventsURL() string {
	return c.APIURL + "/" + strings.TrimLeft(c.EventsPath, "/")
}
