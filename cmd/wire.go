package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	backendhttp "github.com/bnema/buswork-cli/internal/adapters/backend/http"
	chainstore "github.com/bnema/buswork-cli/internal/adapters/credential/chain"
	passstore "github.com/bnema/buswork-cli/internal/adapters/credential/pass"
	tomlstore "github.com/bnema/buswork-cli/internal/adapters/credential/toml"
	redissource "github.com/bnema/buswork-cli/internal/adapters/progress/redis"
	"github.com/bnema/buswork-cli/internal/adapters/progress/sse"
	"github.com/bnema/buswork-cli/internal/application"
	"github.com/bnema/buswork-cli/internal/config"
	"github.com/bnema/buswork-cli/internal/logger"
	"github.com/bnema/buswork-cli/internal/observability"
	"github.com/bnema/buswork-cli/internal/ports"
	"github.com/bnema/buswork-cli/internal/version"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	flagAPIURL    = "api-url"
	flagTransport = "transport"
	flagLogLevel  = "log-level"

	dashboardLogFile = "bw.log"

	// annotationFileLogging marks commands that own the terminal, so their
	// diagnostics go to a file.
	annotationFileLogging = "bw/file-logging"
)

// overlay maps a config.toml key (and optional flag) onto a config field.
// Precedence is flag, then environment, then config file, then default.
type overlay struct {
	key   string
	flag  string
	env   string
	apply func(*config.Config, string)
}

var overlays = []overlay{
	{key: "api_url", flag: flagAPIURL, env: "BUSWORK_API_URL", apply: func(c *config.Config, v string) { c.APIURL = v }},
	{key: "transport", flag: flagTransport, env: "BUSWORK_TRANSPORT", apply: func(c *config.Config, v string) { c.Transport = v }},
	{key: "log_level", flag: flagLogLevel, env: "BUSWORK_LOG_LEVEL", apply: func(c *config.Config, v string) { c.LogLevel = v }},
	{key: "events_path", env: "BUSWORK_EVENTS_PATH", apply: func(c *config.Config, v string) { c.EventsPath = v }},
	{key: "log_file", env: "BUSWORK_LOG_FILE", apply: func(c *config.Config, v string) { c.LogFile = v }},
	{key: "metrics_addr", env: "BUSWORK_METRICS_ADDR", apply: func(c *config.Config, v string) { c.MetricsAddr = v }},
	{key: "credential_store", env: "BUSWORK_CREDENTIAL_STORE", apply: func(c *config.Config, v string) { c.CredentialStore = v }},
	{key: "redis.addr", env: "BUSWORK_REDIS_ADDR", apply: func(c *config.Config, v string) { c.Redis.Addr = v }},
	{key: "redis.channel", env: "BUSWORK_REDIS_CHANNEL", apply: func(c *config.Config, v string) { c.Redis.Channel = v }},
}

type app struct {
	settings *viper.Viper

	cfg       *config.Config
	logger    zerolog.Logger
	logCloser io.Closer
	registry  *prometheus.Registry
	metrics   *observability.Metrics
	fileStore *tomlstore.Store
	store     ports.CredentialStore
	backend   backendhttp.Client
	sessionID string
	now       func() time.Time
}

func newApp() *app {
	return &app{
		settings: viper.New(),
		logger:   zerolog.Nop(),
		now:      time.Now,
	}
}

func (a *app) bindFlags(root *cobra.Command) {
	for _, o := range overlays {
		if o.flag == "" {
			continue
		}
		_ = a.settings.BindPFlag(o.key, root.PersistentFlags().Lookup(o.flag))
	}
}

// init wires the application for cmd. It does no network I/O.
func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.Load(cmd.Context())
	if err != nil {
		return err
	}

	fileStore, err := tomlstore.NewStore(a.settings)
	if err != nil {
		return fmt.Errorf("wire session file: %w", err)
	}

	for _, o := range overlays {
		if value, ok := a.lookup(cmd, o); ok {
			o.apply(cfg, value)
		}
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	store, err := newCredentialStore(cfg.CredentialStore, fileStore)
	if err != nil {
		return err
	}

	if cmd.Annotations[annotationFileLogging] == "true" && cfg.LogFile == "" {
		cfg.LogFile = filepath.Join(filepath.Dir(fileStore.Path()), dashboardLogFile)
	}
	log, closer, err := logger.New(logger.Options{
		Level:  cfg.LogLevel,
		Pretty: true,
		Output: cmd.ErrOrStderr(),
		File:   cfg.LogFile,
	})
	if err != nil {
		return fmt.Errorf("wire logger: %w", err)
	}

	a.sessionID = uuid.NewString()
	a.cfg = cfg
	a.logger = log.With().Str("component", "bw").Logger()
	a.logCloser = closer
	a.registry = prometheus.NewRegistry()
	a.metrics = observability.NewMetrics(a.registry)
	a.fileStore = fileStore
	a.store = store
	a.backend = backendhttp.Client{
		BaseURL:        cfg.APIURL,
		RequestTimeout: cfg.RequestTimeout,
		SessionID:      a.sessionID,
		UserAgent:      "bw/" + version.Version,
	}

	return nil
}

func (a *app) lookup(cmd *cobra.Command, o overlay) (string, bool) {
	if o.flag != "" && cmd.Flags().Changed(o.flag) {
		return a.settings.GetString(o.key), true
	}
	if _, set := os.LookupEnv(o.env); set {
		return "", false
	}
	if a.settings.InConfig(o.key) {
		return a.settings.GetString(o.key), true
	}
	return "", false
}

func (a *app) close() {
	if a.logCloser != nil {
		_ = a.logCloser.Close()
		a.logCloser = nil
	}
}

func newCredentialStore(kind string, fileStore *tomlstore.Store) (ports.CredentialStore, error) {
	switch kind {
	case config.CredentialStoreFile:
		return fileStore, nil
	case config.CredentialStorePass:
		return passstore.NewStore(passstore.DefaultKey), nil
	default:
		store, err := chainstore.NewPassFirstWithFileFallback(passstore.DefaultKey, fileStore)
		if err != nil {
			return nil, fmt.Errorf("wire credential store chain: %w", err)
		}
		return store, nil
	}
}

// newConsole builds a Console over the configured progress transport. The
// returned release func closes the console and its transport.
func (a *app) newConsole(ctx context.Context) (*application.Console, func(), error) {
	if a.cfg == nil {
		return nil, nil, errors.New("application is not initialised")
	}

	source, closeSource, err := a.progressSource(ctx)
	if err != nil {
		return nil, nil, err
	}

	console := application.NewConsole(application.ConsoleConfig{
		Store:    a.store,
		Backend:  a.backend,
		Progress: source,
		Reconnect: application.ReconnectPolicy{
			InitialDelay: a.cfg.Reconnect.InitialDelay,
			MaxDelay:     a.cfg.Reconnect.MaxDelay,
			MaxAttempts:  a.cfg.Reconnect.MaxAttempts,
		},
		RetainLogOnLogout: a.cfg.RetainLogOnLogout,
		SessionID:         a.sessionID,
		Logger:            a.logger,
		Metrics:           a.metrics,
		Clock:             ports.SystemClock{},
	})

	release := func() {
		console.Close()
		closeSource()
	}
	return console, release, nil
}

func (a *app) progressSource(ctx context.Context) (ports.ProgressSource, func(), error) {
	if a.cfg.Transport == config.TransportRedis {
		client, err := redissource.Connect(ctx, redissource.Config{
			Addr:     a.cfg.Redis.Addr,
			Password: a.cfg.Redis.Password,
			DB:       a.cfg.Redis.DB,
			Timeout:  a.cfg.RequestTimeout,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("connect progress transport: %w", err)
		}
		return redissource.Source{Client: client, Channel: a.cfg.Redis.Channel}, func() { _ = client.Close() }, nil
	}

	return sse.Source{
		URL:            a.cfg.EventsURL(),
		ConnectTimeout: a.cfg.RequestTimeout,
		SessionID:      a.sessionID,
	}, func() {}, nil
}

// serveMetrics exposes the console metrics while ctx is alive when a
// metrics address is configured.
func (a *app) serveMetrics(ctx context.Context) {
	if a.cfg == nil || a.cfg.MetricsAddr == "" {
		return
	}
	go func() {
		if err := observability.Serve(ctx, a.cfg.MetricsAddr, a.registry); err != nil {
			a.logger.Error().Err(err).Str("addr", a.cfg.MetricsAddr).Msg("metrics server stopped")
		}
	}()
}
