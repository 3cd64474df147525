package cmd

import (
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	redissource "github.com/bnema/buswork-cli/internal/adapters/progress/redis"
	"github.com/bnema/buswork-cli/internal/stubbackend"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

const stubSecretEnv = "BUSWORK_STUB_SECRET"

func newStubBackendCmd(app *app) *cobra.Command {
	var (
		listen      string
		secret      string
		users       []string
		stepDelay   time.Duration
		tokenTTL    time.Duration
		mirrorRedis bool
	)

	cmd := &cobra.Command{
		Use:   "stub-backend",
		Short: "Serve a local backend for development",
		Long:  "Serve the auth, job and progress endpoints bw talks to, with in-memory operators and simulated jobs. Progress is streamed over SSE and, with --redis, mirrored to the configured Redis channel.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			seeded, err := parseUsers(users)
			if err != nil {
				return err
			}

			if secret == "" {
				secret = os.Getenv(stubSecretEnv)
			}
			if secret == "" {
				secret = uuid.NewString()
				app.logger.Warn().Msg("no token secret configured, tokens will not survive a restart")
			}

			cfg := stubbackend.Config{
				Secret:    secret,
				TokenTTL:  tokenTTL,
				StepDelay: stepDelay,
				Users:     seeded,
				Logger:    app.logger.With().Str("component", "stub-backend").Logger(),
			}

			if mirrorRedis {
				client, err := redissource.Connect(ctx, redissource.Config{
					Addr:     app.cfg.Redis.Addr,
					Password: app.cfg.Redis.Password,
					DB:       app.cfg.Redis.DB,
				})
				if err != nil {
					return fmt.Errorf("connect redis mirror: %w", err)
				}
				defer func() { _ = client.Close() }()
				cfg.Mirror = redissource.Publisher{Client: client, Channel: app.cfg.Redis.Channel}
			}

			server, err := stubbackend.New(cfg)
			if err != nil {
				return err
			}

			listener, err := net.Listen("tcp", listen)
			if err != nil {
				return fmt.Errorf("listen %s: %w", listen, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stub backend listening on http://%s\n", listener.Addr())

			return server.ServeListener(ctx, listener)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "127.0.0.1:3000", "Listen address")
	cmd.Flags().StringVar(&secret, "secret", "", "HS256 token secret (env "+stubSecretEnv+")")
	cmd.Flags().StringArrayVar(&users, "user", nil, "Seed an operator as name:password (repeatable)")
	cmd.Flags().DurationVar(&stepDelay, "step-delay", 0, "Delay between simulated job progress steps")
	cmd.Flags().DurationVar(&tokenTTL, "token-ttl", 0, "Lifetime of issued tokens")
	cmd.Flags().BoolVar(&mirrorRedis, "redis", false, "Mirror progress to the configured Redis channel")

	return cmd
}

func parseUsers(raw []string) (map[string]string, error) {
	users := make(map[string]string, len(raw))
	for _, entry := range raw {
		name, password, ok := strings.Cut(entry, ":")
		if !ok || strings.TrimSpace(name) == "" || password == "" {
			return nil, fmt.Errorf("invalid --user %q: want name:password", entry)
		}
		users[strings.TrimSpace(name)] = password
	}
	return users, nil
}
