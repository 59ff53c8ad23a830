// Package commands implements the plazactl operator CLI.
package commands

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"plaza.social/internal/app"
	"plaza.social/internal/config"
	"plaza.social/internal/obs"
)

// Opener builds the application for commands that touch storage.
type Opener func(ctx context.Context, configPath string) (*app.App, error)

// OpenFromConfig loads the config file and environment and requires a
// Postgres DSN. The CLI never verifies tokens.
func OpenFromConfig(ctx context.Context, configPath string) (*app.App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if cfg.PostgresDSN == "" {
		return nil, errors.New("pg_dsn is required (set PLAZA_PG_DSN)")
	}
	if err := obs.Configure(cfg.LogLevel, "console"); err != nil {
		return nil, err
	}
	return app.New(ctx, cliConfig(cfg))
}

// cliConfig keeps the configured session cache and redis connection, so a
// role change deletes the durable cache entry the API reads and is announced
// on the shared change feed.
func cliConfig(cfg *config.Config) *config.Config {
	out := *cfg
	if out.JWTSecret == "" {
		out.JWTSecret = "plazactl"
	}
	if out.RedisAddr == "" {
		obs.Logger().Warn().Msg("no redis_addr configured, running API instances keep cached roles until the cache ttl")
	}
	return &out
}

type rootOptions struct {
	configPath string
	actor      string
	open       Opener
}

func (o *rootOptions) app(cmd *cobra.Command) (*app.App, error) {
	return o.open(cmd.Context(), o.configPath)
}

// NewRootCmd creates the root command
func NewRootCmd(open Opener) *cobra.Command {
	opts := &rootOptions{open: open}
	rootCmd := &cobra.Command{
		Use:           "plazactl",
		Short:         "Operator tooling for plaza roles, bans and reports",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&opts.actor, "as", "", "user id of the acting administrator")

	rootCmd.AddCommand(
		newRolesCommand(),
		newSetRoleCommand(opts),
		newReportsCommand(opts),
	)
	return rootCmd
}
