// Package prcheck holds the commands of the PR maintenance CLI. They run the
// same verification and repair the service does, against the configured
// store, without going through HTTP.
package prcheck

import (
	"context"
	"fmt"
	"slices"

	"github.com/2beens/traininglog/internal/config"
	"github.com/2beens/traininglog/internal/db"
	"github.com/2beens/traininglog/internal/telemetry/metrics"
	"github.com/2beens/traininglog/internal/traininglog"
	"github.com/2beens/traininglog/internal/traininglog/pgstore"
	"github.com/2beens/traininglog/internal/traininglog/sqlitestore"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

var validFormats = []string{"text", "json"}

type RootOptions struct {
	Env        string
	ConfigPath string
	Format     string
	UserID     string
	// PostgresPassword is read from the environment by main.
	PostgresPassword string
}

// OpenServiceFunc builds the service the commands operate on, plus a func
// releasing its store.
type OpenServiceFunc func(ctx context.Context, opts *RootOptions) (*traininglog.Service, func(), error)

func NewRootCommand(openService OpenServiceFunc) *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "prcheck",
		Short: "Verify and repair personal record flags",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(validFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, validFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.Env, "env", "development", "environment [prod | production | dev | development]")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "./config.toml", "path for the TOML config file")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.UserID, "user", "", "limit the check to one user (default: all users)")

	cmd.AddCommand(NewVerifyCommand(opts, openService))
	cmd.AddCommand(NewRepairCommand(opts, openService))

	return cmd
}

// OpenConfiguredService opens the store named in the config file. The memory
// store is rejected since it would always be empty.
func OpenConfiguredService(ctx context.Context, opts *RootOptions) (*traininglog.Service, func(), error) {
	cfg, err := config.Load(opts.Env, opts.ConfigPath)
	if err != nil {
		return nil, nil, err
	}

	var store traininglog.Store
	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		pool, err := db.NewDBPool(ctx, db.NewDBPoolParams{
			DBHost:     cfg.PostgresHost,
			DBPort:     cfg.PostgresPort,
			DBName:     cfg.PostgresDBName,
			DBUser:     cfg.PostgresUser,
			DBPassword: opts.PostgresPassword,
		})
		if err != nil {
			return nil, nil, err
		}
		store = pgstore.New(pool)
	case config.StoreDriverSQLite:
		store, err = sqlitestore.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
	default:
		return nil, nil, fmt.Errorf("store driver [%s] cannot be checked offline", cfg.StoreDriver)
	}

	service := traininglog.NewService(traininglog.ServiceParams{
		Store:       store,
		Metrics:     metrics.NewManager("traininglog", "prcheck", prometheus.NewRegistry()),
		MaxAttempts: cfg.TxMaxAttempts,
	})
	release := func() {
		_ = store.Close()
	}
	return service, release, nil
}
