package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"posledger/internal/config"
	"posledger/internal/infrastructure/storage/postgres"
	"posledger/pkg/logger"
)

var version = "0.1.0"

// cli carries what every subcommand shares.
type cli struct {
	cfg *config.Config
	log *logger.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:           "posctl",
		Short:         "Operator tool for the posledger ledger",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			log, err := logger.New(logger.Config{Level: cfg.LogLevel, Development: true})
			if err != nil {
				return fmt.Errorf("create logger: %w", err)
			}
			logger.SetDefault(log)
			c.cfg, c.log = cfg, log
			return nil
		},
	}

	root.AddCommand(newMigrateCmd(c), newSeedCmd(c), newTokenCmd(c))
	return root
}

// connect opens the configured database.
func (c *cli) connect(ctx context.Context) (*postgres.Pool, *postgres.TxManager, error) {
	dsn, err := config.MustEnv("DATABASE_URL")
	if err != nil {
		return nil, nil, err
	}
	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(dsn, 4))
	if err != nil {
		return nil, nil, fmt.Errorf("connect: %w", err)
	}
	txOpts := postgres.DefaultTxOptions()
	txOpts.StatementTimeout = c.cfg.TxStatementTimeout
	return pool, postgres.NewTxManager(pool, txOpts), nil
}
