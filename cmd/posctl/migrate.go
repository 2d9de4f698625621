package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"posledger/internal/infrastructure/storage/postgres"
)

func newMigrateCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded database schema",
		Long: `Apply the embedded PostgreSQL schema to DATABASE_URL.

Every statement is idempotent, so running migrate against an up-to-date
database changes nothing.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			printOnly, _ := cmd.Flags().GetBool("print")
			if printOnly {
				fmt.Fprintln(cmd.OutOrStdout(), postgres.Schema())
				return nil
			}

			ctx := cmd.Context()
			pool, txm, err := c.connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := postgres.Migrate(ctx, txm); err != nil {
				return err
			}
			c.log.Info("schema applied")
			return nil
		},
	}
	cmd.Flags().Bool("print", false, "Print the schema instead of applying it")
	return cmd
}
