package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"posledger/internal/app"
	appctx "posledger/internal/core/context"
	"posledger/internal/domain/audit"
	"posledger/internal/infrastructure/storage/postgres"
	"posledger/internal/infrastructure/storage/postgres/catalog_repo"
)

func newSeedCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load demo branches, products, stock and a promo code",
		Example: `  # Prepare a fresh database
  posctl migrate && posctl seed`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := appctx.WithActor(appctx.StartTrace(cmd.Context(), appctx.OriginCLI), &appctx.Actor{
				UserID:   "posctl",
				Username: "posctl",
				Roles:    []string{appctx.RoleAdmin},
			})

			pool, txm, err := c.connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			sink, err := postgres.NewAuditSink(txm)
			if err != nil {
				return err
			}
			recorder := audit.NewRecorder(sink, c.cfg.AuditBuffer)
			defer func() { _ = recorder.Close(ctx) }()

			services := app.NewServices(app.PostgresRepositories(txm), app.Options{Audit: recorder})

			// No outer transaction: a duplicate promo insert would abort it.
			res, err := app.Seed(ctx, catalog_repo.NewCatalogRepo(txm), services, time.Now())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, b := range res.Branches {
				fmt.Fprintf(out, "branch   %s  %s\n", b.Code, b.ID)
			}
			for _, p := range res.Products {
				fmt.Fprintf(out, "product  %-8s %s  %s\n", p.SKU, p.ID, p.Name)
			}
			fmt.Fprintf(out, "promo    %s  %s\n", res.Promo.Code, res.Promo.ID)
			return nil
		},
	}
}
