package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/spf13/cobra"
	"training-progress-service/internal/catalog"
	"training-progress-service/internal/config"
	"training-progress-service/internal/infra/postgres"
)

// NewCatalogCmd groups catalog authoring commands.
func NewCatalogCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Validate and publish training catalogs",
	}
	cmd.AddCommand(newCatalogValidateCmd())
	cmd.AddCommand(newCatalogImportCmd(configPath))
	return cmd
}

func newCatalogValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>...",
		Short: "Check catalog files for schema and integrity problems",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			failed := 0
			for _, path := range args {
				c, err := catalog.LoadFile(path)
				if err != nil {
					failed++
					printProblems(cmd, path, err)
					continue
				}
				cmd.Printf("%s: ok (catalog %s, %d tasks, %d modules, %d badges)\n",
					path, c.ID, len(c.Tasks), len(c.Modules), len(c.Badges))
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d catalogs invalid", failed, len(args))
			}
			return nil
		},
	}
}

func printProblems(cmd *cobra.Command, path string, err error) {
	var verr *catalog.ValidationError
	if !errors.As(err, &verr) {
		cmd.PrintErrf("%s: %v\n", path, err)
		return
	}
	cmd.PrintErrf("%s: %d problems\n", path, len(verr.Problems))
	for _, p := range verr.Problems {
		cmd.PrintErrf("  - %s\n", p)
	}
}

func newCatalogImportCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Validate a catalog file and store it in Postgres",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			return importCatalog(cmd.Context(), cmd, cfg, args[0])
		},
	}
}

func importCatalog(ctx context.Context, cmd *cobra.Command, cfg config.Config, path string) error {
	if cfg.Postgres.URL == "" {
		return fmt.Errorf("postgres url not configured")
	}
	c, err := catalog.LoadFile(path)
	if err != nil {
		printProblems(cmd, path, err)
		return err
	}
	if err := runMigrationsWithConfig(ctx, cfg, newLogger(cfg)); err != nil {
		return err
	}
	pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
	if err != nil {
		return err
	}
	defer pool.Close()
	if err := postgres.NewCatalogLoader(pool).SaveCatalog(ctx, c); err != nil {
		return err
	}
	cmd.Printf("imported catalog %s from %s\n", c.ID, path)
	return nil
}
