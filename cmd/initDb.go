package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"celiaquia/internal/bootstrap"
	"celiaquia/internal/bootstrap/logging"
	"celiaquia/internal/errs"
	"celiaquia/internal/ports"
	"celiaquia/internal/usecase/celiaquia"
)

// initDbCmd represents the initDb command
var initDbCmd = &cobra.Command{
	Use:   "init-db",
	Short: "Initialize database schema",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, svc *celiaquia.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))
		logging.Info(ctx, "start init-db")

		if err := app.InitSchema(ctx); err != nil {
			logging.Error(ctx, "initialize schema failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "initialize schema")
		}

		seed, _ := cmd.Flags().GetStringSlice("tipo-requerido")
		for i, nombre := range seed {
			if _, err := svc.UpsertTipoDocumento(ctx, ports.TipoDocumento{
				Nombre:    nombre,
				Requerido: true,
				Activo:    true,
				Orden:     i + 1,
			}, systemCoordinador); err != nil {
				return errs.Wrapf(err, "seed tipo documento %s", nombre)
			}
		}

		logging.Info(ctx, "init-db finished", slog.String("database_dsn", app.Config.Database.DSN), slog.Int("tipos_seeded", len(seed)))
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "database schema initialized: %s\n", app.Config.Database.DSN); err != nil {
			return errs.Wrap(err, "write init-db output")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(initDbCmd)
	initDbCmd.Flags().StringSlice("tipo-requerido", nil, "Required document types to seed into the catalog")
}
