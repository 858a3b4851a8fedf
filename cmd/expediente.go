package cmd

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"celiaquia/internal/bootstrap"
	"celiaquia/internal/bootstrap/logging"
	domain "celiaquia/internal/domain/celiaquia"
	"celiaquia/internal/errs"
	"celiaquia/internal/infrastructure/importer"
	"celiaquia/internal/ports"
	"celiaquia/internal/usecase/celiaquia"
)

var expedienteCmd = &cobra.Command{
	Use:   "expediente",
	Short: "Import and drive expedientes",
}

var expedienteImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Create an expediente from a CSV or XLSX upload",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *celiaquia.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		actor, err := actorFromFlags(cmd)
		if err != nil {
			return err
		}
		path, _ := cmd.Flags().GetString("file")
		provincia, _ := cmd.Flags().GetString("provincia")
		numero, _ := cmd.Flags().GetString("numero")

		format, err := importer.DetectFormat(path)
		if err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return errs.Wrap(err, "open upload")
		}
		defer f.Close()

		sheet, err := importer.Parse(f, format)
		if err != nil {
			logging.Error(ctx, "parse upload failed", slog.String("file", path), slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "parse upload")
		}
		rows := make([]celiaquia.ImportRow, 0, len(sheet.Rows))
		for _, r := range sheet.Rows {
			rows = append(rows, celiaquia.ImportRow{Fila: r.Fila, Values: r.Values})
		}

		result, err := svc.ImportExpediente(ctx, celiaquia.ImportExpedienteInput{
			Numero:        numero,
			Provincia:     provincia,
			ArchivoOrigen: filepath.Base(path),
			Rows:          rows,
			Actor:         actor,
		})
		if err != nil {
			logging.Error(ctx, "import expediente failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "import expediente")
		}

		if err := writef(cmd, "expediente %d numero=%s estado=%s legajos=%d erroneos=%d\n",
			result.Expediente.ID, result.Expediente.Numero, result.Expediente.Estado, result.Legajos, len(result.Erroneos)); err != nil {
			return err
		}
		for _, e := range result.Erroneos {
			if err := writef(cmd, "  fila %d campo=%s: %s\n", e.Fila, e.Campo, e.Mensaje); err != nil {
				return err
			}
		}
		return nil
	}),
}

var expedienteShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show an expediente with counters and state history",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *celiaquia.Service) error {
		id, _ := cmd.Flags().GetUint64("id")
		view, err := svc.GetExpediente(cmd.Context(), id)
		if err != nil {
			return errs.Wrap(err, "get expediente")
		}
		return writeJSON(cmd, view)
	}),
}

var expedienteListCmd = &cobra.Command{
	Use:   "list",
	Short: "List expedientes",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *celiaquia.Service) error {
		provincia, _ := cmd.Flags().GetString("provincia")
		rawEstado, _ := cmd.Flags().GetString("estado")
		filter := ports.ExpedienteFilter{Provincia: provincia}
		if rawEstado != "" {
			estado, err := domain.ParseEstadoExpediente(rawEstado)
			if err != nil {
				return err
			}
			filter.Estado = estado
		}

		list, err := svc.ListExpedientes(cmd.Context(), filter)
		if err != nil {
			return errs.Wrap(err, "list expedientes")
		}
		for _, exp := range list {
			if err := writef(cmd, "%d\t%s\t%s\t%s\tvalidos=%d erroneos=%d aprobados=%d dentro=%d\n",
				exp.ID, exp.Numero, exp.Provincia, exp.Estado,
				exp.Counters.Validos, exp.Counters.Erroneos, exp.Counters.Aprobados, exp.Counters.Dentro); err != nil {
				return err
			}
		}
		return nil
	}),
}

var expedienteTransitionCmd = &cobra.Command{
	Use:   "transition",
	Short: "Request a manual state change (admin branches included)",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *celiaquia.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		actor, err := actorFromFlags(cmd)
		if err != nil {
			return err
		}
		id, _ := cmd.Flags().GetUint64("id")
		rawTo, _ := cmd.Flags().GetString("to")
		version, _ := cmd.Flags().GetInt64("version")
		observacion, _ := cmd.Flags().GetString("observacion")

		to, err := domain.ParseEstadoExpediente(rawTo)
		if err != nil {
			return err
		}
		exp, err := svc.TransitionExpediente(ctx, celiaquia.TransitionInput{
			ExpedienteID:    id,
			To:              to,
			ExpectedVersion: version,
			Observacion:     observacion,
			Actor:           actor,
		})
		if err != nil {
			return errs.Wrap(err, "transition expediente")
		}
		return writef(cmd, "expediente %d estado=%s version=%d\n", exp.ID, exp.Estado, exp.Version)
	}),
}

var expedienteAdvanceCmd = &cobra.Command{
	Use:   "advance",
	Short: "Apply every automatic transition whose gate holds",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *celiaquia.Service) error {
		id, _ := cmd.Flags().GetUint64("id")
		exp, err := svc.Advance(cmd.Context(), id)
		if err != nil {
			return errs.Wrap(err, "advance expediente")
		}
		return writef(cmd, "expediente %d estado=%s\n", exp.ID, exp.Estado)
	}),
}

var expedienteRenaperCmd = &cobra.Command{
	Use:   "renaper",
	Short: "Verify every pending legajo against RENAPER",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *celiaquia.Service) error {
		id, _ := cmd.Flags().GetUint64("id")
		summary, err := svc.RunRenaper(cmd.Context(), id)
		if err != nil {
			return errs.Wrap(err, "run renaper")
		}
		return writef(cmd, "renaper claimed=%d completed=%d retried=%d dead=%d\n",
			summary.Claimed, summary.Completed, summary.Retried, summary.Dead)
	}),
}

var expedienteSintysCmd = &cobra.Command{
	Use:   "sintys",
	Short: "Cross-check a VALIDADO expediente against SINTYS",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *celiaquia.Service) error {
		actor, err := actorFromFlags(cmd)
		if err != nil {
			return err
		}
		id, _ := cmd.Flags().GetUint64("id")
		summary, err := svc.CrossCheckSintys(cmd.Context(), id, actor)
		if err != nil {
			return errs.Wrap(err, "cross-check sintys")
		}
		if summary.Unavailable {
			return writef(cmd, "sintys unavailable; %d legajos remain pending\n", summary.Consultados)
		}
		return writef(cmd, "sintys match=%d no_match=%d sin_respuesta=%d\n", summary.Match, summary.NoMatch, summary.SinRespuesta)
	}),
}

var expedienteAuditCmd = &cobra.Command{
	Use:   "audit",
	Short: "List audit events of an expediente",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *celiaquia.Service) error {
		id, _ := cmd.Flags().GetUint64("id")
		limit, _ := cmd.Flags().GetInt("limit")
		events, err := svc.ListAudit(cmd.Context(), ports.AuditFilter{Entity: "expediente", EntityID: id, Limit: limit})
		if err != nil {
			return errs.Wrap(err, "list audit")
		}
		for _, e := range events {
			if err := writef(cmd, "%s\t%s\t%s\n", e.CreatedAt.Format("2006-01-02 15:04:05"), e.Actor, e.Action); err != nil {
				return err
			}
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(expedienteCmd)
	expedienteCmd.AddCommand(
		expedienteImportCmd,
		expedienteShowCmd,
		expedienteListCmd,
		expedienteTransitionCmd,
		expedienteAdvanceCmd,
		expedienteRenaperCmd,
		expedienteSintysCmd,
		expedienteAuditCmd,
	)

	expedienteImportCmd.Flags().String("file", "", "Upload file (.csv or .xlsx)")
	expedienteImportCmd.Flags().String("provincia", "", "Provincia submitting the upload")
	expedienteImportCmd.Flags().String("numero", "", "Expediente number; generated when empty")
	_ = expedienteImportCmd.MarkFlagRequired("file")
	_ = expedienteImportCmd.MarkFlagRequired("provincia")

	expedienteListCmd.Flags().String("provincia", "", "Filter by provincia")
	expedienteListCmd.Flags().String("estado", "", "Filter by estado code")

	expedienteTransitionCmd.Flags().String("to", "", "Target estado code")
	expedienteTransitionCmd.Flags().Int64("version", 0, "Expected expediente version (0 skips the check)")
	expedienteTransitionCmd.Flags().String("observacion", "", "Observation stored in the state history")
	_ = expedienteTransitionCmd.MarkFlagRequired("to")

	expedienteAuditCmd.Flags().Int("limit", 100, "Max events")

	for _, c := range []*cobra.Command{expedienteShowCmd, expedienteTransitionCmd, expedienteAdvanceCmd, expedienteRenaperCmd, expedienteSintysCmd, expedienteAuditCmd} {
		c.Flags().Uint64("id", 0, "Expediente id")
		_ = c.MarkFlagRequired("id")
	}
}
