package cmd

import (
	"errors"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"celiaquia/internal/bootstrap"
	domain "celiaquia/internal/domain/celiaquia"
	"celiaquia/internal/errs"
	"celiaquia/internal/infrastructure/importer"
	"celiaquia/internal/usecase/celiaquia"
)

var erroneosCmd = &cobra.Command{
	Use:   "erroneos",
	Short: "Inspect and reprocess rows rejected at import",
}

var erroneosListCmd = &cobra.Command{
	Use:   "list",
	Short: "List an expediente's erroneous rows",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *celiaquia.Service) error {
		expedienteID, _ := cmd.Flags().GetUint64("expediente")
		all, _ := cmd.Flags().GetBool("all")
		list, err := svc.ListErroneos(cmd.Context(), expedienteID, !all)
		if err != nil {
			return errs.Wrap(err, "list erroneos")
		}
		for _, r := range list {
			if err := writef(cmd, "%d\tfila=%d\tprocesado=%t\t%s: %s\t%s\n", r.ID, r.Fila, r.Procesado, r.Campo, r.Mensaje, formatDatos(r.Datos)); err != nil {
				return err
			}
		}
		return nil
	}),
}

var erroneosReprocessCmd = &cobra.Command{
	Use:   "reprocess",
	Short: "Retry an erroneous row with corrected values (--set columna=valor)",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *celiaquia.Service) error {
		actor, err := actorFromFlags(cmd)
		if err != nil {
			return err
		}
		id, _ := cmd.Flags().GetUint64("id")
		sets, _ := cmd.Flags().GetStringToString("set")

		datos := make(map[string]string, len(sets))
		for k, v := range sets {
			datos[importer.CanonicalHeader(k)] = v
		}

		result, err := svc.ReprocessRegistro(cmd.Context(), celiaquia.ReprocessInput{RegistroID: id, Datos: datos, Actor: actor})
		var rowErr *domain.RowError
		if errors.As(err, &rowErr) {
			return writef(cmd, "registro %d still invalid: %s: %s\n", id, rowErr.Campo, rowErr.Mensaje)
		}
		if err != nil {
			return errs.Wrap(err, "reprocess registro")
		}
		if result.AlreadyProcessed {
			return writef(cmd, "registro %d already processed\n", id)
		}
		return writef(cmd, "registro %d -> legajo %d (%s)\n", id, result.Legajo.ID, result.Legajo.Documento)
	}),
}

func formatDatos(datos map[string]string) string {
	keys := make([]string, 0, len(datos))
	for k := range datos {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+datos[k])
	}
	return strings.Join(parts, " ")
}

func init() {
	rootCmd.AddCommand(erroneosCmd)
	erroneosCmd.AddCommand(erroneosListCmd, erroneosReprocessCmd)

	erroneosListCmd.Flags().Uint64("expediente", 0, "Expediente id")
	erroneosListCmd.Flags().Bool("all", false, "Include already processed rows")
	_ = erroneosListCmd.MarkFlagRequired("expediente")

	erroneosReprocessCmd.Flags().Uint64("id", 0, "Registro erroneo id")
	erroneosReprocessCmd.Flags().StringToString("set", nil, "Corrected values, e.g. --set fecha_nacimiento=01/02/1980")
	_ = erroneosReprocessCmd.MarkFlagRequired("id")
}
