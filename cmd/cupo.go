package cmd

import (
	"github.com/spf13/cobra"

	"celiaquia/internal/bootstrap"
	"celiaquia/internal/errs"
	"celiaquia/internal/usecase/celiaquia"
)

var cupoCmd = &cobra.Command{
	Use:   "cupo",
	Short: "Provincial quota management",
}

var cupoSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Set the number of titular slots of a provincia",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *celiaquia.Service) error {
		actor, err := actorFromFlags(cmd)
		if err != nil {
			return err
		}
		provincia, _ := cmd.Flags().GetString("provincia")
		tamano, _ := cmd.Flags().GetInt64("tamano")
		cupo, err := svc.SetCupo(cmd.Context(), celiaquia.SetCupoInput{Provincia: provincia, Tamano: tamano, Actor: actor})
		if err != nil {
			return errs.Wrap(err, "set cupo")
		}
		return writef(cmd, "cupo %s tamano=%d activos=%d\n", cupo.Provincia, cupo.Tamano, cupo.Activos)
	}),
}

var cupoEvaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Decide DENTRO/FUERA for an APROBADO_TECNICO expediente",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *celiaquia.Service) error {
		actor, err := actorFromFlags(cmd)
		if err != nil {
			return err
		}
		id, _ := cmd.Flags().GetUint64("expediente")
		summary, err := svc.EvaluateCupo(cmd.Context(), id, actor)
		if err != nil {
			return errs.Wrap(err, "evaluate cupo")
		}
		return writef(cmd, "cupo evaluados=%d dentro=%d fuera=%d activos=%d/%d\n",
			summary.Evaluados, summary.Dentro, summary.Fuera, summary.Cupo.Activos, summary.Cupo.Tamano)
	}),
}

func init() {
	rootCmd.AddCommand(cupoCmd)
	cupoCmd.AddCommand(cupoSetCmd, cupoEvaluateCmd)

	cupoSetCmd.Flags().String("provincia", "", "Provincia")
	cupoSetCmd.Flags().Int64("tamano", 0, "Titular slots")
	_ = cupoSetCmd.MarkFlagRequired("provincia")
	_ = cupoSetCmd.MarkFlagRequired("tamano")

	cupoEvaluateCmd.Flags().Uint64("expediente", 0, "Expediente id")
	_ = cupoEvaluateCmd.MarkFlagRequired("expediente")
}
