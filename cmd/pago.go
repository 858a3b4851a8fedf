package cmd

import (
	"github.com/spf13/cobra"

	"celiaquia/internal/bootstrap"
	"celiaquia/internal/errs"
	"celiaquia/internal/usecase/celiaquia"
)

var pagoCmd = &cobra.Command{
	Use:   "pago",
	Short: "Payment handoff of CUPO_DECIDIDO expedientes",
}

var pagoDispatchCmd = &cobra.Command{
	Use:   "dispatch",
	Short: "Produce the payment nomina and move the expediente to ENVIADO_A_PAGO",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *celiaquia.Service) error {
		actor, err := actorFromFlags(cmd)
		if err != nil {
			return err
		}
		id, _ := cmd.Flags().GetUint64("expediente")
		result, err := svc.DispatchPayment(cmd.Context(), id, actor)
		if err != nil {
			return errs.Wrap(err, "dispatch payment")
		}
		return writef(cmd, "pago %s beneficiarios=%d monto_total=%d estado=%s\n",
			result.Pago.Referencia, result.Pago.TotalBeneficiarios, result.Pago.MontoTotal, result.Expediente.Estado)
	}),
}

var pagoAckCmd = &cobra.Command{
	Use:   "ack",
	Short: "Record the payment acknowledgement and finalize the expediente",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *celiaquia.Service) error {
		actor, err := actorFromFlags(cmd)
		if err != nil {
			return err
		}
		id, _ := cmd.Flags().GetUint64("expediente")
		acuse, _ := cmd.Flags().GetString("acuse")
		result, err := svc.AcknowledgePayment(cmd.Context(), celiaquia.AcknowledgePaymentInput{ExpedienteID: id, Acuse: acuse, Actor: actor})
		if err != nil {
			return errs.Wrap(err, "acknowledge payment")
		}
		return writef(cmd, "pago %s estado=%s expediente=%s\n", result.Pago.Referencia, result.Pago.Estado, result.Expediente.Estado)
	}),
}

var pagoShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the payment record and nomina of an expediente",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *celiaquia.Service) error {
		id, _ := cmd.Flags().GetUint64("expediente")
		result, err := svc.GetPago(cmd.Context(), id)
		if err != nil {
			return errs.Wrap(err, "get pago")
		}
		return writeJSON(cmd, result)
	}),
}

func init() {
	rootCmd.AddCommand(pagoCmd)
	pagoCmd.AddCommand(pagoDispatchCmd, pagoAckCmd, pagoShowCmd)

	pagoAckCmd.Flags().String("acuse", "", "Acknowledgement reference from the payment system")
	_ = pagoAckCmd.MarkFlagRequired("acuse")

	for _, c := range []*cobra.Command{pagoDispatchCmd, pagoAckCmd, pagoShowCmd} {
		c.Flags().Uint64("expediente", 0, "Expediente id")
		_ = c.MarkFlagRequired("expediente")
	}
}
