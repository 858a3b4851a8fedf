package cmd

import (
	"github.com/spf13/cobra"

	"celiaquia/internal/bootstrap"
	"celiaquia/internal/errs"
	"celiaquia/internal/ports"
	"celiaquia/internal/usecase/celiaquia"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Worker runtime commands",
}

var workerQueueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Show RENAPER work queue depth by status",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *celiaquia.Service) error {
		depth, err := svc.QueueDepth(cmd.Context(), celiaquia.WorkKindRenaper)
		if err != nil {
			return errs.Wrap(err, "queue depth")
		}
		return writef(cmd, "%s pending=%d done=%d dead=%d\n", celiaquia.WorkKindRenaper,
			depth[ports.WorkStatusPending], depth[ports.WorkStatusDone], depth[ports.WorkStatusDead])
	}),
}

func init() {
	rootCmd.AddCommand(workerCmd)
	workerCmd.AddCommand(workerQueueCmd)
}
