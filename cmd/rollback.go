package cmd

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/oracleplane/oracleplane/internal/coordinator"
)

var rollbackCmd = &cobra.Command{
	Use:   "rollback PLAN",
	Short: "Undo a Plan's last successful Deployment in reverse dependency order",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		plan, err := a.store.FindPlanByName(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		progress := make(chan coordinator.ProgressEvent, 64)
		go drainProgress(progress)

		rc := coordinator.NewRollbackCoordinator(a.store, progress, a.logger)
		err = rc.Rollback(cmd.Context(), plan.ID)
		close(progress)
		if err != nil {
			color.Red("rollback failed: %v", err)
			return err
		}
		color.Green("rolled back plan %q", plan.Name)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rollbackCmd)
}
