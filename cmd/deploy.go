package cmd

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/oracleplane/oracleplane/internal/coordinator"
	"github.com/oracleplane/oracleplane/internal/executor"
)

var (
	prepareDry       bool
	prepareOutputDir string
	prepareCutoff    string

	applyFailFast bool
)

var prepareCmd = &cobra.Command{
	Use:   "prepare PLAN",
	Short: "Compute the Deltas between a Plan's source and target, optionally persisting a Deployment",
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

		cc := coordinator.NewDeploymentCoordinator(a.store, progress, a.logger)

		var cutoff *time.Time
		if prepareCutoff != "" {
			t, err := time.Parse(time.RFC3339, prepareCutoff)
			if err != nil {
				return fmt.Errorf("parsing --cutoff: %w", err)
			}
			cutoff = &t
		}

		in := coordinator.PrepareInput{PlanID: plan.ID, CutoffDate: cutoff, Dry: prepareDry}

		var sink executor.ScriptSink
		if prepareDry {
			if prepareOutputDir != "" {
				fs, err := executor.NewFileSink(prepareOutputDir, time.Now())
				if err != nil {
					return err
				}
				sink = fs
			} else {
				sink = executor.NewBufferSink()
			}
			defer sink.Close()
			in.Sink = sink
		}

		result, err := cc.Prepare(cmd.Context(), in)
		close(progress)
		if err != nil {
			return err
		}

		color.Green("computed %d delta(s) for plan %q", len(result.Deltas), plan.Name)
		if bs, ok := sink.(*executor.BufferSink); ok {
			if f := bs.Forward(); f != "" {
				fmt.Println("-- forward --")
				fmt.Println(f)
			}
			if r := bs.Rollback(); r != "" {
				fmt.Println("-- rollback --")
				fmt.Println(r)
			}
		}
		if !prepareDry {
			fmt.Printf("deployment id: %d\n", result.DeploymentID)
		}
		return nil
	},
}

var applyCmd = &cobra.Command{
	Use:   "apply DEPLOYMENT_ID",
	Short: "Execute a prepared Deployment's Changes against its target connection",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		var deploymentID int32
		if _, err := fmt.Sscanf(args[0], "%d", &deploymentID); err != nil {
			return fmt.Errorf("invalid deployment id %q: %w", args[0], err)
		}

		progress := make(chan coordinator.ProgressEvent, 64)
		go drainProgress(progress)

		cc := coordinator.NewDeploymentCoordinator(a.store, progress, a.logger)
		err = cc.Apply(cmd.Context(), deploymentID, applyFailFast)
		close(progress)
		if err != nil {
			color.Red("apply failed: %v", err)
			return err
		}
		color.Green("deployment %d applied", deploymentID)
		return nil
	},
}

// drainProgress renders ProgressEvents as they arrive, kept separate from
// the structured zap log.
func drainProgress(ch <-chan coordinator.ProgressEvent) {
	for ev := range ch {
		color.Cyan("  %s %s.%s: %s", ev.ObjectType, ev.ObjectName, fmt.Sprintf("#%d", ev.ChangeID), ev.Message)
	}
}

func init() {
	prepareCmd.Flags().BoolVar(&prepareDry, "dry", false, "compute Deltas and print/write scripts without creating a Deployment")
	prepareCmd.Flags().StringVar(&prepareOutputDir, "output-dir", "", "write scripts-*.sql/rollback_scripts-*.sql here instead of stdout (requires --dry)")
	prepareCmd.Flags().StringVar(&prepareCutoff, "cutoff", "", "only consider source objects last modified strictly after this RFC3339 timestamp")

	applyCmd.Flags().BoolVar(&applyFailFast, "fail-fast", false, "abort on the first failing Change instead of continuing")

	rootCmd.AddCommand(prepareCmd, applyCmd)
}
