package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/oracleplane/oracleplane/internal/dto"
	"github.com/oracleplane/oracleplane/internal/model"
)

var plansCmd = &cobra.Command{
	Use:   "plans",
	Short: "Manage deployment Plans",
}

var (
	planSource            string
	planTarget            string
	planSchemas           []string
	planExcludeTypes      []string
	planExcludeNames      []string
	planDisabledDropTypes []string
	planDisableAllDrops   bool
	planFailFast          bool
	planRecompile         bool
)

var plansCreateCmd = &cobra.Command{
	Use:   "create NAME",
	Short: "Create a new Plan",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		src, err := a.store.FindConnectionByName(cmd.Context(), planSource)
		if err != nil {
			return fmt.Errorf("source connection %q: %w", planSource, err)
		}
		dst, err := a.store.FindConnectionByName(cmd.Context(), planTarget)
		if err != nil {
			return fmt.Errorf("target connection %q: %w", planTarget, err)
		}

		excludeTypes := planExcludeTypes
		if len(excludeTypes) == 0 {
			excludeTypes = a.cfg.Rules.ExcludeObjectTypes
		}

		plan, err := a.store.CreatePlan(cmd.Context(), model.Plan{
			Name:                args[0],
			SourceConnectionID:  src.ID,
			TargetConnectionID:  dst.ID,
			Schemas:             model.StringList(planSchemas),
			ExcludeObjectTypes:  model.StringList(excludeTypes),
			ExcludeObjectNames:  model.StringList(planExcludeNames),
			DisabledDropTypes:   model.StringList(planDisabledDropTypes),
			DisableAllDrops:     planDisableAllDrops,
			FailFast:            planFailFast,
			RecompileAfterApply: planRecompile,
		})
		if err != nil {
			return err
		}
		fmt.Printf("created plan %q (id=%d)\n", plan.Name, plan.ID)
		return nil
	},
}

var plansListCmd = &cobra.Command{
	Use:   "list",
	Short: "List Plans and their status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		plans, err := a.store.ListPlans(cmd.Context())
		if err != nil {
			return err
		}
		for _, p := range plans {
			fmt.Printf("%d\t%s\t%s\t%s\n", p.ID, p.Name, p.Status, strings.Join(p.Schemas, ","))
		}
		return nil
	},
}

var plansImportCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Create a Plan from a JSON plan definition file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		raw, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading %s: %w", args[0], err)
		}
		def, err := dto.ParsePlanDefinition(raw)
		if err != nil {
			return err
		}

		src, err := a.store.FindConnectionByName(cmd.Context(), def.SourceConnection)
		if err != nil {
			return fmt.Errorf("source connection %q: %w", def.SourceConnection, err)
		}
		dst, err := a.store.FindConnectionByName(cmd.Context(), def.TargetConnection)
		if err != nil {
			return fmt.Errorf("target connection %q: %w", def.TargetConnection, err)
		}

		excludeTypes := def.ExcludeObjectTypes
		if len(excludeTypes) == 0 {
			excludeTypes = a.cfg.Rules.ExcludeObjectTypes
		}
		disableAllDrops := a.cfg.Rules.DisableAllDrops
		if def.DisableAllDrops != nil {
			disableAllDrops = *def.DisableAllDrops
		}

		plan, err := a.store.CreatePlan(cmd.Context(), model.Plan{
			Name:                def.Name,
			SourceConnectionID:  src.ID,
			TargetConnectionID:  dst.ID,
			Schemas:             model.StringList(def.Schemas),
			ExcludeObjectTypes:  model.StringList(excludeTypes),
			ExcludeObjectNames:  model.StringList(def.ExcludeObjectNames),
			DisabledDropTypes:   model.StringList(def.DisabledDropTypes),
			DisableAllDrops:     disableAllDrops,
			FailFast:            def.FailFast,
			RecompileAfterApply: def.RecompileAfterApply,
		})
		if err != nil {
			return err
		}
		fmt.Printf("imported plan %q (id=%d)\n", plan.Name, plan.ID)
		return nil
	},
}

var plansResetCmd = &cobra.Command{
	Use:   "reset NAME",
	Short: "Reset a RUNNING Plan back to IDLE (crash recovery)",
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
		if plan.Status != model.StatusRunning {
			return fmt.Errorf("plan %q is %s, not RUNNING", plan.Name, plan.Status)
		}
		if err := a.store.SetPlanStatus(cmd.Context(), plan.ID, model.StatusIdle); err != nil {
			return err
		}
		fmt.Printf("reset plan %q to IDLE\n", plan.Name)
		return nil
	},
}

func init() {
	plansCreateCmd.Flags().StringVar(&planSource, "source", "", "source connection name")
	plansCreateCmd.Flags().StringVar(&planTarget, "target", "", "target connection name")
	plansCreateCmd.Flags().StringSliceVar(&planSchemas, "schema", nil, "schema to include (repeatable)")
	plansCreateCmd.Flags().StringSliceVar(&planExcludeTypes, "exclude-object-type", nil, "object type to exclude (repeatable)")
	plansCreateCmd.Flags().StringSliceVar(&planExcludeNames, "exclude-object-name", nil, "object name to exclude (repeatable)")
	plansCreateCmd.Flags().StringSliceVar(&planDisabledDropTypes, "disabled-drop-type", nil, "object type whose forward DROP scripts are suppressed (repeatable)")
	plansCreateCmd.Flags().BoolVar(&planDisableAllDrops, "disable-all-drops", true, "suppress every DROP delta for target-only objects")
	plansCreateCmd.Flags().BoolVar(&planFailFast, "fail-fast", false, "abort apply on the first failing Change")
	plansCreateCmd.Flags().BoolVar(&planRecompile, "recompile-after-apply", false, "run UTL_RECOMP.recomp_parallel after a successful apply")
	_ = plansCreateCmd.MarkFlagRequired("source")
	_ = plansCreateCmd.MarkFlagRequired("target")
	_ = plansCreateCmd.MarkFlagRequired("schema")

	plansCmd.AddCommand(plansCreateCmd, plansListCmd, plansImportCmd, plansResetCmd)
	rootCmd.AddCommand(plansCmd)
}
