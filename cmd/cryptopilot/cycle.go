package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/aatumaykin/cryptopilot/internal/app"
)

var cycleCmd = &cobra.Command{
	Use:   "cycle",
	Short: "Inspect and run agent cycles",
}

var cycleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured cycles",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(false)
		if err != nil {
			return err
		}
		byName := cfg.Cycles.ByName()
		names := make([]string, 0, len(byName))
		for name := range byName {
			names = append(names, name)
		}
		slices.Sort(names)

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "CYCLE\tINTERVAL\tRUN ON START\tSTATUS")
		for _, name := range names {
			cc := byName[name]
			status := color.GreenString("enabled")
			if cc.Disabled {
				status = color.YellowString("disabled")
			}
			fmt.Fprintf(w, "%s\t%s\t%t\t%s\n", color.CyanString(name), cc.Interval(), cc.StartsImmediately(), status)
		}
		return w.Flush()
	},
}

var cycleRunCmd = &cobra.Command{
	Use:   "run <name>",
	Short: "Run one cycle once and exit",
	Long: `Initialize the agent, execute the named cycle synchronously, save the
state and exit. Useful from an external scheduler or for debugging.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(true)
		if err != nil {
			return err
		}
		log, err := newLogger(cfg)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a := app.New(cfg, log)
		if err := a.Initialize(ctx); err != nil {
			return err
		}
		runErr := a.RunCycle(ctx, args[0])
		if err := a.Shutdown(); err != nil {
			return err
		}
		if runErr != nil {
			return fmt.Errorf("cycle %s failed: %w", args[0], runErr)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s cycle %s finished\n", color.GreenString("✓"), args[0])
		return nil
	},
}

func init() {
	cycleCmd.AddCommand(cycleListCmd)
	cycleCmd.AddCommand(cycleRunCmd)
}
