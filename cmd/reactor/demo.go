package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vango-dev/reactor/internal/demo"
)

func demoCmd(flags *globalFlags) *cobra.Command {
	var list bool

	cmd := &cobra.Command{
		Use:   "demo [scenario...]",
		Short: "Run scenarios and print what subscribers observed",
		Long: `Run one or more scenarios and print the trace of every callback.

Without arguments every scenario that finishes on its own is run.

Examples:
  reactor demo
  reactor demo counter computed
  reactor demo --list`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if list {
				for _, s := range demo.All() {
					info("%-12s %s", s.Name, s.Description)
				}
				return nil
			}

			cfg, logger, err := flags.setup()
			if err != nil {
				return err
			}
			if len(args) == 0 {
				args = demo.Names()
			}

			env, err := newDemoEnv(cfg, logger, os.Stdout)
			if err != nil {
				return err
			}

			// Long-running scenarios stop on interrupt
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if err := demo.Run(ctx, env, args...); err != nil {
				return err
			}
			success("Ran %d scenarios", len(args))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&list, "list", "l", false, "List scenarios and exit")

	return cmd
}
