package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dgallion1/notegest/internal/config"
	"github.com/spf13/cobra"
)

type app struct {
	cfg     config.Config
	log     *slog.Logger
	verbose bool
}

func newRootCmd(cfg config.Config) *cobra.Command {
	a := &app{cfg: cfg, log: slog.New(slog.DiscardHandler)}

	root := &cobra.Command{
		Use:           "notegest",
		Short:         "Compile structured notes into cross-referenced sections",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelInfo
			if a.verbose {
				level = slog.LevelDebug
			}
			a.log = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
		},
	}
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(a.parseCmd(), a.watchCmd())
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd(config.Load())
	if err := root.ExecuteContext(ctx); err != nil {
		root.PrintErrln("Error:", err)
		stop()
		os.Exit(1)
	}
}
