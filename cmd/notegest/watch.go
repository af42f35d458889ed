package main

import (
	"time"

	"github.com/dgallion1/notegest/internal/parser"
	"github.com/dgallion1/notegest/internal/watch"
	"github.com/spf13/cobra"
)

func (a *app) watchCmd() *cobra.Command {
	var (
		debounce    time.Duration
		initialScan bool
	)
	cmd := &cobra.Command{
		Use:   "watch DIR",
		Short: "Recompile notes files whenever they change",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			paths, err := watch.Start(ctx, watch.Config{
				Root:        args[0],
				Debounce:    debounce,
				InitialScan: initialScan,
				Accept:      parser.IsSupportedExtension,
			}, a.log)
			if err != nil {
				return err
			}
			a.log.Info("watching", "dir", args[0], "debounce", debounce)

			for path := range paths {
				doc, err := a.compileFile(ctx, path, a.cfg.ParseConcurrency)
				if err != nil {
					a.log.Error("compile failed", "file", path, "error", err)
					continue
				}
				for _, f := range doc.Failures {
					a.log.Warn("block failed", "file", path, "line", failureLine(f), "error", f.Err)
				}
				a.log.Info("compiled", "file", path, "title", doc.Title,
					"sections", len(doc.Sections), "failures", len(doc.Failures))
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&debounce, "debounce", 500*time.Millisecond, "quiet period before a changed file is recompiled")
	cmd.Flags().BoolVar(&initialScan, "initial-scan", false, "compile files already in DIR on startup")
	return cmd
}
