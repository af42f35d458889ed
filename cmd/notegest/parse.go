package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/notegest/internal/section"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type fileOutput struct {
	File     string             `json:"file" yaml:"file"`
	Title    string             `json:"title" yaml:"title"`
	Sections []*section.Section `json:"sections" yaml:"sections"`
	Failures []string           `json:"failures,omitempty" yaml:"failures,omitempty"`
}

func (a *app) parseCmd() *cobra.Command {
	var (
		format      string
		concurrency int
	)
	cmd := &cobra.Command{
		Use:   "parse FILE...",
		Short: "Compile notes files and print their sections",
		Example: `  notegest parse algebra.notes
  notegest parse --format yaml lectures/*.md`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch format {
			case "text", "json", "yaml":
			default:
				return fmt.Errorf("unknown format %q (want text, json or yaml)", format)
			}

			var (
				outputs []fileOutput
				failed  int
			)
			for _, path := range args {
				doc, err := a.compileFile(cmd.Context(), path, concurrency)
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", path, err)
					failed++
					continue
				}
				out := fileOutput{File: path, Title: doc.Title, Sections: doc.Sections}
				for _, f := range doc.Failures {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s:%d: %v\n", path, failureLine(f), f.Err)
					out.Failures = append(out.Failures, f.Error())
				}
				if len(doc.Failures) > 0 {
					failed++
				}
				a.log.Debug("compiled file", "file", path, "sections", len(doc.Sections), "failures", len(doc.Failures))
				outputs = append(outputs, out)
			}

			if err := writeOutputs(cmd.OutOrStdout(), format, outputs); err != nil {
				return err
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d files had failures", failed, len(args))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "text", "output format: text, json or yaml")
	cmd.Flags().IntVarP(&concurrency, "concurrency", "c", a.cfg.ParseConcurrency, "blocks compiled at once")
	return cmd
}

func writeOutputs(w io.Writer, format string, outputs []fileOutput) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(outputs)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(outputs); err != nil {
			return err
		}
		return enc.Close()
	}

	for i, out := range outputs {
		if i > 0 {
			fmt.Fprintln(w)
		}
		if len(outputs) > 1 {
			fmt.Fprintf(w, "== %s ==\n", out.File)
		}
		blocks := make([]string, len(out.Sections))
		for j, s := range out.Sections {
			blocks[j] = strings.TrimSuffix(s.String(), "\n")
		}
		fmt.Fprintln(w, strings.Join(blocks, "\n\n"))
	}
	return nil
}
