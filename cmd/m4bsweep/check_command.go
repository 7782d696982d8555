package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"m4bsweep/internal/config"
	"m4bsweep/internal/preflight"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	var rootFlag string

	cmd := &cobra.Command{
		Use:   "check [root]",
		Short: "Verify ffmpeg, ffprobe, and root access without converting",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.resolve(config.Overrides{Root: rootArg(args, rootFlag)})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if ctx.configPath != "" {
				fmt.Fprintf(out, "Config: %s\n", ctx.configPath)
			}
			results := preflight.RunAll(cmd.Context(), &cfg)
			fmt.Fprintln(out, renderChecks(results, shouldColorize(out)))
			return preflight.Failed(results)
		},
	}

	cmd.Flags().StringVar(&rootFlag, "root", "", "Directory tree to check")
	return cmd
}

func renderChecks(results []preflight.Result, color bool) string {
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		status := colorize("OK", ansiGreen, color)
		if !r.Passed {
			status = colorize("FAIL", ansiRed, color)
		}
		rows = append(rows, []string{r.Name, status, r.Detail})
	}
	return renderTable([]string{"Check", "Status", "Detail"}, rows, nil)
}
