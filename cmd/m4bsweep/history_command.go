package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"m4bsweep/internal/config"
	"m4bsweep/internal/history"
	"m4bsweep/internal/pipeline"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var runID string
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show past runs, or the outcomes of one run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.resolve(config.Overrides{})
			if err != nil {
				return err
			}
			if !cfg.History.Enabled {
				return errors.New("run history is disabled ([history] enabled = false)")
			}
			store, err := history.Open(cfg.History.Path)
			if err != nil {
				return err
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			if runID == "" {
				runs, err := store.ListRuns(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if len(runs) == 0 {
					fmt.Fprintln(out, "No runs recorded")
					return nil
				}
				fmt.Fprintln(out, renderRuns(runs))
				return nil
			}

			run, err := store.GetRun(cmd.Context(), runID)
			if err != nil {
				return err
			}
			outcomes, err := store.Outcomes(cmd.Context(), run.ID)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, renderRuns([]history.Run{run}))
			if len(outcomes) > 0 {
				fmt.Fprintln(out, renderOutcomes(run.Root, outcomes))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&runID, "run", "", "Run id (or unique prefix) to show in detail")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of recent runs to list")
	return cmd
}

func renderRuns(runs []history.Run) string {
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		state := "finished"
		switch {
		case run.Interrupted:
			state = "interrupted"
		case !run.Finished():
			state = "incomplete"
		}
		rows = append(rows, []string{
			shortID(run.ID),
			run.StartedAt.Local().Format(time.DateTime),
			run.Root,
			fmt.Sprint(run.Converted),
			fmt.Sprint(run.SkippedEncoded + run.SkippedUnrecognized + run.SkippedDryRun + run.SkippedInterrupted),
			fmt.Sprint(run.Failed),
			formatBytes(run.InputBytes - run.OutputBytes),
			displayLabel(state),
		})
	}
	return renderTable(
		[]string{"Run", "Started", "Root", "Converted", "Skipped", "Failed", "Saved", "State"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignLeft},
	)
}

func renderOutcomes(root string, outcomes []pipeline.Outcome) string {
	rows := make([][]string, 0, len(outcomes))
	for _, o := range outcomes {
		ordinal := "-"
		if o.Ordinal > 0 {
			ordinal = fmt.Sprint(o.Ordinal)
		}
		size := ""
		if o.Status == pipeline.StatusConverted {
			size = fmt.Sprintf("%s -> %s", formatBytes(o.InputBytes), formatBytes(o.OutputBytes))
		}
		detail := displayLabel(o.Reason)
		if o.Status == pipeline.StatusFailed {
			detail = o.Reason
		}
		rows = append(rows, []string{
			ordinal,
			relPath(root, o.Path),
			displayLabel(string(o.Status)),
			detail,
			o.SourceCodec,
			size,
			o.Elapsed.Round(time.Millisecond).String(),
		})
	}
	return renderTable(
		[]string{"#", "File", "Outcome", "Detail", "Codec", "Size", "Elapsed"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight},
	)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
