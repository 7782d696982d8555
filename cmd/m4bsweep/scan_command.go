package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"m4bsweep/internal/config"
	"m4bsweep/internal/pathclass"
	"m4bsweep/internal/probe"
	"m4bsweep/internal/replace"
	"m4bsweep/internal/scan"
)

func newScanCommand(ctx *commandContext) *cobra.Command {
	var rootFlag string
	var skipProbe bool

	cmd := &cobra.Command{
		Use:   "scan [root]",
		Short: "List audiobooks under root and what a run would do with each",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.resolve(config.Overrides{Root: rootArg(args, rootFlag)})
			if err != nil {
				return err
			}
			if err := cfg.RequireRoot(); err != nil {
				return err
			}
			logger, err := ctx.logger(cmd, &cfg)
			if err != nil {
				return err
			}

			scanned, err := scan.Scan(cmd.Context(), cfg.Sweep.Root, logger)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(scanned.Candidates) == 0 {
				fmt.Fprintln(out, "No .m4b files found")
			} else {
				var prober *probe.Prober
				if !skipProbe {
					prober = probe.New(newInspector(&cfg), logger)
				}
				rows := make([][]string, 0, len(scanned.Candidates))
				for _, candidate := range scanned.Candidates {
					if err := cmd.Context().Err(); err != nil {
						return err
					}
					codec, action := "-", "-"
					if prober != nil {
						report := prober.Probe(cmd.Context(), candidate.Path)
						if report.Known() {
							codec = report.Codec
						}
						action = displayLabel(probe.Decide(report, cfg.Encode.Codec).String())
					}
					rows = append(rows, []string{
						relPath(scanned.Root, candidate.Path),
						formatBytes(candidate.Size),
						codec,
						action,
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"File", "Size", "Codec", "Action"},
					rows,
					[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft},
				))
			}
			renderArtifacts(out, scanned)
			return nil
		},
	}

	cmd.Flags().StringVar(&rootFlag, "root", "", "Directory tree to scan")
	cmd.Flags().BoolVar(&skipProbe, "no-probe", false, "List files without running ffprobe")
	return cmd
}

func renderArtifacts(out io.Writer, scanned scan.Result) {
	artifacts := append(append([]scan.Artifact(nil), scanned.Temps...), scanned.Backups...)
	if len(artifacts) == 0 {
		return
	}
	rows := make([][]string, 0, len(artifacts))
	for _, a := range artifacts {
		kind := "backup"
		switch {
		case a.Class == pathclass.TransientArtifact:
			kind = "stale temp"
		case a.Orphaned:
			kind = "orphaned backup"
		}
		rows = append(rows, []string{relPath(scanned.Root, a.Path), displayLabel(kind), formatBytes(a.Size)})
	}
	fmt.Fprintln(out, renderTable([]string{"Artifact", "Kind", "Size"}, rows, []columnAlignment{alignLeft, alignLeft, alignRight}))
	if len(scanned.Temps) > 0 {
		fmt.Fprintln(out, "Stale temporary files can be removed with `m4bsweep run --clean-temp`.")
	}
	for _, b := range scanned.Backups {
		if b.Orphaned {
			recovery := replace.RecoveryError{Original: b.Original, Backup: b.Path}
			fmt.Fprintf(out, "%s has no original; %s\n", relPath(scanned.Root, b.Path), recovery.Hint())
		}
	}
}
