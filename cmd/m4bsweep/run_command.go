package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"m4bsweep/internal/config"
	"m4bsweep/internal/encode"
	"m4bsweep/internal/history"
	"m4bsweep/internal/logging"
	"m4bsweep/internal/pipeline"
	"m4bsweep/internal/preflight"
	"m4bsweep/internal/probe"
	"m4bsweep/internal/replace"
	"m4bsweep/internal/runlock"
	"m4bsweep/internal/scan"
)

// Seams for tests; production wires the ffprobe and ffmpeg binaries.
var (
	newInspector = func(cfg *config.Config) probe.Inspector {
		return probe.FFprobe{Binary: cfg.Encode.FFprobeBinary}
	}
	newTranscoder = func(cfg *config.Config, logger *slog.Logger) encode.Transcoder {
		return encode.NewFFmpeg(encode.WithBinary(cfg.Encode.FFmpegBinary), encode.WithLogger(logger))
	}
)

type runFlags struct {
	root       string
	bitrate    string
	sampleRate int
	channels   int
	keepBackup bool
	jobs       int
	dryRun     bool
	cleanTemp  bool
}

func (f *runFlags) overrides(cmd *cobra.Command, args []string) config.Overrides {
	o := config.Overrides{Root: rootArg(args, f.root)}
	flags := cmd.Flags()
	if flags.Changed("bitrate") {
		o.Bitrate = &f.bitrate
	}
	if flags.Changed("sample-rate") {
		o.SampleRate = &f.sampleRate
	}
	if flags.Changed("channels") {
		o.Channels = &f.channels
	}
	if flags.Changed("keep-backup") {
		o.KeepBackup = &f.keepBackup
	}
	if flags.Changed("jobs") {
		o.MaxConcurrency = &f.jobs
	}
	if flags.Changed("dry-run") {
		o.DryRun = &f.dryRun
	}
	if flags.Changed("clean-temp") {
		o.CleanTemp = &f.cleanTemp
	}
	return o
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	flags := &runFlags{}

	cmd := &cobra.Command{
		Use:   "run [root]",
		Short: "Convert every non-AAC .m4b under root in place",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.resolve(flags.overrides(cmd, args))
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

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runSweep(runCtx, cmd.OutOrStdout(), &cfg, logger)
		},
	}

	cmd.Flags().StringVar(&flags.root, "root", "", "Directory tree to sweep")
	cmd.Flags().StringVar(&flags.bitrate, "bitrate", "", "Target AAC bitrate (e.g. 96k)")
	cmd.Flags().IntVar(&flags.sampleRate, "sample-rate", 0, "Target sample rate in Hz")
	cmd.Flags().IntVar(&flags.channels, "channels", 0, "Target channel count")
	cmd.Flags().BoolVar(&flags.keepBackup, "keep-backup", true, "Keep the original as <name>.orig.m4b")
	cmd.Flags().IntVarP(&flags.jobs, "jobs", "j", 0, "Maximum simultaneous conversions")
	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "Probe and classify only; change nothing")
	cmd.Flags().BoolVar(&flags.cleanTemp, "clean-temp", false, "Remove temporary files left by interrupted runs")
	return cmd
}

func runSweep(ctx context.Context, out io.Writer, cfg *config.Config, logger *slog.Logger) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", pipeline.ErrInterrupted, err)
	}
	checks := preflight.RunAll(ctx, cfg)
	if err := preflight.Failed(checks); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %w", pipeline.ErrInterrupted, ctx.Err())
		}
		fmt.Fprintln(out, renderChecks(checks, false))
		return err
	}

	root := cfg.Sweep.Root
	lock, err := runlock.Acquire(root)
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			logger.Warn("failed to release run lock", logging.Error(err))
		}
	}()

	scanned, err := scan.Scan(ctx, root, logger)
	if err != nil {
		return err
	}
	if cfg.Sweep.CleanTemp && len(scanned.Temps) > 0 {
		if cfg.Sweep.DryRun {
			logger.Info("dry run: leaving stale temporary files", logging.Int("count", len(scanned.Temps)))
		} else {
			removed, err := scan.CleanTemps(ctx, scanned.Temps, logger)
			if err != nil {
				return err
			}
			writeLine(out, "Removed %d stale temporary file(s)", removed)
		}
	}

	var recorder pipeline.Recorder
	if cfg.History.Enabled {
		store, err := history.Open(cfg.History.Path)
		if err != nil {
			logging.WarnWithContext(logger, "run history unavailable", "history_open_failed",
				logging.String(logging.FieldErrorHint, "check history.path or disable [history]"),
				logging.String(logging.FieldImpact, "this run will not be recorded"),
				logging.Error(err))
		} else {
			defer store.Close()
			recorder = store
		}
	}

	inspector := newInspector(cfg)
	params := encode.ParamsFromConfig(cfg)
	scheduler, err := pipeline.NewScheduler(pipeline.Deps{
		Prober:   probe.New(inspector, logger),
		Encoder:  encode.NewEncoder(newTranscoder(cfg, logger), inspector, params, cfg.JobTimeout(), logger),
		Replacer: replace.New(logger),
		Recorder: recorder,
	}, pipeline.Options{
		Concurrency: cfg.Sweep.MaxConcurrency,
		KeepBackup:  cfg.Sweep.KeepBackup,
		DryRun:      cfg.Sweep.DryRun,
		TargetCodec: cfg.Encode.Codec,
	}, logger)
	if err != nil {
		return err
	}

	summary := scheduler.Run(ctx, root, scanned.Candidates)
	fmt.Fprintln(out, renderSummary(summary, scanned, shouldColorize(out)))
	if failures := summary.Failures(); len(failures) > 0 {
		fmt.Fprintln(out, renderFailures(root, failures))
	}

	err = summary.Err()
	if errors.Is(err, pipeline.ErrInterrupted) {
		writeLine(out, "Interrupted: %d file(s) were not processed; originals are untouched.", summary.SkippedInterrupted)
	}
	return err
}

func renderSummary(s pipeline.Summary, scanned scan.Result, color bool) string {
	rows := [][]string{
		{displayLabel(pipeline.ReasonAlreadyEncoded), fmt.Sprint(s.SkippedEncoded)},
		{displayLabel(pipeline.ReasonUnrecognizedCodec), fmt.Sprint(s.SkippedUnrecognized)},
		{displayLabel(string(pipeline.StatusConverted)), colorize(fmt.Sprint(s.Converted), ansiGreen, color && s.Converted > 0)},
		{displayLabel(string(pipeline.StatusFailed)), colorize(fmt.Sprint(s.Failed), ansiRed, color && s.Failed > 0)},
	}
	if s.SkippedDryRun > 0 {
		rows = append(rows, []string{"Would Convert", fmt.Sprint(s.SkippedDryRun)})
	}
	if s.SkippedInterrupted > 0 {
		rows = append(rows, []string{displayLabel(pipeline.ReasonInterrupted), colorize(fmt.Sprint(s.SkippedInterrupted), ansiYellow, color)})
	}
	if s.Converted > 0 {
		rows = append(rows,
			[]string{"Input Size", formatBytes(s.InputBytes)},
			[]string{"Output Size", formatBytes(s.OutputBytes)},
			[]string{"Saved", formatBytes(s.SavedBytes())},
		)
	}
	if n := len(scanned.Temps); n > 0 {
		rows = append(rows, []string{"Stale Temp Files", colorize(fmt.Sprint(n), ansiYellow, color)})
	}
	if n := len(scanned.Backups); n > 0 {
		rows = append(rows, []string{"Backups On Disk", fmt.Sprint(n)})
	}
	rows = append(rows, []string{"Run", s.RunID})
	return renderTable([]string{"Result", "Count"}, rows, []columnAlignment{alignLeft, alignRight})
}

func renderFailures(root string, failures []pipeline.Outcome) string {
	rows := make([][]string, 0, len(failures))
	for _, o := range failures {
		reason := o.Reason
		if o.Hint != "" {
			reason += "\n" + o.Hint
		}
		rows = append(rows, []string{relPath(root, o.Path), o.Kind, reason})
	}
	return renderTable([]string{"Failed File", "Kind", "Reason"}, rows, nil)
}

func relPath(root, path string) string {
	if rel, err := filepath.Rel(root, path); err == nil {
		return rel
	}
	return path
}
