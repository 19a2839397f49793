package cli

import (
	coreapp "archratchet/internal/core/app"
	"archratchet/internal/core/config"
	"archratchet/internal/shared/util"
	"archratchet/internal/ui/report"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
)

func newCaptureCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "capture",
		Short: "Record the current counts as the new baseline",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := rt.open(cmd.Context())
			if err != nil {
				return err
			}
			res, err := app.Capture(cmd.Context(), rt.commitRef(cmd.Context()))
			if err != nil {
				return err
			}
			return rt.emitRun(res)
		},
	}
}

func newCheckCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Compare the current counts against the baseline",
		Long:  "Check fails when any tracked count rose above the baseline, cycles exceed the allowed maximum, or a package is deeper than its limit.",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := rt.open(cmd.Context())
			if err != nil {
				return err
			}
			res, err := app.Check(cmd.Context())
			if err != nil {
				return err
			}
			return rt.emitRun(res)
		},
	}
}

func newTightenCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "tighten <amount>",
		Short: "Lower every baseline count by amount, flooring at zero",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := strconv.Atoi(args[0])
			if err != nil {
				return usagef("tighten amount must be an integer, got %q", args[0])
			}
			app, err := rt.open(cmd.Context())
			if err != nil {
				return err
			}
			res, err := app.Tighten(cmd.Context(), amount)
			if err != nil {
				return err
			}
			return rt.emitRun(res)
		},
	}
}

func newUpdateCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "update",
		Short: "Fold improvements into the baseline; refused on any regression",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := rt.open(cmd.Context())
			if err != nil {
				return err
			}
			res, err := app.Update(cmd.Context(), rt.commitRef(cmd.Context()))
			if err != nil {
				return err
			}
			return rt.emitRun(res)
		},
	}
}

func newReportCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Print per-package coupling, depth and cohesion",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := rt.open(cmd.Context())
			if err != nil {
				return err
			}
			res, err := app.Analyze(cmd.Context())
			if err != nil {
				return err
			}
			var out []byte
			if rt.opts.format == report.FormatJSON {
				out, err = report.RenderReportJSON(res.Report)
			} else {
				out, err = report.RenderReportTSV(res.Report)
			}
			if err != nil {
				return err
			}
			if err := rt.writeStdout(out); err != nil {
				return err
			}
			rt.flushMetrics()
			return report.WriteReportTable(rt.stderr, res.Report)
		},
	}
}

func newPriorityCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "priority",
		Short: "Rank files by churn times complexity",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := rt.open(cmd.Context())
			if err != nil {
				return err
			}
			res, err := app.Analyze(cmd.Context())
			if err != nil {
				return err
			}
			var out []byte
			if rt.opts.format == report.FormatJSON {
				out, err = report.RenderPriorityJSON(res.Priority)
			} else {
				out, err = report.RenderPriorityTSV(res.Priority)
			}
			if err != nil {
				return err
			}
			if err := rt.writeStdout(out); err != nil {
				return err
			}
			return report.WritePriorityTable(rt.stderr, res.Priority)
		},
	}
}

func newHistoryCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded runs with moving-window trends",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if rt.opts.limit < 0 {
				return usagef("--limit must be >= 0")
			}
			app, err := rt.open(cmd.Context())
			if err != nil {
				return err
			}
			trend, err := app.Trend(cmd.Context(), rt.opts.limit)
			if err != nil {
				return err
			}
			var out []byte
			if rt.opts.format == report.FormatJSON {
				out, err = report.RenderTrendJSON(trend)
			} else {
				out, err = report.RenderTrendTSV(trend)
			}
			if err != nil {
				return err
			}
			if err := rt.writeStdout(out); err != nil {
				return err
			}
			return report.WriteTrendTable(rt.stderr, trend)
		},
	}
	cmd.Flags().IntVar(&rt.opts.limit, "limit", 0, "Maximum number of most recent runs (0 for all)")
	return cmd
}

func newDiagramCmd(rt *runtime) *cobra.Command {
	var style, outPath string
	cmd := &cobra.Command{
		Use:   "diagram",
		Short: "Draw the package dependency graph as DOT or Mermaid",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !report.ValidStyle(style) {
				return usagef("--style must be one of: dot, mermaid; got %q", style)
			}
			app, err := rt.open(cmd.Context())
			if err != nil {
				return err
			}
			res, err := app.Analyze(cmd.Context())
			if err != nil {
				return err
			}
			out, err := report.RenderDiagram(res, style)
			if err != nil {
				return err
			}
			if outPath == "" {
				return rt.writeStdout([]byte(out))
			}
			path := config.ResolveRelative(rt.paths.ProjectRoot, outPath)
			if err := util.WriteFileWithDirs(path, []byte(out), 0o644); err != nil {
				return fmt.Errorf("write diagram %q: %w", path, err)
			}
			slog.Info("diagram written", "path", path, "style", style)
			return nil
		},
	}
	cmd.Flags().StringVar(&style, "style", report.StyleDOT, "Diagram syntax (dot or mermaid)")
	cmd.Flags().StringVar(&outPath, "out", "", "Write the diagram to this file instead of stdout")
	return cmd
}

func newWatchCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Re-run check whenever an input file changes",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			app, err := rt.open(ctx)
			if err != nil {
				return err
			}

			if rt.cfgFound {
				cw := config.NewWatcher(rt.opts.configPath, func(cfg *config.Config) {
					if err := app.Reconfigure(cfg); err != nil {
						slog.Warn("config reload rejected", "error", err)
					}
				})
				if err := cw.Start(ctx); err != nil {
					slog.Warn("config watcher unavailable", "error", err)
				} else {
					defer cw.Stop()
				}
			}

			return app.Watch(ctx, func(res *coreapp.RunResult, err error) {
				if err != nil {
					fmt.Fprintf(rt.stderr, "archratchet: %v\n", err)
					return
				}
				if err := rt.emitRun(res); err != nil && !errors.Is(err, errVerdictFailed) {
					slog.Warn("failed to write run output", "error", err)
				}
			})
		},
	}
}

func newVersionCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  noArgs,
		RunE: func(*cobra.Command, []string) error {
			_, err := fmt.Fprintf(rt.stdout, "archratchet v%s\n", versionString)
			return err
		},
	}
}

// emitRun writes diagnostics to stdout and the summary to stderr, then fails
// the command when the verdict did not pass.
func (rt *runtime) emitRun(res *coreapp.RunResult) error {
	var (
		out []byte
		err error
	)
	if rt.opts.format == report.FormatJSON {
		out, err = report.RenderRunJSON(res)
	} else {
		out, err = report.RenderRunTSV(res)
	}
	if err != nil {
		return err
	}
	if err := rt.writeStdout(out); err != nil {
		return err
	}
	rt.flushMetrics()
	if err := report.WriteRunSummary(rt.stderr, res); err != nil {
		return err
	}
	if !res.Verdict.Passed {
		return errVerdictFailed
	}
	return nil
}

func (rt *runtime) writeStdout(data []byte) error {
	if len(data) > 0 && data[len(data)-1] != '\n' {
		data = append(data, '\n')
	}
	_, err := rt.stdout.Write(data)
	return err
}
