package cli

import (
	"archratchet/internal/core/config"
	"archratchet/internal/ui/report"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

const versionString = "1.0.0"

// Exit codes.
const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

// errVerdictFailed marks a run whose summary was already printed but whose
// verdict must fail the process.
var errVerdictFailed = errors.New("verdict failed")

type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

func usagef(format string, args ...any) error {
	return usageError{fmt.Errorf(format, args...)}
}

type cliOptions struct {
	configPath string
	verbose    bool
	format     string
	commitRef  string
	limit      int
}

func Run(args []string) int {
	return run(context.Background(), args, os.Stdout, os.Stderr)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	rt := &runtime{stdout: stdout, stderr: stderr}
	defer rt.close()

	root := newRootCmd(rt)
	root.SetArgs(args)
	root.SetOut(stderr)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errVerdictFailed):
		return exitFailure
	case isUsage(err) || !rt.started:
		fmt.Fprintf(stderr, "archratchet: %v\n", err)
		fmt.Fprintln(stderr, "Run 'archratchet --help' for usage.")
		return exitUsage
	default:
		rt.emitError(err)
		fmt.Fprintf(stderr, "archratchet: %v\n", err)
		return exitFailure
	}
}

// emitError writes a fatal error as a diagnostic on stdout in the chosen format.
func (rt *runtime) emitError(err error) {
	var (
		out       []byte
		renderErr error
	)
	if rt.opts.format == report.FormatJSON {
		out, renderErr = report.RenderErrorJSON(err)
	} else {
		out, renderErr = report.RenderErrorTSV(err)
	}
	if renderErr != nil {
		return
	}
	_ = rt.writeStdout(out)
}

func isUsage(err error) bool {
	var u usageError
	return errors.As(err, &u)
}

func newRootCmd(rt *runtime) *cobra.Command {
	root := &cobra.Command{
		Use:   "archratchet",
		Short: "Ratchet architectural debt against a captured baseline.",
		Long: `archratchet reads a module dependency graph, measures cycles, coupling,
depth and cohesion per package, and compares per-file counts against a
committed baseline so architectural debt can only go down.`,
		SilenceErrors:      true,
		SilenceUsage:       true,
		DisableSuggestions: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if !report.ValidFormat(rt.opts.format) {
				return usagef("--format must be one of: json, tsv; got %q", rt.opts.format)
			}
			rt.configureLogging()
			rt.started = true
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			_ = cmd.Help()
			return usagef("a command is required")
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&rt.opts.configPath, "config", config.FindConfig("."), "Path to config file")
	flags.BoolVar(&rt.opts.verbose, "verbose", false, "Enable verbose logging")
	flags.StringVar(&rt.opts.format, "format", report.FormatTSV, "Diagnostics format on stdout (json or tsv)")
	flags.StringVar(&rt.opts.commitRef, "commit", "", "Commit ref recorded with the baseline (defaults to CI environment)")

	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err}
	})

	root.AddCommand(
		newCaptureCmd(rt),
		newCheckCmd(rt),
		newTightenCmd(rt),
		newUpdateCmd(rt),
		newReportCmd(rt),
		newPriorityCmd(rt),
		newHistoryCmd(rt),
		newDiagramCmd(rt),
		newWatchCmd(rt),
		newVersionCmd(rt),
	)
	return root
}

// noArgs and exactArgs report positional mismatches as usage errors.
func noArgs(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return usagef("%s takes no arguments, got %q", cmd.CommandPath(), args)
	}
	return nil
}

func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return usagef("%s expects %d argument(s), got %d", cmd.CommandPath(), n, len(args))
		}
		return nil
	}
}
