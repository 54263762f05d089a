package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/tonimelisma/gdrive-go/internal/config"
	"github.com/tonimelisma/gdrive-go/internal/registry"
)

// version is set at build time via ldflags.
var version = "dev"

// skipConfigAnnotation marks commands that run without loading the config
// file. They still get a CLIContext with a flag-only logger.
const skipConfigAnnotation = "skipConfig"

// CLIFlags holds the persistent flag values of one invocation.
type CLIFlags struct {
	ConfigPath  string
	Backend     string
	DownloadDir string
	Exclude     []string
	Strict      bool
	JSON        bool
	Verbose     bool
	Quiet       bool
}

// CLIContext carries everything a subcommand needs. It is built once in
// PersistentPreRunE and stored in the command's context.
type CLIContext struct {
	Cfg      *config.Config // nil for commands annotated with skipConfigAnnotation
	Logger   *slog.Logger
	Flags    CLIFlags
	Registry *registry.Registry
}

type cliContextKey struct{}

// mustCLIContext returns the CLIContext stored by PersistentPreRunE. A
// missing context is a programming error.
func mustCLIContext(ctx context.Context) *CLIContext {
	cc, ok := ctx.Value(cliContextKey{}).(*CLIContext)
	if !ok {
		panic("cli context not initialized")
	}

	return cc
}

// newRootCmd builds the root command with every subcommand registered.
// Backends are opened through reg.
func newRootCmd(reg *registry.Registry) *cobra.Command {
	flags := &CLIFlags{}

	cmd := &cobra.Command{
		Use:   "gdrive-go",
		Short: "Google Drive path-based transfer client",
		Long: `Upload, download and search files on Google Drive using slash-separated
paths. Drive has no server-side paths; every path component is resolved
with a search.`,
		Version: version,
		// Errors are printed by main.
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cc := &CLIContext{Flags: *flags, Registry: reg}

			if cmd.Annotations[skipConfigAnnotation] != "true" {
				cfg, err := loadConfig(cmd, flags)
				if err != nil {
					return err
				}

				cc.Cfg = cfg
			}

			cc.Logger = buildLogger(cc.Cfg, cc.Flags, cmd.ErrOrStderr())
			cmd.SetContext(context.WithValue(cmd.Context(), cliContextKey{}, cc))

			return nil
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&flags.ConfigPath, "config", "", "config file path")
	pf.StringVar(&flags.Backend, "backend", "", "remote backend (see 'gdrive-go backends')")
	pf.StringVar(&flags.DownloadDir, "download-dir", "", "directory downloads are written to")
	pf.StringArrayVar(&flags.Exclude, "exclude", nil, "exclude files with this extension, e.g. .tmp (repeatable)")
	pf.BoolVar(&flags.Strict, "strict", false, "fail when a remote parent folder is missing")
	pf.BoolVar(&flags.JSON, "json", false, "output in JSON format")
	pf.BoolVarP(&flags.Verbose, "verbose", "v", false, "enable debug logging")
	pf.BoolVarP(&flags.Quiet, "quiet", "q", false, "suppress informational output")
	cmd.MarkFlagsMutuallyExclusive("verbose", "quiet")

	cmd.AddCommand(newLoginCmd())
	cmd.AddCommand(newLogoutCmd())
	cmd.AddCommand(newPutCmd())
	cmd.AddCommand(newPutAllCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newMkdirCmd())
	cmd.AddCommand(newFindCmd())
	cmd.AddCommand(newHistoryCmd())
	cmd.AddCommand(newBackendsCmd())

	return cmd
}

// loadConfig resolves the effective configuration from the four-layer
// override chain. Only flags the user actually set override the file.
func loadConfig(cmd *cobra.Command, flags *CLIFlags) (*config.Config, error) {
	cli := config.CLIOverrides{
		ConfigPath: flags.ConfigPath,
		Backend:    flags.Backend,
		Exclude:    flags.Exclude,
	}

	if cmd.Flags().Changed("download-dir") {
		cli.DownloadDir = &flags.DownloadDir
	}

	if cmd.Flags().Changed("strict") {
		cli.StrictPaths = &flags.Strict
	}

	cfg, err := config.Resolve(config.ReadEnvOverrides(), cli)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	return cfg, nil
}

// buildLogger creates the logger for one invocation. The config log level
// is the baseline; --verbose and --quiet override it. log_format "auto"
// writes text to a terminal and JSON otherwise.
func buildLogger(cfg *config.Config, flags CLIFlags, w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	format := "auto"

	if cfg != nil {
		switch cfg.LogLevel {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}

		format = cfg.LogFormat
	}

	if flags.Verbose {
		level = slog.LevelDebug
	}

	if flags.Quiet {
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	if format == "json" || (format == "auto" && !isTerminal(w)) {
		return slog.New(slog.NewJSONHandler(w, opts))
	}

	return slog.New(slog.NewTextHandler(w, opts))
}

// isTerminal reports whether w is a terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}

	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
