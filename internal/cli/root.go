package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/hearth/internal/instance"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"

	// Config is the hearth.yaml path. Empty means config.DefaultPath.
	Config string

	// DB, TZ and Defs override the corresponding config values.
	DB   string
	TZ   string
	Defs []string

	// As is the acting household member. Empty falls back to the config's
	// member; no member at all makes mutations fail NOT_AUTHENTICATED.
	As string

	// Clock and IDs allow overriding time and id generation (for testing).
	// If nil, the system clock and UUIDv7 ids are used.
	Clock instance.Clock
	IDs   instance.IDGenerator

	logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the hearth CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hearth",
		Short: "hearth - household routines and calendar obligations",
		Long: `Track what the household has to do each day.

Routines and calendar events are defined in YAML, CUE or ICS files. Their
occurrences are stored only once somebody acts on them: marking one done,
skipping it, moving it to another time or handing it to someone else.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Validate format flag
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			opts.setupLogging(cmd)
			return nil
		},
	}

	// Global flags
	flags := cmd.PersistentFlags()
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	flags.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	flags.StringVar(&opts.Config, "config", "", "path to hearth.yaml (default ./hearth.yaml)")
	flags.StringVar(&opts.DB, "db", "", "path to SQLite database (overrides config)")
	flags.StringVar(&opts.As, "as", "", "acting household member (overrides config)")
	flags.StringVar(&opts.TZ, "tz", "", "IANA timezone of the household (overrides config)")
	flags.StringSliceVar(&opts.Defs, "defs", nil, "definition files or directories (overrides config)")

	// Add subcommands
	cmd.AddCommand(NewDayCommand(opts))
	cmd.AddCommand(NewDueCommand(opts))
	cmd.AddCommand(NewDoneCommand(opts))
	cmd.AddCommand(NewUndoCommand(opts))
	cmd.AddCommand(NewSkipCommand(opts))
	cmd.AddCommand(NewDeferCommand(opts))
	cmd.AddCommand(NewRescheduleCommand(opts))
	cmd.AddCommand(NewCoverCommand(opts))
	cmd.AddCommand(NewNoteCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewInitCommand(opts))

	return cmd
}

// setupLogging installs a text handler on stderr, debug level when verbose.
func (o *RootOptions) setupLogging(cmd *cobra.Command) {
	logLevel := slog.LevelInfo
	if o.Verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: logLevel,
	})
	o.logger = slog.New(handler)
}

// Logger returns the command logger, or slog.Default() when the root
// command did not run (subcommands executed directly in tests).
func (o *RootOptions) Logger() *slog.Logger {
	if o.logger == nil {
		return slog.Default()
	}
	return o.logger
}

// formatter builds the output formatter for cmd.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   o.Verbose,
	}
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
