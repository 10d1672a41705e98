package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/hearth/internal/config"
)

// InitOptions holds flags for the init command.
type InitOptions struct {
	*RootOptions
	Force bool
}

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InitOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a hearth.yaml configuration",
		Long: `Write a configuration file with the defaults, overridden by --db, --tz,
--as and --defs. The file is written to --config (default ./hearth.yaml) and
an existing file is kept unless --force is given.

Example:
  hearth init --tz Europe/Berlin --as alice`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Force, "force", false, "overwrite an existing config file")

	return cmd
}

func runInit(opts *InitOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	path := opts.Config
	if path == "" {
		path = config.DefaultPath
	}

	cfg := config.DefaultConfig()
	if opts.DB != "" {
		cfg.Database = opts.DB
	}
	if opts.TZ != "" {
		cfg.Timezone = opts.TZ
	}
	if opts.As != "" {
		cfg.Member = opts.As
	}
	if len(opts.Defs) > 0 {
		cfg.Definitions = opts.Defs
	}
	if _, err := cfg.Location(); err != nil {
		return formatter.Fail(err, ExitCommandError)
	}

	if err := config.Save(path, cfg, opts.Force); err != nil {
		return formatter.Fail(err, ExitCommandError)
	}
	opts.Logger().Debug("config written", "path", path)
	return formatter.Success(messageView{Message: fmt.Sprintf("wrote %s", path)})
}
