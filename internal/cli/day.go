package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/hearth/internal/recurrence"
)

// NewDayCommand creates the day command.
func NewDayCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "day [date]",
		Short: "List the instances recorded for a day",
		Long: `List the stored instances that belong on a day.

This includes instances originally due on the day (unless they were deferred
to another day) and instances deferred onto it from elsewhere. Definitions
nobody has acted on yet are not listed; use "hearth due" for the full agenda.

The date is YYYY-MM-DD, today, tomorrow or yesterday. Default: today.

Examples:
  hearth day
  hearth day 2024-01-15 --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDay(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runDay(opts *RootOptions, args []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	e, err := openEnv(opts)
	if err != nil {
		return formatter.Fail(err, ExitCommandError)
	}
	defer e.Close()

	date, err := dateArg(args, e.today())
	if err != nil {
		return formatter.Fail(err, ExitCommandError)
	}

	insts, err := e.resolver.InstancesForDate(cmd.Context(), date)
	if err != nil {
		return formatter.Fail(err, ExitFailure)
	}

	view := dayView{Date: date, Instances: make([]instanceView, 0, len(insts))}
	for _, inst := range insts {
		view.Instances = append(view.Instances, newInstanceView(inst, e.loc))
	}
	return formatter.Success(view)
}

// NewDueCommand creates the due command.
func NewDueCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "due [date]",
		Short: "Show the agenda for a day",
		Long: `Show everything due on a day, ordered by time.

Definitions due on the day are listed whether or not anyone acted on them
yet; instances deferred onto the day are added. Nothing is written.

Examples:
  hearth due
  hearth due tomorrow --defs ./definitions`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDue(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runDue(opts *RootOptions, args []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	e, err := openEnv(opts)
	if err != nil {
		return formatter.Fail(err, ExitCommandError)
	}
	defer e.Close()

	date, err := dateArg(args, e.today())
	if err != nil {
		return formatter.Fail(err, ExitCommandError)
	}

	defs, err := e.definitions()
	if err != nil {
		return formatter.Fail(err, ExitCommandError)
	}
	formatter.VerboseLog("Loaded %d definition(s)", len(defs))

	items, err := e.resolver.Agenda(cmd.Context(), defs, date)
	if err != nil {
		return formatter.Fail(err, ExitFailure)
	}
	return formatter.Success(newAgendaView(date, items, e.loc))
}

func dateArg(args []string, today recurrence.Date) (recurrence.Date, error) {
	if len(args) == 0 {
		return today, nil
	}
	return parseDate(args[0], today)
}
