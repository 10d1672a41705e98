package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/roach88/hearth/internal/instance"
)

// lifecycleFunc applies one transition. rest holds the arguments after
// "<type> <id> <date>".
type lifecycleFunc func(ctx context.Context, e *env, key instance.Key, rest []string) (instance.Instance, error)

// NewDoneCommand creates the done command.
func NewDoneCommand(rootOpts *RootOptions) *cobra.Command {
	return newLifecycleCommand(rootOpts, &cobra.Command{
		Use:   "done <type> <id> <date>",
		Short: "Mark an instance completed",
		Long: `Mark the instance of a routine or calendar event completed.

Type is routine or calendar_event. Date is YYYY-MM-DD, today, tomorrow or
yesterday.

Example:
  hearth done routine trash today --as alice`,
		Args: cobra.ExactArgs(3),
	}, func(ctx context.Context, e *env, key instance.Key, _ []string) (instance.Instance, error) {
		return e.lifecycle.MarkDone(ctx, e.actor(), key)
	})
}

// NewUndoCommand creates the undo command.
func NewUndoCommand(rootOpts *RootOptions) *cobra.Command {
	return newLifecycleCommand(rootOpts, &cobra.Command{
		Use:   "undo <type> <id> <date>",
		Short: "Return an instance to pending",
		Long: `Return an instance to pending, clearing its completion, skip or deferral.

Undoing an instance nobody acted on changes nothing.`,
		Args: cobra.ExactArgs(3),
	}, func(ctx context.Context, e *env, key instance.Key, _ []string) (instance.Instance, error) {
		return e.lifecycle.UndoDone(ctx, e.actor(), key)
	})
}

// NewSkipCommand creates the skip command.
func NewSkipCommand(rootOpts *RootOptions) *cobra.Command {
	return newLifecycleCommand(rootOpts, &cobra.Command{
		Use:   "skip <type> <id> <date>",
		Short: "Skip an instance",
		Args:  cobra.ExactArgs(3),
	}, func(ctx context.Context, e *env, key instance.Key, _ []string) (instance.Instance, error) {
		return e.lifecycle.Skip(ctx, e.actor(), key)
	})
}

// NewDeferCommand creates the defer command.
func NewDeferCommand(rootOpts *RootOptions) *cobra.Command {
	return newLifecycleCommand(rootOpts, &cobra.Command{
		Use:   "defer <type> <id> <date> <to>",
		Short: "Move an instance to another time",
		Long: `Defer the instance originally due on date to a target time.

The target is RFC 3339, 2006-01-02T15:04 in the household timezone, or a
bare 15:04 on date. A deferred instance leaves its original day unless the
target falls on that same day.

Example:
  hearth defer routine laundry 2024-01-15 2024-01-17T09:00`,
		Args: cobra.ExactArgs(4),
	}, func(ctx context.Context, e *env, key instance.Key, rest []string) (instance.Instance, error) {
		to, err := parseTarget(rest[0], key.Date, e.loc)
		if err != nil {
			return instance.Instance{}, err
		}
		return e.lifecycle.Defer(ctx, e.actor(), key, to)
	})
}

// NewRescheduleCommand creates the reschedule command.
func NewRescheduleCommand(rootOpts *RootOptions) *cobra.Command {
	return newLifecycleCommand(rootOpts, &cobra.Command{
		Use:   "reschedule <type> <id> <date> <to>",
		Short: "Change when an instance happens",
		Long: `Reschedule an instance.

A target on the same day keeps the instance pending with a new time. A
target on another day defers it there.

Examples:
  hearth reschedule routine vitamins today 21:00
  hearth reschedule calendar_event piano 2024-01-15 2024-01-16T17:00`,
		Args: cobra.ExactArgs(4),
	}, func(ctx context.Context, e *env, key instance.Key, rest []string) (instance.Instance, error) {
		to, err := parseTarget(rest[0], key.Date, e.loc)
		if err != nil {
			return instance.Instance{}, err
		}
		return e.lifecycle.Reschedule(ctx, e.actor(), key, to)
	})
}

func newLifecycleCommand(rootOpts *RootOptions, cmd *cobra.Command, fn lifecycleFunc) *cobra.Command {
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return runLifecycle(rootOpts, args, cmd, fn)
	}
	return cmd
}

func runLifecycle(opts *RootOptions, args []string, cmd *cobra.Command, fn lifecycleFunc) error {
	formatter := opts.formatter(cmd)

	e, err := openEnv(opts)
	if err != nil {
		return formatter.Fail(err, ExitCommandError)
	}
	defer e.Close()

	key, err := parseKey(args[0], args[1], args[2], e.today())
	if err != nil {
		return formatter.Fail(err, ExitCommandError)
	}

	inst, err := fn(cmd.Context(), e, key, args[3:])
	if err != nil {
		return formatter.Fail(err, ExitFailure)
	}
	e.logger.Debug("instance updated",
		"command", cmd.Name(),
		"key", key.String(),
		"instance_id", inst.ID,
		"status", inst.Status,
	)
	return formatter.Success(newInstanceView(inst, e.loc))
}
