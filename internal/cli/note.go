package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/hearth/internal/instance"
)

// NewNoteCommand creates the note command and its subcommands.
func NewNoteCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "note",
		Short: "Attach notes to instances",
		Long: `Add, list and remove notes on stored instances.

Notes attach to an instance somebody already acted on; adding a note to an
instance that has no stored row fails with NOT_FOUND.

Examples:
  hearth note add routine trash today "recycling goes out too" --as alice
  hearth note list routine trash today
  hearth note rm 0190c3a2-...`,
	}

	cmd.AddCommand(newNoteAddCommand(rootOpts))
	cmd.AddCommand(newNoteListCommand(rootOpts))
	cmd.AddCommand(newNoteRemoveCommand(rootOpts))

	return cmd
}

func newNoteAddCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "add <type> <id> <date> <text...>",
		Short:         "Add a note to an instance",
		Args:          cobra.MinimumNArgs(4),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := rootOpts.formatter(cmd)

			e, err := openEnv(rootOpts)
			if err != nil {
				return formatter.Fail(err, ExitCommandError)
			}
			defer e.Close()

			key, err := parseKey(args[0], args[1], args[2], e.today())
			if err != nil {
				return formatter.Fail(err, ExitCommandError)
			}
			id, err := e.instanceID(cmd.Context(), "add note", key)
			if err != nil {
				return formatter.Fail(err, ExitFailure)
			}

			note, err := e.notes.Add(cmd.Context(), e.actor(), id, strings.Join(args[3:], " "))
			if err != nil {
				return formatter.Fail(err, ExitFailure)
			}
			return formatter.Success(newNoteView(note, e.loc))
		},
	}
}

func newNoteListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list <type> <id> <date>",
		Short:         "List the notes on an instance",
		Args:          cobra.ExactArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := rootOpts.formatter(cmd)

			e, err := openEnv(rootOpts)
			if err != nil {
				return formatter.Fail(err, ExitCommandError)
			}
			defer e.Close()

			key, err := parseKey(args[0], args[1], args[2], e.today())
			if err != nil {
				return formatter.Fail(err, ExitCommandError)
			}

			view := noteListView{
				Entity: entityRef(key.EntityType, key.EntityID),
				Date:   key.Date,
				Notes:  []noteView{},
			}
			id, err := e.instanceID(cmd.Context(), "list notes", key)
			if instance.IsNotFound(err) {
				return formatter.Success(view)
			}
			if err != nil {
				return formatter.Fail(err, ExitFailure)
			}

			notes, err := e.notes.List(cmd.Context(), id)
			if err != nil {
				return formatter.Fail(err, ExitFailure)
			}
			for _, n := range notes {
				view.Notes = append(view.Notes, newNoteView(n, e.loc))
			}
			return formatter.Success(view)
		},
	}
}

func newNoteRemoveCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "rm <note-id>",
		Short:         "Remove a note",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := rootOpts.formatter(cmd)

			e, err := openEnv(rootOpts)
			if err != nil {
				return formatter.Fail(err, ExitCommandError)
			}
			defer e.Close()

			if err := e.notes.Delete(cmd.Context(), e.actor(), args[0]); err != nil {
				return formatter.Fail(err, ExitFailure)
			}
			return formatter.Success(messageView{Message: "removed note " + args[0]})
		},
	}
}
