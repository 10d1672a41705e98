package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/hearth/internal/instance"
)

// CoverRespondOptions holds flags for the cover respond command.
type CoverRespondOptions struct {
	*RootOptions
	Accept  bool
	Decline bool
}

// NewCoverCommand creates the cover command and its subcommands.
func NewCoverCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cover",
		Short: "Hand instances over to other household members",
		Long: `Ask someone else to cover an instance, answer such a request, or list
the requests made for an instance.

Examples:
  hearth cover request routine dog-walk today --as alice
  hearth cover respond 0190c3a2-... --accept --as bob
  hearth cover list routine dog-walk today`,
	}

	cmd.AddCommand(newCoverRequestCommand(rootOpts))
	cmd.AddCommand(newCoverRespondCommand(rootOpts))
	cmd.AddCommand(newCoverListCommand(rootOpts))

	return cmd
}

func newCoverRequestCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "request <type> <id> <date>",
		Short:         "Ask for someone to cover an instance",
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
			req, err := e.coverage.RequestCoverage(cmd.Context(), e.actor(), key)
			if err != nil {
				return formatter.Fail(err, ExitFailure)
			}
			return formatter.Success(newCoverageView(req, e.loc))
		},
	}
}

func newCoverRespondCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CoverRespondOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "respond <request-id>",
		Short: "Accept or decline a coverage request",
		Long: `Accept or decline a pending coverage request.

Accepting assigns the instance to the responder. A request can be answered
once; later answers fail with ALREADY_RESOLVED.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCoverRespond(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Accept, "accept", false, "accept the request")
	cmd.Flags().BoolVar(&opts.Decline, "decline", false, "decline the request")
	cmd.MarkFlagsMutuallyExclusive("accept", "decline")
	cmd.MarkFlagsOneRequired("accept", "decline")

	return cmd
}

func runCoverRespond(opts *CoverRespondOptions, requestID string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	e, err := openEnv(opts.RootOptions)
	if err != nil {
		return formatter.Fail(err, ExitCommandError)
	}
	defer e.Close()

	req, err := e.coverage.RespondToCoverage(cmd.Context(), e.actor(), requestID, opts.Accept)
	if err != nil {
		return formatter.Fail(err, ExitFailure)
	}
	e.logger.Debug("coverage answered", "request_id", req.ID, "status", req.Status)
	return formatter.Success(newCoverageView(req, e.loc))
}

func newCoverListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list <type> <id> <date>",
		Short:         "List coverage requests for an instance",
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

			view := coverageListView{
				Entity:  entityRef(key.EntityType, key.EntityID),
				Date:    key.Date,
				History: []coverageView{},
			}
			id, err := e.instanceID(cmd.Context(), "list coverage", key)
			if instance.IsNotFound(err) {
				return formatter.Success(view)
			}
			if err != nil {
				return formatter.Fail(err, ExitFailure)
			}

			history, err := e.coverage.History(cmd.Context(), id)
			if err != nil {
				return formatter.Fail(err, ExitFailure)
			}
			for _, req := range history {
				view.History = append(view.History, newCoverageView(req, e.loc))
			}

			active, ok, err := e.coverage.ActiveRequest(cmd.Context(), id)
			if err != nil {
				return formatter.Fail(err, ExitFailure)
			}
			if ok {
				v := newCoverageView(active, e.loc)
				view.Active = &v
			}
			return formatter.Success(view)
		},
	}
}
