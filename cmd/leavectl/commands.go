package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// ROOT
// =============================================================================

// cli carries the parsed global flags and, once PersistentPreRunE has run,
// the wired app.
type cli struct {
	opts globalOptions
	app  *app
}

// execute runs one invocation. The out-of-sync notice and resource cleanup
// happen whether or not the command failed.
func execute(ctx context.Context, args []string, out io.Writer) error {
	root, c := newRootCmd()
	root.SetArgs(args)
	root.SetOut(out)

	err := root.ExecuteContext(ctx)
	if c.app != nil {
		c.app.finish()
		err = errors.Join(err, c.app.close())
	}
	return err
}

func newRootCmd() (*cobra.Command, *cli) {
	c := &cli{}

	root := &cobra.Command{
		Use:           "leavectl",
		Short:         "Submit, review and inspect leave requests",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), &c.opts, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			c.app = a
			return nil
		},
	}

	f := root.PersistentFlags()
	f.StringVar(&c.opts.configPath, "config", "", "path to a YAML config file")
	f.BoolVarP(&c.opts.verbose, "verbose", "v", false, "log at the configured level instead of warn")
	f.StringVar(&c.opts.email, "email", envOr("HRMS_ACTOR_EMAIL", ""), "acting user's email")
	f.StringVar(&c.opts.employeeID, "employee-id", envOr("HRMS_ACTOR_EMPLOYEE_ID", ""), "acting user's employee id")
	f.StringVar(&c.opts.userID, "user-id", envOr("HRMS_ACTOR_USER_ID", ""), "acting user's account id")
	f.StringVar(&c.opts.role, "role", envOr("HRMS_ACTOR_ROLE", "employee"), "acting user's role (employee, hr, admin, employer)")

	root.AddCommand(
		c.submitCmd(),
		c.listCmd(),
		c.mineCmd(),
		c.decisionCmd("approve", "Approve a pending or held request"),
		c.decisionCmd("hold", "Put a pending request on hold"),
		c.rejectCmd(),
		c.cancelCmd(),
		c.deleteCmd(),
		c.balanceCmd(),
		c.refreshCmd(),
	)
	return root, c
}

// =============================================================================
// EMPLOYEE COMMANDS
// =============================================================================

func (c *cli) submitCmd() *cobra.Command {
	var (
		leaveType, from, to, reason, forEmployee string
		docs                                     []string
	)
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a leave request",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			start, err := parseDateFlag("from", from)
			if err != nil {
				return err
			}
			end, err := parseDateFlag("to", to)
			if err != nil {
				return err
			}
			if end.IsZero() {
				end = start
			}
			req, err := c.app.workflow.Submit(cmd.Context(), c.app.session, leave.SubmitInput{
				EmployeeID:        generic.EntityID(forEmployee),
				LeaveType:         leaveType,
				StartDate:         start,
				EndDate:           end,
				Reason:            reason,
				AttachedDocuments: docs,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(c.app.out, "submitted %s: %s %s..%s (%d days) %s\n",
				req.ID, req.LeaveType, req.StartDate, req.EndDate, req.TotalDays, req.Status)
			return nil
		},
	}
	cmd.Flags().StringVar(&leaveType, "type", "", "leave type (annual, casual, sick, maternity, paternity, unpaid)")
	cmd.Flags().StringVar(&from, "from", "", "first day, YYYY-MM-DD")
	cmd.Flags().StringVar(&to, "to", "", "last day, YYYY-MM-DD (defaults to --from)")
	cmd.Flags().StringVar(&reason, "reason", "", "reason for the leave")
	cmd.Flags().StringVar(&forEmployee, "for", "", "employee id to file for (approvers only)")
	cmd.Flags().StringSliceVar(&docs, "doc", nil, "attached document reference (repeatable)")
	return cmd
}

func (c *cli) mineCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mine [employee-id]",
		Short: "List every request of an employee (default: yourself)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := c.subject(cmd, args)
			if err != nil {
				return err
			}
			reqs, err := c.app.queue.ListForEmployee(cmd.Context(), c.app.session, id)
			if err != nil {
				return err
			}
			return printRequests(c.app.out, reqs)
		},
	}
}

func (c *cli) cancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <request-id>",
		Short: "Cancel a pending or approved request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := c.app.workflow.Cancel(cmd.Context(), c.app.session, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(c.app.out, "%s %s\n", req.ID, req.Status)
			return nil
		},
	}
}

func (c *cli) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <request-id>",
		Short: "Delete a pending request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.app.workflow.Delete(cmd.Context(), c.app.session, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(c.app.out, "%s deleted\n", args[0])
			return nil
		},
	}
}

func (c *cli) balanceCmd() *cobra.Command {
	var year int
	cmd := &cobra.Command{
		Use:   "balance [employee-id]",
		Short: "Show the leave balance of an employee (default: yourself)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := c.subject(cmd, args)
			if err != nil {
				return err
			}
			if year == 0 {
				year = time.Now().Year()
			}
			snap, err := c.app.workflow.Balance(cmd.Context(), c.app.session, id, year)
			if err != nil {
				return err
			}
			return printBalance(c.app.out, snap)
		},
	}
	cmd.Flags().IntVar(&year, "year", 0, "calendar year (default: this year)")
	return cmd
}

// =============================================================================
// REVIEWER COMMANDS
// =============================================================================

type viewFlags struct {
	status, search string
}

func (v *viewFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&v.status, "status", "", "status filter: pending (default), approved, rejected, cancelled, hold or all")
	cmd.Flags().StringVar(&v.search, "q", "", "search employee name, leave type and reason")
}

func (v *viewFlags) view() leave.View {
	return leave.View{Status: v.status, Search: v.search}
}

func (c *cli) listCmd() *cobra.Command {
	var v viewFlags
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the approval queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reqs, err := c.app.queue.ListForReviewer(cmd.Context(), c.app.session, v.status, v.search)
			if err != nil {
				return err
			}
			return printRequests(c.app.out, reqs)
		},
	}
	v.register(cmd)
	return cmd
}

func (c *cli) decisionCmd(action, short string) *cobra.Command {
	var v viewFlags
	cmd := &cobra.Command{
		Use:   action + " <request-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				res leave.QueueResult
				err error
			)
			switch action {
			case "approve":
				res, err = c.app.queue.Approve(cmd.Context(), c.app.session, args[0], v.view())
			case "hold":
				res, err = c.app.queue.Hold(cmd.Context(), c.app.session, args[0], v.view())
			}
			return c.printDecision(res, err)
		},
	}
	v.register(cmd)
	return cmd
}

func (c *cli) rejectCmd() *cobra.Command {
	var (
		v      viewFlags
		reason string
	)
	cmd := &cobra.Command{
		Use:   "reject <request-id>",
		Short: "Reject a pending or held request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := c.app.queue.Reject(cmd.Context(), c.app.session, args[0], reason, v.view())
			return c.printDecision(res, err)
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "rejection reason shown to the employee")
	v.register(cmd)
	return cmd
}

func (c *cli) printDecision(res leave.QueueResult, err error) error {
	if err != nil {
		return err
	}
	fmt.Fprintf(c.app.out, "%s %s\n\n", res.Request.ID, res.Request.Status)
	return printRequests(c.app.out, res.Items)
}

// =============================================================================
// SYNC
// =============================================================================

func (c *cli) refreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Replace the local copy with the server's data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.app.fallback.Refresh(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(c.app.out, "local copy refreshed")
			return nil
		},
	}
}

// =============================================================================
// HELPERS
// =============================================================================

func (c *cli) subject(cmd *cobra.Command, args []string) (generic.EntityID, error) {
	if len(args) == 1 {
		return generic.EntityID(args[0]), nil
	}
	return c.app.self(cmd.Context())
}

func parseDateFlag(name, value string) (generic.TimePoint, error) {
	if strings.TrimSpace(value) == "" {
		if name == "to" {
			return generic.TimePoint{}, nil
		}
		return generic.TimePoint{}, generic.NewValidationError(name, "is required")
	}
	tp, err := generic.ParseDate(value)
	if err != nil {
		return generic.TimePoint{}, generic.NewValidationError(name, "must be a date (YYYY-MM-DD)")
	}
	return tp, nil
}

func printRequests(w io.Writer, reqs []leave.LeaveRequest) error {
	if len(reqs) == 0 {
		_, err := fmt.Fprintln(w, "no requests")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tEMPLOYEE\tTYPE\tFROM\tTO\tDAYS\tSTATUS\tREASON")
	for _, r := range reqs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			r.ID, r.EmployeeDisplayName, r.LeaveType, r.StartDate, r.EndDate, r.TotalDays, r.Status, r.Reason)
	}
	return tw.Flush()
}

func printBalance(w io.Writer, snap leave.BalanceSnapshot) error {
	fmt.Fprintf(w, "%s, %d\n", snap.EmployeeID, snap.Year)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TYPE\tENTITLED\tCARRIED\tUSED\tREMAINING")
	for _, t := range leave.AllTypes {
		line, ok := snap.Lines[t]
		if !ok {
			continue
		}
		if line.Unlimited {
			fmt.Fprintf(tw, "%s\t-\t-\t%s\tunlimited\n", t, line.Used.Value)
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			t, line.Entitlement.Value, line.CarriedOver.Value, line.Used.Value, line.Remaining.Value)
	}
	return tw.Flush()
}
