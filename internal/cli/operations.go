package cli

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"operaciones/internal/api"
	"operaciones/internal/controller"
	"operaciones/internal/core"
	"operaciones/internal/log"
)

var errInvalidForm = errors.New("the operation has invalid fields")

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid operation id %q", arg)
	}
	return id, nil
}

func (a *app) listCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List operations, optionally filtered by name or identification",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := a.repository()
			if err != nil {
				return err
			}
			search, _ := cmd.Flags().GetString("search")

			list := controller.NewListController(repo, controller.AlwaysConfirm, a.notifier(),
				controller.WithDebounce(0),
				controller.WithListLogger(a.deps.Logger))
			var items []core.Operation
			if strings.TrimSpace(search) == "" {
				items, err = list.Start(cmd.Context())
			} else {
				items, err = list.Search(cmd.Context(), search)
			}
			if err != nil {
				return fmt.Errorf("list operations: %w", err)
			}

			if len(items) == 0 {
				fmt.Fprintln(a.deps.Out, "No operations found")
				return nil
			}
			printTable(a.deps.Out, items)
			fmt.Fprintf(a.deps.Out, "\n%d operation(s)\n", len(items))
			return nil
		},
	}
	cmd.Flags().StringP("search", "s", "", "filter by name or identification")
	return cmd
}

func printTable(out io.Writer, items []core.Operation) {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tIDENTIFICATION\tNAME\tTYPE\tAMOUNT\tSTART\tTERM\tEND\tAPPROVED")
	for _, op := range items {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			op.ID, op.Identification, op.Name, op.CreditType, core.FormatAmount(op.Amount),
			op.StartDate.Display(), op.TermMonths, endDate(op).Display(), yesNo(op.Approved))
	}
	_ = tw.Flush()
}

func endDate(op core.Operation) core.Date {
	if op.EndDate.IsZero() && !op.StartDate.IsZero() {
		return core.Date{Time: core.ComputeEndDate(op.StartDate.Time, op.TermMonths)}
	}
	return op.EndDate
}

func yesNo(b bool) string {
	if b {
		return color.New(color.FgGreen).Sprint("yes")
	}
	return "no"
}

func (a *app) showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one operation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			repo, err := a.repository()
			if err != nil {
				return err
			}
			op, err := repo.Get(cmd.Context(), id)
			if errors.Is(err, api.ErrNotFound) {
				return fmt.Errorf("operation %d not found", id)
			}
			if err != nil {
				return fmt.Errorf("get operation %d: %w", id, err)
			}
			printOperation(a.deps.Out, op)
			return nil
		},
	}
}

func printOperation(out io.Writer, op core.Operation) {
	label := color.New(color.Bold).Sprint
	fmt.Fprintf(out, "%s %d\n", label("Operation:"), op.ID)
	fmt.Fprintf(out, "  Identification: %s\n", op.Identification)
	fmt.Fprintf(out, "  Name:           %s\n", op.Name)
	fmt.Fprintf(out, "  Credit type:    %s\n", op.CreditType)
	fmt.Fprintf(out, "  Amount:         %s\n", core.FormatAmount(op.Amount))
	fmt.Fprintf(out, "  Start:          %s\n", op.StartDate.Display())
	fmt.Fprintf(out, "  Term:           %d months\n", op.TermMonths)
	fmt.Fprintf(out, "  End:            %s\n", endDate(op).Display())
	fmt.Fprintf(out, "  Approved:       %s\n", yesNo(op.Approved))
	if !op.RegisteredAt.IsZero() {
		fmt.Fprintf(out, "  Registered:     %s\n", op.RegisteredAt.Format("2006-01-02 15:04"))
	}
}

func addDraftFlags(cmd *cobra.Command) {
	cmd.Flags().String("identificacion", "", "identification number")
	cmd.Flags().String("nombre", "", "holder name")
	cmd.Flags().String("tipo", "", "credit type code or name")
	cmd.Flags().String("monto", "", "amount")
	cmd.Flags().String("inicio", "", "start date (YYYY-MM-DD)")
	cmd.Flags().String("plazo", "", "term in months")
	cmd.Flags().Bool("aprobado", false, "mark as approved")
}

func (a *app) createCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an operation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := a.repository()
			if err != nil {
				return err
			}
			form := a.newForm(repo)
			if err := form.New(cmd.Context()); err != nil {
				return fmt.Errorf("open form: %w", err)
			}
			return a.submit(cmd, repo, form)
		},
	}
	addDraftFlags(cmd)
	return cmd
}

func (a *app) editCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Edit an operation; only the given flags change",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			repo, err := a.repository()
			if err != nil {
				return err
			}
			form := a.newForm(repo)
			if err := form.Load(cmd.Context(), id); err != nil {
				return fmt.Errorf("open operation %d: %w", id, err)
			}
			return a.submit(cmd, repo, form)
		},
	}
	addDraftFlags(cmd)
	return cmd
}

func (a *app) newForm(repo api.Repository) *controller.FormController {
	return controller.NewFormController(repo, newPromptConfirmer(a.deps.In, a.deps.Out), a.notifier(),
		controller.WithFormLogger(a.deps.Logger))
}

// submit overlays the changed flags on the form draft and saves it.
func (a *app) submit(cmd *cobra.Command, repo api.Repository, form *controller.FormController) error {
	ctx := cmd.Context()
	d := form.Draft()
	flags := cmd.Flags()
	for name, dst := range map[string]*string{
		"identificacion": &d.Identification,
		"nombre":         &d.Name,
		"monto":          &d.Amount,
		"inicio":         &d.StartDate,
		"plazo":          &d.TermMonths,
	} {
		if flags.Changed(name) {
			*dst, _ = flags.GetString(name)
		}
	}
	if flags.Changed("aprobado") {
		d.Approved, _ = flags.GetBool("aprobado")
	}
	if flags.Changed("tipo") {
		value, _ := flags.GetString("tipo")
		code, err := creditTypeCode(form.CreditTypes(), value)
		if err != nil {
			return err
		}
		d.CreditType = code
	}
	form.SetDraft(d)

	existing, err := repo.List(ctx, "")
	if err != nil {
		return fmt.Errorf("load existing operations: %w", err)
	}
	saved, err := form.Submit(ctx, existing)
	var verr *core.ValidationError
	if errors.As(err, &verr) {
		printFieldErrors(a.deps.Out, verr.Fields)
		return errInvalidForm
	}
	if err != nil {
		return err
	}
	a.deps.Logger.Debug("Operation saved from terminal", log.FieldOperationID, saved.ID)
	printOperation(a.deps.Out, saved)
	return nil
}

func creditTypeCode(types []core.CreditType, value string) (string, error) {
	if ct, ok := core.FindCreditTypeByCode(types, value); ok {
		return ct.Code, nil
	}
	if ct, ok := core.FindCreditTypeByName(types, value); ok {
		return ct.Code, nil
	}
	codes := make([]string, 0, len(types))
	for _, ct := range types {
		codes = append(codes, ct.Code)
	}
	return "", fmt.Errorf("unknown credit type %q (available: %s)", value, strings.Join(codes, ", "))
}

func printFieldErrors(out io.Writer, fields map[string]string) {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	red := color.New(color.FgRed).Sprint
	for _, name := range names {
		fmt.Fprintf(out, "  %s %s: %s\n", red("✗"), name, fields[name])
	}
}

func (a *app) deleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an operation after confirmation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			repo, err := a.repository()
			if err != nil {
				return err
			}
			var confirm controller.Confirmer = newPromptConfirmer(a.deps.In, a.deps.Out)
			if yes, _ := cmd.Flags().GetBool("yes"); yes {
				confirm = controller.AlwaysConfirm
			}
			list := controller.NewListController(repo, confirm, a.notifier(),
				controller.WithDebounce(0),
				controller.WithListLogger(a.deps.Logger))

			switch list.Delete(cmd.Context(), id) {
			case controller.DeleteDeclined:
				fmt.Fprintln(a.deps.Out, "Nothing deleted")
			case controller.DeleteFailed:
				return fmt.Errorf("delete operation %d failed", id)
			}
			return nil
		},
	}
	cmd.Flags().BoolP("yes", "y", false, "skip the confirmation prompt")
	return cmd
}
