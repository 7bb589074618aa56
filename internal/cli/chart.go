package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"operaciones/internal/amqp"
	"operaciones/internal/core"
)

const chartWidth = 40

func (a *app) chartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chart",
		Short: "Print operations per start month as bars",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := a.repository()
			if err != nil {
				return err
			}
			search, _ := cmd.Flags().GetString("search")
			ops, err := repo.List(cmd.Context(), strings.TrimSpace(search))
			if err != nil {
				return fmt.Errorf("list operations: %w", err)
			}
			printChart(a.deps.Out, core.AggregateByMonth(ops))
			return nil
		},
	}
	cmd.Flags().StringP("search", "s", "", "filter by name or identification")
	return cmd
}

// printChart draws one bar per month, scaled against the busiest month.
func printChart(out io.Writer, series core.MonthlySeries) {
	if len(series.Labels) == 0 {
		fmt.Fprintln(out, "No operations to chart")
		return
	}
	bar := color.New(color.FgCyan).Sprint
	maxCount := series.Max()
	for i, label := range series.Labels {
		count := series.Counts[i]
		width := count * chartWidth / maxCount
		if width == 0 && count > 0 {
			width = 1
		}
		fmt.Fprintf(out, "%s │%s %d\n", label, bar(strings.Repeat("█", width)), count)
	}
	fmt.Fprintf(out, "Total: %d\n", series.Total())
}

func (a *app) creditTypesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "credit-types",
		Short: "List the available credit types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := a.repository()
			if err != nil {
				return err
			}
			types, err := repo.ListCreditTypes(cmd.Context())
			if err != nil {
				return fmt.Errorf("list credit types: %w", err)
			}
			tw := tabwriter.NewWriter(a.deps.Out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "CODE\tNAME")
			for _, ct := range types {
				fmt.Fprintf(tw, "%s\t%s\n", ct.Code, ct.Name)
			}
			return tw.Flush()
		},
	}
}

func (a *app) watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Follow operation changes published on the message broker",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(a.deps.Out, "Waiting for operation events, Ctrl+C to stop")
			err := a.deps.Watch(cmd.Context(), func(ev *amqp.OperationEvent) error {
				printEvent(a.deps.Out, ev)
				return nil
			})
			if cmd.Context().Err() != nil {
				return nil
			}
			return err
		},
	}
}

func printEvent(out io.Writer, ev *amqp.OperationEvent) {
	var mark string
	switch ev.Type {
	case amqp.EventCreated:
		mark = color.New(color.FgGreen).Sprint("+")
	case amqp.EventUpdated:
		mark = color.New(color.FgYellow).Sprint("~")
	case amqp.EventDeleted:
		mark = color.New(color.FgRed).Sprint("-")
	default:
		mark = "?"
	}
	ts := ev.Timestamp.Local().Format("15:04:05")
	if ev.Type == amqp.EventDeleted {
		fmt.Fprintf(out, "%s %s #%d deleted\n", ts, mark, ev.OperationID)
		return
	}
	fmt.Fprintf(out, "%s %s #%d %s %s (%s, %s, %d months)\n", ts, mark, ev.OperationID,
		ev.Identification, ev.Name, ev.CreditType, core.FormatAmount(ev.Amount), ev.TermMonths)
}
