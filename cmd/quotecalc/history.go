package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Simplici0/quotecalc/internal/quote"
	"github.com/Simplici0/quotecalc/internal/report"
)

func newHistoryCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List, show and delete saved quotes",
	}

	var search, sortField, order string
	list := &cobra.Command{
		Use:   "list",
		Short: "List saved quotes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			field, err := quote.ParseSortField(sortField)
			if err != nil {
				return err
			}
			o, err := quote.ParseSortOrder(order)
			if err != nil {
				return err
			}

			m := a.manager(cmd.Context())
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tDATE\tTOTAL\tITEMS")
			for q := range m.ListQuotes(quote.ListOptions{Search: search, SortField: field, SortOrder: o}) {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", q.ID, q.Date, report.FormatMoney(q.TotalAmount), len(q.Items))
			}
			return tw.Flush()
		},
	}
	list.Flags().StringVarP(&search, "search", "s", "", "filter by id, date or total")
	list.Flags().StringVar(&sortField, "sort", "date", "sort by date, totalAmount or id")
	list.Flags().StringVar(&order, "order", "desc", "asc or desc")

	show := &cobra.Command{
		Use:   "show ID",
		Short: "Print a saved quote",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, ok := a.manager(cmd.Context()).Quote(args[0])
			if !ok {
				return fmt.Errorf("quote %s not found", args[0])
			}
			return report.WriteText(cmd.OutOrStdout(), report.FromSaved(q), report.DefaultCompany)
		},
	}

	del := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a saved quote",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.manager(cmd.Context()).DeleteQuote(cmd.Context(), args[0]) {
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted quote %s\n", args[0])
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "No quote %s\n", args[0])
			}
			return nil
		},
	}

	cmd.AddCommand(list, show, del)
	return cmd
}
