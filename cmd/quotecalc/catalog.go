package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Simplici0/quotecalc/internal/catalog"
	"github.com/Simplici0/quotecalc/internal/report"
)

func newCatalogCmd() *cobra.Command {
	var path, category string

	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Browse the service catalog",
	}
	cmd.PersistentFlags().StringVar(&path, "catalog", "", "service catalog file (JSON or YAML)")

	search := &cobra.Command{
		Use:   "search [TERM]",
		Short: "Fuzzy search services by name or category",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := loadCatalog(path)
			if err != nil {
				return err
			}
			results := cat.Search(strings.Join(args, " "), category)
			if len(results) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No services found")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "SERVICE\tCATEGORY\tCOST\tTIME")
			for _, e := range results {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.Service, e.Category, report.FormatMoney(e.Price()), e.Time)
			}
			return tw.Flush()
		},
	}
	search.Flags().StringVar(&category, "category", catalog.AllCategories, "only services in this category")

	categories := &cobra.Command{
		Use:   "categories",
		Short: "List service categories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := loadCatalog(path)
			if err != nil {
				return err
			}
			for _, c := range cat.Categories() {
				fmt.Fprintln(cmd.OutOrStdout(), c)
			}
			return nil
		},
	}

	cmd.AddCommand(search, categories)
	return cmd
}
