package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Simplici0/quotecalc/internal/catalog"
	"github.com/Simplici0/quotecalc/internal/quote"
	"github.com/Simplici0/quotecalc/internal/report"
	"github.com/Simplici0/quotecalc/internal/report/pdf"
)

type itemArg struct {
	label    string
	price    string
	quantity string
}

// parseItem reads "PRICE", "PRICExQTY" or "LABEL=PRICExQTY". "*" also separates the quantity.
func parseItem(arg string) (itemArg, error) {
	item := itemArg{quantity: "1"}
	rest := strings.TrimSpace(arg)
	if label, value, ok := strings.Cut(rest, "="); ok {
		item.label = strings.TrimSpace(label)
		rest = strings.TrimSpace(value)
	}

	if i := strings.IndexAny(strings.ToLower(rest), "x*"); i >= 0 {
		item.quantity = strings.TrimSpace(rest[i+1:])
		rest = rest[:i]
	}
	item.price = strings.TrimSpace(rest)
	if item.price == "" {
		return itemArg{}, fmt.Errorf("item %q: missing price", arg)
	}
	return item, nil
}

type calcOptions struct {
	services    []string
	catalogPath string
	hardware    int
	software    int
	save        bool
	copy        bool
	pdfPath     string
}

func newCalcCmd(a *app) *cobra.Command {
	opts := &calcOptions{}
	cmd := &cobra.Command{
		Use:   "calc [ITEM...]",
		Short: "Price a quote and optionally save it",
		Long: `Prices the given items plus optional labor.

ITEM is PRICE, PRICExQTY or LABEL=PRICExQTY, for example:
  quotecalc calc 19.59x2 "SSD=89.99" --hardware 2 --save`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCalc(cmd, a, opts, args)
		},
	}
	cmd.Flags().StringArrayVar(&opts.services, "service", nil, "add a catalog service by name (repeatable)")
	cmd.Flags().StringVar(&opts.catalogPath, "catalog", "", "service catalog file (JSON or YAML); defaults to the built-in catalog")
	cmd.Flags().IntVar(&opts.hardware, "hardware", 0, "hardware labor hours (0 for none)")
	cmd.Flags().IntVar(&opts.software, "software", 0, "software labor hours (0 for none)")
	cmd.Flags().BoolVar(&opts.save, "save", false, "save the quote to history")
	cmd.Flags().BoolVar(&opts.copy, "copy", false, "copy the total to the clipboard")
	cmd.Flags().StringVar(&opts.pdfPath, "pdf", "", "write the quote as PDF to this file")
	return cmd
}

func runCalc(cmd *cobra.Command, a *app, opts *calcOptions, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	var managerOpts []quote.Option
	if opts.copy {
		managerOpts = append(managerOpts, quote.WithClipboard(systemClipboard{}))
	}
	m := a.manager(ctx, managerOpts...)

	for _, arg := range args {
		item, err := parseItem(arg)
		if err != nil {
			return err
		}
		i := m.AddItem()
		if item.label != "" {
			if err := m.SetLabel(i, item.label); err != nil {
				return err
			}
		}
		if err := m.SetItem(i, quote.FieldPrice, item.price); err != nil {
			return fmt.Errorf("item %q: %w", arg, err)
		}
		if err := m.SetItem(i, quote.FieldQuantity, item.quantity); err != nil {
			return fmt.Errorf("item %q: %w", arg, err)
		}
	}

	if len(opts.services) > 0 {
		cat, err := loadCatalog(opts.catalogPath)
		if err != nil {
			return err
		}
		for _, name := range opts.services {
			entry, ok := cat.Find(name)
			if !ok {
				return fmt.Errorf("service %q not found in catalog", name)
			}
			m.AddService(entry)
		}
	}

	if opts.hardware > 0 {
		m.ToggleHardware()
		if err := m.SetHardwareHours(opts.hardware); err != nil {
			return err
		}
	}
	if opts.software > 0 {
		m.ToggleSoftware()
		if err := m.SetSoftwareHours(opts.software); err != nil {
			return err
		}
	}

	draft := m.Draft()
	printBreakdown(out, m)

	if opts.copy {
		text, err := m.CopyTotal()
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Copied %s to the clipboard\n", text)
	}

	if opts.pdfPath != "" {
		doc, err := pdf.New(report.DefaultCompany).Generate(report.FromDraft(draft, time.Now()))
		if err != nil {
			return err
		}
		if err := os.WriteFile(opts.pdfPath, doc, 0o644); err != nil {
			return fmt.Errorf("write pdf: %w", err)
		}
		fmt.Fprintf(out, "Wrote %s\n", opts.pdfPath)
	}

	if opts.save {
		saved, err := m.Save(ctx)
		var ve *quote.ValidationError
		if errors.As(err, &ve) {
			for _, p := range ve.Problems {
				fmt.Fprintf(cmd.ErrOrStderr(), "item %d %s: %s\n", p.Index+1, p.Field, p.Message)
			}
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Saved quote %s (%s)\n", saved.ID, report.FormatMoney(saved.TotalAmount))
	}
	return nil
}

func printBreakdown(w io.Writer, m *quote.Manager) {
	res := m.Calculate()
	fmt.Fprintf(w, "Quote #%s\n", m.Draft().Number)
	for i, l := range res.Breakdown.Lines {
		label := l.Label
		if label == "" {
			label = fmt.Sprintf("Item %d", i+1)
		}
		fmt.Fprintf(w, "  %s: %s\n", label, l.Detail)
	}
	for _, l := range []string{res.Breakdown.Hardware.Detail, res.Breakdown.Software.Detail} {
		if l != "" {
			fmt.Fprintf(w, "  %s\n", l)
		}
	}
	fmt.Fprintf(w, "Total: %s\n", report.FormatMoney(res.GrandTotal()))
}

func loadCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		return catalog.Default(), nil
	}
	return catalog.Load(path)
}
