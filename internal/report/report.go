// Package report lays a priced quote out for the customer. Renderers for plain text and
// PDF consume the same Report.
package report

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/Simplici0/quotecalc/internal/money"
	"github.com/Simplici0/quotecalc/internal/pricing"
	"github.com/Simplici0/quotecalc/internal/quote"
)

// Company is the letterhead printed above every quote.
type Company struct {
	Name    string
	Address string
	Phone   string
	Email   string
}

// DefaultCompany is used when no header is configured.
var DefaultCompany = Company{
	Name:    "Error Computer Repair",
	Address: "651 N Egret Bay Blvd, League City, TX 77573",
	Phone:   "832.377.6727",
	Email:   "error@error-cr.com",
}

// Row is a priced item with its rounded display total.
type Row struct {
	Label    string
	Price    money.Money
	MarkedUp money.Money
	Quantity int
	Total    money.Money
}

type LaborRow struct {
	Title string
	Hours int
	Rate  money.Money
	Cost  money.Money
}

// Report is everything a renderer prints.
type Report struct {
	Number string
	Date   time.Time
	Rows   []Row
	Labor  []LaborRow
	Total  money.Money
}

// Build lays out a pricing result. Only included labor categories produce rows.
// The total is the result's grand total, never a sum of rounded rows.
func Build(number string, date time.Time, res pricing.Result) Report {
	r := Report{Number: number, Date: date, Total: res.GrandTotal()}
	for i, l := range res.Breakdown.Lines {
		label := l.Label
		if label == "" {
			label = fmt.Sprintf("Item %d", i+1)
		}
		r.Rows = append(r.Rows, Row{
			Label:    label,
			Price:    l.Price,
			MarkedUp: l.MarkedUp.Round(),
			Quantity: l.Quantity,
			Total:    l.DisplayTotal(),
		})
	}
	for _, l := range []pricing.LaborLine{res.Breakdown.Hardware, res.Breakdown.Software} {
		if !l.Included {
			continue
		}
		title := "Hardware Labor"
		if l.Category == pricing.Software {
			title = "Software Labor"
		}
		r.Labor = append(r.Labor, LaborRow{Title: title, Hours: l.Hours, Rate: l.Rate, Cost: l.Cost.Round()})
	}
	return r
}

// FromSaved rebuilds the report of a saved quote. The printed total is the stored one.
func FromSaved(q quote.SavedQuote) Report {
	r := Build(q.ID, q.SavedAt(), pricing.Calculate(q.Input()))
	r.Total = q.TotalAmount.Round()
	return r
}

// FromDraft prices the draft as of now.
func FromDraft(d quote.Draft, now time.Time) Report {
	return Build(d.Number, now, pricing.Calculate(d.Input()))
}

var printer = message.NewPrinter(language.AmericanEnglish)

// FormatMoney prints an amount as US dollars with thousands separators.
func FormatMoney(m money.Money) string {
	return printer.Sprintf("$%.2f", m.Round().Float64())
}

// DateLabel is the date as printed on a quote.
func (r Report) DateLabel() string {
	if r.Date.IsZero() {
		return ""
	}
	return r.Date.Format("January 2, 2006")
}

// WriteText renders the report as aligned plain text.
func WriteText(w io.Writer, r Report, c Company) error {
	var b strings.Builder
	fmt.Fprintln(&b, c.Name)
	for _, line := range []string{c.Address, phoneLine(c), emailLine(c)} {
		if line != "" {
			fmt.Fprintln(&b, line)
		}
	}
	fmt.Fprintln(&b)
	fmt.Fprintf(&b, "Quote #%s\n", r.Number)
	if d := r.DateLabel(); d != "" {
		fmt.Fprintf(&b, "Date: %s\n", d)
	}
	fmt.Fprintln(&b)

	tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Item\tQty\tUnit\tTotal\t")
	for _, row := range r.Rows {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t\n", row.Label, row.Quantity, FormatMoney(row.MarkedUp), FormatMoney(row.Total))
	}
	for _, l := range r.Labor {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t\n", l.Title, l.Hours, FormatMoney(l.Rate)+"/hr", FormatMoney(l.Cost))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(&b, "\nTotal: %s\n", FormatMoney(r.Total))
	_, err := io.WriteString(w, b.String())
	return err
}

func phoneLine(c Company) string {
	if c.Phone == "" {
		return ""
	}
	return "Phone: " + c.Phone
}

func emailLine(c Company) string {
	if c.Email == "" {
		return ""
	}
	return "Email: " + c.Email
}
