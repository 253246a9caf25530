// Package pdf renders a quote report as a one-page PDF document.
package pdf

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/jung-kurt/gofpdf"

	"github.com/Simplici0/quotecalc/internal/report"
)

// Generator renders reports under a company letterhead.
type Generator struct {
	company report.Company
}

func New(company report.Company) *Generator {
	if company.Name == "" {
		company = report.DefaultCompany
	}
	return &Generator{company: company}
}

func (g *Generator) Generate(r report.Report) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "Letter", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle("Quote "+r.Number, true)
	pdf.SetAuthor(g.company.Name, true)
	if !r.Date.IsZero() {
		pdf.SetCreationDate(r.Date)
	}
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 8, tr(g.company.Name))
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 10)
	for _, line := range []string{g.company.Address, prefixed("Phone: ", g.company.Phone), prefixed("Email: ", g.company.Email)} {
		if line == "" {
			continue
		}
		pdf.Cell(0, 5, tr(line))
		pdf.Ln(5)
	}

	pdf.Ln(6)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 7, tr("Quote #"+r.Number))
	pdf.Ln(7)
	if d := r.DateLabel(); d != "" {
		pdf.SetFont("Helvetica", "", 10)
		pdf.Cell(0, 5, "Date: "+d)
		pdf.Ln(5)
	}

	pdf.Ln(4)
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(230, 230, 230)
	pdf.CellFormat(100, 7, "Item", "B", 0, "L", true, 0, "")
	pdf.CellFormat(20, 7, "Qty", "B", 0, "R", true, 0, "")
	pdf.CellFormat(35, 7, "Unit Price", "B", 0, "R", true, 0, "")
	pdf.CellFormat(35, 7, "Total", "B", 1, "R", true, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	for _, row := range r.Rows {
		pdf.CellFormat(100, 6, tr(trim(row.Label, 55)), "", 0, "L", false, 0, "")
		pdf.CellFormat(20, 6, strconv.Itoa(row.Quantity), "", 0, "R", false, 0, "")
		pdf.CellFormat(35, 6, report.FormatMoney(row.MarkedUp), "", 0, "R", false, 0, "")
		pdf.CellFormat(35, 6, report.FormatMoney(row.Total), "", 1, "R", false, 0, "")
	}

	if len(r.Labor) > 0 {
		pdf.Ln(2)
		for _, l := range r.Labor {
			unit := "hr"
			if l.Hours > 1 {
				unit = "hrs"
			}
			pdf.CellFormat(100, 6, fmt.Sprintf("%s (%d %s)", l.Title, l.Hours, unit), "", 0, "L", false, 0, "")
			pdf.CellFormat(20, 6, strconv.Itoa(l.Hours), "", 0, "R", false, 0, "")
			pdf.CellFormat(35, 6, report.FormatMoney(l.Rate)+"/hr", "", 0, "R", false, 0, "")
			pdf.CellFormat(35, 6, report.FormatMoney(l.Cost), "", 1, "R", false, 0, "")
		}
	}

	pdf.Ln(4)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(155, 8, "Total", "T", 0, "R", false, 0, "")
	pdf.CellFormat(35, 8, report.FormatMoney(r.Total), "T", 1, "R", false, 0, "")

	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("render quote %s: %w", r.Number, err)
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("write quote %s pdf: %w", r.Number, err)
	}
	return buf.Bytes(), nil
}

func prefixed(prefix, s string) string {
	if s == "" {
		return ""
	}
	return prefix + s
}

func trim(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
