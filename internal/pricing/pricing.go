package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Simplici0/quotecalc/internal/money"
)

// Category identifies a labor line.
type Category string

const (
	Hardware Category = "hardware"
	Software Category = "software"
)

var (
	// MarkupThreshold is the highest price that still gets the low-price multiplier.
	MarkupThreshold = money.MustParse("50")

	LowPriceMultiplier  = decimal.NewFromInt(2)
	HighPriceMultiplier = decimal.RequireFromString("1.3")

	HardwareHourlyRate = money.MustParse("129.90")
	SoftwareHourlyRate = money.MustParse("120.00")
)

// LineItem is a priced entry in a quote.
type LineItem struct {
	Label    string
	Price    money.Money
	Quantity int
}

// LaborOption toggles a labor category and its billed hours.
type LaborOption struct {
	Included bool `json:"included"`
	Hours    int  `json:"hours"`
}

// Input represents everything the engine needs to price a quote.
type Input struct {
	Items    []LineItem
	Hardware LaborOption
	Software LaborOption
}

// Line is one priced item of the breakdown. Total is unrounded.
type Line struct {
	Label    string
	Price    money.Money
	MarkedUp money.Money
	Quantity int
	Total    money.Money
	Detail   string
}

// DisplayTotal is the line total as shown to the customer.
func (l Line) DisplayTotal() money.Money { return l.Total.Round() }

// LaborLine is the cost of one labor category.
type LaborLine struct {
	Category Category
	Included bool
	Hours    int
	Rate     money.Money
	Cost     money.Money
	Detail   string
}

// Breakdown contains all per-line values of the pricing calculation.
type Breakdown struct {
	Lines         []Line
	ItemsSubtotal money.Money
	Hardware      LaborLine
	Software      LaborLine
}

// Totals contains roll-up values from the pricing calculation.
type Totals struct {
	Total money.Money
}

// Result groups the full pricing output, including detailed breakdown and totals.
type Result struct {
	Breakdown Breakdown
	Totals    Totals
}

// GrandTotal is the total rounded once for display.
func (r Result) GrandTotal() money.Money { return r.Totals.Total.Round() }

// MarkedUp applies the tiered markup: doubled up to and including the threshold, 1.3x above it.
func MarkedUp(price money.Money) money.Money {
	if price.LessThanOrEqual(MarkupThreshold) {
		return price.Mul(LowPriceMultiplier)
	}
	return price.Mul(HighPriceMultiplier)
}

// ItemTotal is the marked-up price times quantity. Quantities below 1 count as 1.
func ItemTotal(item LineItem) money.Money {
	return MarkedUp(item.Price).Times(atLeastOne(item.Quantity))
}

// LaborCost is hours times the category rate, or zero when the option is off.
func LaborCost(opt LaborOption, rate money.Money) money.Money {
	if !opt.Included {
		return money.Zero
	}
	return rate.Times(atLeastOne(opt.Hours))
}

// RateFor returns the fixed hourly rate of a labor category.
func RateFor(c Category) money.Money {
	if c == Software {
		return SoftwareHourlyRate
	}
	return HardwareHourlyRate
}

// Calculate computes pricing values for every item and labor option.
func Calculate(in Input) Result {
	lines := make([]Line, 0, len(in.Items))
	subtotal := money.Zero
	for _, item := range in.Items {
		qty := atLeastOne(item.Quantity)
		markedUp := MarkedUp(item.Price)
		total := markedUp.Times(qty)
		subtotal = subtotal.Add(total)

		lines = append(lines, Line{
			Label:    item.Label,
			Price:    item.Price,
			MarkedUp: markedUp,
			Quantity: qty,
			Total:    total,
			Detail:   itemDetail(item.Price, markedUp, qty, total),
		})
	}

	hardware := laborLine(Hardware, in.Hardware)
	software := laborLine(Software, in.Software)

	total := subtotal.Add(hardware.Cost).Add(software.Cost)

	return Result{
		Breakdown: Breakdown{
			Lines:         lines,
			ItemsSubtotal: subtotal,
			Hardware:      hardware,
			Software:      software,
		},
		Totals: Totals{Total: total},
	}
}

func laborLine(c Category, opt LaborOption) LaborLine {
	rate := RateFor(c)
	line := LaborLine{
		Category: c,
		Included: opt.Included,
		Hours:    atLeastOne(opt.Hours),
		Rate:     rate,
		Cost:     LaborCost(opt, rate),
	}
	if line.Included {
		name := "Hardware"
		if c == Software {
			name = "Software"
		}
		unit := "hr"
		if line.Hours > 1 {
			unit = "hrs"
		}
		line.Detail = fmt.Sprintf("%s Labor (%d %s @ $%s/hr) = $%s", name, line.Hours, unit, rate, line.Cost.Round())
	}
	return line
}

func itemDetail(price, markedUp money.Money, qty int, total money.Money) string {
	if price.Equal(markedUp) {
		return fmt.Sprintf("%s (quantity: %d) = %s", price, qty, total.Round())
	}
	return fmt.Sprintf("%s marked up to %s (quantity: %d) = %s", price, markedUp.Round(), qty, total.Round())
}

func atLeastOne(n int) int {
	if n < 1 {
		return 1
	}
	return n
}
