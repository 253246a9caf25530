// Package quote owns the quote being drafted and the history of saved quotes.
//
// A Manager holds exactly one draft. Saving freezes it into a SavedQuote at the head of
// the history, persists the whole history through a storage.Store, and starts a fresh
// draft with a new quote number. The Manager is not safe for concurrent use; callers that
// share one across goroutines must serialize access.
package quote

import (
	"maps"
	"time"

	"github.com/Simplici0/quotecalc/internal/money"
	"github.com/Simplici0/quotecalc/internal/pricing"
)

// DateLayout is the calendar date format of SavedQuote.Date.
const DateLayout = "2006-01-02"

// Field names an editable item field.
type Field string

const (
	FieldPrice    Field = "price"
	FieldQuantity Field = "quantity"
)

// Item is a line of the draft. Price is meaningful only when HasPrice is true.
type Item struct {
	Label    string           `json:"label,omitempty"`
	Price    money.Money      `json:"price"`
	HasPrice bool             `json:"hasPrice"`
	Quantity int              `json:"quantity"`
	Errors   map[Field]string `json:"errors,omitempty"`
}

// Draft is the quote being edited.
type Draft struct {
	Number    string              `json:"quoteNumber"`
	StartedAt time.Time           `json:"startedAt"`
	Items     []Item              `json:"items"`
	Hardware  pricing.LaborOption `json:"hardware"`
	Software  pricing.LaborOption `json:"software"`
}

// Input converts the draft for the pricing engine. Items without a price count as $0.
func (d Draft) Input() pricing.Input {
	items := make([]pricing.LineItem, 0, len(d.Items))
	for _, it := range d.Items {
		price := money.Zero
		if it.HasPrice {
			price = it.Price
		}
		items = append(items, pricing.LineItem{Label: it.Label, Price: price, Quantity: it.Quantity})
	}
	return pricing.Input{Items: items, Hardware: d.Hardware, Software: d.Software}
}

func (d Draft) clone() Draft {
	out := d
	out.Items = make([]Item, len(d.Items))
	for i, it := range d.Items {
		it.Errors = maps.Clone(it.Errors)
		out.Items[i] = it
	}
	return out
}

// SavedItem is a frozen line. Number holds the price as text, as stored by earlier
// versions of the history format.
type SavedItem struct {
	Number   string `json:"number"`
	Quantity int    `json:"quantity"`
	Label    string `json:"label,omitempty"`
}

// SavedQuote is an immutable history record.
type SavedQuote struct {
	ID              string      `json:"id"`
	Date            string      `json:"date"`
	TotalAmount     money.Money `json:"totalAmount"`
	Items           []SavedItem `json:"items"`
	IncludeHardware bool        `json:"includeHardware"`
	HardwareHours   int         `json:"hardwareHours"`
	IncludeSoftware bool        `json:"includeSoftware"`
	SoftwareHours   int         `json:"softwareHours"`
}

// Input rebuilds the pricing input of the saved snapshot. Unparseable numbers price as $0.
func (q SavedQuote) Input() pricing.Input {
	items := make([]pricing.LineItem, 0, len(q.Items))
	for _, it := range q.Items {
		price, err := money.Parse(it.Number)
		if err != nil {
			price = money.Zero
		}
		items = append(items, pricing.LineItem{Label: it.Label, Price: price, Quantity: it.Quantity})
	}
	return pricing.Input{
		Items:    items,
		Hardware: pricing.LaborOption{Included: q.IncludeHardware, Hours: q.HardwareHours},
		Software: pricing.LaborOption{Included: q.IncludeSoftware, Hours: q.SoftwareHours},
	}
}

// SavedAt parses Date. Besides DateLayout it accepts RFC 3339 timestamps and US
// month/day/year dates found in older histories; anything else is the zero time.
func (q SavedQuote) SavedAt() time.Time {
	for _, layout := range []string{DateLayout, time.RFC3339, "1/2/2006"} {
		if t, err := time.Parse(layout, q.Date); err == nil {
			return t
		}
	}
	return time.Time{}
}

func (q SavedQuote) clone() SavedQuote {
	q.Items = append([]SavedItem(nil), q.Items...)
	return q
}
