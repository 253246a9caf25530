package quote

import (
	"fmt"
	"iter"
	"slices"
	"strings"
)

type SortField string

const (
	SortByDate  SortField = "date"
	SortByTotal SortField = "totalAmount"
	SortByID    SortField = "id"
)

type SortOrder string

const (
	Asc  SortOrder = "asc"
	Desc SortOrder = "desc"
)

// ListOptions filters and orders ListQuotes. The zero value lists everything by date,
// newest first.
type ListOptions struct {
	Search    string
	SortField SortField
	SortOrder SortOrder
}

// ParseSortField accepts the field names used in saved quotes. Empty means SortByDate.
func ParseSortField(s string) (SortField, error) {
	switch f := SortField(strings.TrimSpace(s)); f {
	case "":
		return SortByDate, nil
	case SortByDate, SortByTotal, SortByID:
		return f, nil
	case "total", "amount":
		return SortByTotal, nil
	default:
		return "", fmt.Errorf("unknown sort field %q", s)
	}
}

// ParseSortOrder accepts asc or desc in any case. Empty means Desc.
func ParseSortOrder(s string) (SortOrder, error) {
	switch o := SortOrder(strings.ToLower(strings.TrimSpace(s))); o {
	case "":
		return Desc, nil
	case Asc, Desc:
		return o, nil
	default:
		return "", fmt.Errorf("unknown sort order %q", s)
	}
}

// ListQuotes yields the saved quotes matching opts.Search, ordered by opts. The sequence
// reads the history each time it is ranged over. Ties keep history order in both
// directions.
func (m *Manager) ListQuotes(opts ListOptions) iter.Seq[SavedQuote] {
	field := opts.SortField
	if field == "" {
		field = SortByDate
	}
	sign := -1
	if opts.SortOrder == Asc {
		sign = 1
	}
	term := strings.ToLower(strings.TrimSpace(opts.Search))

	return func(yield func(SavedQuote) bool) {
		matched := make([]SavedQuote, 0, len(m.history))
		for _, q := range m.history {
			if matches(q, term) {
				matched = append(matched, q)
			}
		}
		slices.SortStableFunc(matched, func(a, b SavedQuote) int {
			return sign * compareBy(field, a, b)
		})
		for _, q := range matched {
			if !yield(q.clone()) {
				return
			}
		}
	}
}

func matches(q SavedQuote, term string) bool {
	if term == "" {
		return true
	}
	return strings.Contains(strings.ToLower(q.ID), term) ||
		strings.Contains(strings.ToLower(q.Date), term) ||
		strings.Contains(q.TotalAmount.Number(), term)
}

func compareBy(field SortField, a, b SavedQuote) int {
	switch field {
	case SortByTotal:
		return a.TotalAmount.Cmp(b.TotalAmount)
	case SortByID:
		return strings.Compare(a.ID, b.ID)
	default:
		return a.SavedAt().Compare(b.SavedAt())
	}
}
