// Package catalog loads the read-only list of IT services that can be added to a quote
// and searches it.
package catalog

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sahilm/fuzzy"
	"gopkg.in/yaml.v3"

	"github.com/Simplici0/quotecalc/internal/money"
)

// AllCategories disables the category filter.
const AllCategories = "All"

//go:embed services.json
var defaultServices []byte

// Entry is one service offered in the catalog.
type Entry struct {
	Service     string  `json:"service" yaml:"service"`
	Description string  `json:"description" yaml:"description"`
	Cost        float64 `json:"cost" yaml:"cost"`
	Time        string  `json:"time" yaml:"time"`
	Category    string  `json:"category" yaml:"category"`
}

// Price is the cost as a quote line price.
func (e Entry) Price() money.Money { return money.FromFloat(e.Cost) }

// Catalog is an ordered, immutable set of entries.
type Catalog struct {
	entries []Entry
}

func New(entries []Entry) *Catalog {
	return &Catalog{entries: append([]Entry(nil), entries...)}
}

// Default returns the catalog bundled with the binary.
func Default() *Catalog {
	c, err := Parse(defaultServices, FormatJSON)
	if err != nil {
		panic(fmt.Sprintf("catalog: bundled services.json: %v", err))
	}
	return c
}

// Format is the encoding of a catalog file.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// Load reads a catalog file; .yaml and .yml are decoded as YAML, anything else as JSON.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	format := FormatJSON
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		format = FormatYAML
	}
	return Parse(data, format)
}

func Parse(data []byte, format Format) (*Catalog, error) {
	var entries []Entry
	var err error
	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(data, &entries)
	default:
		err = json.Unmarshal(data, &entries)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s catalog: %w", format, err)
	}
	for i, e := range entries {
		if strings.TrimSpace(e.Service) == "" {
			return nil, fmt.Errorf("catalog entry %d: service is required", i)
		}
		if e.Cost < 0 {
			return nil, fmt.Errorf("catalog entry %q: cost must be greater than or equal to 0", e.Service)
		}
	}
	return New(entries), nil
}

// LoadDB reads the catalog_services table in seed order.
func LoadDB(ctx context.Context, db *sql.DB) (*Catalog, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT service, description, cost, time, category
		FROM catalog_services
		ORDER BY position, id
	`)
	if err != nil {
		return nil, fmt.Errorf("query catalog services: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Service, &e.Description, &e.Cost, &e.Time, &e.Category); err != nil {
			return nil, fmt.Errorf("scan catalog service: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate catalog services: %w", err)
	}
	return New(entries), nil
}

func (c *Catalog) Entries() []Entry { return append([]Entry(nil), c.entries...) }

func (c *Catalog) Len() int { return len(c.entries) }

// Categories lists AllCategories followed by each distinct category in first-seen order.
func (c *Catalog) Categories() []string {
	out := []string{AllCategories}
	seen := make(map[string]bool)
	for _, e := range c.entries {
		if e.Category == "" || seen[e.Category] {
			continue
		}
		seen[e.Category] = true
		out = append(out, e.Category)
	}
	return out
}

// Find looks up an entry by exact service name, ignoring case.
func (c *Catalog) Find(service string) (Entry, bool) {
	for _, e := range c.entries {
		if strings.EqualFold(e.Service, strings.TrimSpace(service)) {
			return e, true
		}
	}
	return Entry{}, false
}

// Search fuzzy-matches term against service and category names, best match first,
// then keeps entries in category. An empty term keeps catalog order.
func (c *Catalog) Search(term, category string) []Entry {
	term = strings.ToLower(strings.TrimSpace(term))

	results := make([]Entry, 0)
	if term == "" {
		results = c.Entries()
	} else {
		for _, m := range fuzzy.FindFrom(term, searchSource(c.entries)) {
			results = append(results, c.entries[m.Index])
		}
	}

	category = strings.TrimSpace(category)
	if category == "" || strings.EqualFold(category, AllCategories) {
		return results
	}
	filtered := make([]Entry, 0, len(results))
	for _, e := range results {
		if strings.EqualFold(e.Category, category) {
			filtered = append(filtered, e)
		}
	}
	return filtered
}

type searchSource []Entry

func (s searchSource) String(i int) string {
	return strings.ToLower(s[i].Service + " " + s[i].Category)
}

func (s searchSource) Len() int { return len(s) }
