package quote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Simplici0/quotecalc/internal/catalog"
	"github.com/Simplici0/quotecalc/internal/money"
	"github.com/Simplici0/quotecalc/internal/pricing"
	"github.com/Simplici0/quotecalc/internal/storage"
)

// HistoryKey is the storage key the history is persisted under unless WithHistoryKey overrides it.
const HistoryKey = "quoteHistory"

const numberAttempts = 5

// Clipboard receives copied totals.
type Clipboard interface {
	WriteText(text string) error
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithNumberGenerator replaces NewNumber.
func WithNumberGenerator(fn func(time.Time) string) Option {
	return func(m *Manager) { m.number = fn }
}

// WithHistoryKey stores the history under key instead of HistoryKey.
func WithHistoryKey(key string) Option {
	return func(m *Manager) { m.key = key }
}

// WithClipboard enables CopyTotal.
func WithClipboard(c Clipboard) Option {
	return func(m *Manager) { m.clip = c }
}

func WithLogger(logger *zap.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// NewNumber returns a quote number derived from now plus a short random suffix.
func NewNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return fmt.Sprintf("Q-%s-%s", now.Format("20060102-150405"), suffix)
}

// Manager holds the current draft and the saved history.
type Manager struct {
	store  storage.Store
	key    string
	now    func() time.Time
	number func(time.Time) string
	clip   Clipboard
	logger *zap.Logger

	draft   Draft
	history []SavedQuote
}

// NewManager loads the history from store and opens a fresh draft. A history that cannot
// be read is logged and treated as empty.
func NewManager(ctx context.Context, store storage.Store, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		key:     HistoryKey,
		now:     time.Now,
		number:  NewNumber,
		logger:  zap.NewNop(),
		history: []SavedQuote{},
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.store == nil {
		m.store = storage.Unavailable{}
	}

	if err := m.Reload(ctx); err != nil {
		m.logger.Warn("quote history unavailable, starting empty", zap.String("key", m.key), zap.Error(err))
	}
	m.draft = m.newDraft()
	return m
}

// Reload replaces the in-memory history with the stored one. On failure the current
// history is kept and the error wraps ErrPersistence.
func (m *Manager) Reload(ctx context.Context) error {
	raw, ok, err := m.store.Get(ctx, m.key)
	if err != nil {
		return fmt.Errorf("%w: read %s: %w", ErrPersistence, m.key, err)
	}
	if !ok || strings.TrimSpace(raw) == "" {
		m.history = []SavedQuote{}
		return nil
	}

	var history []SavedQuote
	if err := json.Unmarshal([]byte(raw), &history); err != nil {
		return fmt.Errorf("%w: decode %s: %w", ErrPersistence, m.key, err)
	}
	if history == nil {
		history = []SavedQuote{}
	}
	m.history = history
	return nil
}

// Draft returns a copy of the draft.
func (m *Manager) Draft() Draft { return m.draft.clone() }

// AddItem appends an empty line with quantity 1 and returns its index.
func (m *Manager) AddItem() int {
	m.draft.Items = append(m.draft.Items, Item{Quantity: 1})
	return len(m.draft.Items) - 1
}

// AddService appends a catalog service as a priced line and returns its index.
func (m *Manager) AddService(e catalog.Entry) int {
	m.draft.Items = append(m.draft.Items, Item{
		Label:    e.Service,
		Price:    e.Price(),
		HasPrice: true,
		Quantity: 1,
	})
	return len(m.draft.Items) - 1
}

// RemoveItem deletes the line at index. Later lines shift down by one.
func (m *Manager) RemoveItem(index int) error {
	if err := m.checkIndex(index); err != nil {
		return err
	}
	m.draft.Items = slices.Delete(m.draft.Items, index, index+1)
	return nil
}

// SetItem edits one field of a line from user text. A rejected value leaves the stored
// value unchanged, records the message on the item and returns a *FieldError.
func (m *Manager) SetItem(index int, field Field, raw string) error {
	if err := m.checkIndex(index); err != nil {
		return err
	}
	item := &m.draft.Items[index]

	switch field {
	case FieldPrice:
		price, err := money.Parse(raw)
		if err != nil {
			msg := "price must be a non-negative number"
			switch {
			case errors.Is(err, money.ErrEmpty):
				msg = "price is required"
			case errors.Is(err, money.ErrPrecision):
				msg = "price must have at most 2 decimal places"
			case errors.Is(err, money.ErrTooLarge):
				msg = "price is too large"
			}
			return m.reject(index, field, raw, msg, err)
		}
		item.Price = price
		item.HasPrice = true
	case FieldQuantity:
		qty, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return m.reject(index, field, raw, "quantity must be a whole number", err)
		}
		if qty < 1 {
			return m.reject(index, field, raw, "quantity must be at least 1", nil)
		}
		item.Quantity = qty
	default:
		return fmt.Errorf("%w: %q", ErrUnknownField, field)
	}

	delete(item.Errors, field)
	if len(item.Errors) == 0 {
		item.Errors = nil
	}
	return nil
}

// SetLabel renames a line.
func (m *Manager) SetLabel(index int, label string) error {
	if err := m.checkIndex(index); err != nil {
		return err
	}
	m.draft.Items[index].Label = strings.TrimSpace(label)
	return nil
}

func (m *Manager) reject(index int, field Field, raw, msg string, cause error) error {
	item := &m.draft.Items[index]
	if item.Errors == nil {
		item.Errors = map[Field]string{}
	}
	item.Errors[field] = msg
	return &FieldError{Index: index, Field: field, Value: raw, Message: msg, Cause: cause}
}

func (m *Manager) checkIndex(index int) error {
	if index < 0 || index >= len(m.draft.Items) {
		return fmt.Errorf("%w: %d (items: %d)", ErrOutOfRange, index, len(m.draft.Items))
	}
	return nil
}

// ToggleLabor flips the inclusion of a labor category and returns the new state.
func (m *Manager) ToggleLabor(c pricing.Category) (bool, error) {
	opt, err := m.labor(c)
	if err != nil {
		return false, err
	}
	opt.Included = !opt.Included
	return opt.Included, nil
}

// SetLaborHours sets the hours of an included labor category. Values below 1 become 1.
func (m *Manager) SetLaborHours(c pricing.Category, hours int) error {
	opt, err := m.labor(c)
	if err != nil {
		return err
	}
	if !opt.Included {
		return fmt.Errorf("%w: %s", ErrLaborNotIncluded, c)
	}
	opt.Hours = max(hours, 1)
	return nil
}

func (m *Manager) ToggleHardware() bool {
	on, _ := m.ToggleLabor(pricing.Hardware)
	return on
}

func (m *Manager) ToggleSoftware() bool {
	on, _ := m.ToggleLabor(pricing.Software)
	return on
}

func (m *Manager) SetHardwareHours(hours int) error {
	return m.SetLaborHours(pricing.Hardware, hours)
}

func (m *Manager) SetSoftwareHours(hours int) error {
	return m.SetLaborHours(pricing.Software, hours)
}

func (m *Manager) labor(c pricing.Category) (*pricing.LaborOption, error) {
	switch c {
	case pricing.Hardware:
		return &m.draft.Hardware, nil
	case pricing.Software:
		return &m.draft.Software, nil
	default:
		return nil, fmt.Errorf("unknown labor category %q", c)
	}
}

// Calculate prices the draft. Lines without a price count as $0.
func (m *Manager) Calculate() pricing.Result {
	return pricing.Calculate(m.draft.Input())
}

// Validate lists the problems that would block Save.
func (m *Manager) Validate() []Problem {
	var problems []Problem
	for i, it := range m.draft.Items {
		for _, f := range []Field{FieldPrice, FieldQuantity} {
			if msg, ok := it.Errors[f]; ok {
				problems = append(problems, Problem{Index: i, Field: f, Message: msg})
				continue
			}
			if f == FieldPrice && !it.HasPrice {
				problems = append(problems, Problem{Index: i, Field: f, Message: "price is required"})
			}
		}
	}
	return problems
}

// Save freezes the draft into the head of the history, persists the history and starts a
// new draft. A draft with invalid lines is rejected with a *ValidationError and left as is.
// Persistence failures are logged, the in-memory history is still updated.
func (m *Manager) Save(ctx context.Context) (SavedQuote, error) {
	if problems := m.Validate(); len(problems) > 0 {
		return SavedQuote{}, &ValidationError{Problems: problems}
	}

	result := m.Calculate()
	items := make([]SavedItem, 0, len(m.draft.Items))
	for _, it := range m.draft.Items {
		items = append(items, SavedItem{Number: it.Price.String(), Quantity: it.Quantity, Label: it.Label})
	}
	saved := SavedQuote{
		ID:              m.draft.Number,
		Date:            m.now().Format(DateLayout),
		TotalAmount:     result.GrandTotal(),
		Items:           items,
		IncludeHardware: m.draft.Hardware.Included,
		HardwareHours:   m.draft.Hardware.Hours,
		IncludeSoftware: m.draft.Software.Included,
		SoftwareHours:   m.draft.Software.Hours,
	}

	m.history = slices.Insert(m.history, 0, saved)
	m.persist(ctx)
	m.logger.Info("quote saved",
		zap.String("id", saved.ID),
		zap.String("total", saved.TotalAmount.String()),
		zap.Int("items", len(saved.Items)),
	)

	m.draft = m.newDraft()
	return saved.clone(), nil
}

// DeleteQuote removes the quote with id and reports whether one was removed.
func (m *Manager) DeleteQuote(ctx context.Context, id string) bool {
	i := slices.IndexFunc(m.history, func(q SavedQuote) bool { return q.ID == id })
	if i < 0 {
		return false
	}
	m.history = slices.Delete(m.history, i, i+1)
	m.persist(ctx)
	m.logger.Info("quote deleted", zap.String("id", id))
	return true
}

// Quote looks up a saved quote by id.
func (m *Manager) Quote(id string) (SavedQuote, bool) {
	for _, q := range m.history {
		if q.ID == id {
			return q.clone(), true
		}
	}
	return SavedQuote{}, false
}

// History returns the saved quotes newest first.
func (m *Manager) History() []SavedQuote {
	out := make([]SavedQuote, 0, len(m.history))
	for _, q := range m.history {
		out = append(out, q.clone())
	}
	return out
}

// CopyTotal writes the draft's grand total to the clipboard and returns the copied text.
func (m *Manager) CopyTotal() (string, error) {
	text := m.Calculate().GrandTotal().String()
	if m.clip == nil {
		return text, ErrNoClipboard
	}
	if err := m.clip.WriteText(text); err != nil {
		return text, fmt.Errorf("copy total: %w", err)
	}
	return text, nil
}

// persist writes the history. The in-memory history has already changed, so the write
// outlives a cancelled caller.
func (m *Manager) persist(ctx context.Context) {
	data, err := json.Marshal(m.history)
	if err != nil {
		m.logger.Error("encode quote history", zap.Error(err))
		return
	}
	if err := m.store.Set(context.WithoutCancel(ctx), m.key, string(data)); err != nil {
		m.logger.Warn("persist quote history", zap.String("key", m.key), zap.Error(err))
	}
}

func (m *Manager) newDraft() Draft {
	now := m.now()
	return Draft{
		Number:    m.nextNumber(now),
		StartedAt: now,
		Items:     []Item{},
		Hardware:  pricing.LaborOption{Hours: 1},
		Software:  pricing.LaborOption{Hours: 1},
	}
}

// nextNumber regenerates on collision with the open draft or any saved quote, giving up
// after a few attempts.
func (m *Manager) nextNumber(now time.Time) string {
	var n string
	for range numberAttempts {
		n = m.number(now)
		if n != m.draft.Number && !m.hasQuote(n) {
			return n
		}
	}
	m.logger.Warn("quote number collision", zap.String("number", n))
	return n
}

func (m *Manager) hasQuote(id string) bool {
	return slices.ContainsFunc(m.history, func(q SavedQuote) bool { return q.ID == id })
}
