package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/Simplici0/quotecalc/internal/catalog"
	"github.com/Simplici0/quotecalc/internal/describe"
	"github.com/Simplici0/quotecalc/internal/money"
	"github.com/Simplici0/quotecalc/internal/pricing"
	"github.com/Simplici0/quotecalc/internal/quote"
	"github.com/Simplici0/quotecalc/internal/report"
)

type draftResponse struct {
	Draft quote.Draft `json:"draft"`
	Total money.Money `json:"total"`
}

type itemRequest struct {
	Label    *string `json:"label"`
	Price    *string `json:"price"`
	Quantity *string `json:"quantity"`
}

type indexResponse struct {
	Index int         `json:"index"`
	Draft quote.Draft `json:"draft"`
}

type lineView struct {
	Label    string      `json:"label,omitempty"`
	Price    money.Money `json:"price"`
	MarkedUp money.Money `json:"markedUp"`
	Quantity int         `json:"quantity"`
	Total    money.Money `json:"total"`
	Detail   string      `json:"detail"`
}

type laborView struct {
	Included bool        `json:"included"`
	Hours    int         `json:"hours"`
	Rate     money.Money `json:"rate"`
	Cost     money.Money `json:"cost"`
	Detail   string      `json:"detail,omitempty"`
}

type breakdownResponse struct {
	QuoteNumber   string      `json:"quoteNumber"`
	Lines         []lineView  `json:"lines"`
	ItemsSubtotal money.Money `json:"itemsSubtotal"`
	Hardware      laborView   `json:"hardware"`
	Software      laborView   `json:"software"`
	Total         money.Money `json:"total"`
}

type problemResponse struct {
	Error    string          `json:"error"`
	Problems []quote.Problem `json:"problems,omitempty"`
}

// addItemProblemResponse is a rejected add: the line exists with its errors recorded.
type addItemProblemResponse struct {
	problemResponse
	Index int         `json:"index"`
	Draft quote.Draft `json:"draft"`
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// withManager runs fn with the session's manager locked.
func (s *server) withManager(r *http.Request, fn func(m *quote.Manager)) {
	ws := s.workspaces.get(r.Context(), sessionID(r))
	ws.mu.Lock()
	defer ws.mu.Unlock()
	fn(ws.mgr)
}

func (s *server) handleDraft(w http.ResponseWriter, r *http.Request) {
	s.withManager(r, func(m *quote.Manager) {
		writeJSON(w, http.StatusOK, draftResponse{Draft: m.Draft(), Total: m.Calculate().GrandTotal()})
	})
}

func (s *server) handleAddItem(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.withManager(r, func(m *quote.Manager) {
		index := m.AddItem()
		if err := applyItem(m, index, req); err != nil {
			var ve *quote.ValidationError
			if !errors.As(err, &ve) {
				s.writeQuoteError(w, err)
				return
			}
			writeJSON(w, http.StatusUnprocessableEntity, addItemProblemResponse{
				problemResponse: problemResponse{Error: "validation failed", Problems: ve.Problems},
				Index:           index,
				Draft:           m.Draft(),
			})
			return
		}
		writeJSON(w, http.StatusCreated, indexResponse{Index: index, Draft: m.Draft()})
	})
}

func (s *server) handleAddService(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Service string `json:"service"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	entry, ok := s.catalog.Find(req.Service)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("service %q not found", req.Service))
		return
	}

	s.withManager(r, func(m *quote.Manager) {
		index := m.AddService(entry)
		writeJSON(w, http.StatusCreated, indexResponse{Index: index, Draft: m.Draft()})
	})
}

func (s *server) handleSetItem(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, http.StatusNotFound, "item not found")
		return
	}
	var req itemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.withManager(r, func(m *quote.Manager) {
		if err := applyItem(m, index, req); err != nil {
			s.writeQuoteError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, draftResponse{Draft: m.Draft(), Total: m.Calculate().GrandTotal()})
	})
}

// applyItem sets every field present in req. All fields are attempted so the item
// records every problem at once.
func applyItem(m *quote.Manager, index int, req itemRequest) error {
	var errs []error
	if req.Label != nil {
		if err := m.SetLabel(index, *req.Label); err != nil {
			return err
		}
	}
	if req.Price != nil {
		if err := m.SetItem(index, quote.FieldPrice, *req.Price); err != nil {
			if errors.Is(err, quote.ErrOutOfRange) {
				return err
			}
			errs = append(errs, err)
		}
	}
	if req.Quantity != nil {
		if err := m.SetItem(index, quote.FieldQuantity, *req.Quantity); err != nil {
			if errors.Is(err, quote.ErrOutOfRange) {
				return err
			}
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return nil
	}

	ve := &quote.ValidationError{}
	for _, err := range errs {
		var fe *quote.FieldError
		if errors.As(err, &fe) {
			ve.Problems = append(ve.Problems, quote.Problem{Index: fe.Index, Field: fe.Field, Message: fe.Message})
		}
	}
	return ve
}

func (s *server) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, http.StatusNotFound, "item not found")
		return
	}

	s.withManager(r, func(m *quote.Manager) {
		if err := m.RemoveItem(index); err != nil {
			s.writeQuoteError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

func parseCategory(raw string) (pricing.Category, bool) {
	c := pricing.Category(strings.ToLower(raw))
	return c, c == pricing.Hardware || c == pricing.Software
}

func (s *server) handleToggleLabor(w http.ResponseWriter, r *http.Request) {
	category, ok := parseCategory(chi.URLParam(r, "category"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown labor category")
		return
	}

	s.withManager(r, func(m *quote.Manager) {
		included, err := m.ToggleLabor(category)
		if err != nil {
			s.writeQuoteError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"included": included})
	})
}

func (s *server) handleSetLaborHours(w http.ResponseWriter, r *http.Request) {
	category, ok := parseCategory(chi.URLParam(r, "category"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown labor category")
		return
	}
	var req struct {
		Hours int `json:"hours"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.withManager(r, func(m *quote.Manager) {
		if err := m.SetLaborHours(category, req.Hours); err != nil {
			s.writeQuoteError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, draftResponse{Draft: m.Draft(), Total: m.Calculate().GrandTotal()})
	})
}

func (s *server) handleBreakdown(w http.ResponseWriter, r *http.Request) {
	s.withManager(r, func(m *quote.Manager) {
		res := m.Calculate()
		resp := breakdownResponse{
			QuoteNumber:   m.Draft().Number,
			Lines:         make([]lineView, 0, len(res.Breakdown.Lines)),
			ItemsSubtotal: res.Breakdown.ItemsSubtotal.Round(),
			Hardware:      toLaborView(res.Breakdown.Hardware),
			Software:      toLaborView(res.Breakdown.Software),
			Total:         res.GrandTotal(),
		}
		for _, l := range res.Breakdown.Lines {
			resp.Lines = append(resp.Lines, lineView{
				Label:    l.Label,
				Price:    l.Price,
				MarkedUp: l.MarkedUp.Round(),
				Quantity: l.Quantity,
				Total:    l.DisplayTotal(),
				Detail:   l.Detail,
			})
		}
		writeJSON(w, http.StatusOK, resp)
	})
}

func toLaborView(l pricing.LaborLine) laborView {
	return laborView{Included: l.Included, Hours: l.Hours, Rate: l.Rate, Cost: l.Cost.Round(), Detail: l.Detail}
}

// handleCopyTotal returns the text a browser should place on the clipboard.
func (s *server) handleCopyTotal(w http.ResponseWriter, r *http.Request) {
	s.withManager(r, func(m *quote.Manager) {
		text, err := m.CopyTotal()
		if err != nil && !errors.Is(err, quote.ErrNoClipboard) {
			s.writeQuoteError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"text": text})
	})
}

func (s *server) handleSave(w http.ResponseWriter, r *http.Request) {
	s.withManager(r, func(m *quote.Manager) {
		saved, err := m.Save(r.Context())
		if err != nil {
			s.writeQuoteError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, saved)
	})
}

func (s *server) handleQuotesList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	field, err := quote.ParseSortField(q.Get("sort"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	order, err := quote.ParseSortOrder(q.Get("order"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	opts := quote.ListOptions{Search: q.Get("search"), SortField: field, SortOrder: order}

	s.withManager(r, func(m *quote.Manager) {
		quotes := slices.Collect(m.ListQuotes(opts))
		if quotes == nil {
			quotes = []quote.SavedQuote{}
		}
		writeJSON(w, http.StatusOK, quotes)
	})
}

func (s *server) findQuote(r *http.Request) (quote.SavedQuote, bool) {
	var (
		q  quote.SavedQuote
		ok bool
	)
	s.withManager(r, func(m *quote.Manager) {
		q, ok = m.Quote(chi.URLParam(r, "id"))
	})
	return q, ok
}

func (s *server) handleQuote(w http.ResponseWriter, r *http.Request) {
	q, ok := s.findQuote(r)
	if !ok {
		writeError(w, http.StatusNotFound, "quote not found")
		return
	}
	writeJSON(w, http.StatusOK, q)
}

// handleDeleteQuote is idempotent: deleting an unknown id also answers 204.
func (s *server) handleDeleteQuote(w http.ResponseWriter, r *http.Request) {
	s.withManager(r, func(m *quote.Manager) {
		m.DeleteQuote(r.Context(), chi.URLParam(r, "id"))
	})
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleQuoteText(w http.ResponseWriter, r *http.Request) {
	q, ok := s.findQuote(r)
	if !ok {
		writeError(w, http.StatusNotFound, "quote not found")
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if err := report.WriteText(w, report.FromSaved(q), s.company); err != nil {
		s.logger.Error("write quote text", zap.String("id", q.ID), zap.Error(err))
	}
}

func (s *server) handleQuotePDF(w http.ResponseWriter, r *http.Request) {
	q, ok := s.findQuote(r)
	if !ok {
		writeError(w, http.StatusNotFound, "quote not found")
		return
	}
	out, err := s.pdf.Generate(report.FromSaved(q))
	if err != nil {
		s.logger.Error("generate quote pdf", zap.String("id", q.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to generate pdf")
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="quote-%s.pdf"`, q.ID))
	_, _ = w.Write(out)
}

func (s *server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	category := q.Get("category")
	if category == "" {
		category = catalog.AllCategories
	}
	writeJSON(w, http.StatusOK, s.catalog.Search(q.Get("q"), category))
}

func (s *server) handleCategories(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.catalog.Categories())
}

func (s *server) handleDescribe(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Input string `json:"input"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	d, err := s.describer(r).Describe(r.Context(), req.Input)
	switch {
	case errors.Is(err, describe.ErrEmptyInput):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case err != nil:
		writeError(w, http.StatusBadGateway, "description generator unavailable")
	default:
		writeJSON(w, http.StatusCreated, d)
	}
}

func (s *server) handleDescriptions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.describer(r).History())
}

// describer is the session's description service. Generation runs without the
// workspace lock.
func (s *server) describer(r *http.Request) *describe.Service {
	return s.workspaces.get(r.Context(), sessionID(r)).describer
}

func (s *server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query string `json:"query"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	a, err := s.describer(r).Recommend(r.Context(), req.Query)
	s.writeAdvice(w, a, err)
}

// handleAnalyzePricing analyzes the named services, or the labelled lines of the
// session's draft when none are named.
func (s *server) handleAnalyzePricing(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Services []string `json:"services"`
	}
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Services) == 0 {
		s.withManager(r, func(m *quote.Manager) {
			for _, it := range m.Draft().Items {
				if it.Label != "" {
					req.Services = append(req.Services, it.Label)
				}
			}
		})
	}
	a, err := s.describer(r).AnalyzePricing(r.Context(), req.Services)
	s.writeAdvice(w, a, err)
}

func (s *server) writeAdvice(w http.ResponseWriter, a describe.Advice, err error) {
	switch {
	case errors.Is(err, describe.ErrEmptyInput), errors.Is(err, describe.ErrNoServices):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case err != nil:
		writeError(w, http.StatusBadGateway, "description generator unavailable")
	default:
		writeJSON(w, http.StatusOK, a)
	}
}

func (s *server) handleModels(w http.ResponseWriter, r *http.Request) {
	gen := s.generator
	models, err := gen.Models(r.Context())
	if err != nil {
		s.logger.Warn("list models", zap.Error(err))
		writeError(w, http.StatusBadGateway, "description generator unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"current": gen.Model(), "models": models})
}

func (s *server) handleSetModel(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Model string `json:"model"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	err := s.generator.SetModel(r.Context(), req.Model)
	switch {
	case errors.Is(err, describe.ErrModelNotInstalled):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case err != nil:
		writeError(w, http.StatusBadGateway, "description generator unavailable")
	default:
		writeJSON(w, http.StatusOK, map[string]string{"current": req.Model})
	}
}

func (s *server) writeQuoteError(w http.ResponseWriter, err error) {
	var ve *quote.ValidationError
	var fe *quote.FieldError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusUnprocessableEntity, problemResponse{Error: "validation failed", Problems: ve.Problems})
	case errors.As(err, &fe):
		writeJSON(w, http.StatusUnprocessableEntity, problemResponse{
			Error:    "validation failed",
			Problems: []quote.Problem{{Index: fe.Index, Field: fe.Field, Message: fe.Message}},
		})
	case errors.Is(err, quote.ErrOutOfRange):
		writeError(w, http.StatusNotFound, "item not found")
	case errors.Is(err, quote.ErrLaborNotIncluded):
		writeError(w, http.StatusConflict, err.Error())
	default:
		s.logger.Error("quote operation failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
