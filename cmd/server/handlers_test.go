package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/Simplici0/quotecalc/internal/catalog"
	"github.com/Simplici0/quotecalc/internal/describe"
	"github.com/Simplici0/quotecalc/internal/quote"
	"github.com/Simplici0/quotecalc/internal/report"
	"github.com/Simplici0/quotecalc/internal/report/pdf"
	"github.com/Simplici0/quotecalc/internal/storage"
)

func newTestServer(t *testing.T) *server {
	t.Helper()
	store := storage.NewMemory()
	gen := describe.NewMock()
	clock := quote.WithClock(func() time.Time { return time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC) })
	return &server{
		logger:     zap.NewNop(),
		sessions:   newSessionService("test-secret"),
		workspaces: newWorkspaces(store, gen, zap.NewNop(), defaultSessionLimits, clock),
		catalog:    catalog.Default(),
		generator:  gen,
		company:    report.DefaultCompany,
		pdf:        pdf.New(report.DefaultCompany),
		now:        time.Now,
	}
}

type apiClient struct {
	t    *testing.T
	base string
	http *http.Client
}

func newAPIClient(t *testing.T, ts *httptest.Server) *apiClient {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	return &apiClient{t: t, base: ts.URL, http: &http.Client{Jar: jar}}
}

func (c *apiClient) do(method, path string, body any) (int, []byte) {
	c.t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			c.t.Fatalf("encode body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, c.base+path, reader)
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		c.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	if err != nil {
		c.t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, out
}

func (c *apiClient) expect(method, path string, body any, status int) []byte {
	c.t.Helper()
	got, out := c.do(method, path, body)
	if got != status {
		c.t.Fatalf("%s %s: expected status %d, got %d: %s", method, path, status, got, out)
	}
	return out
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return v
}

func TestQuoteLifecycleOverHTTP(t *testing.T) {
	ts := httptest.NewServer(newTestServer(t).routes())
	defer ts.Close()
	c := newAPIClient(t, ts)

	c.expect(http.MethodPost, "/api/draft/items", map[string]string{"price": "19.59", "quantity": "1"}, http.StatusCreated)

	saved := decode[quote.SavedQuote](t, c.expect(http.MethodPost, "/api/draft/save", nil, http.StatusCreated))
	if saved.TotalAmount.String() != "39.18" {
		t.Fatalf("expected total 39.18, got %s", saved.TotalAmount)
	}
	if saved.Date != "2026-03-14" {
		t.Fatalf("expected save date from clock, got %q", saved.Date)
	}

	draft := decode[draftResponse](t, c.expect(http.MethodGet, "/api/draft", nil, http.StatusOK))
	if len(draft.Draft.Items) != 0 || draft.Draft.Number == saved.ID {
		t.Fatalf("expected a fresh draft after save, got %+v", draft.Draft)
	}

	list := decode[[]quote.SavedQuote](t, c.expect(http.MethodGet, "/api/quotes", nil, http.StatusOK))
	if len(list) != 1 || list[0].ID != saved.ID {
		t.Fatalf("expected saved quote in history, got %+v", list)
	}

	text := string(c.expect(http.MethodGet, "/api/quotes/"+saved.ID+"/text", nil, http.StatusOK))
	for _, expected := range []string{"Error Computer Repair", "Quote #" + saved.ID, "Total: $39.18"} {
		if !strings.Contains(text, expected) {
			t.Fatalf("expected text to contain %q, got: %s", expected, text)
		}
	}

	doc := c.expect(http.MethodGet, "/api/quotes/"+saved.ID+"/pdf", nil, http.StatusOK)
	if !bytes.HasPrefix(doc, []byte("%PDF")) {
		t.Fatalf("expected a pdf document, got %q", doc[:min(len(doc), 16)])
	}

	c.expect(http.MethodDelete, "/api/quotes/"+saved.ID, nil, http.StatusNoContent)
	c.expect(http.MethodDelete, "/api/quotes/"+saved.ID, nil, http.StatusNoContent)
	c.expect(http.MethodGet, "/api/quotes/"+saved.ID, nil, http.StatusNotFound)
}

func TestInvalidItemIsRejected(t *testing.T) {
	ts := httptest.NewServer(newTestServer(t).routes())
	defer ts.Close()
	c := newAPIClient(t, ts)

	out := c.expect(http.MethodPost, "/api/draft/items", map[string]string{"price": "abc"}, http.StatusUnprocessableEntity)
	problems := decode[addItemProblemResponse](t, out)
	if len(problems.Problems) != 1 || problems.Problems[0].Field != quote.FieldPrice {
		t.Fatalf("expected one price problem, got %+v", problems)
	}
	if problems.Index != 0 || len(problems.Draft.Items) != 1 || problems.Draft.Items[0].Errors[quote.FieldPrice] == "" {
		t.Fatalf("expected the rejected line to be addressable, got %+v", problems)
	}

	out = c.expect(http.MethodPost, "/api/draft/items", map[string]string{"price": "1e50000000"}, http.StatusUnprocessableEntity)
	if problems = decode[addItemProblemResponse](t, out); problems.Index != 1 {
		t.Fatalf("expected second line index, got %+v", problems)
	}
	c.expect(http.MethodDelete, "/api/draft/items/1", nil, http.StatusNoContent)

	c.expect(http.MethodPost, "/api/draft/save", nil, http.StatusUnprocessableEntity)
	list := decode[[]quote.SavedQuote](t, c.expect(http.MethodGet, "/api/quotes", nil, http.StatusOK))
	if len(list) != 0 {
		t.Fatalf("expected no saved quotes, got %+v", list)
	}

	c.expect(http.MethodPut, "/api/draft/items/0", map[string]string{"price": "12"}, http.StatusOK)
	c.expect(http.MethodDelete, "/api/draft/items/7", nil, http.StatusNotFound)
	c.expect(http.MethodDelete, "/api/draft/items/0", nil, http.StatusNoContent)
}

func TestLaborEndpoints(t *testing.T) {
	ts := httptest.NewServer(newTestServer(t).routes())
	defer ts.Close()
	c := newAPIClient(t, ts)

	c.expect(http.MethodPut, "/api/draft/labor/hardware", map[string]int{"hours": 2}, http.StatusConflict)
	toggled := decode[map[string]bool](t, c.expect(http.MethodPost, "/api/draft/labor/hardware/toggle", nil, http.StatusOK))
	if !toggled["included"] {
		t.Fatalf("expected hardware labor to be included, got %v", toggled)
	}
	c.expect(http.MethodPut, "/api/draft/labor/hardware", map[string]int{"hours": 2}, http.StatusOK)
	c.expect(http.MethodPost, "/api/draft/labor/plumbing/toggle", nil, http.StatusNotFound)

	breakdown := decode[breakdownResponse](t, c.expect(http.MethodGet, "/api/draft/breakdown", nil, http.StatusOK))
	if breakdown.Hardware.Cost.String() != "259.80" || breakdown.Total.String() != "259.80" {
		t.Fatalf("unexpected breakdown: %+v", breakdown)
	}
	if breakdown.Hardware.Detail != "Hardware Labor (2 hrs @ $129.90/hr) = $259.80" {
		t.Fatalf("unexpected labor detail %q", breakdown.Hardware.Detail)
	}

	copied := decode[map[string]string](t, c.expect(http.MethodPost, "/api/draft/copy", nil, http.StatusOK))
	if copied["text"] != "259.80" {
		t.Fatalf("expected copy text 259.80, got %v", copied)
	}
}

func TestSessionsAreIsolated(t *testing.T) {
	ts := httptest.NewServer(newTestServer(t).routes())
	defer ts.Close()
	alice := newAPIClient(t, ts)
	bob := newAPIClient(t, ts)

	alice.expect(http.MethodPost, "/api/draft/items", map[string]string{"price": "60", "quantity": "2"}, http.StatusCreated)
	alice.expect(http.MethodPost, "/api/draft/save", nil, http.StatusCreated)

	if list := decode[[]quote.SavedQuote](t, alice.expect(http.MethodGet, "/api/quotes", nil, http.StatusOK)); len(list) != 1 {
		t.Fatalf("expected one quote for the first session, got %d", len(list))
	}
	if list := decode[[]quote.SavedQuote](t, bob.expect(http.MethodGet, "/api/quotes", nil, http.StatusOK)); len(list) != 0 {
		t.Fatalf("expected no quotes for the second session, got %d", len(list))
	}
}

func TestQuotesListValidatesSort(t *testing.T) {
	ts := httptest.NewServer(newTestServer(t).routes())
	defer ts.Close()
	c := newAPIClient(t, ts)

	c.expect(http.MethodGet, "/api/quotes?sort=price", nil, http.StatusBadRequest)
	c.expect(http.MethodGet, "/api/quotes?sort=totalAmount&order=asc", nil, http.StatusOK)
}

func TestCatalogEndpoints(t *testing.T) {
	ts := httptest.NewServer(newTestServer(t).routes())
	defer ts.Close()
	c := newAPIClient(t, ts)

	entries := decode[[]catalog.Entry](t, c.expect(http.MethodGet, "/api/catalog?q=netwrk", nil, http.StatusOK))
	found := false
	for _, e := range entries {
		found = found || e.Service == "Network Setup"
	}
	if !found {
		t.Fatalf("expected fuzzy search to find Network Setup, got %+v", entries)
	}

	categories := decode[[]string](t, c.expect(http.MethodGet, "/api/catalog/categories", nil, http.StatusOK))
	if len(categories) == 0 || categories[0] != catalog.AllCategories {
		t.Fatalf("expected categories to start with All, got %v", categories)
	}

	added := decode[indexResponse](t, c.expect(http.MethodPost, "/api/draft/services", map[string]string{"service": "virus removal"}, http.StatusCreated))
	if added.Draft.Items[added.Index].Label != "Virus Removal" {
		t.Fatalf("expected catalog service in draft, got %+v", added.Draft.Items)
	}
	c.expect(http.MethodPost, "/api/draft/services", map[string]string{"service": "Teleportation"}, http.StatusNotFound)
}

func TestDescriptionEndpoints(t *testing.T) {
	ts := httptest.NewServer(newTestServer(t).routes())
	defer ts.Close()
	c := newAPIClient(t, ts)

	c.expect(http.MethodPost, "/api/descriptions", map[string]string{"input": " "}, http.StatusUnprocessableEntity)
	d := decode[describe.Description](t, c.expect(http.MethodPost, "/api/descriptions", map[string]string{"input": "replaced hinge"}, http.StatusCreated))
	if d.Text == "" || d.Model != "llama2" {
		t.Fatalf("unexpected description: %+v", d)
	}

	history := decode[[]describe.Description](t, c.expect(http.MethodGet, "/api/descriptions", nil, http.StatusOK))
	if len(history) != 1 || history[0].ID != d.ID {
		t.Fatalf("expected description history, got %+v", history)
	}

	c.expect(http.MethodPut, "/api/descriptions/model", map[string]string{"model": "phi3.5"}, http.StatusOK)
	c.expect(http.MethodPut, "/api/descriptions/model", map[string]string{"model": "gpt-9"}, http.StatusUnprocessableEntity)
	models := decode[map[string]any](t, c.expect(http.MethodGet, "/api/descriptions/models", nil, http.StatusOK))
	if models["current"] != "phi3.5" {
		t.Fatalf("expected selected model, got %v", models)
	}
}

func TestHandleQuoteTextUnknownID(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/quotes/missing/text", nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", "missing")
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
	ctx = context.WithValue(ctx, sessionKey{}, "session-1")
	req = req.WithContext(ctx)

	rr := httptest.NewRecorder()
	srv.handleQuoteText(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}

func TestHealth(t *testing.T) {
	rr := httptest.NewRecorder()
	newTestServer(t).routes().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "ok") {
		t.Fatalf("unexpected health response %d: %s", rr.Code, rr.Body.String())
	}
}

func TestDescriptionsAreScopedToSession(t *testing.T) {
	ts := httptest.NewServer(newTestServer(t).routes())
	defer ts.Close()
	alice := newAPIClient(t, ts)
	bob := newAPIClient(t, ts)

	alice.expect(http.MethodPost, "/api/descriptions", map[string]string{"input": "replaced hinge"}, http.StatusCreated)

	if history := decode[[]describe.Description](t, alice.expect(http.MethodGet, "/api/descriptions", nil, http.StatusOK)); len(history) != 1 {
		t.Fatalf("expected one description for the first session, got %d", len(history))
	}
	if history := decode[[]describe.Description](t, bob.expect(http.MethodGet, "/api/descriptions", nil, http.StatusOK)); len(history) != 0 {
		t.Fatalf("expected no descriptions for the second session, got %+v", history)
	}
}

func TestAdviceEndpoints(t *testing.T) {
	ts := httptest.NewServer(newTestServer(t).routes())
	defer ts.Close()
	c := newAPIClient(t, ts)

	c.expect(http.MethodPost, "/api/recommendations", map[string]string{"query": ""}, http.StatusUnprocessableEntity)
	a := decode[describe.Advice](t, c.expect(http.MethodPost, "/api/recommendations", map[string]string{"query": "laptop full of pop-ups"}, http.StatusOK))
	if a.Kind != describe.KindRecommendation || a.Text == "" {
		t.Fatalf("unexpected recommendation: %+v", a)
	}

	c.expect(http.MethodPost, "/api/pricing-analysis", nil, http.StatusUnprocessableEntity)
	c.expect(http.MethodPost, "/api/draft/services", map[string]string{"service": "virus removal"}, http.StatusCreated)
	a = decode[describe.Advice](t, c.expect(http.MethodPost, "/api/pricing-analysis", nil, http.StatusOK))
	if a.Kind != describe.KindPricing || a.Input != "Virus Removal" {
		t.Fatalf("expected analysis of the draft services, got %+v", a)
	}
	a = decode[describe.Advice](t, c.expect(http.MethodPost, "/api/pricing-analysis", map[string][]string{"services": {"Tune-Up", "Data Backup"}}, http.StatusOK))
	if a.Input != "Tune-Up, Data Backup" {
		t.Fatalf("expected named services, got %+v", a)
	}
}

func TestCookielessRequestsAreBounded(t *testing.T) {
	srv := newTestServer(t)
	srv.workspaces.limits = sessionLimits{idleTTL: time.Hour, max: 10}
	h := srv.routes()

	for range 1000 {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/draft", nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}
	}
	if n := srv.workspaces.size(); n > 10 {
		t.Fatalf("expected at most 10 sessions in memory, got %d", n)
	}
}

func TestIdleSessionsAreEvicted(t *testing.T) {
	srv := newTestServer(t)
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	srv.workspaces.now = func() time.Time { return now }
	srv.workspaces.limits = sessionLimits{idleTTL: 30 * time.Minute, max: 100}

	ts := httptest.NewServer(srv.routes())
	defer ts.Close()
	c := newAPIClient(t, ts)

	c.expect(http.MethodPost, "/api/draft/items", map[string]string{"price": "10"}, http.StatusCreated)
	c.expect(http.MethodPost, "/api/draft/save", nil, http.StatusCreated)
	c.expect(http.MethodPost, "/api/draft/items", map[string]string{"price": "20"}, http.StatusCreated)

	now = now.Add(10 * time.Minute)
	if n := srv.workspaces.sweep(); n != 1 {
		t.Fatalf("expected the session to survive a short idle, got %d", n)
	}

	now = now.Add(time.Hour)
	if n := srv.workspaces.sweep(); n != 0 {
		t.Fatalf("expected the idle session to be evicted, got %d", n)
	}

	draft := decode[draftResponse](t, c.expect(http.MethodGet, "/api/draft", nil, http.StatusOK))
	if len(draft.Draft.Items) != 0 {
		t.Fatalf("expected a new draft after eviction, got %+v", draft.Draft.Items)
	}
	if list := decode[[]quote.SavedQuote](t, c.expect(http.MethodGet, "/api/quotes", nil, http.StatusOK)); len(list) != 1 {
		t.Fatalf("expected saved history to reload from storage, got %d", len(list))
	}
}
