package describe

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Simplici0/quotecalc/internal/storage"
)

func TestPromptEmbedsInput(t *testing.T) {
	p := Prompt("  replaced hinge on Dell laptop \n")
	assert.Contains(t, p, "for the following work:\nreplaced hinge on Dell laptop\n")
	assert.Contains(t, p, "Keep under 100 words")
	assert.NotContains(t, p, "{input}")
}

func TestBullets(t *testing.T) {
	got := Bullets("• First point\n\n- Second point\n  * Third\n")
	assert.Equal(t, []string{"First point", "Second point", "Third"}, got)
}

func TestMockSetModel(t *testing.T) {
	m := NewMock()
	ctx := context.Background()

	assert.Equal(t, "llama2", m.Model())
	require.NoError(t, m.SetModel(ctx, "phi3.5"))
	assert.Equal(t, "phi3.5", m.Model())

	err := m.SetModel(ctx, "gpt-9")
	require.ErrorIs(t, err, ErrModelNotInstalled)
	assert.Equal(t, "phi3.5", m.Model())

	models, err := m.Models(ctx)
	require.NoError(t, err)
	assert.Contains(t, models, "deepseek-r1")
}

func TestMockGenerate(t *testing.T) {
	m := NewMock()
	m.pick = func(int) int { return 1 }

	text, err := m.Generate(context.Background(), "anything")
	require.NoError(t, err)
	assert.Equal(t, mockResponses[1], text)
	assert.Len(t, Bullets(text), 4)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = m.Generate(ctx, "anything")
	require.ErrorIs(t, err, context.Canceled)
}

func newOllamaServer(t *testing.T) (*httptest.Server, *generateRequest) {
	t.Helper()
	var got generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/tags":
			_, _ = w.Write([]byte(`{"models":[{"name":"llama2"},{"name":"mistral"}]}`))
		case r.Method == http.MethodPost && r.URL.Path == "/api/generate":
			if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			if got.Model == "broken" {
				http.Error(w, "model crashed", http.StatusInternalServerError)
				return
			}
			_, _ = w.Write([]byte(`{"model":"llama2","response":"  • Fixed the thing\n","done":true}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &got
}

func TestOllamaGenerate(t *testing.T) {
	srv, got := newOllamaServer(t)
	o := NewOllama(srv.URL+"/", "", srv.Client())

	text, err := o.Generate(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "• Fixed the thing", text)
	assert.Equal(t, generateRequest{Model: "llama2", Prompt: "hello", Stream: false}, *got)
}

func TestOllamaModelsAndSetModel(t *testing.T) {
	srv, _ := newOllamaServer(t)
	o := NewOllama(srv.URL, "llama2", srv.Client())
	ctx := context.Background()

	models, err := o.Models(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"llama2", "mistral"}, models)

	require.NoError(t, o.SetModel(ctx, "mistral"))
	assert.Equal(t, "mistral", o.Model())
	require.ErrorIs(t, o.SetModel(ctx, "phi3.5"), ErrModelNotInstalled)
}

func TestOllamaErrorStatus(t *testing.T) {
	srv, _ := newOllamaServer(t)
	o := NewOllama(srv.URL, "broken", srv.Client())

	_, err := o.Generate(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ollama status 500")
}

func TestServiceDescribePersistsHistory(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	gen := NewMock()
	gen.pick = func(int) int { return 0 }

	svc := NewService(ctx, gen, store, nil)
	first, err := svc.Describe(ctx, "replaced LCD back cover")
	require.NoError(t, err)
	second, err := svc.Describe(ctx, "fixed hinge")
	require.NoError(t, err)

	assert.NotEmpty(t, first.ID)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, "llama2", first.Model)

	reloaded := NewService(ctx, gen, store, nil)
	history := reloaded.History()
	require.Len(t, history, 2)
	assert.Equal(t, "fixed hinge", history[0].Input)
	assert.Equal(t, first.ID, history[1].ID)
}

func TestServiceRejectsEmptyInput(t *testing.T) {
	svc := NewService(context.Background(), NewMock(), storage.NewMemory(), nil)
	_, err := svc.Describe(context.Background(), "   ")
	require.ErrorIs(t, err, ErrEmptyInput)
	assert.Empty(t, svc.History())
}

type failingGenerator struct{ *Mock }

func (failingGenerator) Generate(context.Context, string) (string, error) {
	return "", errors.New("connection refused")
}

func TestServiceGeneratorFailure(t *testing.T) {
	svc := NewService(context.Background(), failingGenerator{NewMock()}, storage.NewMemory(), nil)
	_, err := svc.Describe(context.Background(), "work")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "connection refused"))
	assert.Empty(t, svc.History())
}

func TestServiceKeepsWorkingWithoutStorage(t *testing.T) {
	svc := NewService(context.Background(), NewMock(), storage.Unavailable{}, nil)
	_, err := svc.Describe(context.Background(), "work")
	require.NoError(t, err)
	assert.Len(t, svc.History(), 1)
}

func TestServiceHistoryKeysAreSeparate(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()

	first := NewService(ctx, NewMock(), store, nil, WithHistoryKey("laborDescriptions:a"))
	_, err := first.Describe(ctx, "replaced fan")
	require.NoError(t, err)

	other := NewService(ctx, NewMock(), store, nil, WithHistoryKey("laborDescriptions:b"))
	assert.Empty(t, other.History())

	_, ok, err := store.Get(ctx, HistoryKey)
	require.NoError(t, err)
	assert.False(t, ok)

	reloaded := NewService(ctx, NewMock(), store, nil, WithHistoryKey("laborDescriptions:a"))
	assert.Len(t, reloaded.History(), 1)
}

func TestAdvicePrompts(t *testing.T) {
	assert.Equal(t,
		`As an IT service expert, analyze this request and suggest relevant services: "laptop runs slow"`,
		RecommendPrompt("  laptop runs slow "))
	assert.Equal(t,
		"Analyze these IT services and suggest optimal pricing and potential bundles: Virus Removal, Tune-Up",
		PricingPrompt([]string{"Virus Removal", "Tune-Up"}))
}

func TestRecommend(t *testing.T) {
	ctx := context.Background()
	gen := NewMock()
	gen.pick = func(int) int { return 0 }
	svc := NewService(ctx, gen, storage.NewMemory(), nil)

	_, err := svc.Recommend(ctx, " ")
	require.ErrorIs(t, err, ErrEmptyInput)

	a, err := svc.Recommend(ctx, "pop-ups everywhere")
	require.NoError(t, err)
	assert.Equal(t, KindRecommendation, a.Kind)
	assert.Equal(t, "pop-ups everywhere", a.Input)
	assert.Equal(t, mockRecommendations[0], a.Text)
	assert.Equal(t, "llama2", a.Model)
	assert.Empty(t, svc.History())
}

func TestAnalyzePricing(t *testing.T) {
	ctx := context.Background()
	gen := NewMock()
	gen.pick = func(int) int { return 0 }
	svc := NewService(ctx, gen, storage.NewMemory(), nil)

	_, err := svc.AnalyzePricing(ctx, nil)
	require.ErrorIs(t, err, ErrNoServices)
	_, err = svc.AnalyzePricing(ctx, []string{" ", ""})
	require.ErrorIs(t, err, ErrNoServices)

	a, err := svc.AnalyzePricing(ctx, []string{"Virus Removal", " ", "Tune-Up"})
	require.NoError(t, err)
	assert.Equal(t, KindPricing, a.Kind)
	assert.Equal(t, "Virus Removal, Tune-Up", a.Input)
	assert.Equal(t, mockPricing[0], a.Text)
}

func TestAdviceGeneratorFailure(t *testing.T) {
	svc := NewService(context.Background(), failingGenerator{NewMock()}, storage.NewMemory(), nil)
	_, err := svc.Recommend(context.Background(), "slow laptop")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}
