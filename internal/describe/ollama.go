package describe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"
)

const (
	DefaultOllamaURL   = "http://localhost:11434"
	DefaultOllamaModel = "llama2"
)

// Ollama talks to a local Ollama server. It is safe for concurrent use.
type Ollama struct {
	baseURL string
	http    *http.Client

	mu    sync.RWMutex
	model string
}

// NewOllama returns a client for baseURL. A nil httpClient uses a client with a two minute timeout.
func NewOllama(baseURL, model string, httpClient *http.Client) *Ollama {
	if baseURL == "" {
		baseURL = DefaultOllamaURL
	}
	if model == "" {
		model = DefaultOllamaModel
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 2 * time.Minute}
	}
	return &Ollama{baseURL: strings.TrimRight(baseURL, "/"), model: model, http: httpClient}
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Model     string `json:"model"`
	CreatedAt string `json:"created_at"`
	Response  string `json:"response"`
	Done      bool   `json:"done"`
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

func (o *Ollama) Model() string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.model
}

// SetModel selects name after checking that the server has it installed.
func (o *Ollama) SetModel(ctx context.Context, name string) error {
	models, err := o.Models(ctx)
	if err != nil {
		return err
	}
	if !slices.Contains(models, name) {
		return fmt.Errorf("%w: %s", ErrModelNotInstalled, name)
	}
	o.mu.Lock()
	o.model = name
	o.mu.Unlock()
	return nil
}

func (o *Ollama) Generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{Model: o.Model(), Prompt: prompt, Stream: false})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	var out generateResponse
	if err := o.do(req, &out); err != nil {
		return "", err
	}
	text := strings.TrimSpace(out.Response)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// Models lists the installed models reported by /api/tags.
func (o *Ollama) Models(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, err
	}

	var out tagsResponse
	if err := o.do(req, &out); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(out.Models))
	for _, m := range out.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

func (o *Ollama) do(req *http.Request, out any) error {
	resp, err := o.http.Do(req)
	if err != nil {
		return fmt.Errorf("ollama %s: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ollama status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode ollama %s response: %w", req.URL.Path, err)
	}
	return nil
}
