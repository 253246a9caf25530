package describe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// ErrNoServices is returned when a pricing analysis is requested for no services.
var ErrNoServices = errors.New("at least one service is required")

// Advice kinds.
const (
	KindRecommendation = "recommendation"
	KindPricing        = "pricing"
)

const recommendPrompt = `As an IT service expert, analyze this request and suggest relevant services: "{input}"`

const pricingPrompt = `Analyze these IT services and suggest optimal pricing and potential bundles: {input}`

// Advice is a one-off model answer. Unlike descriptions it is not kept in history.
type Advice struct {
	Kind  string `json:"kind"`
	Input string `json:"input"`
	Text  string `json:"text"`
	Model string `json:"model"`
}

// RecommendPrompt asks for services matching a customer's request.
func RecommendPrompt(query string) string {
	return strings.Replace(recommendPrompt, "{input}", strings.TrimSpace(query), 1)
}

// PricingPrompt asks for pricing and bundle suggestions for the named services.
func PricingPrompt(services []string) string {
	return strings.Replace(pricingPrompt, "{input}", strings.Join(services, ", "), 1)
}

// Recommend suggests catalog services for a free-text customer request.
func (s *Service) Recommend(ctx context.Context, query string) (Advice, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Advice{}, ErrEmptyInput
	}
	return s.advise(ctx, KindRecommendation, query, RecommendPrompt(query))
}

// AnalyzePricing suggests pricing and bundles for the given service names. Blank names
// are ignored.
func (s *Service) AnalyzePricing(ctx context.Context, services []string) (Advice, error) {
	var names []string
	for _, name := range services {
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return Advice{}, ErrNoServices
	}
	return s.advise(ctx, KindPricing, strings.Join(names, ", "), PricingPrompt(names))
}

func (s *Service) advise(ctx context.Context, kind, input, prompt string) (Advice, error) {
	text, err := s.gen.Generate(ctx, prompt)
	if err != nil {
		s.logger.Error("generate advice", zap.String("kind", kind), zap.String("model", s.gen.Model()), zap.Error(err))
		return Advice{}, fmt.Errorf("generate %s: %w", kind, err)
	}
	return Advice{Kind: kind, Input: input, Text: text, Model: s.gen.Model()}, nil
}
