package describe

import (
	"context"
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"
)

var mockModels = []string{"llama2", "deepseek-r1", "qwen2.5-coder", "qwen2.5", "deepseek-coder", "phi3.5"}

var mockResponses = []string{
	`• Successfully replaced LCD back cover to resolve screen separation issue
• Secured all hinge mounting points to restore proper screen stability
• Verified smooth operation of screen movement after repair
• Completed final quality check confirming proper alignment and function`,

	`• Completed replacement of damaged LCD back cover assembly
• Restored hinge mounting points to manufacturer specifications
• Confirmed proper screen alignment and tension after repair
• Validated full range of motion with no signs of separation`,

	`• Installed new LCD back cover to address screen and hinge issues
• Secured all mounting points to ensure stable screen operation
• Tested and confirmed proper screen movement and alignment
• Completed repair with full restoration of screen functionality`,
}

var mockRecommendations = []string{
	`• Virus Removal to clear the reported pop-ups and slowdowns
• Tune-Up to restore startup speed once the system is clean
• Data Backup before any repair work begins`,

	`• Network Setup to cover the new router and Wi-Fi coverage
• Hardware Diagnostic to rule out a failing network adapter`,
}

var mockPricing = []string{
	`• Bundle Virus Removal with a Tune-Up at a small discount, customers usually need both
• Keep diagnostics at a flat rate and credit them toward the repair
• Offer Data Backup as an add-on to every hardware repair`,
}

// Mock answers with canned descriptions. It lets the UI and CLI run without a model server.
type Mock struct {
	mu        sync.Mutex
	installed []string
	model     string
	pick      func(n int) int
}

func NewMock() *Mock {
	return &Mock{
		installed: slices.Clone(mockModels),
		model:     mockModels[0],
		pick:      rand.IntN,
	}
}

func (m *Mock) Model() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.model
}

func (m *Mock) SetModel(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !slices.Contains(m.installed, name) {
		return fmt.Errorf("%w: %s, pull it first", ErrModelNotInstalled, name)
	}
	m.model = name
	return nil
}

func (m *Mock) Models(context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.installed), nil
}

// Generate answers from the canned set matching the kind of prompt.
func (m *Mock) Generate(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	responses := mockResponses
	switch {
	case strings.HasPrefix(prompt, "As an IT service expert"):
		responses = mockRecommendations
	case strings.HasPrefix(prompt, "Analyze these IT services"):
		responses = mockPricing
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return responses[m.pick(len(responses))], nil
}
