// Package describe turns a technician's notes into a customer-facing labor description
// using a local language model.
package describe

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrModelNotInstalled = errors.New("model is not installed")
	ErrEmptyInput        = errors.New("work description is required")
	ErrEmptyResponse     = errors.New("model returned an empty response")
)

// Generator produces text for a prompt with a selectable model.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	// Models lists the models that can be selected.
	Models(ctx context.Context) ([]string, error)
	Model() string
	SetModel(ctx context.Context, name string) error
}

const systemPrompt = `You are an IT service professional who writes clear, concise labor descriptions for customers.
Your task is to create customer-friendly descriptions of technical work performed.
Focus on value delivered and use simple language while maintaining accuracy.`

const userPrompt = `Create a clear and concise labor description for the following work:
{input}

The description should:
- Be written for a non-technical audience
- Use specific details from the work performed
- Be formatted in bullet points
- Keep under 100 words
- Focus on the value provided to the customer
- Include any relevant technical terms in a customer-friendly way

Format the response as bullet points, starting each point with "• ".`

// Prompt builds the full prompt sent to the model for the given work notes.
func Prompt(input string) string {
	return systemPrompt + "\n\n" + strings.Replace(userPrompt, "{input}", strings.TrimSpace(input), 1)
}

// Bullets splits a generated description into its bullet points, dropping the markers.
func Bullets(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimSpace(strings.TrimLeft(line, "•-*"))
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}
